// financas-admin manages accounts from the command line. There is no
// public signup; someone with shell access creates each account.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"financas/internal/auth"
	"financas/internal/config"
	"financas/internal/log"
	"financas/internal/storage"
)

func main() {
	_ = godotenv.Load()

	var (
		email       = flag.String("email", "", "account email (required)")
		password    = flag.String("password", "", "account password (required)")
		displayName = flag.String("name", "", "display name")
	)
	flag.Parse()

	if strings.TrimSpace(*email) == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: financas-admin -email user@example.com -password secret [-name \"Display Name\"]")
		os.Exit(2)
	}

	logger := log.New(log.DefaultConfig())
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open storage:", err)
		os.Exit(1)
	}
	defer repo.Close()

	authSvc := auth.NewService(repo, auth.Config{
		Secret:     cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
	}, logger)

	hash, err := authSvc.HashPassword(*password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash password:", err)
		os.Exit(1)
	}

	account := storage.Account{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(*email)),
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(*displayName),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repo.CreateAccount(ctx, account); err != nil {
		fmt.Fprintln(os.Stderr, "create account:", err)
		os.Exit(1)
	}

	fmt.Printf("account created: %s (%s)\n", account.Email, account.ID)
}
