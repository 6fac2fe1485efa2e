package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database connection is healthy.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Account is a registered user of the service.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a login session backing an issued token.
type Session struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

const createAccountSQL = `
INSERT INTO accounts (id, email, password_hash, display_name)
VALUES (?, ?, ?, ?)`

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a Account) error {
	_, err := r.db.ExecContext(ctx, createAccountSQL, a.ID, a.Email, a.PasswordHash, a.DisplayName)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

const getAccountByEmailSQL = `
SELECT id, email, password_hash, display_name, created_at, updated_at
FROM accounts WHERE email = ?`

func (r *SQLiteRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	var a Account
	err := r.db.QueryRowContext(ctx, getAccountByEmailSQL, email).
		Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

const getAccountSQL = `
SELECT id, email, password_hash, display_name, created_at, updated_at
FROM accounts WHERE id = ?`

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (Account, error) {
	var a Account
	err := r.db.QueryRowContext(ctx, getAccountSQL, id).
		Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

const createSessionSQL = `
INSERT INTO sessions (id, account_id, expires_at)
VALUES (?, ?, ?)`

func (r *SQLiteRepository) CreateSession(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, createSessionSQL, s.ID, s.AccountID, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

const getSessionSQL = `
SELECT id, account_id, expires_at, revoked, created_at
FROM sessions WHERE id = ?`

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (Session, error) {
	var s Session
	var revoked int
	err := r.db.QueryRowContext(ctx, getSessionSQL, id).
		Scan(&s.ID, &s.AccountID, &s.ExpiresAt, &revoked, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	s.Revoked = revoked != 0
	return s, nil
}

const revokeSessionSQL = `UPDATE sessions SET revoked = 1 WHERE id = ?`

func (r *SQLiteRepository) RevokeSession(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, revokeSessionSQL, id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const deleteExpiredSessionsSQL = `DELETE FROM sessions WHERE expires_at < ?`

func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredSessionsSQL, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
