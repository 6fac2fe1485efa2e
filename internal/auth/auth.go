// Package auth implements email/password login with bcrypt hashes,
// JWT-backed sessions and an auth-state listener registry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"financas/internal/log"
	"financas/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrSessionExpired     = errors.New("session expired")
)

// Store is the persistence surface the service needs.
type Store interface {
	GetAccountByEmail(ctx context.Context, email string) (storage.Account, error)
	GetAccount(ctx context.Context, id string) (storage.Account, error)
	CreateSession(ctx context.Context, s storage.Session) error
	GetSession(ctx context.Context, id string) (storage.Session, error)
	RevokeSession(ctx context.Context, id string) error
}

// Identity describes an authenticated caller.
type Identity struct {
	AccountID string
	SessionID string
	Email     string
}

// EventType distinguishes auth-state transitions.
type EventType string

const (
	EventLogin  EventType = "login"
	EventLogout EventType = "logout"
)

// Event is delivered to subscribers on every auth-state change.
type Event struct {
	Type      EventType
	AccountID string
	SessionID string
}

// Config holds service configuration.
type Config struct {
	Secret     string
	SessionTTL time.Duration
	BcryptCost int
	Issuer     string
}

// Service authenticates accounts and manages their sessions.
type Service struct {
	store  Store
	tokens *TokenCodec
	ttl    time.Duration
	cost   int
	logger *log.Logger

	mu        sync.Mutex
	listeners map[int]func(Event)
	nextSub   int
}

// NewService creates an auth service.
func NewService(store Store, cfg Config, logger *log.Logger) *Service {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "financas"
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		store:     store,
		tokens:    NewTokenCodec(cfg.Secret, issuer),
		ttl:       cfg.SessionTTL,
		cost:      cost,
		logger:    logger.WithComponent(log.ComponentAuth),
		listeners: make(map[int]func(Event)),
	}
}

// HashPassword hashes a plaintext password for storage.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login verifies credentials, opens a session and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", Identity{}, ErrInvalidCredentials
		}
		return "", Identity{}, fmt.Errorf("load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Login rejected", log.FieldAccountID, account.ID)
		return "", Identity{}, ErrInvalidCredentials
	}

	session := storage.Session{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return "", Identity{}, fmt.Errorf("create session: %w", err)
	}

	token, err := s.tokens.Sign(account.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return "", Identity{}, fmt.Errorf("sign token: %w", err)
	}

	identity := Identity{AccountID: account.ID, SessionID: session.ID, Email: account.Email}

	s.logger.InfoContext(ctx, "Login succeeded",
		log.FieldAccountID, account.ID,
		log.FieldSessionID, session.ID)
	s.notify(Event{Type: EventLogin, AccountID: account.ID, SessionID: session.ID})

	return token, identity, nil
}

// Logout revokes the session behind the given token.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return ErrInvalidToken
	}

	if err := s.store.RevokeSession(ctx, claims.SessionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("revoke session: %w", err)
	}

	s.logger.InfoContext(ctx, "Logout",
		log.FieldAccountID, claims.AccountID,
		log.FieldSessionID, claims.SessionID)
	s.notify(Event{Type: EventLogout, AccountID: claims.AccountID, SessionID: claims.SessionID})

	return nil
}

// Authenticate resolves a token to an identity, rejecting revoked and
// expired sessions.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	session, err := s.store.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, fmt.Errorf("load session: %w", err)
	}

	if session.Revoked {
		return Identity{}, ErrSessionRevoked
	}
	if time.Now().After(session.ExpiresAt) {
		return Identity{}, ErrSessionExpired
	}

	account, err := s.store.GetAccount(ctx, session.AccountID)
	if err != nil {
		return Identity{}, fmt.Errorf("load account: %w", err)
	}

	return Identity{AccountID: account.ID, SessionID: session.ID, Email: account.Email}, nil
}

// Subscribe registers a listener for auth-state changes and returns an
// unsubscribe function.
func (s *Service) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Service) notify(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
