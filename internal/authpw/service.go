// Package authpw provides the password side of actor resolution: a small
// in-process account directory with bcrypt-hashed credentials. The comment
// core trusts the resolved Actor and never sees this package.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"marginalia/api/internal/store"
	"marginalia/api/internal/util"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type account struct {
	actor        store.Actor
	passwordHash string
}

// Service holds actor accounts keyed by email.
type Service struct {
	mu      sync.RWMutex
	byEmail map[string]*account
}

// NewService creates an empty account directory.
func NewService() *Service {
	return &Service{byEmail: make(map[string]*account)}
}

// SignUpRequest contains sign-up parameters.
type SignUpRequest struct {
	Email    string
	Password string
	Name     string
	Color    string
}

// SignUp registers a new actor account.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.Actor, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		return store.Actor{}, errors.New("email, password, and name are required")
	}
	if len(req.Password) < 8 {
		return store.Actor{}, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.Actor{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[email]; exists {
		return store.Actor{}, errors.New("email already registered")
	}
	actor := store.Actor{
		ID:    util.NewID("act"),
		Name:  strings.TrimSpace(req.Name),
		Email: email,
		Role:  "commenter",
		Color: req.Color,
	}
	s.byEmail[email] = &account{actor: actor, passwordHash: string(hash)}
	return actor, nil
}

// SignIn authenticates an actor by email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.Actor, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return store.Actor{}, ErrInvalidCredentials
	}

	s.mu.RLock()
	acct, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return store.Actor{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.passwordHash), []byte(password)); err != nil {
		return store.Actor{}, ErrInvalidCredentials
	}
	return acct.actor, nil
}
