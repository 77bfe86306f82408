// Package session holds the operator session: the bearer token and the
// display name of whoever logged in. The session lives in a durable slot so
// it survives restarts, and logging out also empties the gateway view store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"banco/internal/log"
)

// Slot keys.
const (
	KeyToken = "token"
	KeyName  = "usuario"
)

var ErrNoSession = errors.New("no active session")

// Slot is a small durable key/value store.
type Slot interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// Put writes every pair or none.
	Put(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheResetter empties the view store. *gateway.Gateway implements it.
type CacheResetter interface {
	ResetStore(ctx context.Context) error
}

// Session describes the logged in operator. Subject and ExpiresAt are read
// from the token without verifying it and are informational only.
type Session struct {
	Token       string    `json:"-"`
	DisplayName string    `json:"usuarioNome"`
	Subject     string    `json:"subject,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

type Store struct {
	slot   Slot
	logger *log.Logger

	mu       sync.RWMutex
	token    string
	name     string
	resetter CacheResetter
}

// NewStore restores a previously persisted session from slot, if any.
func NewStore(ctx context.Context, slot Slot, logger *log.Logger) (*Store, error) {
	s := &Store{
		slot:   slot,
		logger: log.OrNop(logger).WithComponent(log.ComponentSession),
	}

	token, ok, err := slot.Get(ctx, KeyToken)
	if err != nil {
		return nil, fmt.Errorf("load session token: %w", err)
	}
	if !ok || token == "" {
		return s, nil
	}
	name, _, err := slot.Get(ctx, KeyName)
	if err != nil {
		return nil, fmt.Errorf("load session name: %w", err)
	}
	s.token, s.name = token, name
	s.logger.InfoContext(ctx, "Session restored", log.FieldUser, name)
	return s, nil
}

// BindCache sets the view store emptied on logout.
func (s *Store) BindCache(r CacheResetter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetter = r
}

// Login persists the token and display name. Replacing another session's
// token resets the bound view store, so nothing cached under the previous
// operator stays visible.
func (s *Store) Login(ctx context.Context, token, displayName string) error {
	if token == "" {
		return errors.New("login: empty token")
	}
	s.mu.Lock()
	if err := s.slot.Put(ctx, map[string]string{KeyToken: token, KeyName: displayName}); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist session: %w", err)
	}
	replaced := s.token != "" && s.token != token
	previous := s.name
	s.token, s.name = token, displayName
	resetter := s.resetter
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Session started", log.FieldUser, displayName)
	if !replaced || resetter == nil {
		return nil
	}
	s.logger.InfoContext(ctx, "Previous session replaced", "previous_user", previous)
	if err := resetter.ResetStore(ctx); err != nil {
		return fmt.Errorf("reset view store: %w", err)
	}
	return nil
}

// Logout clears the slot and then resets the bound view store. The session
// is gone from memory even when the slot cannot be cleared.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	name := s.name
	s.token, s.name = "", ""
	slotErr := s.slot.Delete(ctx, KeyToken, KeyName)
	resetter := s.resetter
	s.mu.Unlock()

	var resetErr error
	if resetter != nil {
		resetErr = resetter.ResetStore(ctx)
	}

	s.logger.InfoContext(ctx, "Session ended", log.FieldUser, name)
	if slotErr != nil {
		return fmt.Errorf("clear session: %w", slotErr)
	}
	if resetErr != nil {
		return fmt.Errorf("reset view store: %w", resetErr)
	}
	return nil
}

// Expire tears the session down after the backend rejected it. Without a
// session it does nothing, so repeated rejections log out only once.
func (s *Store) Expire(ctx context.Context, cause error) error {
	if _, ok := s.CurrentToken(); !ok {
		return nil
	}
	s.logger.WarnContext(ctx, "Session rejected by backend, logging out", log.FieldError, cause)
	return s.Logout(ctx)
}

// CurrentToken implements transport.TokenSource.
func (s *Store) CurrentToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *Store) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Authenticated reports whether a token is present. Validity is the
// backend's call.
func (s *Store) Authenticated() bool {
	_, ok := s.CurrentToken()
	return ok
}

func (s *Store) Current() (Session, error) {
	s.mu.RLock()
	sess := Session{Token: s.token, DisplayName: s.name}
	s.mu.RUnlock()

	if sess.Token == "" {
		return Session{}, ErrNoSession
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(sess.Token, &claims); err == nil {
		sess.Subject = claims.Subject
		if claims.ExpiresAt != nil {
			sess.ExpiresAt = claims.ExpiresAt.Time
		}
	}
	return sess, nil
}
