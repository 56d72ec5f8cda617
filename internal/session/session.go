// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package session authenticates callers against the realm and tracks their
// sessions.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/procauth/internal/security"
)

// DefaultTTL is how long a session stays valid unless WithTTL says otherwise.
const DefaultTTL = 24 * time.Hour

// TokenBytes is the number of random bytes in a session token.
const TokenBytes = 32

// Session is a logged-in caller. Sessions carry only who logged in; roles
// and flags are read from the realm on every call.
type Session struct {
	// ID identifies the session in logs. It is not a credential.
	ID ulid.ULID
	// Token is the bearer credential. It is set only on the value returned
	// by Login; the manager keeps its hash.
	Token        string
	Username     string
	AuthDisabled bool
	CreatedAt    time.Time
	// ExpiresAt is zero for the auth-disabled session.
	ExpiresAt time.Time
}

// dummyPasswordHash is verified when the user does not exist so that unknown
// usernames take as long as wrong passwords.
//
//nolint:gosec // G101: not a credential, never matches any password.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Manager creates and tracks sessions. It is safe for concurrent use.
type Manager struct {
	realm  security.Realm
	hasher security.PasswordHasher
	ttl    time.Duration

	mu sync.RWMutex
	// sessions is keyed by the SHA-256 of the token.
	sessions map[string]Session
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the session lifetime. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewManager creates a session manager backed by realm.
func NewManager(realm security.Realm, hasher security.PasswordHasher, opts ...Option) *Manager {
	m := &Manager{
		realm:    realm,
		hasher:   hasher,
		ttl:      DefaultTTL,
		sessions: make(map[string]Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login verifies username and password and opens a session. Unknown users
// and wrong passwords fail alike with AUTH_FAILED; suspended users fail with
// USER_SUSPENDED after their password checks out.
func (m *Manager) Login(ctx context.Context, username, password string) (Session, error) {
	u, lookupErr := m.realm.GetUser(ctx, username)
	if lookupErr != nil && !errors.Is(lookupErr, security.ErrNotFound) {
		recordLogin(StatusError)
		return Session{}, oops.Code(CodeLoginFailed).
			With("operation", "get user").
			With("username", username).
			Wrap(lookupErr)
	}

	hash := dummyPasswordHash
	if u != nil {
		hash = u.PasswordHash
	}
	valid, verifyErr := m.hasher.Verify(password, hash)
	if u == nil || verifyErr != nil || !valid {
		if verifyErr != nil && u != nil {
			slog.WarnContext(ctx, "stored password hash is unreadable",
				"username", username,
				"error", verifyErr)
		}
		recordLogin(StatusFailed)
		return Session{}, authFailed()
	}

	if u.Suspended {
		recordLogin(StatusSuspended)
		return Session{}, userSuspended(username)
	}

	s, err := m.open(username)
	if err != nil {
		recordLogin(StatusError)
		return Session{}, err
	}
	recordLogin(StatusSuccess)
	slog.InfoContext(ctx, "user logged in",
		"username", username,
		"session_id", s.ID.String(),
		"password_change_required", u.PasswordChangeRequired)
	return s, nil
}

// AuthDisabled returns the session for a deployment with authentication
// turned off. Calls made with it run with full access. It has no token and
// is not tracked.
func (m *Manager) AuthDisabled() Session {
	return Session{
		ID:           ulid.Make(),
		AuthDisabled: true,
		CreatedAt:    m.now(),
	}
}

func (m *Manager) open(username string) (Session, error) {
	token, err := generateToken()
	if err != nil {
		return Session{}, err
	}

	now := m.now()
	s := Session{
		ID:        ulid.Make(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[hashToken(token)] = s
	m.mu.Unlock()

	s.Token = token
	return s, nil
}

// generateToken returns a hex-encoded token of TokenBytes random bytes.
func generateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code(CodeTokenGenerate).
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Get returns the session for token. Expired sessions are removed and fail
// with SESSION_EXPIRED.
func (m *Manager) Get(token string) (Session, error) {
	if token == "" {
		return Session{}, sessionNotFound()
	}
	key := hashToken(token)

	m.mu.RLock()
	s, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return Session{}, sessionNotFound()
	}

	if !m.now().Before(s.ExpiresAt) {
		m.mu.Lock()
		delete(m.sessions, key)
		m.mu.Unlock()
		return Session{}, sessionExpired(s)
	}
	return s, nil
}

// Logout ends the session for token.
func (m *Manager) Logout(token string) error {
	key := hashToken(token)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[key]; !ok {
		return sessionNotFound()
	}
	delete(m.sessions, key)
	return nil
}

// DeleteExpired removes every expired session and returns how many it
// removed.
func (m *Manager) DeleteExpired() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, key)
			removed++
		}
	}
	return removed
}

// Sweep calls DeleteExpired every interval until ctx is done.
func (m *Manager) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.DeleteExpired(); n > 0 {
				slog.DebugContext(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}

// Count returns the number of tracked sessions, expired ones included until
// they are swept.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
