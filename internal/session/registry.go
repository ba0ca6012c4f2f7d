// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session keeps the in-memory registry of authenticated sessions
// and the cookie policy that carries their tokens.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/olegiv/confreg/internal/clock"
)

// Role is the privilege level attached to a session.
type Role string

// Roles.
const (
	RoleGuest Role = "guest"
	RoleAdmin Role = "admin"
)

// AdminPrincipal is the principal of every admin session.
const AdminPrincipal = "admin"

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 10 * time.Minute

// tokenBytes is the amount of randomness in a token.
const tokenBytes = 32

// ErrUnauthenticated is returned for missing, unknown or expired tokens.
var ErrUnauthenticated = errors.New("session: unauthenticated")

// Session is one authenticated login.
type Session struct {
	Token     string
	Principal string
	Role      Role
	Expires   time.Time
}

// Registry maps opaque tokens to sessions. It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	clock    clock.Clock
	random   func([]byte) (int, error)
}

// NewRegistry returns an empty registry whose sessions live for ttl.
func NewRegistry(ttl time.Duration, clk clock.Clock) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Registry{
		sessions: make(map[string]Session),
		ttl:      ttl,
		clock:    clk,
		random:   rand.Read,
	}
}

// TTL returns the configured session lifetime.
func (r *Registry) TTL() time.Duration { return r.ttl }

// Issue creates a session for principal with role.
func (r *Registry) Issue(principal string, role Role) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for range 8 {
		token, err := r.newToken()
		if err != nil {
			return Session{}, err
		}
		if _, taken := r.sessions[token]; taken {
			continue
		}
		s := Session{
			Token:     token,
			Principal: principal,
			Role:      role,
			Expires:   r.clock.Now().Add(r.ttl),
		}
		r.sessions[token] = s
		return s, nil
	}
	return Session{}, errors.New("session: could not allocate a unique token")
}

// Validate returns the live session for token. Expired sessions are removed.
func (r *Registry) Validate(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrUnauthenticated
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return Session{}, ErrUnauthenticated
	}
	if r.clock.Now().After(s.Expires) {
		delete(r.sessions, token)
		return Session{}, ErrUnauthenticated
	}
	return s, nil
}

// Revoke deletes token. Unknown tokens are ignored.
func (r *Registry) Revoke(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

// RevokePrincipal deletes every session of principal and returns how many
// were removed.
func (r *Registry) RevokePrincipal(principal string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for token, s := range r.sessions {
		if s.Principal == principal {
			delete(r.sessions, token)
			n++
		}
	}
	return n
}

// Sweep removes expired sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	n := 0
	for token, s := range r.sessions {
		if now.After(s.Expires) {
			delete(r.sessions, token)
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions, expired ones included until swept.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Has reports whether token is stored, without checking expiry.
func (r *Registry) Has(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[token]
	return ok
}

func (r *Registry) newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := r.random(b); err != nil {
		return "", fmt.Errorf("session: reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
