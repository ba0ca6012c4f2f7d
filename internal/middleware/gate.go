// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authorization, abuse
// protection and response hardening.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/olegiv/confreg/internal/session"
)

// ContextKey is a type for context keys used in this package.
type ContextKey string

// ContextKeySession is the context key for the authenticated session.
const ContextKeySession ContextKey = "session"

// Gate checks the session cookie of each request against the registry.
type Gate struct {
	registry *session.Registry
	cookie   session.Cookie
	logger   *slog.Logger
}

// NewGate creates a Gate.
func NewGate(registry *session.Registry, cookie session.Cookie, logger *slog.Logger) *Gate {
	return &Gate{registry: registry, cookie: cookie, logger: logger}
}

// Require returns middleware admitting only sessions whose role is one of
// roles. Requests without a live session have their cookie cleared and are
// redirected to loginPath with 303 See Other; live sessions with another
// role get 403 Forbidden.
func (g *Gate) Require(loginPath string, roles ...session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := g.cookie.Token(r)
			s, err := g.registry.Validate(token)
			if err != nil {
				if token != "" {
					g.cookie.Clear(w)
				}
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			if !slices.Contains(roles, s.Role) {
				g.logger.Warn("access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"role", string(s.Role),
					"principal", s.Principal,
					"category", "auth",
				)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeySession, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Current returns the live session for r without enforcing a role.
func (g *Gate) Current(r *http.Request) (session.Session, bool) {
	s, err := g.registry.Validate(g.cookie.Token(r))
	return s, err == nil
}

// SessionFromContext returns the session stored by Gate.Require.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(ContextKeySession).(session.Session)
	return s, ok
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s session.Session) context.Context {
	return context.WithValue(ctx, ContextKeySession, s)
}
