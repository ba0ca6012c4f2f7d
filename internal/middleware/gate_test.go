// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/confreg/internal/clock"
	"github.com/olegiv/confreg/internal/session"
	"github.com/olegiv/confreg/internal/testutil"
)

type gateFixture struct {
	clock    *clock.FakeClock
	registry *session.Registry
	cookie   session.Cookie
	gate     *Gate
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	reg := session.NewRegistry(time.Minute, clk)
	ck := session.NewCookie(time.Minute, false)
	return &gateFixture{
		clock:    clk,
		registry: reg,
		cookie:   ck,
		gate:     NewGate(reg, ck, testutil.TestLoggerSilent()),
	}
}

func (f *gateFixture) serve(t *testing.T, h http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/guest", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFromContext(r.Context())
		require.True(t, ok, "session must be in context")
		_, _ = w.Write([]byte(s.Principal))
	})
}

func TestGateRequire(t *testing.T) {
	f := newGateFixture(t)
	guestOnly := f.gate.Require("/login", session.RoleGuest)(okHandler(t))

	t.Run("no cookie redirects", func(t *testing.T) {
		rec := f.serve(t, guestOnly, "")
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		assert.Empty(t, rec.Header().Get("Set-Cookie"))
	})

	t.Run("unknown token clears cookie", func(t *testing.T) {
		rec := f.serve(t, guestOnly, "bogus")
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
	})

	t.Run("guest admitted", func(t *testing.T) {
		s, err := f.registry.Issue("a1b2c3d4", session.RoleGuest)
		require.NoError(t, err)
		rec := f.serve(t, guestOnly, s.Token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "a1b2c3d4", rec.Body.String())
	})

	t.Run("admin forbidden on guest route", func(t *testing.T) {
		s, err := f.registry.Issue(session.AdminPrincipal, session.RoleAdmin)
		require.NoError(t, err)
		rec := f.serve(t, guestOnly, s.Token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestGateExpiredSession(t *testing.T) {
	f := newGateFixture(t)
	adminOnly := f.gate.Require("/admin/login", session.RoleAdmin)(okHandler(t))

	s, err := f.registry.Issue(session.AdminPrincipal, session.RoleAdmin)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	rec := f.serve(t, adminOnly, s.Token)
	assert.Equal(t, http.StatusOK, rec.Code, "expiry instant itself is still valid")

	f.clock.Advance(time.Second)
	rec = f.serve(t, adminOnly, s.Token)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))
}

func TestGateCurrent(t *testing.T) {
	f := newGateFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := f.gate.Current(req)
	assert.False(t, ok)

	s, err := f.registry.Issue("a1b2c3d4", session.RoleGuest)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: s.Token})
	got, ok := f.gate.Current(req)
	assert.True(t, ok)
	assert.Equal(t, "a1b2c3d4", got.Principal)
}
