// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuestLoginUnknownPhone(t *testing.T) {
	app := newTestApp(t)

	resp := app.client().postForm(RouteGuestLogin, url.Values{"phone": {"555-000-1111"}})
	assertStatus(t, resp.status, http.StatusSeeOther)
	assert.Equal(t, "/register?phone=5550001111", resp.location)
}

func TestGuestLoginInvalidPhone(t *testing.T) {
	app := newTestApp(t)

	resp := app.client().postForm(RouteGuestLogin, url.Values{"phone": {"12"}})
	assertStatus(t, resp.status, http.StatusBadRequest)
	assert.Contains(t, resp.body, msgInvalidPhone)
}

func TestSessionExpiry(t *testing.T) {
	app := newTestApp(t, withSessionTTL(time.Minute))
	c := app.register("Ada", "ada@x.io", "UCL", "020 7946 0958")
	token := c.sessionToken()
	require.True(t, app.sessions.Has(token))

	app.clock.Advance(61 * time.Second)

	resp := c.get(RouteGuest)
	assertStatus(t, resp.status, http.StatusSeeOther)
	assert.Equal(t, RouteLogin, resp.location)
	assert.False(t, app.sessions.Has(token), "expired token must be removed")
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	c := app.register("Ada", "ada@x.io", "UCL", "020 7946 0958")
	token := c.sessionToken()

	resp := c.get(RouteLogout)
	assertStatus(t, resp.status, http.StatusSeeOther)
	assert.Equal(t, RouteLogin, resp.location)
	assert.False(t, app.sessions.Has(token))
	assert.Empty(t, c.sessionToken())

	resp = c.get(RouteGuest)
	assertStatus(t, resp.status, http.StatusSeeOther)
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	app := newTestApp(t)
	c := app.register("Ada", "ada@x.io", "UCL", "020 7946 0958")
	old := c.sessionToken()

	resp := c.postForm(RouteGuestLogin, url.Values{"phone": {"02079460958"}})
	assertStatus(t, resp.status, http.StatusSeeOther)
	assert.False(t, app.sessions.Has(old))
	assert.True(t, app.sessions.Has(c.sessionToken()))
}

func TestAdminLogin(t *testing.T) {
	app := newTestApp(t)

	resp := app.client().postForm(RouteAdminLogin, url.Values{"password": {"wrong"}})
	assertStatus(t, resp.status, http.StatusUnauthorized)
	assert.Contains(t, resp.body, msgBadPassword)

	c := app.adminClient()
	resp = c.get(RouteAdmin)
	assertStatus(t, resp.status, http.StatusOK)
	assert.Contains(t, resp.body, "Dashboard")

	resp = c.get(RouteAdminLogin)
	assertStatus(t, resp.status, http.StatusSeeOther)
	assert.Equal(t, RouteAdmin, resp.location)
}

func TestAdminLoginLockout(t *testing.T) {
	app := newTestApp(t, withMaxAttempts(2))
	c := app.client()

	for range 2 {
		resp := c.postForm(RouteAdminLogin, url.Values{"password": {"wrong"}})
		assertStatus(t, resp.status, http.StatusUnauthorized)
	}
	resp := c.postForm(RouteAdminLogin, url.Values{"password": {testAdminPassword}})
	assertStatus(t, resp.status, http.StatusTooManyRequests)
	assert.Empty(t, c.sessionToken())
}

func TestUnauthenticatedRedirects(t *testing.T) {
	app := newTestApp(t)
	c := app.client()

	tests := []struct {
		path string
		want string
	}{
		{RouteRoot, RouteLogin},
		{RouteGuest, RouteLogin},
		{RouteAdmin, RouteAdminLogin},
		{RouteAdminGuests, RouteAdminLogin},
		{RouteAdminSettings, RouteAdminLogin},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := c.get(tt.path)
			assertStatus(t, resp.status, http.StatusSeeOther)
			assert.Equal(t, tt.want, resp.location)
		})
	}
}
