// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"net/http"
	"time"
)

// CookieName is the name of the session token cookie.
const CookieName = "session_id"

// Cookie holds the attributes of the session token cookie.
type Cookie struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// NewCookie returns the cookie policy for sessions lasting ttl.
func NewCookie(ttl time.Duration, secure bool) Cookie {
	return Cookie{Name: CookieName, Secure: secure, MaxAge: ttl}
}

// Set writes the token cookie.
func (c Cookie) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the token cookie.
func (c Cookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Token returns the token carried by r, or "".
func (c Cookie) Token(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}
