// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/olegiv/confreg/internal/auth"
	"github.com/olegiv/confreg/internal/guest"
	"github.com/olegiv/confreg/internal/logging"
	"github.com/olegiv/confreg/internal/middleware"
	"github.com/olegiv/confreg/internal/session"
	"github.com/olegiv/confreg/internal/util"
)

// AuthHandler handles guest and admin login and logout.
type AuthHandler struct {
	base
	guests          *guest.Repository
	sessions        *session.Registry
	cookie          session.Cookie
	admin           *auth.AdminSecret
	gate            *middleware.Gate
	loginProtection *middleware.LoginProtection
}

// LoginForm renders the guest login page. Logged in users go to their home.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.gate.Current(r); ok {
		http.Redirect(w, r, homeFor(s), http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, pageLogin, h.page(r, "Log in", nil))
}

// GuestLogin handles POST /guest/login. Unknown phone numbers are sent to
// the registration form with the number prefilled.
func (h *AuthHandler) GuestLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.showError(w, r, http.StatusBadRequest, msgBadForm)
		return
	}
	phone := h.guests.NormalizePhone(r.PostForm.Get("phone"))
	if len(phone) < guest.MinPhoneDigits {
		data := h.page(r, "Log in", nil)
		data.Errors = []string{msgInvalidPhone}
		h.render(w, r, http.StatusBadRequest, pageLogin, data)
		return
	}

	g, err := h.guests.FindByPhone(r.Context(), phone)
	if errors.Is(err, guest.ErrNotFound) {
		http.Redirect(w, r, RouteRegister+"?phone="+url.QueryEscape(phone), http.StatusSeeOther)
		return
	}
	if err != nil {
		h.fail(w, r, err, "look up guest")
		return
	}

	if err := h.startSession(w, r, g.ID, session.RoleGuest); err != nil {
		h.fail(w, r, err, "start guest session")
		return
	}
	h.logger.Info("guest logged in",
		"guest_id", g.ID,
		"ip", middleware.ClientIP(r),
		"agent", util.DescribeUserAgent(r.UserAgent()),
		"category", logging.CategoryAuth,
	)
	http.Redirect(w, r, RouteGuest, http.StatusSeeOther)
}

// AdminLoginForm renders the admin login page.
func (h *AuthHandler) AdminLoginForm(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.gate.Current(r); ok && s.Role == session.RoleAdmin {
		http.Redirect(w, r, RouteAdmin, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, pageAdminLogin, h.page(r, "Admin login", nil))
}

// AdminLogin handles POST /admin/login.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.showError(w, r, http.StatusBadRequest, msgBadForm)
		return
	}
	ip := middleware.ClientIP(r)
	agent := util.DescribeUserAgent(r.UserAgent())

	if locked, remaining := h.loginProtection.IsAccountLocked(session.AdminPrincipal); locked {
		h.logger.Warn("admin login while locked", "ip", ip, "agent", agent, "category", logging.CategoryAuth)
		h.adminLoginError(w, r, http.StatusTooManyRequests,
			fmt.Sprintf("Too many failed attempts. Try again in %s.", remaining.Round(time.Second)))
		return
	}

	if !h.admin.Verify(r.PostForm.Get("password")) {
		locked, _ := h.loginProtection.RecordFailedAttempt(session.AdminPrincipal)
		h.logger.Warn("admin login failed",
			"ip", ip,
			"agent", agent,
			"locked", locked,
			"category", logging.CategoryAuth,
		)
		h.adminLoginError(w, r, http.StatusUnauthorized, msgBadPassword)
		return
	}

	h.loginProtection.RecordSuccessfulLogin(session.AdminPrincipal)
	if err := h.startSession(w, r, session.AdminPrincipal, session.RoleAdmin); err != nil {
		h.fail(w, r, err, "start admin session")
		return
	}
	h.logger.Info("admin logged in", "ip", ip, "agent", agent, "category", logging.CategoryAuth)
	http.Redirect(w, r, RouteAdmin, http.StatusSeeOther)
}

func (h *AuthHandler) adminLoginError(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := h.page(r, "Admin login", nil)
	data.Errors = []string{message}
	h.render(w, r, status, pageAdminLogin, data)
}

// Logout revokes the session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := h.cookie.Token(r); token != "" {
		if s, err := h.sessions.Validate(token); err == nil {
			h.logger.Info("logged out", "principal", s.Principal, "role", string(s.Role), "category", logging.CategoryAuth)
		}
		h.sessions.Revoke(token)
	}
	h.cookie.Clear(w)
	http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, principal string, role session.Role) error {
	return startSession(w, r, h.sessions, h.cookie, principal, role)
}

// startSession replaces any session carried by r with a new one.
func startSession(w http.ResponseWriter, r *http.Request, reg *session.Registry, cookie session.Cookie, principal string, role session.Role) error {
	if old := cookie.Token(r); old != "" {
		reg.Revoke(old)
	}
	s, err := reg.Issue(principal, role)
	if err != nil {
		return err
	}
	cookie.Set(w, s.Token)
	return nil
}

// homeFor returns the landing page of a session's role.
func homeFor(s session.Session) string {
	if s.Role == session.RoleAdmin {
		return RouteAdmin
	}
	return RouteGuest
}
