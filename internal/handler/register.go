// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"net/http"

	"github.com/olegiv/confreg/internal/guest"
	"github.com/olegiv/confreg/internal/logging"
	"github.com/olegiv/confreg/internal/session"
	"github.com/olegiv/confreg/internal/settings"
)

// RegisterHandler handles public self-registration.
type RegisterHandler struct {
	base
	guests   *guest.Repository
	sessions *session.Registry
	cookie   session.Cookie
}

// registrationOpen renders the closed notice with 403 and returns false when
// registration is switched off.
func (h *RegisterHandler) registrationOpen(w http.ResponseWriter, r *http.Request) bool {
	conf, err := h.settings.Get()
	if err != nil {
		h.logger.Error("failed to load settings", "error", err)
		conf = settings.Defaults()
	}
	if conf.RegistrationOpen {
		return true
	}
	data := h.page(r, "Registration closed", nil)
	h.render(w, r, http.StatusForbidden, pageClosed, data)
	return false
}

// Form renders the registration form, prefilling ?phone=.
func (h *RegisterHandler) Form(w http.ResponseWriter, r *http.Request) {
	if !h.registrationOpen(w, r) {
		return
	}
	form := guest.Input{Phone: h.guests.NormalizePhone(r.URL.Query().Get("phone"))}
	h.render(w, r, http.StatusOK, pageRegister, h.page(r, "Register", form))
}

// Submit creates a guest and logs them in.
func (h *RegisterHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if !h.registrationOpen(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.showError(w, r, http.StatusBadRequest, msgBadForm)
		return
	}
	in := inputFromForm(r)

	g, err := h.guests.Register(r.Context(), in)
	switch {
	case errors.Is(err, guest.ErrInvalid):
		h.formError(w, r, in, guest.Problems(err))
		return
	case errors.Is(err, guest.ErrDuplicatePhone):
		h.formError(w, r, in, []string{msgDuplicatePhone})
		return
	case err != nil:
		h.fail(w, r, err, "register guest")
		return
	}

	if err := startSession(w, r, h.sessions, h.cookie, g.ID, session.RoleGuest); err != nil {
		h.fail(w, r, err, "start guest session")
		return
	}
	h.logger.Info("guest registered via web", "guest_id", g.ID, "category", logging.CategoryRegistration)
	http.Redirect(w, r, RouteGuest, http.StatusSeeOther)
}

func (h *RegisterHandler) formError(w http.ResponseWriter, r *http.Request, in guest.Input, problems []string) {
	data := h.page(r, "Register", in)
	data.Errors = problems
	h.render(w, r, http.StatusBadRequest, pageRegister, data)
}
