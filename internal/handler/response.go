// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/olegiv/confreg/internal/guest"
	"github.com/olegiv/confreg/internal/middleware"
	"github.com/olegiv/confreg/internal/render"
	"github.com/olegiv/confreg/internal/session"
	"github.com/olegiv/confreg/internal/settings"
	"github.com/olegiv/confreg/internal/table"
	"github.com/olegiv/confreg/internal/uploads"
)

// base carries what every handler needs to render a page.
type base struct {
	renderer *render.Renderer
	settings *settings.Store
	logger   *slog.Logger
}

// errorPage is the payload of pages/error.
type errorPage struct {
	Status     int
	StatusText string
	Message    string
}

// page builds template data for r. The conference settings are always
// present; a broken settings file yields the defaults.
func (b base) page(r *http.Request, title string, payload any) render.TemplateData {
	conf, err := b.settings.Get()
	if err != nil {
		b.logger.Error("failed to load settings", "error", err)
		conf = settings.Defaults()
	}
	data := render.TemplateData{Title: title, Conference: conf, Data: payload}
	if s, ok := middleware.SessionFromContext(r.Context()); ok {
		data.Principal = s.Principal
		data.IsAdmin = s.Role == session.RoleAdmin
	}
	return data
}

// render writes page with status, falling back to a plain error when the
// template fails.
func (b base) render(w http.ResponseWriter, r *http.Request, status int, name string, data render.TemplateData) {
	if err := b.renderer.Render(w, r, status, name, data); err != nil {
		b.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// showError renders the error page.
func (b base) showError(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := b.page(r, http.StatusText(status), errorPage{
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    message,
	})
	b.render(w, r, status, pageError, data)
}

// fail translates err into a response. action names what was attempted,
// for the log.
func (b base) fail(w http.ResponseWriter, r *http.Request, err error, action string) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		b.logger.Error("failed to "+action, "error", err, "path", r.URL.Path)
	} else {
		b.logger.Warn("could not "+action, "error", err, "status", status, "path", r.URL.Path)
	}
	b.showError(w, r, status, message)
}

// classify maps domain errors to a status code and user facing message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, table.ErrBusy):
		return http.StatusServiceUnavailable, msgBusy
	case errors.Is(err, guest.ErrInvalid):
		return http.StatusBadRequest, joinProblems(guest.Problems(err))
	case errors.Is(err, guest.ErrDuplicatePhone):
		return http.StatusBadRequest, msgDuplicatePhone
	case errors.Is(err, uploads.ErrTooLarge):
		return http.StatusBadRequest, "File too large."
	case errors.Is(err, uploads.ErrInvalidName):
		return http.StatusBadRequest, "Invalid file name."
	case errors.Is(err, guest.ErrNotFound), errors.Is(err, uploads.ErrNotFound), errors.Is(err, table.ErrNotFound):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, table.ErrCorrupt):
		return http.StatusInternalServerError, "The guest database is damaged. Please contact the organisers."
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again later."
	}
}

func joinProblems(problems []string) string {
	if len(problems) == 0 {
		return msgBadForm
	}
	return strings.Join(problems, " ")
}

// flashAndRedirect sets a flash message and redirects with 303 See Other.
func (b base) flashAndRedirect(w http.ResponseWriter, r *http.Request, url, message, flashType string) {
	b.renderer.SetFlash(r, message, flashType)
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func (b base) flashSuccess(w http.ResponseWriter, r *http.Request, url, message string) {
	b.flashAndRedirect(w, r, url, message, render.FlashSuccess)
}

func (b base) flashError(w http.ResponseWriter, r *http.Request, url, message string) {
	b.flashAndRedirect(w, r, url, message, render.FlashError)
}

// currentSession returns the session placed in the context by the gate.
// Routes behind the gate always have one.
func currentSession(r *http.Request) session.Session {
	s, _ := middleware.SessionFromContext(r.Context())
	return s
}

// inputFromForm reads the guest form fields.
func inputFromForm(r *http.Request) guest.Input {
	in := guest.Input{
		Name:        r.PostFormValue("name"),
		Email:       r.PostFormValue("email"),
		Institution: r.PostFormValue("institution"),
		Phone:       r.PostFormValue("phone"),
	}
	for i := range in.Fields {
		in.Fields[i] = r.PostFormValue(fmt.Sprintf("field%d", i+1))
	}
	return in
}

// inputFromGuest prefills a form from a stored guest.
func inputFromGuest(g guest.Guest) guest.Input {
	return guest.Input{
		Name:        g.Name,
		Email:       g.Email,
		Institution: g.Institution,
		Phone:       g.Phone,
		Fields:      g.Fields,
	}
}
