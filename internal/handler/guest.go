// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/confreg/internal/guest"
	"github.com/olegiv/confreg/internal/logging"
	"github.com/olegiv/confreg/internal/render"
	"github.com/olegiv/confreg/internal/session"
	"github.com/olegiv/confreg/internal/uploads"
	"github.com/olegiv/confreg/internal/util"
)

// GuestHandler serves the logged in guest's own pages.
type GuestHandler struct {
	base
	guests   *guest.Repository
	uploads  *uploads.Area
	sessions *session.Registry
	cookie   session.Cookie
}

// profilePage is the payload of pages/guest and admin/guest.
type profilePage struct {
	Guest          guest.Guest
	Form           guest.Input
	Files          []uploads.File
	DownloadPrefix string
	MaxUpload      int64
}

// load returns the session's guest. A guest removed from the table (for
// example by a clear) loses the session and is sent back to login.
func (h *GuestHandler) load(w http.ResponseWriter, r *http.Request) (guest.Guest, bool) {
	s := currentSession(r)
	g, err := h.guests.FindByID(r.Context(), s.Principal)
	if errors.Is(err, guest.ErrNotFound) {
		h.sessions.Revoke(s.Token)
		h.cookie.Clear(w)
		h.flashError(w, r, RouteLogin, "Your registration could not be found. Please register again.")
		return guest.Guest{}, false
	}
	if err != nil {
		h.fail(w, r, err, "load guest")
		return guest.Guest{}, false
	}
	return g, true
}

func (h *GuestHandler) profile(r *http.Request, g guest.Guest, form guest.Input) (profilePage, error) {
	files, err := h.uploads.List(g.ID)
	if err != nil {
		return profilePage{}, err
	}
	return profilePage{
		Guest:          g,
		Form:           form,
		Files:          files,
		DownloadPrefix: "/guest/download/",
		MaxUpload:      h.uploads.MaxSize(),
	}, nil
}

// Profile renders GET /guest.
func (h *GuestHandler) Profile(w http.ResponseWriter, r *http.Request) {
	g, ok := h.load(w, r)
	if !ok {
		return
	}
	p, err := h.profile(r, g, inputFromGuest(g))
	if err != nil {
		h.fail(w, r, err, "list uploads")
		return
	}
	h.render(w, r, http.StatusOK, pageGuest, h.page(r, g.Name, p))
}

// Update handles POST /guest/update. The phone number cannot be changed here.
func (h *GuestHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.showError(w, r, http.StatusBadRequest, msgBadForm)
		return
	}
	s := currentSession(r)
	in := inputFromForm(r)

	g, err := h.guests.UpdateProfile(r.Context(), s.Principal, in)
	if errors.Is(err, guest.ErrInvalid) {
		current, ok := h.load(w, r)
		if !ok {
			return
		}
		in.Phone = current.Phone
		p, lerr := h.profile(r, current, in)
		if lerr != nil {
			h.fail(w, r, lerr, "list uploads")
			return
		}
		data := h.page(r, current.Name, p)
		data.Errors = guest.Problems(err)
		h.render(w, r, http.StatusBadRequest, pageGuest, data)
		return
	}
	if err != nil {
		h.fail(w, r, err, "update profile")
		return
	}
	h.logger.Info("guest updated profile", "guest_id", g.ID, "category", logging.CategoryRegistration)
	h.flashSuccess(w, r, RouteGuest, "Profile updated.")
}

// Upload handles POST /guest/upload.
func (h *GuestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	s := currentSession(r)
	name, ok := saveUpload(w, r, h.base, h.uploads, s.Principal)
	if !ok {
		return
	}
	h.logger.Info("guest uploaded file", "guest_id", s.Principal, "file", name, "category", logging.CategoryUpload)
	h.flashSuccess(w, r, RouteGuest, "File uploaded.")
}

// Download streams one of the guest's own files.
func (h *GuestHandler) Download(w http.ResponseWriter, r *http.Request) {
	serveUpload(w, r, h.base, h.uploads, currentSession(r).Principal, chi.URLParam(r, "name"))
}

// saveUpload stores the multipart "file" field under principal. It writes
// the error response itself and returns false on failure.
func saveUpload(w http.ResponseWriter, r *http.Request, b base, area *uploads.Area, principal string) (string, bool) {
	// Leave room for the multipart envelope; Save enforces the exact limit.
	r.Body = http.MaxBytesReader(w, r.Body, area.MaxSize()+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			b.fail(w, r, uploads.ErrTooLarge, "upload file")
		} else {
			b.showError(w, r, http.StatusBadRequest, msgNoFile)
		}
		return "", false
	}
	defer func() { _ = file.Close() }()

	saved, err := area.Save(principal, header.Filename, file)
	if err != nil {
		if errors.Is(err, uploads.ErrTooLarge) {
			b.showError(w, r, http.StatusBadRequest,
				"File too large. The limit is "+render.FormatSize(area.MaxSize())+".")
			return "", false
		}
		b.fail(w, r, err, "upload file")
		return "", false
	}
	return saved.Name, true
}

// serveUpload writes principal's file name as an attachment.
func serveUpload(w http.ResponseWriter, r *http.Request, b base, area *uploads.Area, principal, name string) {
	dl, err := area.Open(principal, name)
	if err != nil {
		b.fail(w, r, err, "open upload")
		return
	}
	defer func() { _ = dl.Close() }()

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", util.ContentDisposition(dl.Info.Name))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, dl.Info.Name, dl.Info.ModTime, dl.File)
}
