// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/confreg/internal/auth"
	"github.com/olegiv/confreg/internal/guest"
	"github.com/olegiv/confreg/internal/middleware"
	"github.com/olegiv/confreg/internal/render"
	"github.com/olegiv/confreg/internal/scheduler"
	"github.com/olegiv/confreg/internal/session"
	"github.com/olegiv/confreg/internal/settings"
	"github.com/olegiv/confreg/internal/uploads"
)

// Deps are the services the router is built from.
type Deps struct {
	Guests          *guest.Repository
	Settings        *settings.Store
	Sessions        *session.Registry
	Cookie          session.Cookie
	Uploads         *uploads.Area
	Admin           *auth.AdminSecret
	Renderer        *render.Renderer
	Flash           *scs.SessionManager
	LoginProtection *middleware.LoginProtection
	Scheduler       *scheduler.Scheduler // optional
	KeepBackups     int
	Static          fs.FS // served under /static/, optional

	// Middleware applied after the built-in stack, typically CSRF and
	// security headers.
	Middleware []func(http.Handler) http.Handler
	// RequestTimeout bounds each request; zero disables it.
	RequestTimeout time.Duration
	// AccessLog enables chi's request logger.
	AccessLog bool
	Logger    *slog.Logger
}

// NewRouter builds the HTTP handler for the whole site.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := base{renderer: d.Renderer, settings: d.Settings, logger: logger}
	gate := middleware.NewGate(d.Sessions, d.Cookie, logger)

	authH := &AuthHandler{
		base:            b,
		guests:          d.Guests,
		sessions:        d.Sessions,
		cookie:          d.Cookie,
		admin:           d.Admin,
		gate:            gate,
		loginProtection: d.LoginProtection,
	}
	registerH := &RegisterHandler{base: b, guests: d.Guests, sessions: d.Sessions, cookie: d.Cookie}
	guestH := &GuestHandler{base: b, guests: d.Guests, uploads: d.Uploads, sessions: d.Sessions, cookie: d.Cookie}
	adminH := &AdminHandler{
		base:      b,
		guests:    d.Guests,
		uploads:   d.Uploads,
		sessions:  d.Sessions,
		admin:     d.Admin,
		scheduler: d.Scheduler,
	}
	settingsH := &SettingsHandler{base: b}
	backupsH := &BackupsHandler{base: b, store: d.Guests.Store(), admin: d.Admin, keep: d.KeepBackups}
	healthH := &HealthHandler{store: d.Guests.Store(), gate: gate, uploadsDir: d.Uploads.Root(), startTime: time.Now()}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if d.AccessLog {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}
	for _, mw := range d.Middleware {
		r.Use(mw)
	}
	r.Use(d.Flash.LoadAndSave)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		b.showError(w, req, http.StatusNotFound, "The page you requested does not exist.")
	})

	r.Get(RouteHealth, healthH.Health)
	r.Get(RouteHealth+"/live", healthH.Liveness)
	if d.Static != nil {
		r.Handle(RouteStatic, http.StripPrefix("/static/", http.FileServerFS(d.Static)))
	}

	r.Get(RouteRoot, func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, RouteLogin, http.StatusSeeOther)
	})
	r.Get(RouteLogin, authH.LoginForm)
	r.Get(RouteLogout, authH.Logout)
	r.Get(RouteRegister, registerH.Form)
	r.Get(RouteAdminLogin, authH.AdminLoginForm)

	r.Group(func(r chi.Router) {
		r.Use(d.LoginProtection.Middleware())
		r.Post(RouteGuestLogin, authH.GuestLogin)
		r.Post(RouteAdminLogin, authH.AdminLogin)
	})
	r.Post(RouteRegister, registerH.Submit)

	r.Group(func(r chi.Router) {
		r.Use(gate.Require(RouteLogin, session.RoleGuest))
		r.Get(RouteGuest, guestH.Profile)
		r.Post(RouteGuestUpdate, guestH.Update)
		r.Post(RouteGuestUpload, guestH.Upload)
		r.Get(RouteGuestDownload, guestH.Download)
	})

	r.Group(func(r chi.Router) {
		r.Use(gate.Require(RouteAdminLogin, session.RoleAdmin))
		r.Get(RouteAdmin, adminH.Dashboard)
		r.Get(RouteAdminGuests, adminH.Guests)
		r.Get(RouteAdminGuest, adminH.Guest)
		r.Post(RouteAdminGuestUpdate, adminH.UpdateGuest)
		r.Get(RouteAdminDownload, adminH.Download)
		r.Post(RouteAdminBulkUpload, adminH.BulkUpload)
		r.Post(RouteAdminClear, adminH.ClearDatabase)
		r.Get(RouteAdminSettings, settingsH.Form)
		r.Post(RouteAdminSettings, settingsH.Submit)
		r.Get(RouteAdminBackups, backupsH.List)
		r.Post(RouteAdminBackupNew, backupsH.Create)
		r.Post(RouteAdminRestore, backupsH.Restore)
	})

	return r
}
