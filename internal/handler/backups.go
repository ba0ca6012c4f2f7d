// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/confreg/internal/auth"
	"github.com/olegiv/confreg/internal/logging"
	"github.com/olegiv/confreg/internal/table"
)

// BackupsHandler lists, takes and restores table snapshots.
type BackupsHandler struct {
	base
	store *table.Store
	admin *auth.AdminSecret
	keep  int
}

type backupsPage struct {
	Snapshots []table.Snapshot
	Keep      int
}

// List renders GET /admin/backups.
func (h *BackupsHandler) List(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.store.ListBackups()
	if err != nil {
		h.fail(w, r, err, "list backups")
		return
	}
	h.render(w, r, http.StatusOK, pageBackups, h.page(r, "Backups", backupsPage{Snapshots: snaps, Keep: h.keep}))
}

// Create takes a snapshot now and applies retention.
func (h *BackupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	name, err := h.store.Backup("")
	if err != nil {
		h.fail(w, r, err, "create backup")
		return
	}
	if name == "" {
		h.flashError(w, r, RouteAdminBackups, "There is no guest table to back up yet.")
		return
	}
	if _, err := h.store.Prune(h.keep); err != nil {
		h.logger.Error("failed to prune backups", "error", err)
	}
	h.logger.Info("admin created backup", "snapshot", name, "category", logging.CategoryAdmin)
	h.flashSuccess(w, r, RouteAdminBackups, "Snapshot "+name+" created.")
}

// Restore replaces the table with a snapshot after re-checking the password.
func (h *BackupsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.showError(w, r, http.StatusBadRequest, msgBadForm)
		return
	}
	if !h.admin.Verify(r.PostForm.Get("password")) {
		h.logger.Warn("restore refused: bad confirmation password", "category", logging.CategoryAdmin)
		h.showError(w, r, http.StatusForbidden, msgBadConfirm)
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.store.Restore(r.Context(), name); err != nil {
		h.fail(w, r, err, "restore backup")
		return
	}
	if _, err := h.store.Prune(h.keep); err != nil {
		h.logger.Error("failed to prune backups", "error", err)
	}
	h.logger.Warn("admin restored backup", "snapshot", name, "category", logging.CategoryAdmin)
	h.flashSuccess(w, r, RouteAdminBackups, "Guest table restored from "+name+".")
}
