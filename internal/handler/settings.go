// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/confreg/internal/settings"
)

// SettingsHandler edits the conference settings.
type SettingsHandler struct {
	base
}

// Form renders GET /admin/settings.
func (h *SettingsHandler) Form(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageSettings, h.page(r, "Settings", nil))
}

// Submit handles POST /admin/settings. Every key is written: a missing
// checkbox means false and a missing text field means empty.
func (h *SettingsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.showError(w, r, http.StatusBadRequest, msgBadForm)
		return
	}
	values := make(map[string]string, len(settings.Keys()))
	for _, key := range settings.Keys() {
		values[key] = r.PostForm.Get(key)
	}
	if _, err := h.settings.Update(values); err != nil {
		h.fail(w, r, err, "update settings")
		return
	}
	h.flashSuccess(w, r, RouteAdminSettings, "Settings saved.")
}
