// Package handler implements the HTTP handlers of the registration server
// and the router that wires them to the session gate.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/confreg/internal/auth"
	"github.com/olegiv/confreg/internal/guest"
	"github.com/olegiv/confreg/internal/logging"
	"github.com/olegiv/confreg/internal/scheduler"
	"github.com/olegiv/confreg/internal/session"
	"github.com/olegiv/confreg/internal/uploads"
)

// maxReportedSkips is how many skipped import rows are named in the flash.
const maxReportedSkips = 5

// DashboardData holds the figures shown on the admin dashboard.
type DashboardData struct {
	GuestCount    int
	SnapshotCount int
	SessionCount  int
	Jobs          []scheduler.JobInfo
}

// guestsPage is the payload of admin/guests.
type guestsPage struct {
	Guests []guest.Guest
	Query  string
}

// AdminHandler handles the admin roster, import and clear routes.
type AdminHandler struct {
	base
	guests    *guest.Repository
	uploads   *uploads.Area
	sessions  *session.Registry
	admin     *auth.AdminSecret
	scheduler *scheduler.Scheduler
}

// Dashboard renders GET /admin.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	count, err := h.guests.Count(r.Context())
	if err != nil {
		h.fail(w, r, err, "count guests")
		return
	}
	data := DashboardData{GuestCount: count, SessionCount: h.sessions.Len()}
	if snaps, err := h.guests.Store().ListBackups(); err != nil {
		h.logger.Error("failed to list backups", "error", err)
	} else {
		data.SnapshotCount = len(snaps)
	}
	if h.scheduler != nil {
		data.Jobs = h.scheduler.Jobs()
	}
	h.render(w, r, http.StatusOK, pageDashboard, h.page(r, "Dashboard", data))
}

// Guests renders the roster, filtered by ?q= when given.
func (h *AdminHandler) Guests(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	list, err := h.guests.Search(r.Context(), q)
	if err != nil {
		h.fail(w, r, err, "list guests")
		return
	}
	h.render(w, r, http.StatusOK, pageGuests, h.page(r, "Guests", guestsPage{Guests: list, Query: q}))
}

func (h *AdminHandler) guestPage(r *http.Request, g guest.Guest, form guest.Input) (profilePage, error) {
	files, err := h.uploads.List(g.ID)
	if err != nil {
		return profilePage{}, err
	}
	return profilePage{
		Guest:          g,
		Form:           form,
		Files:          files,
		DownloadPrefix: "/admin/guest/" + g.ID + "/download/",
		MaxUpload:      h.uploads.MaxSize(),
	}, nil
}

// Guest renders one guest with their files.
func (h *AdminHandler) Guest(w http.ResponseWriter, r *http.Request) {
	g, err := h.guests.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "load guest")
		return
	}
	p, err := h.guestPage(r, g, inputFromGuest(g))
	if err != nil {
		h.fail(w, r, err, "list uploads")
		return
	}
	h.render(w, r, http.StatusOK, pageGuestView, h.page(r, g.Name, p))
}

// UpdateGuest handles POST /admin/guest/{id}/update, phone included.
func (h *AdminHandler) UpdateGuest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.showError(w, r, http.StatusBadRequest, msgBadForm)
		return
	}
	id := chi.URLParam(r, "id")
	in := inputFromForm(r)

	g, err := h.guests.AdminUpdate(r.Context(), id, in)
	if errors.Is(err, guest.ErrInvalid) || errors.Is(err, guest.ErrDuplicatePhone) {
		problems := guest.Problems(err)
		if problems == nil {
			problems = []string{"Phone already registered to another guest."}
		}
		h.updateError(w, r, id, in, problems)
		return
	}
	if err != nil {
		h.fail(w, r, err, "update guest")
		return
	}
	h.logger.Info("admin updated guest", "guest_id", g.ID, "category", logging.CategoryAdmin)
	h.flashSuccess(w, r, "/admin/guest/"+g.ID, "Guest updated.")
}

func (h *AdminHandler) updateError(w http.ResponseWriter, r *http.Request, id string, in guest.Input, problems []string) {
	current, err := h.guests.FindByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "load guest")
		return
	}
	p, err := h.guestPage(r, current, in)
	if err != nil {
		h.fail(w, r, err, "list uploads")
		return
	}
	data := h.page(r, current.Name, p)
	data.Errors = problems
	h.render(w, r, http.StatusBadRequest, pageGuestView, data)
}

// Download streams any guest's file.
func (h *AdminHandler) Download(w http.ResponseWriter, r *http.Request) {
	serveUpload(w, r, h.base, h.uploads, chi.URLParam(r, "id"), chi.URLParam(r, "name"))
}

// BulkUpload imports the multipart "csv_file" and flashes the report.
func (h *AdminHandler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	file, _, err := r.FormFile("csv_file")
	if err != nil {
		h.showError(w, r, http.StatusBadRequest, "Please choose a CSV file to import.")
		return
	}
	defer func() { _ = file.Close() }()

	report, err := h.guests.Import(r.Context(), file)
	if err != nil {
		h.fail(w, r, err, "import guests")
		return
	}
	h.logger.Info("admin bulk upload",
		"added", report.Added,
		"skipped", len(report.Skipped),
		"category", logging.CategoryAdmin,
	)
	h.flashSuccess(w, r, RouteAdminGuests, importSummary(report))
}

// importSummary describes an import report in one line.
func importSummary(report guest.ImportReport) string {
	msg := fmt.Sprintf("Imported %d guest(s).", report.Added)
	if len(report.Skipped) == 0 {
		return msg
	}
	msg += fmt.Sprintf(" Skipped %d row(s):", len(report.Skipped))
	for i, s := range report.Skipped {
		if i == maxReportedSkips {
			msg += fmt.Sprintf(" and %d more.", len(report.Skipped)-maxReportedSkips)
			break
		}
		msg += fmt.Sprintf(" line %d (%s);", s.Line, s.Reason)
	}
	return strings.TrimSuffix(msg, ";")
}

// ClearDatabase empties the guest table after re-checking the admin password.
// Uploaded files are kept.
func (h *AdminHandler) ClearDatabase(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.showError(w, r, http.StatusBadRequest, msgBadForm)
		return
	}
	if !h.admin.Verify(r.PostForm.Get("password")) {
		h.logger.Warn("clear database refused: bad confirmation password", "category", logging.CategoryAdmin)
		h.showError(w, r, http.StatusForbidden, msgBadConfirm)
		return
	}
	if err := h.guests.Clear(r.Context()); err != nil {
		h.fail(w, r, err, "clear guests")
		return
	}
	h.logger.Warn("admin cleared entire guest database", "category", logging.CategoryAdmin)
	h.flashSuccess(w, r, RouteAdmin, "Guest database cleared. A snapshot of the previous state was kept.")
}
