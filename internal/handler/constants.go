package handler

// Route paths.
const (
	RouteRoot       = "/"
	RouteLogin      = "/login"
	RouteLogout     = "/logout"
	RouteGuestLogin = "/guest/login"
	RouteRegister   = "/register"
	RouteHealth     = "/health"
	RouteStatic     = "/static/*"

	RouteGuest         = "/guest"
	RouteGuestUpdate   = "/guest/update"
	RouteGuestUpload   = "/guest/upload"
	RouteGuestDownload = "/guest/download/{name}"

	RouteAdmin            = "/admin"
	RouteAdminLogin       = "/admin/login"
	RouteAdminGuests      = "/admin/guests"
	RouteAdminGuest       = "/admin/guest/{id}"
	RouteAdminGuestUpdate = "/admin/guest/{id}/update"
	RouteAdminDownload    = "/admin/guest/{id}/download/{name}"
	RouteAdminBulkUpload  = "/admin/bulk_upload"
	RouteAdminClear       = "/admin/clear_database"
	RouteAdminSettings    = "/admin/settings"
	RouteAdminBackups     = "/admin/backups"
	RouteAdminBackupNew   = "/admin/backups/create"
	RouteAdminRestore     = "/admin/backups/{name}/restore"
)

// Template names.
const (
	pageLogin      = "pages/login"
	pageRegister   = "pages/register"
	pageClosed     = "pages/closed"
	pageGuest      = "pages/guest"
	pageAdminLogin = "pages/admin_login"
	pageError      = "pages/error"

	pageDashboard = "admin/dashboard"
	pageGuests    = "admin/guests"
	pageGuestView = "admin/guest"
	pageSettings  = "admin/settings"
	pageBackups   = "admin/backups"
)

// User facing messages.
const (
	msgBusy           = "The system is busy. Please try again in a moment."
	msgDuplicatePhone = "Phone already registered. Use login instead."
	msgInvalidPhone   = "Valid phone number is required."
	msgBadPassword    = "Invalid password."
	msgBadConfirm     = "Invalid confirmation password."
	msgClosed         = "Registration is currently closed."
	msgNoFile         = "Please choose a file to upload."
	msgBadForm        = "Invalid form data."
)

// maxImportBytes bounds a bulk import upload.
const maxImportBytes = 10 << 20
