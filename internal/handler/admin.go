package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Dav1dde/notifico/internal/apperror"
	"github.com/Dav1dde/notifico/internal/auth"
	"github.com/Dav1dde/notifico/internal/service"
)

// AdminHandler serves the admin bootstrap and internal test routes.
type AdminHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(accounts *service.AccountService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// HandleMake grants the admin group to the current user — but only
// while the system has no admins at all. Either way the response is a
// redirect to the landing page; this route is a one-time bootstrap for
// a fresh deployment, not a group management API.
//
// HTTP: GET /admin/make   (guard: user)
func (h *AdminHandler) HandleMake(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	granted, err := h.accounts.BootstrapAdmin(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	if granted {
		h.logger.Info("admin bootstrapped",
			slog.String("userID", user.ID),
			slog.String("username", user.Username),
		)
	}

	http.Redirect(w, r, auth.LandingPath, http.StatusSeeOther)
}

// HandleError responds with the requested status code. Exists to
// exercise error handling end to end; admin-gated so it can't be used
// to probe responses.
//
// HTTP: GET /admin/error/{code}   (guard: group "admin")
func (h *AdminHandler) HandleError(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || code < 400 || code > 599 {
		writeError(w, apperror.ValidationFailed("code", "code must be an HTTP error status (400-599)"))
		return
	}

	http.Error(w, http.StatusText(code), code)
}
