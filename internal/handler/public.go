package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Dav1dde/notifico/internal/auth"
	"github.com/Dav1dde/notifico/internal/service"
)

// PublicHandler serves the unauthenticated surface: the landing page's
// project listing.
type PublicHandler struct {
	projects *service.ProjectService
	logger   *slog.Logger
}

// NewPublicHandler creates a PublicHandler.
func NewPublicHandler(projects *service.ProjectService, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{
		projects: projects,
		logger:   logger,
	}
}

// HandleLanding lists recently created projects visible to the caller.
//
// HTTP: GET /?limit=20&offset=0
//
// Visibility follows the session: anonymous callers see public
// projects, a logged-in user additionally sees their own private ones,
// admins see everything. The filter runs in the database, so the
// pagination window is over the visible set.
func (h *PublicHandler) HandleLanding(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	viewer := auth.UserFromContext(r.Context())
	projects, err := h.projects.ListVisible(r.Context(), viewer, limit, offset)
	if err != nil {
		h.logger.Error("landing: listing projects failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, projects)
}
