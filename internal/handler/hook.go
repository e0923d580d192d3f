package handler

import (
	"log/slog"
	"net/http"

	"github.com/Dav1dde/notifico/internal/apperror"
	"github.com/Dav1dde/notifico/internal/service"
)

// HookHandler receives inbound hook pings (e.g. from commit hooks) and
// counts them against the addressed project. Actual delivery to
// channels is handled elsewhere; this endpoint only records receipt.
type HookHandler struct {
	projects *service.ProjectService
	logger   *slog.Logger
}

// NewHookHandler creates a HookHandler.
func NewHookHandler(projects *service.ProjectService, logger *slog.Logger) *HookHandler {
	return &HookHandler{
		projects: projects,
		logger:   logger,
	}
}

// HandlePing records one inbound message for the project.
//
// HTTP: POST /h/{projectID}
//
// Unauthenticated: the unguessable project ID in the URL is the
// capability. 202 on success — the body is accepted, not processed
// here.
func (h *HookHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("projectID")
	if id == "" {
		writeError(w, apperror.ValidationFailed("projectID", "project ID is required"))
		return
	}

	if err := h.projects.RecordMessage(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Debug("hook ping recorded", slog.String("projectID", id))
	w.WriteHeader(http.StatusAccepted)
}
