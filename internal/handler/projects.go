package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Dav1dde/notifico/internal/apperror"
	"github.com/Dav1dde/notifico/internal/auth"
	"github.com/Dav1dde/notifico/internal/model"
	"github.com/Dav1dde/notifico/internal/service"
)

// ProjectHandler serves the dashboard and project CRUD.
type ProjectHandler struct {
	projects *service.ProjectService
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewProjectHandler creates a ProjectHandler.
func NewProjectHandler(
	projects *service.ProjectService,
	accounts *service.AccountService,
	logger *slog.Logger,
) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		accounts: accounts,
		logger:   logger,
	}
}

// HandleDashboard shows a user's project overview.
//
// HTTP: GET /projects/{username}   (guard: user)
//
// The {username} segment is resolved and 404s when no such user exists
// — but the listing that comes back is the *session* user's projects,
// whoever {username} named. That is what the app has always done.
// TODO: confirm whether /projects/{username} was ever meant to show
// another user's public projects; if so this should list u's projects
// filtered through CanSee instead of g.user's own.
func (h *ProjectHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if _, err := h.accounts.ByUsername(r.Context(), r.PathValue("username")); err != nil {
		writeError(w, err)
		return
	}

	user := auth.UserFromContext(r.Context())
	projects, err := h.projects.Dashboard(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, projects)
}

// HandleCreate creates a project owned by the current user.
//
// HTTP: POST /projects   (guard: user)
// Body: {"name": "...", "public": true, "website": "..."}
//
// public defaults to true when omitted, so a bare {"name": "x"} makes a
// public project — matching how projects have always defaulted.
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Public  *bool  `json:"public"`
		Website string `json:"website"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	public := true
	if req.Public != nil {
		public = *req.Public
	}

	user := auth.UserFromContext(r.Context())
	project, err := h.projects.Create(r.Context(), user, req.Name, public, req.Website)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

// HandleDetails shows one project.
//
// HTTP: GET /projects/{username}/{project}
//
// A private project the viewer may not see responds 404, not 403 — the
// response must not confirm the project exists.
func (h *ProjectHandler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	project, err := h.resolveProject(r)
	if err != nil {
		writeError(w, err)
		return
	}

	viewer := auth.UserFromContext(r.Context())
	if !project.CanSee(viewer) {
		writeError(w, apperror.NotFound("project", r.PathValue("project")))
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// HandleUpdate edits a project.
//
// HTTP: PUT /projects/{username}/{project}   (guard: user)
// Body: {"name": "...", "public": false, "website": "..."}
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	project, err := h.resolveProject(r)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := auth.UserFromContext(r.Context())
	if !project.CanModify(actor) {
		writeError(w, apperror.Forbidden("you cannot modify this project"))
		return
	}

	var req struct {
		Name    string `json:"name"`
		Public  *bool  `json:"public"`
		Website string `json:"website"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	public := project.Public
	if req.Public != nil {
		public = *req.Public
	}

	updated, err := h.projects.Update(r.Context(), project, req.Name, public, req.Website)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// HandleDelete removes a project.
//
// HTTP: DELETE /projects/{username}/{project}   (guard: user)
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	project, err := h.resolveProject(r)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := auth.UserFromContext(r.Context())
	if !project.CanModify(actor) {
		writeError(w, apperror.Forbidden("you cannot delete this project"))
		return
	}

	if err := h.projects.Delete(r.Context(), project.ID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// resolveProject resolves the {username}/{project} path pair: the owner
// first (404 on unknown user), then the project by owner and name (404
// on no match). Mirrors how project URLs have always been addressed —
// by owner plus case-insensitive project name, not by ID.
func (h *ProjectHandler) resolveProject(r *http.Request) (*model.Project, error) {
	owner, err := h.accounts.ByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		return nil, err
	}
	return h.projects.ByOwnerAndName(r.Context(), owner.ID, r.PathValue("project"))
}
