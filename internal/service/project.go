package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dav1dde/notifico/internal/apperror"
	"github.com/Dav1dde/notifico/internal/model"
	"github.com/Dav1dde/notifico/internal/repository"
)

// Field limits for projects, matching the declared column sizes.
const (
	MaxProjectNameLength = 50
	MaxWebsiteLength     = 1024

	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ProjectService is the project registry's business logic.
type ProjectService struct {
	projects repository.ProjectRepository
	logger   *slog.Logger
}

// NewProjectService wires a ProjectService from its dependencies.
func NewProjectService(projects repository.ProjectRepository, logger *slog.Logger) *ProjectService {
	return &ProjectService{
		projects: projects,
		logger:   logger,
	}
}

// Create validates and saves a new project owned by owner.
// The name is trimmed; the website is trimmed and may be empty.
func (s *ProjectService) Create(ctx context.Context, owner *model.User, name string, public bool, website string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	website = strings.TrimSpace(website)

	if name == "" {
		return nil, apperror.ValidationFailed("name", "project name is required")
	}
	if len(name) > MaxProjectNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("project name must be %d characters or less", MaxProjectNameLength))
	}
	if len(website) > MaxWebsiteLength {
		return nil, apperror.ValidationFailed("website",
			fmt.Sprintf("website must be %d characters or less", MaxWebsiteLength))
	}

	project := &model.Project{
		Name:    name,
		Public:  public,
		Website: website,
		OwnerID: owner.ID,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		slog.String("projectID", project.ID),
		slog.String("name", project.Name),
		slog.String("ownerID", owner.ID),
		slog.Bool("public", project.Public),
	)

	return project, nil
}

// ByID retrieves a project. Callers are responsible for the CanSee
// check — this method does not filter.
func (s *ProjectService) ByID(ctx context.Context, id string) (*model.Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "project ID is required")
	}
	return s.projects.GetByID(ctx, id)
}

// ByOwnerAndName matches a project name case-insensitively within one
// owner's projects.
func (s *ProjectService) ByOwnerAndName(ctx context.Context, ownerID, name string) (*model.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperror.ValidationFailed("name", "project name is required")
	}
	return s.projects.GetByOwnerAndName(ctx, ownerID, name)
}

// Dashboard returns all projects owned by user, newest first.
func (s *ProjectService) Dashboard(ctx context.Context, user *model.User) ([]model.Project, error) {
	return s.projects.ListByOwner(ctx, user.ID)
}

// ListVisible returns the projects viewer is allowed to see, newest
// first, with pagination. viewer may be nil for anonymous listings; the
// visibility rule is compiled into the query, not applied after the
// fact.
func (s *ProjectService) ListVisible(ctx context.Context, viewer *model.User, limit, offset int) ([]model.Project, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	projects, err := s.projects.ListVisible(ctx, repository.ScopeFor(viewer), repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("service/project: listing visible projects: %w", err)
	}
	return projects, nil
}

// Update applies edits to an existing project. An empty name means
// "keep the current one"; public and website are always applied.
// Authorization (CanModify) is the caller's responsibility — the
// handler checks it against the session user before calling.
func (s *ProjectService) Update(ctx context.Context, project *model.Project, name string, public bool, website string) (*model.Project, error) {
	if name = strings.TrimSpace(name); name != "" {
		if len(name) > MaxProjectNameLength {
			return nil, apperror.ValidationFailed("name",
				fmt.Sprintf("project name must be %d characters or less", MaxProjectNameLength))
		}
		project.Name = name
	}

	website = strings.TrimSpace(website)
	if len(website) > MaxWebsiteLength {
		return nil, apperror.ValidationFailed("website",
			fmt.Sprintf("website must be %d characters or less", MaxWebsiteLength))
	}
	project.Public = public
	project.Website = website

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project updated",
		slog.String("projectID", project.ID),
		slog.String("name", project.Name),
	)
	return project, nil
}

// Delete removes a project. Authorization is the caller's
// responsibility, as with Update.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if err := s.projects.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("project deleted", slog.String("projectID", id))
	return nil
}

// RecordMessage counts one delivered message against the project.
// Called by the hook ping endpoint; delivery itself happens elsewhere.
func (s *ProjectService) RecordMessage(ctx context.Context, projectID string) error {
	return s.projects.IncrementMessageCount(ctx, projectID)
}
