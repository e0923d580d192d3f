package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/Dav1dde/notifico/internal/apperror"
	"github.com/Dav1dde/notifico/internal/model"
	"github.com/Dav1dde/notifico/internal/repository"
)

// compile-time check that *DB implements repository.ProjectRepository
var _ repository.ProjectRepository = (*ProjectDB)(nil)

const projectColumns = `id, name, created, public, website, message_count, owner_id`

// Create inserts a new project. A name that collides with another
// project of the same owner (case-insensitively) is a Conflict; the
// same name under a different owner is fine. As with usernames, the
// fold is computed in Go and stored in name_folded, which carries the
// per-owner unique index.
func (db *ProjectDB) Create(ctx context.Context, project *model.Project) error {
	project.ID = xid.New().String()
	project.Created = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO projects (id, name, name_folded, created, public, website, message_count, owner_id)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		project.ID,
		project.Name,
		model.FoldProjectName(project.Name),
		project.Created,
		project.Public,
		project.Website,
		project.OwnerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("project", project.Name)
		}
		return fmt.Errorf("sqlite: inserting project %q: %w", project.Name, err)
	}

	return nil
}

// GetByID retrieves a single project.
func (db *ProjectDB) GetByID(ctx context.Context, id string) (*model.Project, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row, id)
}

// GetByOwnerAndName matches the project name case-insensitively within
// a single owner's projects.
func (db *ProjectDB) GetByOwnerAndName(ctx context.Context, ownerID, name string) (*model.Project, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+`
		 FROM projects
		 WHERE owner_id = ? AND name_folded = ?`,
		ownerID, model.FoldProjectName(name),
	)
	return scanProject(row, name)
}

// ListByOwner returns all of one user's projects, newest first.
func (db *ProjectDB) ListByOwner(ctx context.Context, ownerID string) ([]model.Project, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+projectColumns+`
		 FROM projects
		 WHERE owner_id = ?
		 ORDER BY created DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing projects for %s: %w", ownerID, err)
	}
	return collectProjects(rows, 0)
}

// ListVisible returns the projects the scope permits, newest first.
//
// The scope compiles straight into the WHERE clause, so visibility is
// enforced by the database before pagination is applied — an anonymous
// page 2 is page 2 of public projects, not a post-filtered slice.
func (db *ProjectDB) ListVisible(ctx context.Context, scope repository.ProjectScope, opts repository.ListOptions) ([]model.Project, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	where := ``
	args := []any{}
	switch {
	case scope.All:
		// admins see everything
	case scope.OwnerID != "":
		where = `WHERE owner_id = ? OR public = 1`
		args = append(args, scope.OwnerID)
	default:
		where = `WHERE public = 1`
	}
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+projectColumns+`
		 FROM projects `+where+`
		 ORDER BY created DESC
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing visible projects: %w", err)
	}
	return collectProjects(rows, limit)
}

// Update modifies a project's mutable fields. ID, created, owner, and
// the message counter are immutable here; the counter moves only via
// IncrementMessageCount.
func (db *ProjectDB) Update(ctx context.Context, project *model.Project) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE projects SET name = ?, name_folded = ?, public = ?, website = ? WHERE id = ?`,
		project.Name,
		model.FoldProjectName(project.Name),
		project.Public,
		project.Website,
		project.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("project", project.Name)
		}
		return fmt.Errorf("sqlite: updating project %s: %w", project.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("project", project.ID)
	}
	return nil
}

// Delete removes a project.
func (db *ProjectDB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting project %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("project", id)
	}
	return nil
}

// IncrementMessageCount bumps the message counter by one. A single
// UPDATE keeps the increment atomic under concurrent hook pings.
func (db *ProjectDB) IncrementMessageCount(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE projects SET message_count = message_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing message count for %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("project", id)
	}
	return nil
}

// scanner is the common surface of sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row *sql.Row, key string) (*model.Project, error) {
	var p model.Project
	if err := scanProjectInto(row, &p); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("project", key)
		}
		return nil, fmt.Errorf("sqlite: getting project %q: %w", key, err)
	}
	return &p, nil
}

func scanProjectInto(s scanner, p *model.Project) error {
	return s.Scan(
		&p.ID,
		&p.Name,
		&p.Created,
		&p.Public,
		&p.Website,
		&p.MessageCount,
		&p.OwnerID,
	)
}

func collectProjects(rows *sql.Rows, capacity int) ([]model.Project, error) {
	defer rows.Close()

	projects := make([]model.Project, 0, capacity)
	for rows.Next() {
		var p model.Project
		if err := scanProjectInto(rows, &p); err != nil {
			return nil, fmt.Errorf("sqlite: scanning project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating projects: %w", err)
	}

	return projects, nil
}
