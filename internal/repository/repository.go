// Package repository defines the storage interfaces the service layer
// programs against. The sqlite subpackage is the only implementation;
// tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/Dav1dde/notifico/internal/model"
)

// ListOptions carries limit/offset pagination for listing queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// ProjectScope is the composable visibility predicate for project
// listings. It exists so the policy "what can this viewer see" is
// stated once and pushed down into the storage layer's WHERE clause
// instead of being re-inlined (and eventually diverging) at each call
// site.
//
// Three shapes:
//   - All                → no filtering (admin viewers)
//   - OwnerID non-empty  → owner's own projects OR public ones
//   - zero value         → public projects only (anonymous viewers)
type ProjectScope struct {
	All     bool
	OwnerID string
}

// ScopeFor builds the visibility scope for a viewer. A nil user is an
// anonymous viewer.
func ScopeFor(user *model.User) ProjectScope {
	switch {
	case user.IsAdmin():
		return ProjectScope{All: true}
	case user != nil:
		return ProjectScope{OwnerID: user.ID}
	default:
		return ProjectScope{}
	}
}

// UserRepository is the identity store: user records, credentials, and
// group membership.
//
// All username parameters are matched case-insensitively through the
// model.FoldUsername rule; implementations must apply the same folding
// to lookups and uniqueness checks.
type UserRepository interface {
	// Create inserts a new user. A username that collides with an
	// existing one under case folding fails with apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error

	// GetByID returns the user with group memberships loaded.
	GetByID(ctx context.Context, id string) (*model.User, error)

	// GetByUsername returns the user matched case-insensitively, with
	// group memberships loaded.
	GetByUsername(ctx context.Context, username string) (*model.User, error)

	// UsernameInUse reports whether any user matches the folded name.
	UsernameInUse(ctx context.Context, username string) (bool, error)

	// Credentials fetches only the stored password hash and salt for
	// the matched username. Login verification deliberately pulls no
	// other columns.
	Credentials(ctx context.Context, username string) (hash, salt string, err error)

	// UpdatePassword persists a re-hashed password for the user.
	UpdatePassword(ctx context.Context, userID, hash, salt string) error

	// AddGroup adds the user to the named group, creating the group row
	// if needed. Idempotent, and safe under concurrent calls for the
	// same new group name. Returns the resolved group row so callers can
	// keep loaded user models consistent with the store.
	AddGroup(ctx context.Context, userID, name string) (model.Group, error)

	// BootstrapGroup grants the named group to the user only while the
	// group has no members at all; the emptiness check and the grant
	// must be atomic, so two concurrent claimants can never both win.
	// Returns the group when granted it, nil when the group was already
	// occupied.
	BootstrapGroup(ctx context.Context, userID, name string) (*model.Group, error)

	// CountGroupMembers returns how many users belong to the named
	// group.
	CountGroupMembers(ctx context.Context, name string) (int, error)

	// Delete removes the user and, in the same transaction, all their
	// auth tokens, group memberships, and projects.
	Delete(ctx context.Context, id string) error
}

// ProjectRepository is the project registry.
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)

	// GetByOwnerAndName matches the project name case-insensitively,
	// scoped to a single owner.
	GetByOwnerAndName(ctx context.Context, ownerID, name string) (*model.Project, error)

	// ListByOwner returns all of one user's projects, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]model.Project, error)

	// ListVisible returns projects the scope permits, newest first.
	ListVisible(ctx context.Context, scope ProjectScope, opts ListOptions) ([]model.Project, error)

	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, id string) error

	// IncrementMessageCount atomically bumps the project's message
	// counter by one.
	IncrementMessageCount(ctx context.Context, id string) error
}

// AuthTokenRepository stores linked external-service credentials.
type AuthTokenRepository interface {
	Create(ctx context.Context, token *model.AuthToken) error
	GetByID(ctx context.Context, id string) (*model.AuthToken, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.AuthToken, error)
	Delete(ctx context.Context, id string) error
}
