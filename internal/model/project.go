package model

import (
	"strings"
	"time"
)

// Project is a user-owned resource with a public/private flag that
// controls read access. Names are unique per owner (case-insensitively)
// but not globally.
type Project struct {
	ID      string    `json:"id"      db:"id"`
	Name    string    `json:"name"    db:"name"`
	Created time.Time `json:"created" db:"created"`
	Public  bool      `json:"public"  db:"public"`
	Website string    `json:"website" db:"website"`

	// MessageCount is the total number of messages received for this
	// project from all sources (hook pings).
	MessageCount int64 `json:"messageCount" db:"message_count"`

	OwnerID string `json:"ownerId" db:"owner_id"`
}

// FoldProjectName normalizes a project name for case-insensitive
// matching within one owner's projects.
func FoldProjectName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsOwner reports whether user owns this project.
// A nil user (anonymous request) never owns anything.
func (p *Project) IsOwner(user *User) bool {
	return user != nil && user.ID == p.OwnerID
}

// CanSee reports whether user may view this project.
//
// Public projects are visible to everyone, including anonymous users.
// Private projects are visible only to their owner and to admins.
func (p *Project) CanSee(user *User) bool {
	if p.Public {
		return true
	}
	if user.IsAdmin() {
		return true
	}
	return p.IsOwner(user)
}

// CanModify reports whether user may edit or delete this project.
// Strictly a subset of CanSee: only the owner and admins qualify, so a
// private project a user can merely see is still not modifiable.
func (p *Project) CanModify(user *User) bool {
	if user.IsAdmin() {
		return true
	}
	return p.IsOwner(user)
}
