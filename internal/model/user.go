// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// User represents a registered account.
//
// Usernames are unique case-insensitively: "Alice" and "alice" are the
// same identity. The stored value keeps the case the user typed; every
// lookup and uniqueness check goes through FoldUsername so reads and
// writes agree on one folding rule. The schema backs this up with a
// unique index on the stored folded form.
//
// PasswordHash and Salt belong to the auth package's hashing schemes.
// Salt is only meaningful for the legacy scheme; bcrypt hashes embed
// their own salt and leave this field empty.
type User struct {
	ID           string    `json:"id"       db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email"    db:"email"`
	PasswordHash string    `json:"-"        db:"password_hash"`
	Salt         string    `json:"-"        db:"salt"`
	Joined       time.Time `json:"joined"   db:"joined"`

	// Groups the user belongs to, loaded alongside the user row.
	Groups []Group `json:"groups"`
}

// Group is a named permission bucket. Membership grants whatever the
// application associates with the name; only "admin" is special-cased.
// Names are always stored lowercase and are unique.
type Group struct {
	ID   string `json:"id"   db:"id"`
	Name string `json:"name" db:"name"`
}

// FoldUsername is the single case-folding rule for usernames. Apply it
// to every read filter and uniqueness check — never compare usernames
// any other way.
func FoldUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// FoldGroupName normalizes a group name to its canonical stored form.
func FoldGroupName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// InGroup reports whether the user is a member of the named group.
// The check is case-insensitive and purely in-memory over the loaded
// membership list.
func (u *User) InGroup(name string) bool {
	if u == nil {
		return false
	}
	folded := FoldGroupName(name)
	for _, g := range u.Groups {
		if g.Name == folded {
			return true
		}
	}
	return false
}

// IsAdmin reports membership in the "admin" group.
func (u *User) IsAdmin() bool {
	return u.InGroup(AdminGroup)
}

// AdminGroup is the group name that grants unrestricted visibility and
// modification rights.
const AdminGroup = "admin"
