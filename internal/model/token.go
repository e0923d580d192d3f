package model

import "time"

// AuthToken is a stored credential for a linked external service, e.g.
// the OAuth access token obtained when a user connects their GitHub
// account. The token string is opaque to us — we store and return it,
// nothing more.
type AuthToken struct {
	ID      string    `json:"id"      db:"id"`
	Created time.Time `json:"created" db:"created"`
	Name    string    `json:"name"    db:"name"`  // service name, e.g. "github"
	Token   string    `json:"-"       db:"token"` // never serialized to clients
	OwnerID string    `json:"ownerId" db:"owner_id"`
}
