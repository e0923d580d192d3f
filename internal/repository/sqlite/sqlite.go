// Package sqlite implements the repository interfaces on SQLite via
// the pure-Go modernc.org/sqlite driver (no CGo, cross-compiles
// anywhere Go does). A single file on disk — or ":memory:" in tests —
// is the whole database.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB owns the sql.DB pool. The per-entity repositories (UserDB,
// ProjectDB, TokenDB) are thin views over the same pool, handed out by
// the accessors below; DB itself only manages the connection lifecycle
// and the schema.
type DB struct {
	conn *sql.DB
}

// UserDB implements repository.UserRepository.
type UserDB struct {
	conn *sql.DB
}

// ProjectDB implements repository.ProjectRepository.
type ProjectDB struct {
	conn *sql.DB
}

// TokenDB implements repository.AuthTokenRepository.
type TokenDB struct {
	conn *sql.DB
}

// Users returns the identity store view of this database.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// Projects returns the project registry view of this database.
func (db *DB) Projects() *ProjectDB { return &ProjectDB{conn: db.conn} }

// Tokens returns the auth token store view of this database.
func (db *DB) Tokens() *TokenDB { return &TokenDB{conn: db.conn} }

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for a throwaway in-memory database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — a plain
	// journal would serialize every request on the single writer lock.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite. The cascading deletes
	// from users to projects and auth tokens depend on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool, flushing the WAL.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to
// run on every startup.
//
// Username uniqueness is case-insensitive. SQLite's lower() only folds
// ASCII, so the fold is computed in Go (model.FoldUsername) and stored
// in username_folded; the unique index lives on that column and lookups
// compare against it with plain equality. Project names get the same
// treatment per owner via name_folded. Group names carry a plain UNIQUE
// constraint; they are folded to lowercase before they ever reach the
// database.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			username        TEXT NOT NULL,
			username_folded TEXT NOT NULL,
			email           TEXT NOT NULL,
			password_hash   TEXT NOT NULL,
			salt            TEXT NOT NULL DEFAULT '',
			joined          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_folded
			ON users(username_folded);

		CREATE TABLE IF NOT EXISTS groups (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS user_groups (
			user_id  TEXT NOT NULL REFERENCES users(id)  ON DELETE CASCADE,
			group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, group_id)
		);

		CREATE TABLE IF NOT EXISTS projects (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			name_folded   TEXT NOT NULL,
			created       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			public        INTEGER NOT NULL DEFAULT 1,
			website       TEXT NOT NULL DEFAULT '',
			message_count INTEGER NOT NULL DEFAULT 0,
			owner_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_projects_owner_id ON projects(owner_id);
		CREATE INDEX IF NOT EXISTS idx_projects_created  ON projects(created);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_owner_name
			ON projects(owner_id, name_folded);

		CREATE TABLE IF NOT EXISTS auth_tokens (
			id       TEXT PRIMARY KEY,
			created  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			name     TEXT NOT NULL,
			token    TEXT NOT NULL,
			owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_auth_tokens_owner_id ON auth_tokens(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// The modernc driver surfaces constraint errors as plain errors with a
// stable message, so string matching is the portable check.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
