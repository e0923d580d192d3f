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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// Create inserts a new user row.
//
// The folded username is computed here, in Go, and stored alongside the
// display form: SQLite's lower() only folds ASCII, so the fold cannot be
// left to the database. The unique index on username_folded is the real
// uniqueness check; a violation means some case-variant of the name is
// already taken and is reported as a Conflict rather than a bare driver
// error.
func (db *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.Joined = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, username_folded, email, password_hash, salt, joined)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		model.FoldUsername(user.Username),
		user.Email,
		user.PasswordHash,
		user.Salt,
		user.Joined,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("username", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

// GetByID returns the user with their group memberships loaded.
func (db *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx,
		`SELECT id, username, email, password_hash, salt, joined
		 FROM users WHERE id = ?`,
		id, id,
	)
}

// GetByUsername matches the username case-insensitively and returns the
// user with group memberships loaded.
func (db *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx,
		`SELECT id, username, email, password_hash, salt, joined
		 FROM users WHERE username_folded = ?`,
		model.FoldUsername(username), username,
	)
}

// getUser runs a single-row user query and attaches the user's groups.
// key is only used in the NotFound message.
func (db *UserDB) getUser(ctx context.Context, query, arg, key string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Salt,
		&u.Joined,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", key, err)
	}

	groups, err := db.groupsOf(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Groups = groups

	return &u, nil
}

// UsernameInUse reports whether any user matches the folded username.
// Uses the same folding rule as GetByUsername, so the two can never
// disagree about whether a name is taken.
func (db *UserDB) UsernameInUse(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username_folded = ?)`,
		model.FoldUsername(username),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking username %q: %w", username, err)
	}
	return exists, nil
}

// Credentials fetches only the stored hash and salt for the matched
// username. Login verification needs nothing else, so nothing else
// leaves the database.
func (db *UserDB) Credentials(ctx context.Context, username string) (string, string, error) {
	var hash, salt string
	err := db.conn.QueryRowContext(ctx,
		`SELECT password_hash, salt FROM users WHERE username_folded = ?`,
		model.FoldUsername(username),
	).Scan(&hash, &salt)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", "", apperror.NotFound("user", username)
		}
		return "", "", fmt.Errorf("sqlite: getting credentials for %q: %w", username, err)
	}
	return hash, salt, nil
}

// UpdatePassword persists a freshly computed hash and salt.
func (db *UserDB) UpdatePassword(ctx context.Context, userID, hash, salt string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, salt = ? WHERE id = ?`,
		hash, salt, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for %s: %w", userID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

// AddGroup adds the user to the named group, creating the group row on
// first use.
//
// Both inserts tolerate conflicts instead of checking first: the group
// insert no-ops if another request created the same name concurrently
// (UNIQUE on groups.name settles the race in the database, not in
// application code), and the membership insert no-ops if the user is
// already a member. Calling AddGroup twice therefore leaves exactly one
// group row and one membership row. The resolved group row is returned
// so callers can keep an in-memory user consistent with the database.
func (db *UserDB) AddGroup(ctx context.Context, userID, name string) (model.Group, error) {
	folded := model.FoldGroupName(name)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return model.Group{}, fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	group, err := ensureGroup(ctx, tx, folded)
	if err != nil {
		return model.Group{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_groups (user_id, group_id) VALUES (?, ?)`,
		userID, group.ID,
	); err != nil {
		return model.Group{}, fmt.Errorf("sqlite: adding %s to group %q: %w", userID, folded, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Group{}, fmt.Errorf("sqlite: committing group grant: %w", err)
	}
	return group, nil
}

// BootstrapGroup grants the named group to the user only while the
// group has no members at all. The emptiness check and the grant are a
// single INSERT ... SELECT, so two concurrent claims cannot both pass
// the check — SQLite serializes the writers and the loser's insert
// selects zero rows. Returns nil when the group was already occupied.
func (db *UserDB) BootstrapGroup(ctx context.Context, userID, name string) (*model.Group, error) {
	folded := model.FoldGroupName(name)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	group, err := ensureGroup(ctx, tx, folded)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO user_groups (user_id, group_id)
		 SELECT ?, ?
		 WHERE NOT EXISTS (SELECT 1 FROM user_groups WHERE group_id = ?)`,
		userID, group.ID, group.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: claiming group %q for %s: %w", folded, userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing group claim: %w", err)
	}

	if affected == 0 {
		return nil, nil
	}
	return &group, nil
}

// ensureGroup creates the group row if it does not exist yet and
// returns it. The ON CONFLICT no-op settles concurrent creations of the
// same name in the database.
func ensureGroup(ctx context.Context, tx *sql.Tx, folded string) (model.Group, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO groups (id, name) VALUES (?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		xid.New().String(), folded,
	); err != nil {
		return model.Group{}, fmt.Errorf("sqlite: ensuring group %q: %w", folded, err)
	}

	var g model.Group
	if err := tx.QueryRowContext(ctx,
		`SELECT id, name FROM groups WHERE name = ?`, folded,
	).Scan(&g.ID, &g.Name); err != nil {
		return model.Group{}, fmt.Errorf("sqlite: resolving group %q: %w", folded, err)
	}
	return g, nil
}

// CountGroupMembers returns the number of users in the named group.
// Zero for a group that does not exist.
func (db *UserDB) CountGroupMembers(ctx context.Context, name string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM user_groups ug
		 JOIN groups g ON g.id = ug.group_id
		 WHERE g.name = ?`,
		model.FoldGroupName(name),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting members of %q: %w", name, err)
	}
	return count, nil
}

// Delete removes the user and everything they own in one transaction:
// auth tokens, group memberships, and projects go first, then the user
// row. The FK ON DELETE CASCADE clauses would catch stragglers, but the
// deletes are explicit so the transaction reads as the complete
// statement of what account deletion means. Group rows stay — only the
// membership edges are removed.
func (db *UserDB) Delete(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM auth_tokens WHERE owner_id = ?`,
		`DELETE FROM user_groups WHERE user_id = ?`,
		`DELETE FROM projects WHERE owner_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("sqlite: cascading delete for user %s: %w", id, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing user delete: %w", err)
	}
	return nil
}

// groupsOf loads the user's group memberships, oldest grant first.
func (db *UserDB) groupsOf(ctx context.Context, userID string) ([]model.Group, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT g.id, g.name
		 FROM groups g
		 JOIN user_groups ug ON ug.group_id = g.id
		 WHERE ug.user_id = ?
		 ORDER BY g.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing groups for %s: %w", userID, err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating groups: %w", err)
	}

	return groups, nil
}
