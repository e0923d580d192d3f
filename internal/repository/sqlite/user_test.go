package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/Dav1dde/notifico/internal/apperror"
	"github.com/Dav1dde/notifico/internal/model"
)

// newTestDB returns a fresh in-memory database. The pool is pinned to
// a single connection — with ":memory:" every new connection would be
// a separate empty database.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	db.conn.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestUserDB(t *testing.T) (*DB, *UserDB) {
	t.Helper()
	db := newTestDB(t)
	return db, db.Users()
}

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, u *UserDB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        model.FoldUsername(username) + "@example.com",
		PasswordHash: "0e71a27ccc2a75d5029a3de8fd05bed11a2a8d4686498aeb18a93eb643cc4110",
		Salt:         "abcdefgh",
	}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user %q: %v", username, err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestUserCreate(t *testing.T) {
	_, u := newTestUserDB(t)

	user := &model.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "somehash",
		Salt:         "somesalt",
	}

	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.Joined.IsZero() {
		t.Error("Create() did not set user.Joined")
	}
}

func TestUserCreate_DuplicateCaseVariant(t *testing.T) {
	_, u := newTestUserDB(t)
	createTestUser(t, u, "Alice")

	// "ALICE" folds to the same name as "Alice" — the unique index on
	// username_folded must reject it.
	duplicate := &model.User{Username: "ALICE", Email: "other@example.com"}
	err := u.Create(context.Background(), duplicate)
	if err == nil {
		t.Fatal("Create() should have failed for a case-variant duplicate")
	}
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestUserGetByUsername_CaseInsensitive(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createTestUser(t, u, "Alice")

	for _, lookup := range []string{"Alice", "alice", "ALICE", "  alice  "} {
		found, err := u.GetByUsername(context.Background(), lookup)
		if err != nil {
			t.Fatalf("GetByUsername(%q) error = %v", lookup, err)
		}
		if found.ID != created.ID {
			t.Errorf("GetByUsername(%q) ID = %q, want %q", lookup, found.ID, created.ID)
		}
		// The stored case is preserved; only matching folds.
		if found.Username != "Alice" {
			t.Errorf("GetByUsername(%q) Username = %q, want %q", lookup, found.Username, "Alice")
		}
	}
}

// SQLite's own lower() only folds ASCII, so usernames outside ASCII are
// the case where folding in the database and folding in Go diverge. The
// fold is computed in Go and stored at insert; every lookup path has to
// agree with it.
func TestUserLookup_NonASCIIUsername(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createTestUser(t, u, "Ólafur")

	for _, lookup := range []string{"Ólafur", "ólafur", "ÓLAFUR"} {
		found, err := u.GetByUsername(context.Background(), lookup)
		if err != nil {
			t.Fatalf("GetByUsername(%q) error = %v", lookup, err)
		}
		if found.ID != created.ID {
			t.Errorf("GetByUsername(%q) ID = %q, want %q", lookup, found.ID, created.ID)
		}

		inUse, err := u.UsernameInUse(context.Background(), lookup)
		if err != nil {
			t.Fatalf("UsernameInUse(%q) error = %v", lookup, err)
		}
		if !inUse {
			t.Errorf("UsernameInUse(%q) = false, want true", lookup)
		}
	}

	hash, salt, err := u.Credentials(context.Background(), "Ólafur")
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if hash != created.PasswordHash || salt != created.Salt {
		t.Errorf("Credentials() = (%q, %q), want (%q, %q)", hash, salt, created.PasswordHash, created.Salt)
	}

	// A case-variant signup is still a duplicate.
	duplicate := &model.User{Username: "ÓLAFUR", Email: "other@example.com"}
	if err := u.Create(context.Background(), duplicate); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create(case variant) error = %v, want ErrConflict", err)
	}
}

func TestUserGetByUsername_NotFound(t *testing.T) {
	_, u := newTestUserDB(t)

	_, err := u.GetByUsername(context.Background(), "nobody")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByID(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createTestUser(t, u, "alice")

	found, err := u.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Username != "alice" {
		t.Errorf("Username = %q, want %q", found.Username, "alice")
	}

	if _, err := u.GetByID(context.Background(), "nonexistent"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID(nonexistent) error = %v, want ErrNotFound", err)
	}
}

func TestUsernameInUse(t *testing.T) {
	_, u := newTestUserDB(t)
	createTestUser(t, u, "Alice")

	tests := []struct {
		username string
		want     bool
	}{
		{"Alice", true},
		{"alice", true},
		{"ALICE", true},
		{"bob", false},
	}

	for _, tt := range tests {
		got, err := u.UsernameInUse(context.Background(), tt.username)
		if err != nil {
			t.Fatalf("UsernameInUse(%q) error = %v", tt.username, err)
		}
		if got != tt.want {
			t.Errorf("UsernameInUse(%q) = %v, want %v", tt.username, got, tt.want)
		}
	}
}

// =========================================================================
// CREDENTIALS TESTS
// =========================================================================

func TestCredentials(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createTestUser(t, u, "alice")

	hash, salt, err := u.Credentials(context.Background(), "ALICE")
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if hash != created.PasswordHash {
		t.Errorf("hash = %q, want %q", hash, created.PasswordHash)
	}
	if salt != created.Salt {
		t.Errorf("salt = %q, want %q", salt, created.Salt)
	}
}

func TestCredentials_NotFound(t *testing.T) {
	_, u := newTestUserDB(t)

	_, _, err := u.Credentials(context.Background(), "nobody")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Credentials() error = %v, want ErrNotFound", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createTestUser(t, u, "alice")

	if err := u.UpdatePassword(context.Background(), created.ID, "newhash", "newsalts"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	hash, salt, err := u.Credentials(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Credentials() after update: %v", err)
	}
	if hash != "newhash" || salt != "newsalts" {
		t.Errorf("credentials after update = (%q, %q), want (newhash, newsalts)", hash, salt)
	}
}

func TestUpdatePassword_UnknownUser(t *testing.T) {
	_, u := newTestUserDB(t)

	err := u.UpdatePassword(context.Background(), "nonexistent", "h", "s")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdatePassword() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// GROUP TESTS
// =========================================================================

func TestAddGroup(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createTestUser(t, u, "alice")

	group, err := u.AddGroup(context.Background(), created.ID, "admin")
	if err != nil {
		t.Fatalf("AddGroup() error = %v", err)
	}
	if group.ID == "" {
		t.Error("AddGroup() returned a group with no ID")
	}
	if group.Name != "admin" {
		t.Errorf("AddGroup() group name = %q, want %q", group.Name, "admin")
	}

	found, err := u.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !found.InGroup("admin") {
		t.Error("user is not in the admin group after AddGroup")
	} else if found.Groups[0].ID != group.ID {
		t.Errorf("stored group ID = %q, want %q", found.Groups[0].ID, group.ID)
	}
}

func TestAddGroup_Idempotent(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createTestUser(t, u, "alice")

	// Granting the same group twice (with mixed case, even) leaves
	// exactly one membership, and every grant resolves to the same row.
	var firstID string
	for _, name := range []string{"admin", "Admin", "ADMIN"} {
		group, err := u.AddGroup(context.Background(), created.ID, name)
		if err != nil {
			t.Fatalf("AddGroup(%q) error = %v", name, err)
		}
		if firstID == "" {
			firstID = group.ID
		} else if group.ID != firstID {
			t.Errorf("AddGroup(%q) group ID = %q, want %q", name, group.ID, firstID)
		}
	}

	found, err := u.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(found.Groups) != 1 {
		t.Errorf("user has %d groups, want 1", len(found.Groups))
	}

	count, err := u.CountGroupMembers(context.Background(), "admin")
	if err != nil {
		t.Fatalf("CountGroupMembers() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountGroupMembers(admin) = %d, want 1", count)
	}
}

func TestAddGroup_SharedAcrossUsers(t *testing.T) {
	_, u := newTestUserDB(t)
	alice := createTestUser(t, u, "alice")
	bob := createTestUser(t, u, "bob")

	if _, err := u.AddGroup(context.Background(), alice.ID, "staff"); err != nil {
		t.Fatalf("AddGroup(alice) error = %v", err)
	}
	if _, err := u.AddGroup(context.Background(), bob.ID, "staff"); err != nil {
		t.Fatalf("AddGroup(bob) error = %v", err)
	}

	count, err := u.CountGroupMembers(context.Background(), "staff")
	if err != nil {
		t.Fatalf("CountGroupMembers() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountGroupMembers(staff) = %d, want 2", count)
	}
}

func TestBootstrapGroup(t *testing.T) {
	_, u := newTestUserDB(t)
	alice := createTestUser(t, u, "alice")
	bob := createTestUser(t, u, "bob")

	// First claim wins and gets the resolved group row.
	group, err := u.BootstrapGroup(context.Background(), alice.ID, "admin")
	if err != nil {
		t.Fatalf("BootstrapGroup(alice) error = %v", err)
	}
	if group == nil {
		t.Fatal("BootstrapGroup(alice) = nil, want a grant")
	}
	if group.ID == "" || group.Name != "admin" {
		t.Errorf("BootstrapGroup(alice) group = %+v, want admin with an ID", group)
	}

	// Any later claim loses, even a repeat by the winner.
	for _, userID := range []string{bob.ID, alice.ID} {
		group, err := u.BootstrapGroup(context.Background(), userID, "admin")
		if err != nil {
			t.Fatalf("BootstrapGroup(%s) error = %v", userID, err)
		}
		if group != nil {
			t.Errorf("BootstrapGroup(%s) granted an occupied group", userID)
		}
	}

	count, err := u.CountGroupMembers(context.Background(), "admin")
	if err != nil {
		t.Fatalf("CountGroupMembers() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountGroupMembers(admin) = %d, want 1", count)
	}
}

func TestBootstrapGroup_OccupiedByAddGroup(t *testing.T) {
	_, u := newTestUserDB(t)
	alice := createTestUser(t, u, "alice")
	bob := createTestUser(t, u, "bob")

	if _, err := u.AddGroup(context.Background(), alice.ID, "admin"); err != nil {
		t.Fatalf("AddGroup() error = %v", err)
	}

	group, err := u.BootstrapGroup(context.Background(), bob.ID, "admin")
	if err != nil {
		t.Fatalf("BootstrapGroup() error = %v", err)
	}
	if group != nil {
		t.Error("BootstrapGroup() granted a group that already has a member")
	}
}

func TestCountGroupMembers_UnknownGroup(t *testing.T) {
	_, u := newTestUserDB(t)

	count, err := u.CountGroupMembers(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("CountGroupMembers() error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountGroupMembers(nonexistent) = %d, want 0", count)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestUserDelete_Cascades(t *testing.T) {
	db, u := newTestUserDB(t)
	alice := createTestUser(t, u, "alice")
	bob := createTestUser(t, u, "bob")

	// Give alice a project, a group, and a linked service token.
	p := db.Projects()
	project := &model.Project{Name: "website", Public: true, OwnerID: alice.ID}
	if err := p.Create(context.Background(), project); err != nil {
		t.Fatalf("creating project: %v", err)
	}
	bobProject := &model.Project{Name: "website", Public: true, OwnerID: bob.ID}
	if err := p.Create(context.Background(), bobProject); err != nil {
		t.Fatalf("creating bob's project: %v", err)
	}

	if _, err := u.AddGroup(context.Background(), alice.ID, "staff"); err != nil {
		t.Fatalf("adding group: %v", err)
	}

	tok := db.Tokens()
	token := &model.AuthToken{Name: "github", Token: "gho_secret", OwnerID: alice.ID}
	if err := tok.Create(context.Background(), token); err != nil {
		t.Fatalf("creating auth token: %v", err)
	}

	if err := u.Delete(context.Background(), alice.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := u.GetByID(context.Background(), alice.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("user still exists after delete: %v", err)
	}
	if _, err := p.GetByID(context.Background(), project.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("project still exists after owner delete: %v", err)
	}
	if _, err := tok.GetByID(context.Background(), token.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("auth token still exists after owner delete: %v", err)
	}

	// The group row survives (only the membership edge is removed), and
	// other users' data is untouched.
	count, err := u.CountGroupMembers(context.Background(), "staff")
	if err != nil {
		t.Fatalf("CountGroupMembers() error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountGroupMembers(staff) = %d after delete, want 0", count)
	}
	if _, err := p.GetByID(context.Background(), bobProject.ID); err != nil {
		t.Errorf("bob's project was deleted along with alice's account: %v", err)
	}
}

func TestUserDelete_NotFound(t *testing.T) {
	_, u := newTestUserDB(t)

	err := u.Delete(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestUserDelete_FreesUsername(t *testing.T) {
	_, u := newTestUserDB(t)
	alice := createTestUser(t, u, "Alice")

	if err := u.Delete(context.Background(), alice.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// The folded name is free again for a new signup.
	if err := u.Create(context.Background(), &model.User{
		Username: "alice",
		Email:    "new-alice@example.com",
	}); err != nil {
		t.Errorf("Create() after delete error = %v, username should be free", err)
	}
}
