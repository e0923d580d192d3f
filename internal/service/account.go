// Package service contains the business logic layer: validation,
// normalization, and policy enforcement between the HTTP handlers and
// the repositories. Services accept primitives and models, never HTTP
// types, and return domain errors from the apperror package.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dav1dde/notifico/internal/apperror"
	"github.com/Dav1dde/notifico/internal/auth"
	"github.com/Dav1dde/notifico/internal/model"
	"github.com/Dav1dde/notifico/internal/repository"
)

// Field limits, matching the declared column sizes.
const (
	MaxUsernameLength = 50
	MaxEmailLength    = 255
	MinPasswordLength = 5
	MaxTokenLength    = 512
	MaxTokenNameLen   = 255
)

// AccountService is the identity store's business logic: signup, login
// verification, password changes, group grants, linked services, and
// account deletion.
type AccountService struct {
	users     repository.UserRepository
	tokens    repository.AuthTokenRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAccountService wires an AccountService from its dependencies.
func NewAccountService(
	users repository.UserRepository,
	tokens repository.AuthTokenRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// Register creates a new account.
//
// Normalization: the username is trimmed (its case is preserved — only
// comparisons fold), the email is lowercased and trimmed, the password
// is salted and hashed. A username already taken under case folding
// fails with Conflict, whether caught by the pre-check or by the unique
// index during the insert.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if len(email) > MaxEmailLength {
		return nil, apperror.ValidationFailed("email",
			fmt.Sprintf("email must be %d characters or less", MaxEmailLength))
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	inUse, err := s.users.UsernameInUse(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/account: checking username: %w", err)
	}
	if inUse {
		return nil, apperror.Conflict("username", username)
	}

	hash, salt, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/account: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The unique index can still fire if two signups race past the
		// pre-check; that surfaces as the same Conflict.
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// ByUsername looks a user up case-insensitively.
func (s *AccountService) ByUsername(ctx context.Context, username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	return s.users.GetByUsername(ctx, username)
}

// ByID returns the user for a validated session's user ID. Satisfies
// auth.UserLoader for the CurrentUser middleware.
func (s *AccountService) ByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetByID(ctx, id)
}

// UsernameInUse reports whether a case-variant of username is taken.
func (s *AccountService) UsernameInUse(ctx context.Context, username string) (bool, error) {
	return s.users.UsernameInUse(ctx, username)
}

// VerifyLogin checks a username/password pair.
//
// Returns false for an unknown username and for a wrong password alike
// — never an error a handler could accidentally turn into "user exists
// but password is wrong". Only the stored hash and salt are fetched.
func (s *AccountService) VerifyLogin(ctx context.Context, username, password string) (bool, error) {
	hash, salt, err := s.users.Credentials(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("service/account: fetching credentials: %w", err)
	}

	return s.passwords.Verify(hash, salt, password), nil
}

// SetPassword re-hashes and persists a new password for the user,
// updating the model in place.
func (s *AccountService) SetPassword(ctx context.Context, user *model.User, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, salt, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("service/account: hashing password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash, salt); err != nil {
		return err
	}

	user.PasswordHash = hash
	user.Salt = salt

	s.logger.Info("password changed", slog.String("userID", user.ID))
	return nil
}

// AddGroup grants group membership, creating the group on first use.
// A no-op when the user is already a member; the loaded membership list
// on user is kept in sync.
func (s *AccountService) AddGroup(ctx context.Context, user *model.User, name string) error {
	if user.InGroup(name) {
		return nil
	}

	folded := model.FoldGroupName(name)
	if folded == "" {
		return apperror.ValidationFailed("group", "group name is required")
	}

	group, err := s.users.AddGroup(ctx, user.ID, folded)
	if err != nil {
		return err
	}
	user.Groups = append(user.Groups, group)

	s.logger.Info("group granted",
		slog.String("userID", user.ID),
		slog.String("group", folded),
	)
	return nil
}

// BootstrapAdmin grants the admin group to user, but only while the
// system has no admins at all. Returns true if the grant happened.
// This is the one-time self-elevation used right after deployment; once
// any admin exists it permanently becomes a no-op. The store makes the
// emptiness check and the grant atomic, so two concurrent claimants can
// never both become the first admin.
func (s *AccountService) BootstrapAdmin(ctx context.Context, user *model.User) (bool, error) {
	group, err := s.users.BootstrapGroup(ctx, user.ID, model.AdminGroup)
	if err != nil {
		return false, fmt.Errorf("service/account: claiming admin group: %w", err)
	}
	if group == nil {
		return false, nil
	}

	if !user.InGroup(model.AdminGroup) {
		user.Groups = append(user.Groups, *group)
	}

	s.logger.Info("group granted",
		slog.String("userID", user.ID),
		slog.String("group", group.Name),
	)
	return true, nil
}

// Delete removes the account and everything it owns.
func (s *AccountService) Delete(ctx context.Context, user *model.User) error {
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	s.logger.Info("account deleted",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return nil
}

// LinkService stores an external-service credential for the user.
func (s *AccountService) LinkService(ctx context.Context, user *model.User, name, token string) (*model.AuthToken, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "service name is required")
	}
	if len(name) > MaxTokenNameLen {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("service name must be %d characters or less", MaxTokenNameLen))
	}
	if token == "" {
		return nil, apperror.ValidationFailed("token", "token is required")
	}
	if len(token) > MaxTokenLength {
		return nil, apperror.ValidationFailed("token",
			fmt.Sprintf("token must be %d characters or less", MaxTokenLength))
	}

	t := &model.AuthToken{
		Name:    name,
		Token:   token,
		OwnerID: user.ID,
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("service linked",
		slog.String("userID", user.ID),
		slog.String("service", name),
	)
	return t, nil
}

// LinkedServices returns the user's stored credentials, newest first.
func (s *AccountService) LinkedServices(ctx context.Context, user *model.User) ([]model.AuthToken, error) {
	return s.tokens.ListByOwner(ctx, user.ID)
}

// UnlinkService deletes one stored credential. Only the owner may
// unlink; anyone else gets NotFound rather than Forbidden so the
// response does not confirm the token exists.
func (s *AccountService) UnlinkService(ctx context.Context, user *model.User, id string) error {
	t, err := s.tokens.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.OwnerID != user.ID {
		return apperror.NotFound("auth token", id)
	}
	return s.tokens.Delete(ctx, id)
}
