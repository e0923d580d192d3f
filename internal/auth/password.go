// Package auth — password hashing, session tokens, request guards, and
// the GitHub OAuth provider.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Scheme selects how new passwords are hashed.
type Scheme int

const (
	// SchemeLegacy is the historical scheme: an 8-character salt and a
	// single round of SHA-256 over salt + trimmed password, hex encoded.
	// Weak by modern standards (no stretching, truncated salt), but
	// every credential already in the database was written this way, so
	// it stays the default. Do not "fix" it here — existing logins
	// would break.
	SchemeLegacy Scheme = iota

	// SchemeBcrypt hashes with bcrypt. Verification recognises both
	// formats, so individual accounts can be migrated to bcrypt without
	// touching the rest.
	SchemeBcrypt
)

// defaultCost is the bcrypt work factor used by SchemeBcrypt.
// ~250ms per hash on current server hardware.
const defaultCost = 12

// legacySaltLen is the exact length of a legacy salt, both in the
// schema (salt CHAR(8)) and in the hash computation.
const legacySaltLen = 8

// PasswordService hashes and verifies passwords behind a single
// interface so the stored scheme can change per record. Verify inspects
// the stored hash to decide how to check it; Hash uses the configured
// scheme for new passwords.
type PasswordService struct {
	scheme Scheme
	cost   int
}

// NewPasswordService returns a PasswordService writing legacy-format
// hashes, compatible with all existing stored credentials.
func NewPasswordService() *PasswordService {
	return &PasswordService{scheme: SchemeLegacy, cost: defaultCost}
}

// NewPasswordServiceWithScheme returns a PasswordService writing hashes
// in the given scheme. Verification is scheme-independent either way.
func NewPasswordServiceWithScheme(scheme Scheme) *PasswordService {
	return &PasswordService{scheme: scheme, cost: defaultCost}
}

// newPasswordServiceForTest lowers the bcrypt cost to the library
// minimum so tests don't pay ~250ms per hash.
func newPasswordServiceForTest(scheme Scheme) *PasswordService {
	return &PasswordService{scheme: scheme, cost: bcrypt.MinCost}
}

// Hash hashes plaintext under the configured scheme.
//
// For SchemeLegacy the returned salt must be stored alongside the hash.
// For SchemeBcrypt the salt return is empty — bcrypt embeds its salt in
// the hash string itself.
func (p *PasswordService) Hash(plaintext string) (hash, salt string, err error) {
	switch p.scheme {
	case SchemeBcrypt:
		if len(plaintext) > 72 {
			// bcrypt silently truncates past 72 bytes; reject instead.
			return "", "", fmt.Errorf("auth: password must be 72 bytes or fewer")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
		if err != nil {
			return "", "", fmt.Errorf("auth: hashing password: %w", err)
		}
		return string(hashed), "", nil

	default:
		salt, err := newLegacySalt()
		if err != nil {
			return "", "", err
		}
		return legacyHash(plaintext, salt), salt, nil
	}
}

// Verify reports whether plaintext matches the stored hash.
//
// The stored format decides the algorithm: bcrypt hashes are
// self-describing ("$2a$"/"$2b$" prefix), anything else is treated as a
// legacy hex digest checked against the stored salt. Returns false —
// never an error the caller could leak — on mismatch.
func (p *PasswordService) Verify(hash, salt, plaintext string) bool {
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
	}
	computed := legacyHash(plaintext, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// newLegacySalt returns a fresh legacy salt: 8 random bytes, base64
// encoded, truncated to 8 characters. The truncation loses entropy but
// is part of the historical format.
func newLegacySalt() (string, error) {
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("auth: generating salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw)[:legacySaltLen], nil
}

// legacyHash computes the historical digest: hex SHA-256 of the salt
// concatenated with the whitespace-trimmed password. The trim matches
// how passwords were hashed at signup, so a password saved as "hunter2 "
// verifies as "hunter2".
func legacyHash(plaintext, salt string) string {
	sum := sha256.Sum256([]byte(salt + strings.TrimSpace(plaintext)))
	return hex.EncodeToString(sum[:])
}
