// Package auth provides the credential and session subsystem: password
// hashing, token issuance and validation, and the register/sign-in flows.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher provides one-way password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password. Each call salts
	// independently, so two hashes of the same password never compare equal
	// as strings.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or an error on
	// a malformed hash.
	Verify(password, hash string) (bool, error)
}

// BcryptHasher implements [PasswordHasher] using bcrypt. The zero value uses
// the default cost; create one with [NewBcryptHasher] to tune it.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher with the given work factor. A cost
// of 0 selects bcrypt's default.
func NewBcryptHasher(cost int) *BcryptHasher {
	return &BcryptHasher{cost: cost}
}

// Hash produces a bcrypt hash of the password. Returns
// [ErrPasswordRequired] for an empty password and [ErrPasswordTooLong] past
// bcrypt's 72-byte input limit; both are rejections of the input, not
// failures of the primitive.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordRequired
	}
	cost := h.cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("%w: %w", ErrHashingPrimitive, err)
	}
	return string(hash), nil
}

// Verify checks if the password matches the hash. A mismatch is a normal
// (false, nil) result; only a hash that bcrypt cannot parse is an error.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("malformed secret hash: %w", err)
	}
}

var _ PasswordHasher = (*BcryptHasher)(nil)
