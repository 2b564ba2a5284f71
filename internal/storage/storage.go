// Package storage provides the state management for accounts and quotes.
package storage

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// ErrNotFound is returned when an account or quote cannot be found.
	ErrNotFound Error = "not found"
	// ErrAlreadyExists is returned if an account with the same email already exists.
	ErrAlreadyExists Error = "already exists"
	// ErrInvalidEmail is returned when an email fails validation.
	ErrInvalidEmail Error = "email must have a local@domain shape"
	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable Error = "storage unavailable"
)

// Error is an error type returned by the storage implementation.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// Account is a registered user credential record. SecretHash holds the bcrypt
// encoding of the password and is only ever written by the registration and
// change-secret paths.
type Account struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Email      string             `bson:"email"`
	SecretHash string             `bson:"secret_hash"`
	CreatedAt  time.Time          `bson:"created_at"`
}

// Quote is a single shared quote owned by an account.
type Quote struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Text      string             `bson:"text"`
	Character string             `bson:"character,omitempty"`
	Source    string             `bson:"source,omitempty"`
	Owner     primitive.ObjectID `bson:"owner"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// Accounts are the methods on a storage implementation that are responsible
// for accessing and modifying accounts.
type Accounts interface {
	// CreateAccount persists a new account and returns it with its assigned ID
	// and creation time. The email is normalized and validated first; an
	// [ErrInvalidEmail] is returned if it does not validate, and an
	// [ErrAlreadyExists] if the normalized email is already registered. The
	// uniqueness check is atomic: of two concurrent creates with the same
	// email, exactly one succeeds.
	CreateAccount(ctx context.Context, account Account) (Account, error)
	// GetAccount returns a single account with the specified ID. An
	// [ErrNotFound] is returned if the account does not exist.
	GetAccount(ctx context.Context, id primitive.ObjectID) (Account, error)
	// GetAccountByEmail returns a single account with the specified email,
	// normalized before lookup. An [ErrNotFound] is returned if no account
	// has that email.
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	// UpdateAccountSecret replaces the secret hash for the account. No other
	// account field is touched. An [ErrNotFound] is returned if the account
	// does not exist.
	UpdateAccountSecret(ctx context.Context, id primitive.ObjectID, secretHash string) error
	// DeleteAccount removes an account and all quotes it owns. Note that this
	// is a hard delete; data is not recoverable.
	DeleteAccount(ctx context.Context, id primitive.ObjectID) error
}

// Quotes are the methods on a storage implementation that are responsible for
// accessing and modifying quotes.
type Quotes interface {
	// CreateQuote persists a new quote and returns it with its assigned ID
	// and timestamps.
	CreateQuote(ctx context.Context, quote Quote) (Quote, error)
	// GetQuote returns a single quote with the specified ID. An [ErrNotFound]
	// is returned if the quote does not exist.
	GetQuote(ctx context.Context, id primitive.ObjectID) (Quote, error)
	// ListQuotes returns quotes newest first, paginated by the given ID (if
	// non-zero) up to the given limit of records.
	ListQuotes(ctx context.Context, afterID primitive.ObjectID, limit int32) ([]Quote, error)
	// UpdateQuote replaces the text, character, and source of the quote and
	// refreshes its update time. An [ErrNotFound] is returned if the quote
	// does not exist.
	UpdateQuote(ctx context.Context, quote Quote) error
	// DeleteQuote removes a quote. An [ErrNotFound] is returned if the quote
	// does not exist.
	DeleteQuote(ctx context.Context, id primitive.ObjectID) error
}

// Store is the combination interface for [Accounts] and [Quotes].
type Store interface {
	Accounts
	Quotes
	// Ping verifies that the backing store is reachable.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store. An error is returned if
	// the store cannot be cleanly closed.
	Close(ctx context.Context) error
}

// Deliberately permissive: anything with a local part, an @, and a dotted
// domain passes. Existing accounts must keep validating.
var emailRegex = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// NormalizeEmail lowercases and trims an email address. All storage reads and
// writes go through this, so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail validates that an email address has a basic local@domain shape.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
