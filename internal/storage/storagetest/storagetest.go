// Package storagetest provides an in-memory [storage.Store] for tests. It
// mirrors the MongoDB implementation's semantics: email normalization and
// validation on create, an atomic uniqueness check, field-level secret
// updates, and newest-first quote listing.
package storagetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/meigenapp/meigen/internal/storage"
)

// Store is an in-memory [storage.Store]. The zero value is not usable; create
// one with [New]. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	accounts map[primitive.ObjectID]storage.Account
	byEmail  map[string]primitive.ObjectID
	quotes   map[primitive.ObjectID]storage.Quote

	// FailWith, when non-nil, is returned by every operation. Tests use it to
	// simulate an unreachable store.
	FailWith error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts: make(map[primitive.ObjectID]storage.Account),
		byEmail:  make(map[string]primitive.ObjectID),
		quotes:   make(map[primitive.ObjectID]storage.Quote),
	}
}

// Ping satisfies the [storage.Store] interface.
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FailWith
}

// Close satisfies the [storage.Store] interface.
func (s *Store) Close(context.Context) error { return nil }

// CreateAccount satisfies the [storage.Accounts] interface.
func (s *Store) CreateAccount(_ context.Context, account storage.Account) (storage.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return storage.Account{}, s.FailWith
	}

	account.Email = storage.NormalizeEmail(account.Email)
	if !storage.ValidEmail(account.Email) {
		return storage.Account{}, storage.ErrInvalidEmail
	}
	if _, exists := s.byEmail[account.Email]; exists {
		return storage.Account{}, storage.ErrAlreadyExists
	}
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	s.accounts[account.ID] = account
	s.byEmail[account.Email] = account.ID
	return account, nil
}

// GetAccount satisfies the [storage.Accounts] interface.
func (s *Store) GetAccount(_ context.Context, id primitive.ObjectID) (storage.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return storage.Account{}, s.FailWith
	}

	account, ok := s.accounts[id]
	if !ok {
		return storage.Account{}, storage.ErrNotFound
	}
	return account, nil
}

// GetAccountByEmail satisfies the [storage.Accounts] interface.
func (s *Store) GetAccountByEmail(_ context.Context, email string) (storage.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return storage.Account{}, s.FailWith
	}

	id, ok := s.byEmail[storage.NormalizeEmail(email)]
	if !ok {
		return storage.Account{}, storage.ErrNotFound
	}
	return s.accounts[id], nil
}

// UpdateAccountSecret satisfies the [storage.Accounts] interface.
func (s *Store) UpdateAccountSecret(_ context.Context, id primitive.ObjectID, secretHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	account, ok := s.accounts[id]
	if !ok {
		return storage.ErrNotFound
	}
	account.SecretHash = secretHash
	s.accounts[id] = account
	return nil
}

// DeleteAccount satisfies the [storage.Accounts] interface.
func (s *Store) DeleteAccount(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	account, ok := s.accounts[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.byEmail, account.Email)
	for quoteID, quote := range s.quotes {
		if quote.Owner == id {
			delete(s.quotes, quoteID)
		}
	}
	return nil
}

// CreateQuote satisfies the [storage.Quotes] interface.
func (s *Store) CreateQuote(_ context.Context, quote storage.Quote) (storage.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return storage.Quote{}, s.FailWith
	}

	if quote.ID.IsZero() {
		quote.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = now
	}
	quote.UpdatedAt = now
	s.quotes[quote.ID] = quote
	return quote, nil
}

// GetQuote satisfies the [storage.Quotes] interface.
func (s *Store) GetQuote(_ context.Context, id primitive.ObjectID) (storage.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return storage.Quote{}, s.FailWith
	}

	quote, ok := s.quotes[id]
	if !ok {
		return storage.Quote{}, storage.ErrNotFound
	}
	return quote, nil
}

// ListQuotes satisfies the [storage.Quotes] interface.
func (s *Store) ListQuotes(_ context.Context, afterID primitive.ObjectID, limit int32) ([]storage.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	quotes := make([]storage.Quote, 0, len(s.quotes))
	for _, quote := range s.quotes {
		if !afterID.IsZero() && quote.ID.Hex() >= afterID.Hex() {
			continue
		}
		quotes = append(quotes, quote)
	}
	sort.Slice(quotes, func(i, j int) bool {
		return quotes[i].ID.Hex() > quotes[j].ID.Hex()
	})
	if limit > 0 && int(limit) < len(quotes) {
		quotes = quotes[:limit]
	}
	return quotes, nil
}

// UpdateQuote satisfies the [storage.Quotes] interface.
func (s *Store) UpdateQuote(_ context.Context, quote storage.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	existing, ok := s.quotes[quote.ID]
	if !ok {
		return storage.ErrNotFound
	}
	existing.Text = quote.Text
	existing.Character = quote.Character
	existing.Source = quote.Source
	existing.UpdatedAt = time.Now().UTC()
	s.quotes[quote.ID] = existing
	return nil
}

// DeleteQuote satisfies the [storage.Quotes] interface.
func (s *Store) DeleteQuote(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	if _, ok := s.quotes[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.quotes, id)
	return nil
}

var _ storage.Store = (*Store)(nil)
