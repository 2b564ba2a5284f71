package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// mongoURIEnv points the test suite at a running MongoDB deployment. The
// suite is skipped when unset so `go test ./...` works without one.
const mongoURIEnv = "MEIGEN_TEST_MONGO_URI"

func newTestStore(t *testing.T) *Mongo {
	t.Helper()

	uri := os.Getenv(mongoURIEnv)
	if uri == "" {
		t.Skipf("set %s to run MongoDB-backed storage tests", mongoURIEnv)
	}

	database := fmt.Sprintf("meigen_test_%d", time.Now().UnixNano())
	store, err := NewMongo(t.Context(), slog.Default(), uri, database)
	require.NoError(t, err)
	t.Cleanup(func() {
		// t.Context() is already canceled by the time cleanups run.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = store.client.Database(database).Drop(ctx)
		_ = store.Close(ctx)
	})
	return store
}

func TestNewMongoUnreachable(t *testing.T) {
	t.Parallel()

	// Nothing listens on port 1; short selection timeouts keep the retry loop
	// spinning until the context deadline cuts it off.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uri := "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=100&connectTimeoutMS=100"
	_, err := NewMongo(ctx, logger, uri, "meigen_test")
	require.ErrorIs(t, err, ErrUnavailable)
	// The failure keeps its cause alongside the sentinel.
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMongoAccounts(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	account, err := store.CreateAccount(t.Context(), Account{
		Email:      "First@Example.com",
		SecretHash: "$2a$10$fakefakefakefakefakefake",
	})
	require.NoError(t, err)
	assert.False(t, account.ID.IsZero())
	assert.Equal(t, "first@example.com", account.Email)
	assert.False(t, account.CreatedAt.IsZero())

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := store.CreateAccount(t.Context(), Account{
			Email:      "FIRST@example.COM",
			SecretHash: "other",
		})
		require.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("concurrent duplicate creates", func(t *testing.T) {
		const attempts = 8
		errs := make([]error, attempts)
		var wg sync.WaitGroup
		for i := range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = store.CreateAccount(t.Context(), Account{
					Email:      "race@example.com",
					SecretHash: "hash",
				})
			}()
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, ErrAlreadyExists)
			}
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("invalid email rejected", func(t *testing.T) {
		_, err := store.CreateAccount(t.Context(), Account{Email: "not-an-email"})
		require.ErrorIs(t, err, ErrInvalidEmail)
	})

	t.Run("lookup by id and email", func(t *testing.T) {
		byID, err := store.GetAccount(t.Context(), account.ID)
		require.NoError(t, err)
		assert.Equal(t, account, byID)

		byEmail, err := store.GetAccountByEmail(t.Context(), "First@EXAMPLE.com")
		require.NoError(t, err)
		assert.Equal(t, account, byEmail)

		_, err = store.GetAccount(t.Context(), primitive.NewObjectID())
		require.ErrorIs(t, err, ErrNotFound)
		_, err = store.GetAccountByEmail(t.Context(), "missing@example.com")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update secret leaves other fields alone", func(t *testing.T) {
		err := store.UpdateAccountSecret(t.Context(), account.ID, "$2a$10$updated")
		require.NoError(t, err)

		updated, err := store.GetAccount(t.Context(), account.ID)
		require.NoError(t, err)
		assert.Equal(t, "$2a$10$updated", updated.SecretHash)
		assert.Equal(t, account.Email, updated.Email)
		assert.Equal(t, account.CreatedAt, updated.CreatedAt)

		err = store.UpdateAccountSecret(t.Context(), primitive.NewObjectID(), "x")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMongoQuotes(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	owner, err := store.CreateAccount(t.Context(), Account{
		Email:      "quoter@example.com",
		SecretHash: "hash",
	})
	require.NoError(t, err)

	first, err := store.CreateQuote(t.Context(), Quote{
		Text:      "People die if they are killed.",
		Character: "Shirou Emiya",
		Source:    "Fate/stay night",
		Owner:     owner.ID,
	})
	require.NoError(t, err)
	second, err := store.CreateQuote(t.Context(), Quote{
		Text:  "A lesson without pain is meaningless.",
		Owner: owner.ID,
	})
	require.NoError(t, err)

	t.Run("get", func(t *testing.T) {
		got, err := store.GetQuote(t.Context(), first.ID)
		require.NoError(t, err)
		assert.Equal(t, first, got)

		_, err = store.GetQuote(t.Context(), primitive.NewObjectID())
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list newest first with cursor", func(t *testing.T) {
		quotes, err := store.ListQuotes(t.Context(), primitive.NilObjectID, 10)
		require.NoError(t, err)
		require.Len(t, quotes, 2)
		assert.Equal(t, second.ID, quotes[0].ID)
		assert.Equal(t, first.ID, quotes[1].ID)

		page, err := store.ListQuotes(t.Context(), second.ID, 10)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, first.ID, page[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		first.Text = "People die when they are killed."
		err := store.UpdateQuote(t.Context(), first)
		require.NoError(t, err)

		got, err := store.GetQuote(t.Context(), first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Text, got.Text)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

		missing := first
		missing.ID = primitive.NewObjectID()
		require.ErrorIs(t, store.UpdateQuote(t.Context(), missing), ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteQuote(t.Context(), second.ID))
		require.ErrorIs(t, store.DeleteQuote(t.Context(), second.ID), ErrNotFound)
	})

	t.Run("deleting the account removes its quotes", func(t *testing.T) {
		require.NoError(t, store.DeleteAccount(t.Context(), owner.ID))
		_, err := store.GetQuote(t.Context(), first.ID)
		require.ErrorIs(t, err, ErrNotFound)
	})
}
