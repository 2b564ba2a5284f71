package auth

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meigenapp/meigen/internal/storage"
	"github.com/meigenapp/meigen/internal/storage/storagetest"
)

// countingHasher counts Hash calls so tests can assert how much hashing work
// a flow performed.
type countingHasher struct {
	PasswordHasher
	hashes int
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.hashes++
	return h.PasswordHasher.Hash(password)
}

func newTestService(t *testing.T, store storage.Accounts, registerToken bool) *Service {
	t.Helper()
	return NewService(
		store,
		NewBcryptHasher(bcrypt.MinCost),
		NewIssuer([]byte("test-secret"), time.Hour),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		nil,
		registerToken,
	)
}

func TestServiceRegister(t *testing.T) {
	t.Parallel()

	t.Run("success issues a token", func(t *testing.T) {
		t.Parallel()
		store := storagetest.New()
		svc := newTestService(t, store, true)

		result, err := svc.Register(t.Context(), "New@Example.com", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", result.Account.Email)
		assert.NotEmpty(t, result.Token)

		// Token resolves back to the new account.
		got, err := svc.issuer.Validate(result.Token)
		require.NoError(t, err)
		assert.Equal(t, result.Account.ID, got)

		// The stored secret is a hash, never the plaintext.
		stored, err := store.GetAccountByEmail(t.Context(), "new@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, "hunter2", stored.SecretHash)
		match, err := svc.hasher.Verify("hunter2", stored.SecretHash)
		require.NoError(t, err)
		assert.True(t, match)
	})

	t.Run("token issuance can be disabled", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(t, storagetest.New(), false)

		result, err := svc.Register(t.Context(), "a@b.com", "hunter2")
		require.NoError(t, err)
		assert.Empty(t, result.Token)
		assert.False(t, result.Account.ID.IsZero())
	})

	t.Run("input validation", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(t, storagetest.New(), true)

		_, err := svc.Register(t.Context(), "a@b.com", "")
		require.ErrorIs(t, err, ErrPasswordRequired)

		_, err = svc.Register(t.Context(), "not-an-email", "hunter2")
		require.ErrorIs(t, err, storage.ErrInvalidEmail)

		_, err = svc.Register(t.Context(), "", "hunter2")
		require.ErrorIs(t, err, storage.ErrInvalidEmail)

		_, err = svc.Register(t.Context(), "a@b.com", strings.Repeat("a", 100))
		require.ErrorIs(t, err, ErrPasswordTooLong)
	})

	t.Run("invalid email skips hashing", func(t *testing.T) {
		t.Parallel()
		hasher := &countingHasher{PasswordHasher: NewBcryptHasher(bcrypt.MinCost)}
		svc := NewService(
			storagetest.New(),
			hasher,
			NewIssuer([]byte("test-secret"), time.Hour),
			slog.New(slog.NewTextHandler(io.Discard, nil)),
			nil,
			false,
		)

		_, err := svc.Register(t.Context(), "not-an-email", "hunter2")
		require.ErrorIs(t, err, storage.ErrInvalidEmail)
		assert.Zero(t, hasher.hashes)

		_, err = svc.Register(t.Context(), "ok@example.com", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, 1, hasher.hashes)
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(t, storagetest.New(), true)

		_, err := svc.Register(t.Context(), "dup@example.com", "first")
		require.NoError(t, err)
		_, err = svc.Register(t.Context(), "DUP@example.com", "second")
		require.ErrorIs(t, err, storage.ErrAlreadyExists)
	})

	t.Run("concurrent duplicate registrations", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(t, storagetest.New(), true)

		const attempts = 4
		errs := make([]error, attempts)
		var wg sync.WaitGroup
		for i := range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.Register(t.Context(), "race@example.com", "hunter2")
			}()
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, storage.ErrAlreadyExists)
			}
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestServiceSignIn(t *testing.T) {
	t.Parallel()

	store := storagetest.New()
	svc := newTestService(t, store, true)
	registered, err := svc.Register(t.Context(), "a@b.com", "hunter2")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		t.Parallel()
		token, err := svc.SignIn(t.Context(), "a@b.com", "hunter2")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		got, err := svc.issuer.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, registered.Account.ID, got)
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		t.Parallel()
		_, err := svc.SignIn(t.Context(), "A@B.COM", "hunter2")
		require.NoError(t, err)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		t.Parallel()
		_, wrongPassword := svc.SignIn(t.Context(), "a@b.com", "wrong")
		_, unknownEmail := svc.SignIn(t.Context(), "nope@b.com", "x")

		require.ErrorIs(t, wrongPassword, ErrAuthenticationFailed)
		require.ErrorIs(t, unknownEmail, ErrAuthenticationFailed)
		assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	})

	t.Run("store failure is not an authentication failure", func(t *testing.T) {
		t.Parallel()
		failing := storagetest.New()
		failing.FailWith = storage.ErrUnavailable
		broken := newTestService(t, failing, true)

		_, err := broken.SignIn(t.Context(), "a@b.com", "hunter2")
		require.ErrorIs(t, err, storage.ErrUnavailable)
		require.NotErrorIs(t, err, ErrAuthenticationFailed)
	})
}

func TestServiceChangeSecret(t *testing.T) {
	t.Parallel()

	store := storagetest.New()
	svc := newTestService(t, store, true)
	registered, err := svc.Register(t.Context(), "a@b.com", "old password")
	require.NoError(t, err)
	oldHash := registered.Account.SecretHash

	err = svc.ChangeSecret(t.Context(), registered.Account.ID, "new password")
	require.NoError(t, err)

	updated, err := store.GetAccount(t.Context(), registered.Account.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, updated.SecretHash)

	_, err = svc.SignIn(t.Context(), "a@b.com", "old password")
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	_, err = svc.SignIn(t.Context(), "a@b.com", "new password")
	require.NoError(t, err)

	require.ErrorIs(t, svc.ChangeSecret(t.Context(), registered.Account.ID, ""), ErrPasswordRequired)
}
