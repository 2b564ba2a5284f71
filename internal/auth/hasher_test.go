package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherHash(t *testing.T) {
	t.Parallel()
	hasher := NewBcryptHasher(bcrypt.MinCost)

	t.Run("produces a verifiable hash", func(t *testing.T) {
		t.Parallel()
		hash, err := hasher.Hash("hunter2")
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, "hunter2", hash)

		match, err := hasher.Verify("hunter2", hash)
		require.NoError(t, err)
		assert.True(t, match)
	})

	t.Run("salts every call", func(t *testing.T) {
		t.Parallel()
		first, err := hasher.Hash("same password")
		require.NoError(t, err)
		second, err := hasher.Hash("same password")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		for _, hash := range []string{first, second} {
			match, err := hasher.Verify("same password", hash)
			require.NoError(t, err)
			assert.True(t, match)
		}
	})

	t.Run("empty password", func(t *testing.T) {
		t.Parallel()
		_, err := hasher.Hash("")
		require.ErrorIs(t, err, ErrPasswordRequired)
	})

	t.Run("overlong password is a rejection, not a primitive failure", func(t *testing.T) {
		t.Parallel()
		long := make([]byte, 100)
		for i := range long {
			long[i] = 'a'
		}
		_, err := hasher.Hash(string(long))
		require.ErrorIs(t, err, ErrPasswordTooLong)
		assert.NotErrorIs(t, err, ErrHashingPrimitive)
	})
}

func TestBcryptHasherVerify(t *testing.T) {
	t.Parallel()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("correct password")
	require.NoError(t, err)

	t.Run("mismatch is not an error", func(t *testing.T) {
		t.Parallel()
		match, err := hasher.Verify("wrong password", hash)
		require.NoError(t, err)
		assert.False(t, match)
	})

	t.Run("malformed hash is an error", func(t *testing.T) {
		t.Parallel()
		_, err := hasher.Verify("anything", "not-a-bcrypt-hash")
		require.Error(t, err)
	})

	t.Run("dummy hash parses but never matches", func(t *testing.T) {
		t.Parallel()
		match, err := hasher.Verify("anything", dummySecretHash)
		require.NoError(t, err)
		assert.False(t, match)
	})
}
