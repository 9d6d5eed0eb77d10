package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasherRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("Secret123!")
	require.NoError(t, err)
	require.NotEqual(t, "Secret123!", hash)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, bcrypt.MinCost, cost)

	require.True(t, h.Verify(hash, "Secret123!"))
	require.False(t, h.Verify(hash, "secret123!"))
	// Verification does not depend on the verifier's own cost.
	require.True(t, DefaultHasher.Verify(hash, "Secret123!"))
}

func TestHasherRejectsUnusablePasswords(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)

	_, err = h.Hash(strings.Repeat("x", 73))
	require.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = h.Hash(strings.Repeat("x", 72))
	require.NoError(t, err)
}

func TestNewHasherClampsCost(t *testing.T) {
	require.Equal(t, bcrypt.MinCost, NewHasher(0).Cost())
	require.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost())
	require.Equal(t, bcrypt.DefaultCost, Hasher{}.Cost())
	require.Equal(t, bcrypt.DefaultCost, DefaultHasher.Cost())
}

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]struct{})
	for range 16 {
		token, err := GenerateToken(32)
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		require.Len(t, raw, 32)

		_, dup := seen[token]
		require.False(t, dup)
		seen[token] = struct{}{}
	}

	_, err := GenerateToken(0)
	require.Error(t, err)
}
