package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.HashPassword("asdfASDF1234!@#$")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "asdfASDF1234!@#$", hash)

	assert.NoError(t, hasher.ComparePasswordAndHash("asdfASDF1234!@#$", hash))
}

func TestHashPasswordSaltsEveryHash(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	first, err := hasher.HashPassword("secretPASS123")
	require.NoError(t, err)
	second, err := hasher.HashPassword("secretPASS123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NoError(t, hasher.ComparePasswordAndHash("secretPASS123", first))
	assert.NoError(t, hasher.ComparePasswordAndHash("secretPASS123", second))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	_, err := hasher.HashPassword("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEmptyString)
}

func TestComparePasswordAndHashMismatch(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.HashPassword("correctPASS123")
	require.NoError(t, err)

	err = hasher.ComparePasswordAndHash("wrongPASS123", hash)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)
}

func TestComparePasswordAndHashFailsClosedOnGarbageHash(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	err := hasher.ComparePasswordAndHash("whatever", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)
}

func TestNewBcryptHasherClampsCost(t *testing.T) {
	low := NewBcryptHasher(-5)
	hash, err := low.HashPassword("clampedPASS123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestPackageLevelHelpers(t *testing.T) {
	hash, err := HashPassword("packagePASS123")
	require.NoError(t, err)
	assert.NoError(t, ComparePasswordAndHash("packagePASS123", hash))
	assert.Error(t, ComparePasswordAndHash("otherPASS123", hash))
}
