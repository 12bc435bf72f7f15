package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Weak parameters keep the tests fast; production strength is covered by
// DefaultConfig validation, not by hashing slowly here.
func testHasher(t *testing.T) *Hasher {
	t.Helper()

	h, err := NewHasher(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct horse battery")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := h.Verify("correct horse battery", encoded)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Verify("wrong password!", encoded)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	h := testHasher(t)

	first, err := h.Hash("same password")
	require.NoError(t, err)
	second, err := h.Hash("same password")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestHashRejectsShortPassword(t *testing.T) {
	h := testHasher(t)

	_, err := h.Hash("short")
	require.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestVerifyRejectsMalformedEncoding(t *testing.T) {
	h := testHasher(t)

	_, err := h.Verify("whatever!", "$argon2id$not-a-hash")
	require.Error(t, err)
}

func TestVerifyHonorsEmbeddedParameters(t *testing.T) {
	weak := testHasher(t)
	encoded, err := weak.Hash("parameter travel")
	require.NoError(t, err)

	strong, err := NewHasher(DefaultConfig())
	require.NoError(t, err)

	// A hash created under weaker parameters still verifies: the encoded
	// form carries its own settings.
	ok, err := strong.Verify("parameter travel", encoded)
	require.NoError(t, err)
	require.True(t, ok)

	upgrade, err := strong.NeedsUpgrade(encoded)
	require.NoError(t, err)
	require.True(t, upgrade)
}

func TestDefaultConfigIsValid(t *testing.T) {
	_, err := NewHasher(DefaultConfig())
	require.NoError(t, err)
}
