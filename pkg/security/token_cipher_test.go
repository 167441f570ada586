package security_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketprep-backend/pkg/security"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func TestTokenCipherRoundTrip(t *testing.T) {
	c, err := security.NewTokenCipher(testKey)
	require.NoError(t, err)

	sealed, err := c.Seal("EAAAl-access-token", "vendor-a")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "EAAAl")

	again, err := c.Seal("EAAAl-access-token", "vendor-a")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "fresh nonce per seal")

	plain, err := c.Open(sealed, "vendor-a")
	require.NoError(t, err)
	assert.Equal(t, "EAAAl-access-token", plain)
}

func TestTokenCipherRejectsWrongBinding(t *testing.T) {
	c, err := security.NewTokenCipher(testKey)
	require.NoError(t, err)
	sealed, err := c.Seal("tok", "vendor-a")
	require.NoError(t, err)

	_, err = c.Open(sealed, "vendor-b")
	require.ErrorIs(t, err, security.ErrCiphertext)

	_, err = c.Open("not base64!", "vendor-a")
	require.ErrorIs(t, err, security.ErrCiphertext)

	_, err = c.Open(base64.StdEncoding.EncodeToString([]byte("short")), "vendor-a")
	require.ErrorIs(t, err, security.ErrCiphertext)
}

func TestNewTokenCipherValidatesKey(t *testing.T) {
	_, err := security.NewTokenCipher(base64.StdEncoding.EncodeToString([]byte("too-short")))
	require.Error(t, err)
	_, err = security.NewTokenCipher(strings.Repeat("%", 8))
	require.Error(t, err)
}
