package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminKeyRoundTrip(t *testing.T) {
	key, err := GenerateAdminKey()
	require.NoError(t, err)
	require.NotEmpty(t, key)

	hash, err := HashKey(key)
	require.NoError(t, err)
	assert.NotEqual(t, key, hash)

	assert.True(t, VerifyKey(hash, key))
	assert.False(t, VerifyKey(hash, key+"x"))
	assert.False(t, VerifyKey(hash, ""))
}

func TestHookTokenPrefix(t *testing.T) {
	tok, err := GenerateHookToken()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tok, HookTokenPrefix))

	other, err := GenerateHookToken()
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}
