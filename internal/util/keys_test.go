package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLicenseKey(t *testing.T) {
	fullKey, keyHash, err := GenerateLicenseKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(fullKey, "al_"))
	parts := strings.Split(fullKey, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, HashSHA256(fullKey), keyHash)

	other, _, err := GenerateLicenseKey()
	require.NoError(t, err)
	assert.NotEqual(t, fullKey, other)
}

func TestHashSHA256(t *testing.T) {
	got := HashSHA256("device-001")
	assert.Len(t, got, 64)
	assert.Equal(t, got, HashSHA256("device-001"))
	assert.NotEqual(t, got, HashSHA256("device-002"))
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "wo***al", MaskValue("workstation-042.corp.local"))
	assert.Equal(t, "***", MaskValue("abc"))
	assert.Equal(t, "***", MaskValue("abcd"))
	assert.Equal(t, "ab***de", MaskValue("abcde"))
	assert.Equal(t, "***", MaskValue(""))
}
