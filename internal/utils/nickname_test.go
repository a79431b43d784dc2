package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nicknamePattern = regexp.MustCompile(`^[A-Z][a-z]+_[A-Z][a-z]+_\d{4}$`)

func TestGenerateNickname(t *testing.T) {
	for i := 0; i < 50; i++ {
		name, err := GenerateNickname()
		require.NoError(t, err)
		assert.Regexp(t, nicknamePattern, name)
	}
}

func TestDisplayNameOr(t *testing.T) {
	name, err := DisplayNameOr("Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	name, err = DisplayNameOr("")
	require.NoError(t, err)
	assert.Regexp(t, nicknamePattern, name)
}
