package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway/internal/auth"
	"giveaway/internal/models"
)

func TestEnsureUserKeepsGeneratedNickname(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.users.EnsureUser(ctx, auth.Principal{ID: "anon"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.DisplayName)

	second, err := env.users.EnsureUser(ctx, auth.Principal{ID: "anon", Email: "anon@example.com"})
	require.NoError(t, err)
	assert.Equal(t, first.DisplayName, second.DisplayName)
	assert.Equal(t, "anon@example.com", second.Email)

	renamed, err := env.users.EnsureUser(ctx, auth.Principal{ID: "anon", DisplayName: "Anna"})
	require.NoError(t, err)
	assert.Equal(t, "Anna", renamed.DisplayName)
}

func TestEnsureUserRequiresID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.users.EnsureUser(context.Background(), auth.Principal{})
	requireKind(t, err, KindInvalidInput)
}

func TestRegisterHostWithoutName(t *testing.T) {
	env := newTestEnv(t)

	host, err := env.hosts.RegisterHost(context.Background(), auth.Principal{ID: "nameless"}, models.RegisterHostRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, host.DisplayName)
	assert.True(t, host.IsActive)
}
