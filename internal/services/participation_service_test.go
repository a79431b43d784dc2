package services

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway/internal/models"
)

func TestCreateParticipationDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 0)

	p, err := env.ledger.CreateParticipation(ctx, "user-a", campaign.ID, "host-1", "  ")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultReferralSource, p.ReferralSource)
	assert.False(t, p.ParticipatedAt.IsZero())
	assert.False(t, p.IsWinner)

	again, err := env.ledger.CreateParticipation(ctx, "user-a", campaign.ID, "host-1", "line")
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, models.DefaultReferralSource, again.ReferralSource)
}

func TestInstallAndPromptTracking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 0)

	_, err := env.users.EnsureUser(ctx, userPrincipal("user-a"))
	require.NoError(t, err)
	env.join(t, campaign.ID, "user-a", "user-b")

	p, err := env.ledger.RecordInstallPromptShown(ctx, "user-a", campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, p.InstallPromptShownAt)
	shownAt := *p.InstallPromptShownAt

	p, err = env.ledger.RecordInstallPromptShown(ctx, "user-a", campaign.ID)
	require.NoError(t, err)
	assert.True(t, p.InstallPromptShownAt.Equal(shownAt), "first prompt time is kept")

	p, err = env.ledger.RecordInstallPromptDismissed(ctx, "user-a", campaign.ID)
	require.NoError(t, err)
	assert.NotNil(t, p.InstallPromptDismissedAt)

	p, err = env.ledger.UpdatePwaInstallStatus(ctx, "user-a", campaign.ID, true)
	require.NoError(t, err)
	assert.True(t, p.IsPWAInstalled)
	require.NotNil(t, p.PWAInstalledAt)

	current, err := env.campaigns.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.InstallPromptShown)
	assert.Equal(t, 1, current.InstallCompleted)

	user, err := env.users.GetUser(ctx, "user-a")
	require.NoError(t, err)
	assert.True(t, user.IsPWAInstalled)
	assert.Equal(t, 1, user.InstallPromptCount)
	assert.Equal(t, 1, user.TotalParticipations)

	_, err = env.ledger.UpdatePwaInstallStatus(ctx, "user-z", campaign.ID, true)
	requireKind(t, err, KindNotFound)
}

func TestNotificationSettings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 0)
	env.join(t, campaign.ID, "user-a")

	p, err := env.ledger.UpdateNotificationSettings(ctx, "user-a", campaign.ID, true, "device-token")
	require.NoError(t, err)
	assert.True(t, p.NotificationEnabled)

	_, err = env.campaigns.DrawWinners(ctx, campaign.ID, 1, "host-1")
	require.NoError(t, err)
	env.campaigns.Wait()
	assert.Equal(t, []string{"device-token"}, env.gateway.tokens())

	p, err = env.ledger.UpdateNotificationSettings(ctx, "user-a", campaign.ID, false, "")
	require.NoError(t, err)
	assert.False(t, p.NotificationEnabled)
}

func TestNotificationOptOutOverridesUserToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	for _, id := range []string{"user-a", "user-b", "user-c"} {
		_, err := env.users.EnsureUser(ctx, userPrincipal(id))
		require.NoError(t, err)
		require.NoError(t, env.users.RegisterPushToken(ctx, id, "tok-"+id))
	}

	optedOut := env.activeCampaign(t, "host-1", 0)
	env.join(t, optedOut.ID, "user-a")
	p, err := env.ledger.UpdateNotificationSettings(ctx, "user-a", optedOut.ID, false, "")
	require.NoError(t, err)
	assert.NotNil(t, p.NotificationSetAt)

	_, err = env.campaigns.DrawWinners(ctx, optedOut.ID, 1, "host-1")
	require.NoError(t, err)
	env.campaigns.Wait()
	assert.Empty(t, env.gateway.tokens())

	// without a campaign choice the user-level token applies
	unset := env.activeCampaign(t, "host-1", 0)
	env.join(t, unset.ID, "user-b")
	_, err = env.campaigns.DrawWinners(ctx, unset.ID, 1, "host-1")
	require.NoError(t, err)
	env.campaigns.Wait()
	assert.Equal(t, []string{"tok-user-b"}, env.gateway.tokens())

	// opting in without a device token falls back to the user's token
	optedIn := env.activeCampaign(t, "host-1", 0)
	env.join(t, optedIn.ID, "user-c")
	_, err = env.ledger.UpdateNotificationSettings(ctx, "user-c", optedIn.ID, true, "")
	require.NoError(t, err)
	_, err = env.campaigns.DrawWinners(ctx, optedIn.ID, 1, "host-1")
	require.NoError(t, err)
	env.campaigns.Wait()
	assert.Equal(t, []string{"tok-user-b", "tok-user-c"}, env.gateway.tokens())
}

func TestSetWinnerAndClaimPrize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 0)
	env.join(t, campaign.ID, "user-a", "user-b")

	_, err := env.ledger.ClaimPrize(ctx, "user-b", campaign.ID)
	requireKind(t, err, KindInvalidState)

	p, err := env.ledger.SetWinner(ctx, "user-a", campaign.ID)
	require.NoError(t, err)
	assert.True(t, p.IsWinner)
	require.NotNil(t, p.WonAt)
	wonAt := *p.WonAt

	p, err = env.ledger.SetWinner(ctx, "user-a", campaign.ID)
	require.NoError(t, err)
	assert.True(t, p.WonAt.Equal(wonAt))

	p, err = env.ledger.ClaimPrize(ctx, "user-a", campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, p.PrizeClaimedAt)
}

func TestGetCampaignParticipantsPaging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 0)

	for i := 0; i < 5; i++ {
		env.join(t, campaign.ID, fmt.Sprintf("user-%d", i))
	}

	page, err := env.ledger.GetCampaignParticipants(ctx, campaign.ID, 1, 2, "user_id")
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Participants, 2)
	assert.Equal(t, "user-0", page.Participants[0].UserID)

	page, err = env.ledger.GetCampaignParticipants(ctx, campaign.ID, 3, 2, "user_id:desc")
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	require.Len(t, page.Participants, 1)
	assert.Equal(t, "user-0", page.Participants[0].UserID)

	page, err = env.ledger.GetCampaignParticipants(ctx, campaign.ID, 0, 1000, "")
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, maxParticipantLimit, page.Limit)

	_, err = env.ledger.GetCampaignParticipants(ctx, campaign.ID, 1, 10, "notification_token")
	requireKind(t, err, KindInvalidInput)

	_, err = env.ledger.GetCampaignParticipants(ctx, campaign.ID, math.MaxInt, 100, "")
	requireKind(t, err, KindInvalidInput)

	page, err = env.ledger.GetCampaignParticipants(ctx, campaign.ID, maxParticipantPage, 100, "")
	require.NoError(t, err)
	assert.Empty(t, page.Participants)
	assert.False(t, page.HasMore)
}

func TestLogAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 0)

	require.NoError(t, env.ledger.LogAccess(ctx, &models.AccessLog{
		CampaignID: campaign.ID,
		IPAddress:  "10.0.0.1",
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0)",
	}))

	current, err := env.campaigns.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.AccessCount)
}

func TestInstallPromptDecision(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)
	old := now.Add(-48 * time.Hour)

	tests := []struct {
		name     string
		user     models.User
		wantShow bool
		wantNext bool
	}{
		{"never prompted", models.User{}, true, false},
		{"installed", models.User{IsPWAInstalled: true}, false, false},
		{"prompt limit reached", models.User{InstallPromptCount: maxInstallPrompts, LastInstallPromptAt: &old}, false, false},
		{"cooling down", models.User{InstallPromptCount: 1, LastInstallPromptAt: &recent}, false, true},
		{"cooldown elapsed", models.User{InstallPromptCount: 2, LastInstallPromptAt: &old}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := installPromptDecision(&tt.user, now)
			assert.Equal(t, tt.wantShow, decision.ShouldShow)
			assert.Equal(t, tt.wantNext, decision.NextEligible != nil)
			if decision.NextEligible != nil {
				assert.True(t, decision.NextEligible.Equal(recent.Add(installPromptCooldown)))
			}
		})
	}
}

func TestUserPushToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.users.RegisterPushToken(ctx, "ghost", "tok")
	requireKind(t, err, KindNotFound)

	_, err = env.users.EnsureUser(ctx, userPrincipal("user-a"))
	require.NoError(t, err)

	err = env.users.RegisterPushToken(ctx, "user-a", " ")
	requireKind(t, err, KindInvalidInput)

	require.NoError(t, env.users.RegisterPushToken(ctx, "user-a", "tok"))
	user, err := env.users.GetUser(ctx, "user-a")
	require.NoError(t, err)
	assert.True(t, user.NotificationEnabled)
	assert.Equal(t, "tok", user.NotificationToken)

	decision, err := env.users.ShouldShowInstallPrompt(ctx, "user-a")
	require.NoError(t, err)
	assert.True(t, decision.ShouldShow)
}
