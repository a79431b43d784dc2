package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"giveaway/internal/models"
)

func TestCreateCampaign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")

	end := time.Now().Add(48 * time.Hour)
	campaign, err := env.campaigns.CreateCampaign(ctx, models.CreateCampaignRequest{
		Title:           "  Summer gift  ",
		MaxParticipants: 10,
		EndDate:         end,
	}, "host-1")
	require.NoError(t, err)

	assert.Equal(t, "Summer gift", campaign.Title)
	assert.Equal(t, models.CampaignStatusDraft, campaign.Status)
	assert.Equal(t, "Host host-1", campaign.HostDisplayName)
	assert.True(t, campaign.DrawDate.Equal(campaign.EndDate), "draw date defaults to end date")
	assert.Contains(t, campaign.UniqueLink, "https://gift.example.com/l/")

	links, err := env.links.GetCampaignLinks(ctx, campaign.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://gift.example.com/campaign/"+campaign.ID, links[0].OriginalURL)

	host, err := env.hosts.GetHost(ctx, "host-1")
	require.NoError(t, err)
	assert.Equal(t, 1, host.TotalCampaigns)
}

func TestCreateCampaignRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	end := time.Now().Add(time.Hour)

	_, err := env.campaigns.CreateCampaign(ctx, models.CreateCampaignRequest{Title: "x", EndDate: end}, "stranger")
	requireKind(t, err, KindPermissionDenied)

	_, err = env.campaigns.CreateCampaign(ctx, models.CreateCampaignRequest{Title: " ", EndDate: end}, "host-1")
	requireKind(t, err, KindInvalidInput)

	_, err = env.campaigns.CreateCampaign(ctx, models.CreateCampaignRequest{Title: "x", MaxParticipants: -1, EndDate: end}, "host-1")
	requireKind(t, err, KindInvalidInput)

	_, err = env.campaigns.CreateCampaign(ctx, models.CreateCampaignRequest{
		Title:     "x",
		StartDate: end.Add(time.Hour),
		EndDate:   end,
	}, "host-1")
	requireKind(t, err, KindInvalidInput)

	require.NoError(t, env.hosts.DeactivateHost(ctx, "host-1"))
	_, err = env.campaigns.CreateCampaign(ctx, models.CreateCampaignRequest{Title: "x", EndDate: end}, "host-1")
	requireKind(t, err, KindPermissionDenied)
}

func TestUpdateCampaignStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	env.registerHost(t, "host-2")

	campaign, err := env.campaigns.CreateCampaign(ctx, models.CreateCampaignRequest{
		Title:   "Lifecycle",
		EndDate: time.Now().Add(time.Hour),
	}, "host-1")
	require.NoError(t, err)

	_, err = env.campaigns.UpdateCampaignStatus(ctx, campaign.ID, "active", "host-2")
	requireKind(t, err, KindPermissionDenied)

	_, err = env.campaigns.UpdateCampaignStatus(ctx, campaign.ID, "ended", "host-1")
	requireKind(t, err, KindInvalidTransition)

	_, err = env.campaigns.UpdateCampaignStatus(ctx, campaign.ID, "paused", "host-1")
	requireKind(t, err, KindInvalidInput)

	updated, err := env.campaigns.UpdateCampaignStatus(ctx, campaign.ID, "active", "host-1")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, updated.Status)

	_, err = env.campaigns.UpdateCampaignStatus(ctx, campaign.ID, "completed", "host-1")
	requireKind(t, err, KindInvalidTransition)

	_, err = env.campaigns.UpdateCampaignStatus(ctx, campaign.ID, "draft", "host-1")
	requireKind(t, err, KindInvalidTransition)

	updated, err = env.campaigns.UpdateCampaignStatus(ctx, campaign.ID, "ended", "host-1")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusEnded, updated.Status)

	_, err = env.campaigns.UpdateCampaignStatus(ctx, "missing", "active", "host-1")
	requireKind(t, err, KindNotFound)
}

func TestDeleteCampaign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 0)
	env.join(t, campaign.ID, "user-a")

	err := env.campaigns.DeleteCampaign(ctx, campaign.ID, "host-2")
	requireKind(t, err, KindPermissionDenied)

	require.NoError(t, env.campaigns.DeleteCampaign(ctx, campaign.ID, "host-1"))

	_, err = env.campaigns.GetCampaign(ctx, campaign.ID)
	requireKind(t, err, KindNotFound)

	// the ledger keeps its history
	participations, err := env.ledger.GetUserParticipations(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, participations, 1)

	// links stop resolving but their rows remain
	code := codeOf(t, campaign.UniqueLink)
	_, err = env.links.TrackLinkClick(ctx, code, models.ClickMeta{IPAddress: "10.0.0.1"})
	requireKind(t, err, KindNotFound)
	link, err := env.repo.GetLinkByCode(ctx, code)
	require.NoError(t, err)
	assert.False(t, link.IsActive)
	assert.NotNil(t, link.DeletedAt)
}

func TestJoinAndDrawScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 2)

	env.join(t, campaign.ID, "user-a", "user-b")

	_, err := env.campaigns.JoinCampaign(ctx, campaign.ID, "user-c", "")
	requireKind(t, err, KindCapacityExceeded)

	current, err := env.campaigns.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.ParticipantCount)
	assert.True(t, current.IsFull())

	result, err := env.campaigns.DrawWinners(ctx, campaign.ID, 2, "host-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-a", "user-b"}, result.WinnerUserIDs)
	assert.Equal(t, 2, result.WinnerCount)

	current, err = env.campaigns.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusDrawn, current.Status)
	assert.Equal(t, 2, current.WinnerCount)
	assert.True(t, current.Status.IsTerminal())

	for _, id := range []string{"user-a", "user-b"} {
		p, err := env.ledger.GetParticipation(ctx, id, campaign.ID)
		require.NoError(t, err)
		assert.True(t, p.IsWinner)
		assert.NotNil(t, p.WonAt)
	}

	_, err = env.campaigns.DrawWinners(ctx, campaign.ID, 1, "host-1")
	requireKind(t, err, KindInvalidState)

	_, err = env.campaigns.JoinCampaign(ctx, campaign.ID, "user-d", "")
	requireKind(t, err, KindInvalidState)
}

func TestJoinCampaignIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 1)

	first, err := env.campaigns.JoinCampaign(ctx, campaign.ID, "user-a", "twitter")
	require.NoError(t, err)
	second, err := env.campaigns.JoinCampaign(ctx, campaign.ID, "user-a", "instagram")
	require.NoError(t, err, "a repeated join of a full campaign still succeeds")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "twitter", second.ReferralSource)

	current, err := env.campaigns.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.ParticipantCount)
}

func TestJoinCampaignRequiresActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")

	campaign, err := env.campaigns.CreateCampaign(ctx, models.CreateCampaignRequest{
		Title:   "Draft",
		EndDate: time.Now().Add(time.Hour),
	}, "host-1")
	require.NoError(t, err)

	_, err = env.campaigns.JoinCampaign(ctx, campaign.ID, "user-a", "")
	requireKind(t, err, KindInvalidState)

	_, err = env.campaigns.JoinCampaign(ctx, "missing", "user-a", "")
	requireKind(t, err, KindNotFound)
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 5)

	const joiners = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		joined  int
		refused int
	)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.campaigns.JoinCampaign(ctx, campaign.ID, fmt.Sprintf("user-%02d", i), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case IsKind(err, KindCapacityExceeded):
				refused++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, joined)
	assert.Equal(t, joiners-5, refused)

	page, err := env.ledger.GetCampaignParticipants(ctx, campaign.ID, 1, 100, "")
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)

	current, err := env.campaigns.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, current.ParticipantCount)
}

func TestDrawWinnersExactCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 0)
	env.join(t, campaign.ID, "user-a", "user-b", "user-c", "user-d", "user-e")

	result, err := env.campaigns.DrawWinners(ctx, campaign.ID, 3, "host-1")
	require.NoError(t, err)
	require.Len(t, result.WinnerUserIDs, 3)

	seen := make(map[string]bool)
	for _, id := range result.WinnerUserIDs {
		assert.False(t, seen[id], "winner %s drawn twice", id)
		seen[id] = true
	}

	page, err := env.ledger.GetCampaignParticipants(ctx, campaign.ID, 1, 10, "")
	require.NoError(t, err)
	winners := 0
	for _, p := range page.Participants {
		if p.IsWinner {
			winners++
			assert.True(t, seen[p.UserID])
		}
	}
	assert.Equal(t, 3, winners)

	// winners are notified best-effort; none registered a token
	env.campaigns.Wait()
	assert.Empty(t, env.gateway.tokens())
}

func TestDrawWinnersInsufficientParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 0)
	env.join(t, campaign.ID, "user-a", "user-b")

	_, err := env.campaigns.DrawWinners(ctx, campaign.ID, 3, "host-1")
	requireKind(t, err, KindInsufficientParticipants)

	current, err := env.campaigns.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, current.Status)
	assert.Equal(t, 0, current.WinnerCount)

	page, err := env.ledger.GetCampaignParticipants(ctx, campaign.ID, 1, 10, "")
	require.NoError(t, err)
	for _, p := range page.Participants {
		assert.False(t, p.IsWinner)
	}
}

func TestDrawWinnersRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")

	draft, err := env.campaigns.CreateCampaign(ctx, models.CreateCampaignRequest{
		Title:   "Draft",
		EndDate: time.Now().Add(time.Hour),
	}, "host-1")
	require.NoError(t, err)

	_, err = env.campaigns.DrawWinners(ctx, draft.ID, 1, "host-1")
	requireKind(t, err, KindInvalidState)

	active := env.activeCampaign(t, "host-1", 0)
	env.join(t, active.ID, "user-a")

	_, err = env.campaigns.DrawWinners(ctx, active.ID, 0, "host-1")
	requireKind(t, err, KindInvalidInput)

	_, err = env.campaigns.DrawWinners(ctx, active.ID, 1, "host-2")
	requireKind(t, err, KindPermissionDenied)
}

func TestDrawWinnersFromEnded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 0)
	env.join(t, campaign.ID, "user-a", "user-b")

	for _, id := range []string{"user-a", "user-b"} {
		_, err := env.users.EnsureUser(ctx, userPrincipal(id))
		require.NoError(t, err)
	}
	require.NoError(t, env.users.RegisterPushToken(ctx, "user-a", "tok-a"))

	_, err := env.campaigns.UpdateCampaignStatus(ctx, campaign.ID, "ended", "host-1")
	require.NoError(t, err)

	_, err = env.campaigns.JoinCampaign(ctx, campaign.ID, "user-c", "")
	requireKind(t, err, KindInvalidState)

	result, err := env.campaigns.DrawWinners(ctx, campaign.ID, 2, "host-1")
	require.NoError(t, err)
	assert.Len(t, result.WinnerUserIDs, 2)

	env.campaigns.Wait()
	assert.Equal(t, []string{"tok-a"}, env.gateway.tokens())
}

func TestGetCampaignsPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")

	for i := 0; i < 5; i++ {
		_, err := env.campaigns.CreateCampaign(ctx, models.CreateCampaignRequest{
			Title:   fmt.Sprintf("Campaign %d", i),
			EndDate: time.Now().Add(time.Hour),
		}, "host-1")
		require.NoError(t, err)
	}

	var titles []string
	req := models.CampaignListRequest{Sort: "title:asc", PageSize: 2}
	for pages := 0; ; pages++ {
		require.Less(t, pages, 5, "pagination did not terminate")

		page, err := env.campaigns.GetCampaigns(ctx, req)
		require.NoError(t, err)
		for _, c := range page.Campaigns {
			titles = append(titles, c.Title)
		}
		if !page.HasMore {
			assert.Empty(t, page.NextCursor)
			break
		}
		require.NotEmpty(t, page.NextCursor)
		req.Cursor = page.NextCursor
	}

	assert.Equal(t, []string{"Campaign 0", "Campaign 1", "Campaign 2", "Campaign 3", "Campaign 4"}, titles)
}

func TestGetCampaignsDefaultOrderCoversAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")

	created := make(map[string]bool)
	for i := 0; i < 7; i++ {
		c, err := env.campaigns.CreateCampaign(ctx, models.CreateCampaignRequest{
			Title:   fmt.Sprintf("Campaign %d", i),
			EndDate: time.Now().Add(time.Hour),
		}, "host-1")
		require.NoError(t, err)
		created[c.ID] = true
	}

	seen := make(map[string]bool)
	req := models.CampaignListRequest{PageSize: 3}
	for {
		page, err := env.campaigns.GetCampaigns(ctx, req)
		require.NoError(t, err)
		for _, c := range page.Campaigns {
			assert.False(t, seen[c.ID], "campaign %s listed twice", c.ID)
			seen[c.ID] = true
		}
		if !page.HasMore {
			break
		}
		req.Cursor = page.NextCursor
	}
	assert.Equal(t, created, seen)
}

func TestGetCampaignsFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	env.registerHost(t, "host-2")

	drawn := env.activeCampaign(t, "host-1", 0)
	env.join(t, drawn.ID, "user-a")
	_, err := env.campaigns.DrawWinners(ctx, drawn.ID, 1, "host-1")
	require.NoError(t, err)

	env.activeCampaign(t, "host-1", 0)
	env.activeCampaign(t, "host-2", 0)

	page, err := env.campaigns.GetCampaigns(ctx, models.CampaignListRequest{
		Filter: models.CampaignFilter{HostID: "host-1"},
	})
	require.NoError(t, err)
	assert.Len(t, page.Campaigns, 2)

	page, err = env.campaigns.GetCampaigns(ctx, models.CampaignListRequest{
		Filter: models.CampaignFilter{Status: "active"},
	})
	require.NoError(t, err)
	assert.Len(t, page.Campaigns, 2)

	page, err = env.campaigns.GetCampaigns(ctx, models.CampaignListRequest{
		Filter: models.CampaignFilter{Status: "completed"},
	})
	require.NoError(t, err)
	require.Len(t, page.Campaigns, 1)
	assert.Equal(t, drawn.ID, page.Campaigns[0].ID)

	yes := true
	page, err = env.campaigns.GetCampaigns(ctx, models.CampaignListRequest{
		Filter: models.CampaignFilter{HasWinners: &yes},
	})
	require.NoError(t, err)
	require.Len(t, page.Campaigns, 1)

	_, err = env.campaigns.GetCampaigns(ctx, models.CampaignListRequest{Sort: "password"})
	requireKind(t, err, KindInvalidInput)

	_, err = env.campaigns.GetCampaigns(ctx, models.CampaignListRequest{Cursor: "not-a-cursor"})
	requireKind(t, err, KindInvalidInput)
}

func TestCloseExpiredCampaigns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")

	campaign := env.activeCampaign(t, "host-1", 0)
	open := env.activeCampaign(t, "host-1", 0)

	env.campaigns.now = func() time.Time { return time.Now().UTC().Add(30 * 24 * time.Hour) }
	require.NoError(t, env.repo.UpdateCampaignFields(ctx, open.ID, map[string]interface{}{
		"end_date": time.Now().UTC().Add(60 * 24 * time.Hour),
	}))

	closed, err := env.campaigns.CloseExpiredCampaigns(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	current, err := env.campaigns.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusEnded, current.Status)

	current, err = env.campaigns.GetCampaign(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, current.Status)
}

func TestReconcileCounters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 0)
	env.join(t, campaign.ID, "user-a", "user-b")

	require.NoError(t, env.repo.UpdateCampaignFields(ctx, campaign.ID, map[string]interface{}{
		"participant_count": 42,
	}))

	n, err := env.campaigns.ReconcileCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	current, err := env.campaigns.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.ParticipantCount)
}

// blockingGateway holds every send until release is closed
type blockingGateway struct {
	release chan struct{}
	sent    chan string
}

func (g *blockingGateway) Send(ctx context.Context, token string, _ PushMessage) (string, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	g.sent <- token
	return "msg", nil
}

func TestDrawDoesNotWaitForPushes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerHost(t, "host-1")
	campaign := env.activeCampaign(t, "host-1", 0)

	users := make([]string, 12)
	for i := range users {
		users[i] = fmt.Sprintf("user-%02d", i)
		_, err := env.users.EnsureUser(ctx, userPrincipal(users[i]))
		require.NoError(t, err)
		require.NoError(t, env.users.RegisterPushToken(ctx, users[i], "tok-"+users[i]))
	}
	env.join(t, campaign.ID, users...)

	gateway := &blockingGateway{release: make(chan struct{}), sent: make(chan string, len(users))}
	env.campaigns.notifier = NewNotificationService(env.repo, gateway, zap.NewNop())

	drawCtx, cancel := context.WithCancel(ctx)
	result, err := env.campaigns.DrawWinners(drawCtx, campaign.ID, len(users), "host-1")
	require.NoError(t, err)
	assert.Len(t, result.WinnerUserIDs, len(users))

	// the request is over; pushes carry on regardless
	cancel()
	assert.Empty(t, gateway.sent)
	close(gateway.release)
	env.campaigns.Wait()

	assert.Len(t, gateway.sent, len(users))
}
