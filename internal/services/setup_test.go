package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"giveaway/internal/auth"
	"giveaway/internal/models"
	"giveaway/internal/realtime"
	"giveaway/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// Each test gets its own named in-memory database; a single connection
	// keeps it alive and serializes writers.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&models.Host{},
		&models.User{},
		&models.Campaign{},
		&models.Participation{},
		&models.CampaignLink{},
		&models.AccessLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// recordingGateway is a PushGateway that remembers what it sent
type recordingGateway struct {
	mu   sync.Mutex
	sent []string
}

func (g *recordingGateway) Send(_ context.Context, token string, _ PushMessage) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, token)
	return fmt.Sprintf("msg-%d", len(g.sent)), nil
}

func (g *recordingGateway) tokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.sent...)
}

type testEnv struct {
	db        *gorm.DB
	repo      *repository.Repository
	hub       *realtime.Hub
	gateway   *recordingGateway
	hosts     *HostService
	users     *UserService
	ledger    *ParticipationService
	links     *LinkService
	notifier  *NotificationService
	campaigns *CampaignService
	analytics *AnalyticsService
}

func newTestEnv(t *testing.T) *testEnv {
	db := setupTestDB(t)
	log := zap.NewNop()

	repo := repository.NewRepository(db)
	hub := realtime.NewHub()
	gateway := &recordingGateway{}

	hosts := NewHostService(repo, log)
	users := NewUserService(repo, log)
	ledger := NewParticipationService(repo, users, hub, log)
	links := NewLinkService(repo, hub, log, "https://gift.example.com", 24*time.Hour)
	notifier := NewNotificationService(repo, gateway, log)
	campaigns := NewCampaignService(repo, hosts, ledger, links, notifier, hub, hub, log)
	campaigns.rng = newSeededRNG(42)
	t.Cleanup(campaigns.Wait)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	analytics := NewAnalyticsService(repository.NewAnalyticsStore(sqlx.NewDb(sqlDB, "sqlite3")), log)

	return &testEnv{
		db:        db,
		repo:      repo,
		hub:       hub,
		gateway:   gateway,
		hosts:     hosts,
		users:     users,
		ledger:    ledger,
		links:     links,
		notifier:  notifier,
		campaigns: campaigns,
		analytics: analytics,
	}
}

func (e *testEnv) registerHost(t *testing.T, id string) *models.Host {
	t.Helper()
	host, err := e.hosts.RegisterHost(context.Background(), auth.Principal{ID: id, DisplayName: "Host " + id}, models.RegisterHostRequest{})
	if err != nil {
		t.Fatalf("RegisterHost failed: %v", err)
	}
	return host
}

func userPrincipal(id string) auth.Principal {
	return auth.Principal{ID: id, DisplayName: "User " + id, Email: id + "@example.com"}
}

func (e *testEnv) activeCampaign(t *testing.T, hostID string, max int) *models.Campaign {
	t.Helper()
	ctx := context.Background()

	campaign, err := e.campaigns.CreateCampaign(ctx, models.CreateCampaignRequest{
		Title:           "Spring giveaway",
		MaxParticipants: max,
		EndDate:         time.Now().Add(7 * 24 * time.Hour),
	}, hostID)
	if err != nil {
		t.Fatalf("CreateCampaign failed: %v", err)
	}
	campaign, err = e.campaigns.UpdateCampaignStatus(ctx, campaign.ID, "active", hostID)
	if err != nil {
		t.Fatalf("UpdateCampaignStatus failed: %v", err)
	}
	return campaign
}

func (e *testEnv) join(t *testing.T, campaignID string, users ...string) {
	t.Helper()
	for _, u := range users {
		if _, err := e.campaigns.JoinCampaign(context.Background(), campaignID, u, ""); err != nil {
			t.Fatalf("JoinCampaign(%s) failed: %v", u, err)
		}
	}
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}
