package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"giveaway/internal/models"
	"giveaway/internal/repository"
)

// maxConcurrentPushes caps gateway requests in flight for one draw
const maxConcurrentPushes = 8

// PushMessage is the payload delivered to a device
type PushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushGateway delivers a message to a device token and returns its id
type PushGateway interface {
	Send(ctx context.Context, token string, msg PushMessage) (string, error)
}

// HTTPPushGateway posts messages to a push relay endpoint
type HTTPPushGateway struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPPushGateway creates a gateway for the relay at endpoint
func NewHTTPPushGateway(endpoint, apiKey string, timeout time.Duration) *HTTPPushGateway {
	return &HTTPPushGateway{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Send delivers msg to token
func (g *HTTPPushGateway) Send(ctx context.Context, token string, msg PushMessage) (string, error) {
	body, err := json.Marshal(struct {
		Token string `json:"token"`
		PushMessage
	}{Token: token, PushMessage: msg})
	if err != nil {
		return "", fmt.Errorf("failed to encode push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("push relay returned status %d", resp.StatusCode)
	}

	var out struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode push response: %w", err)
	}
	return out.MessageID, nil
}

// LogPushGateway logs messages instead of delivering them
type LogPushGateway struct {
	log *zap.Logger
}

// NewLogPushGateway creates a gateway that only logs
func NewLogPushGateway(log *zap.Logger) *LogPushGateway {
	return &LogPushGateway{log: log}
}

// Send logs msg and returns a generated id
func (g *LogPushGateway) Send(_ context.Context, token string, msg PushMessage) (string, error) {
	id := uuid.NewString()
	g.log.Info("push message",
		zap.String("message_id", id),
		zap.Int("token_len", len(token)),
		zap.String("title", msg.Title))
	return id, nil
}

// NotificationService tells winners they won
type NotificationService struct {
	repo    *repository.Repository
	gateway PushGateway
	log     *zap.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repo *repository.Repository, gateway PushGateway, log *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, gateway: gateway, log: log}
}

// NotifyWinners pushes a message to every winner who consented and returns
// how many were sent. A participation's own notification setting wins once
// it has been set; until then the user-level setting applies.
func (s *NotificationService) NotifyWinners(ctx context.Context, campaignID, title string) (int, error) {
	winners, err := s.repo.ListCampaignWinners(ctx, campaignID)
	if err != nil {
		return 0, storeError("NotifyWinners", err)
	}

	msg := PushMessage{
		Title: "You won!",
		Body:  fmt.Sprintf("Congratulations, you won %q.", title),
		Data:  map[string]string{"campaign_id": campaignID},
	}

	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPushes)
	for i := range winners {
		w := &winners[i]
		token := s.winnerToken(gctx, w)
		if token == "" {
			continue
		}
		g.Go(func() error {
			id, err := s.gateway.Send(gctx, token, msg)
			if err != nil {
				s.log.Warn("failed to notify winner",
					zap.String("campaign_id", campaignID),
					zap.String("user_id", w.UserID),
					zap.Error(err))
				return nil
			}
			sent.Add(1)
			s.log.Debug("winner notified", zap.String("user_id", w.UserID), zap.String("message_id", id))
			return nil
		})
	}
	_ = g.Wait()
	return int(sent.Load()), nil
}

// winnerToken returns the device token to notify, or "" when the winner
// opted out or has no token.
func (s *NotificationService) winnerToken(ctx context.Context, w *models.Participation) string {
	if w.NotificationSetAt != nil {
		if !w.NotificationEnabled {
			return ""
		}
		if w.NotificationToken != "" {
			return w.NotificationToken
		}
	}

	user, err := s.repo.GetUserByID(ctx, w.UserID)
	if err != nil || !user.NotificationEnabled {
		return ""
	}
	return user.NotificationToken
}
