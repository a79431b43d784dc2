package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"giveaway/internal/metrics"
	"giveaway/internal/models"
	"giveaway/internal/realtime"
	"giveaway/internal/repository"
)

// Subscription delivers full campaign list snapshots until cancelled.
// Only the latest snapshot is buffered; a slow reader skips intermediate
// ones.
type Subscription struct {
	updates chan []models.Campaign
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// Updates returns the snapshot channel. It is closed after Cancel or when
// the subscribing context ends.
func (s *Subscription) Updates() <-chan []models.Campaign {
	return s.updates
}

// Cancel stops the subscription and waits for its goroutine to exit
func (s *Subscription) Cancel() {
	s.once.Do(func() { close(s.done) })
	<-s.stopped
}

// offer replaces any unread snapshot with snap
func (s *Subscription) offer(snap []models.Campaign) {
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}

// SubscribeToCampaigns streams the campaigns of hostID in any status, or
// every active campaign when hostID is empty. The current snapshot is
// available immediately; a new one follows every change.
func (s *CampaignService) SubscribeToCampaigns(ctx context.Context, hostID string) (*Subscription, error) {
	const op = "SubscribeToCampaigns"
	if s.hub == nil {
		return nil, &Error{Kind: KindPersistence, Op: op, Err: fmt.Errorf("change feed not configured")}
	}

	signal, unlisten := s.hub.Listen(func(c realtime.Change) bool {
		return c.Collection == realtime.CollectionCampaigns && (hostID == "" || c.HostID == hostID)
	})

	snap, err := s.snapshot(ctx, hostID)
	if err != nil {
		unlisten()
		return nil, storeError(op, err)
	}

	sub := &Subscription{
		updates: make(chan []models.Campaign, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	sub.offer(snap)
	metrics.ActiveSubscriptions.Inc()

	go func() {
		defer func() {
			unlisten()
			close(sub.updates)
			metrics.ActiveSubscriptions.Dec()
			close(sub.stopped)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case <-signal:
				snap, err := s.snapshot(ctx, hostID)
				if err != nil {
					s.log.Warn("failed to refresh campaign snapshot", zap.String("host_id", hostID), zap.Error(err))
					continue
				}
				sub.offer(snap)
			}
		}
	}()

	return sub, nil
}

func (s *CampaignService) snapshot(ctx context.Context, hostID string) ([]models.Campaign, error) {
	q := repository.CampaignQuery{
		HostID:    hostID,
		SortField: "created_at",
		Desc:      true,
	}
	if hostID == "" {
		q.Statuses = []models.CampaignStatus{models.CampaignStatusActive}
	}
	return s.repo.ListCampaigns(ctx, q)
}
