package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotifyChannel is the PostgreSQL channel carrying campaign changes
const NotifyChannel = "campaign_changes"

// PGBridge relays changes between instances over LISTEN/NOTIFY. Local
// listeners are woken immediately; remote ones through the database.
type PGBridge struct {
	db       *gorm.DB
	hub      *Hub
	listener *pq.Listener
	origin   string
	log      *zap.Logger
}

// NewPGBridge opens a dedicated LISTEN connection on dsn
func NewPGBridge(dsn string, db *gorm.DB, hub *Hub, log *zap.Logger) (*PGBridge, error) {
	b := &PGBridge{
		db:     db,
		hub:    hub,
		origin: uuid.NewString(),
		log:    log,
	}

	b.listener = pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("notify listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := b.listener.Listen(NotifyChannel); err != nil {
		b.listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	return b, nil
}

// Publish wakes local listeners and notifies other instances
func (b *PGBridge) Publish(ctx context.Context, change Change) {
	b.hub.Publish(ctx, change)

	change.Origin = b.origin
	payload, err := json.Marshal(change)
	if err != nil {
		b.log.Warn("failed to encode change", zap.Error(err))
		return
	}
	if err := b.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", NotifyChannel, string(payload)).Error; err != nil {
		b.log.Warn("failed to notify change", zap.String("id", change.ID), zap.Error(err))
	}
}

// Run forwards remote notifications into the hub until ctx is done
func (b *PGBridge) Run(ctx context.Context) error {
	b.log.Info("listening for campaign changes", zap.String("channel", NotifyChannel))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case n := <-b.listener.Notify:
			if n == nil {
				// Reconnected; events may have been missed.
				b.hub.Publish(ctx, Change{Collection: CollectionAll})
				continue
			}

			var change Change
			if err := json.Unmarshal([]byte(n.Extra), &change); err != nil {
				b.log.Warn("dropping malformed change", zap.String("payload", n.Extra), zap.Error(err))
				continue
			}
			if change.Origin == b.origin {
				continue
			}
			b.hub.Publish(ctx, change)

		case <-time.After(90 * time.Second):
			go func() {
				if err := b.listener.Ping(); err != nil {
					b.log.Warn("notify listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

// Close releases the LISTEN connection
func (b *PGBridge) Close() error {
	return b.listener.Close()
}
