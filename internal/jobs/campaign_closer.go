package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const closeBatchSize = 100

// CampaignCloser is the part of the campaign service the closer drives
type CampaignCloser interface {
	CloseExpiredCampaigns(ctx context.Context, limit int) (int, error)
}

// CampaignClosingJob moves active campaigns past their end date to ended
type CampaignClosingJob struct {
	campaigns CampaignCloser
	interval  time.Duration
	log       *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewCampaignClosingJob creates a new campaign closing job
func NewCampaignClosingJob(campaigns CampaignCloser, interval time.Duration, log *zap.Logger) *CampaignClosingJob {
	return &CampaignClosingJob{
		campaigns: campaigns,
		interval:  interval,
		log:       log.Named("campaign_closer"),
		stopChan:  make(chan struct{}),
	}
}

// Start runs the closing loop until Stop is called or ctx ends
func (j *CampaignClosingJob) Start(ctx context.Context) {
	j.log.Info("starting campaign closing job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.closeExpired(ctx)
		case <-ctx.Done():
			j.log.Info("stopping campaign closing job")
			return
		case <-j.stopChan:
			j.log.Info("stopping campaign closing job")
			return
		}
	}
}

// Stop stops the closing loop
func (j *CampaignClosingJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

// closeExpired drains expired campaigns batch by batch
func (j *CampaignClosingJob) closeExpired(ctx context.Context) {
	total := 0
	for ctx.Err() == nil {
		closed, err := j.campaigns.CloseExpiredCampaigns(ctx, closeBatchSize)
		if err != nil {
			j.log.Error("failed to close expired campaigns", zap.Error(err))
			break
		}
		total += closed
		if closed < closeBatchSize {
			break
		}
	}

	if total > 0 {
		j.log.Info("closed expired campaigns", zap.Int("count", total))
	}
}
