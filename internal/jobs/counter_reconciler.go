package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CounterReconciler is the part of the campaign service the reconcile job drives
type CounterReconciler interface {
	ReconcileCounters(ctx context.Context) (int, error)
}

// CounterReconcileJob periodically rebuilds denormalized counters from the
// participation ledger so best-effort updates that failed heal over time.
type CounterReconcileJob struct {
	campaigns CounterReconciler
	interval  time.Duration
	log       *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewCounterReconcileJob creates a new counter reconcile job
func NewCounterReconcileJob(campaigns CounterReconciler, interval time.Duration, log *zap.Logger) *CounterReconcileJob {
	return &CounterReconcileJob{
		campaigns: campaigns,
		interval:  interval,
		log:       log.Named("counter_reconciler"),
		stopChan:  make(chan struct{}),
	}
}

// Start runs one reconcile pass immediately, then one per interval
func (j *CounterReconcileJob) Start(ctx context.Context) {
	j.log.Info("starting counter reconcile job", zap.Duration("interval", j.interval))
	j.reconcile(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.reconcile(ctx)
		case <-ctx.Done():
			return
		case <-j.stopChan:
			j.log.Info("stopping counter reconcile job")
			return
		}
	}
}

// Stop stops the reconcile loop
func (j *CounterReconcileJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

func (j *CounterReconcileJob) reconcile(ctx context.Context) {
	start := time.Now()
	n, err := j.campaigns.ReconcileCounters(ctx)
	if err != nil {
		j.log.Error("failed to reconcile counters", zap.Error(err))
		return
	}
	j.log.Debug("counters reconciled", zap.Int("campaigns", n), zap.Duration("took", time.Since(start)))
}
