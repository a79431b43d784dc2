package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type fakeCloser struct {
	mu      sync.Mutex
	batches []int // closed count returned per call
	calls   int
}

func (f *fakeCloser) CloseExpiredCampaigns(_ context.Context, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.batches) == 0 {
		return 0, nil
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	if n < 0 {
		return 0, errors.New("database unavailable")
	}
	return n, nil
}

func TestCloseExpiredDrainsBatches(t *testing.T) {
	f := &fakeCloser{batches: []int{closeBatchSize, closeBatchSize, 3}}
	job := NewCampaignClosingJob(f, time.Hour, zap.NewNop())

	job.closeExpired(context.Background())
	assert.Equal(t, 3, f.calls)
}

func TestCloseExpiredStopsOnError(t *testing.T) {
	f := &fakeCloser{batches: []int{closeBatchSize, -1, closeBatchSize}}
	job := NewCampaignClosingJob(f, time.Hour, zap.NewNop())

	job.closeExpired(context.Background())
	assert.Equal(t, 2, f.calls)
}

func TestCampaignClosingJobLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &fakeCloser{}
	job := NewCampaignClosingJob(f, 5*time.Millisecond, zap.NewNop())

	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.calls >= 2
	}, time.Second, 5*time.Millisecond)

	job.Stop()
	job.Stop()
	<-done
}

type fakeReconciler struct {
	calls atomic.Int32
}

func (f *fakeReconciler) ReconcileCounters(context.Context) (int, error) {
	f.calls.Add(1)
	return 1, nil
}

func TestCounterReconcileJobStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &fakeReconciler{}
	job := NewCounterReconcileJob(f, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
