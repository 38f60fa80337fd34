package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/recollect/internal/metrics"
)

// Sentinel errors for polling outcomes.
var (
	// ErrPollTimeout indicates the batch did not reach a terminal state
	// within the caller's wall-clock budget.
	ErrPollTimeout = errors.New("batch polling timed out")

	// ErrBatchFailed indicates the batch reached the failed status.
	ErrBatchFailed = errors.New("batch failed")
)

// DefaultPollInterval is the cadence between status checks.
const DefaultPollInterval = 5 * time.Second

// Poller polls a batch job until it reaches a terminal state.
type Poller struct {
	client    Client
	interval  time.Duration
	collector *metrics.Collector
}

// NewPoller creates a poller with the default 5s interval.
func NewPoller(client Client) *Poller {
	return &Poller{client: client, interval: DefaultPollInterval}
}

// SetInterval overrides the poll cadence. Tests use millisecond intervals.
func (p *Poller) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// SetMetrics attaches a collector for poll timing. Optional.
func (p *Poller) SetMetrics(c *metrics.Collector) {
	p.collector = c
}

// PollCompletion polls every interval until the batch leaves
// pending/processing or maxPollingTime elapses. A failed batch returns
// ErrBatchFailed; exceeding the budget returns ErrPollTimeout. The poll
// itself is never retried: request-level retries belong to submission.
func (p *Poller) PollCompletion(ctx context.Context, batchID string, maxPollingTime time.Duration) (*Record, error) {
	start := time.Now()
	deadline := start.Add(maxPollingTime)

	defer func() {
		if p.collector != nil {
			p.collector.RecordTiming(metrics.OpBatchPoll, time.Since(start))
		}
	}()

	for {
		rec, err := p.client.GetBatch(ctx, batchID)
		if err != nil {
			return nil, fmt.Errorf("poll batch %s: %w", batchID, err)
		}

		slog.Debug("batch poll",
			"batch_id", batchID,
			"status", rec.Status,
			"completed", rec.CompletedRequests,
			"total", rec.TotalRequests)

		switch rec.Status {
		case StatusCompleted:
			return rec, nil
		case StatusFailed:
			return nil, fmt.Errorf("batch %s: %w: %s", batchID, ErrBatchFailed, rec.Error)
		}

		if time.Now().Add(p.interval).After(deadline) {
			return nil, fmt.Errorf("batch %s did not complete within %s: %w", batchID, maxPollingTime, ErrPollTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.interval):
		}
	}
}
