package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/recollect/internal/llm"
)

// Completer is the subset of the model interface the runner needs.
// *llm.Model satisfies it.
type Completer interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Local runs batches in-process with a bounded worker pool.
// All methods are thread-safe; GetBatch returns snapshots.
type Local struct {
	model       Completer
	concurrency int

	mu      sync.RWMutex
	batches map[string]*Record
}

// Compile-time check that Local implements Client.
var _ Client = (*Local)(nil)

// NewLocal creates a local batch runner.
func NewLocal(model Completer, concurrency int) *Local {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Local{
		model:       model,
		concurrency: concurrency,
		batches:     make(map[string]*Record),
	}
}

// CreateBatch registers the batch and starts processing it in the
// background. The returned id is immediately pollable via GetBatch.
func (l *Local) CreateBatch(ctx context.Context, sub Submission) (string, error) {
	if len(sub.Requests) == 0 {
		return "", fmt.Errorf("create batch: no requests")
	}

	id := uuid.New().String()[:8]
	rec := &Record{
		ID:            id,
		Status:        StatusPending,
		Results:       make([]Result, len(sub.Requests)),
		TotalRequests: len(sub.Requests),
	}

	l.mu.Lock()
	l.batches[id] = rec
	l.mu.Unlock()

	slog.Info("batch created", "batch_id", id, "requests", len(sub.Requests), "max_retries", sub.MaxRetries)

	// The batch outlives the caller's request context; only the batch
	// timeout bounds it.
	go l.run(id, sub)

	return id, nil
}

// GetBatch returns a snapshot of the batch state.
// Returns an error for unknown batch ids.
func (l *Local) GetBatch(ctx context.Context, batchID string) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("get batch: unknown batch id %q", batchID)
	}

	snapshot := *rec
	snapshot.Results = make([]Result, len(rec.Results))
	copy(snapshot.Results, rec.Results)
	return &snapshot, nil
}

func (l *Local) run(id string, sub Submission) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if sub.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, sub.Timeout)
		defer cancel()
	}

	l.setStatus(id, StatusProcessing)

	sem := make(chan struct{}, l.concurrency)
	var wg sync.WaitGroup
	var failed int64
	var failedMu sync.Mutex

	for i, req := range sub.Requests {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, req Request) {
			defer wg.Done()
			defer func() { <-sem }()

			response, err := l.runRequest(ctx, req, sub.MaxRetries)
			result := Result{CustomID: req.CustomID}
			if err != nil {
				result.Error = err.Error()
				failedMu.Lock()
				failed++
				failedMu.Unlock()
			} else {
				result.Response = response
			}
			l.setResult(id, idx, result)
		}(i, req)
	}

	wg.Wait()

	// A batch where nothing succeeded is failed; partial results complete.
	l.mu.Lock()
	rec := l.batches[id]
	if failed == int64(rec.TotalRequests) {
		rec.Status = StatusFailed
		rec.Error = "all requests failed"
	} else {
		rec.Status = StatusCompleted
	}
	status := rec.Status
	l.mu.Unlock()

	slog.Info("batch finished", "batch_id", id, "status", status, "failed", failed, "total", len(sub.Requests))
}

// runRequest runs one prompt with retries. Fatal API errors (auth, quota)
// are not retried.
func (l *Local) runRequest(ctx context.Context, req Request, maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		response, err := l.model.GenerateWithSystem(ctx, req.SystemPrompt, req.UserPrompt)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if errors.Is(err, llm.ErrFatalAPI) || ctx.Err() != nil {
			break
		}
		slog.Warn("batch request failed, retrying", "custom_id", req.CustomID, "attempt", attempt+1, "error", err)
	}
	return "", lastErr
}

func (l *Local) setStatus(id string, status Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.batches[id]; ok {
		rec.Status = status
	}
}

func (l *Local) setResult(id string, idx int, result Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.batches[id]
	if !ok {
		return
	}
	rec.Results[idx] = result
	rec.CompletedRequests++
}
