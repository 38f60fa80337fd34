package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/recollect/internal/llm"
)

// scriptedModel answers per-prompt from a script of error sequences.
type scriptedModel struct {
	mu    sync.Mutex
	calls map[string]int
	// fail[prompt] is how many times the prompt errors before succeeding;
	// -1 means always fail, -2 means always fail fatally.
	fail map[string]int
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{calls: map[string]int{}, fail: map[string]int{}}
}

func (m *scriptedModel) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[userPrompt]++

	switch n := m.fail[userPrompt]; {
	case n == -2:
		return "", fmt.Errorf("generate: %w: invalid api key", llm.ErrFatalAPI)
	case n == -1:
		return "", errors.New("transient failure")
	case m.calls[userPrompt] <= n:
		return "", errors.New("transient failure")
	}
	return "ok:" + userPrompt, nil
}

func awaitTerminal(t *testing.T, l *Local, id string) *Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := l.GetBatch(context.Background(), id)
		if err != nil {
			t.Fatalf("GetBatch: %v", err)
		}
		if rec.Status.Terminal() {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("batch did not reach a terminal state")
	return nil
}

func TestLocalBatchCompletes(t *testing.T) {
	model := newScriptedModel()
	l := NewLocal(model, 2)

	id, err := l.CreateBatch(context.Background(), Submission{
		Requests: []Request{
			{CustomID: "a", UserPrompt: "p1"},
			{CustomID: "b", UserPrompt: "p2"},
			{CustomID: "c", UserPrompt: "p3"},
		},
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	rec := awaitTerminal(t, l, id)
	if rec.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", rec.Status)
	}
	if rec.CompletedRequests != 3 || rec.TotalRequests != 3 {
		t.Errorf("progress = %d/%d, want 3/3", rec.CompletedRequests, rec.TotalRequests)
	}

	// Results stay in request order regardless of completion order.
	wantIDs := []string{"a", "b", "c"}
	for i, res := range rec.Results {
		if res.CustomID != wantIDs[i] {
			t.Errorf("results[%d].CustomID = %q, want %q", i, res.CustomID, wantIDs[i])
		}
		if res.Error != "" || res.Response == "" {
			t.Errorf("results[%d] = %+v, want a response", i, res)
		}
	}
}

func TestLocalBatchRetriesTransientFailures(t *testing.T) {
	model := newScriptedModel()
	model.fail["p1"] = 2 // fails twice, succeeds on the third attempt
	l := NewLocal(model, 1)

	id, err := l.CreateBatch(context.Background(), Submission{
		Requests:   []Request{{CustomID: "a", UserPrompt: "p1"}},
		MaxRetries: 2,
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	rec := awaitTerminal(t, l, id)
	if rec.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed after retries", rec.Status)
	}
	if model.calls["p1"] != 3 {
		t.Errorf("calls = %d, want 3", model.calls["p1"])
	}
}

func TestLocalBatchPartialFailureCompletes(t *testing.T) {
	model := newScriptedModel()
	model.fail["bad"] = -1
	l := NewLocal(model, 2)

	id, err := l.CreateBatch(context.Background(), Submission{
		Requests: []Request{
			{CustomID: "a", UserPrompt: "good"},
			{CustomID: "b", UserPrompt: "bad"},
		},
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	rec := awaitTerminal(t, l, id)
	if rec.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed with partial results", rec.Status)
	}
	if rec.Results[0].Error != "" {
		t.Errorf("good request errored: %s", rec.Results[0].Error)
	}
	if rec.Results[1].Error == "" {
		t.Error("bad request should carry its error")
	}
}

func TestLocalBatchAllFailedIsFailed(t *testing.T) {
	model := newScriptedModel()
	model.fail["p1"] = -1
	model.fail["p2"] = -1
	l := NewLocal(model, 2)

	id, err := l.CreateBatch(context.Background(), Submission{
		Requests: []Request{
			{CustomID: "a", UserPrompt: "p1"},
			{CustomID: "b", UserPrompt: "p2"},
		},
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	rec := awaitTerminal(t, l, id)
	if rec.Status != StatusFailed {
		t.Fatalf("status = %s, want failed when nothing succeeded", rec.Status)
	}
	if rec.Error == "" {
		t.Error("failed batch should carry an error")
	}
}

func TestLocalBatchFatalErrorNotRetried(t *testing.T) {
	model := newScriptedModel()
	model.fail["p1"] = -2
	l := NewLocal(model, 1)

	id, err := l.CreateBatch(context.Background(), Submission{
		Requests:   []Request{{CustomID: "a", UserPrompt: "p1"}},
		MaxRetries: 5,
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	rec := awaitTerminal(t, l, id)
	if rec.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
	if model.calls["p1"] != 1 {
		t.Errorf("fatal error was retried: %d calls", model.calls["p1"])
	}
}

func TestLocalBatchEmptySubmission(t *testing.T) {
	l := NewLocal(newScriptedModel(), 1)
	if _, err := l.CreateBatch(context.Background(), Submission{}); err == nil {
		t.Fatal("empty submission should be rejected")
	}
}

func TestLocalGetBatchUnknownID(t *testing.T) {
	l := NewLocal(newScriptedModel(), 1)
	if _, err := l.GetBatch(context.Background(), "nope"); err == nil {
		t.Fatal("unknown batch id should error")
	}
}

func TestLocalGetBatchReturnsSnapshot(t *testing.T) {
	model := newScriptedModel()
	l := NewLocal(model, 1)

	id, err := l.CreateBatch(context.Background(), Submission{
		Requests: []Request{{CustomID: "a", UserPrompt: "p1"}},
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	rec := awaitTerminal(t, l, id)

	// Mutating the snapshot must not affect later reads.
	rec.Results[0].Response = "tampered"
	again, err := l.GetBatch(context.Background(), id)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if again.Results[0].Response == "tampered" {
		t.Error("GetBatch returned shared state, want a snapshot")
	}
}
