// Package batch submits sets of LLM requests as one job and polls them to
// completion, parallelizing many independent classification prompts.
package batch

import (
	"context"
	"time"
)

// Status is the lifecycle state of a batch job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status ends polling.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Request is one prompt in a batch. CustomID is caller-assigned so results
// can be matched back; results also preserve request order.
type Request struct {
	CustomID     string
	SystemPrompt string
	UserPrompt   string
}

// Result is the outcome of one request. Exactly one of Response or Error
// is meaningful.
type Result struct {
	CustomID string
	Response string
	Error    string
}

// Record is a point-in-time view of a batch job.
type Record struct {
	ID                string
	Status            Status
	Results           []Result
	CompletedRequests int
	TotalRequests     int
	Error             string
}

// Submission describes a batch to create.
type Submission struct {
	Requests   []Request
	MaxRetries int           // per-request retry budget
	Timeout    time.Duration // batch wall-clock limit
}

// Client is the batch-job interface. The Local implementation runs
// requests in-process; a hosted batch API can satisfy the same contract.
type Client interface {
	CreateBatch(ctx context.Context, sub Submission) (string, error)
	GetBatch(ctx context.Context, batchID string) (*Record, error)
}
