package models

import "time"

// MaxLabelNameLength bounds label names at the persistence layer.
const MaxLabelNameLength = 100

// Label is a workspace-scoped named tag. Names are unique per workspace
// (case-sensitive, enforced by a unique index).
type Label struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	WorkspaceID string    `json:"workspace_id"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// EmbeddingText returns the canonical text embedded for similarity lookups.
func (l Label) EmbeddingText() string {
	return l.Name + ": " + l.Description
}

// ExtractedLabel is one candidate produced by the extraction engine.
// Invariant: IsNew and a non-empty LabelID are mutually exclusive.
type ExtractedLabel struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsNew       bool   `json:"is_new"`
	LabelID     string `json:"label_id,omitempty"`
}
