package models

import "time"

// Episode is one ingestion-queue record: a unit of conversational content
// waiting for (or finished with) label assignment.
type Episode struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	UserID      string         `json:"user_id"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	SessionID   *string        `json:"session_id,omitempty"`
	LabelIDs    []string       `json:"label_ids"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
}

// Document groups the episodes of one session. When a session id links an
// episode to a document, the document's label set is the source of truth
// for previously assigned labels.
type Document struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	SessionID   string    `json:"session_id"`
	Title       string    `json:"title"`
	LabelIDs    []string  `json:"label_ids"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// PersonaTitle is the sentinel episode title that is never labeled.
// Persona episodes carry system-generated summaries, not user content.
const PersonaTitle = "Persona"
