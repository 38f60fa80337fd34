// Package service implements the memory organization core: label
// extraction and assignment, topic cluster filtering, and space discovery.
package service

import (
	"context"

	"github.com/raphaelgruber/recollect/internal/models"
	"github.com/raphaelgruber/recollect/internal/vector"
)

// Store is the relational persistence boundary. *db.Client satisfies it;
// tests substitute fakes.
type Store interface {
	GetEpisode(ctx context.Context, id string) (*models.Episode, error)
	GetEpisodeBody(ctx context.Context, id string) (string, error)
	UpdateEpisodeLabels(ctx context.Context, id string, labelIDs []string) error

	GetDocumentBySession(ctx context.Context, workspaceID, sessionID string) (*models.Document, error)
	UpdateDocumentLabels(ctx context.Context, id string, labelIDs []string) error

	CreateLabel(ctx context.Context, name, description, workspaceID, color string) (*models.Label, error)
	GetLabel(ctx context.Context, id string) (*models.Label, error)
	GetLabelByName(ctx context.Context, workspaceID, name string) (*models.Label, error)
	ListLabels(ctx context.Context, workspaceID string) ([]models.Label, error)

	CreateSpace(ctx context.Context, name, description, workspaceID, ownerID string, episodeCount int) (*models.Space, error)
	ListSpaces(ctx context.Context, workspaceID string) ([]models.Space, error)
}

// VectorIndex is the vector-store boundary. *vector.Store satisfies it.
type VectorIndex interface {
	Upsert(ctx context.Context, rec vector.Record) error
	Search(ctx context.Context, q vector.Query) ([]vector.Match, error)
}

// Completer is the model-call boundary. *llm.Model satisfies it.
type Completer interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Embedder is the embedding boundary. *llm.Embedder satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GraphStore is the graph mirror boundary. *graph.Client satisfies it.
type GraphStore interface {
	UpdateEpisodeLabels(ctx context.Context, sessionOrEpisodeID string, labelIDs []string, userID string) (int, error)
}
