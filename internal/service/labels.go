package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/recollect/internal/db"
	"github.com/raphaelgruber/recollect/internal/models"
	"github.com/raphaelgruber/recollect/internal/vector"
)

// LabelService persists labels and their embeddings.
type LabelService struct {
	store    Store
	embedder Embedder
	index    VectorIndex
}

// NewLabelService creates a label persistence service.
func NewLabelService(store Store, embedder Embedder, index VectorIndex) *LabelService {
	return &LabelService{store: store, embedder: embedder, index: index}
}

// EnsureLabel creates a label, recovering from a name conflict by reusing
// the existing record. Two assignments racing on the same suggested name
// both end up with the first writer's label id. The label's embedding is
// stored best-effort: a created label without a discoverable embedding is
// an acceptable degraded state.
func (s *LabelService) EnsureLabel(ctx context.Context, workspaceID, name, description string) (*models.Label, error) {
	label, err := s.store.CreateLabel(ctx, name, description, workspaceID, RandomLabelColor())
	if err != nil {
		if !errors.Is(err, db.ErrAlreadyExists) {
			return nil, fmt.Errorf("ensure label %q: %w", name, err)
		}

		existing, fetchErr := s.store.GetLabelByName(ctx, workspaceID, name)
		if fetchErr != nil {
			return nil, fmt.Errorf("refetch conflicting label %q: %w", name, fetchErr)
		}
		if existing == nil {
			return nil, fmt.Errorf("label %q conflicted on create but is not fetchable", name)
		}
		slog.Info("label creation raced, reusing existing", "name", name, "label_id", existing.ID)
		return existing, nil
	}

	s.storeEmbedding(ctx, label)
	return label, nil
}

// storeEmbedding embeds "{name}: {description}" under the label namespace.
// Failures are logged, never propagated.
func (s *LabelService) storeEmbedding(ctx context.Context, label *models.Label) {
	vec, err := s.embedder.Embed(ctx, label.EmbeddingText())
	if err != nil {
		slog.Warn("label embedding generation failed", "label_id", label.ID, "name", label.Name, "error", err)
		return
	}
	if len(vec) == 0 {
		slog.Warn("label embedding empty, not stored", "label_id", label.ID, "name", label.Name)
		return
	}

	err = s.index.Upsert(ctx, vector.Record{
		ID:        label.ID,
		Vector:    vec,
		Content:   label.EmbeddingText(),
		Metadata:  map[string]any{"workspace_id": label.WorkspaceID},
		Namespace: vector.NamespaceLabel,
	})
	if err != nil {
		slog.Warn("label embedding store failed", "label_id", label.ID, "name", label.Name, "error", err)
	}
}
