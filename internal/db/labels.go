package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/raphaelgruber/recollect/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

const labelFields = `record::id(id) AS id, name, description, workspace_id,
	color, created_at`

// CreateLabel persists a new label and returns it with its generated id.
// Violating the (workspace_id, name) unique index returns ErrAlreadyExists.
func (c *Client) CreateLabel(ctx context.Context, name, description, workspaceID, color string) (*models.Label, error) {
	if len(name) > models.MaxLabelNameLength {
		name = name[:models.MaxLabelNameLength]
	}

	id := uuid.New().String()
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("label", $id) CONTENT {
			name: $name,
			description: $description,
			workspace_id: $workspace_id,
			color: $color
		}
	`, map[string]any{
		"id":           id,
		"name":         name,
		"description":  description,
		"workspace_id": workspaceID,
		"color":        color,
	})
	if err != nil {
		return nil, fmt.Errorf("create label: %w", wrapQueryError(err))
	}

	return &models.Label{
		ID:          id,
		Name:        name,
		Description: description,
		WorkspaceID: workspaceID,
		Color:       color,
	}, nil
}

// GetLabel retrieves a label by id. Returns nil if not found.
func (c *Client) GetLabel(ctx context.Context, id string) (*models.Label, error) {
	results, err := surrealdb.Query[[]models.Label](ctx, c.db, fmt.Sprintf(`
		SELECT %s FROM type::record("label", $id)
	`, labelFields), map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get label: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// GetLabelByName retrieves a label by exact (case-sensitive) name within a
// workspace. Returns nil if not found.
func (c *Client) GetLabelByName(ctx context.Context, workspaceID, name string) (*models.Label, error) {
	results, err := surrealdb.Query[[]models.Label](ctx, c.db, fmt.Sprintf(`
		SELECT %s FROM label
		WHERE workspace_id = $workspace_id AND name = $name
		LIMIT 1
	`, labelFields), map[string]any{
		"workspace_id": workspaceID,
		"name":         name,
	})
	if err != nil {
		return nil, fmt.Errorf("get label by name: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// ListLabels returns all labels in a workspace ordered by creation time.
func (c *Client) ListLabels(ctx context.Context, workspaceID string) ([]models.Label, error) {
	results, err := surrealdb.Query[[]models.Label](ctx, c.db, fmt.Sprintf(`
		SELECT %s FROM label
		WHERE workspace_id = $workspace_id
		ORDER BY created_at ASC
	`, labelFields), map[string]any{"workspace_id": workspaceID})
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Label{}, nil
	}
	return (*results)[0].Result, nil
}
