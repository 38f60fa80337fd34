package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/raphaelgruber/recollect/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

const spaceFields = `record::id(id) AS id, name, description, workspace_id,
	owner_id, episode_count, created_at`

// CreateSpace persists a new space and returns it with its generated id.
func (c *Client) CreateSpace(ctx context.Context, name, description, workspaceID, ownerID string, episodeCount int) (*models.Space, error) {
	id := uuid.New().String()
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("space", $id) CONTENT {
			name: $name,
			description: $description,
			workspace_id: $workspace_id,
			owner_id: $owner_id,
			episode_count: $episode_count
		}
	`, map[string]any{
		"id":            id,
		"name":          name,
		"description":   description,
		"workspace_id":  workspaceID,
		"owner_id":      ownerID,
		"episode_count": episodeCount,
	})
	if err != nil {
		return nil, fmt.Errorf("create space: %w", wrapQueryError(err))
	}

	return &models.Space{
		ID:           id,
		Name:         name,
		Description:  description,
		WorkspaceID:  workspaceID,
		OwnerID:      ownerID,
		EpisodeCount: episodeCount,
	}, nil
}

// ListSpaces returns all spaces in a workspace ordered by creation time.
func (c *Client) ListSpaces(ctx context.Context, workspaceID string) ([]models.Space, error) {
	results, err := surrealdb.Query[[]models.Space](ctx, c.db, fmt.Sprintf(`
		SELECT %s FROM space
		WHERE workspace_id = $workspace_id
		ORDER BY created_at ASC
	`, spaceFields), map[string]any{"workspace_id": workspaceID})
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Space{}, nil
	}
	return (*results)[0].Result, nil
}
