package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/recollect/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

const episodeFields = `record::id(id) AS id, workspace_id, user_id, title, body,
	session_id, label_ids, metadata, created_at`

// GetEpisode retrieves an ingestion-queue episode by id.
// Returns nil if not found.
func (c *Client) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	results, err := surrealdb.Query[[]models.Episode](ctx, c.db, fmt.Sprintf(`
		SELECT %s FROM type::record("episode", $id)
	`, episodeFields), map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// GetEpisodeBody returns only the body text of an episode, used for
// representative sampling. Returns "" when the episode does not exist.
func (c *Client) GetEpisodeBody(ctx context.Context, id string) (string, error) {
	type row struct {
		Body string `json:"body"`
	}
	results, err := surrealdb.Query[[]row](ctx, c.db, `
		SELECT body FROM type::record("episode", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return "", fmt.Errorf("get episode body: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return "", nil
	}
	return (*results)[0].Result[0].Body, nil
}

// UpdateEpisodeLabels replaces the label id set on a queue record.
func (c *Client) UpdateEpisodeLabels(ctx context.Context, id string, labelIDs []string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("episode", $id) SET label_ids = $label_ids
	`, map[string]any{"id": id, "label_ids": labelIDs})
	if err != nil {
		return fmt.Errorf("update episode labels: %w", wrapQueryError(err))
	}
	return nil
}

const documentFields = `record::id(id) AS id, workspace_id, session_id, title,
	label_ids, created_at`

// GetDocumentBySession retrieves the document linked to a session.
// Returns nil if no document exists for the session.
func (c *Client) GetDocumentBySession(ctx context.Context, workspaceID, sessionID string) (*models.Document, error) {
	results, err := surrealdb.Query[[]models.Document](ctx, c.db, fmt.Sprintf(`
		SELECT %s FROM document
		WHERE workspace_id = $workspace_id AND session_id = $session_id
		LIMIT 1
	`, documentFields), map[string]any{
		"workspace_id": workspaceID,
		"session_id":   sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("get document by session: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// UpdateDocumentLabels replaces the label id set on a document.
func (c *Client) UpdateDocumentLabels(ctx context.Context, id string, labelIDs []string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("document", $id) SET label_ids = $label_ids
	`, map[string]any{"id": id, "label_ids": labelIDs})
	if err != nil {
		return fmt.Errorf("update document labels: %w", wrapQueryError(err))
	}
	return nil
}
