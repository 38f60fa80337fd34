// Package graph mirrors episode label state into the Neo4j knowledge
// graph used for hybrid retrieval.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds Neo4j connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
}

// Client wraps the Neo4j driver for episode label propagation.
type Client struct {
	driver neo4j.DriverWithContext
}

// NewClient creates a Neo4j client and verifies connectivity.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	slog.Info("neo4j connection established", "uri", cfg.URI)
	return &Client{driver: driver}, nil
}

// Close closes the underlying driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// UpdateEpisodeLabels sets the label id list on every Episode node owned
// by the user that matches the session id (or the episode uuid itself when
// no session groups them). Returns the number of nodes updated.
func (c *Client) UpdateEpisodeLabels(ctx context.Context, sessionOrEpisodeID string, labelIDs []string, userID string) (int, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `
			MATCH (e:Episode {userId: $userId})
			WHERE e.sessionId = $id OR e.uuid = $id
			SET e.labelIds = $labelIds
			RETURN count(e) AS updated
		`, map[string]any{
			"userId":   userID,
			"id":       sessionOrEpisodeID,
			"labelIds": labelIDs,
		})
		if err != nil {
			return nil, err
		}

		record, err := records.Single(ctx)
		if err != nil {
			return nil, err
		}
		updated, _ := record.Get("updated")
		return updated, nil
	})
	if err != nil {
		return 0, fmt.Errorf("update episode labels: %w", err)
	}

	count, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected count type: %T", result)
	}
	return int(count), nil
}
