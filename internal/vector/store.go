// Package vector provides a namespaced vector index over the SurrealDB
// embedding table, used for label similarity matching.
package vector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/raphaelgruber/recollect/internal/db"
	"github.com/raphaelgruber/recollect/internal/metrics"
	"github.com/surrealdb/surrealdb.go"
)

// NamespaceLabel partitions label embeddings from any future entity types.
const NamespaceLabel = "label"

// Record is one embedded object keyed by the owning entity's id.
type Record struct {
	ID        string
	Vector    []float32
	Content   string
	Metadata  map[string]any
	Namespace string
}

// Query describes a similarity search within one namespace.
type Query struct {
	Vector    []float32
	Limit     int
	Threshold float64
	Namespace string
	// Filter restricts the search by metadata equality (e.g. workspace_id).
	Filter map[string]string
}

// Match is one similarity search hit.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Store is a SurrealDB-backed vector index.
type Store struct {
	client    *db.Client
	collector *metrics.Collector
}

// NewStore creates a vector store over an existing database client.
func NewStore(client *db.Client) *Store {
	return &Store{client: client}
}

// SetMetrics attaches a collector for search timing. Optional.
func (s *Store) SetMetrics(c *metrics.Collector) {
	s.collector = c
}

// Upsert writes or replaces the embedding record for an id. Re-embedding
// the same object overwrites its previous vector.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if len(rec.Vector) == 0 {
		return fmt.Errorf("upsert embedding %s: empty vector", rec.ID)
	}

	_, err := surrealdb.Query[any](ctx, s.client.DB(), `
		UPSERT type::record("embedding", $id) CONTENT {
			namespace: $namespace,
			vector: $vector,
			content: $content,
			metadata: $metadata
		}
	`, map[string]any{
		"id":        rec.ID,
		"namespace": rec.Namespace,
		"vector":    rec.Vector,
		"content":   rec.Content,
		"metadata":  rec.Metadata,
	})
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// Search returns matches with score >= threshold, sorted by descending
// similarity. An empty query vector yields no matches and no error: an
// upstream embedding failure must read as "no match", not an error.
func (s *Store) Search(ctx context.Context, q Query) ([]Match, error) {
	if len(q.Vector) == 0 {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	// Metadata filter keys come from our own call sites, never user input,
	// so interpolating the field path is safe.
	var filterClauses []string
	vars := map[string]any{
		"namespace": q.Namespace,
		"vec":       q.Vector,
		"limit":     limit,
	}
	i := 0
	for key, val := range q.Filter {
		param := fmt.Sprintf("f%d", i)
		filterClauses = append(filterClauses, fmt.Sprintf("AND metadata.%s = $%s", key, param))
		vars[param] = val
		i++
	}

	// HNSW KNN with ef=40, threshold applied on the exact cosine score.
	sql := fmt.Sprintf(`
		SELECT record::id(id) AS id,
			vector::similarity::cosine(vector, $vec) AS score
		FROM embedding
		WHERE namespace = $namespace
			AND vector <|%d,40|> $vec
			%s
		ORDER BY score DESC
		LIMIT $limit
	`, limit, strings.Join(filterClauses, " "))

	start := time.Now()
	results, err := surrealdb.Query[[]Match](ctx, s.client.DB(), sql, vars)
	if s.collector != nil {
		s.collector.RecordTiming(metrics.OpVectorSearch, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return nil, nil
	}

	matches := (*results)[0].Result
	filtered := matches[:0]
	for _, m := range matches {
		if m.Score >= q.Threshold {
			filtered = append(filtered, m)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Score > filtered[j].Score })
	return filtered, nil
}
