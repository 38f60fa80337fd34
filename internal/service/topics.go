package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/recollect/internal/batch"
	"github.com/raphaelgruber/recollect/internal/llm"
	"github.com/raphaelgruber/recollect/internal/models"
)

// maxExcerptChars bounds each sampled episode excerpt in the filter prompt.
const maxExcerptChars = 400

const filterSystemPrompt = `You judge whether a keyword cluster from a user's personal memory is
relevant for persona extraction.

RELEVANT: clusters about the user's communication style, work style, or
preferences (how they phrase things, how they give feedback, what they
value, recurring habits).
NOT relevant: clusters about specific implementation details or concrete
outputs (a particular bug fix, a specific document's content). Exception:
keep implementation content when the excerpts clearly use it as an
example of a communication or explanation pattern.

The keywords represent the whole cluster; the excerpts are only spot
evidence. When they conflict, the keywords dominate.

Respond with JSON only, no prose:
{"relevant": true|false, "confidence": 0.0-1.0, "reason": "..."}`

// TopicFilter screens externally computed keyword clusters through the
// model, keeping only those that represent meaningful user themes. All
// per-cluster prompts go out as one batch.
type TopicFilter struct {
	store           Store
	batch           batch.Client
	poller          *batch.Poller
	confidenceFloor float64
	maxRetries      int
	pollTimeout     time.Duration
}

// NewTopicFilter creates a topic cluster filter.
func NewTopicFilter(store Store, batchClient batch.Client, poller *batch.Poller, confidenceFloor float64, maxRetries int, pollTimeout time.Duration) *TopicFilter {
	return &TopicFilter{
		store:           store,
		batch:           batchClient,
		poller:          poller,
		confidenceFloor: confidenceFloor,
		maxRetries:      maxRetries,
		pollTimeout:     pollTimeout,
	}
}

// FilterRelevantTopics returns the subset of clusters the model judged
// relevant with sufficient confidence. The filter fails open: when the
// batch cannot be created or polled, or an individual verdict is missing
// or unparseable, the affected clusters are kept. Dropping a real theme
// costs more than carrying noise one round further.
func (f *TopicFilter) FilterRelevantTopics(ctx context.Context, clusters []models.TopicCluster) []models.TopicCluster {
	if len(clusters) == 0 {
		return nil
	}

	requests := make([]batch.Request, 0, len(clusters))
	// Prompt position back to cluster index. Clusters with no resolvable
	// member episodes get no prompt and are kept outright.
	promptIdx := make(map[int]int, len(clusters))

	kept := make([]models.TopicCluster, 0, len(clusters))
	for i, cluster := range clusters {
		prompt, sampled := f.buildFilterPrompt(ctx, cluster)
		if sampled == 0 {
			slog.Warn("no resolvable episodes in cluster, keeping without verdict", "cluster_id", cluster.ID)
			kept = append(kept, cluster)
			continue
		}
		promptIdx[len(requests)] = i
		requests = append(requests, batch.Request{
			CustomID:     fmt.Sprintf("cluster-%s", cluster.ID),
			SystemPrompt: filterSystemPrompt,
			UserPrompt:   prompt,
		})
	}
	if len(requests) == 0 {
		return kept
	}

	batchID, err := f.batch.CreateBatch(ctx, batch.Submission{
		Requests:   requests,
		MaxRetries: f.maxRetries,
		Timeout:    f.pollTimeout,
	})
	if err != nil {
		slog.Warn("topic filter batch creation failed, keeping all clusters", "clusters", len(clusters), "error", err)
		return clusters
	}

	rec, err := f.poller.PollCompletion(ctx, batchID, f.pollTimeout)
	if err != nil {
		slog.Warn("topic filter batch polling failed, keeping all clusters", "batch_id", batchID, "error", err)
		return clusters
	}

	for pos, res := range rec.Results {
		idx, ok := promptIdx[pos]
		if !ok {
			continue
		}
		cluster := clusters[idx]

		if res.Error != "" {
			slog.Warn("cluster verdict errored, keeping cluster", "cluster_id", cluster.ID, "error", res.Error)
			kept = append(kept, cluster)
			continue
		}

		decision, err := llm.DecodeFilterDecision(res.Response)
		if err != nil {
			slog.Warn("cluster verdict unparseable, keeping cluster", "cluster_id", cluster.ID, "error", err)
			kept = append(kept, cluster)
			continue
		}

		if decision.Relevant && decision.Confidence > f.confidenceFloor {
			kept = append(kept, cluster)
		} else {
			slog.Debug("cluster filtered out",
				"cluster_id", cluster.ID,
				"relevant", decision.Relevant,
				"confidence", decision.Confidence,
				"reason", decision.Reason)
		}
	}

	// Clusters beyond the result list (a short batch) are kept too.
	for pos := len(rec.Results); pos < len(requests); pos++ {
		if idx, ok := promptIdx[pos]; ok {
			slog.Warn("cluster verdict missing, keeping cluster", "cluster_id", clusters[idx].ID)
			kept = append(kept, clusters[idx])
		}
	}

	slog.Info("topic filter complete", "input", len(clusters), "kept", len(kept))
	return kept
}

// buildFilterPrompt assembles one cluster's keywords plus excerpts sampled
// from the start, middle, and end of its member list. It reports how many
// excerpts resolved; the caller skips prompting when none did.
func (f *TopicFilter) buildFilterPrompt(ctx context.Context, cluster models.TopicCluster) (string, int) {
	var b strings.Builder
	b.WriteString("Keywords: ")
	b.WriteString(strings.Join(cluster.Keywords, ", "))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Cluster size: %d episodes\n", len(cluster.EpisodeIDs))

	positions := samplePositions(len(cluster.EpisodeIDs))
	stages := []string{"early", "middle", "late"}
	sampled := 0
	for i, pos := range positions {
		body, err := f.store.GetEpisodeBody(ctx, cluster.EpisodeIDs[pos])
		if err != nil || body == "" {
			if err != nil {
				slog.Debug("excerpt fetch failed", "episode_id", cluster.EpisodeIDs[pos], "error", err)
			}
			continue
		}
		if len(body) > maxExcerptChars {
			body = body[:maxExcerptChars]
		}
		fmt.Fprintf(&b, "\nExcerpt (%s):\n%s\n", stages[i], body)
		sampled++
	}

	b.WriteString("\nVerdict:")
	return b.String(), sampled
}

// samplePositions picks up to three distinct indexes: first, middle, last.
func samplePositions(n int) []int {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []int{0}
	case n == 2:
		return []int{0, 1}
	}
	return []int{0, n / 2, n - 1}
}
