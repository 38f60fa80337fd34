package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/raphaelgruber/recollect/internal/llm"
	"github.com/raphaelgruber/recollect/internal/models"
)

// MinProposalConfidence is the default floor (0-100) below which space
// proposals are discarded at the parse boundary.
const MinProposalConfidence = 60

const (
	// maxKeywordsPerTopic bounds the keywords shown per topic in the
	// discovery prompt.
	maxKeywordsPerTopic = 10

	// maxEpisodesPerTopic bounds the sampled episode excerpts per topic.
	maxEpisodesPerTopic = 5

	// maxDiscoveryExcerptChars bounds each sampled excerpt.
	maxDiscoveryExcerptChars = 500
)

const discoverySystemPrompt = `You propose "spaces": named groupings of related topics from a user's
personal memory. A good space collects topics the user would want to browse
together, around a project, pursuit, or area of life.

Rules:
- Prefer an existing space when topics clearly fit it; use its exact name.
- Only propose a new space when multiple topics genuinely cohere.
- A space may hold several topics; never split one topic across spaces.
- Aim for spaces covering roughly 20-50 episodes.
- Never duplicate or trivially rename an existing space.
- name: short and concrete. intent: one sentence on what belongs there.
- confidence: 0-100, how certain you are the grouping is real.

Respond with a JSON array only, no prose:
[{"name": "...", "intent": "...", "confidence": 0, "reasoning": "...", "topics": ["topic-id", ...]}]`

// Report summarizes one space discovery job run.
type Report struct {
	Success        bool           `json:"success"`
	Error          string         `json:"error,omitempty"`
	TotalProposals int            `json:"total_proposals"`
	HighConfidence int            `json:"high_confidence"`
	Created        []models.Space `json:"created"`
}

// SpaceDiscovery proposes spaces from filtered topic clusters and
// auto-creates the high-confidence ones.
type SpaceDiscovery struct {
	model               Completer
	store               Store
	minConfidence       float64
	autoCreateThreshold float64
}

// NewSpaceDiscovery creates a space discovery service. Both thresholds are
// on the 0-100 confidence scale.
func NewSpaceDiscovery(model Completer, store Store, minConfidence, autoCreateThreshold float64) *SpaceDiscovery {
	return &SpaceDiscovery{
		model:               model,
		store:               store,
		minConfidence:       minConfidence,
		autoCreateThreshold: autoCreateThreshold,
	}
}

// DiscoverSpaces asks the model for space proposals over the given topic
// clusters, given the workspace's existing spaces. Model call failures
// propagate; a malformed response is logged and yields no proposals, since
// a discovery round that produces nothing is safe to rerun.
func (s *SpaceDiscovery) DiscoverSpaces(ctx context.Context, clusters map[string]models.TopicCluster, existing []models.Space) ([]models.SpaceProposal, error) {
	if len(clusters) == 0 {
		return nil, nil
	}

	response, err := s.model.GenerateWithSystem(ctx, discoverySystemPrompt, s.buildDiscoveryPrompt(ctx, clusters, existing))
	if err != nil {
		return nil, fmt.Errorf("discover spaces: %w", err)
	}

	proposals, err := llm.DecodeSpaceProposals(response, s.minConfidence)
	if err != nil {
		slog.Warn("space proposals unparseable, discarding round", "error", err)
		return nil, nil
	}
	return proposals, nil
}

// RunDiscoveryJob is the job entry point: list existing spaces, discover,
// and persist every proposal at or above the auto-create threshold. One
// failed create skips that proposal, not the run.
func (s *SpaceDiscovery) RunDiscoveryJob(ctx context.Context, clusters map[string]models.TopicCluster, workspaceID, ownerID string) Report {
	existing, err := s.store.ListSpaces(ctx, workspaceID)
	if err != nil {
		return Report{Error: fmt.Sprintf("list existing spaces: %v", err)}
	}

	proposals, err := s.DiscoverSpaces(ctx, clusters, existing)
	if err != nil {
		return Report{Error: err.Error()}
	}

	report := Report{Success: true, TotalProposals: len(proposals)}
	for _, p := range proposals {
		if p.Confidence < s.autoCreateThreshold {
			continue
		}
		report.HighConfidence++

		space, err := s.store.CreateSpace(ctx, p.Name, p.Intent, workspaceID, ownerID, p.EpisodeEstimate(clusters))
		if err != nil {
			slog.Warn("space creation failed, skipping proposal", "name", p.Name, "error", err)
			continue
		}
		report.Created = append(report.Created, *space)
		slog.Info("space created", "name", p.Name, "confidence", p.Confidence, "topics", len(p.TopicIDs))
	}

	slog.Info("space discovery complete",
		"workspace_id", workspaceID,
		"proposals", report.TotalProposals,
		"high_confidence", report.HighConfidence,
		"created", len(report.Created))
	return report
}

// buildDiscoveryPrompt lays out each topic's top keywords and a few
// episode excerpts, followed by the workspace's existing spaces so the
// model avoids duplicates.
func (s *SpaceDiscovery) buildDiscoveryPrompt(ctx context.Context, clusters map[string]models.TopicCluster, existing []models.Space) string {
	var b strings.Builder
	b.WriteString("Topics:\n")

	for _, id := range sortedClusterIDs(clusters) {
		cluster := clusters[id]

		keywords := cluster.Keywords
		if len(keywords) > maxKeywordsPerTopic {
			keywords = keywords[:maxKeywordsPerTopic]
		}
		fmt.Fprintf(&b, "\nTopic %s (%d episodes)\nKeywords: %s\n", id, len(cluster.EpisodeIDs), strings.Join(keywords, ", "))

		shown := 0
		for _, epID := range cluster.EpisodeIDs {
			if shown >= maxEpisodesPerTopic {
				break
			}
			body, err := s.store.GetEpisodeBody(ctx, epID)
			if err != nil || body == "" {
				continue
			}
			if len(body) > maxDiscoveryExcerptChars {
				body = body[:maxDiscoveryExcerptChars]
			}
			fmt.Fprintf(&b, "- %s\n", body)
			shown++
		}
	}

	if len(existing) > 0 {
		b.WriteString("\nExisting spaces (do not duplicate):\n")
		for _, sp := range existing {
			fmt.Fprintf(&b, "- %s: %s (%d episodes)\n", sp.Name, sp.Description, sp.EpisodeCount)
		}
	} else {
		b.WriteString("\nExisting spaces: none\n")
	}

	b.WriteString("\nProposals:")
	return b.String()
}

func sortedClusterIDs(clusters map[string]models.TopicCluster) []string {
	ids := make([]string, 0, len(clusters))
	for id := range clusters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
