package models

import "time"

// Space is a named grouping of episodes around a broader theme.
type Space struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	WorkspaceID  string    `json:"workspace_id"`
	OwnerID      string    `json:"owner_id"`
	EpisodeCount int       `json:"episode_count,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// TopicCluster is one externally computed keyword cluster. The id "-1"
// marks the outlier/noise cluster and is skipped during JSON ingestion.
// Clusters are consumed per invocation and never persisted.
type TopicCluster struct {
	ID         string   `json:"id"`
	Keywords   []string `json:"keywords"`
	EpisodeIDs []string `json:"episodeIds"`
}

// SpaceProposal is one grouping suggested by space discovery.
// Confidence is on a 0-100 scale; proposals below the discovery floor are
// discarded at the parse boundary, proposals at or above the auto-create
// threshold are persisted by the job wrapper.
type SpaceProposal struct {
	Name       string   `json:"name"`
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	TopicIDs   []string `json:"topic_ids"`
}

// EpisodeEstimate returns the summed member count of the proposal's
// contributing topics.
func (p SpaceProposal) EpisodeEstimate(clusters map[string]TopicCluster) int {
	n := 0
	for _, id := range p.TopicIDs {
		if c, ok := clusters[id]; ok {
			n += len(c.EpisodeIDs)
		}
	}
	return n
}

// FilterDecision is the per-cluster verdict of the topic clustering filter.
type FilterDecision struct {
	Relevant   bool    `json:"relevant"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}
