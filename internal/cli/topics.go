package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/raphaelgruber/recollect/internal/models"
	"github.com/raphaelgruber/recollect/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var topicsFile string

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Work with topic clusters",
}

var topicsFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter topic clusters down to meaningful themes",
	Long: `Read externally computed keyword clusters from a JSON file, screen
each one through the LLM (batched), and print the clusters judged to be
meaningful recurring themes.

The input file holds the clusterer's output:
  {"topics": {"0": {"keywords": [...], "episodeIds": [...]}, "-1": {...}}}

The "-1" outlier cluster is always skipped.

Examples:
  recollect topics filter -f clusters.json
  recollect topics filter -f clusters.json > filtered.json`,
	RunE: runTopicsFilter,
}

func init() {
	topicsFilterCmd.Flags().StringVarP(&topicsFile, "file", "f", "", "cluster JSON file (required)")
	_ = topicsFilterCmd.MarkFlagRequired("file")
	topicsCmd.AddCommand(topicsFilterCmd)
}

// clusterFile is the clusterer's wire shape, keyed by cluster id.
type clusterFile struct {
	Topics map[string]topicEntry `json:"topics"`
}

type topicEntry struct {
	Keywords   []string `json:"keywords"`
	EpisodeIDs []string `json:"episodeIds"`
}

// loadClusters reads the clusterer's JSON output, skipping the "-1"
// outlier bucket. Cluster order follows sorted ids for reproducible runs.
func loadClusters(path string) ([]models.TopicCluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clusters: %w", err)
	}

	var f clusterFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode clusters: %w", err)
	}

	ids := make([]string, 0, len(f.Topics))
	for id := range f.Topics {
		if id == "-1" {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	clusters := make([]models.TopicCluster, 0, len(ids))
	for _, id := range ids {
		t := f.Topics[id]
		clusters = append(clusters, models.TopicCluster{
			ID:         id,
			Keywords:   t.Keywords,
			EpisodeIDs: t.EpisodeIDs,
		})
	}
	return clusters, nil
}

func runTopicsFilter(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	clusters, err := loadClusters(topicsFile)
	if err != nil {
		return err
	}
	if len(clusters) == 0 {
		fmt.Fprintln(os.Stderr, "No clusters to filter")
		return nil
	}

	model, err := getModel(ctx)
	if err != nil {
		return err
	}

	client, poller := newBatchStack(model)
	tracked := newTrackedClient(client)

	filter := service.NewTopicFilter(dbClient, tracked, poller, cfg.FilterConfidenceFloor, cfg.BatchMaxRetries, cfg.BatchPollTimeout)

	var kept []models.TopicCluster
	run := func(ctx context.Context) { kept = filter.FilterRelevantTopics(ctx, clusters) }

	if term.IsTerminal(int(os.Stderr.Fd())) {
		if err := runWithProgress(ctx, tracked, run); err != nil {
			return err
		}
	} else {
		run(ctx)
	}

	fmt.Fprintf(os.Stderr, "Kept %d of %d clusters\n", len(kept), len(clusters))

	out := clusterFile{Topics: make(map[string]topicEntry, len(kept))}
	for _, c := range kept {
		out.Topics[c.ID] = topicEntry{Keywords: c.Keywords, EpisodeIDs: c.EpisodeIDs}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
