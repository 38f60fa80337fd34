package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/raphaelgruber/recollect/internal/models"
	"github.com/raphaelgruber/recollect/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	spacesFile string
	skipFilter bool
	spacesJSON bool
)

var spacesCmd = &cobra.Command{
	Use:   "spaces",
	Short: "Work with memory spaces",
}

var spacesDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover spaces from topic clusters",
	Long: `Read keyword clusters from a JSON file, screen them for meaningful
themes, ask the LLM to propose spaces grouping related topics, and
auto-create the high-confidence proposals.

Examples:
  recollect spaces discover -f clusters.json
  recollect spaces discover -f filtered.json --skip-filter`,
	RunE: runSpacesDiscover,
}

var spacesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List spaces in the workspace",
	RunE:  runSpacesList,
}

func init() {
	spacesDiscoverCmd.Flags().StringVarP(&spacesFile, "file", "f", "", "cluster JSON file (required)")
	_ = spacesDiscoverCmd.MarkFlagRequired("file")
	spacesDiscoverCmd.Flags().BoolVar(&skipFilter, "skip-filter", false, "treat the input clusters as already filtered")
	spacesDiscoverCmd.Flags().BoolVar(&spacesJSON, "json", false, "print the report as JSON")
	spacesCmd.AddCommand(spacesDiscoverCmd)
	spacesCmd.AddCommand(spacesListCmd)
}

func runSpacesDiscover(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	clusters, err := loadClusters(spacesFile)
	if err != nil {
		return err
	}
	if len(clusters) == 0 {
		fmt.Fprintln(os.Stderr, "No clusters to discover spaces from")
		return nil
	}

	model, err := getModel(ctx)
	if err != nil {
		return err
	}

	if !skipFilter {
		client, poller := newBatchStack(model)
		tracked := newTrackedClient(client)
		filter := service.NewTopicFilter(dbClient, tracked, poller, cfg.FilterConfidenceFloor, cfg.BatchMaxRetries, cfg.BatchPollTimeout)

		run := func(ctx context.Context) { clusters = filter.FilterRelevantTopics(ctx, clusters) }
		if term.IsTerminal(int(os.Stderr.Fd())) {
			if err := runWithProgress(ctx, tracked, run); err != nil {
				return err
			}
		} else {
			run(ctx)
		}
	}

	byID := make(map[string]models.TopicCluster, len(clusters))
	for _, c := range clusters {
		byID[c.ID] = c
	}

	discovery := service.NewSpaceDiscovery(model, dbClient, service.MinProposalConfidence, cfg.AutoCreateThreshold)
	report := discovery.RunDiscoveryJob(ctx, byID, workspaceID, userID)

	if spacesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if !report.Success {
		exitWithError("space discovery failed: %s", report.Error)
	}

	fmt.Printf("Proposals: %d (high confidence: %d, created: %d)\n",
		report.TotalProposals, report.HighConfidence, len(report.Created))
	for _, sp := range report.Created {
		fmt.Printf("  + %s (~%d episodes)\n", sp.Name, sp.EpisodeCount)
	}
	return nil
}

func runSpacesList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	spaces, err := dbClient.ListSpaces(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("list spaces: %w", err)
	}

	if len(spaces) == 0 {
		fmt.Println("No spaces found")
		return nil
	}

	fmt.Printf("%-30s %-10s %s\n", "NAME", "EPISODES", "DESCRIPTION")
	fmt.Println("----------------------------------------------------------------------")
	for _, sp := range spaces {
		fmt.Printf("%-30s %-10d %s\n", sp.Name, sp.EpisodeCount, sp.Description)
	}
	return nil
}
