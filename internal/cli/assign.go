package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/raphaelgruber/recollect/internal/service"
	"github.com/spf13/cobra"
)

var assignJSON bool

var assignCmd = &cobra.Command{
	Use:   "assign <queue-id>",
	Short: "Run label assignment for one ingested episode",
	Long: `Assign labels to an ingestion-queue episode: extract candidate
labels with the LLM, match them against existing labels by name and
embedding similarity, create the genuinely new ones, and persist the
union onto the episode, its session document, and the graph mirror.

Examples:
  recollect assign queue-01J8...            # default workspace/user
  recollect assign queue-01J8... -w work -u raphael
  recollect assign queue-01J8... --json     # machine-readable result`,
	Args: cobra.ExactArgs(1),
	RunE: runAssign,
}

func init() {
	assignCmd.Flags().BoolVar(&assignJSON, "json", false, "print the result as JSON")
}

func runAssign(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	queueID := args[0]

	engine, labels, err := newExtraction(ctx)
	if err != nil {
		return err
	}
	graphClient, err := getGraph(ctx)
	if err != nil {
		return err
	}

	assigner := service.NewAssigner(dbClient, graphClient, engine, labels)
	result := assigner.ProcessLabelAssignment(ctx, queueID, userID, workspaceID)

	if assignJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if !result.Success {
		exitWithError("assignment failed: %s", result.Error)
	}

	fmt.Printf("Assigned %d labels to %s\n", len(result.AssignedLabels), queueID)
	for _, id := range result.AssignedLabels {
		fmt.Printf("  - %s\n", id)
	}
	if result.GraphUpdated > 0 {
		fmt.Printf("Graph nodes updated: %d\n", result.GraphUpdated)
	}
	return nil
}
