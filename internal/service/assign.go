package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/recollect/internal/models"
)

// AssignmentResult is the structured outcome of one label assignment run.
// The job framework sees this, never an error or a panic.
type AssignmentResult struct {
	Success        bool     `json:"success"`
	AssignedLabels []string `json:"assigned_labels"`
	GraphUpdated   int      `json:"graph_updated"`
	Error          string   `json:"error,omitempty"`
}

// Assigner is the per-episode label assignment orchestrator.
type Assigner struct {
	store     Store
	graph     GraphStore
	extractor *ExtractionEngine
	labels    *LabelService
}

// NewAssigner creates a label assignment orchestrator.
func NewAssigner(store Store, graph GraphStore, extractor *ExtractionEngine, labels *LabelService) *Assigner {
	return &Assigner{store: store, graph: graph, extractor: extractor, labels: labels}
}

// ProcessLabelAssignment labels one ingested episode: extract candidates,
// create the new ones, union with previously assigned ids, persist, and
// mirror into the graph store. Steps run strictly in sequence; the
// conflict-recovery path in label creation assumes no in-process fan-out.
func (a *Assigner) ProcessLabelAssignment(ctx context.Context, queueID, userID, workspaceID string) (result AssignmentResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("label assignment panicked", "queue_id", queueID, "panic", r)
			result = AssignmentResult{Error: fmt.Sprintf("internal panic: %v", r)}
		}
	}()

	episode, err := a.store.GetEpisode(ctx, queueID)
	if err != nil {
		return AssignmentResult{Error: fmt.Sprintf("look up episode %s: %v", queueID, err)}
	}
	if episode == nil {
		return AssignmentResult{Error: fmt.Sprintf("episode %s not found", queueID)}
	}

	// Persona episodes carry system-generated summaries; labeling them
	// would pollute the workspace with meta-labels.
	if episode.Title == models.PersonaTitle {
		slog.Info("skipping persona episode", "queue_id", queueID)
		return AssignmentResult{Success: true, AssignedLabels: []string{}}
	}

	existingIDs, document := a.existingLabelIDs(ctx, episode, workspaceID)

	available, err := a.store.ListLabels(ctx, workspaceID)
	if err != nil {
		return AssignmentResult{Error: fmt.Sprintf("list workspace labels: %v", err)}
	}
	available = excludeReservedLabels(available)

	extracted, err := a.extractor.ExtractLabels(ctx, episode.Body, available, workspaceID)
	if err != nil {
		return AssignmentResult{Error: fmt.Sprintf("extract labels: %v", err)}
	}

	var matchedIDs, createdIDs []string
	for _, ex := range extracted {
		if !ex.IsNew {
			matchedIDs = append(matchedIDs, ex.LabelID)
			continue
		}

		label, err := a.labels.EnsureLabel(ctx, workspaceID, ex.Name, ex.Description)
		if err != nil {
			// One failed suggestion must not abort the rest.
			slog.Warn("label creation failed, skipping", "name", ex.Name, "error", err)
			continue
		}
		createdIDs = append(createdIDs, label.ID)
	}

	assigned := models.UnionLabelIDs(existingIDs, matchedIDs, createdIDs)

	// The episode is already usefully processed; write-back failures are
	// logged, not fatal.
	if err := a.store.UpdateEpisodeLabels(ctx, episode.ID, assigned); err != nil {
		slog.Warn("persist labels onto queue record failed", "queue_id", queueID, "error", err)
	}
	if document != nil {
		if err := a.store.UpdateDocumentLabels(ctx, document.ID, assigned); err != nil {
			slog.Warn("persist labels onto document failed", "document_id", document.ID, "error", err)
		}
	}

	graphUpdated := a.propagateToGraph(ctx, episode, assigned, userID)

	slog.Info("label assignment complete",
		"queue_id", queueID,
		"assigned", len(assigned),
		"matched", len(matchedIDs),
		"created", len(createdIDs),
		"graph_updated", graphUpdated)

	return AssignmentResult{
		Success:        true,
		AssignedLabels: assigned,
		GraphUpdated:   graphUpdated,
	}
}

// existingLabelIDs resolves previously assigned labels. The session's
// document is the source of truth when one exists; otherwise the queue
// record's own label set carries over so labels are only ever added.
func (a *Assigner) existingLabelIDs(ctx context.Context, episode *models.Episode, workspaceID string) ([]string, *models.Document) {
	if episode.SessionID == nil || *episode.SessionID == "" {
		return episode.LabelIDs, nil
	}

	document, err := a.store.GetDocumentBySession(ctx, workspaceID, *episode.SessionID)
	if err != nil {
		slog.Warn("document lookup failed, using queue record labels", "session_id", *episode.SessionID, "error", err)
		return episode.LabelIDs, nil
	}
	if document == nil {
		return episode.LabelIDs, nil
	}
	return document.LabelIDs, document
}

// propagateToGraph mirrors the final label set onto the graph-store
// episode nodes. Best-effort: the relational state is already written.
func (a *Assigner) propagateToGraph(ctx context.Context, episode *models.Episode, labelIDs []string, userID string) int {
	target := episode.ID
	if episode.SessionID != nil && *episode.SessionID != "" {
		target = *episode.SessionID
	}

	count, err := a.graph.UpdateEpisodeLabels(ctx, target, labelIDs, userID)
	if err != nil {
		slog.Warn("graph label propagation failed", "target", target, "error", err)
		return 0
	}
	return count
}

// excludeReservedLabels removes the reserved Persona label so it is never
// offered to the model for reuse.
func excludeReservedLabels(labels []models.Label) []models.Label {
	out := labels[:0]
	for _, l := range labels {
		if l.Name == models.PersonaTitle {
			continue
		}
		out = append(out, l)
	}
	return out
}
