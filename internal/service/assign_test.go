package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raphaelgruber/recollect/internal/models"
)

func strPtr(s string) *string { return &s }

func newTestAssigner(store *fakeStore, graph *fakeGraph, model *fakeCompleter, embedder *fakeEmbedder, index *fakeIndex) *Assigner {
	engine := NewExtractionEngine(model, embedder, index, store, 0.85)
	labels := NewLabelService(store, embedder, index)
	return NewAssigner(store, graph, engine, labels)
}

func TestProcessLabelAssignmentHappyPath(t *testing.T) {
	store := newFakeStore()
	store.addLabel("label-go", "Go Programming", "Working in Go", "ws1")
	store.episodes["ep1"] = &models.Episode{
		ID:          "ep1",
		WorkspaceID: "ws1",
		Title:       "Parser work",
		Body:        "refactored the parser in Go and planned a trail run",
		SessionID:   strPtr("sess1"),
	}
	store.documents["sess1"] = &models.Document{ID: "doc1", WorkspaceID: "ws1", SessionID: "sess1", LabelIDs: []string{"label-old"}}

	model := &fakeCompleter{responses: []string{`{"labels": [
		{"name": "Go Programming", "description": "writes go"},
		{"name": "Trail Running", "description": "runs trails"}]}`}}
	embedder := &fakeEmbedder{vec: []float32{0.1}}
	graph := &fakeGraph{updated: 3}

	assigner := newTestAssigner(store, graph, model, embedder, &fakeIndex{})
	result := assigner.ProcessLabelAssignment(context.Background(), "ep1", "user1", "ws1")

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}

	want := []string{"label-old", "label-go", "label-trail-running"}
	if len(result.AssignedLabels) != len(want) {
		t.Fatalf("assigned = %v, want %v", result.AssignedLabels, want)
	}
	for i, id := range want {
		if result.AssignedLabels[i] != id {
			t.Errorf("assigned[%d] = %q, want %q (existing ids first, then matched, then created)", i, result.AssignedLabels[i], id)
		}
	}

	if got := store.episodeLabelWrites["ep1"]; len(got) != 3 {
		t.Errorf("episode labels not persisted, got %v", got)
	}
	if got := store.documentLabelWrites["doc1"]; len(got) != 3 {
		t.Errorf("document labels not persisted, got %v", got)
	}

	if result.GraphUpdated != 3 {
		t.Errorf("graph updated = %d, want 3", result.GraphUpdated)
	}
	if len(graph.targets) != 1 || graph.targets[0] != "sess1" {
		t.Errorf("graph should be addressed by session id, got %v", graph.targets)
	}
}

func TestProcessLabelAssignmentPersonaShortCircuit(t *testing.T) {
	store := newFakeStore()
	store.episodes["ep1"] = &models.Episode{ID: "ep1", WorkspaceID: "ws1", Title: models.PersonaTitle, Body: "system summary"}
	model := &fakeCompleter{err: errors.New("must not be called")}
	graph := &fakeGraph{}

	assigner := newTestAssigner(store, graph, model, &fakeEmbedder{}, &fakeIndex{})
	result := assigner.ProcessLabelAssignment(context.Background(), "ep1", "user1", "ws1")

	if !result.Success {
		t.Fatalf("persona episode should succeed without extraction, got %q", result.Error)
	}
	if len(result.AssignedLabels) != 0 {
		t.Errorf("persona episode should get no labels, got %v", result.AssignedLabels)
	}
	if model.calls != 0 {
		t.Error("persona episode must not reach the model")
	}
	if len(graph.targets) != 0 {
		t.Error("persona episode must not touch the graph")
	}
}

func TestProcessLabelAssignmentEpisodeNotFound(t *testing.T) {
	assigner := newTestAssigner(newFakeStore(), &fakeGraph{}, &fakeCompleter{}, &fakeEmbedder{}, &fakeIndex{})
	result := assigner.ProcessLabelAssignment(context.Background(), "missing", "user1", "ws1")

	if result.Success {
		t.Fatal("missing episode should fail")
	}
	if result.Error == "" {
		t.Error("failure result should carry an error message")
	}
}

func TestProcessLabelAssignmentExtractionFailureFails(t *testing.T) {
	store := newFakeStore()
	store.episodes["ep1"] = &models.Episode{ID: "ep1", WorkspaceID: "ws1", Title: "t", Body: "b"}
	model := &fakeCompleter{err: errors.New("model down")}

	assigner := newTestAssigner(store, &fakeGraph{}, model, &fakeEmbedder{}, &fakeIndex{})
	result := assigner.ProcessLabelAssignment(context.Background(), "ep1", "user1", "ws1")

	if result.Success {
		t.Fatal("extraction failure should produce a failure result")
	}
}

func TestProcessLabelAssignmentPersistenceFailuresAreBestEffort(t *testing.T) {
	store := newFakeStore()
	store.episodes["ep1"] = &models.Episode{ID: "ep1", WorkspaceID: "ws1", Title: "t", Body: "b", SessionID: strPtr("sess1")}
	store.documents["sess1"] = &models.Document{ID: "doc1", WorkspaceID: "ws1", SessionID: "sess1"}
	store.updateEpisodeErr = errors.New("write failed")
	store.updateDocumentErr = errors.New("write failed")

	model := &fakeCompleter{responses: []string{`{"labels": [{"name": "Cooking", "description": "makes dinner"}]}`}}
	assigner := newTestAssigner(store, &fakeGraph{updated: 1}, model, &fakeEmbedder{vec: []float32{0.1}}, &fakeIndex{})
	result := assigner.ProcessLabelAssignment(context.Background(), "ep1", "user1", "ws1")

	if !result.Success {
		t.Fatalf("persistence failures must not fail the run, got %q", result.Error)
	}
	if len(result.AssignedLabels) != 1 {
		t.Errorf("assigned = %v, want one created label", result.AssignedLabels)
	}
}

func TestProcessLabelAssignmentGraphFailureIsBestEffort(t *testing.T) {
	store := newFakeStore()
	store.episodes["ep1"] = &models.Episode{ID: "ep1", WorkspaceID: "ws1", Title: "t", Body: "b"}
	model := &fakeCompleter{responses: []string{`{"labels": [{"name": "Cooking", "description": "makes dinner"}]}`}}
	graph := &fakeGraph{err: errors.New("neo4j unreachable")}

	assigner := newTestAssigner(store, graph, model, &fakeEmbedder{vec: []float32{0.1}}, &fakeIndex{})
	result := assigner.ProcessLabelAssignment(context.Background(), "ep1", "user1", "ws1")

	if !result.Success {
		t.Fatalf("graph failure must not fail the run, got %q", result.Error)
	}
	if result.GraphUpdated != 0 {
		t.Errorf("graph updated = %d, want 0 on failure", result.GraphUpdated)
	}
}

func TestProcessLabelAssignmentLabelCreateFailureSkipsSuggestion(t *testing.T) {
	store := newFakeStore()
	store.addLabel("label-go", "Go Programming", "Working in Go", "ws1")
	store.episodes["ep1"] = &models.Episode{ID: "ep1", WorkspaceID: "ws1", Title: "t", Body: "b"}
	store.createLabelErr = errors.New("db down")

	model := &fakeCompleter{responses: []string{`{"labels": [
		{"name": "Go Programming", "description": "writes go"},
		{"name": "New Thing", "description": "brand new"}]}`}}

	assigner := newTestAssigner(store, &fakeGraph{}, model, &fakeEmbedder{vec: []float32{0.1}}, &fakeIndex{})
	result := assigner.ProcessLabelAssignment(context.Background(), "ep1", "user1", "ws1")

	if !result.Success {
		t.Fatalf("one failed label create must not fail the run, got %q", result.Error)
	}
	if len(result.AssignedLabels) != 1 || result.AssignedLabels[0] != "label-go" {
		t.Errorf("assigned = %v, want just the matched label", result.AssignedLabels)
	}
}

func TestProcessLabelAssignmentFallsBackToEpisodeLabels(t *testing.T) {
	store := newFakeStore()
	store.episodes["ep1"] = &models.Episode{
		ID:          "ep1",
		WorkspaceID: "ws1",
		Title:       "t",
		Body:        "b",
		LabelIDs:    []string{"label-prior"},
		// no session id, so no document lookup
	}
	model := &fakeCompleter{responses: []string{`{"labels": [{"name": "Cooking", "description": "makes dinner"}]}`}}

	assigner := newTestAssigner(store, &fakeGraph{}, model, &fakeEmbedder{vec: []float32{0.1}}, &fakeIndex{})
	result := assigner.ProcessLabelAssignment(context.Background(), "ep1", "user1", "ws1")

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if len(result.AssignedLabels) != 2 || result.AssignedLabels[0] != "label-prior" {
		t.Errorf("assigned = %v, want prior episode label first", result.AssignedLabels)
	}
}

func TestProcessLabelAssignmentExcludesPersonaLabelFromPrompt(t *testing.T) {
	store := newFakeStore()
	store.addLabel("label-persona", models.PersonaTitle, "reserved", "ws1")
	store.episodes["ep1"] = &models.Episode{ID: "ep1", WorkspaceID: "ws1", Title: "t", Body: "b"}

	model := &fakeCompleter{responses: []string{`{"labels": []}`}}
	assigner := newTestAssigner(store, &fakeGraph{}, model, &fakeEmbedder{vec: []float32{0.1}}, &fakeIndex{})
	result := assigner.ProcessLabelAssignment(context.Background(), "ep1", "user1", "ws1")

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	for _, prompt := range model.prompts {
		if containsLine(prompt, "- "+models.PersonaTitle) {
			t.Error("reserved label must not be offered to the model")
		}
	}
}

func containsLine(s, prefix string) bool {
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
