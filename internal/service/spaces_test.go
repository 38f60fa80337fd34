package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raphaelgruber/recollect/internal/models"
)

func newTestDiscovery(model *fakeCompleter, store *fakeStore) *SpaceDiscovery {
	return NewSpaceDiscovery(model, store, 60, 80)
}

func discoveryClusters() map[string]models.TopicCluster {
	return map[string]models.TopicCluster{
		"0": {ID: "0", Keywords: []string{"go", "parser", "ast"}, EpisodeIDs: []string{"ep1", "ep2"}},
		"1": {ID: "1", Keywords: []string{"running", "marathon"}, EpisodeIDs: []string{"ep3"}},
	}
}

func TestDiscoverSpacesParsesProposals(t *testing.T) {
	store := newFakeStore()
	store.bodies["ep1"] = "worked on the parser"
	model := &fakeCompleter{responses: []string{`[
		{"name": "Compiler Work", "intent": "Everything about the compiler project", "confidence": 85, "reasoning": "r", "topics": ["0"]},
		{"name": "Weak Idea", "intent": "Barely coheres", "confidence": 40, "reasoning": "r", "topics": ["1"]}]`}}

	got, err := newTestDiscovery(model, store).DiscoverSpaces(context.Background(), discoveryClusters(), nil)
	if err != nil {
		t.Fatalf("DiscoverSpaces: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("proposals = %v, want the below-floor one discarded", got)
	}
	if got[0].Name != "Compiler Work" || got[0].Confidence != 85 {
		t.Errorf("proposal = %+v", got[0])
	}
}

func TestDiscoverSpacesModelErrorPropagates(t *testing.T) {
	model := &fakeCompleter{err: errors.New("model down")}
	if _, err := newTestDiscovery(model, newFakeStore()).DiscoverSpaces(context.Background(), discoveryClusters(), nil); err == nil {
		t.Fatal("expected model error to propagate")
	}
}

func TestDiscoverSpacesParseErrorYieldsNothing(t *testing.T) {
	model := &fakeCompleter{responses: []string{"here are my thoughts on spaces"}}
	got, err := newTestDiscovery(model, newFakeStore()).DiscoverSpaces(context.Background(), discoveryClusters(), nil)
	if err != nil {
		t.Fatalf("parse failure should not be an error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("proposals = %v, want none from an unparseable round", got)
	}
}

func TestDiscoverSpacesEmptyClusters(t *testing.T) {
	model := &fakeCompleter{err: errors.New("must not be called")}
	got, err := newTestDiscovery(model, newFakeStore()).DiscoverSpaces(context.Background(), nil, nil)
	if err != nil || got != nil {
		t.Fatalf("empty clusters should short-circuit, got %v, %v", got, err)
	}
}

func TestBuildDiscoveryPromptLimitsAndExistingSpaces(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 8; i++ {
		store.bodies[string(rune('a'+i))] = strings.Repeat("x", 1000)
	}

	keywords := make([]string, 15)
	episodes := make([]string, 8)
	for i := range keywords {
		keywords[i] = strings.Repeat("k", 3)
	}
	for i := range episodes {
		episodes[i] = string(rune('a' + i))
	}
	clusters := map[string]models.TopicCluster{"0": {ID: "0", Keywords: keywords, EpisodeIDs: episodes}}
	existing := []models.Space{{Name: "Fitness", Description: "Training log", EpisodeCount: 12}}

	prompt := newTestDiscovery(&fakeCompleter{}, store).buildDiscoveryPrompt(context.Background(), clusters, existing)

	if got := strings.Count(prompt, "kkk"); got != maxKeywordsPerTopic {
		t.Errorf("prompt shows %d keywords, want %d", got, maxKeywordsPerTopic)
	}
	if got := strings.Count(prompt, "- "+strings.Repeat("x", maxDiscoveryExcerptChars)); got != maxEpisodesPerTopic {
		t.Errorf("prompt shows %d excerpts, want %d", got, maxEpisodesPerTopic)
	}
	if strings.Contains(prompt, strings.Repeat("x", maxDiscoveryExcerptChars+1)) {
		t.Error("excerpts should be truncated")
	}
	if !strings.Contains(prompt, "- Fitness: Training log (12 episodes)") {
		t.Error("prompt should list existing spaces")
	}
}

func TestRunDiscoveryJobAutoCreatesHighConfidence(t *testing.T) {
	store := newFakeStore()
	model := &fakeCompleter{responses: []string{`[
		{"name": "Compiler Work", "intent": "The compiler project", "confidence": 90, "reasoning": "r", "topics": ["0"]},
		{"name": "Maybe Fitness", "intent": "Could be a theme", "confidence": 70, "reasoning": "r", "topics": ["1"]}]`}}

	report := newTestDiscovery(model, store).RunDiscoveryJob(context.Background(), discoveryClusters(), "ws1", "user1")

	if !report.Success {
		t.Fatalf("expected success, got %q", report.Error)
	}
	if report.TotalProposals != 2 || report.HighConfidence != 1 || len(report.Created) != 1 {
		t.Errorf("report = %+v, want 2 proposals, 1 high confidence, 1 created", report)
	}
	if report.Created[0].Name != "Compiler Work" || report.Created[0].EpisodeCount != 2 {
		t.Errorf("created = %+v, want Compiler Work with estimate 2", report.Created[0])
	}
	if len(store.createdSpaces) != 1 || store.createdSpaces[0] != "Compiler Work" {
		t.Errorf("created spaces = %v", store.createdSpaces)
	}
	// Episode estimate comes from the contributing cluster.
	if store.spaces[0].EpisodeCount != 2 {
		t.Errorf("episode count = %d, want 2", store.spaces[0].EpisodeCount)
	}
}

func TestRunDiscoveryJobCreateFailureSkipsProposal(t *testing.T) {
	store := newFakeStore()
	store.createSpaceErr = errors.New("db down")
	model := &fakeCompleter{responses: []string{`[
		{"name": "Compiler Work", "intent": "The compiler project", "confidence": 90, "reasoning": "r", "topics": ["0"]}]`}}

	report := newTestDiscovery(model, store).RunDiscoveryJob(context.Background(), discoveryClusters(), "ws1", "user1")

	if !report.Success {
		t.Fatalf("a failed create must not fail the run, got %q", report.Error)
	}
	if report.HighConfidence != 1 || len(report.Created) != 0 {
		t.Errorf("report = %+v, want 1 high confidence and 0 created", report)
	}
}

func TestRunDiscoveryJobListSpacesFailure(t *testing.T) {
	store := newFakeStore()
	store.listSpacesErr = errors.New("db down")

	report := newTestDiscovery(&fakeCompleter{}, store).RunDiscoveryJob(context.Background(), discoveryClusters(), "ws1", "user1")

	if report.Success || report.Error == "" {
		t.Fatalf("report = %+v, want failure with error message", report)
	}
}
