package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/raphaelgruber/recollect/internal/db"
	"github.com/raphaelgruber/recollect/internal/models"
	"github.com/raphaelgruber/recollect/internal/vector"
)

// fakeStore is an in-memory Store. Individual methods can be overridden
// with err fields or hooks to exercise failure paths.
type fakeStore struct {
	mu sync.Mutex

	episodes  map[string]*models.Episode
	bodies    map[string]string
	documents map[string]*models.Document // keyed by session id
	labels    map[string]*models.Label    // keyed by id
	spaces    []models.Space

	episodeLabelWrites  map[string][]string
	documentLabelWrites map[string][]string

	listLabelsErr     error
	getEpisodeErr     error
	createLabelErr    error
	createSpaceErr    error
	listSpacesErr     error
	updateEpisodeErr  error
	updateDocumentErr error

	createdLabels []string
	createdSpaces []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		episodes:            map[string]*models.Episode{},
		bodies:              map[string]string{},
		documents:           map[string]*models.Document{},
		labels:              map[string]*models.Label{},
		episodeLabelWrites:  map[string][]string{},
		documentLabelWrites: map[string][]string{},
	}
}

func (s *fakeStore) addLabel(id, name, description, workspaceID string) *models.Label {
	l := &models.Label{ID: id, Name: name, Description: description, WorkspaceID: workspaceID}
	s.labels[id] = l
	return l
}

func (s *fakeStore) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	if s.getEpisodeErr != nil {
		return nil, s.getEpisodeErr
	}
	return s.episodes[id], nil
}

func (s *fakeStore) GetEpisodeBody(ctx context.Context, id string) (string, error) {
	body, ok := s.bodies[id]
	if !ok {
		return "", fmt.Errorf("episode %s has no body", id)
	}
	return body, nil
}

func (s *fakeStore) UpdateEpisodeLabels(ctx context.Context, id string, labelIDs []string) error {
	if s.updateEpisodeErr != nil {
		return s.updateEpisodeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodeLabelWrites[id] = labelIDs
	return nil
}

func (s *fakeStore) GetDocumentBySession(ctx context.Context, workspaceID, sessionID string) (*models.Document, error) {
	return s.documents[sessionID], nil
}

func (s *fakeStore) UpdateDocumentLabels(ctx context.Context, id string, labelIDs []string) error {
	if s.updateDocumentErr != nil {
		return s.updateDocumentErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentLabelWrites[id] = labelIDs
	return nil
}

func (s *fakeStore) CreateLabel(ctx context.Context, name, description, workspaceID, color string) (*models.Label, error) {
	if s.createLabelErr != nil {
		return nil, s.createLabelErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.labels {
		if l.WorkspaceID == workspaceID && l.Name == name {
			return nil, db.ErrAlreadyExists
		}
	}
	id := "label-" + strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	l := &models.Label{ID: id, Name: name, Description: description, WorkspaceID: workspaceID, Color: color}
	s.labels[id] = l
	s.createdLabels = append(s.createdLabels, name)
	return l, nil
}

func (s *fakeStore) GetLabel(ctx context.Context, id string) (*models.Label, error) {
	return s.labels[id], nil
}

func (s *fakeStore) GetLabelByName(ctx context.Context, workspaceID, name string) (*models.Label, error) {
	for _, l := range s.labels {
		if l.WorkspaceID == workspaceID && l.Name == name {
			return l, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListLabels(ctx context.Context, workspaceID string) ([]models.Label, error) {
	if s.listLabelsErr != nil {
		return nil, s.listLabelsErr
	}
	var out []models.Label
	for _, l := range s.labels {
		if l.WorkspaceID == workspaceID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateSpace(ctx context.Context, name, description, workspaceID, ownerID string, episodeCount int) (*models.Space, error) {
	if s.createSpaceErr != nil {
		return nil, s.createSpaceErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := models.Space{ID: "space-" + name, Name: name, Description: description, WorkspaceID: workspaceID, OwnerID: ownerID, EpisodeCount: episodeCount}
	s.spaces = append(s.spaces, sp)
	s.createdSpaces = append(s.createdSpaces, name)
	return &sp, nil
}

func (s *fakeStore) ListSpaces(ctx context.Context, workspaceID string) ([]models.Space, error) {
	if s.listSpacesErr != nil {
		return nil, s.listSpacesErr
	}
	return s.spaces, nil
}

// fakeIndex records upserts and answers searches from a canned match list.
type fakeIndex struct {
	upserts   []vector.Record
	matches   []vector.Match
	searchErr error
	upsertErr error
	queries   []vector.Query
}

func (f *fakeIndex) Upsert(ctx context.Context, rec vector.Record) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, rec)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, q vector.Query) ([]vector.Match, error) {
	f.queries = append(f.queries, q)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.matches, nil
}

// fakeCompleter returns canned responses in call order, or a fixed error.
type fakeCompleter struct {
	responses []string
	err       error
	calls     int
	prompts   []string
	systems   []string
}

func (f *fakeCompleter) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.systems = append(f.systems, systemPrompt)
	f.prompts = append(f.prompts, userPrompt)
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", fmt.Errorf("no canned response for call %d", f.calls)
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

// fakeEmbedder returns a fixed vector for any text.
type fakeEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

// fakeGraph records label propagation calls.
type fakeGraph struct {
	err     error
	updated int
	targets []string
	labels  [][]string
}

func (f *fakeGraph) UpdateEpisodeLabels(ctx context.Context, sessionOrEpisodeID string, labelIDs []string, userID string) (int, error) {
	f.targets = append(f.targets, sessionOrEpisodeID)
	f.labels = append(f.labels, labelIDs)
	if f.err != nil {
		return 0, f.err
	}
	return f.updated, nil
}
