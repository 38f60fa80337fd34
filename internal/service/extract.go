package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/recollect/internal/llm"
	"github.com/raphaelgruber/recollect/internal/models"
	"github.com/raphaelgruber/recollect/internal/vector"
)

const (
	// maxEpisodePromptChars bounds the episode excerpt sent to the model.
	maxEpisodePromptChars = 4000

	// maxLabelsPerEpisode caps extraction output regardless of what the
	// model returns.
	maxLabelsPerEpisode = 3
)

const extractionSystemPrompt = `You extract thematic labels from a user's personal memory episodes.

Extract 1-3 labels that capture what this episode reveals about the USER specifically:
their projects, interests, habits, relationships, or recurring themes.
Do NOT extract generic or textbook concepts that would apply to anyone.

Each label:
- name: 1-3 words, Title Case
- description: at most 15 words

Strongly prefer reusing one of the existing labels listed in the prompt over
inventing a new one. Only propose a new label when nothing existing fits.

Respond with JSON only, no prose:
{"labels": [{"name": "...", "description": "..."}]}`

// ExtractionEngine proposes labels for an episode, matching each candidate
// against existing labels by exact name or embedding similarity before
// marking it new.
type ExtractionEngine struct {
	model               Completer
	embedder            Embedder
	index               VectorIndex
	store               Store
	similarityThreshold float64
}

// NewExtractionEngine creates a label extraction engine.
func NewExtractionEngine(model Completer, embedder Embedder, index VectorIndex, store Store, similarityThreshold float64) *ExtractionEngine {
	return &ExtractionEngine{
		model:               model,
		embedder:            embedder,
		index:               index,
		store:               store,
		similarityThreshold: similarityThreshold,
	}
}

// ExtractLabels extracts candidate labels for an episode body. Output
// preserves extraction order; no entry is both matched and marked new.
// Model and parse errors propagate: an unlabeled episode the scheduler can
// retry beats a silently mislabeled one.
func (e *ExtractionEngine) ExtractLabels(ctx context.Context, episodeBody string, availableLabels []models.Label, workspaceID string) ([]models.ExtractedLabel, error) {
	excerpt := episodeBody
	if len(excerpt) > maxEpisodePromptChars {
		// Signal the truncation to the model.
		excerpt = excerpt[:maxEpisodePromptChars] + "..."
	}

	response, err := e.model.GenerateWithSystem(ctx, extractionSystemPrompt, buildExtractionPrompt(excerpt, availableLabels))
	if err != nil {
		return nil, fmt.Errorf("extract labels: %w", err)
	}

	raws, err := llm.DecodeLabelResponse(response)
	if err != nil {
		return nil, fmt.Errorf("extract labels: %w", err)
	}
	if len(raws) > maxLabelsPerEpisode {
		raws = raws[:maxLabelsPerEpisode]
	}

	extracted := make([]models.ExtractedLabel, 0, len(raws))
	for _, raw := range raws {
		label, err := e.resolveCandidate(ctx, raw, availableLabels, workspaceID)
		if err != nil {
			return nil, err
		}
		extracted = append(extracted, label)
	}
	return extracted, nil
}

// resolveCandidate matches one raw candidate against existing labels.
// Exact case-insensitive name match wins; otherwise the candidate's
// embedding is searched against stored label embeddings. The existing
// label's canonical name is kept over the model's casing.
func (e *ExtractionEngine) resolveCandidate(ctx context.Context, raw llm.RawLabel, availableLabels []models.Label, workspaceID string) (models.ExtractedLabel, error) {
	for _, existing := range availableLabels {
		if strings.EqualFold(existing.Name, raw.Name) {
			return models.ExtractedLabel{
				Name:        existing.Name,
				Description: existing.Description,
				LabelID:     existing.ID,
			}, nil
		}
	}

	vec, err := e.embedder.Embed(ctx, raw.Name+": "+raw.Description)
	if err != nil {
		return models.ExtractedLabel{}, fmt.Errorf("embed candidate %q: %w", raw.Name, err)
	}
	if len(vec) == 0 {
		// Embedding failure signaled as an empty vector: skip the search
		// and treat the candidate as unmatched.
		slog.Warn("empty candidate embedding, skipping similarity match", "name", raw.Name)
		return models.ExtractedLabel{Name: raw.Name, Description: raw.Description, IsNew: true}, nil
	}

	matches, err := e.index.Search(ctx, vector.Query{
		Vector:    vec,
		Limit:     1,
		Threshold: e.similarityThreshold,
		Namespace: vector.NamespaceLabel,
		Filter:    map[string]string{"workspace_id": workspaceID},
	})
	if err != nil {
		return models.ExtractedLabel{}, fmt.Errorf("similarity search for %q: %w", raw.Name, err)
	}

	if len(matches) > 0 {
		if existing := findLabelByID(availableLabels, matches[0].ID); existing != nil {
			return models.ExtractedLabel{
				Name:        existing.Name,
				Description: existing.Description,
				LabelID:     existing.ID,
			}, nil
		}

		// Matched an embedding whose label was not offered to the model
		// (or was deleted out-of-band). Resolve through the store.
		label, err := e.store.GetLabel(ctx, matches[0].ID)
		if err != nil {
			return models.ExtractedLabel{}, fmt.Errorf("resolve matched label %s: %w", matches[0].ID, err)
		}
		if label != nil {
			return models.ExtractedLabel{
				Name:        label.Name,
				Description: label.Description,
				LabelID:     label.ID,
			}, nil
		}
		slog.Warn("stale label embedding match, treating as new", "label_id", matches[0].ID, "name", raw.Name)
	}

	return models.ExtractedLabel{Name: raw.Name, Description: raw.Description, IsNew: true}, nil
}

func buildExtractionPrompt(excerpt string, availableLabels []models.Label) string {
	var b strings.Builder
	b.WriteString("Episode:\n")
	b.WriteString(excerpt)
	b.WriteString("\n\n")

	if len(availableLabels) > 0 {
		b.WriteString("Existing labels:\n")
		for _, l := range availableLabels {
			b.WriteString("- ")
			b.WriteString(l.Name)
			if l.Description != "" {
				b.WriteString(": ")
				b.WriteString(l.Description)
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString("Existing labels: none\n")
	}

	b.WriteString("\nLabels:")
	return b.String()
}

func findLabelByID(labels []models.Label, id string) *models.Label {
	for i := range labels {
		if labels[i].ID == id {
			return &labels[i]
		}
	}
	return nil
}
