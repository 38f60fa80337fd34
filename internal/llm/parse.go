package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/raphaelgruber/recollect/internal/models"
)

// maxExcerptLen bounds the raw-response excerpt carried in parse errors.
const maxExcerptLen = 200

// ParseError is a typed boundary error for malformed model output. It
// carries a truncated excerpt of the raw response for diagnosis.
type ParseError struct {
	What    string
	Excerpt string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v (response excerpt: %q)", e.What, e.Err, e.Excerpt)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(what, raw string, err error) *ParseError {
	excerpt := raw
	if len(excerpt) > maxExcerptLen {
		excerpt = excerpt[:maxExcerptLen]
	}
	return &ParseError{What: what, Excerpt: excerpt, Err: err}
}

// StripCodeFence removes a surrounding markdown code fence, if present.
// Models wrap JSON in ```json ... ``` blocks despite instructions not to.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// RawLabel is one label candidate as emitted by the extraction prompt.
type RawLabel struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type labelResponse struct {
	Labels []RawLabel `json:"labels"`
}

// DecodeLabelResponse parses the extraction prompt's {"labels": [...]}
// shape, rejecting anything else with a ParseError.
func DecodeLabelResponse(raw string) ([]RawLabel, error) {
	cleaned := StripCodeFence(raw)

	var resp labelResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, newParseError("label response", raw, err)
	}

	labels := make([]RawLabel, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		l.Name = strings.TrimSpace(l.Name)
		l.Description = strings.TrimSpace(l.Description)
		if l.Name == "" {
			continue
		}
		labels = append(labels, l)
	}
	return labels, nil
}

// DecodeFilterDecision parses one per-cluster relevance verdict.
func DecodeFilterDecision(raw string) (models.FilterDecision, error) {
	cleaned := StripCodeFence(raw)

	var d models.FilterDecision
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return models.FilterDecision{}, newParseError("filter decision", raw, err)
	}
	return d, nil
}

// rawProposal tolerates the loose shapes models emit: topic ids as strings
// or numbers, confidence on a 0-1 or 0-100 scale.
type rawProposal struct {
	Name       string  `json:"name"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Topics     []any   `json:"topics"`
}

// DecodeSpaceProposals parses the discovery prompt's JSON array,
// normalizing topic ids to strings and confidence to the 0-100 scale.
// Proposals missing a name or intent, below minConfidence (0-100), or
// with no topics are discarded.
func DecodeSpaceProposals(raw string, minConfidence float64) ([]models.SpaceProposal, error) {
	cleaned := StripCodeFence(raw)

	var raws []rawProposal
	if err := json.Unmarshal([]byte(cleaned), &raws); err != nil {
		return nil, newParseError("space proposals", raw, err)
	}

	proposals := make([]models.SpaceProposal, 0, len(raws))
	for _, rp := range raws {
		name := strings.TrimSpace(rp.Name)
		intent := strings.TrimSpace(rp.Intent)
		confidence := normalizeConfidence(rp.Confidence)
		topics := normalizeTopicIDs(rp.Topics)

		if name == "" || intent == "" || confidence < minConfidence || len(topics) == 0 {
			continue
		}

		proposals = append(proposals, models.SpaceProposal{
			Name:       name,
			Intent:     intent,
			Confidence: confidence,
			Reasoning:  strings.TrimSpace(rp.Reasoning),
			TopicIDs:   topics,
		})
	}
	return proposals, nil
}

// normalizeConfidence maps a 0-1 score onto the 0-100 scale the job
// wrapper's auto-create threshold uses. Values above 1 are assumed to be
// 0-100 already.
func normalizeConfidence(c float64) float64 {
	if c <= 1.0 {
		return c * 100
	}
	return c
}

func normalizeTopicIDs(topics []any) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		switch v := t.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case float64:
			out = append(out, strconv.FormatInt(int64(v), 10))
		}
	}
	return out
}
