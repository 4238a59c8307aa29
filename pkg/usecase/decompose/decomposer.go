// Package decompose turns a natural-language question into an ordered,
// executable set of sub-queries.
package decompose

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/decompose.md
var decomposePromptRaw string

var decomposePromptTmpl = template.Must(template.New("decompose").Parse(decomposePromptRaw))

// Generator proposes a structured decomposition of a complex query. Its
// output is untrusted text that may be wrapped in a fenced code block.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// Config carries environment-driven limits as explicit values so behavior
// stays reproducible in isolation.
type Config struct {
	// MaxSubQueries caps the decomposition size. 0 means unlimited.
	MaxSubQueries int
}

// Decomposer breaks user queries into sub-queries via an intent classifier
// gate and a generative model.
type Decomposer struct {
	classifier Classifier
	generator  Generator
	cfg        Config
}

// New creates a Decomposer
func New(classifier Classifier, generator Generator, cfg Config) *Decomposer {
	return &Decomposer{
		classifier: classifier,
		generator:  generator,
		cfg:        cfg,
	}
}

var decomposeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"reasoning": {
			Type:        genai.TypeString,
			Description: "Why the question splits this way",
		},
		"subQueries": {
			Type:        genai.TypeArray,
			Description: "Atomic sub-queries",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id": {
						Type:        genai.TypeString,
						Description: "Sub-query ID (e.g., q1)",
					},
					"text": {
						Type:        genai.TypeString,
						Description: "One atomic question",
					},
					"intent": {
						Type:        genai.TypeString,
						Description: "Sub-query intent category",
					},
					"dependency": {
						Type:        genai.TypeString,
						Description: "ID of the sub-query this one depends on",
						Nullable:    ptr(true),
					},
					"priority": {
						Type:        genai.TypeInteger,
						Description: "Importance 1-5, 5 is highest",
					},
				},
				Required: []string{"text"},
			},
		},
	},
	Required: []string{"reasoning", "subQueries"},
}

// Decompose classifies the query and, for non-trivial ones, asks the
// generative model for a sub-query breakdown. Malformed model output degrades
// to a single-query fallback; API failures propagate to the caller.
func (x *Decomposer) Decompose(ctx context.Context, query string) (*model.Decomposition, error) {
	if strings.TrimSpace(query) == "" {
		return nil, model.ErrEmptyQuery
	}

	cls, err := x.classifier.Classify(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to classify query intent")
	}

	// Trivial queries skip the generative model entirely
	if cls.Complexity <= 1 || cls.Intent == model.IntentSingleFact {
		return singleQueryPlan(query, cls,
			"Query is simple enough to answer directly; no decomposition needed"), nil
	}

	var buf bytes.Buffer
	if err := decomposePromptTmpl.Execute(&buf, map[string]any{
		"Query":      query,
		"Intent":     cls.Intent,
		"Complexity": cls.Complexity,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute decompose prompt template")
	}

	raw, err := x.generator.GenerateJSON(ctx, buf.String(), decomposeSchema)
	if err != nil {
		// API unavailability is a hard failure, unlike malformed output below
		return nil, goerr.Wrap(err, "failed to generate decomposition")
	}

	var parsed struct {
		Reasoning  string `json:"reasoning"`
		SubQueries []struct {
			ID         string `json:"id"`
			Text       string `json:"text"`
			Intent     string `json:"intent"`
			Dependency string `json:"dependency"`
			Priority   int    `json:"priority"`
		} `json:"subQueries"`
	}

	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		logging.From(ctx).Warn("malformed decomposition response, falling back to single query",
			"error", err, "raw", raw)
		return singleQueryPlan(query, cls,
			"Fallback: decomposition response was not parseable; treating as a single query"), nil
	}

	subQueries := make([]*model.SubQuery, 0, len(parsed.SubQueries))
	for i, item := range parsed.SubQueries {
		if strings.TrimSpace(item.Text) == "" {
			continue
		}

		sq := &model.SubQuery{
			ID:         item.ID,
			Text:       item.Text,
			Intent:     model.Intent(item.Intent),
			Dependency: item.Dependency,
			Priority:   item.Priority,
		}
		if sq.ID == "" {
			sq.ID = fmt.Sprintf("q%d", i+1)
		}
		if sq.Intent.Validate() != nil {
			sq.Intent = model.IntentSingleFact
		}
		if sq.Priority < model.MinPriority || sq.Priority > model.MaxPriority {
			sq.Priority = model.DefaultPriority
		}

		subQueries = append(subQueries, sq)
	}

	if len(subQueries) == 0 {
		logging.From(ctx).Warn("decomposition produced no usable sub-queries, falling back",
			"raw", raw)
		return singleQueryPlan(query, cls,
			"Fallback: decomposition contained no usable sub-queries; treating as a single query"), nil
	}

	if x.cfg.MaxSubQueries > 0 && len(subQueries) > x.cfg.MaxSubQueries {
		subQueries = subQueries[:x.cfg.MaxSubQueries]
	}

	return &model.Decomposition{
		SubQueries: subQueries,
		Intent:     cls.Intent,
		Complexity: cls.Complexity,
		Reasoning:  parsed.Reasoning,
	}, nil
}

// singleQueryPlan wraps the original query verbatim as the only sub-query
func singleQueryPlan(query string, cls *model.QueryClassification, reasoning string) *model.Decomposition {
	return &model.Decomposition{
		SubQueries: []*model.SubQuery{
			{
				ID:       "q1",
				Text:     query,
				Intent:   cls.Intent,
				Priority: model.DefaultPriority,
			},
		},
		Intent:     cls.Intent,
		Complexity: cls.Complexity,
		Reasoning:  reasoning,
	}
}

// extractJSON strips fenced code blocks from a model response and trims to
// the outermost JSON value, so fenced output parses identically to bare JSON.
func extractJSON(s string) string {
	s = stripCodeFences(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	s = s[start:]

	if end := matchJSONEnd(s); end >= 0 {
		s = s[:end+1]
	}
	return s
}

func stripCodeFences(s string) string {
	for {
		open := strings.Index(s, "```")
		if open < 0 {
			return s
		}
		end := strings.Index(s[open+3:], "```")
		if end < 0 {
			return s
		}
		end += open + 3

		body := s[open+3 : end]
		// Drop the language tag line (e.g. "json")
		if nl := strings.Index(body, "\n"); nl >= 0 {
			body = body[nl+1:]
		}
		s = s[:open] + body + s[end+3:]
	}
}

// matchJSONEnd returns the index of the closing brace/bracket of the JSON
// value starting at s[0], or -1 if it never closes.
func matchJSONEnd(s string) int {
	depth := 0
	inString := false
	escaped := false

	for i, c := range s {
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

func ptr[T any](v T) *T {
	return &v
}
