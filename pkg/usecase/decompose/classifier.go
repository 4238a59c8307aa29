package decompose

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
	"google.golang.org/genai"
)

//go:embed prompt/classify.md
var classifyPromptRaw string

var classifyPromptTmpl = template.Must(template.New("classify").Parse(classifyPromptRaw))

// Classifier judges the intent and complexity of a raw user query
type Classifier interface {
	Classify(ctx context.Context, query string) (*model.QueryClassification, error)
}

// llmClassifier implements Classifier on a generative model with a
// structured-output schema.
type llmClassifier struct {
	genAI adapter.GenAI
}

// NewClassifier creates an LLM-backed intent classifier
func NewClassifier(genAI adapter.GenAI) Classifier {
	return &llmClassifier{genAI: genAI}
}

var classifySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent": {
			Type:        genai.TypeString,
			Description: "Query intent category",
			Enum: []string{
				string(model.IntentSingleFact),
				string(model.IntentComparison),
				string(model.IntentMultiPart),
				string(model.IntentHowTo),
				string(model.IntentExploration),
			},
		},
		"confidence": {
			Type:        genai.TypeNumber,
			Description: "Classification confidence, 0.0-1.0",
		},
		"complexity": {
			Type:        genai.TypeInteger,
			Description: "Answering complexity, 1-5",
		},
		"reasoning": {
			Type:        genai.TypeString,
			Description: "Short explanation of the judgement",
		},
	},
	Required: []string{"intent", "confidence", "complexity", "reasoning"},
}

func (x *llmClassifier) Classify(ctx context.Context, query string) (*model.QueryClassification, error) {
	var buf bytes.Buffer
	if err := classifyPromptTmpl.Execute(&buf, map[string]any{
		"Query": query,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute classify prompt template")
	}

	raw, err := x.genAI.GenerateJSON(ctx, buf.String(), classifySchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to classify query")
	}

	var cls model.QueryClassification
	if err := json.Unmarshal([]byte(extractJSON(raw)), &cls); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal classification", goerr.V("json", raw))
	}

	if cls.Intent.Validate() != nil {
		cls.Intent = model.IntentSingleFact
	}
	if cls.Complexity < 1 {
		cls.Complexity = 1
	}
	if cls.Complexity > 5 {
		cls.Complexity = 5
	}

	return &cls, nil
}
