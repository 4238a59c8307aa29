// Package mcp exposes the retrieval core as MCP tools so external assistants
// can search recorded knowledge over stdio.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/usecase/decompose"
	"github.com/m-mizutani/kioku/pkg/usecase/search"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server serves the multimodal_search and decompose_query tools
type Server struct {
	decomposer    *decompose.Decomposer
	engine        *search.Engine
	disableVisual bool
}

// ServerOption is a functional option for Server
type ServerOption func(*Server)

// WithDisableVisual propagates the process-wide visual search kill switch
func WithDisableVisual(disabled bool) ServerOption {
	return func(s *Server) {
		s.disableVisual = disabled
	}
}

// NewServer creates an MCP server over the retrieval core
func NewServer(decomposer *decompose.Decomposer, engine *search.Engine, opts ...ServerOption) *Server {
	s := &Server{
		decomposer: decomposer,
		engine:     engine,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type searchParams struct {
	Query         string   `json:"query"`
	OrgID         string   `json:"org_id"`
	RecordingIDs  []string `json:"recording_ids,omitempty"`
	AudioWeight   *float64 `json:"audio_weight,omitempty"`
	VisualWeight  *float64 `json:"visual_weight,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	IncludeFrames *bool    `json:"include_frames,omitempty"`
}

type decomposeParams struct {
	Query string `json:"query"`
}

var searchParamsSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"query": {
			Type:        "string",
			Description: "Natural language question to search for",
		},
		"org_id": {
			Type:        "string",
			Description: "Organization the search is scoped to",
		},
		"recording_ids": {
			Type:        "array",
			Description: "Optional subset of recordings to search",
			Items:       &jsonschema.Schema{Type: "string"},
		},
		"audio_weight": {
			Type:        "number",
			Description: "Transcript score multiplier (default 0.7)",
		},
		"visual_weight": {
			Type:        "number",
			Description: "Visual frame score multiplier (default 0.3)",
		},
		"limit": {
			Type:        "integer",
			Description: "Maximum number of combined results",
		},
		"include_frames": {
			Type:        "boolean",
			Description: "Whether to search visual frames (default true)",
		},
	},
	Required: []string{"query", "org_id"},
}

var decomposeParamsSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"query": {
			Type:        "string",
			Description: "Natural language question to decompose",
		},
	},
	Required: []string{"query"},
}

// Run serves MCP over stdio until the context is canceled
func (s *Server) Run(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "kioku",
		Version: "0.1.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "multimodal_search",
		Description: "Search recorded meetings across transcripts and visual frames, returning one ranked result list",
		InputSchema: searchParamsSchema,
	}, s.handleSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "decompose_query",
		Description: "Break a complex question into executable sub-queries with an execution order",
		InputSchema: decomposeParamsSchema,
	}, s.handleDecompose)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "MCP server terminated")
	}

	return nil
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, params *searchParams) (*mcp.CallToolResult, any, error) {
	opts := search.NewOptions(params.OrgID)
	opts.RecordingIDs = params.RecordingIDs
	opts.Limit = params.Limit
	opts.DisableVisual = s.disableVisual
	if params.AudioWeight != nil {
		opts.AudioWeight = *params.AudioWeight
	}
	if params.VisualWeight != nil {
		opts.VisualWeight = *params.VisualWeight
	}
	if params.IncludeFrames != nil {
		opts.IncludeFrames = *params.IncludeFrames
	}

	result, err := s.engine.Search(ctx, params.Query, opts)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "multimodal search failed")
	}

	return textResult(result)
}

func (s *Server) handleDecompose(ctx context.Context, req *mcp.CallToolRequest, params *decomposeParams) (*mcp.CallToolResult, any, error) {
	decomposition, err := s.decomposer.Decompose(ctx, params.Query)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "query decomposition failed")
	}

	out := map[string]any{
		"decomposition": decomposition,
		"batches":       decompose.PlanExecutionOrder(decomposition.SubQueries),
	}

	return textResult(out)
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(raw)},
		},
	}, v, nil
}
