// Package policy evaluates Rego retrieval guardrails: whether a tenant's
// query may run, which recordings it may touch, and whether visual search
// is allowed.
package policy

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

var (
	ErrQueryDenied = goerr.New("query denied by retrieval policy")
)

// QueryInput is the retrieval request presented to the policy
type QueryInput struct {
	OrgID         string
	RecordingIDs  []string
	IncludeFrames bool
}

// Decision is the policy verdict. RecordingIDs is the (possibly narrowed)
// recording scope the query may search.
type Decision struct {
	Allow        bool
	AllowVisual  bool
	RecordingIDs []string
	Reason       string
}

// Engine evaluates retrieval policies
type Engine struct {
	query *rego.PreparedEvalQuery
}

// New loads all Rego files from policyDir and prepares the retrieval query.
// A directory without policy files yields an engine that allows everything.
func New(ctx context.Context, policyDir string) (*Engine, error) {
	query, err := loadPolicies(ctx, policyDir)
	if err != nil {
		return nil, err
	}

	return &Engine{query: query}, nil
}

// Eval returns the policy decision for one retrieval request
func (e *Engine) Eval(ctx context.Context, in *QueryInput) (*Decision, error) {
	if e.query == nil {
		// No policy configured, allow with the requested scope
		return &Decision{
			Allow:        true,
			AllowVisual:  in.IncludeFrames,
			RecordingIDs: in.RecordingIDs,
		}, nil
	}

	recordingIDs := make([]any, 0, len(in.RecordingIDs))
	for _, id := range in.RecordingIDs {
		recordingIDs = append(recordingIDs, id)
	}

	input := map[string]any{
		"org_id":         in.OrgID,
		"recording_ids":  recordingIDs,
		"include_frames": in.IncludeFrames,
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate retrieval policy")
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, goerr.New("retrieval policy returned no result")
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("invalid retrieval policy result")
	}

	decision := &Decision{
		Allow:        getBool(data, "allow", false),
		AllowVisual:  getBool(data, "allow_visual", in.IncludeFrames),
		RecordingIDs: in.RecordingIDs,
		Reason:       getString(data, "reason"),
	}

	if ids, ok := data["recording_ids"].([]any); ok {
		decision.RecordingIDs = make([]string, 0, len(ids))
		for _, id := range ids {
			if s, ok := id.(string); ok {
				decision.RecordingIDs = append(decision.RecordingIDs, s)
			}
		}
	}

	return decision, nil
}

func getBool(data map[string]any, key string, fallback bool) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return fallback
}

func getString(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
