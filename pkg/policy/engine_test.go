package policy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/policy"
)

const retrievalPolicy = `package retrieval

default allow = false
default allow_visual = true

allow if {
	input.org_id != ""
}

allow_visual = false if {
	input.org_id == "org-no-visual"
}

recording_ids = ids if {
	input.org_id == "org-restricted"
	ids := ["rec-allowed"]
}

reason = "unknown organization" if {
	input.org_id == ""
}
`

func newEngine(t *testing.T) *policy.Engine {
	t.Helper()

	tmpDir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(tmpDir, "retrieval.rego"), []byte(retrievalPolicy), 0644))

	engine, err := policy.New(context.Background(), tmpDir)
	gt.NoError(t, err)
	return engine
}

func TestPolicyAllows(t *testing.T) {
	engine := newEngine(t)

	decision, err := engine.Eval(context.Background(), &policy.QueryInput{
		OrgID:         "org-1",
		RecordingIDs:  []string{"rec-1"},
		IncludeFrames: true,
	})
	gt.NoError(t, err)

	gt.True(t, decision.Allow)
	gt.True(t, decision.AllowVisual)
	gt.Equal(t, decision.RecordingIDs, []string{"rec-1"})
}

func TestPolicyDenies(t *testing.T) {
	engine := newEngine(t)

	decision, err := engine.Eval(context.Background(), &policy.QueryInput{
		OrgID: "",
	})
	gt.NoError(t, err)

	gt.True(t, !decision.Allow)
	gt.Equal(t, decision.Reason, "unknown organization")
}

func TestPolicyDisablesVisual(t *testing.T) {
	engine := newEngine(t)

	decision, err := engine.Eval(context.Background(), &policy.QueryInput{
		OrgID:         "org-no-visual",
		IncludeFrames: true,
	})
	gt.NoError(t, err)

	gt.True(t, decision.Allow)
	gt.True(t, !decision.AllowVisual)
}

func TestPolicyNarrowsScope(t *testing.T) {
	engine := newEngine(t)

	decision, err := engine.Eval(context.Background(), &policy.QueryInput{
		OrgID:        "org-restricted",
		RecordingIDs: []string{"rec-1", "rec-2"},
	})
	gt.NoError(t, err)

	gt.True(t, decision.Allow)
	gt.Equal(t, decision.RecordingIDs, []string{"rec-allowed"})
}

func TestPolicyEmptyDirAllowsAll(t *testing.T) {
	engine, err := policy.New(context.Background(), t.TempDir())
	gt.NoError(t, err)

	decision, err := engine.Eval(context.Background(), &policy.QueryInput{
		OrgID:         "org-1",
		IncludeFrames: true,
	})
	gt.NoError(t, err)

	gt.True(t, decision.Allow)
	gt.True(t, decision.AllowVisual)
}
