package review

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillctl/skillctl/pkg/fragments"
	"github.com/skillctl/skillctl/pkg/provider"
	"github.com/skillctl/skillctl/pkg/taskstate"
)

// scriptedProvider returns canned outputs in sequence and records the
// prompts it was invoked with.
type scriptedProvider struct {
	name    string
	outputs []string
	errs    []error
	prompts []string
}

func (p *scriptedProvider) Name() string     { return p.name }
func (p *scriptedProvider) Available() error { return nil }

func (p *scriptedProvider) Invoke(_ context.Context, req provider.Request) (*provider.Result, error) {
	call := len(p.prompts)
	p.prompts = append(p.prompts, req.Prompt)

	if call < len(p.errs) && p.errs[call] != nil {
		return nil, p.errs[call]
	}
	if call >= len(p.outputs) {
		return nil, errors.Errorf("%s invoked more than %d times", p.name, len(p.outputs))
	}
	return &provider.Result{Output: p.outputs[call], Duration: time.Millisecond}, nil
}

func newTestEngine(t *testing.T, coder, reviewer *scriptedProvider, opts Options) *Engine {
	t.Helper()
	fp, err := fragments.NewProcessor(fragments.WithFragmentDirs(t.TempDir()))
	require.NoError(t, err)

	if opts.Store == nil {
		store, err := taskstate.NewStoreWithDir(t.TempDir())
		require.NoError(t, err)
		opts.Store = store
	}

	return NewEngine(coder, reviewer, fp, opts)
}

const coderDiff1 = "```diff\n--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n-i <= n\n+i < n\n```"
const coderDiff2 = "```diff\n--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n-i <= n\n+i < len(items)\n```"

func TestRunApprovedFirstRound(t *testing.T) {
	coder := &scriptedProvider{name: "claude", outputs: []string{coderDiff1}}
	reviewer := &scriptedProvider{name: "gemini", outputs: []string{"LGTM\n- clean fix"}}

	engine := newTestEngine(t, coder, reviewer, Options{})
	outcome, err := engine.Run(context.Background(), Request{Goal: "fix the off-by-one"})
	require.NoError(t, err)

	task := outcome.Task
	assert.Equal(t, taskstate.StatusApproved, task.Status)
	require.Len(t, task.Rounds, 1)
	assert.Equal(t, string(VerdictApproved), task.Rounds[0].Verdict)
	assert.Contains(t, task.Rounds[0].Patch, "+i < n")

	// prompts came from the builtin recipes with the goal substituted
	require.Len(t, coder.prompts, 1)
	assert.Contains(t, coder.prompts[0], "fix the off-by-one")
	require.Len(t, reviewer.prompts, 1)
	assert.Contains(t, reviewer.prompts[0], coderDiff1)
}

func TestRunSecondRoundAfterChangesRequested(t *testing.T) {
	coder := &scriptedProvider{name: "claude", outputs: []string{coderDiff1, coderDiff2}}
	reviewer := &scriptedProvider{name: "codex", outputs: []string{
		"REQUEST CHANGES\n- n is stale, use len(items)",
		"LGTM",
	}}

	engine := newTestEngine(t, coder, reviewer, Options{})
	outcome, err := engine.Run(context.Background(), Request{Goal: "fix the off-by-one"})
	require.NoError(t, err)

	task := outcome.Task
	assert.Equal(t, taskstate.StatusApproved, task.Status)
	require.Len(t, task.Rounds, 2)
	assert.Equal(t, string(VerdictChangesRequested), task.Rounds[0].Verdict)
	assert.Equal(t, string(VerdictApproved), task.Rounds[1].Verdict)

	// the second coder prompt carries the first reviewer's feedback
	assert.Contains(t, coder.prompts[1], "n is stale, use len(items)")

	// revision delta between the two patches
	assert.Contains(t, task.Rounds[1].RevisionDelta, "+i < len(items)")
	assert.Empty(t, task.Rounds[0].RevisionDelta)
}

func TestRunExhaustsRounds(t *testing.T) {
	coder := &scriptedProvider{name: "claude", outputs: []string{coderDiff1, coderDiff1, coderDiff1}}
	reviewer := &scriptedProvider{name: "gemini", outputs: []string{
		"REQUEST CHANGES\n- no",
		"REQUEST CHANGES\n- still no",
	}}

	engine := newTestEngine(t, coder, reviewer, Options{MaxRounds: 2})
	outcome, err := engine.Run(context.Background(), Request{Goal: "g"})
	require.NoError(t, err)

	assert.Equal(t, taskstate.StatusExhausted, outcome.Task.Status)
	assert.Len(t, outcome.Task.Rounds, 2)
	// at most MaxRounds reviewer invocations
	assert.Len(t, reviewer.prompts, 2)
}

func TestRunUnclearVerdictContinues(t *testing.T) {
	coder := &scriptedProvider{name: "claude", outputs: []string{coderDiff1, coderDiff1}}
	reviewer := &scriptedProvider{name: "gemini", outputs: []string{
		"I have some thoughts about this change.",
		"LGTM",
	}}

	engine := newTestEngine(t, coder, reviewer, Options{})
	outcome, err := engine.Run(context.Background(), Request{Goal: "g"})
	require.NoError(t, err)

	require.Len(t, outcome.Task.Rounds, 2)
	assert.Equal(t, string(VerdictUnclear), outcome.Task.Rounds[0].Verdict)
	assert.Equal(t, taskstate.StatusApproved, outcome.Task.Status)
}

func TestRunCoderFailureAbortsLoop(t *testing.T) {
	coder := &scriptedProvider{name: "claude", errs: []error{errors.New("boom")}}
	reviewer := &scriptedProvider{name: "gemini"}

	store, err := taskstate.NewStoreWithDir(t.TempDir())
	require.NoError(t, err)

	engine := newTestEngine(t, coder, reviewer, Options{Store: store})
	outcome, err := engine.Run(context.Background(), Request{Goal: "g"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coder claude failed in round 1")

	require.NotNil(t, outcome)
	assert.Equal(t, taskstate.StatusFailed, outcome.Task.Status)
	assert.Empty(t, reviewer.prompts)

	// failure state was persisted
	loaded, err := store.Get(outcome.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, taskstate.StatusFailed, loaded.Status)
}

func TestRunReviewerFailurePreservesRoundState(t *testing.T) {
	coder := &scriptedProvider{name: "claude", outputs: []string{coderDiff1}}
	reviewer := &scriptedProvider{name: "gemini", errs: []error{errors.New("rate limited")}}

	engine := newTestEngine(t, coder, reviewer, Options{})
	outcome, err := engine.Run(context.Background(), Request{Goal: "g"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reviewer gemini failed")
	assert.Equal(t, taskstate.StatusFailed, outcome.Task.Status)
}

func TestRunEmptyGoal(t *testing.T) {
	engine := newTestEngine(t, &scriptedProvider{name: "a"}, &scriptedProvider{name: "b"}, Options{})
	_, err := engine.Run(context.Background(), Request{})
	require.Error(t, err)
}

func TestRunWithoutStore(t *testing.T) {
	coder := &scriptedProvider{name: "claude", outputs: []string{coderDiff1}}
	reviewer := &scriptedProvider{name: "gemini", outputs: []string{"LGTM"}}

	fp, err := fragments.NewProcessor(fragments.WithFragmentDirs(t.TempDir()))
	require.NoError(t, err)

	engine := NewEngine(coder, reviewer, fp, Options{})
	outcome, err := engine.Run(context.Background(), Request{Goal: "g"})
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.Task.ID)
	assert.Equal(t, taskstate.StatusApproved, outcome.Task.Status)
}
