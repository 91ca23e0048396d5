package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skillctl/skillctl/pkg/taskstate"
)

func TestRenderReport(t *testing.T) {
	task := &taskstate.Task{
		ID:        "abc-123",
		Goal:      "fix the parser",
		Coder:     "claude",
		Reviewer:  "gemini",
		Status:    taskstate.StatusApproved,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Rounds: []taskstate.Round{
			{
				Number:         1,
				Patch:          "-old\n+new",
				ReviewerOutput: "REQUEST CHANGES\n- not like that",
				Verdict:        string(VerdictChangesRequested),
			},
			{
				Number:         2,
				Patch:          "-old\n+newer",
				RevisionDelta:  "--- round-1\n+++ round-2\n@@ -1,2 +1,2 @@\n-+new\n++newer",
				ReviewerOutput: "LGTM",
				Verdict:        string(VerdictApproved),
			},
		},
	}

	report := RenderReport(task)

	assert.Contains(t, report, "# Review report: fix the parser")
	assert.Contains(t, report, "- **Coder**: claude")
	assert.Contains(t, report, "- **Status**: approved")
	assert.Contains(t, report, "## Round 1 — changes requested")
	assert.Contains(t, report, "## Round 2 — approved")
	assert.Contains(t, report, "### Revision delta from previous round")
	assert.Contains(t, report, "The reviewer approved the change.")
}

func TestRenderReportFailed(t *testing.T) {
	task := &taskstate.Task{
		ID:       "x",
		Goal:     "g",
		Status:   taskstate.StatusFailed,
		Rounds:   []taskstate.Round{{Number: 1, CoderOutput: "partial output", Verdict: string(VerdictUnclear)}},
		Coder:    "claude",
		Reviewer: "codex",
	}

	report := RenderReport(task)
	assert.Contains(t, report, "aborted on a provider failure")
	assert.Contains(t, report, "### Coder output")
	assert.Contains(t, report, "verdict unclear")
}

func TestWriteFenceWidensForNestedFences(t *testing.T) {
	task := &taskstate.Task{
		ID:     "x",
		Goal:   "g",
		Status: taskstate.StatusExhausted,
		Rounds: []taskstate.Round{
			{Number: 1, Patch: "```go\ncode\n```", ReviewerOutput: "REQUEST CHANGES", Verdict: string(VerdictChangesRequested)},
		},
	}

	report := RenderReport(task)
	assert.Contains(t, report, "````diff")
}
