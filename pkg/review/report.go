package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/skillctl/skillctl/pkg/taskstate"
)

// RenderReport assembles the Markdown review report for a task.
func RenderReport(task *taskstate.Task) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Review report: %s\n\n", task.Goal)
	fmt.Fprintf(&b, "- **Task**: %s\n", task.ID)
	fmt.Fprintf(&b, "- **Coder**: %s\n", task.Coder)
	fmt.Fprintf(&b, "- **Reviewer**: %s\n", task.Reviewer)
	fmt.Fprintf(&b, "- **Status**: %s\n", task.Status)
	fmt.Fprintf(&b, "- **Rounds**: %d\n", len(task.Rounds))
	if !task.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Started**: %s\n", task.CreatedAt.Format(time.RFC3339))
	}
	b.WriteString("\n")

	for _, round := range task.Rounds {
		fmt.Fprintf(&b, "## Round %d — %s\n\n", round.Number, verdictLabel(round.Verdict))

		if round.Patch != "" {
			b.WriteString("### Proposed change\n\n")
			writeFence(&b, "diff", round.Patch)
		} else if round.CoderOutput != "" {
			b.WriteString("### Coder output\n\n")
			b.WriteString(round.CoderOutput)
			b.WriteString("\n\n")
		}

		if round.RevisionDelta != "" {
			b.WriteString("### Revision delta from previous round\n\n")
			writeFence(&b, "diff", round.RevisionDelta)
		}

		b.WriteString("### Reviewer\n\n")
		b.WriteString(round.ReviewerOutput)
		b.WriteString("\n\n")

		fmt.Fprintf(&b, "_Coder: %s · Reviewer: %s_\n\n",
			round.CoderElapsed.Round(time.Millisecond),
			round.ReviewElapsed.Round(time.Millisecond))
	}

	switch task.Status {
	case taskstate.StatusApproved:
		b.WriteString("The reviewer approved the change.\n")
	case taskstate.StatusExhausted:
		fmt.Fprintf(&b, "No approval after %d rounds; the last reviewer feedback stands.\n", len(task.Rounds))
	case taskstate.StatusFailed:
		b.WriteString("The loop aborted on a provider failure; see the last round above.\n")
	}

	return b.String()
}

func verdictLabel(verdict string) string {
	switch Verdict(verdict) {
	case VerdictApproved:
		return "approved"
	case VerdictChangesRequested:
		return "changes requested"
	case VerdictUnclear:
		return "verdict unclear"
	default:
		return verdict
	}
}

// writeFence writes a fenced code block, widening the fence when the body
// itself contains backtick fences.
func writeFence(b *strings.Builder, lang, body string) {
	fence := "```"
	for strings.Contains(body, fence) {
		fence += "`"
	}
	b.WriteString(fence)
	b.WriteString(lang)
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(fence)
	b.WriteString("\n\n")
}
