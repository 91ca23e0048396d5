package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectVerdict(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected Verdict
	}{
		{
			name:     "plain lgtm",
			text:     "LGTM\n\n- nit: naming could be tighter",
			expected: VerdictApproved,
		},
		{
			name:     "lowercase lgtm with punctuation",
			text:     "lgtm!\nnice work",
			expected: VerdictApproved,
		},
		{
			name:     "bold markdown approval",
			text:     "**Approved.**\nShip when ready.",
			expected: VerdictApproved,
		},
		{
			name:     "bulleted ship it",
			text:     "- Ship it\n- tests pass",
			expected: VerdictApproved,
		},
		{
			name:     "looks good to me heading",
			text:     "## Looks good to me\n\ndetails follow",
			expected: VerdictApproved,
		},
		{
			name:     "request changes",
			text:     "REQUEST CHANGES\n- the loop bound is off by one",
			expected: VerdictChangesRequested,
		},
		{
			name:     "rejection beats approval in scan window",
			text:     "LGTM for the happy path\nREQUEST CHANGES overall",
			expected: VerdictChangesRequested,
		},
		{
			name:     "needs work",
			text:     "Needs work:\nthe error path leaks the lock file",
			expected: VerdictChangesRequested,
		},
		{
			name:     "no marker",
			text:     "Here are my thoughts on the change.\nIt could be better.",
			expected: VerdictUnclear,
		},
		{
			name:     "approval outside scan window ignored",
			text:     "line one\nline two\nline three\nline four\nline five\nLGTM",
			expected: VerdictUnclear,
		},
		{
			name:     "empty lines do not consume the window",
			text:     "\n\n\n\nLGTM",
			expected: VerdictApproved,
		},
		{
			name:     "empty output",
			text:     "",
			expected: VerdictUnclear,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectVerdict(tt.text, DefaultScanLines, nil, nil))
		})
	}
}

func TestDetectVerdictCustomMarkers(t *testing.T) {
	verdict := DetectVerdict("SHIPPABLE\n", 5, []string{"SHIPPABLE"}, []string{"BLOCKED"})
	assert.Equal(t, VerdictApproved, verdict)

	verdict = DetectVerdict("blocked: missing tests", 5, []string{"SHIPPABLE"}, []string{"BLOCKED"})
	assert.Equal(t, VerdictChangesRequested, verdict)

	// custom markers replace defaults entirely
	verdict = DetectVerdict("LGTM", 5, []string{"SHIPPABLE"}, []string{"BLOCKED"})
	assert.Equal(t, VerdictUnclear, verdict)
}

func TestNormalizeLine(t *testing.T) {
	assert.Equal(t, "LGTM", normalizeLine("  - **lgtm!** "))
	assert.Equal(t, "REQUEST CHANGES", normalizeLine("> _Request changes:_"))
	assert.Equal(t, "", normalizeLine("   "))
}
