// Package review implements the multi-provider Coder/Reviewer feedback loop:
// a bounded sequence of rounds where one provider proposes a change and
// another reviews it, terminated by a heuristic approval scan over the
// reviewer's output.
package review

import "strings"

// Verdict is the outcome of scanning reviewer output.
type Verdict string

const (
	// VerdictApproved means an approval marker was found.
	VerdictApproved Verdict = "approved"
	// VerdictChangesRequested means a rejection marker was found.
	VerdictChangesRequested Verdict = "changes_requested"
	// VerdictUnclear means no marker was found within the scan window.
	// Unclear is treated as changes-requested by the loop, but recorded
	// distinctly so reports show when the reviewer ignored the protocol.
	VerdictUnclear Verdict = "unclear"
)

// DefaultApproveMarkers are the normalized prefixes that count as approval.
var DefaultApproveMarkers = []string{"LGTM", "APPROVED", "LOOKS GOOD TO ME", "SHIP IT"}

// DefaultRejectMarkers are the normalized prefixes that count as rejection.
var DefaultRejectMarkers = []string{"REQUEST CHANGES", "CHANGES REQUESTED", "NEEDS WORK", "NOT APPROVED", "REJECTED"}

// DefaultScanLines is how many non-empty lines of reviewer output are scanned.
const DefaultScanLines = 5

// DetectVerdict scans the first scanLines non-empty lines of reviewer output
// for approval or rejection markers. Lines are normalized before prefix
// matching: markdown bullets and emphasis are stripped, case is folded, and
// trailing punctuation is dropped. A rejection anywhere in the scan window
// beats an approval, so "LGTM for the happy path / REQUEST CHANGES overall"
// does not terminate the loop.
func DetectVerdict(text string, scanLines int, approve, reject []string) Verdict {
	if scanLines <= 0 {
		scanLines = DefaultScanLines
	}
	if len(approve) == 0 {
		approve = DefaultApproveMarkers
	}
	if len(reject) == 0 {
		reject = DefaultRejectMarkers
	}

	scanned := 0
	sawApproval := false

	for _, line := range strings.Split(text, "\n") {
		normalized := normalizeLine(line)
		if normalized == "" {
			continue
		}

		for _, marker := range reject {
			if strings.HasPrefix(normalized, marker) {
				return VerdictChangesRequested
			}
		}
		for _, marker := range approve {
			if strings.HasPrefix(normalized, marker) {
				sawApproval = true
			}
		}

		scanned++
		if scanned >= scanLines {
			break
		}
	}

	if sawApproval {
		return VerdictApproved
	}
	return VerdictUnclear
}

// normalizeLine prepares a reviewer output line for marker matching.
func normalizeLine(line string) string {
	s := strings.TrimSpace(line)

	// Strip markdown bullets and blockquote markers
	for {
		trimmed := strings.TrimLeft(s, "-*>+ \t")
		if trimmed == s {
			break
		}
		s = trimmed
	}

	// Strip emphasis, inline code and heading markers
	s = strings.Map(func(r rune) rune {
		switch r {
		case '*', '_', '`', '#':
			return -1
		}
		return r
	}, s)

	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".,!:;")

	return strings.TrimSpace(s)
}
