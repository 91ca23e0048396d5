package review

import "strings"

// ExtractPatch pulls the change out of coder output. Preference order:
// fenced ```diff/```patch blocks, then contiguous runs of unified-diff
// looking lines, then the last fenced code block of any language. Reviewer
// models routinely emit slightly malformed Markdown mid-stream, so this is a
// line scanner rather than a Markdown parser.
func ExtractPatch(text string) string {
	if block := extractFencedBlocks(text, "diff", "patch"); block != "" {
		return block
	}

	if block := extractBareDiff(text); block != "" {
		return block
	}

	if blocks := allFencedBlocks(text); len(blocks) > 0 {
		return blocks[len(blocks)-1]
	}

	return ""
}

// extractFencedBlocks concatenates all fenced blocks whose info string
// matches one of the given languages.
func extractFencedBlocks(text string, langs ...string) string {
	var blocks []string
	var current []string
	inBlock := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if !inBlock && strings.HasPrefix(trimmed, "```") {
			info := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "```")))
			for _, lang := range langs {
				if info == lang {
					inBlock = true
					current = current[:0]
					break
				}
			}
			continue
		}

		if inBlock {
			if strings.HasPrefix(trimmed, "```") {
				inBlock = false
				if len(current) > 0 {
					blocks = append(blocks, strings.Join(current, "\n"))
				}
				continue
			}
			current = append(current, line)
		}
	}

	return strings.TrimSpace(strings.Join(blocks, "\n"))
}

// allFencedBlocks returns the contents of every fenced code block.
func allFencedBlocks(text string) []string {
	var blocks []string
	var current []string
	inBlock := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if inBlock {
				inBlock = false
				if len(current) > 0 {
					blocks = append(blocks, strings.TrimSpace(strings.Join(current, "\n")))
				}
			} else {
				inBlock = true
				current = current[:0]
			}
			continue
		}

		if inBlock {
			current = append(current, line)
		}
	}

	return blocks
}

// extractBareDiff finds a contiguous run of lines that look like a unified
// diff outside any code fence.
func extractBareDiff(text string) string {
	lines := strings.Split(text, "\n")

	start := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "diff --git ") {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}

	end := start
	for i := start; i < len(lines); i++ {
		if isDiffLine(lines[i]) {
			end = i
			continue
		}
		break
	}

	// A lone "--- " header is a horizontal rule false positive
	if end == start {
		return ""
	}

	return strings.TrimSpace(strings.Join(lines[start:end+1], "\n"))
}

func isDiffLine(line string) bool {
	if line == "" {
		return false
	}
	prefixes := []string{"--- ", "+++ ", "@@ ", "+", "-", " ", "diff --git ", "index ", "new file mode", "deleted file mode", "\\ No newline"}
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
