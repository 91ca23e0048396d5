package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPatch(t *testing.T) {
	t.Run("fenced diff block", func(t *testing.T) {
		text := "Here is the fix:\n\n```diff\n--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n-old\n+new\n```\n\nThat should do it."
		patch := ExtractPatch(text)
		assert.Contains(t, patch, "--- a/main.go")
		assert.Contains(t, patch, "+new")
		assert.NotContains(t, patch, "Here is the fix")
	})

	t.Run("fenced patch block", func(t *testing.T) {
		text := "```patch\n--- a/x\n+++ b/x\n@@ -1 +1 @@\n-a\n+b\n```"
		assert.Contains(t, ExtractPatch(text), "+++ b/x")
	})

	t.Run("multiple diff blocks concatenated", func(t *testing.T) {
		text := "```diff\n-first\n+FIRST\n```\nand also\n```diff\n-second\n+SECOND\n```"
		patch := ExtractPatch(text)
		assert.Contains(t, patch, "+FIRST")
		assert.Contains(t, patch, "+SECOND")
	})

	t.Run("bare unified diff", func(t *testing.T) {
		text := "Apply this:\n--- a/main.go\n+++ b/main.go\n@@ -1,2 +1,2 @@\n-old line\n+new line\n context\nDone."
		patch := ExtractPatch(text)
		assert.Contains(t, patch, "@@ -1,2 +1,2 @@")
		assert.NotContains(t, patch, "Apply this")
	})

	t.Run("falls back to last fenced code block", func(t *testing.T) {
		text := "```go\nfunc old() {}\n```\ntext\n```go\nfunc new() {}\n```"
		assert.Equal(t, "func new() {}", ExtractPatch(text))
	})

	t.Run("no extractable change", func(t *testing.T) {
		assert.Empty(t, ExtractPatch("I could not produce a change."))
	})

	t.Run("horizontal rule is not a diff", func(t *testing.T) {
		assert.Empty(t, ExtractPatch("intro\n--- \nmore prose that is not a diff at all?"))
	})
}
