package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeCommitMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain message",
			input:    "fix: handle empty diff",
			expected: "fix: handle empty diff",
		},
		{
			name:     "fenced message",
			input:    "```\nfix: handle empty diff\n```",
			expected: "fix: handle empty diff",
		},
		{
			name:     "surrounding whitespace",
			input:    "  fix: handle empty diff\n",
			expected: "fix: handle empty diff",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeCommitMessage(tt.input))
		})
	}
}

func TestGetCommitConfigFromFlags(t *testing.T) {
	cmd := commitCmd

	assert.NoError(t, cmd.Flags().Set("short", "true"))
	assert.NoError(t, cmd.Flags().Set("template", "feat: {{desc}}"))

	config := getCommitConfigFromFlags(cmd)
	assert.True(t, config.Short)
	assert.Equal(t, "feat: {{desc}}", config.Template)
	assert.False(t, config.NoSign)
}
