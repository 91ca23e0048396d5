package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocalSkill(t *testing.T, name string) {
	t.Helper()
	dir := filepath.Join(".skillctl", "skills", name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "---\nname: " + name + "\ndescription: d\n---\nbody"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
}

func TestLookupSkillHonorsAllowlist(t *testing.T) {
	t.Chdir(t.TempDir())
	writeLocalSkill(t, "permitted")
	writeLocalSkill(t, "denied")

	viper.Set("skills.allowlist", []string{"permitted"})
	t.Cleanup(func() { viper.Set("skills.allowlist", nil) })

	skill, err := lookupSkill("permitted")
	require.NoError(t, err)
	assert.Equal(t, "permitted", skill.Name)

	_, err = lookupSkill("denied")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowlist")

	found, err := allowedSkills()
	require.NoError(t, err)
	_, exists := found["denied"]
	assert.False(t, exists)
}

func TestParseSkillArgs(t *testing.T) {
	args, err := parseSkillArgs([]string{"file=main.go", "mode=strict", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"file": "main.go",
		"mode": "strict",
		"note": "a=b",
	}, args)
}

func TestParseSkillArgsInvalid(t *testing.T) {
	_, err := parseSkillArgs([]string{"no-equals"})
	assert.Error(t, err)

	_, err = parseSkillArgs([]string{"=value"})
	assert.Error(t, err)
}

func TestReviewMaxRoundsFromConfig(t *testing.T) {
	viper.Set("review.max_rounds", 5)
	t.Cleanup(func() { viper.Set("review.max_rounds", nil) })

	config := getReviewConfigFromFlags(reviewCmd)
	assert.Equal(t, 5, config.MaxRounds)
}

func TestReviewConfigValidate(t *testing.T) {
	config := NewReviewConfig()
	assert.NoError(t, config.Validate())

	config.Reviewer = config.Coder
	assert.Error(t, config.Validate())

	config = NewReviewConfig()
	config.MaxRounds = 0
	assert.Error(t, config.Validate())
}

func TestWatchConfigValidate(t *testing.T) {
	config := NewWatchConfig()
	assert.NoError(t, config.Validate())

	config.DebounceTime = -1
	assert.Error(t, config.Validate())

	config = NewWatchConfig()
	config.IncludePattern = "**/*.go"
	assert.NoError(t, config.Validate())

	config.IncludePattern = "[invalid"
	assert.Error(t, config.Validate())
}
