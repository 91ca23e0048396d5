package gitx

import (
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRepo creates a throwaway git repository and chdirs into it.
func setupRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	t.Chdir(dir)

	for _, args := range [][]string{
		{"init", "-b", "main"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
		{"config", "commit.gpgsign", "false"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run(), "git %v", args)
	}

	return dir
}

func TestIsRepository(t *testing.T) {
	setupRepo(t)
	assert.True(t, IsRepository())
}

func TestStagedChangesAndDiff(t *testing.T) {
	dir := setupRepo(t)
	ctx := context.Background()

	assert.False(t, HasStagedChanges())

	require.NoError(t, os.WriteFile(dir+"/hello.txt", []byte("hello\n"), 0o644))
	cmd := exec.Command("git", "add", "hello.txt")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())

	assert.True(t, HasStagedChanges())

	diff, err := StagedDiff(ctx)
	require.NoError(t, err)
	assert.Contains(t, diff, "+hello")
}

func TestCommitAndLog(t *testing.T) {
	dir := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(dir+"/hello.txt", []byte("hello\n"), 0o644))
	cmd := exec.Command("git", "add", "hello.txt")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())

	require.NoError(t, Commit(ctx, "add hello\n\nbody line", false))
	assert.False(t, HasStagedChanges())

	log, err := RecentLog(ctx, 5)
	require.NoError(t, err)
	assert.Contains(t, log, "add hello")

	branch, err := CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestRunErrorIncludesStderr(t *testing.T) {
	setupRepo(t)

	_, err := run(context.Background(), "git", "rev-parse", "--verify", "no-such-ref")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}
