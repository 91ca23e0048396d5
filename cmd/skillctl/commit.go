package main

import (
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/skillctl/skillctl/pkg/fragments"
	"github.com/skillctl/skillctl/pkg/gitx"
	"github.com/skillctl/skillctl/pkg/presenter"
	"github.com/skillctl/skillctl/pkg/provider"
)

type CommitConfig struct {
	Provider  string
	NoSign    bool
	Template  string
	Short     bool
	NoConfirm bool
}

func NewCommitConfig() *CommitConfig {
	return &CommitConfig{
		Provider:  "claude",
		NoSign:    false,
		Template:  "",
		Short:     false,
		NoConfirm: false,
	}
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Generate and create a git commit with an AI-generated message",
	Long: `Generate a commit message from the staged changes and create a git commit.
The staged diff is sent to the configured provider CLI; the returned message
is shown for confirmation (and optional editing) before the commit is made.
You must stage your changes (using 'git add') before running this command.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getCommitConfigFromFlags(cmd)

		if !gitx.IsRepository() {
			presenter.Error(errors.New("not a git repository"), "Please run this command from a git repository")
			os.Exit(1)
		}

		if !gitx.HasStagedChanges() {
			presenter.Error(errors.New("no staged changes found"), "Please stage your changes using 'git add' first")
			os.Exit(1)
		}

		p, err := newProvider(config.Provider)
		if err != nil {
			presenter.Error(err, "Unknown provider")
			os.Exit(1)
		}
		if err := p.Available(); err != nil {
			presenter.Error(err, "Provider is not usable")
			os.Exit(1)
		}

		processor, err := fragments.NewProcessor()
		if err != nil {
			presenter.Error(err, "Failed to create fragment processor")
			os.Exit(1)
		}

		diff, err := gitx.StagedDiff(ctx)
		if err != nil {
			presenter.Error(err, "Failed to read staged diff")
			os.Exit(1)
		}

		fragmentArgs := map[string]string{"diff": diff}
		if config.Template != "" {
			fragmentArgs["template"] = config.Template
		}
		if config.Short {
			fragmentArgs["short"] = "true"
		}

		fragment, err := processor.Load(ctx, &fragments.Config{
			Name:      "commit-message",
			Arguments: fragmentArgs,
		})
		if err != nil {
			presenter.Error(err, "Failed to load built-in commit recipe")
			os.Exit(1)
		}

		presenter.Info("Analyzing staged changes and generating commit message...")

		result, err := p.Invoke(ctx, provider.Request{Prompt: fragment.Content})
		if err != nil {
			presenter.Error(err, "Provider failed to generate a commit message")
			os.Exit(1)
		}
		commitMsg := sanitizeCommitMessage(result.Output)
		if commitMsg == "" {
			presenter.Error(errors.New("provider returned an empty message"), "Failed to generate commit message")
			os.Exit(1)
		}

		presenter.Section("Generated Commit Message")
		presenter.Info(commitMsg)

		finalCommitMsg := commitMsg
		if !config.NoConfirm {
			confirmed, editedMsg := confirmCommit(commitMsg)
			if !confirmed {
				os.Exit(0)
			}
			finalCommitMsg = editedMsg
		}

		if err := gitx.Commit(ctx, finalCommitMsg, !config.NoSign); err != nil {
			presenter.Error(err, "Failed to create commit")
			os.Exit(1)
		}

		presenter.Success("Commit created successfully!")
	},
}

func init() {
	defaults := NewCommitConfig()
	commitCmd.Flags().String("provider", defaults.Provider, "Provider used to generate the message")
	commitCmd.Flags().Bool("no-sign", defaults.NoSign, "Disable commit signing")
	commitCmd.Flags().StringP("template", "t", defaults.Template, "Template for commit message")
	commitCmd.Flags().Bool("short", defaults.Short, "Generate a short commit message with just a description, no bullet points")
	commitCmd.Flags().Bool("no-confirm", defaults.NoConfirm, "Skip confirmation prompt and create commit automatically")
}

func getCommitConfigFromFlags(cmd *cobra.Command) *CommitConfig {
	config := NewCommitConfig()

	if providerName, err := cmd.Flags().GetString("provider"); err == nil {
		config.Provider = providerName
	}
	if noSign, err := cmd.Flags().GetBool("no-sign"); err == nil {
		config.NoSign = noSign
	}
	if template, err := cmd.Flags().GetString("template"); err == nil {
		config.Template = template
	}
	if short, err := cmd.Flags().GetBool("short"); err == nil {
		config.Short = short
	}
	if noConfirm, err := cmd.Flags().GetBool("no-confirm"); err == nil {
		config.NoConfirm = noConfirm
	}

	return config
}

func sanitizeCommitMessage(message string) string {
	message = strings.TrimSpace(message)
	message = strings.TrimPrefix(message, "```")
	message = strings.TrimSuffix(message, "```")
	return strings.TrimSpace(message)
}

func confirmCommit(message string) (bool, string) {
	response := presenter.Prompt("Create commit with this message?", "Y/n/e (edit)")
	response = strings.ToLower(response)

	switch response {
	case "", "y", "yes":
		return true, message
	case "e", "edit":
		editedMsg := editMessage(message)
		if editedMsg == "" {
			presenter.Warning("Commit message is empty. Aborting.")
			return false, message
		}
		return confirmCommit(editedMsg)
	}

	presenter.Info("Commit aborted.")
	return false, message
}

func editMessage(message string) string {
	tempFile, err := os.CreateTemp("", "skillctl-commit-*.txt")
	if err != nil {
		presenter.Error(err, "Failed to create temporary file")
		return message
	}
	defer os.Remove(tempFile.Name())

	tempFile.WriteString(message)
	tempFile.Close()

	editor := getEditor()

	cmd := exec.Command(editor, tempFile.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		presenter.Error(err, "Failed to open editor")
		return message
	}

	edited, err := os.ReadFile(tempFile.Name())
	if err != nil {
		presenter.Error(err, "Failed to read edited message")
		return message
	}

	return strings.TrimSpace(string(edited))
}

func getEditor() string {
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	if editor := os.Getenv("VISUAL"); editor != "" {
		return editor
	}
	return "vi"
}
