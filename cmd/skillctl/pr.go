package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/skillctl/skillctl/pkg/fragments"
	"github.com/skillctl/skillctl/pkg/gitx"
	"github.com/skillctl/skillctl/pkg/presenter"
	"github.com/skillctl/skillctl/pkg/provider"
)

type PrConfig struct {
	Provider     string
	Target       string
	Draft        bool
	TemplateFile string
}

func NewPrConfig() *PrConfig {
	return &PrConfig{
		Provider:     "claude",
		Target:       "main",
		Draft:        false,
		TemplateFile: "",
	}
}

var prCmd = &cobra.Command{
	Use:   "pr",
	Short: "Generate and create a pull request with an AI-generated description",
	Long: `Generate a pull request title and description from the branch diff against
the target branch, then create the pull request via the gh CLI. The current
branch must be pushed before running this command.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getPrConfigFromFlags(cmd)

		if !gitx.IsRepository() {
			presenter.Error(errors.New("not a git repository"), "Please run this command from a git repository")
			os.Exit(1)
		}

		branch, err := gitx.CurrentBranch(ctx)
		if err != nil {
			presenter.Error(err, "Failed to determine current branch")
			os.Exit(1)
		}
		if branch == config.Target {
			presenter.Error(errors.Errorf("already on target branch '%s'", config.Target), "Check out a feature branch first")
			os.Exit(1)
		}

		diff, err := gitx.DiffAgainst(ctx, config.Target)
		if err != nil {
			presenter.Error(err, fmt.Sprintf("Failed to diff against '%s'", config.Target))
			os.Exit(1)
		}
		if strings.TrimSpace(diff) == "" {
			presenter.Error(errors.New("no changes relative to target"), "Nothing to open a pull request for")
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

		recentLog, err := gitx.RecentLog(ctx, 50)
		if err != nil {
			presenter.Error(err, "Failed to read recent commits")
			os.Exit(1)
		}

		fragmentArgs := map[string]string{
			"target": config.Target,
			"diff":   diff,
			"log":    recentLog,
		}
		if config.TemplateFile != "" {
			template, err := os.ReadFile(config.TemplateFile)
			if err != nil {
				presenter.Error(err, "Failed to read PR template file")
				os.Exit(1)
			}
			fragmentArgs["template"] = string(template)
		}

		fragment, err := processor.Load(ctx, &fragments.Config{
			Name:      "pr-generation",
			Arguments: fragmentArgs,
		})
		if err != nil {
			presenter.Error(err, "Failed to load built-in PR recipe")
			os.Exit(1)
		}

		presenter.Info("Analyzing branch changes and generating pull request content...")

		result, err := p.Invoke(ctx, provider.Request{Prompt: fragment.Content})
		if err != nil {
			presenter.Error(err, "Provider failed to generate PR content")
			os.Exit(1)
		}

		title, body, err := parsePrContent(result.Output)
		if err != nil {
			presenter.Error(err, "Provider output did not contain a PR title")
			os.Exit(1)
		}

		presenter.Section("Pull Request")
		presenter.Info(fmt.Sprintf("Title: %s", title))

		url, err := gitx.CreatePullRequest(ctx, gitx.PullRequestOptions{
			Title: title,
			Body:  body,
			Base:  config.Target,
			Draft: config.Draft,
		})
		if err != nil {
			presenter.Error(err, "Failed to create pull request")
			os.Exit(1)
		}

		presenter.Success(fmt.Sprintf("Pull request created: %s", url))
	},
}

func init() {
	defaults := NewPrConfig()
	prCmd.Flags().String("provider", defaults.Provider, "Provider used to generate the PR content")
	prCmd.Flags().String("target", defaults.Target, "Target branch for the pull request")
	prCmd.Flags().Bool("draft", defaults.Draft, "Create the pull request as a draft")
	prCmd.Flags().String("template-file", defaults.TemplateFile, "Path to a PR template to fill in")
}

func getPrConfigFromFlags(cmd *cobra.Command) *PrConfig {
	config := NewPrConfig()

	if providerName, err := cmd.Flags().GetString("provider"); err == nil {
		config.Provider = providerName
	}
	if target, err := cmd.Flags().GetString("target"); err == nil {
		config.Target = target
	}
	if draft, err := cmd.Flags().GetBool("draft"); err == nil {
		config.Draft = draft
	}
	if templateFile, err := cmd.Flags().GetString("template-file"); err == nil {
		config.TemplateFile = templateFile
	}

	return config
}

// parsePrContent splits provider output into a title and body. The title is
// the first line starting with "TITLE:"; everything after it is the body.
func parsePrContent(output string) (string, string, error) {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "TITLE:") {
			continue
		}
		title := strings.TrimSpace(strings.TrimPrefix(trimmed, "TITLE:"))
		if title == "" {
			return "", "", errors.New("empty PR title")
		}
		body := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		return title, body, nil
	}
	return "", "", errors.New("no TITLE: line in provider output")
}
