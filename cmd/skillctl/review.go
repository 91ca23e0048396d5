package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillctl/skillctl/pkg/fragments"
	"github.com/skillctl/skillctl/pkg/gitx"
	"github.com/skillctl/skillctl/pkg/history"
	"github.com/skillctl/skillctl/pkg/presenter"
	"github.com/skillctl/skillctl/pkg/provider"
	"github.com/skillctl/skillctl/pkg/review"
	"github.com/skillctl/skillctl/pkg/taskstate"
)

type ReviewConfig struct {
	Coder         string
	Reviewer      string
	MaxRounds     int
	Goal          string
	ContextTarget string
	Output        string
	NoSave        bool
}

func NewReviewConfig() *ReviewConfig {
	return &ReviewConfig{
		Coder:         "claude",
		Reviewer:      "codex",
		MaxRounds:     review.DefaultMaxRounds,
		Goal:          "",
		ContextTarget: "",
		Output:        "",
		NoSave:        false,
	}
}

func (c *ReviewConfig) Validate() error {
	if c.Coder == c.Reviewer {
		return errors.Errorf("coder and reviewer must be different providers, both are '%s'", c.Coder)
	}
	if c.MaxRounds < 1 {
		return errors.Errorf("max-rounds must be at least 1, got %d", c.MaxRounds)
	}
	return nil
}

var reviewCmd = &cobra.Command{
	Use:   "review [goal]",
	Short: "Run a coder/reviewer feedback loop between two AI providers",
	Long: `Run a bounded feedback loop: one provider (the coder) proposes a change
for the given goal, another provider (the reviewer) reviews it and either
approves or requests changes. The loop repeats with the reviewer's feedback
until approval or the round bound is hit, then a Markdown report is emitted.`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getReviewConfigFromFlags(cmd)

		goal := config.Goal
		if goal == "" {
			goal = strings.Join(args, " ")
		}
		if strings.TrimSpace(goal) == "" {
			presenter.Error(errors.New("no goal given"), "Pass the goal as arguments or via --goal")
			os.Exit(1)
		}

		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		coder, err := newProvider(config.Coder)
		if err != nil {
			presenter.Error(err, "Unknown coder provider")
			os.Exit(1)
		}
		reviewer, err := newProvider(config.Reviewer)
		if err != nil {
			presenter.Error(err, "Unknown reviewer provider")
			os.Exit(1)
		}
		for _, p := range []provider.Provider{coder, reviewer} {
			if err := p.Available(); err != nil {
				presenter.Error(err, fmt.Sprintf("Provider '%s' is not usable", p.Name()))
				os.Exit(1)
			}
		}

		reviewContext := ""
		if config.ContextTarget != "" {
			if !gitx.IsRepository() {
				presenter.Error(errors.New("not a git repository"), "--context-target requires a git repository")
				os.Exit(1)
			}
			diff, err := gitx.DiffAgainst(ctx, config.ContextTarget)
			if err != nil {
				presenter.Error(err, "Failed to compute context diff")
				os.Exit(1)
			}
			reviewContext = diff
		}

		processor, err := fragments.NewProcessor()
		if err != nil {
			presenter.Error(err, "Failed to create fragment processor")
			os.Exit(1)
		}

		opts := review.Options{MaxRounds: config.MaxRounds}
		if !config.NoSave {
			store, err := taskstate.NewStore()
			if err != nil {
				presenter.Error(err, "Failed to open task state store")
				os.Exit(1)
			}
			opts.Store = store
		}

		engine := review.NewEngine(coder, reviewer, processor, opts)

		presenter.Info(fmt.Sprintf("Starting review loop: %s (coder) vs %s (reviewer), up to %d rounds",
			config.Coder, config.Reviewer, config.MaxRounds))

		start := time.Now()
		outcome, runErr := engine.Run(ctx, review.Request{Goal: goal, Context: reviewContext})
		elapsed := time.Since(start)

		if outcome == nil {
			presenter.Error(runErr, "Review loop failed")
			os.Exit(1)
		}

		reportPath, err := writeReport(config.Output, outcome.Report)
		if err != nil {
			presenter.Error(err, "Failed to write report")
			os.Exit(1)
		}

		if !config.NoSave {
			if err := recordRun(ctx, outcome.Task, reportPath); err != nil {
				presenter.Warning(fmt.Sprintf("Failed to record run history: %s", err))
			}
		}

		presenter.Stats(&presenter.RunStats{
			Rounds:        len(outcome.Task.Rounds),
			ProviderCalls: 2 * len(outcome.Task.Rounds),
			Duration:      elapsed,
			Verdict:       string(outcome.Task.Status),
		})

		if runErr != nil {
			presenter.Error(runErr, "Review loop aborted")
			os.Exit(1)
		}

		switch outcome.Task.Status {
		case taskstate.StatusApproved:
			presenter.Success(fmt.Sprintf("Reviewer approved after %d round(s)", len(outcome.Task.Rounds)))
		case taskstate.StatusExhausted:
			presenter.Warning(fmt.Sprintf("No approval after %d round(s)", len(outcome.Task.Rounds)))
			os.Exit(2)
		}
	},
}

func init() {
	defaults := NewReviewConfig()
	reviewCmd.Flags().String("coder", defaults.Coder, "Provider that proposes changes (claude, codex, copilot, gemini)")
	reviewCmd.Flags().String("reviewer", defaults.Reviewer, "Provider that reviews changes")
	reviewCmd.Flags().Int("max-rounds", defaults.MaxRounds, "Maximum number of coder/reviewer rounds")
	reviewCmd.Flags().String("goal", defaults.Goal, "Review goal (alternative to positional arguments)")
	reviewCmd.Flags().String("context-target", defaults.ContextTarget, "Git ref to diff against for review context (e.g. main)")
	reviewCmd.Flags().StringP("output", "o", defaults.Output, "Write the Markdown report to this file instead of stdout")
	reviewCmd.Flags().Bool("no-save", defaults.NoSave, "Skip task state and run history persistence")

	viper.BindPFlag("review.max_rounds", reviewCmd.Flags().Lookup("max-rounds"))
}

func getReviewConfigFromFlags(cmd *cobra.Command) *ReviewConfig {
	config := NewReviewConfig()

	if coder, err := cmd.Flags().GetString("coder"); err == nil {
		config.Coder = coder
	}
	if reviewer, err := cmd.Flags().GetString("reviewer"); err == nil {
		config.Reviewer = reviewer
	}
	if maxRounds := viper.GetInt("review.max_rounds"); maxRounds > 0 {
		config.MaxRounds = maxRounds
	}
	if goal, err := cmd.Flags().GetString("goal"); err == nil {
		config.Goal = goal
	}
	if target, err := cmd.Flags().GetString("context-target"); err == nil {
		config.ContextTarget = target
	}
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	if noSave, err := cmd.Flags().GetBool("no-save"); err == nil {
		config.NoSave = noSave
	}

	return config
}

// writeReport writes the report to the given path, or stdout when the path
// is empty. Returns the path recorded in run history ("" for stdout).
func writeReport(path, report string) (string, error) {
	if path == "" {
		fmt.Println(report)
		return "", nil
	}
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write report file")
	}
	presenter.Success(fmt.Sprintf("Report written to %s", path))
	return path, nil
}

func recordRun(ctx context.Context, task *taskstate.Task, reportPath string) error {
	store, err := history.NewStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.RecordTask(ctx, task, reportPath)
}
