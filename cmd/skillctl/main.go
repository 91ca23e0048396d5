package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillctl/skillctl/pkg/logger"
	"github.com/skillctl/skillctl/pkg/presenter"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLCTL")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillctl")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "skillctl",
	Short: "Run agentic skills against AI provider CLIs",
	Long: `skillctl drives third-party AI CLIs (claude, codex, gemini, copilot) as
subprocesses to run reusable skills: code review loops, commit message
generation, pull request drafting, and custom prompt recipes.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if level, err := cmd.Flags().GetString("log-level"); err == nil {
			logger.SetLogLevel(level)
		}
		if format, err := cmd.Flags().GetString("log-format"); err == nil {
			logger.SetLogFormat(format)
		}
		// Keep log lines off stdout so report/skill output stays pipeable.
		logger.SetLogOutput(cmd.ErrOrStderr())

		ctx := logger.WithLogger(cmd.Context(),
			logger.G(cmd.Context()).WithField("command", cmd.Name()))
		cmd.SetContext(ctx)

		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("Failed to initialize tracing")
			return
		}
		tracingShutdown = shutdown
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

var tracingShutdown func(context.Context) error

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		presenter.Warning("Cancellation requested, shutting down...")
		cancel()
	}()

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(withTracing(reviewCmd))
	rootCmd.AddCommand(withTracing(commitCmd))
	rootCmd.AddCommand(withTracing(prCmd))
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)

	err := rootCmd.ExecuteContext(ctx)
	if tracingShutdown != nil {
		tracingShutdown(context.Background())
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
