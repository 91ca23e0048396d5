package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillctl/skillctl/pkg/history"
	"github.com/skillctl/skillctl/pkg/presenter"
	"github.com/skillctl/skillctl/pkg/taskstate"
	"github.com/skillctl/skillctl/pkg/webapi"
)

type ServeConfig struct {
	Host string
	Port int
}

func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host: "localhost",
		Port: 8325,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only HTTP API over run history and task state",
	Long: `Start an HTTP server exposing past runs and task state as JSON:
GET /api/runs, /api/runs/{id}, /api/tasks, /api/tasks/{id}, and /healthz.
The server is read-only and binds to localhost by default.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getServeConfigFromFlags(cmd)

		runs, err := history.NewStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open run history")
			os.Exit(1)
		}
		defer runs.Close()

		tasks, err := taskstate.NewStore()
		if err != nil {
			presenter.Error(err, "Failed to open task state store")
			os.Exit(1)
		}

		server, err := webapi.NewServer(&webapi.ServerConfig{
			Host: config.Host,
			Port: config.Port,
		}, runs, tasks)
		if err != nil {
			presenter.Error(err, "Failed to create API server")
			os.Exit(1)
		}

		presenter.Info(fmt.Sprintf("Serving API on http://%s:%d (Ctrl+C to stop)", config.Host, config.Port))

		if err := server.Start(ctx); err != nil {
			presenter.Error(err, "API server failed")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host interface to bind to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to listen on")
}

func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()

	if host, err := cmd.Flags().GetString("host"); err == nil {
		config.Host = host
	}
	if port, err := cmd.Flags().GetInt("port"); err == nil {
		config.Port = port
	}

	return config
}
