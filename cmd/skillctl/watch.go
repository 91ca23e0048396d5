package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/skillctl/skillctl/pkg/fragments"
	"github.com/skillctl/skillctl/pkg/logger"
	"github.com/skillctl/skillctl/pkg/presenter"
	"github.com/skillctl/skillctl/pkg/provider"
	"github.com/skillctl/skillctl/pkg/skills"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	Provider       string
	IgnoreDirs     []string
	IncludePattern string
	DebounceTime   int
}

// NewWatchConfig creates a new WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		Provider:       "claude",
		IgnoreDirs:     []string{".git", "node_modules", "vendor"},
		IncludePattern: "",
		DebounceTime:   500,
	}
}

// Validate validates the WatchConfig and returns an error if invalid
func (c *WatchConfig) Validate() error {
	if c.DebounceTime < 0 {
		return fmt.Errorf("debounce time cannot be negative: %d", c.DebounceTime)
	}
	if c.IncludePattern != "" {
		if !doublestar.ValidatePattern(c.IncludePattern) {
			return fmt.Errorf("invalid include pattern: %s", c.IncludePattern)
		}
	}
	return nil
}

// FileEvent represents a file system event with additional metadata
type FileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

var watchCmd = &cobra.Command{
	Use:   "watch [skill]",
	Short: "Re-run a skill whenever watched files change",
	Long: `Continuously monitors file changes in the current directory and re-runs the
given skill on every change, passing the changed path as the "file" template
argument. Common directories like .git and node_modules are ignored.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getWatchConfigFromFlags(cmd)

		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		skill, err := lookupSkill(args[0])
		if err != nil {
			presenter.Error(err, "Skill not found")
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

		runWatchMode(ctx, skill, p, processor, config)
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().String("provider", defaults.Provider, "Provider used to run the skill")
	watchCmd.Flags().StringSliceP("ignore", "i", defaults.IgnoreDirs, "Directories to ignore")
	watchCmd.Flags().StringP("include", "p", defaults.IncludePattern, "Doublestar pattern for files to include (e.g. '**/*.go')")
	watchCmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for file change events")
}

// getWatchConfigFromFlags extracts watch configuration from command flags
func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	config := NewWatchConfig()

	if providerName, err := cmd.Flags().GetString("provider"); err == nil {
		config.Provider = providerName
	}
	if ignoreDirs, err := cmd.Flags().GetStringSlice("ignore"); err == nil {
		config.IgnoreDirs = ignoreDirs
	}
	if includePattern, err := cmd.Flags().GetString("include"); err == nil {
		config.IncludePattern = includePattern
	}
	if debounceTime, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounceTime
	}

	return config
}

func runWatchMode(ctx context.Context, skill *skills.Skill, p provider.Provider, processor *fragments.Processor, config *WatchConfig) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		presenter.Error(err, "Failed to create file watcher")
		os.Exit(1)
	}
	defer watcher.Close()

	events := make(chan FileEvent)
	debouncedEvents := make(chan FileEvent)

	go debounceFileEvents(ctx, events, debouncedEvents, time.Duration(config.DebounceTime)*time.Millisecond)

	// Process debounced events sequentially; one provider subprocess at a time.
	go func() {
		for {
			select {
			case event, ok := <-debouncedEvents:
				if !ok {
					return
				}
				presenter.Info(fmt.Sprintf("Change detected: %s (%s)", event.Path, event.Op))
				processFileChange(ctx, skill, p, processor, event.Path)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ignoredPath(event.Name, config.IgnoreDirs) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if config.IncludePattern != "" {
					matched, err := doublestar.Match(config.IncludePattern, filepath.ToSlash(event.Name))
					if err != nil || !matched {
						continue
					}
				}
				events <- FileEvent{
					Path: event.Name,
					Op:   event.Op,
					Time: time.Now(),
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.G(ctx).WithError(err).Error("Error watching files")
			case <-ctx.Done():
				return
			}
		}
	}()

	err = filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if ignoredPath(path, config.IgnoreDirs) || ignoredDir(path, config.IgnoreDirs) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		presenter.Error(err, "Failed to watch directories")
		os.Exit(1)
	}

	presenter.Info(fmt.Sprintf("Watching for file changes, running skill '%s' on change. Press Ctrl+C to stop", skill.Name))

	<-ctx.Done()
}

func ignoredPath(path string, ignoreDirs []string) bool {
	for _, dir := range ignoreDirs {
		if strings.Contains(path, dir+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

func ignoredDir(path string, ignoreDirs []string) bool {
	base := filepath.Base(path)
	for _, dir := range ignoreDirs {
		if base == dir {
			return true
		}
	}
	return false
}

func processFileChange(ctx context.Context, skill *skills.Skill, p provider.Provider, processor *fragments.Processor, path string) {
	prompt, err := processor.Render(ctx, skill.Content, map[string]string{"file": path})
	if err != nil {
		presenter.Error(err, "Failed to render skill template")
		return
	}

	result, err := p.Invoke(ctx, provider.Request{Prompt: prompt})
	if err != nil {
		presenter.Error(err, "Provider invocation failed")
		return
	}

	presenter.Separator()
	fmt.Println(result.Output)
	presenter.Separator()
}

// debounceFileEvents coalesces rapid changes to the same file into one event.
func debounceFileEvents(ctx context.Context, input <-chan FileEvent, output chan<- FileEvent, delay time.Duration) {
	pending := make(map[string]*time.Timer)

	for {
		select {
		case event, ok := <-input:
			if !ok {
				for _, timer := range pending {
					timer.Stop()
				}
				return
			}
			if timer, exists := pending[event.Path]; exists {
				timer.Stop()
			}
			pending[event.Path] = time.AfterFunc(delay, func() {
				select {
				case output <- event:
				case <-ctx.Done():
				}
			})
		case <-ctx.Done():
			for _, timer := range pending {
				timer.Stop()
			}
			return
		}
	}
}
