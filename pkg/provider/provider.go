// Package provider implements the dispatch table over third-party AI
// provider CLIs (Claude, Codex, Gemini, GitHub Copilot). Each provider is a
// thin adapter that shapes an argv for its CLI; invocation, timeout and
// error handling are shared.
package provider

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// DefaultTimeout bounds a single provider invocation unless overridden.
const DefaultTimeout = 5 * time.Minute

// Request describes a single prompt sent to a provider CLI.
type Request struct {
	Prompt  string
	Model   string
	WorkDir string
	Timeout time.Duration
}

// Result captures the outcome of a provider invocation. Output is the
// trimmed stdout of the subprocess; stderr is kept separately as
// diagnostics and never treated as model text.
type Result struct {
	Output   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Provider is a code-generation or review backend invoked as a subprocess.
type Provider interface {
	// Name returns the registry name of the provider.
	Name() string
	// Available reports whether the provider CLI can be found on PATH.
	Available() error
	// Invoke sends a single prompt and returns the captured output.
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// Config holds per-provider settings, typically sourced from the
// providers.<name> section of the config file.
type Config struct {
	// Bin overrides the provider CLI binary name.
	Bin string
	// Model is passed through to the CLI where it supports model selection.
	Model string
	// ExtraArgs are appended to the adapter-built argv.
	ExtraArgs []string
	// Timeout bounds a single invocation. Zero means DefaultTimeout.
	Timeout time.Duration
	// Attempts is the total number of invocation attempts (1 = no retry).
	Attempts uint
}

type factory func(cfg Config) Provider

var registry = map[string]factory{
	"claude":  newClaude,
	"codex":   newCodex,
	"gemini":  newGemini,
	"copilot": newCopilot,
}

// New constructs a provider by registry name.
func New(name string, cfg Config) (Provider, error) {
	f, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown provider %q, available: %v", name, Names())
	}
	return f(cfg), nil
}

// Names returns the registered provider names in stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExitError indicates that the provider CLI exited non-zero. The stderr
// tail is carried along so the user sees what the CLI complained about.
type ExitError struct {
	Provider string
	Code     int
	Stderr   string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Provider, e.Code, e.Stderr)
}

// lookPath checks that the binary exists, wrapping the error with the
// provider name so doctor output reads naturally.
func lookPath(providerName, bin string) error {
	if _, err := exec.LookPath(bin); err != nil {
		return errors.Wrapf(err, "provider %q requires %q on PATH", providerName, bin)
	}
	return nil
}
