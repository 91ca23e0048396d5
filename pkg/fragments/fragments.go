// Package fragments loads and renders prompt templates. Fragments are
// Markdown files with text/template substitution and a `bash` function for
// inlining command output (e.g. a git diff) into a prompt. Built-in recipes
// are embedded; user fragments in repo-local or home directories take
// precedence.
package fragments

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"

	"github.com/skillctl/skillctl/pkg/logger"
)

//go:embed recipes/*.md
var builtinFS embed.FS

const bashFuncTimeout = 30 * time.Second

// Config identifies a fragment and the arguments to render it with.
type Config struct {
	Name      string
	Arguments map[string]string
}

// Fragment is a rendered prompt template.
type Fragment struct {
	Name    string
	Path    string // empty for builtin recipes
	Content string
}

// Processor handles fragment lookup and rendering.
type Processor struct {
	fragmentDirs []string
}

// Option configures a Processor.
type Option func(*Processor) error

// WithFragmentDirs sets custom fragment directories.
func WithFragmentDirs(dirs ...string) Option {
	return func(fp *Processor) error {
		if len(dirs) == 0 {
			return errors.New("at least one fragment directory must be specified")
		}
		fp.fragmentDirs = dirs
		return nil
	}
}

// WithDefaultFragmentDirs resets to the default fragment directories.
func WithDefaultFragmentDirs() Option {
	return func(fp *Processor) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		fp.fragmentDirs = []string{
			"./.skillctl/recipes", // Repo-local (higher precedence)
			filepath.Join(homeDir, ".skillctl", "recipes"),
		}
		return nil
	}
}

// NewProcessor creates a fragment processor with optional configuration.
func NewProcessor(opts ...Option) (*Processor, error) {
	fp := &Processor{}

	for _, opt := range opts {
		if err := opt(fp); err != nil {
			return nil, errors.Wrap(err, "failed to apply fragment processor option")
		}
	}

	if len(fp.fragmentDirs) == 0 {
		if err := WithDefaultFragmentDirs()(fp); err != nil {
			return nil, errors.Wrap(err, "failed to apply default fragment directories")
		}
	}

	return fp, nil
}

// findFragmentFile searches for a fragment file in the configured directories.
func (fp *Processor) findFragmentFile(name string) (string, bool) {
	possibleNames := []string{name + ".md", name}

	for _, dir := range fp.fragmentDirs {
		for _, fn := range possibleNames {
			fullPath := filepath.Join(dir, fn)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, true
			}
		}
	}

	return "", false
}

// Load loads and renders a fragment with the given arguments. User
// directories are searched first; builtin recipes are the fallback.
func (fp *Processor) Load(ctx context.Context, config *Config) (*Fragment, error) {
	logger.G(ctx).WithField("fragment", config.Name).Debug("Loading fragment")

	var content []byte
	var path string

	if fullPath, ok := fp.findFragmentFile(config.Name); ok {
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read fragment file '%s'", fullPath)
		}
		content = data
		path = fullPath
	} else {
		data, err := builtinFS.ReadFile("recipes/" + config.Name + ".md")
		if err != nil {
			return nil, errors.Errorf("fragment '%s' not found in directories %v or builtin recipes", config.Name, fp.fragmentDirs)
		}
		content = data
	}

	rendered, err := fp.render(ctx, string(content), config.Arguments)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to render fragment '%s'", config.Name)
	}

	return &Fragment{
		Name:    config.Name,
		Path:    path,
		Content: rendered,
	}, nil
}

// Render renders raw template content with the given arguments. Used by the
// skill runner, which sources its template body from SKILL.md rather than a
// fragment file.
func (fp *Processor) Render(ctx context.Context, templateContent string, args map[string]string) (string, error) {
	return fp.render(ctx, templateContent, args)
}

func (fp *Processor) render(ctx context.Context, templateContent string, args map[string]string) (string, error) {
	tmpl, err := template.New("fragment").Funcs(template.FuncMap{
		"bash": fp.createBashFunc(ctx),
	}).Parse(templateContent)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse template")
	}

	if args == nil {
		args = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, args); err != nil {
		return "", errors.Wrap(err, "failed to execute template")
	}

	return buf.String(), nil
}

// createBashFunc returns a template function that executes a command and
// substitutes its output.
func (fp *Processor) createBashFunc(ctx context.Context) func(...string) string {
	return func(args ...string) string {
		if len(args) == 0 {
			return "[ERROR: bash function requires at least one argument]"
		}

		command := args[0]
		cmdArgs := args[1:]

		cmdCtx, cancel := context.WithTimeout(ctx, bashFuncTimeout)
		defer cancel()

		cmd := exec.CommandContext(cmdCtx, command, cmdArgs...)
		output, err := cmd.CombinedOutput()
		if err != nil {
			fullCmd := append([]string{command}, cmdArgs...)
			logger.G(ctx).WithField("command", strings.Join(fullCmd, " ")).WithError(err).Warn("Fragment bash command failed")
			return fmt.Sprintf("[ERROR executing command '%s': %v]", strings.Join(fullCmd, " "), err)
		}

		return strings.TrimRight(string(output), "\n\r")
	}
}

// List returns the names of available fragments, user directories first.
func (fp *Processor) List() ([]string, error) {
	var fragments []string
	seen := make(map[string]bool)

	add := func(name string) {
		name = strings.TrimSuffix(name, ".md")
		if !seen[name] {
			fragments = append(fragments, name)
			seen[name] = true
		}
	}

	for _, dir := range fp.fragmentDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			add(entry.Name())
		}
	}

	builtins, err := builtinFS.ReadDir("recipes")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read builtin recipes")
	}
	for _, entry := range builtins {
		add(entry.Name())
	}

	return fragments, nil
}
