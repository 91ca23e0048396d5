package provider

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillctl/skillctl/pkg/logger"
	"github.com/skillctl/skillctl/pkg/telemetry"
)

// stderrTailLimit caps the amount of stderr carried into error messages.
const stderrTailLimit = 2048

// cliProvider is the shared subprocess runner behind every adapter.
// buildArgs shapes the provider-specific argv; the prompt always travels on
// stdin to avoid argv length limits.
type cliProvider struct {
	name      string
	cfg       Config
	buildArgs func(cfg Config, req Request) []string
}

func (p *cliProvider) Name() string {
	return p.name
}

func (p *cliProvider) Available() error {
	return lookPath(p.name, p.cfg.Bin)
}

func (p *cliProvider) Invoke(ctx context.Context, req Request) (*Result, error) {
	attempts := p.cfg.Attempts
	if attempts == 0 {
		attempts = 1
	}

	var result *Result
	err := retry.Do(
		func() error {
			res, err := p.invokeOnce(ctx, req)
			if res != nil {
				result = res
			}
			return err
		},
		retry.Attempts(attempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if n+1 >= attempts {
				return
			}
			logger.G(ctx).WithError(err).WithFields(map[string]interface{}{
				"provider": p.name,
				"attempt":  n + 1,
			}).Warn("Provider invocation failed, retrying")
		}),
	)
	return result, err
}

func (p *cliProvider) invokeOnce(ctx context.Context, req Request) (*Result, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = p.cfg.Timeout
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := p.buildArgs(p.cfg, req)
	args = append(args, p.cfg.ExtraArgs...)

	var result *Result
	err := telemetry.WithSpan(ctx, "provider.invoke", func(ctx context.Context) error {
		logger.G(ctx).WithFields(map[string]interface{}{
			"provider": p.name,
			"bin":      p.cfg.Bin,
			"args":     args,
		}).Debug("Invoking provider CLI")

		cmd := exec.CommandContext(ctx, p.cfg.Bin, args...)
		cmd.Stdin = strings.NewReader(req.Prompt)
		if req.WorkDir != "" {
			cmd.Dir = req.WorkDir
		}

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		start := time.Now()
		err := cmd.Run()
		elapsed := time.Since(start)

		result = &Result{
			Output:   strings.TrimSpace(stdout.String()),
			Stderr:   stderr.String(),
			Duration: elapsed,
		}
		telemetry.SetAttributes(ctx, attribute.Int64("provider.duration_ms", elapsed.Milliseconds()))

		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return errors.Wrapf(ctx.Err(), "%s timed out after %s", p.name, timeout)
			}
			if exitErr, ok := err.(*exec.ExitError); ok {
				result.ExitCode = exitErr.ExitCode()
				telemetry.SetAttributes(ctx, attribute.Int("provider.exit_code", result.ExitCode))
				return &ExitError{
					Provider: p.name,
					Code:     exitErr.ExitCode(),
					Stderr:   stderrTail(stderr.String()),
				}
			}
			return errors.Wrapf(err, "failed to run %s", p.cfg.Bin)
		}

		return nil
	},
		attribute.String("provider.name", p.name),
		attribute.String("provider.model", req.Model),
	)
	// The populated result travels with the error so callers can still see
	// the exit code, stderr, and timing of a failed invocation.
	return result, err
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailLimit {
		s = s[len(s)-stderrTailLimit:]
	}
	return s
}
