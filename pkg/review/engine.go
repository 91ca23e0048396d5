package review

import (
	"context"
	"fmt"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillctl/skillctl/pkg/fragments"
	"github.com/skillctl/skillctl/pkg/logger"
	"github.com/skillctl/skillctl/pkg/provider"
	"github.com/skillctl/skillctl/pkg/taskstate"
	"github.com/skillctl/skillctl/pkg/telemetry"
)

// DefaultMaxRounds bounds the loop when no explicit bound is configured.
const DefaultMaxRounds = 3

// Options tunes the loop.
type Options struct {
	// Skill labels the task state record. Defaults to "code-review".
	Skill string
	// MaxRounds bounds reviewer invocations. Defaults to DefaultMaxRounds.
	MaxRounds int
	// ScanLines bounds the verdict scan window. Defaults to DefaultScanLines.
	ScanLines int
	// ApproveMarkers and RejectMarkers override the default verdict markers.
	ApproveMarkers []string
	RejectMarkers  []string
	// WorkDir is passed through to provider subprocesses.
	WorkDir string
	// Store persists task state after every round when non-nil.
	Store *taskstate.Store
}

// Request describes one review task.
type Request struct {
	// Goal is what the coder is asked to accomplish.
	Goal string
	// Context is an optional diff or code excerpt the coder starts from.
	Context string
}

// Outcome is the result of a finished (or aborted) loop.
type Outcome struct {
	Task   *taskstate.Task
	Report string
}

// Engine drives the Coder/Reviewer loop. Execution is strictly sequential:
// one provider subprocess at a time, at most MaxRounds reviewer calls.
type Engine struct {
	coder     provider.Provider
	reviewer  provider.Provider
	fragments *fragments.Processor
	opts      Options
}

// NewEngine creates a loop engine over the given providers.
func NewEngine(coder, reviewer provider.Provider, fp *fragments.Processor, opts Options) *Engine {
	if opts.Skill == "" {
		opts.Skill = "code-review"
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.ScanLines <= 0 {
		opts.ScanLines = DefaultScanLines
	}
	return &Engine{
		coder:     coder,
		reviewer:  reviewer,
		fragments: fp,
		opts:      opts,
	}
}

// Run executes the loop until approval, round exhaustion, or a provider
// failure. The returned Outcome always carries the task state accumulated so
// far, including on error.
func (e *Engine) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Goal == "" {
		return nil, errors.New("review goal cannot be empty")
	}

	task := &taskstate.Task{
		Skill:    e.opts.Skill,
		Goal:     req.Goal,
		Coder:    e.coder.Name(),
		Reviewer: e.reviewer.Name(),
		Status:   taskstate.StatusRunning,
	}
	if err := e.saveNew(task); err != nil {
		return nil, err
	}

	outcome := &Outcome{Task: task}

	runErr := telemetry.WithSpan(ctx, "review.run", func(ctx context.Context) error {
		return e.runRounds(ctx, req, task)
	},
		attribute.String("review.coder", e.coder.Name()),
		attribute.String("review.reviewer", e.reviewer.Name()),
		attribute.Int("review.max_rounds", e.opts.MaxRounds),
	)

	outcome.Report = RenderReport(task)

	if runErr != nil {
		return outcome, runErr
	}
	return outcome, nil
}

func (e *Engine) runRounds(ctx context.Context, req Request, task *taskstate.Task) error {
	log := logger.G(ctx).WithFields(map[string]interface{}{
		"coder":    e.coder.Name(),
		"reviewer": e.reviewer.Name(),
	})

	feedback := ""
	prevPatch := ""

	for round := 1; round <= e.opts.MaxRounds; round++ {
		log.WithField("round", round).Info("Starting review round")

		coderPrompt, err := e.fragments.Load(ctx, &fragments.Config{
			Name: "coder",
			Arguments: map[string]string{
				"goal":     req.Goal,
				"context":  req.Context,
				"feedback": feedback,
			},
		})
		if err != nil {
			return e.fail(task, errors.Wrap(err, "failed to render coder prompt"))
		}

		coderRes, err := e.coder.Invoke(ctx, provider.Request{
			Prompt:  coderPrompt.Content,
			WorkDir: e.opts.WorkDir,
		})
		if err != nil {
			return e.fail(task, errors.Wrapf(err, "coder %s failed in round %d", e.coder.Name(), round))
		}

		patch := ExtractPatch(coderRes.Output)

		delta := ""
		if prevPatch != "" && patch != "" && prevPatch != patch {
			delta = udiff.Unified(
				fmt.Sprintf("round-%d", round-1),
				fmt.Sprintf("round-%d", round),
				prevPatch+"\n",
				patch+"\n",
			)
		}

		reviewerPrompt, err := e.fragments.Load(ctx, &fragments.Config{
			Name: "reviewer",
			Arguments: map[string]string{
				"goal":   req.Goal,
				"round":  fmt.Sprintf("%d", round),
				"change": coderRes.Output,
			},
		})
		if err != nil {
			return e.fail(task, errors.Wrap(err, "failed to render reviewer prompt"))
		}

		reviewRes, err := e.reviewer.Invoke(ctx, provider.Request{
			Prompt:  reviewerPrompt.Content,
			WorkDir: e.opts.WorkDir,
		})
		if err != nil {
			return e.fail(task, errors.Wrapf(err, "reviewer %s failed in round %d", e.reviewer.Name(), round))
		}

		verdict := DetectVerdict(reviewRes.Output, e.opts.ScanLines, e.opts.ApproveMarkers, e.opts.RejectMarkers)

		telemetry.AddEvent(ctx, "review.round",
			attribute.Int("round", round),
			attribute.String("verdict", string(verdict)),
		)

		task.Rounds = append(task.Rounds, taskstate.Round{
			Number:         round,
			CoderOutput:    coderRes.Output,
			ReviewerOutput: reviewRes.Output,
			Verdict:        string(verdict),
			Patch:          patch,
			RevisionDelta:  delta,
			CoderElapsed:   coderRes.Duration,
			ReviewElapsed:  reviewRes.Duration,
		})
		if err := e.save(task); err != nil {
			return err
		}

		log.WithFields(map[string]interface{}{
			"round":   round,
			"verdict": verdict,
		}).Info("Review round finished")

		if verdict == VerdictApproved {
			task.Status = taskstate.StatusApproved
			return e.save(task)
		}

		feedback = reviewRes.Output
		prevPatch = patch
	}

	task.Status = taskstate.StatusExhausted
	return e.save(task)
}

func (e *Engine) fail(task *taskstate.Task, err error) error {
	task.Status = taskstate.StatusFailed
	if saveErr := e.save(task); saveErr != nil {
		logger.L.WithError(saveErr).Warn("Failed to persist failed task state")
	}
	return err
}

func (e *Engine) saveNew(task *taskstate.Task) error {
	if e.opts.Store == nil {
		task.ID = uuid.NewString()
		now := time.Now().UTC()
		task.CreatedAt = now
		task.UpdatedAt = now
		return nil
	}
	return e.opts.Store.Create(task)
}

func (e *Engine) save(task *taskstate.Task) error {
	if e.opts.Store == nil {
		return nil
	}
	return e.opts.Store.Update(task)
}
