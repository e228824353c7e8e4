package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abricot-app/abricot/internal/logger"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = time.Second
	DefaultTimeout  = 15 * time.Second
)

type Options struct {
	Models   []string // preference order, first success wins
	Attempts int      // per model
	Backoff  time.Duration
	Timeout  time.Duration // per call
}

// Completion is a successful provider answer.
type Completion struct {
	Text     string
	Model    string
	Attempts int // calls made in total, across models
}

// Generator runs a prompt across the fallback models with a fixed backoff
// between attempts and a hard timeout on each call.
type Generator struct {
	completer Completer
	opts      Options
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewGenerator(completer Completer, opts Options) *Generator {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Generator{
		completer: completer,
		opts:      opts,
		logger:    logger.Component("ai"),
		sleep:     sleepContext,
	}
}

func (g *Generator) Models() []string {
	return append([]string(nil), g.opts.Models...)
}

// Complete returns the first successful completion. Cancellation of ctx stops
// further attempts immediately; exhausting every model yields ErrAllModelsFailed.
func (g *Generator) Complete(ctx context.Context, prompt string) (*Completion, error) {
	if len(g.opts.Models) == 0 {
		return nil, ErrNoModels
	}

	var lastErr error
	calls := 0

	for _, model := range g.opts.Models {
		for attempt := 1; attempt <= g.opts.Attempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			calls++
			text, err := g.call(ctx, model, prompt)
			if err == nil {
				g.logger.InfoContext(ctx, "Completion succeeded",
					"model", model, "attempt", attempt, "calls", calls)
				return &Completion{Text: text, Model: model, Attempts: calls}, nil
			}

			lastErr = err
			g.logger.WarnContext(ctx, "Completion attempt failed",
				"model", model, "attempt", attempt, "error", err)

			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			if attempt < g.opts.Attempts {
				if err := g.sleep(ctx, g.opts.Backoff); err != nil {
					return nil, err
				}
			}
		}

		g.logger.WarnContext(ctx, "Model exhausted, falling back", "model", model)
	}

	return nil, fmt.Errorf("%w after %d calls: %v", ErrAllModelsFailed, calls, lastErr)
}

func (g *Generator) call(ctx context.Context, model, prompt string) (text string, err error) {
	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	defer func() {
		// A provider panicking on a malformed payload is just a failed attempt.
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedPayload, r)
		}
	}()

	text, err = g.completer.Complete(callCtx, model, prompt)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("model %s timed out after %s: %w", model, g.opts.Timeout, err)
		}
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
