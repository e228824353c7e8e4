// Package ai turns a free-text request into a task title and description
// using an external text-completion provider.
package ai

import (
	"context"
	"errors"
)

// Completer is one call to a completion provider. Any error, including a
// malformed or empty response, counts as a failed attempt.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, model, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, model, prompt string) (string, error) {
	return f(ctx, model, prompt)
}

var (
	ErrEmptyCompletion  = errors.New("empty completion")
	ErrAllModelsFailed  = errors.New("all completion models failed")
	ErrNoModels         = errors.New("no completion models configured")
	ErrMalformedPayload = errors.New("malformed completion payload")
)
