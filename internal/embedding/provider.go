// Package embedding converts text into fixed-dimension vectors via an
// external provider.
package embedding

import (
	"context"
	"errors"
)

// ErrEmptyVector marks a provider response that contained no usable
// vector for an item.
var ErrEmptyVector = errors.New("embedding: provider returned empty vector")

// Provider is the interface all embedding backends must implement.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the fixed output dimension of the model.
	Dimension() int
	// Name returns the provider identifier (e.g. "openai").
	Name() string
}

// Result is the outcome of embedding a single text. A failed item
// carries its error instead of a vector so callers can skip it without
// aborting the batch.
type Result struct {
	Vector []float32
	Err    error
}

// Failed reports whether this item could not be embedded.
func (r Result) Failed() bool { return r.Err != nil }

// Failures counts the failed items in a batch.
func Failures(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}
