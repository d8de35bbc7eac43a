package embedding

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakyProvider fails the first failures calls, then succeeds.
type flakyProvider struct {
	failures int
	calls    int
	err      error
}

func (f *flakyProvider) Name() string   { return "flaky" }
func (f *flakyProvider) Dimension() int { return 1 }

func (f *flakyProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return [][]float32{{1}}, nil
}

func fastRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Timeout:    time.Second,
	}
}

func TestRetryProvider_RetriesTransientErrors(t *testing.T) {
	inner := &flakyProvider{failures: 2, err: errors.New("503 Service Unavailable")}
	r := NewRetryProvider(inner, fastRetryConfig(3))

	vectors, err := r.Embed(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("got %d vectors, want 1", len(vectors))
	}
	if inner.calls != 3 {
		t.Errorf("got %d calls, want 3", inner.calls)
	}
}

func TestRetryProvider_NoRetryOnClientError(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: errors.New("401 Unauthorized")}
	r := NewRetryProvider(inner, fastRetryConfig(3))

	if _, err := r.Embed(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("got %d calls, want 1", inner.calls)
	}
}

func TestRetryProvider_ExhaustsRetries(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: errors.New("500 Internal Server Error")}
	r := NewRetryProvider(inner, fastRetryConfig(2))

	if _, err := r.Embed(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if inner.calls != 3 {
		t.Errorf("got %d calls, want 3 (initial + 2 retries)", inner.calls)
	}
}

func TestRetryProvider_CancelledContext(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: errors.New("503 Service Unavailable")}
	r := NewRetryProvider(inner, fastRetryConfig(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Embed(ctx, []string{"text"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRetryProvider_Delegates(t *testing.T) {
	inner := &flakyProvider{}
	r := NewRetryProvider(inner, nil)
	if r.Name() != "flaky" {
		t.Errorf("Name() = %q", r.Name())
	}
	if r.Dimension() != 1 {
		t.Errorf("Dimension() = %d", r.Dimension())
	}
}
