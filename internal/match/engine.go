// Package match composes chunking, embedding and the vector index into
// the resume/job matching pipeline: storing a document's fragments and
// scoring a (query text, document) pair.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hireflow/hireflow/internal/chunk"
	"github.com/hireflow/hireflow/internal/embedding"
	"github.com/hireflow/hireflow/internal/observability"
	"github.com/hireflow/hireflow/internal/vector"
)

// DefaultTopK is the number of fragments retrieved per score query.
const DefaultTopK = 5

// IndexReport describes the outcome of storing one document.
type IndexReport struct {
	DocumentID string
	Fragments  int
	Indexed    int
	Failed     int
}

// Engine is the matching pipeline. It holds no per-request state and
// is safe for concurrent use.
type Engine struct {
	chunker  *chunk.Chunker
	provider embedding.Provider
	batcher  *embedding.Batcher
	index    vector.Index
	logger   *slog.Logger
}

// NewEngine creates an Engine. workers bounds concurrent embedding
// calls per upload.
func NewEngine(chunker *chunk.Chunker, provider embedding.Provider, index vector.Index, workers int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		chunker:  chunker,
		provider: provider,
		batcher:  embedding.NewBatcher(provider, workers, logger),
		index:    index,
		logger:   logger,
	}
}

// IndexDocument chunks and embeds rawText and stores the fragments
// under a freshly generated document identity. Fragments that fail to
// embed are skipped; a document with zero indexed fragments is a
// degraded but completed upload, not an error. Re-uploading the same
// file produces a new identity and a disjoint set of points.
func (e *Engine) IndexDocument(ctx context.Context, filename, rawText string) (*IndexReport, error) {
	ctx, span := observability.StartIndexSpan(ctx, filename)
	defer span.End()

	report := &IndexReport{DocumentID: uuid.NewString()}
	cleaned := chunk.CleanText(rawText)
	// Fragment budget scales with the document so short resumes are not
	// over-split and long ones still land near four fragments.
	budget := chunk.BudgetFor(chunk.CountTokens(cleaned))
	fragments := e.chunker.WithBudget(budget).Split(cleaned)
	report.Fragments = len(fragments)
	span.SetAttributes(attribute.Int("document.fragments", len(fragments)))
	if len(fragments) == 0 {
		e.logger.Warn("document produced no fragments", "filename", filename)
		return report, nil
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	results := e.batcher.EmbedAll(ctx, texts)
	report.Failed = embedding.Failures(results)

	points := make([]vector.Point, 0, len(fragments))
	for i, r := range results {
		if r.Failed() {
			continue
		}
		points = append(points, vector.Point{
			ID:            uuid.NewString(),
			Vector:        r.Vector,
			Text:          fragments[i].Text,
			DocumentID:    report.DocumentID,
			FragmentIndex: fragments[i].Index,
			Filename:      filename,
		})
	}
	if len(points) == 0 {
		e.logger.Warn("no fragments embedded, nothing indexed",
			"filename", filename, "document_id", report.DocumentID, "failed", report.Failed)
		return report, nil
	}

	if err := e.index.Upsert(ctx, points); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("indexing %s: %w", filename, err)
	}
	report.Indexed = len(points)
	e.logger.Info("document indexed",
		"filename", filename, "document_id", report.DocumentID,
		"fragments", report.Fragments, "indexed", report.Indexed, "failed", report.Failed)
	return report, nil
}

// Score embeds profileText and returns the best similarity among the
// topK fragments of the document stored under filename, as a fraction.
// A nil result means the score is uncomputable (empty inputs, failed
// query embedding, or no reachable fragments) and must never be read
// as zero.
func (e *Engine) Score(ctx context.Context, profileText, filename string, topK int) (*float64, error) {
	ctx, span := observability.StartScoreSpan(ctx, filename)
	defer span.End()

	if strings.TrimSpace(profileText) == "" || filename == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vectors, err := e.provider.Embed(ctx, []string{profileText})
	if err != nil || len(vectors) == 0 || len(vectors[0]) == 0 {
		e.logger.Warn("query embedding failed, score uncomputable",
			"filename", filename, "error", err)
		return nil, nil
	}

	matches, err := e.index.Search(ctx, vectors[0], topK, &vector.Filter{Filename: filename})
	if err != nil {
		e.logger.Warn("similarity search failed, score uncomputable",
			"filename", filename, "error", err)
		return nil, nil
	}
	if len(matches) == 0 {
		return nil, nil
	}

	// A resume is relevant when its best-matching section is relevant;
	// averaging would let unrelated sections dilute a strong match.
	best := matches[0].Score
	for _, m := range matches[1:] {
		if m.Score > best {
			best = m.Score
		}
	}
	score := float64(best)
	span.SetAttributes(attribute.Float64("match.score", score))
	return &score, nil
}

// Search embeds query and returns the most similar fragments across
// all stored documents.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]vector.Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	vectors, err := e.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding query: empty vector")
	}
	return e.index.Search(ctx, vectors[0], limit, nil)
}
