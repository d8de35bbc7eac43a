// Package vector provides durable vector storage with filtered
// similarity search.
package vector

import "context"

// Point is the unit stored in the index: one fragment vector plus its
// payload. Many points share one DocumentID; the point ID is unique.
type Point struct {
	ID            string
	Vector        []float32
	Text          string
	DocumentID    string
	FragmentIndex int
	Filename      string
}

// Match is a single hit from a similarity search, ordered by
// descending similarity.
type Match struct {
	ID            string
	Score         float32
	Text          string
	FragmentIndex int
	Filename      string
}

// Filter restricts a search to points from one source document file.
type Filter struct {
	Filename string
}

// Index provides vector storage and cosine similarity search.
type Index interface {
	// EnsureCollection idempotently creates the backing collection.
	EnsureCollection(ctx context.Context) error
	// Upsert writes points, skipping those without a vector. A vector
	// whose length differs from the configured dimension is an error.
	Upsert(ctx context.Context, points []Point) error
	// Search finds up to limit points most similar to vector. A nil
	// filter searches the whole collection.
	Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]Match, error)
	// Close releases resources.
	Close() error
}
