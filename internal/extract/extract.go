// Package extract turns uploaded resume files into plain text.
package extract

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Extractor pulls readable text out of an uploaded document.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (string, error)
}

// PlainText reads the document as UTF-8 text. Callers that accept
// binary formats should front it with a format-specific extractor.
type PlainText struct {
	// MaxBytes caps how much of the upload is read. Zero means 10 MiB.
	MaxBytes int64
}

const defaultMaxBytes = 10 << 20

func (p *PlainText) Extract(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	limit := p.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
