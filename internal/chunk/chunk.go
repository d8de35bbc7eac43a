// Package chunk splits cleaned document text into overlapping,
// token-bounded fragments suitable for embedding.
package chunk

import (
	"regexp"
	"strings"
)

const (
	// DefaultMaxTokens is the fragment token budget used when none is configured.
	DefaultMaxTokens = 1000
	// DefaultOverlap is the number of trailing tokens carried into the next fragment.
	DefaultOverlap = 100
)

var (
	// Intra-line whitespace only; newlines delimit paragraphs and must
	// survive cleanup.
	spacesRe   = regexp.MustCompile(`[^\S\n]+`)
	specialsRe = regexp.MustCompile(`[^\w\s.,;:!?()-]`)
)

// Fragment is a contiguous slice of a source document's text.
// Immutable once created.
type Fragment struct {
	Index int
	Text  string
}

// CountTokens estimates the number of model tokens in text.
// Tokens are whitespace-delimited words; the estimate only drives
// sizing decisions, not billing.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// CleanText normalizes extracted document text: collapses whitespace
// within each line, strips characters that carry no signal for
// matching, and drops blank lines. Paragraph boundaries (newlines) are
// preserved for the chunker.
func CleanText(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = spacesRe.ReplaceAllString(line, " ")
		line = specialsRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

// BudgetFor derives a per-fragment token budget from a document-level
// token ceiling, aiming for roughly four fragments per document and
// clamping to [500, 2000].
func BudgetFor(maxDocTokens int) int {
	budget := maxDocTokens / 4
	if budget < 500 {
		budget = 500
	}
	if budget > 2000 {
		budget = 2000
	}
	return budget
}

// Chunker produces overlapping fragments bounded by a token budget.
type Chunker struct {
	maxTokens int
	overlap   int
}

// New creates a Chunker. Non-positive arguments fall back to defaults.
func New(maxTokens, overlap int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &Chunker{maxTokens: maxTokens, overlap: overlap}
}

// MaxTokens returns the configured fragment token budget.
func (c *Chunker) MaxTokens() int { return c.maxTokens }

// Overlap returns the configured fragment overlap in tokens.
func (c *Chunker) Overlap() int { return c.overlap }

// WithBudget returns a Chunker with the same overlap and the given
// fragment budget. Non-positive budgets fall back to the default.
func (c *Chunker) WithBudget(maxTokens int) *Chunker {
	if maxTokens == c.maxTokens {
		return c
	}
	return New(maxTokens, c.overlap)
}

// Split divides text into an ordered sequence of fragments.
//
// Text that fits the budget is returned as a single fragment. Otherwise
// paragraphs are greedily accumulated; when the next paragraph would
// exceed the budget the running fragment is closed and the next one is
// seeded with its trailing overlap tokens. A single paragraph larger
// than the budget is appended whole rather than split further, so that
// fragment may exceed the budget.
//
// Split is a pure function: identical input and configuration always
// yield an identical fragment sequence.
func (c *Chunker) Split(text string) []Fragment {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if CountTokens(trimmed) <= c.maxTokens {
		return []Fragment{{Index: 0, Text: trimmed}}
	}

	var fragments []Fragment
	current := ""
	flush := func() {
		if t := strings.TrimSpace(current); t != "" {
			fragments = append(fragments, Fragment{Index: len(fragments), Text: t})
		}
	}

	for _, paragraph := range strings.Split(text, "\n") {
		if CountTokens(current+" "+paragraph) > c.maxTokens && strings.TrimSpace(current) != "" {
			flush()
			current = c.overlapTail(current) + " " + paragraph
		} else {
			current += " " + paragraph
		}
	}
	flush()

	return fragments
}

// overlapTail returns the last overlap tokens of closed, joined by
// single spaces.
func (c *Chunker) overlapTail(closed string) string {
	if c.overlap == 0 {
		return ""
	}
	words := strings.Fields(closed)
	if len(words) > c.overlap {
		words = words[len(words)-c.overlap:]
	}
	return strings.Join(words, " ")
}
