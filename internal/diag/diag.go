// Package diag holds the diagnostics collected while structuring a program.
//
// Diagnostics are data, not errors: every stage appends to a List and keeps
// going, so a run always yields a (possibly partial) result.
package diag

import (
	"fmt"
	"sync"
)

// Category classifies a diagnostic
type Category string

const (
	// CategoryStructural covers mismatched, unmatched and unclosed block terminators
	CategoryStructural Category = "structural"

	// CategoryReferential covers dangling names: FD without FILE-CONTROL, bad PROGRAM-ID
	CategoryReferential Category = "referential"

	// CategoryMalformed covers statements whose sub-structure could not be read
	CategoryMalformed Category = "malformed"

	// CategoryInclusion covers COPY resolution problems
	CategoryInclusion Category = "inclusion"
)

// Diagnostic is a single finding, ordered by discovery
type Diagnostic struct {
	Subject  string   `json:"subject" yaml:"subject"`
	Message  string   `json:"message" yaml:"message"`
	Line     int      `json:"line" yaml:"line"`
	Category Category `json:"category" yaml:"category"`
}

// String renders the diagnostic for logs and text output
func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s (line %d): %s", d.Category, d.Subject, d.Line, d.Message)
}

// List is an append-only diagnostics collector
type List struct {
	mu    sync.Mutex
	items []Diagnostic
}

// NewList creates an empty collector
func NewList() *List {
	return &List{}
}

// Add appends a diagnostic
func (l *List) Add(category Category, subject string, line int, format string, args ...any) {
	l.Append(Diagnostic{
		Subject:  subject,
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
		Category: category,
	})
}

// Append appends already-built diagnostics
func (l *List) Append(items ...Diagnostic) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, items...)
}

// Items returns a copy of the collected diagnostics in discovery order
func (l *List) Items() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of diagnostics
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Count returns the number of diagnostics in a category
func (l *List) Count(category Category) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, d := range l.items {
		if d.Category == category {
			n++
		}
	}
	return n
}
