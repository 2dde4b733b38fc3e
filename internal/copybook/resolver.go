// Package copybook expands COPY directives with cycle and depth protection
// and records where every expanded line came from.
package copybook

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ludo-technologies/cblscan/internal/constants"
	"github.com/ludo-technologies/cblscan/internal/diag"
)

// Marker prefixes written in place of COPY directives
const (
	MarkerInclude            = "*> #include"
	MarkerEndInclude         = "*> #endinclude"
	MarkerMissing            = "*> #missing_copy"
	MarkerCircular           = "*> #circular_copy"
	MarkerReadError          = "*> #error_reading_copy"
	MarkerUnsupportedReplace = "*> #unsupported_copy_replacing"
	MarkerMaxDepth           = "*> #max_copy_depth_exceeded"
)

// Options configures a Resolver
type Options struct {
	// Extensions are tried in order when resolving a COPY name
	Extensions []string

	// MaxDepth bounds nested expansion; the top-level source is depth 0
	MaxDepth int
}

// DefaultOptions returns the standard resolution options
func DefaultOptions() Options {
	return Options{
		Extensions: append([]string(nil), constants.DefaultCopybookExtensions...),
		MaxDepth:   constants.DefaultMaxCopyDepth,
	}
}

// Expansion is the result of resolving one top-level source
type Expansion struct {
	// Text is the expanded source
	Text string

	// LineMap maps expanded line i+1 to LineMap[i]
	LineMap []int

	// Included lists every expanded copybook once, in first-inclusion order
	Included []string

	// Diagnostics are the inclusion problems met along the way
	Diagnostics []diag.Diagnostic
}

// Resolver expands COPY directives
type Resolver struct {
	source Source
	cache  *Cache
	opts   Options
	logger *slog.Logger
}

// NewResolver creates a resolver; cache may be shared between resolvers
func NewResolver(source Source, cache *Cache, opts Options) *Resolver {
	if len(opts.Extensions) == 0 {
		opts.Extensions = append([]string(nil), constants.DefaultCopybookExtensions...)
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = constants.DefaultMaxCopyDepth
	}
	return &Resolver{
		source: source,
		cache:  cache,
		opts:   opts,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for debug output
func (r *Resolver) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// expansionState is owned by a single Resolve call
type expansionState struct {
	out      []string
	lineMap  []int
	chain    map[string]bool
	included []string
	seen     map[string]bool
	diags    *diag.List
}

// Resolve expands source. It only fails when ctx is cancelled; every other
// problem becomes an inline marker plus a diagnostic.
func (r *Resolver) Resolve(ctx context.Context, source string) (*Expansion, error) {
	st := &expansionState{
		chain: make(map[string]bool),
		seen:  make(map[string]bool),
		diags: diag.NewList(),
	}

	if err := r.expand(ctx, st, source, 0); err != nil {
		return nil, err
	}

	return &Expansion{
		Text:        strings.Join(st.out, "\n"),
		LineMap:     st.lineMap,
		Included:    st.included,
		Diagnostics: st.diags.Items(),
	}, nil
}

func (r *Resolver) emit(st *expansionState, line string, origin int) {
	st.out = append(st.out, line)
	st.lineMap = append(st.lineMap, origin)
}

func (r *Resolver) expand(ctx context.Context, st *expansionState, text string, depth int) error {
	for i, line := range splitLines(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo := i + 1

		directive, ok := parseDirective(line)
		if !ok {
			r.emit(st, line, lineNo)
			continue
		}

		if directive.replacing {
			r.emit(st, marker(MarkerUnsupportedReplace, strings.TrimSpace(line)), lineNo)
			st.diags.Add(diag.CategoryInclusion, directive.name, lineNo,
				"COPY REPLACING is not supported: %s", strings.TrimSpace(line))
			continue
		}

		if depth+1 > r.opts.MaxDepth {
			r.emit(st, marker(MarkerMaxDepth, directive.name), lineNo)
			st.diags.Add(diag.CategoryInclusion, directive.name, lineNo,
				"Maximum COPY depth %d exceeded", r.opts.MaxDepth)
			continue
		}

		resolved, found := r.source.Locate(directive.name, r.opts.Extensions)
		if !found {
			r.emit(st, marker(MarkerMissing, directive.name+".*"), lineNo)
			st.diags.Add(diag.CategoryInclusion, directive.name, lineNo,
				"Missing copybook %s", directive.name)
			continue
		}
		display := filepath.Base(resolved)

		if st.chain[resolved] {
			r.emit(st, marker(MarkerCircular, display), lineNo)
			st.diags.Add(diag.CategoryInclusion, display, lineNo,
				"Circular COPY of %s", display)
			continue
		}

		body, err := r.cache.Load(resolved, func() (string, error) {
			data, err := r.source.ReadFile(resolved)
			if err != nil {
				return "", err
			}
			return string(data), nil
		})
		if err != nil {
			r.emit(st, marker(MarkerReadError, display), lineNo)
			st.diags.Add(diag.CategoryInclusion, display, lineNo,
				"Error reading copybook %s: %v", display, err)
			continue
		}

		r.logger.Debug("expanding copybook",
			slog.String("copybook", display),
			slog.Int("line", lineNo),
			slog.Int("depth", depth+1))

		if !st.seen[display] {
			st.seen[display] = true
			st.included = append(st.included, display)
		}

		r.emit(st, marker(MarkerInclude, display)+" line "+strconv.Itoa(lineNo), lineNo)
		st.chain[resolved] = true
		if err := r.expand(ctx, st, body, depth+1); err != nil {
			return err
		}
		delete(st.chain, resolved)
		r.emit(st, marker(MarkerEndInclude, display), lineNo)
	}
	return nil
}

// marker renders `prefix <subject>`
func marker(prefix, subject string) string {
	return prefix + " <" + subject + ">"
}

// directive is a parsed COPY statement
type directive struct {
	name      string
	replacing bool
}

// parseDirective recognizes `COPY name[.] [OF lib] [REPLACING ...]`.
// Comment lines and lines that merely contain the word COPY are not directives.
func parseDirective(line string) (directive, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "*") || isFixedFormComment(line) {
		return directive{}, false
	}

	tokens := strings.Fields(strings.ToUpper(trimmed))
	if len(tokens) > 1 && isSequenceNumber(tokens[0]) {
		tokens = tokens[1:]
	}
	if len(tokens) < 2 || tokens[0] != "COPY" {
		return directive{}, false
	}

	name := strings.Trim(tokens[1], `."'`)
	if name == "" {
		return directive{}, false
	}

	d := directive{name: name}
	for _, tok := range tokens[2:] {
		if strings.TrimSuffix(tok, ".") == "REPLACING" {
			d.replacing = true
			break
		}
	}
	return d, true
}

// isFixedFormComment reports a '*' or '/' indicator in column 7
func isFixedFormComment(line string) bool {
	if len(line) < 7 {
		return false
	}
	return (line[6] == '*' || line[6] == '/') && isSequenceArea(line[:6])
}

func isSequenceArea(s string) bool {
	for _, r := range s {
		if r != ' ' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func isSequenceNumber(tok string) bool {
	if len(tok) != 6 {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
