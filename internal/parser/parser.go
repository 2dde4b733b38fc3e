package parser

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// DefaultSplitKeywords break a physical line holding several statements
var DefaultSplitKeywords = []string{
	"IF", "ELSE", "END-IF", "CALL", "DISPLAY", "PERFORM", "ADD", "SUBTRACT",
	"GOBACK", "MOVE", "EVALUATE", "WHEN", "END-EVALUATE", "ACCEPT", "GO TO",
	"READ", "WRITE", "INSPECT",
}

// Options configures the front-end
type Options struct {
	SplitKeywords []string
}

// Parser is a line-oriented COBOL reader. It recovers program structure,
// data declarations and procedure paragraphs from copybook-expanded text.
type Parser struct {
	keywords [][]string
	logger   *slog.Logger
}

// NewParser creates a parser. Empty split keywords fall back to the defaults.
func NewParser(opts Options) *Parser {
	split := opts.SplitKeywords
	if len(split) == 0 {
		split = DefaultSplitKeywords
	}
	keywords := make([][]string, 0, len(split))
	for _, kw := range split {
		words := strings.Fields(strings.ToUpper(kw))
		if len(words) > 0 {
			keywords = append(keywords, words)
		}
	}
	return &Parser{
		keywords: keywords,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for debug output
func (p *Parser) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// ParseFile parses expanded program text. Line numbers in the result are
// expanded-text lines. It only fails when ctx is cancelled.
func (p *Parser) ParseFile(ctx context.Context, filename string, text string) (*Unit, error) {
	b := newUnitBuilder(filename, p.keywords, p.logger.With(slog.String("file", filename)))

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for i, raw := range strings.Split(text, "\n") {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		b.add(normalizeLine(raw, i+1))
	}

	unit := b.finish()
	p.logger.Debug("parsed program",
		slog.String("file", filename),
		slog.Int("paragraphs", len(unit.Paragraphs)),
		slog.Int("data_items", len(unit.DataItems)))
	return unit, nil
}

// ParseString parses program text with a placeholder file name
func (p *Parser) ParseString(text string) (*Unit, error) {
	return p.ParseFile(context.Background(), "<input>", text)
}
