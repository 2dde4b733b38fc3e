package analyzer

import (
	"log/slog"
	"sort"
	"strconv"

	"github.com/ludo-technologies/cblscan/internal/constants"
)

// CFGEdge is a directed edge between LINE_n markers or paragraph names
type CFGEdge struct {
	From string
	To   string
}

// CFG is the line-level control-flow graph of a program
type CFG struct {
	Entry string
	Edges []CFGEdge
}

// LineNode returns the CFG node name of a line
func LineNode(line int) string {
	return constants.LinePrefix + strconv.Itoa(line)
}

// cfgEvent is a flattened statement or a replayed terminator
type cfgEvent struct {
	line       int
	stmt       *Statement
	terminator *Terminator
}

// cfgFrame is an open block during replay
type cfgFrame struct {
	line int
	kind StatementKind
}

// CFGBuilder replays each paragraph's statements in line order
type CFGBuilder struct {
	edges  []CFGEdge
	seen   map[CFGEdge]bool
	logger *slog.Logger
}

// NewCFGBuilder creates a new CFG builder
func NewCFGBuilder() *CFGBuilder {
	return &CFGBuilder{
		seen:   make(map[CFGEdge]bool),
		logger: discardLogger(),
	}
}

// SetLogger sets an optional logger for debug output
func (b *CFGBuilder) SetLogger(logger *slog.Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// BuildCFG derives the CFG of already remapped paragraphs
func BuildCFG(paragraphs []*ParagraphResult, mainParagraph string) *CFG {
	return NewCFGBuilder().Build(paragraphs, mainParagraph)
}

// Build derives the CFG. Lines must already be in original coordinates.
func (b *CFGBuilder) Build(paragraphs []*ParagraphResult, mainParagraph string) *CFG {
	cfg := &CFG{Entry: constants.UnknownValue}

	for _, p := range paragraphs {
		events := flattenEvents(p)
		if p.Name == mainParagraph && cfg.Entry == constants.UnknownValue {
			for _, ev := range events {
				if ev.stmt != nil {
					cfg.Entry = LineNode(ev.line)
					break
				}
			}
		}
		b.replay(p.Name, events)
	}

	cfg.Edges = b.edges
	if cfg.Edges == nil {
		cfg.Edges = []CFGEdge{}
	}
	return cfg
}

func flattenEvents(p *ParagraphResult) []cfgEvent {
	var events []cfgEvent
	WalkStatements(p.Statements, func(s *Statement) bool {
		events = append(events, cfgEvent{line: s.Line, stmt: s})
		return true
	})
	for i := range p.Terminators {
		events = append(events, cfgEvent{line: p.Terminators[i].Line, terminator: &p.Terminators[i]})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].line < events[j].line
	})
	return events
}

func (b *CFGBuilder) replay(paragraph string, events []cfgEvent) {
	var stack []cfgFrame
	prev := ""

	for _, ev := range events {
		node := LineNode(ev.line)

		if t := ev.terminator; t != nil {
			if n := len(stack); n > 0 && stack[n-1].kind == t.Kind.Opener() {
				b.addEdge(LineNode(stack[n-1].line), node)
				stack = stack[:n-1]
			} else {
				b.logger.Debug("terminator without open block",
					slog.String("paragraph", paragraph),
					slog.Int("line", ev.line))
			}
			b.nestedEdge(stack, node)
			prev = node
			continue
		}

		s := ev.stmt
		if prev != "" {
			b.addEdge(prev, node)
		}

		switch d := s.Descriptor.(type) {
		case *GoToDescriptor:
			if d.Destination != "" {
				b.addEdge(node, d.Destination)
			}
		case *PerformDescriptor:
			b.addEdge(node, d.Start)
			if d.End != "" {
				b.addEdge(node, d.End)
			}
		}

		if kind, opens := cfgOpener(s); opens {
			stack = append(stack, cfgFrame{line: ev.line, kind: kind})
		}
		b.nestedEdge(stack, node)
		prev = node
	}
}

// nestedEdge links the innermost open block to node while blocks are nested
func (b *CFGBuilder) nestedEdge(stack []cfgFrame, node string) {
	if len(stack) > 1 {
		b.addEdge(LineNode(stack[len(stack)-1].line), node)
	}
}

// cfgOpener reports whether a statement opens a block during replay and the
// kind its terminator must close
func cfgOpener(s *Statement) (StatementKind, bool) {
	switch {
	case s.origin == KindIf:
		return KindIf, true
	case s.Kind == KindEvaluate:
		return KindEvaluate, true
	case s.Kind == KindAtEnd || s.Kind == KindNotAtEnd:
		return s.Kind, true
	case s.origin == KindPerform:
		switch s.Descriptor.(type) {
		case *PerformDescriptor, *LoopDescriptor:
			return KindPerform, true
		}
	}
	return "", false
}

// addEdge records an edge once and never a self-edge
func (b *CFGBuilder) addEdge(from, to string) {
	if from == to || from == "" || to == "" {
		return
	}
	e := CFGEdge{From: from, To: to}
	if b.seen[e] {
		return
	}
	b.seen[e] = true
	b.edges = append(b.edges, e)
}
