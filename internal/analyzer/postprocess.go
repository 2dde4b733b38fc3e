package analyzer

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ludo-technologies/cblscan/internal/constants"
)

// PostProcessor normalizes structured paragraphs and derives the CFG
type PostProcessor struct {
	lineMap       LineMap
	mainParagraph string
	logger        *slog.Logger
}

// NewPostProcessor creates a post-processor. A nil line map leaves lines as is.
func NewPostProcessor(lineMap LineMap, mainParagraph string) *PostProcessor {
	if mainParagraph == "" {
		mainParagraph = constants.MainParagraph
	}
	return &PostProcessor{
		lineMap:       lineMap,
		mainParagraph: mainParagraph,
		logger:        discardLogger(),
	}
}

// SetLogger sets the logger for debug output
func (pp *PostProcessor) SetLogger(logger *slog.Logger) {
	if logger != nil {
		pp.logger = logger
	}
}

// Run applies every pass in order and returns the surviving paragraphs with
// their control-flow graph
func (pp *PostProcessor) Run(paragraphs []*ParagraphResult) ([]*ParagraphResult, *CFG) {
	for _, p := range paragraphs {
		pp.Dedupe(p)
		pp.canonicalize(p)
		backfillPerforms(p)
	}
	paragraphs = dedupeParagraphs(paragraphs, pp.logger)
	for _, p := range paragraphs {
		WalkStatements(p.Statements, func(s *Statement) bool {
			s.Pseudocode = collapseWhitespace(s.Pseudocode)
			return true
		})
		promoteKinds(p)
		extractConditions(p)
		shapeFileDescriptions(p)
	}
	return paragraphs, BuildCFG(paragraphs, pp.mainParagraph)
}

// Dedupe drops repeated top-level statements, remaps every line through the
// line map and prunes empty child lists. Running it twice equals running it once.
func (pp *PostProcessor) Dedupe(p *ParagraphResult) {
	seen := make(map[string]bool, len(p.Statements))
	kept := p.Statements[:0]
	for _, s := range p.Statements {
		key := string(s.origin) + ":" + strconv.Itoa(s.expandedLine) + ":" + s.Content
		if seen[key] {
			pp.logger.Debug("skipping duplicate statement",
				slog.String("paragraph", p.Name),
				slog.Int("line", s.Line),
				slog.String("content", s.Content))
			continue
		}
		seen[key] = true
		kept = append(kept, s)
	}
	p.Statements = kept

	WalkStatements(p.Statements, func(s *Statement) bool {
		if !s.remapped {
			s.Line = pp.lineMap.Remap(s.Line)
			s.remapped = true
		}
		s.Then = pruneEmpty(s.Then, s.Kind)
		s.Else = pruneEmpty(s.Else, s.Kind)
		s.Cases = pruneEmpty(s.Cases, s.Kind)
		return true
	})

	if !p.terminatorsRemapped {
		for i := range p.Terminators {
			p.Terminators[i].Line = pp.lineMap.Remap(p.Terminators[i].Line)
			p.Terminators[i].OpenerLine = pp.lineMap.Remap(p.Terminators[i].OpenerLine)
		}
		p.terminatorsRemapped = true
	}
}

func pruneEmpty(list []*Statement, kind StatementKind) []*Statement {
	if len(list) == 0 && kind != KindAtEnd && kind != KindNotAtEnd {
		return nil
	}
	return list
}

// walkContext visits statements with the number of enclosing PERFORM blocks
// and the line of the enclosing block (0 at top level)
func walkContext(list []*Statement, loopLevel, parent int, fn func(s *Statement, loopLevel, parent int)) {
	for _, s := range list {
		fn(s, loopLevel, parent)
		childLevel := loopLevel
		if s.origin == KindPerform {
			childLevel++
		}
		for _, children := range s.Children() {
			walkContext(children, childLevel, s.Line, fn)
		}
	}
}

// canonicalize turns raw parse facts into typed descriptors
func (pp *PostProcessor) canonicalize(p *ParagraphResult) {
	walkContext(p.Statements, 0, 0, func(s *Statement, loopLevel, parent int) {
		m := s.meta
		if m == nil {
			return
		}
		switch s.origin {
		case KindPerform:
			switch {
			case m.varying != nil:
				s.Descriptor = &LoopDescriptor{
					Variable:  orUnknown(m.varying.variable),
					From:      orUnknown(m.varying.from),
					By:        orUnknown(m.varying.by),
					Until:     orUnknown(m.varying.until),
					LoopLevel: loopLevel,
					Parent:    parent,
				}
			case m.thru != "":
				s.Descriptor = &PerformDescriptor{
					Start:     m.target,
					End:       m.thru,
					LoopLevel: loopLevel,
					Parent:    parent,
				}
			}
		case KindCall:
			args := m.args
			if args == nil {
				args = []string{}
			}
			s.Descriptor = &CallDescriptor{Name: m.program, Args: args, Parent: parent}
		case KindGoTo:
			if _, isPerform := s.Descriptor.(*PerformDescriptor); !isPerform {
				s.Descriptor = &GoToDescriptor{Destination: m.destination, Parent: parent}
			}
		case KindOpen, KindRead, KindWrite, KindClose:
			s.Descriptor = &FileOpDescriptor{Name: m.file, Description: m.description, Parent: parent}
		}
		s.meta = nil
	})
}

func orUnknown(v string) string {
	if v == "" {
		return constants.UnknownValue
	}
	return v
}

// backfillPerforms derives start and end for PERFORMs the canonical pass left
// without a descriptor, and strips one trailing semicolon from every PERFORM
// pseudocode line
func backfillPerforms(p *ParagraphResult) {
	walkContext(p.Statements, 0, 0, func(s *Statement, loopLevel, parent int) {
		if s.origin != KindPerform {
			return
		}
		s.Pseudocode = strings.TrimSuffix(s.Pseudocode, ";")
		if s.Descriptor != nil {
			return
		}
		parts := strings.Fields(strings.ToUpper(strings.TrimSuffix(s.Content, ".")))
		if len(parts) > 4 {
			parts = parts[:4]
		}
		if len(parts) < 2 || performClauseWords[parts[1]] || isNumeric(parts[1]) ||
			(len(parts) > 2 && parts[2] == "TIMES") {
			return
		}
		d := &PerformDescriptor{Start: parts[1], LoopLevel: loopLevel, Parent: parent}
		if len(parts) == 4 && (parts[2] == "THRU" || parts[2] == "THROUGH") {
			d.End = parts[3]
		}
		s.Descriptor = d
	})
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// dedupeParagraphs keeps the first paragraph of each name
func dedupeParagraphs(paragraphs []*ParagraphResult, logger *slog.Logger) []*ParagraphResult {
	seen := make(map[string]bool, len(paragraphs))
	out := make([]*ParagraphResult, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p == nil {
			continue
		}
		if seen[p.Name] {
			logger.Debug("skipping duplicate paragraph", slog.String("paragraph", p.Name))
			continue
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out
}

// sniffKinds retypes OTHER statements whose text starts with a known verb
var sniffKinds = []struct {
	keyword string
	kind    StatementKind
}{
	{"DISPLAY", KindDisplay},
	{"MOVE", KindMove},
	{"ADD", KindAdd},
	{"CALL", KindCall},
	{"READ", KindRead},
	{"CLOSE", KindClose},
	{"OPEN", KindOpen},
	{"SUBTRACT", KindSubtract},
	{"INSPECT", KindInspect},
	{"ACCEPT", KindAccept},
	{"GOBACK", KindGoback},
	{"STOP RUN", KindStopRun},
}

func promoteKinds(p *ParagraphResult) {
	WalkStatements(p.Statements, func(s *Statement) bool {
		if s.Kind != KindOther {
			return true
		}
		upper := strings.ToUpper(s.Content)
		switch {
		case matchesKeyword(upper, "NOT AT END"):
			s.Kind = KindNotAtEnd
		case matchesKeyword(upper, "AT END"):
			s.Kind = KindAtEnd
		default:
			for _, sk := range sniffKinds {
				if matchesKeyword(upper, sk.keyword) {
					s.Kind = sk.kind
					break
				}
			}
			return true
		}
		if s.Then == nil {
			s.Then = []*Statement{}
		}
		return true
	})
}

// conditionOperators are tried in priority order; the first one present decides
var conditionOperators = []string{"=", ">", "<", "NOT="}

func extractConditions(p *ParagraphResult) {
	WalkStatements(p.Statements, func(s *Statement) bool {
		if (s.Kind != KindIf && s.Kind != KindWhen) || s.Descriptor != nil {
			return true
		}
		if cond, ok := ParseCondition(s.Content); ok {
			s.Descriptor = cond
			s.Kind = KindCondition
		}
		return true
	})
}

// ParseCondition splits `IF lhs op rhs` or `WHEN lhs op rhs` into a
// two-sided comparison. Only the first operator found, in the order = > < NOT=,
// is tried.
func ParseCondition(content string) (*ConditionDescriptor, bool) {
	body := strings.TrimSpace(content)
	upper := strings.ToUpper(body)
	switch {
	case strings.HasPrefix(upper, "IF "):
		body = body[3:]
	case strings.HasPrefix(upper, "WHEN "):
		body = body[5:]
	}
	body = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(body), "."))

	for _, op := range conditionOperators {
		if !strings.Contains(body, op) {
			continue
		}
		sides := strings.Split(body, op)
		if len(sides) != 2 {
			return nil, false
		}
		lhs, rhs := strings.TrimSpace(sides[0]), strings.TrimSpace(sides[1])
		if lhs == "" || rhs == "" {
			return nil, false
		}
		return &ConditionDescriptor{LHS: lhs, RHS: rhs, Operator: op}, true
	}
	return nil, false
}

func shapeFileDescriptions(p *ParagraphResult) {
	WalkStatements(p.Statements, func(s *Statement) bool {
		if d, ok := s.Descriptor.(*FileOpDescriptor); ok && d.Description != nil {
			shapeFileDescription(d.Description)
		}
		return true
	})
}

// String renders a paragraph's tree for debugging
func (p *ParagraphResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (complexity %d)\n", p.Name, p.Complexity)
	var write func(list []*Statement, depth int)
	write = func(list []*Statement, depth int) {
		for _, s := range list {
			fmt.Fprintf(&b, "%s%d %s %s\n", strings.Repeat("  ", depth+1), s.Line, s.Kind, s.Content)
			for _, children := range s.Children() {
				write(children, depth+1)
			}
		}
	}
	write(p.Statements, 0)
	return b.String()
}
