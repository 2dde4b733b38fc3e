package analyzer

import (
	"log/slog"
	"strings"

	"github.com/ludo-technologies/cblscan/internal/constants"
	"github.com/ludo-technologies/cblscan/internal/diag"
)

// StatementLine is one trimmed statement and the expanded-text line it starts on
type StatementLine struct {
	Text string
	Line int
}

// ParagraphInput is a named, ordered statement sequence
type ParagraphInput struct {
	Name  string
	Lines []StatementLine
}

// Terminator records where a block was closed. Terminators never enter the
// statement tree; CFG derivation replays them.
type Terminator struct {
	Kind       StatementKind
	Line       int
	OpenerLine int
}

// ParagraphResult is the structured form of one paragraph
type ParagraphResult struct {
	Name           string
	Statements     []*Statement
	Targets        []string
	CallTargets    []string
	PerformTargets []string
	GoToTargets    []string
	Complexity     int
	Terminators    []Terminator

	terminatorsRemapped bool
}

type blockPhase int

const (
	phaseThen blockPhase = iota
	phaseElse
	phaseCases
)

// frame is one open block on the control stack
type frame struct {
	node  *Statement
	phase blockPhase

	// placed is set for chained ELSE IF blocks, which are placed when opened
	placed bool
}

// Structurer rebuilds nested blocks from a flat statement sequence
type Structurer struct {
	keywords *KeywordSet
	files    *FileIndex
	logger   *slog.Logger
}

// NewStructurer creates a structurer. files may be nil.
func NewStructurer(keywords *KeywordSet, files *FileIndex) *Structurer {
	if keywords == nil {
		keywords = DefaultKeywordSet()
	}
	return &Structurer{
		keywords: keywords,
		files:    files,
		logger:   discardLogger(),
	}
}

// SetLogger sets the logger for debug output
func (s *Structurer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// paragraphState is owned by a single Structure call
type paragraphState struct {
	name     string
	stack    []*frame
	result   *ParagraphResult
	diags    *diag.List
	calls    orderedSet
	performs orderedSet
	gotos    orderedSet
}

// Structure builds the statement tree of one paragraph
func (s *Structurer) Structure(p ParagraphInput, diags *diag.List) *ParagraphResult {
	st := &paragraphState{
		name:   p.Name,
		result: &ParagraphResult{Name: p.Name, Complexity: 1, Statements: []*Statement{}},
		diags:  diags,
	}

	for _, raw := range p.Lines {
		text := collapseWhitespace(raw.Text)
		if text == "" {
			continue
		}
		s.structureLine(st, text, raw.Line)
	}

	// force-close residual blocks, innermost first
	for len(st.stack) > 0 {
		f := st.pop()
		diags.Add(diag.CategoryStructural, p.Name, f.node.Line,
			"Unclosed %s in paragraph %s: %s", f.node.origin, p.Name, f.node.Content)
		if !f.placed {
			st.place(f.node)
		}
	}

	st.result.CallTargets = st.calls.items
	st.result.PerformTargets = st.performs.items
	st.result.GoToTargets = st.gotos.items
	return st.result
}

func (s *Structurer) structureLine(st *paragraphState, text string, line int) {
	kind, keyword := s.keywords.Classify(text)
	upper := strings.ToUpper(text)

	switch kind {
	case KindIf:
		node := newStatement(KindIf, line, text)
		st.result.Complexity++
		s.logger.Debug("pushing IF", slog.String("paragraph", st.name), slog.Int("line", line))
		st.push(&frame{node: node, phase: phaseThen})

	case KindElse:
		top := st.top()
		if top == nil || top.node.origin != KindIf {
			st.diags.Add(diag.CategoryStructural, st.name, line,
				"Unmatched ELSE in paragraph %s: %s", st.name, text)
			return
		}
		if rest := stripVerb(text, "ELSE"); strings.HasPrefix(strings.ToUpper(rest), "IF ") || strings.EqualFold(rest, "IF") {
			// chained ELSE IF: nest into the open IF's else-list right away
			node := newStatement(KindIf, line, rest)
			top.node.Else = append(top.node.Else, node)
			top.phase = phaseElse
			st.result.Complexity++
			st.push(&frame{node: node, phase: phaseThen, placed: true})
			return
		}
		top.node.Else = append(top.node.Else, newStatement(KindElse, line, text))
		top.phase = phaseElse

	case KindEvaluate:
		node := newStatement(KindEvaluate, line, text)
		st.result.Complexity++
		st.push(&frame{node: node, phase: phaseCases})

	case KindWhen:
		node := newStatement(KindWhen, line, text)
		if top := st.top(); top != nil && top.node.origin == KindEvaluate {
			st.result.Complexity++
		} else {
			st.diags.Add(diag.CategoryStructural, st.name, line,
				"Unmatched WHEN in paragraph %s: %s", st.name, text)
		}
		st.place(node)

	case KindPerform:
		node := newStatement(KindPerform, line, text)
		node.meta = parsePerform(upper)
		node.Pseudocode = pseudocodeFor(node)
		st.result.Complexity++
		for _, target := range performTargets(node.meta) {
			st.addEdge(target)
			st.performs.add(target)
		}
		st.push(&frame{node: node, phase: phaseThen})

	case KindEndIf, KindEndEvaluate, KindEndPerform:
		top := st.top()
		if top == nil {
			st.diags.Add(diag.CategoryStructural, st.name, line,
				"Unmatched %s in paragraph %s: %s", keyword, st.name, text)
			return
		}
		if top.node.origin != kind.Opener() {
			st.diags.Add(diag.CategoryStructural, st.name, line,
				"Mismatched %s for %s in paragraph %s: %s", keyword, top.node.origin, st.name, text)
			return
		}
		f := st.pop()
		st.result.Terminators = append(st.result.Terminators, Terminator{
			Kind:       kind,
			Line:       line,
			OpenerLine: f.node.Line,
		})
		if !f.placed {
			st.place(f.node)
		}

	case KindCall:
		node := newStatement(KindCall, line, text)
		meta := parseCall(text)
		if meta.program == "" {
			st.diags.Add(diag.CategoryMalformed, st.name, line,
				"Invalid CALL statement in paragraph %s: %s", st.name, text)
		} else {
			node.meta = meta
			node.Pseudocode = pseudocodeFor(node)
			target := constants.ExternalCallPrefix + meta.program
			st.addEdge(target)
			st.calls.add(meta.program)
		}
		st.place(node)

	case KindGoTo:
		node := newStatement(KindGoTo, line, text)
		dest := firstOperand(stripVerb(upper, "GO TO"))
		if dest == "" {
			st.diags.Add(diag.CategoryMalformed, st.name, line,
				"Invalid GO TO statement in paragraph %s: %s", st.name, text)
		} else {
			node.meta = &rawMeta{destination: dest}
			node.Pseudocode = pseudocodeFor(node)
			st.addEdge(dest)
			st.gotos.add(dest)
		}
		st.place(node)

	case KindOpen, KindRead, KindWrite, KindClose:
		node := newStatement(kind, line, text)
		if name := fileOperand(kind, upper); name != "" {
			node.meta = &rawMeta{file: name, description: s.lookupFile(name)}
		}
		st.place(node)

	default:
		st.place(newStatement(kind, line, text))
	}
}

func (s *Structurer) lookupFile(name string) *FileDescription {
	if s.files == nil {
		return nil
	}
	if fd := s.files.Lookup(name); fd != nil {
		return fd
	}
	// WRITE names a record; find the FD that owns it
	for _, fd := range s.files.Ordered() {
		for _, rec := range fd.Records {
			if rec.Name == name {
				return fd
			}
		}
	}
	return nil
}

func (st *paragraphState) top() *frame {
	if len(st.stack) == 0 {
		return nil
	}
	return st.stack[len(st.stack)-1]
}

func (st *paragraphState) push(f *frame) {
	st.stack = append(st.stack, f)
}

func (st *paragraphState) pop() *frame {
	f := st.stack[len(st.stack)-1]
	st.stack = st.stack[:len(st.stack)-1]
	return f
}

// place inserts a finished node into the active child list of the open block,
// or into the paragraph's top-level list when no block is open
func (st *paragraphState) place(node *Statement) {
	f := st.top()
	if f == nil {
		st.result.Statements = append(st.result.Statements, node)
		return
	}
	switch {
	case f.phase == phaseCases:
		f.node.Cases = append(f.node.Cases, node)
	case f.phase == phaseThen || len(f.node.Then) == 0:
		f.node.Then = append(f.node.Then, node)
	default:
		f.node.Else = append(f.node.Else, node)
	}
}

func (st *paragraphState) addEdge(target string) {
	st.result.Targets = append(st.result.Targets, target)
}

// performClauseWords cannot be a PERFORM target
var performClauseWords = map[string]bool{
	"UNTIL": true, "VARYING": true, "WITH": true, "TEST": true, "TIMES": true,
}

// parsePerform reads PERFORM target, target THRU target2, and VARYING clauses
func parsePerform(upper string) *rawMeta {
	parts := strings.Fields(strings.TrimSuffix(upper, "."))
	meta := &rawMeta{}
	if len(parts) < 2 {
		return meta
	}

	for i, p := range parts {
		if p == "VARYING" {
			meta.varying = parseVarying(parts[i+1:])
			return meta
		}
	}

	if len(parts) >= 4 && (parts[2] == "THRU" || parts[2] == "THROUGH") {
		meta.target = parts[1]
		meta.thru = parts[3]
		return meta
	}

	if performClauseWords[parts[1]] || (len(parts) > 2 && parts[2] == "TIMES") {
		return meta
	}
	meta.target = parts[1]
	return meta
}

// parseVarying reads `var FROM x BY y [UNTIL cond]`
func parseVarying(parts []string) *varyingClause {
	v := &varyingClause{}
	section := "variable"
	var buf []string
	flush := func() {
		value := strings.Join(buf, " ")
		switch section {
		case "variable":
			v.variable = value
		case "FROM":
			v.from = value
		case "BY":
			v.by = value
		case "UNTIL":
			v.until = value
		}
		buf = nil
	}
	for _, p := range parts {
		switch {
		case p == "FROM" || p == "BY" || (p == "UNTIL" && section != "UNTIL"):
			flush()
			section = p
		default:
			buf = append(buf, p)
		}
	}
	flush()
	return v
}

func performTargets(meta *rawMeta) []string {
	if meta == nil || meta.varying != nil || meta.target == "" {
		return nil
	}
	if meta.thru != "" {
		return []string{meta.target, meta.thru}
	}
	return []string{meta.target}
}

// callArgSkip are USING qualifiers, not arguments
var callArgSkip = map[string]bool{
	"BY": true, "REFERENCE": true, "CONTENT": true, "VALUE": true,
}

// callArgStop ends the USING list
var callArgStop = map[string]bool{
	"RETURNING": true, "ON": true, "END-CALL": true, "NOT": true,
}

// parseCall reads `CALL 'name' [USING arg...]`
func parseCall(text string) *rawMeta {
	tokens := strings.Fields(strings.TrimSuffix(text, "."))
	meta := &rawMeta{}
	if len(tokens) < 2 {
		return meta
	}
	meta.program = strings.ToUpper(strings.Trim(tokens[1], `'".`))
	if meta.program == "USING" {
		meta.program = ""
		return meta
	}

	using := false
	for _, tok := range tokens[2:] {
		upper := strings.ToUpper(tok)
		if upper == "USING" {
			using = true
			continue
		}
		if !using || callArgSkip[upper] {
			continue
		}
		if callArgStop[upper] {
			break
		}
		if arg := strings.Trim(tok, `'".,`); arg != "" {
			meta.args = append(meta.args, arg)
		}
	}
	return meta
}

// openModes precede file names in OPEN
var openModes = map[string]bool{
	"INPUT": true, "OUTPUT": true, "I-O": true, "EXTEND": true,
}

// fileOperand returns the file (or record) name of a file statement
func fileOperand(kind StatementKind, upper string) string {
	tokens := strings.Fields(upper)
	if len(tokens) < 2 {
		return ""
	}
	for _, tok := range tokens[1:] {
		if kind == KindOpen && openModes[tok] {
			continue
		}
		return strings.Trim(tok, `.,`)
	}
	return ""
}

// firstOperand returns the first token with periods and commas stripped
func firstOperand(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], `.,`)
}

// orderedSet is an insertion-ordered, duplicate-free string set
type orderedSet struct {
	items []string
	seen  map[string]bool
}

func (o *orderedSet) add(v string) bool {
	if o.seen == nil {
		o.seen = make(map[string]bool)
	}
	if o.seen[v] {
		return false
	}
	o.seen[v] = true
	o.items = append(o.items, v)
	return true
}
