package analyzer

import (
	"strings"
)

// Movement is one data movement between declared identifiers.
// Target is empty for statements that only read.
type Movement struct {
	Operation string
	Sources   []string
	Target    string
	Line      int
}

// ParagraphUsage lists the identifiers a paragraph reads and writes
type ParagraphUsage struct {
	Reads  []string
	Writes []string
}

// DataFlowTracker records variable movements and per-paragraph usage.
// Identifiers that are not declared are ignored.
type DataFlowTracker struct {
	declared  map[string]bool
	files     map[string]bool
	movements []Movement
	order     []string
	reads     map[string]*orderedSet
	writes    map[string]*orderedSet
}

// NewDataFlowTracker creates a tracker over the declared variables and files
func NewDataFlowTracker(variables, files []string) *DataFlowTracker {
	t := &DataFlowTracker{
		declared: make(map[string]bool, len(variables)+len(files)),
		files:    make(map[string]bool, len(files)),
		reads:    make(map[string]*orderedSet),
		writes:   make(map[string]*orderedSet),
	}
	for _, v := range variables {
		t.declared[strings.ToUpper(v)] = true
	}
	for _, f := range files {
		f = strings.ToUpper(f)
		t.declared[f] = true
		t.files[f] = true
	}
	return t
}

// TrackAll records every statement of a paragraph tree in pre-order
func (t *DataFlowTracker) TrackAll(paragraph string, statements []*Statement) {
	WalkStatements(statements, func(s *Statement) bool {
		t.Track(paragraph, s.Content, s.Line)
		return true
	})
}

// Track records the movements of a single statement
func (t *DataFlowTracker) Track(paragraph, content string, line int) {
	t.ensureParagraph(paragraph)

	tokens := strings.Fields(strings.ToUpper(strings.TrimSpace(content)))
	if len(tokens) == 0 {
		return
	}
	verb, rest := tokens[0], tokens[1:]

	switch verb {
	case "MOVE":
		before, after := splitAt(rest, "TO")
		t.fanOut(paragraph, verb, line, t.identifiers(before), t.identifiers(after))

	case "ADD":
		t.arithmetic(paragraph, verb, line, rest, "TO")
	case "SUBTRACT":
		t.arithmetic(paragraph, verb, line, rest, "FROM")
	case "MULTIPLY":
		t.arithmetic(paragraph, verb, line, rest, "BY")
	case "DIVIDE":
		t.arithmetic(paragraph, verb, line, rest, "INTO")

	case "COMPUTE":
		expr := strings.NewReplacer("=", " = ", "+", " ", "*", " ", "/", " ", "(", " ", ")", " ").
			Replace(strings.ToUpper(strings.Join(rest, " ")))
		before, after := splitAt(strings.Fields(expr), "=")
		t.fanOut(paragraph, verb, line, t.identifiers(after), t.identifiers(before))

	case "ACCEPT", "INITIALIZE":
		t.fanOut(paragraph, verb, line, nil, t.identifiers(rest))

	case "STRING":
		before, after := splitAt(rest, "INTO")
		t.fanOut(paragraph, verb, line, t.identifiers(before), firstOnly(t.identifiers(after)))

	case "UNSTRING":
		before, after := splitAt(rest, "INTO")
		t.fanOut(paragraph, verb, line, firstOnly(t.identifiers(before)), t.identifiers(after))

	case "READ":
		before, after := splitAt(rest, "INTO")
		file := ""
		if ids := t.identifiers(firstOnly(before)); len(ids) > 0 && t.files[ids[0]] {
			file = ids[0]
			t.record(paragraph, Movement{Operation: verb, Sources: []string{}, Target: file, Line: line})
		}
		if file != "" {
			t.fanOut(paragraph, verb, line, []string{file}, firstOnly(t.identifiers(after)))
		}

	case "WRITE", "INSPECT":
		if sources := t.identifiers(rest); len(sources) > 0 {
			t.record(paragraph, Movement{Operation: verb, Sources: sources, Line: line})
		}

	case "CALL":
		meta := parseCall(content)
		if meta.program == "" {
			return
		}
		for _, arg := range meta.args {
			if ids := t.identifiers([]string{strings.ToUpper(arg)}); len(ids) == 1 {
				t.record(paragraph, Movement{Operation: verb, Sources: ids, Target: meta.program, Line: line})
			}
		}
	}
}

// arithmetic handles `VERB a.. KEYWORD b.. [GIVING c..]`. Without GIVING the
// operands after the keyword are both read and written.
func (t *DataFlowTracker) arithmetic(paragraph, verb string, line int, rest []string, keyword string) {
	operands, giving := splitAt(rest, "GIVING")
	before, after := splitAt(operands, keyword)
	if after == nil && verb == "DIVIDE" {
		before, after = splitAt(operands, "BY")
	}

	sources := t.identifiers(before)
	if len(giving) > 0 {
		sources = appendUnique(sources, t.identifiers(after)...)
		t.fanOut(paragraph, verb, line, sources, t.identifiers(giving))
		return
	}
	targets := t.identifiers(after)
	for _, target := range targets {
		t.record(paragraph, Movement{
			Operation: verb,
			Sources:   appendUnique(append([]string{}, sources...), target),
			Target:    target,
			Line:      line,
		})
	}
}

// fanOut records one movement per target
func (t *DataFlowTracker) fanOut(paragraph, verb string, line int, sources, targets []string) {
	if sources == nil {
		sources = []string{}
	}
	for _, target := range targets {
		t.record(paragraph, Movement{Operation: verb, Sources: sources, Target: target, Line: line})
	}
	if len(targets) == 0 && len(sources) > 0 {
		for _, s := range sources {
			t.reads[paragraph].add(s)
		}
	}
}

func (t *DataFlowTracker) record(paragraph string, m Movement) {
	t.ensureParagraph(paragraph)
	t.movements = append(t.movements, m)
	for _, s := range m.Sources {
		if t.declared[s] {
			t.reads[paragraph].add(s)
		}
	}
	if m.Target != "" && t.declared[m.Target] {
		t.writes[paragraph].add(m.Target)
	}
}

func (t *DataFlowTracker) ensureParagraph(paragraph string) {
	if _, ok := t.reads[paragraph]; ok {
		return
	}
	t.order = append(t.order, paragraph)
	t.reads[paragraph] = &orderedSet{}
	t.writes[paragraph] = &orderedSet{}
}

// identifiers keeps the declared names among tokens, stripping subscripts and
// trailing punctuation
func (t *DataFlowTracker) identifiers(tokens []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range tokens {
		name := normalizeIdentifier(tok)
		if name == "" || !t.declared[name] || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Movements returns all movements in discovery order
func (t *DataFlowTracker) Movements() []Movement {
	return append([]Movement{}, t.movements...)
}

// Usage returns the read and write sets of every tracked paragraph
func (t *DataFlowTracker) Usage() map[string]ParagraphUsage {
	out := make(map[string]ParagraphUsage, len(t.order))
	for _, p := range t.order {
		out[p] = ParagraphUsage{
			Reads:  append([]string{}, t.reads[p].items...),
			Writes: append([]string{}, t.writes[p].items...),
		}
	}
	return out
}

// Paragraphs returns the tracked paragraphs in first-seen order
func (t *DataFlowTracker) Paragraphs() []string {
	return append([]string(nil), t.order...)
}

func normalizeIdentifier(tok string) string {
	if i := strings.IndexByte(tok, '('); i >= 0 {
		tok = tok[:i]
	}
	return strings.TrimRight(tok, ".,;")
}

// splitAt splits tokens at the first occurrence of keyword. after is nil when
// the keyword is absent.
func splitAt(tokens []string, keyword string) (before, after []string) {
	for i, tok := range tokens {
		if tok == keyword {
			return tokens[:i], tokens[i+1:]
		}
	}
	return tokens, nil
}

func firstOnly(ids []string) []string {
	if len(ids) > 1 {
		return ids[:1]
	}
	return ids
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}
