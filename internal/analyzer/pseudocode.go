package analyzer

import (
	"strings"
)

// Pseudocode renders a C-like line for a statement of the given kind.
// Descriptor-dependent kinds (PERFORM, CALL, GO TO) fall back to the raw text.
func Pseudocode(kind StatementKind, content string) string {
	body := strings.TrimSuffix(strings.TrimSpace(content), ".")

	switch kind {
	case KindMove:
		if src, dst, ok := splitKeyword(stripVerb(body, "MOVE"), "TO"); ok {
			return dst + " = " + src + ";"
		}
	case KindIf:
		return "if (" + stripVerb(body, "IF") + ") {"
	case KindElse:
		return "} else {"
	case KindEndIf, KindEndEvaluate, KindEndPerform:
		return "}"
	case KindPerform:
		return "call " + stripVerb(body, "PERFORM") + ";"
	case KindAdd:
		return stripVerb(body, "ADD") + ";"
	case KindSubtract:
		return stripVerb(body, "SUBTRACT") + ";"
	case KindRead:
		return "read_file(" + stripVerb(body, "READ") + ");"
	case KindWrite:
		return "write_file(" + stripVerb(body, "WRITE") + ");"
	case KindOpen:
		return "open_file(" + stripVerb(body, "OPEN") + ");"
	case KindClose:
		return "close_file(" + stripVerb(body, "CLOSE") + ");"
	case KindInspect:
		return "inspect(" + stripVerb(body, "INSPECT") + ");"
	case KindEvaluate:
		return "switch (" + stripVerb(body, "EVALUATE") + ") {"
	case KindWhen:
		return "case " + stripVerb(body, "WHEN") + ":"
	case KindGoTo:
		return "goto " + stripVerb(body, "GO TO") + ";"
	}
	return body + ";"
}

// pseudocodeFor renders pseudocode using the parsed raw metadata when present
func pseudocodeFor(s *Statement) string {
	if s.meta == nil {
		return Pseudocode(s.Kind, s.Content)
	}
	m := s.meta
	switch s.Kind {
	case KindPerform:
		switch {
		case m.varying != nil:
			v := m.varying
			clause := v.variable + " = " + v.from + "; "
			if v.until != "" {
				clause += "!(" + v.until + ")"
			}
			clause += "; " + v.variable + " += " + v.by
			return "for (" + clause + ") {"
		case m.thru != "":
			return "call " + m.target + " thru " + m.thru + ";"
		}
	case KindCall:
		if m.program != "" {
			return "call_program(" + m.program + "([" + strings.Join(m.args, ", ") + "]));"
		}
	case KindGoTo:
		if m.destination != "" {
			return "goto " + m.destination + ";"
		}
	}
	return Pseudocode(s.Kind, s.Content)
}

// stripVerb removes a leading verb (case-insensitive) and surrounding space
func stripVerb(text, verb string) string {
	if len(text) >= len(verb) && strings.EqualFold(text[:len(verb)], verb) {
		return strings.TrimSpace(text[len(verb):])
	}
	return strings.TrimSpace(text)
}

// splitKeyword splits text around the first standalone keyword
func splitKeyword(text, keyword string) (string, string, bool) {
	fields := strings.Fields(text)
	for i, f := range fields {
		if strings.EqualFold(f, keyword) && i > 0 && i < len(fields)-1 {
			return strings.Join(fields[:i], " "), strings.Join(fields[i+1:], " "), true
		}
	}
	return "", "", false
}

// collapseWhitespace trims and collapses runs of whitespace to one space
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
