package parser

import (
	"strings"
)

type lineKind int

const (
	lineBlank lineKind = iota
	lineComment
	lineContinuation
	lineCode
)

// sourceLine is one physical line reduced to its program text
type sourceLine struct {
	kind lineKind
	text string
	line int
}

// normalizeLine strips the fixed-format sequence and indicator areas, the
// identification area of numbered lines, and inline `*>` comments
func normalizeLine(raw string, line int) sourceLine {
	raw = strings.TrimRight(raw, "\r")
	body := raw

	if len(raw) >= 7 && isSequenceArea(raw[:6]) {
		body = raw[7:]
		if hasSequenceNumber(raw[:6]) && len(raw) > 72 {
			body = raw[7:72]
		}
		switch raw[6] {
		case '*', '/', 'D', 'd':
			return sourceLine{kind: lineComment, line: line}
		case '-':
			return sourceLine{kind: lineContinuation, text: strings.TrimSpace(stripInlineComment(body)), line: line}
		}
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return sourceLine{kind: lineBlank, line: line}
	}
	if strings.HasPrefix(trimmed, "*>") {
		return sourceLine{kind: lineComment, line: line}
	}
	trimmed = strings.TrimSpace(stripInlineComment(trimmed))
	if trimmed == "" {
		return sourceLine{kind: lineComment, line: line}
	}
	return sourceLine{kind: lineCode, text: collapseSpaces(trimmed), line: line}
}

func isSequenceArea(s string) bool {
	for _, r := range s {
		if r != ' ' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func hasSequenceNumber(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// stripInlineComment cuts the text at the first `*>` outside a literal
func stripInlineComment(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '*' && i+1 < len(s) && s[i+1] == '>':
			return s[:i]
		}
	}
	return s
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// endsSentence reports a separator period outside any literal
func endsSentence(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, ".") {
		return false
	}
	var quote byte
	for i := 0; i < len(s)-1; i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		}
	}
	return quote == 0
}

// tokenize splits on whitespace, keeping quoted literals whole
func tokenize(s string) []string {
	var (
		tokens []string
		cur    strings.Builder
		quote  byte
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

// splitStatements breaks a statement line before every split keyword that is
// not at its start. A keyword followed later on the line by USING or WHEN
// does not split. Hyphens are part of a word, so END-IF never matches IF.
func splitStatements(text string, keywords [][]string) []string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	upper := make([]string, len(tokens))
	for i, tok := range tokens {
		upper[i] = strings.ToUpper(strings.TrimSuffix(tok, "."))
	}

	var out []string
	start := 0
	for i := 1; i < len(tokens); i++ {
		kwLen := matchKeywordAt(upper, i, keywords)
		if kwLen == 0 || guardedAfter(upper[i+kwLen:]) {
			continue
		}
		out = append(out, strings.Join(tokens[start:i], " "))
		start = i
	}
	return append(out, strings.Join(tokens[start:], " "))
}

func matchKeywordAt(upper []string, i int, keywords [][]string) int {
	for _, kw := range keywords {
		if i+len(kw) > len(upper) {
			continue
		}
		match := true
		for j, w := range kw {
			if upper[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return len(kw)
		}
	}
	return 0
}

func guardedAfter(rest []string) bool {
	for _, w := range rest {
		if w == "USING" || w == "WHEN" {
			return true
		}
	}
	return false
}
