package analyzer

import (
	"github.com/ludo-technologies/cblscan/internal/diag"
)

// para builds a paragraph whose statements sit on consecutive lines from start
func para(name string, start int, texts ...string) ParagraphInput {
	p := ParagraphInput{Name: name}
	for i, text := range texts {
		p.Lines = append(p.Lines, StatementLine{Text: text, Line: start + i})
	}
	return p
}

func structure(p ParagraphInput) (*ParagraphResult, *diag.List) {
	diags := diag.NewList()
	return NewStructurer(DefaultKeywordSet(), nil).Structure(p, diags), diags
}

// countNodes counts every node of a tree
func countNodes(list []*Statement) int {
	n := 0
	WalkStatements(list, func(*Statement) bool {
		n++
		return true
	})
	return n
}
