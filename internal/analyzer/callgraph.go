package analyzer

import (
	"strings"

	"github.com/ludo-technologies/cblscan/internal/constants"
)

// CallGraph maps each paragraph to its ordered, duplicate-free targets.
// External programs appear as CALL::NAME leaves.
type CallGraph struct {
	order   []string
	targets map[string]*orderedSet
}

// NewCallGraph creates an empty call graph
func NewCallGraph() *CallGraph {
	return &CallGraph{targets: make(map[string]*orderedSet)}
}

// AddParagraph registers a paragraph even if it has no outgoing edges
func (g *CallGraph) AddParagraph(name string) {
	if _, ok := g.targets[name]; ok {
		return
	}
	g.order = append(g.order, name)
	g.targets[name] = &orderedSet{}
}

// AddEdge records from -> to. Repeated edges collapse into one.
func (g *CallGraph) AddEdge(from, to string) {
	g.AddParagraph(from)
	g.targets[from].add(to)
}

// Paragraphs returns the registered paragraphs in insertion order
func (g *CallGraph) Paragraphs() []string {
	return append([]string(nil), g.order...)
}

// Targets returns the targets of a paragraph in first-seen order
func (g *CallGraph) Targets(from string) []string {
	set, ok := g.targets[from]
	if !ok {
		return nil
	}
	return append([]string(nil), set.items...)
}

// HasParagraph reports whether name is a registered paragraph
func (g *CallGraph) HasParagraph(name string) bool {
	_, ok := g.targets[name]
	return ok
}

// EdgeCount returns the number of distinct edges
func (g *CallGraph) EdgeCount() int {
	n := 0
	for _, set := range g.targets {
		n += len(set.items)
	}
	return n
}

// Map returns the graph as paragraph -> targets. Every paragraph has a
// non-nil slice.
func (g *CallGraph) Map() map[string][]string {
	out := make(map[string][]string, len(g.order))
	for _, name := range g.order {
		targets := g.Targets(name)
		if targets == nil {
			targets = []string{}
		}
		out[name] = targets
	}
	return out
}

// IsExternal reports whether a target is an external program call
func IsExternal(target string) bool {
	return strings.HasPrefix(target, constants.ExternalCallPrefix)
}

// ExternalName strips the external call prefix
func ExternalName(target string) string {
	return strings.TrimPrefix(target, constants.ExternalCallPrefix)
}
