package analyzer

import (
	"fmt"
	"sort"
	"strings"
)

// CycleSeverity grades a paragraph cycle by size
type CycleSeverity string

const (
	CycleSeverityLow      CycleSeverity = "low"
	CycleSeverityMedium   CycleSeverity = "medium"
	CycleSeverityHigh     CycleSeverity = "high"
	CycleSeverityCritical CycleSeverity = "critical"
)

// ParagraphCycle is a set of paragraphs that reach each other through
// PERFORM or GO TO edges
type ParagraphCycle struct {
	Paragraphs  []string
	Edges       [][2]string
	Size        int
	Severity    CycleSeverity
	Description string
}

// RecursionDetector finds paragraph cycles using Tarjan's algorithm
type RecursionDetector struct {
	// Tarjan's algorithm state (reset on each detection)
	index    int
	stack    []string
	indices  map[string]int
	lowlinks map[string]int
	onStack  map[string]bool
	sccs     [][]string
}

// NewRecursionDetector creates a new RecursionDetector
func NewRecursionDetector() *RecursionDetector {
	return &RecursionDetector{}
}

// DetectCycles returns every strongly connected group of paragraphs with more
// than one member, plus paragraphs that target themselves. External calls are
// ignored.
func (d *RecursionDetector) DetectCycles(graph *CallGraph) []ParagraphCycle {
	if graph == nil || len(graph.order) == 0 {
		return []ParagraphCycle{}
	}

	cycles := []ParagraphCycle{}
	for _, scc := range d.tarjanSCC(graph) {
		if len(scc) > 1 || selfLoop(graph, scc[0]) {
			cycles = append(cycles, d.buildCycleInfo(scc, graph))
		}
	}

	// deterministic order: larger cycles first, then by first member
	sort.SliceStable(cycles, func(i, j int) bool {
		if cycles[i].Size != cycles[j].Size {
			return cycles[i].Size > cycles[j].Size
		}
		return cycles[i].Paragraphs[0] < cycles[j].Paragraphs[0]
	})
	return cycles
}

func selfLoop(graph *CallGraph, name string) bool {
	for _, t := range graph.Targets(name) {
		if t == name {
			return true
		}
	}
	return false
}

func (d *RecursionDetector) tarjanSCC(graph *CallGraph) [][]string {
	d.index = 0
	d.stack = make([]string, 0)
	d.indices = make(map[string]int)
	d.lowlinks = make(map[string]int)
	d.onStack = make(map[string]bool)
	d.sccs = make([][]string, 0)

	nodeIDs := graph.Paragraphs()
	sort.Strings(nodeIDs)

	for _, nodeID := range nodeIDs {
		if _, visited := d.indices[nodeID]; !visited {
			d.strongconnect(nodeID, graph)
		}
	}

	return d.sccs
}

func (d *RecursionDetector) strongconnect(v string, graph *CallGraph) {
	d.indices[v] = d.index
	d.lowlinks[v] = d.index
	d.index++
	d.stack = append(d.stack, v)
	d.onStack[v] = true

	for _, w := range graph.Targets(v) {
		// external programs and unknown paragraphs are leaves
		if IsExternal(w) || !graph.HasParagraph(w) {
			continue
		}

		if _, visited := d.indices[w]; !visited {
			d.strongconnect(w, graph)
			d.lowlinks[v] = min(d.lowlinks[v], d.lowlinks[w])
		} else if d.onStack[w] {
			d.lowlinks[v] = min(d.lowlinks[v], d.indices[w])
		}
	}

	if d.lowlinks[v] == d.indices[v] {
		scc := make([]string, 0)
		for {
			w := d.stack[len(d.stack)-1]
			d.stack = d.stack[:len(d.stack)-1]
			d.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		sort.Strings(scc)
		d.sccs = append(d.sccs, scc)
	}
}

func (d *RecursionDetector) buildCycleInfo(scc []string, graph *CallGraph) ParagraphCycle {
	members := make(map[string]bool, len(scc))
	for _, p := range scc {
		members[p] = true
	}

	var edges [][2]string
	for _, from := range scc {
		for _, to := range graph.Targets(from) {
			if members[to] {
				edges = append(edges, [2]string{from, to})
			}
		}
	}

	return ParagraphCycle{
		Paragraphs:  scc,
		Edges:       edges,
		Size:        len(scc),
		Severity:    cycleSeverity(len(scc)),
		Description: fmt.Sprintf("Paragraph cycle involving %d paragraphs: %s", len(scc), strings.Join(scc, " <-> ")),
	}
}

func cycleSeverity(size int) CycleSeverity {
	switch {
	case size <= 2:
		return CycleSeverityLow
	case size <= 4:
		return CycleSeverityMedium
	case size <= 6:
		return CycleSeverityHigh
	default:
		return CycleSeverityCritical
	}
}
