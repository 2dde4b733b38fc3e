package analyzer

import (
	"time"
)

// ReachabilityResult contains the results of reachability analysis
type ReachabilityResult struct {
	Entry                 string
	ReachableParagraphs   []string
	UnreachableParagraphs []string
	TotalParagraphs       int
	ReachableCount        int
	UnreachableCount      int
	AnalysisTime          time.Duration
}

// ReachabilityAnalyzer walks a call graph from its entry paragraph
type ReachabilityAnalyzer struct {
	graph *CallGraph
}

func NewReachabilityAnalyzer(graph *CallGraph) *ReachabilityAnalyzer {
	return &ReachabilityAnalyzer{graph: graph}
}

// AnalyzeReachability performs a depth-first walk from entry. External call
// targets are never traversed, and the entry is reachable by definition.
func (ra *ReachabilityAnalyzer) AnalyzeReachability(entry string) *ReachabilityResult {
	startTime := time.Now()

	result := &ReachabilityResult{
		Entry:                 entry,
		ReachableParagraphs:   []string{},
		UnreachableParagraphs: []string{},
	}

	if ra.graph == nil {
		result.AnalysisTime = time.Since(startTime)
		return result
	}

	paragraphs := ra.graph.Paragraphs()
	result.TotalParagraphs = len(paragraphs)

	visited := make(map[string]bool)
	ra.traverseFrom(entry, visited, &result.ReachableParagraphs)

	for _, name := range paragraphs {
		if !visited[name] {
			result.UnreachableParagraphs = append(result.UnreachableParagraphs, name)
		}
	}

	result.ReachableCount = len(result.ReachableParagraphs)
	result.UnreachableCount = len(result.UnreachableParagraphs)
	result.AnalysisTime = time.Since(startTime)

	return result
}

func (ra *ReachabilityAnalyzer) traverseFrom(name string, visited map[string]bool, reachable *[]string) {
	if visited[name] || IsExternal(name) {
		return
	}
	visited[name] = true
	// targets that name no known paragraph are walked but not reported
	if ra.graph.HasParagraph(name) {
		*reachable = append(*reachable, name)
	}

	for _, target := range ra.graph.Targets(name) {
		ra.traverseFrom(target, visited, reachable)
	}
}

// GetReachabilityRatio returns the share of paragraphs reachable from the entry
func (result *ReachabilityResult) GetReachabilityRatio() float64 {
	if result.TotalParagraphs == 0 {
		return 1.0
	}
	return float64(result.TotalParagraphs-result.UnreachableCount) / float64(result.TotalParagraphs)
}

// HasUnreachableCode reports whether any paragraph cannot be reached
func (result *ReachabilityResult) HasUnreachableCode() bool {
	return result.UnreachableCount > 0
}
