package service

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/internal/constants"
	"github.com/ludo-technologies/cblscan/internal/version"
)

// DOTFormatterConfig configures the DOT formatter behavior
type DOTFormatterConfig struct {
	// ClusterCycles groups recursive paragraphs in subgraphs
	ClusterCycles bool

	// ShowLegend includes a legend subgraph
	ShowLegend bool

	// ShowExternal draws CALL targets as nodes
	ShowExternal bool

	// MaxDepth filters by PERFORM/GO TO depth from the entry paragraph (0 = unlimited)
	MaxDepth int

	// MaxLabelLength truncates CFG statement labels (0 = unlimited)
	MaxLabelLength int

	// RankDir is the layout direction: TB, LR, BT, RL
	RankDir string
}

// DefaultDOTFormatterConfig returns a DOTFormatterConfig with sensible defaults
func DefaultDOTFormatterConfig() *DOTFormatterConfig {
	return &DOTFormatterConfig{
		ClusterCycles:  true,
		ShowLegend:     true,
		ShowExternal:   true,
		MaxDepth:       0,
		MaxLabelLength: 48,
		RankDir:        "TB",
	}
}

// DOTFormatter formats call graphs and control-flow graphs as DOT for Graphviz
type DOTFormatter struct {
	config *DOTFormatterConfig
}

// NewDOTFormatter creates a new DOT formatter with the given configuration
func NewDOTFormatter(config *DOTFormatterConfig) *DOTFormatter {
	if config == nil {
		config = DefaultDOTFormatterConfig()
	}
	return &DOTFormatter{config: config}
}

// nodeColors defines the color scheme for nodes based on risk level.
// This is effectively a constant map and should not be modified at runtime.
var nodeColors = map[domain.RiskLevel]struct {
	fill   string
	border string
}{
	domain.RiskLevelLow:    {fill: "#90EE90", border: "#228B22"},
	domain.RiskLevelMedium: {fill: "#FFD700", border: "#FFA500"},
	domain.RiskLevelHigh:   {fill: "#FF6B6B", border: "#DC143C"},
}

// edgeStyles defines the visual style for edges based on how control transfers.
// This is effectively a constant map and should not be modified at runtime.
var edgeStyles = map[domain.CallEdgeType]struct {
	style string
	arrow string
}{
	domain.EdgeTypePerform: {style: "solid", arrow: "normal"},
	domain.EdgeTypeGoTo:    {style: "dashed", arrow: "empty"},
	domain.EdgeTypeCall:    {style: "dotted", arrow: "odot"},
}

// validRankDirs contains the valid Graphviz rank directions
var validRankDirs = map[string]bool{
	"TB": true, // Top to Bottom
	"LR": true, // Left to Right
	"BT": true, // Bottom to Top
	"RL": true, // Right to Left
}

// FormatCallGraph formats a program's call graph as DOT and returns the string
func (f *DOTFormatter) FormatCallGraph(program *domain.ProgramGraph) (string, error) {
	var sb strings.Builder
	if err := f.WriteCallGraph(program, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteCallGraph writes a program's paragraph call graph as DOT to the writer
func (f *DOTFormatter) WriteCallGraph(program *domain.ProgramGraph, writer io.Writer) error {
	if program == nil {
		return fmt.Errorf("nil program")
	}
	if !validRankDirs[f.config.RankDir] {
		return fmt.Errorf("invalid rank direction %q: must be one of TB, LR, BT, RL", f.config.RankDir)
	}

	graph := domain.BuildCallGraph(program)
	filteredNodes := f.filterNodes(graph, program.EntryParagraph)

	f.writeHeader(writer, "Call Graph", program.ProgramID)
	fmt.Fprintln(writer, "digraph callgraph {")
	if len(filteredNodes) == 0 {
		fmt.Fprintln(writer, "    /* No paragraphs match the filter criteria */")
		fmt.Fprintln(writer, "}")
		return nil
	}
	fmt.Fprintf(writer, "    rankdir=%s;\n", f.config.RankDir)
	fmt.Fprintln(writer, "    node [shape=box, style=filled, fontname=\"Helvetica\"];")
	fmt.Fprintln(writer, "    edge [fontname=\"Helvetica\", fontsize=10];")
	fmt.Fprintln(writer)

	// paragraph -> cycle index
	cycleMembers := make(map[string]int)
	for i, cycle := range program.Cycles {
		for _, name := range cycle.Paragraphs {
			if _, exists := cycleMembers[name]; !exists {
				cycleMembers[name] = i
			}
		}
	}

	writtenNodes := make(map[string]bool)
	if f.config.ClusterCycles {
		for i, cycle := range program.Cycles {
			hasFilteredNodes := false
			for _, name := range cycle.Paragraphs {
				if filteredNodes[name] {
					hasFilteredNodes = true
					break
				}
			}
			if !hasFilteredNodes {
				continue
			}

			fmt.Fprintf(writer, "    // Cycle %d\n", i)
			fmt.Fprintf(writer, "    subgraph cluster_cycle_%d {\n", i)
			fmt.Fprintf(writer, "        label=\"Cycle: %s (%s)\";\n",
				escapeDOTLabel(f.formatCycleLabel(cycle)), cycle.Severity)
			fmt.Fprintln(writer, "        style=filled;")
			fmt.Fprintln(writer, "        fillcolor=\"#FFEEEE\";")
			fmt.Fprintln(writer, "        color=\"#DC143C\";")
			fmt.Fprintln(writer)

			for _, name := range cycle.Paragraphs {
				if !filteredNodes[name] || writtenNodes[name] {
					continue
				}
				if node := graph.GetNode(name); node != nil {
					f.writeNode(writer, node, "        ")
					writtenNodes[name] = true
				}
			}

			fmt.Fprintln(writer, "    }")
			fmt.Fprintln(writer)
		}
	}

	fmt.Fprintln(writer, "    // Paragraphs")
	for _, id := range graph.NodeIDs() {
		if !filteredNodes[id] || writtenNodes[id] {
			continue
		}
		f.writeNode(writer, graph.GetNode(id), "    ")
	}
	fmt.Fprintln(writer)

	fmt.Fprintln(writer, "    // Edges")
	f.writeEdges(writer, graph, filteredNodes, cycleMembers)
	fmt.Fprintln(writer)

	if f.config.ShowLegend {
		f.writeLegend(writer)
	}

	fmt.Fprintln(writer, "}")
	return nil
}

// FormatCFG formats a program's control-flow graph as DOT and returns the string
func (f *DOTFormatter) FormatCFG(program *domain.ProgramGraph) (string, error) {
	var sb strings.Builder
	if err := f.WriteCFG(program, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteCFG writes a program's line-level control-flow graph as DOT. Line
// nodes are labelled with the statement found on that line.
func (f *DOTFormatter) WriteCFG(program *domain.ProgramGraph, writer io.Writer) error {
	if program == nil {
		return fmt.Errorf("nil program")
	}
	if !validRankDirs[f.config.RankDir] {
		return fmt.Errorf("invalid rank direction %q: must be one of TB, LR, BT, RL", f.config.RankDir)
	}

	statements := indexStatementsByLine(program)
	paragraphs := make(map[string]bool, len(program.Paragraphs))
	for _, p := range program.Paragraphs {
		paragraphs[p.Name] = true
	}

	var nodes []string
	seen := make(map[string]bool)
	addNode := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			nodes = append(nodes, id)
		}
	}
	if program.CFG.Entry != constants.UnknownValue {
		addNode(program.CFG.Entry)
	}
	for _, e := range program.CFG.Edges {
		addNode(e.From)
		addNode(e.To)
	}

	f.writeHeader(writer, "Control Flow Graph", program.ProgramID)
	fmt.Fprintln(writer, "digraph cfg {")
	fmt.Fprintf(writer, "    rankdir=%s;\n", f.config.RankDir)
	fmt.Fprintln(writer, "    node [shape=box, style=rounded, fontname=\"Courier\"];")
	fmt.Fprintln(writer, "    edge [fontname=\"Helvetica\", fontsize=10];")
	fmt.Fprintln(writer)

	if len(nodes) == 0 {
		fmt.Fprintln(writer, "    /* Empty control flow graph */")
		fmt.Fprintln(writer, "}")
		return nil
	}

	for _, id := range nodes {
		attrs := cfgNodeAttributes(id, statements, paragraphs, f.config.MaxLabelLength)
		if id == program.CFG.Entry {
			attrs += ", penwidth=2, color=\"#228B22\""
		}
		fmt.Fprintf(writer, "    %s [%s];\n", escapeDOTID(id), attrs)
	}
	fmt.Fprintln(writer)

	for _, e := range program.CFG.Edges {
		fmt.Fprintf(writer, "    %s -> %s;\n", escapeDOTID(e.From), escapeDOTID(e.To))
	}
	fmt.Fprintln(writer, "}")
	return nil
}

func (f *DOTFormatter) writeHeader(writer io.Writer, title, programID string) {
	fmt.Fprintf(writer, "/* %s %s: %s - Generated: %s */\n",
		constants.ToolName, title, programID, time.Now().Format(time.RFC3339))
	fmt.Fprintf(writer, "/* Version: %s */\n", version.GetVersion())
}

// cfgNodeAttributes describes a LINE_n or paragraph node
func cfgNodeAttributes(id string, statements map[int]*domain.StatementNode, paragraphs map[string]bool, maxLen int) string {
	if strings.HasPrefix(id, constants.LinePrefix) {
		line, err := strconv.Atoi(strings.TrimPrefix(id, constants.LinePrefix))
		if err == nil {
			if stmt := statements[line]; stmt != nil {
				text := stmt.Content
				if maxLen > 0 && len(text) > maxLen {
					text = text[:maxLen] + "..."
				}
				return fmt.Sprintf("label=\"%d: %s\", tooltip=\"%s\"",
					line, escapeDOTLabel(text), escapeDOTLabel(stmt.Kind))
			}
			return fmt.Sprintf("label=\"%d\"", line)
		}
	}
	if paragraphs[id] {
		return fmt.Sprintf("label=\"%s\", shape=folder, style=filled, fillcolor=\"#E8F0FE\"", escapeDOTLabel(id))
	}
	return fmt.Sprintf("label=\"%s\", shape=ellipse, style=dashed", escapeDOTLabel(id))
}

// indexStatementsByLine keeps the first statement seen on each line
func indexStatementsByLine(program *domain.ProgramGraph) map[int]*domain.StatementNode {
	index := make(map[int]*domain.StatementNode)
	var walk func(nodes []*domain.StatementNode)
	walk = func(nodes []*domain.StatementNode) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			if _, exists := index[n.Line]; !exists {
				index[n.Line] = n
			}
			walk(n.Then)
			walk(n.Else)
			walk(n.Cases)
		}
	}
	for _, p := range program.Paragraphs {
		walk(p.Statements)
	}
	return index
}

// filterNodes returns the set of node IDs that pass the filter criteria
func (f *DOTFormatter) filterNodes(graph *domain.CallGraph, entry string) map[string]bool {
	result := make(map[string]bool)
	for id, node := range graph.Nodes {
		if node.IsExternal && !f.config.ShowExternal {
			continue
		}
		result[id] = true
	}

	if f.config.MaxDepth > 0 {
		result = f.filterByDepth(graph, entry, result)
	}
	return result
}

// filterByDepth keeps nodes within MaxDepth transfers of the entry paragraph
func (f *DOTFormatter) filterByDepth(graph *domain.CallGraph, entry string, nodes map[string]bool) map[string]bool {
	result := make(map[string]bool)
	if graph.GetNode(entry) == nil {
		return result
	}

	type item struct {
		id    string
		depth int
	}
	visited := map[string]bool{entry: true}
	queue := []item{{entry, 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth > f.config.MaxDepth {
			continue
		}
		if nodes[current.id] {
			result[current.id] = true
		}

		for _, edge := range graph.GetOutgoingEdges(current.id) {
			if !visited[edge.To] {
				visited[edge.To] = true
				queue = append(queue, item{edge.To, current.depth + 1})
			}
		}
	}
	return result
}

// writeNode writes a single paragraph or external program node
func (f *DOTFormatter) writeNode(writer io.Writer, node *domain.CallNode, indent string) {
	dotID := escapeDOTID(node.ID)
	label := node.Name
	if label == "" {
		label = node.ID
	}

	if node.IsExternal {
		fmt.Fprintf(writer, "%s%s [label=\"%s\", shape=component, fillcolor=\"#FFDDDD\", color=\"#DD0000\", tooltip=\"External program\"];\n",
			indent, dotID, escapeDOTLabel(label))
		return
	}

	riskLevel := node.RiskLevel
	colors, ok := nodeColors[riskLevel]
	if !ok {
		colors = nodeColors[domain.RiskLevelLow]
	}

	tooltip := fmt.Sprintf("Complexity: %d", node.Complexity)
	switch {
	case node.IsEntryPoint:
		tooltip = "Entry Paragraph\\n" + tooltip
	case !node.Reachable:
		tooltip = "Unreachable\\n" + tooltip
	case node.IsLeaf:
		tooltip = "Leaf Paragraph\\n" + tooltip
	}

	fmt.Fprintf(writer, "%s%s [label=\"%s\", fillcolor=\"%s\", color=\"%s\", tooltip=\"%s\"",
		indent, dotID, escapeDOTLabel(label), colors.fill, colors.border, tooltip)
	if node.IsEntryPoint {
		fmt.Fprint(writer, ", penwidth=2")
	}
	if !node.Reachable {
		fmt.Fprint(writer, ", style=\"filled,dashed\", fontcolor=\"#777777\"")
	}
	fmt.Fprintln(writer, "];")
}

// writeEdges writes all edges in source order
func (f *DOTFormatter) writeEdges(writer io.Writer, graph *domain.CallGraph, filteredNodes map[string]bool, cycleMembers map[string]int) {
	type edgeKey struct {
		from, to string
	}
	written := make(map[edgeKey]bool)

	for _, id := range graph.NodeIDs() {
		if !filteredNodes[id] {
			continue
		}
		for _, edge := range graph.GetOutgoingEdges(id) {
			key := edgeKey{edge.From, edge.To}
			if !filteredNodes[edge.To] || written[key] {
				continue
			}
			written[key] = true

			style, ok := edgeStyles[edge.EdgeType]
			if !ok {
				style = edgeStyles[domain.EdgeTypePerform]
			}

			fmt.Fprintf(writer, "    %s -> %s [style=%s, arrowhead=%s",
				escapeDOTID(edge.From), escapeDOTID(edge.To), style.style, style.arrow)

			fromCycle, fromInCycle := cycleMembers[edge.From]
			toCycle, toInCycle := cycleMembers[edge.To]
			if fromInCycle && toInCycle && fromCycle == toCycle {
				fmt.Fprint(writer, ", penwidth=2, color=\"#DC143C\"")
			}
			if edge.EdgeType != domain.EdgeTypePerform {
				fmt.Fprintf(writer, ", label=\"%s\"", edge.EdgeType)
			}
			fmt.Fprintln(writer, "];")
		}
	}
}

// writeLegend writes the legend subgraph
func (f *DOTFormatter) writeLegend(writer io.Writer) {
	fmt.Fprintln(writer, "    // Legend")
	fmt.Fprintln(writer, "    subgraph cluster_legend {")
	fmt.Fprintln(writer, "        label=\"Legend\";")
	fmt.Fprintln(writer, "        style=filled;")
	fmt.Fprintln(writer, "        fillcolor=\"#F5F5F5\";")
	fmt.Fprintln(writer, "        color=\"#CCCCCC\";")
	fmt.Fprintln(writer, "        fontsize=10;")
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "        // Risk levels")
	for _, level := range []domain.RiskLevel{domain.RiskLevelLow, domain.RiskLevelMedium, domain.RiskLevelHigh} {
		fmt.Fprintf(writer, "        legend_%s [label=\"%s Risk\", fillcolor=\"%s\", color=\"%s\"];\n",
			level, strings.ToUpper(string(level[:1]))+string(level[1:]), nodeColors[level].fill, nodeColors[level].border)
	}
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "        // Transfer types")
	for _, edgeType := range []domain.CallEdgeType{domain.EdgeTypePerform, domain.EdgeTypeGoTo, domain.EdgeTypeCall} {
		style := edgeStyles[edgeType]
		fmt.Fprintf(writer, "        legend_%s_a [label=\"\", style=invis, width=0, height=0];\n", edgeType)
		fmt.Fprintf(writer, "        legend_%s_b [label=\"%s\", style=invis, width=0, height=0];\n", edgeType, edgeType)
		fmt.Fprintf(writer, "        legend_%s_a -> legend_%s_b [style=%s, arrowhead=%s, label=\"%s\"];\n",
			edgeType, edgeType, style.style, style.arrow, edgeType)
	}
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "        // Cycle indicator")
	fmt.Fprintln(writer, "        legend_cycle_a [label=\"\", style=invis, width=0, height=0];")
	fmt.Fprintln(writer, "        legend_cycle_b [label=\"cycle\", style=invis, width=0, height=0];")
	fmt.Fprintln(writer, "        legend_cycle_a -> legend_cycle_b [penwidth=2, color=\"#DC143C\", label=\"cycle\"];")
	fmt.Fprintln(writer, "    }")
}

// formatCycleLabel creates a short label for a cycle
func (f *DOTFormatter) formatCycleLabel(cycle domain.Cycle) string {
	switch len(cycle.Paragraphs) {
	case 0:
		return "Empty Cycle"
	case 1:
		return cycle.Paragraphs[0] + " (self)"
	case 2:
		return fmt.Sprintf("%s <-> %s", cycle.Paragraphs[0], cycle.Paragraphs[1])
	}
	return fmt.Sprintf("%s -> ... (%d paragraphs)", cycle.Paragraphs[0], len(cycle.Paragraphs))
}

// escapeDOTID escapes a string for use as a DOT node ID
func escapeDOTID(id string) string {
	replacer := strings.NewReplacer(
		"/", "__",
		".", "_",
		"-", "_",
		"@", "_at_",
		" ", "_",
		":", "_",
		"(", "_",
		")", "_",
		"[", "_",
		"]", "_",
		"{", "_",
		"}", "_",
		"'", "_",
		"\"", "_",
	)
	escaped := replacer.Replace(id)

	// DOT IDs must start with a letter or underscore
	if len(escaped) > 0 && !isValidDOTIDStart(escaped[0]) {
		escaped = "_" + escaped
	}
	return escaped
}

// escapeDOTLabel escapes a string for use as a DOT label
func escapeDOTLabel(label string) string {
	// backslash first to avoid double-escaping
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
		"\r", "",
		"\t", "\\t",
	)
	return replacer.Replace(label)
}

// isValidDOTIDStart checks if a character can start a DOT ID
func isValidDOTIDStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
