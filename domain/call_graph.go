package domain

import (
	"sort"
	"strings"
)

// CallEdgeType represents how control reaches the target
type CallEdgeType string

const (
	// EdgeTypePerform represents PERFORM target [THRU target]
	EdgeTypePerform CallEdgeType = "perform"

	// EdgeTypeGoTo represents GO TO target
	EdgeTypeGoTo CallEdgeType = "goto"

	// EdgeTypeCall represents CALL 'PROGRAM'
	EdgeTypeCall CallEdgeType = "call"
)

// ExternalCallPrefix namespaces external programs among paragraph names
const ExternalCallPrefix = "CALL::"

// CallNode represents a paragraph or an external program
type CallNode struct {
	// ID is the paragraph name, or CALL::NAME for external programs
	ID string `json:"id"`

	// Name is the display name (without the CALL:: prefix)
	Name string `json:"name"`

	// IsExternal marks CALL targets; they are never traversed
	IsExternal bool `json:"is_external"`

	// IsEntryPoint marks the paragraph reachability starts from
	IsEntryPoint bool `json:"is_entry_point"`

	// IsLeaf indicates if this node has no outgoing edges
	IsLeaf bool `json:"is_leaf"`

	Reachable  bool      `json:"reachable"`
	Complexity int       `json:"complexity,omitempty"`
	RiskLevel  RiskLevel `json:"risk_level,omitempty"`
}

// CallEdge represents a directed edge in the call graph
type CallEdge struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	EdgeType CallEdgeType `json:"edge_type"`
}

// CallGraph is the paragraph call graph enriched for rendering
type CallGraph struct {
	// Nodes maps node ID to CallNode
	Nodes map[string]*CallNode `json:"nodes"`

	// Edges maps source ID to its outgoing edges
	Edges map[string][]*CallEdge `json:"edges"`

	// ReverseEdges maps target ID to incoming edges
	ReverseEdges map[string][]*CallEdge `json:"-"`

	order []string
}

// NewCallGraph creates a new empty CallGraph
func NewCallGraph() *CallGraph {
	return &CallGraph{
		Nodes:        make(map[string]*CallNode),
		Edges:        make(map[string][]*CallEdge),
		ReverseEdges: make(map[string][]*CallEdge),
	}
}

// AddNode adds a node to the graph, keeping the first insertion position
func (g *CallGraph) AddNode(node *CallNode) {
	if node == nil {
		return
	}
	if _, exists := g.Nodes[node.ID]; !exists {
		g.order = append(g.order, node.ID)
	}
	g.Nodes[node.ID] = node
}

// AddEdge adds an edge to the graph and updates reverse edges
func (g *CallGraph) AddEdge(edge *CallEdge) {
	if edge == nil {
		return
	}
	g.Edges[edge.From] = append(g.Edges[edge.From], edge)
	g.ReverseEdges[edge.To] = append(g.ReverseEdges[edge.To], edge)
}

// GetNode returns a node by ID
func (g *CallGraph) GetNode(id string) *CallNode {
	return g.Nodes[id]
}

// GetOutgoingEdges returns all edges from a node
func (g *CallGraph) GetOutgoingEdges(nodeID string) []*CallEdge {
	return g.Edges[nodeID]
}

// GetIncomingEdges returns all edges to a node
func (g *CallGraph) GetIncomingEdges(nodeID string) []*CallEdge {
	return g.ReverseEdges[nodeID]
}

// NodeCount returns the number of nodes in the graph
func (g *CallGraph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the total number of edges in the graph
func (g *CallGraph) EdgeCount() int {
	count := 0
	for _, edges := range g.Edges {
		count += len(edges)
	}
	return count
}

// NodeIDs returns node IDs in insertion order
func (g *CallGraph) NodeIDs() []string {
	return append([]string(nil), g.order...)
}

// UpdateNodeFlags updates IsLeaf for all nodes
func (g *CallGraph) UpdateNodeFlags() {
	for _, node := range g.Nodes {
		node.IsLeaf = len(g.Edges[node.ID]) == 0
	}
}

// BuildCallGraph derives the rendering graph from a program. Paragraph nodes
// follow source order; targets that are not paragraphs follow in first-seen order.
func BuildCallGraph(p *ProgramGraph) *CallGraph {
	g := NewCallGraph()
	if p == nil {
		return g
	}

	unreachable := make(map[string]bool, len(p.Unreachable))
	for _, name := range p.Unreachable {
		unreachable[name] = true
	}

	addParagraph := func(name string) {
		if g.GetNode(name) != nil {
			return
		}
		node := &CallNode{
			ID:           name,
			Name:         name,
			IsEntryPoint: name == p.EntryParagraph,
			Reachable:    !unreachable[name],
		}
		if para := p.Paragraph(name); para != nil {
			node.Complexity = para.Complexity
			node.RiskLevel = para.RiskLevel
		}
		g.AddNode(node)
	}

	if p.EntryParagraph != "" {
		if _, ok := p.CallGraph[p.EntryParagraph]; ok || p.Paragraph(p.EntryParagraph) != nil {
			addParagraph(p.EntryParagraph)
		}
	}
	for _, para := range p.Paragraphs {
		addParagraph(para.Name)
	}
	sources := make([]string, 0, len(p.CallGraph))
	for from := range p.CallGraph {
		sources = append(sources, from)
	}
	sort.Strings(sources)
	for _, from := range sources {
		addParagraph(from)
	}

	order := g.NodeIDs()
	for _, from := range order {
		para := p.Paragraph(from)
		for _, to := range p.CallGraph[from] {
			edgeType := EdgeTypePerform
			switch {
			case strings.HasPrefix(to, ExternalCallPrefix):
				edgeType = EdgeTypeCall
				if node := g.GetNode(to); node == nil {
					g.AddNode(&CallNode{
						ID:         to,
						Name:       strings.TrimPrefix(to, ExternalCallPrefix),
						IsExternal: true,
						Reachable:  !unreachable[from],
					})
				} else if !unreachable[from] {
					node.Reachable = true
				}
			case para != nil && containsName(para.GoToTargets, to) && !containsName(para.PerformTargets, to):
				edgeType = EdgeTypeGoTo
			}
			if g.GetNode(to) == nil {
				// a target that is not a paragraph; reachability never lists it
				g.AddNode(&CallNode{ID: to, Name: to})
			}
			g.AddEdge(&CallEdge{From: from, To: to, EdgeType: edgeType})
		}
	}

	g.UpdateNodeFlags()
	return g
}

func containsName(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}
