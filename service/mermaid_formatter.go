package service

import (
	"fmt"
	"io"
	"strings"

	"github.com/ludo-technologies/cblscan/domain"
)

// MermaidFormatter renders call graphs and data flow as Mermaid flowcharts
type MermaidFormatter struct {
	// Direction is the flowchart direction (TD, LR, ...)
	Direction string
}

// NewMermaidFormatter creates a formatter with top-down layout
func NewMermaidFormatter() *MermaidFormatter {
	return &MermaidFormatter{Direction: "TD"}
}

// FormatCallGraph renders the paragraph call graph. External programs are
// drawn with the externalCall class.
func (f *MermaidFormatter) FormatCallGraph(p *domain.ProgramGraph) string {
	var sb strings.Builder
	_ = f.WriteCallGraph(p, &sb)
	return sb.String()
}

// WriteCallGraph writes the paragraph call graph to w
func (f *MermaidFormatter) WriteCallGraph(p *domain.ProgramGraph, w io.Writer) error {
	g := domain.BuildCallGraph(p)
	ids := newMermaidIDs()

	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %s\n", f.direction())

	for _, id := range g.NodeIDs() {
		node := g.GetNode(id)
		fmt.Fprintf(&sb, "  %s[\"%s\"]\n", ids.get(id, node.IsExternal), escapeMermaidLabel(node.Name))
	}
	for _, from := range g.NodeIDs() {
		for _, edge := range g.GetOutgoingEdges(from) {
			arrow := "-->"
			if edge.EdgeType == domain.EdgeTypeGoTo {
				arrow = "-.->"
			}
			fmt.Fprintf(&sb, "  %s %s %s\n", ids.get(edge.From, false), arrow, ids.get(edge.To, isExternal(edge.To)))
		}
	}
	for _, id := range g.NodeIDs() {
		node := g.GetNode(id)
		switch {
		case node.IsExternal:
			fmt.Fprintf(&sb, "  %s:::externalCall\n", ids.get(id, true))
		case !node.Reachable:
			fmt.Fprintf(&sb, "  %s:::unreachable\n", ids.get(id, false))
		}
	}

	sb.WriteString("\nclassDef externalCall fill:#fdd,stroke:#d00;\n")
	sb.WriteString("classDef unreachable fill:#eee,stroke:#999,stroke-dasharray: 4 2;\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatDataFlow renders variable movements. Movements without sources
// start at INPUT and movements without a target end at EXTERNAL.
func (f *MermaidFormatter) FormatDataFlow(p *domain.ProgramGraph) string {
	var sb strings.Builder
	_ = f.WriteDataFlow(p, &sb)
	return sb.String()
}

// WriteDataFlow writes the data flow graph to w
func (f *MermaidFormatter) WriteDataFlow(p *domain.ProgramGraph, w io.Writer) error {
	ids := newMermaidIDs()
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %s\n", f.direction())

	if p != nil {
		for _, m := range p.Movements {
			target := m.Target
			if target == "" {
				target = "EXTERNAL"
			}
			op := escapeMermaidLabel(m.Operation)
			for _, src := range m.Sources {
				fmt.Fprintf(&sb, "  %s -->|%s| %s\n", ids.get(src, false), op, ids.get(target, false))
			}
			if len(m.Sources) == 0 {
				fmt.Fprintf(&sb, "  INPUT -->|%s| %s\n", op, ids.get(target, false))
			}
		}
	}

	sb.WriteString("\nclassDef external fill:#fdd,stroke:#d00;\n")
	sb.WriteString("class INPUT,EXTERNAL external;\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func (f *MermaidFormatter) direction() string {
	if f.Direction == "" {
		return "TD"
	}
	return f.Direction
}

func isExternal(id string) bool {
	return strings.HasPrefix(id, domain.ExternalCallPrefix)
}

// mermaidIDs maps COBOL names to Mermaid-safe node identifiers
type mermaidIDs struct {
	byName map[string]string
	used   map[string]bool
}

func newMermaidIDs() *mermaidIDs {
	return &mermaidIDs{byName: make(map[string]string), used: make(map[string]bool)}
}

func (m *mermaidIDs) get(name string, external bool) string {
	if id, ok := m.byName[name]; ok {
		return id
	}
	base := sanitizeMermaidID(strings.TrimPrefix(name, domain.ExternalCallPrefix))
	if external {
		base = "CALL_" + base
	}
	id := base
	for i := 2; m.used[id]; i++ {
		id = fmt.Sprintf("%s_%d", base, i)
	}
	m.used[id] = true
	m.byName[name] = id
	return id
}

func sanitizeMermaidID(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

func escapeMermaidLabel(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "|", "#124;").Replace(s)
}
