package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/internal/constants"
)

// OutputFormatterImpl implements the OutputFormatter interface
type OutputFormatterImpl struct {
	sortBy      domain.SortCriteria
	showDetails bool
}

// NewOutputFormatter creates a new output formatter
func NewOutputFormatter() *OutputFormatterImpl {
	return &OutputFormatterImpl{sortBy: domain.SortByLine}
}

// WithSort sets the paragraph order used by the text format
func (f *OutputFormatterImpl) WithSort(sortBy domain.SortCriteria) *OutputFormatterImpl {
	if sortBy != "" {
		f.sortBy = sortBy
	}
	return f
}

// WithDetails makes the text format print statement trees
func (f *OutputFormatterImpl) WithDetails(show bool) *OutputFormatterImpl {
	f.showDetails = show
	return f
}

// WriteJSON writes data as JSON to the writer
func WriteJSON(writer io.Writer, data interface{}) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// WriteYAML writes data as YAML to the writer
func WriteYAML(writer io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

// Format formats the analysis response and returns it as a string
func (f *OutputFormatterImpl) Format(response *domain.AnalyzeResponse, format domain.OutputFormat) (string, error) {
	var buf bytes.Buffer
	if err := f.Write(response, format, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Write writes the analysis response in the specified format
func (f *OutputFormatterImpl) Write(response *domain.AnalyzeResponse, format domain.OutputFormat, writer io.Writer) error {
	if response == nil {
		return domain.NewOutputError("nil response", nil)
	}

	switch format {
	case domain.OutputFormatJSON:
		return WriteJSON(writer, response)
	case domain.OutputFormatYAML:
		return WriteYAML(writer, response)
	case domain.OutputFormatText, "":
		return f.writeText(response, writer)
	case domain.OutputFormatHTML:
		return f.WriteHTML(response, writer)
	case domain.OutputFormatMermaid:
		mermaid := NewMermaidFormatter()
		for _, p := range response.Programs {
			fmt.Fprintf(writer, "%%%% %s (%s)\n", p.ProgramID, p.FilePath)
			if err := mermaid.WriteCallGraph(p, writer); err != nil {
				return err
			}
			fmt.Fprintln(writer)
		}
		return nil
	case domain.OutputFormatDOT:
		dot := NewDOTFormatter(nil)
		for _, p := range response.Programs {
			if err := dot.WriteCFG(p, writer); err != nil {
				return err
			}
		}
		return nil
	default:
		return domain.NewUnsupportedFormatError(string(format))
	}
}

// WriteProgram writes a single program graph. Only the structured formats
// apply to a single program.
func (f *OutputFormatterImpl) WriteProgram(program *domain.ProgramGraph, format domain.OutputFormat, writer io.Writer) error {
	switch format {
	case domain.OutputFormatJSON:
		return WriteJSON(writer, program)
	case domain.OutputFormatYAML:
		return WriteYAML(writer, program)
	case domain.OutputFormatText, "":
		return f.writeText(&domain.AnalyzeResponse{Programs: []*domain.ProgramGraph{program}}, writer)
	case domain.OutputFormatHTML:
		return f.WriteHTML(&domain.AnalyzeResponse{Programs: []*domain.ProgramGraph{program}}, writer)
	default:
		return domain.NewUnsupportedFormatError(string(format))
	}
}

// textStyles are bound to the writer's color profile, so non-terminal
// writers receive plain text
type textStyles struct {
	title   lipgloss.Style
	heading lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	risk    map[domain.RiskLevel]lipgloss.Style
	diag    lipgloss.Style
}

func newTextStyles(writer io.Writer) textStyles {
	r := lipgloss.NewRenderer(writer)
	return textStyles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		label:   r.NewStyle().Foreground(lipgloss.Color("245")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("241")),
		risk: map[domain.RiskLevel]lipgloss.Style{
			domain.RiskLevelLow:    r.NewStyle().Foreground(lipgloss.Color("42")),
			domain.RiskLevelMedium: r.NewStyle().Foreground(lipgloss.Color("214")),
			domain.RiskLevelHigh:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		},
		diag: r.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

// writeText writes the response as a human-readable report
func (f *OutputFormatterImpl) writeText(response *domain.AnalyzeResponse, writer io.Writer) error {
	st := newTextStyles(writer)

	fmt.Fprintf(writer, "\n%s\n", st.title.Render(fmt.Sprintf("=== %s Structure Report ===", constants.ToolName)))
	if response.GeneratedAt != "" {
		fmt.Fprintf(writer, "%s %s\n", st.label.Render("Generated:"), response.GeneratedAt)
	}
	if response.Version != "" {
		fmt.Fprintf(writer, "%s %s\n", st.label.Render("Version:"), response.Version)
	}
	fmt.Fprintln(writer)

	for _, p := range response.Programs {
		f.writeProgramText(p, writer, st)
	}

	if len(response.Programs) > 1 || response.Summary.ProgramsAnalyzed > 0 {
		s := response.Summary
		fmt.Fprintln(writer, st.heading.Render("Summary:"))
		fmt.Fprintf(writer, "  Programs analyzed: %d\n", s.ProgramsAnalyzed)
		if s.FilesFailed > 0 {
			fmt.Fprintf(writer, "  Files failed: %d\n", s.FilesFailed)
		}
		fmt.Fprintf(writer, "  Paragraphs: %d (%d unreachable)\n", s.TotalParagraphs, s.UnreachableParagraphs)
		fmt.Fprintf(writer, "  Statements: %d\n", s.TotalStatements)
		fmt.Fprintf(writer, "  Copybooks: %d\n", s.Copybooks)
		fmt.Fprintf(writer, "  Average complexity: %.2f\n", s.AverageComplexity)
		fmt.Fprintf(writer, "  Max complexity: %d\n", s.MaxComplexity)
		fmt.Fprintf(writer, "  Risk: %s %s %s\n",
			st.risk[domain.RiskLevelHigh].Render(fmt.Sprintf("high=%d", s.HighRiskParagraphs)),
			st.risk[domain.RiskLevelMedium].Render(fmt.Sprintf("medium=%d", s.MediumRiskParagraphs)),
			st.risk[domain.RiskLevelLow].Render(fmt.Sprintf("low=%d", s.LowRiskParagraphs)))
		if len(s.DiagnosticsByCategory) > 0 {
			categories := make([]string, 0, len(s.DiagnosticsByCategory))
			for c := range s.DiagnosticsByCategory {
				categories = append(categories, c)
			}
			sort.Strings(categories)
			parts := make([]string, 0, len(categories))
			for _, c := range categories {
				parts = append(parts, fmt.Sprintf("%s=%d", c, s.DiagnosticsByCategory[c]))
			}
			fmt.Fprintf(writer, "  Diagnostics: %s\n", strings.Join(parts, " "))
		}
		fmt.Fprintln(writer)
	}

	if len(response.Errors) > 0 {
		fmt.Fprintln(writer, st.heading.Render("Errors:"))
		for _, e := range response.Errors {
			fmt.Fprintf(writer, "  - %s\n", e)
		}
	}
	return nil
}

func (f *OutputFormatterImpl) writeProgramText(p *domain.ProgramGraph, writer io.Writer, st textStyles) {
	fmt.Fprintf(writer, "%s %s\n", st.heading.Render("Program"), p.ProgramID)
	fmt.Fprintf(writer, "  %s %s\n", st.label.Render("File:"), p.FilePath)
	fmt.Fprintf(writer, "  %s %s\n", st.label.Render("Entry:"), p.EntryParagraph)
	fmt.Fprintf(writer, "  %s %d\n", st.label.Render("Complexity:"), p.Complexity)
	if len(p.Copybooks) > 0 {
		fmt.Fprintf(writer, "  %s %s\n", st.label.Render("Copybooks:"), strings.Join(p.Copybooks, ", "))
	}

	fmt.Fprintf(writer, "\n  Paragraphs (sorted by %s):\n", f.sortBy)
	for _, para := range f.sortParagraphs(p.Paragraphs) {
		risk := para.RiskLevel
		if risk == "" {
			risk = domain.RiskLevelLow
		}
		marker := ""
		if !para.Reachable {
			marker = st.muted.Render(" [unreachable]")
		}
		fmt.Fprintf(writer, "    %-30s line %-6d %s%s\n",
			para.Name, para.StartLine,
			st.risk[risk].Render(fmt.Sprintf("complexity=%d (%s)", para.Complexity, risk)),
			marker)
		if targets := p.CallGraph[para.Name]; len(targets) > 0 {
			fmt.Fprintf(writer, "      %s %s\n", st.muted.Render("->"), strings.Join(targets, ", "))
		}
		if f.showDetails {
			writeStatementTree(writer, para.Statements, "      ")
		}
	}

	if len(p.Cycles) > 0 {
		fmt.Fprintln(writer, "\n  Cycles:")
		for _, c := range p.Cycles {
			fmt.Fprintf(writer, "    [%s] %s\n", c.Severity, c.Description)
		}
	}

	if len(p.DeadCode) > 0 {
		fmt.Fprintln(writer, "\n  Dead code:")
		for _, d := range p.DeadCode {
			fmt.Fprintf(writer, "    %s line %d-%d: %s [%s]\n", d.Paragraph, d.StartLine, d.EndLine, d.Reason, d.Severity)
		}
	}

	if len(p.Diagnostics) > 0 {
		fmt.Fprintln(writer, "\n  Diagnostics:")
		for _, d := range p.Diagnostics {
			fmt.Fprintf(writer, "    %s line %d %s: %s\n",
				st.diag.Render("["+d.Category+"]"), d.Line, d.Subject, d.Message)
		}
	}
	fmt.Fprintln(writer)
}

// writeStatementTree prints pseudocode with one indent level per block
func writeStatementTree(writer io.Writer, nodes []*domain.StatementNode, indent string) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		text := n.Pseudocode
		if text == "" {
			text = n.Content
		}
		fmt.Fprintf(writer, "%s%5d  %s\n", indent, n.Line, text)
		writeStatementTree(writer, n.Then, indent+"  ")
		if len(n.Else) > 0 {
			fmt.Fprintf(writer, "%s       else\n", indent)
			writeStatementTree(writer, n.Else, indent+"  ")
		}
		writeStatementTree(writer, n.Cases, indent+"  ")
	}
}

// sortParagraphs returns a sorted copy; source order is kept for ties
func (f *OutputFormatterImpl) sortParagraphs(paragraphs []domain.ParagraphNode) []domain.ParagraphNode {
	sorted := append([]domain.ParagraphNode(nil), paragraphs...)
	switch f.sortBy {
	case domain.SortByComplexity:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Complexity > sorted[j].Complexity
		})
	case domain.SortByName:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Name < sorted[j].Name
		})
	case domain.SortByLine:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].StartLine < sorted[j].StartLine
		})
	}
	return sorted
}
