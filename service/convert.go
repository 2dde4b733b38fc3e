package service

import (
	"sort"

	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/internal/analyzer"
	"github.com/ludo-technologies/cblscan/internal/config"
	"github.com/ludo-technologies/cblscan/internal/diag"
	"github.com/ludo-technologies/cblscan/internal/parser"
)

// toProgramGraph converts the structured program into the output model
func toProgramGraph(filePath string, unit *parser.Unit, copybooks []string, program *analyzer.Program, main string, cc *config.ComplexityConfig) (*domain.ProgramGraph, error) {
	results, err := analyzer.NewComplexityAnalyzer(cc).AnalyzeProgram(program)
	if err != nil {
		return nil, err
	}

	graph := &domain.ProgramGraph{
		ProgramID:        program.ID,
		FilePath:         filePath,
		Copybooks:        nonNil(copybooks),
		Divisions:        nonNil(unit.Divisions),
		Sections:         nonNil(unit.Sections),
		WorkingStorage:   unit.WorkingStorage(),
		ParagraphOrigins: make(map[string]string, len(program.Paragraphs)),
		EntryParagraph:   main,
		CallGraph:        program.CallGraph.Map(),
		Unreachable:      nonNil(program.Reachability.UnreachableParagraphs),
		Usage:            make(map[string]domain.ParagraphUsage, len(program.Usage)),
		CFG:              toCFG(program.CFG),
		Complexity:       program.Complexity,
		Diagnostics:      toDiagnostics(program.Diagnostics),
	}

	unreachable := make(map[string]bool, len(graph.Unreachable))
	for _, name := range graph.Unreachable {
		unreachable[name] = true
	}

	metrics := make(map[string]*analyzer.ComplexityResult, len(results))
	for _, r := range results {
		metrics[r.ParagraphName] = r
	}

	for _, p := range program.Paragraphs {
		node := domain.ParagraphNode{
			Name:           p.Name,
			Complexity:     p.Complexity,
			Reachable:      !unreachable[p.Name],
			CallTargets:    p.CallTargets,
			PerformTargets: p.PerformTargets,
			GoToTargets:    p.GoToTargets,
			Statements:     toStatementNodes(p.Statements),
		}
		if m := metrics[p.Name]; m != nil {
			node.StartLine = m.StartLine
			node.NestingDepth = m.NestingDepth
			node.RiskLevel = domain.RiskLevel(m.RiskLevel)
		}
		if node.Statements == nil {
			node.Statements = []*domain.StatementNode{}
		}
		graph.Paragraphs = append(graph.Paragraphs, node)
		graph.ParagraphOrigins[p.Name] = program.ID
	}

	graph.Movements = make([]domain.Movement, 0, len(program.Movements))
	for _, m := range program.Movements {
		graph.Movements = append(graph.Movements, domain.Movement{
			Operation: m.Operation,
			Sources:   nonNil(m.Sources),
			Target:    m.Target,
			Line:      m.Line,
		})
	}
	for name, u := range program.Usage {
		graph.Usage[name] = domain.ParagraphUsage{Reads: nonNil(u.Reads), Writes: nonNil(u.Writes)}
	}

	for _, c := range program.Cycles {
		graph.Cycles = append(graph.Cycles, domain.Cycle{
			Paragraphs:  c.Paragraphs,
			Severity:    string(c.Severity),
			Description: c.Description,
		})
	}

	graph.FileControls = []domain.FileControl{}
	graph.FileDescriptions = []domain.FileDescription{}
	for _, entry := range program.Files.Controls {
		graph.FileControls = append(graph.FileControls, toFileControl(entry))
	}
	sort.Slice(graph.FileControls, func(i, j int) bool {
		if graph.FileControls[i].Line != graph.FileControls[j].Line {
			return graph.FileControls[i].Line < graph.FileControls[j].Line
		}
		return graph.FileControls[i].Name < graph.FileControls[j].Name
	})
	for _, fd := range program.Files.Ordered() {
		out := domain.FileDescription{
			Name:    fd.Name,
			Label:   fd.Label,
			Line:    fd.Line,
			Records: make([]domain.FileRecord, 0, len(fd.Records)),
		}
		for _, r := range fd.Records {
			out.Records = append(out.Records, domain.FileRecord(r))
		}
		if entry := program.Files.Control(fd); entry != nil {
			fc := toFileControl(entry)
			out.FileControl = &fc
		}
		graph.FileDescriptions = append(graph.FileDescriptions, out)
	}

	dead := analyzer.NewDeadCodeDetector(program).Detect()
	for _, f := range dead.Findings {
		graph.DeadCode = append(graph.DeadCode, domain.DeadCodeFinding{
			Paragraph:   f.Paragraph,
			StartLine:   f.StartLine,
			EndLine:     f.EndLine,
			Code:        f.Code,
			Reason:      string(f.Reason),
			Severity:    string(f.Severity),
			Description: f.Description,
		})
	}

	return graph, nil
}

func toFileControl(fc *analyzer.FileControlEntry) domain.FileControl {
	return domain.FileControl{
		Name:         fc.Name,
		Assign:       fc.Assign,
		Organization: fc.Organization,
		AccessMode:   fc.AccessMode,
		RecordKey:    fc.RecordKey,
		Select:       fc.Select,
		Line:         fc.Line,
	}
}

func toCFG(cfg *analyzer.CFG) domain.ControlFlowGraph {
	out := domain.ControlFlowGraph{Edges: []domain.CFGEdge{}}
	if cfg == nil {
		return out
	}
	out.Entry = cfg.Entry
	for _, e := range cfg.Edges {
		out.Edges = append(out.Edges, domain.CFGEdge{From: e.From, To: e.To})
	}
	return out
}

func toDiagnostics(items []diag.Diagnostic) []domain.Diagnostic {
	out := make([]domain.Diagnostic, 0, len(items))
	for _, d := range items {
		out = append(out, domain.Diagnostic{
			Subject:  d.Subject,
			Message:  d.Message,
			Line:     d.Line,
			Category: string(d.Category),
		})
	}
	return out
}

// toStatementNodes keeps the nil/empty distinction of child lists
func toStatementNodes(list []*analyzer.Statement) []*domain.StatementNode {
	if list == nil {
		return nil
	}
	out := make([]*domain.StatementNode, 0, len(list))
	for _, s := range list {
		if s == nil {
			continue
		}
		out = append(out, toStatementNode(s))
	}
	return out
}

func toStatementNode(s *analyzer.Statement) *domain.StatementNode {
	node := &domain.StatementNode{
		Kind:       string(s.Kind),
		Line:       s.Line,
		Content:    s.Content,
		Pseudocode: s.Pseudocode,
		Then:       toStatementNodes(s.Then),
		Else:       toStatementNodes(s.Else),
		Cases:      toStatementNodes(s.Cases),
	}

	switch d := s.Descriptor.(type) {
	case *analyzer.LoopDescriptor:
		node.Loop = &domain.LoopInfo{
			Variable:  d.Variable,
			From:      d.From,
			By:        d.By,
			Until:     d.Until,
			LoopLevel: d.LoopLevel,
			Parent:    d.Parent,
		}
	case *analyzer.PerformDescriptor:
		node.Perform = &domain.PerformInfo{Start: d.Start, End: d.End, LoopLevel: d.LoopLevel, Parent: d.Parent}
	case *analyzer.CallDescriptor:
		node.Call = &domain.CallInfo{Name: d.Name, Args: d.Args, Parent: d.Parent}
	case *analyzer.GoToDescriptor:
		node.GoTo = &domain.GoToInfo{Destination: d.Destination, Parent: d.Parent}
	case *analyzer.FileOpDescriptor:
		node.FileOp = &domain.FileOpInfo{Name: d.Name, Parent: d.Parent}
		if d.Description != nil {
			node.FileOp.Description = d.Description.Name
		}
	case *analyzer.ConditionDescriptor:
		node.Condition = &domain.ConditionInfo{LHS: d.LHS, RHS: d.RHS, Operator: d.Operator}
	}

	return node
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
