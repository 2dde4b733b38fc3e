package analyzer

import (
	"fmt"

	"github.com/ludo-technologies/cblscan/internal/config"
)

// ComplexityResult holds cyclomatic complexity metrics for one paragraph
type ComplexityResult struct {
	Complexity     int
	ParagraphName  string
	StartLine      int
	NestingDepth   int
	IfStatements   int
	EvaluateBlocks int
	WhenClauses    int
	Performs       int
	RiskLevel      string
}

func (cr *ComplexityResult) GetComplexity() int       { return cr.Complexity }
func (cr *ComplexityResult) GetParagraphName() string { return cr.ParagraphName }
func (cr *ComplexityResult) GetRiskLevel() string     { return cr.RiskLevel }

func (cr *ComplexityResult) GetDetailedMetrics() map[string]int {
	return map[string]int{
		"if_statements":   cr.IfStatements,
		"evaluate_blocks": cr.EvaluateBlocks,
		"when_clauses":    cr.WhenClauses,
		"performs":        cr.Performs,
		"nesting_depth":   cr.NestingDepth,
	}
}

func (cr *ComplexityResult) String() string {
	return fmt.Sprintf("Paragraph: %s, Complexity: %d, Risk: %s",
		cr.ParagraphName, cr.Complexity, cr.RiskLevel)
}

// CalculateComplexity breaks down a paragraph's complexity using default thresholds
func CalculateComplexity(p *ParagraphResult) *ComplexityResult {
	defaultConfig := config.DefaultConfig()
	return CalculateComplexityWithConfig(p, &defaultConfig.Complexity)
}

// CalculateComplexityWithConfig breaks down a paragraph's complexity. The
// total is the structurer's count; the breakdown is recounted from the tree.
func CalculateComplexityWithConfig(p *ParagraphResult, complexityConfig *config.ComplexityConfig) *ComplexityResult {
	if p == nil {
		return &ComplexityResult{
			Complexity: 1,
			RiskLevel:  "low",
		}
	}

	result := &ComplexityResult{
		Complexity:    p.Complexity,
		ParagraphName: p.Name,
		NestingDepth:  CalculateNestingDepth(p.Statements),
	}
	if len(p.Statements) > 0 {
		result.StartLine = p.Statements[0].Line
	}

	countBranches(p.Statements, "", result)

	if result.Complexity < 1 {
		result.Complexity = 1
	}
	result.RiskLevel = complexityConfig.AssessRiskLevel(result.Complexity)
	return result
}

// countBranches tallies decision nodes. A WHEN counts only inside an EVALUATE.
func countBranches(list []*Statement, parent StatementKind, result *ComplexityResult) {
	for _, s := range list {
		if s == nil {
			continue
		}
		switch s.origin {
		case KindIf:
			result.IfStatements++
		case KindEvaluate:
			result.EvaluateBlocks++
		case KindWhen:
			if parent == KindEvaluate {
				result.WhenClauses++
			}
		case KindPerform:
			result.Performs++
		}
		for _, children := range s.Children() {
			countBranches(children, s.origin, result)
		}
	}
}

// CalculateNestingDepth returns the maximum block nesting depth of a tree
func CalculateNestingDepth(list []*Statement) int {
	maxDepth := 0
	for _, s := range list {
		depth := 0
		for _, children := range s.Children() {
			if d := CalculateNestingDepth(children); d+1 > depth {
				depth = d + 1
			}
		}
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

// ProgramComplexity folds paragraph complexities: 1 plus each paragraph's
// contribution above its base of 1
func ProgramComplexity(paragraphs []*ParagraphResult) int {
	total := 1
	for _, p := range paragraphs {
		if p.Complexity > 1 {
			total += p.Complexity - 1
		}
	}
	return total
}

// ComplexityAnalyzer analyzes complexity for every paragraph of a program
type ComplexityAnalyzer struct {
	cfg *config.ComplexityConfig
}

func NewComplexityAnalyzer(cfg *config.ComplexityConfig) *ComplexityAnalyzer {
	return &ComplexityAnalyzer{cfg: cfg}
}

func (ca *ComplexityAnalyzer) AnalyzeProgram(program *Program) ([]*ComplexityResult, error) {
	if program == nil {
		return nil, fmt.Errorf("program is nil")
	}

	results := make([]*ComplexityResult, 0, len(program.Paragraphs))
	for _, p := range program.Paragraphs {
		results = append(results, CalculateComplexityWithConfig(p, ca.cfg))
	}
	return results, nil
}
