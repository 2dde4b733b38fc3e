package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/internal/version"
)

// CheckOptions are the thresholds a check run enforces
type CheckOptions struct {
	// MaxComplexity fails programs above this complexity (0 = no limit)
	MaxComplexity int

	AllowStructural  bool
	AllowUnreachable bool

	// Verbose adds one violation per diagnostic and unreachable paragraph
	Verbose bool
}

// CheckService turns an analysis response into a pass/fail verdict
type CheckService struct {
	opts CheckOptions
}

// NewCheckService creates a check service
func NewCheckService(opts CheckOptions) *CheckService {
	return &CheckService{opts: opts}
}

// Evaluate checks every program against the configured thresholds
func (s *CheckService) Evaluate(response *domain.AnalyzeResponse, started time.Time) *domain.CheckResult {
	result := &domain.CheckResult{
		Passed:     true,
		Violations: []domain.CheckViolation{},
		Summary: domain.CheckSummary{
			ComplexityChecked:   s.opts.MaxComplexity > 0,
			StructureChecked:    !s.opts.AllowStructural,
			ReachabilityChecked: !s.opts.AllowUnreachable,
		},
	}

	if response != nil {
		result.Summary.FilesAnalyzed = len(response.Programs)
		for _, p := range response.Programs {
			s.checkComplexity(p, result)
			s.checkStructure(p, result)
			s.checkReachability(p, result)
		}
	}

	result.Duration = time.Since(started).Milliseconds()
	result.GeneratedAt = time.Now().Format(time.RFC3339)
	result.Version = version.GetVersion()
	result.Summary.TotalViolations = len(result.Violations)
	if !result.Passed {
		result.ExitCode = 1
	}
	return result
}

func (s *CheckService) checkComplexity(p *domain.ProgramGraph, result *domain.CheckResult) {
	if s.opts.MaxComplexity <= 0 || p.Complexity <= s.opts.MaxComplexity {
		return
	}
	result.Passed = false
	result.Summary.HighComplexityPrograms++
	result.Violations = append(result.Violations, domain.CheckViolation{
		Category:  domain.CategoryComplexity,
		Rule:      domain.RuleMaxComplexity,
		Severity:  "error",
		Message:   fmt.Sprintf("Program '%s' has complexity %d", p.ProgramID, p.Complexity),
		Location:  p.FilePath,
		Actual:    strconv.Itoa(p.Complexity),
		Threshold: strconv.Itoa(s.opts.MaxComplexity),
	})
}

func (s *CheckService) checkStructure(p *domain.ProgramGraph, result *domain.CheckResult) {
	var structural []domain.Diagnostic
	for _, d := range p.Diagnostics {
		if d.Category == domain.DiagnosticStructural {
			structural = append(structural, d)
		}
	}
	result.Summary.StructuralDiagnostics += len(structural)
	if s.opts.AllowStructural || len(structural) == 0 {
		return
	}

	result.Passed = false
	if !s.opts.Verbose {
		result.Violations = append(result.Violations, domain.CheckViolation{
			Category:  domain.CategoryStructure,
			Rule:      domain.RuleNoStructural,
			Severity:  "error",
			Message:   fmt.Sprintf("Program '%s' has %d structural diagnostics", p.ProgramID, len(structural)),
			Location:  p.FilePath,
			Actual:    strconv.Itoa(len(structural)),
			Threshold: "0",
		})
		return
	}
	for _, d := range structural {
		result.Violations = append(result.Violations, domain.CheckViolation{
			Category: domain.CategoryStructure,
			Rule:     domain.RuleNoStructural,
			Severity: "error",
			Message:  fmt.Sprintf("%s: %s", d.Subject, d.Message),
			Location: fmt.Sprintf("%s:%d", p.FilePath, d.Line),
			Actual:   d.Subject,
		})
	}
}

func (s *CheckService) checkReachability(p *domain.ProgramGraph, result *domain.CheckResult) {
	result.Summary.UnreachableParagraphs += len(p.Unreachable)
	if s.opts.AllowUnreachable || len(p.Unreachable) == 0 {
		return
	}

	result.Passed = false
	if !s.opts.Verbose {
		result.Violations = append(result.Violations, domain.CheckViolation{
			Category:  domain.CategoryReachable,
			Rule:      domain.RuleNoUnreachable,
			Severity:  "warning",
			Message:   fmt.Sprintf("Program '%s' has %d unreachable paragraphs", p.ProgramID, len(p.Unreachable)),
			Location:  p.FilePath,
			Actual:    strconv.Itoa(len(p.Unreachable)),
			Threshold: "0",
		})
		return
	}
	for _, name := range p.Unreachable {
		location := p.FilePath
		if para := p.Paragraph(name); para != nil && para.StartLine > 0 {
			location = fmt.Sprintf("%s:%d", p.FilePath, para.StartLine)
		}
		result.Violations = append(result.Violations, domain.CheckViolation{
			Category: domain.CategoryReachable,
			Rule:     domain.RuleNoUnreachable,
			Severity: "warning",
			Message:  fmt.Sprintf("Paragraph '%s' is never reached from %s", name, p.EntryParagraph),
			Location: location,
			Actual:   name,
		})
	}
}
