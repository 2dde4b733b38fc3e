package analyzer

import (
	"sort"
	"time"
)

type SeverityLevel string

const (
	SeverityLevelCritical SeverityLevel = "critical"
	SeverityLevelWarning  SeverityLevel = "warning"
	SeverityLevelInfo     SeverityLevel = "info"
)

type DeadCodeReason string

const (
	ReasonUnreachableAfterGoTo    DeadCodeReason = "unreachable_after_goto"
	ReasonUnreachableAfterStopRun DeadCodeReason = "unreachable_after_stop_run"
	ReasonUnreachableAfterGoback  DeadCodeReason = "unreachable_after_goback"
	ReasonUnreachableParagraph    DeadCodeReason = "unreachable_paragraph"
)

type DeadCodeFinding struct {
	Paragraph   string         `json:"paragraph" yaml:"paragraph"`
	StartLine   int            `json:"start_line" yaml:"start_line"`
	EndLine     int            `json:"end_line" yaml:"end_line"`
	Code        string         `json:"code" yaml:"code"`
	Reason      DeadCodeReason `json:"reason" yaml:"reason"`
	Severity    SeverityLevel  `json:"severity" yaml:"severity"`
	Description string         `json:"description" yaml:"description"`
}

type DeadCodeResult struct {
	ProgramID       string             `json:"program_id" yaml:"program_id"`
	Findings        []*DeadCodeFinding `json:"findings" yaml:"findings"`
	TotalParagraphs int                `json:"total_paragraphs" yaml:"total_paragraphs"`
	DeadParagraphs  int                `json:"dead_paragraphs" yaml:"dead_paragraphs"`
	ReachableRatio  float64            `json:"reachable_ratio" yaml:"reachable_ratio"`
	AnalysisTime    time.Duration      `json:"analysis_time" yaml:"-"`
}

// DeadCodeDetector reports paragraphs no path reaches and statements that
// follow an unconditional transfer of control
type DeadCodeDetector struct {
	program *Program
}

func NewDeadCodeDetector(program *Program) *DeadCodeDetector {
	return &DeadCodeDetector{program: program}
}

func (dcd *DeadCodeDetector) Detect() *DeadCodeResult {
	startTime := time.Now()

	result := &DeadCodeResult{
		Findings:       make([]*DeadCodeFinding, 0),
		ReachableRatio: 1.0,
	}

	if dcd.program == nil {
		result.AnalysisTime = time.Since(startTime)
		return result
	}
	result.ProgramID = dcd.program.ID

	if reach := dcd.program.Reachability; reach != nil {
		result.TotalParagraphs = reach.TotalParagraphs
		result.DeadParagraphs = reach.UnreachableCount
		result.ReachableRatio = reach.GetReachabilityRatio()
		for _, name := range reach.UnreachableParagraphs {
			result.Findings = append(result.Findings, dcd.paragraphFinding(name))
		}
	}

	for _, p := range dcd.program.Paragraphs {
		p := p
		dcd.scanList(p.Name, p.Statements, &result.Findings)
		WalkStatements(p.Statements, func(s *Statement) bool {
			for _, children := range s.Children() {
				dcd.scanList(p.Name, children, &result.Findings)
			}
			return true
		})
	}

	sort.SliceStable(result.Findings, func(i, j int) bool {
		return result.Findings[i].StartLine < result.Findings[j].StartLine
	})

	result.AnalysisTime = time.Since(startTime)
	return result
}

func (dcd *DeadCodeDetector) paragraphFinding(name string) *DeadCodeFinding {
	finding := &DeadCodeFinding{
		Paragraph:   name,
		Reason:      ReasonUnreachableParagraph,
		Severity:    SeverityLevelWarning,
		Description: generateDescription(ReasonUnreachableParagraph),
	}
	if p := dcd.program.Paragraph(name); p != nil && len(p.Statements) > 0 {
		finding.StartLine = p.Statements[0].Line
		finding.EndLine = lastLine(p.Statements)
		finding.Code = snippet(p.Statements)
	}
	return finding
}

// scanList flags the siblings that follow a GO TO, STOP RUN or GOBACK
func (dcd *DeadCodeDetector) scanList(paragraph string, list []*Statement, findings *[]*DeadCodeFinding) {
	for i, s := range list {
		reason, ok := transferReason(s)
		if !ok || i == len(list)-1 {
			continue
		}
		rest := list[i+1:]
		*findings = append(*findings, &DeadCodeFinding{
			Paragraph:   paragraph,
			StartLine:   rest[0].Line,
			EndLine:     lastLine(rest),
			Code:        snippet(rest),
			Reason:      reason,
			Severity:    SeverityLevelCritical,
			Description: generateDescription(reason),
		})
		return
	}
}

func transferReason(s *Statement) (DeadCodeReason, bool) {
	switch s.Kind {
	case KindGoTo:
		return ReasonUnreachableAfterGoTo, true
	case KindStopRun:
		return ReasonUnreachableAfterStopRun, true
	case KindGoback:
		return ReasonUnreachableAfterGoback, true
	}
	return "", false
}

func generateDescription(reason DeadCodeReason) string {
	descriptions := map[DeadCodeReason]string{
		ReasonUnreachableAfterGoTo:    "Code after GO TO is unreachable",
		ReasonUnreachableAfterStopRun: "Code after STOP RUN is unreachable",
		ReasonUnreachableAfterGoback:  "Code after GOBACK is unreachable",
		ReasonUnreachableParagraph:    "Paragraph is not reachable from the entry paragraph",
	}

	if desc, exists := descriptions[reason]; exists {
		return desc
	}
	return "Code is unreachable"
}

func lastLine(list []*Statement) int {
	line := 0
	WalkStatements(list, func(s *Statement) bool {
		if s.Line > line {
			line = s.Line
		}
		return true
	})
	return line
}

func snippet(list []*Statement) string {
	if len(list) == 0 {
		return ""
	}
	code := list[0].Content
	if len(code) > 100 {
		code = code[:100] + "..."
	}
	return code
}

func (dcr *DeadCodeResult) HasFindings() bool {
	return len(dcr.Findings) > 0
}

func (dcr *DeadCodeResult) GetCriticalFindings() []*DeadCodeFinding {
	var critical []*DeadCodeFinding
	for _, finding := range dcr.Findings {
		if finding.Severity == SeverityLevelCritical {
			critical = append(critical, finding)
		}
	}
	return critical
}

func (dcr *DeadCodeResult) GetWarningFindings() []*DeadCodeFinding {
	var warnings []*DeadCodeFinding
	for _, finding := range dcr.Findings {
		if finding.Severity == SeverityLevelWarning {
			warnings = append(warnings, finding)
		}
	}
	return warnings
}
