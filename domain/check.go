package domain

// CheckResult represents the result of a quality check
type CheckResult struct {
	Passed      bool             `json:"passed" yaml:"passed"`
	ExitCode    int              `json:"exit_code" yaml:"exit_code"`
	Violations  []CheckViolation `json:"violations" yaml:"violations"`
	Summary     CheckSummary     `json:"summary" yaml:"summary"`
	Duration    int64            `json:"duration_ms" yaml:"duration_ms"`
	GeneratedAt string           `json:"generated_at" yaml:"generated_at"`
	Version     string           `json:"version" yaml:"version"`
}

// CheckViolation represents a single threshold violation
type CheckViolation struct {
	Category  string `json:"category" yaml:"category"`                       // complexity, structure, reachability
	Rule      string `json:"rule" yaml:"rule"`                               // max-complexity, no-structural, no-unreachable
	Severity  string `json:"severity" yaml:"severity"`                       // error, warning
	Message   string `json:"message" yaml:"message"`                         // Human-readable description
	Location  string `json:"location,omitempty" yaml:"location,omitempty"`   // File:line if applicable
	Actual    string `json:"actual" yaml:"actual"`                           // Actual value
	Threshold string `json:"threshold,omitempty" yaml:"threshold,omitempty"` // Configured threshold
}

// CheckSummary provides aggregate statistics
type CheckSummary struct {
	FilesAnalyzed          int  `json:"files_analyzed" yaml:"files_analyzed"`
	TotalViolations        int  `json:"total_violations" yaml:"total_violations"`
	ComplexityChecked      bool `json:"complexity_checked" yaml:"complexity_checked"`
	StructureChecked       bool `json:"structure_checked" yaml:"structure_checked"`
	ReachabilityChecked    bool `json:"reachability_checked" yaml:"reachability_checked"`
	HighComplexityPrograms int  `json:"high_complexity_programs" yaml:"high_complexity_programs"`
	StructuralDiagnostics  int  `json:"structural_diagnostics" yaml:"structural_diagnostics"`
	UnreachableParagraphs  int  `json:"unreachable_paragraphs" yaml:"unreachable_paragraphs"`
}

// Check rule names
const (
	RuleMaxComplexity  = "max-complexity"
	RuleNoStructural   = "no-structural-errors"
	RuleNoUnreachable  = "no-unreachable-paragraphs"
	CategoryComplexity = "complexity"
	CategoryStructure  = "structure"
	CategoryReachable  = "reachability"
)
