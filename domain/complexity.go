package domain

import (
	"context"
	"io"
	"time"
)

// OutputFormat represents the supported output formats
type OutputFormat string

const (
	OutputFormatText    OutputFormat = "text"
	OutputFormatJSON    OutputFormat = "json"
	OutputFormatYAML    OutputFormat = "yaml"
	OutputFormatDOT     OutputFormat = "dot"
	OutputFormatMermaid OutputFormat = "mermaid"
	OutputFormatHTML    OutputFormat = "html"
)

// SortCriteria represents the criteria for sorting paragraphs
type SortCriteria string

const (
	SortByComplexity SortCriteria = "complexity"
	SortByName       SortCriteria = "name"
	SortByLine       SortCriteria = "line"
)

// RiskLevel represents the complexity risk level
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// AnalyzeRequest represents a request to structure COBOL programs
type AnalyzeRequest struct {
	// Input files or directories to analyze
	Paths []string

	// Output configuration
	OutputFormat OutputFormat
	OutputWriter io.Writer
	OutputDir    string // One report per program; empty writes to OutputWriter
	OutputPrefix string
	Mermaid      bool // Write callgraph_<ID>.md and dataflow_<ID>.md
	DOT          bool // Write cfg_<ID>.dot
	ShowDetails  bool
	SortBy       SortCriteria

	// Complexity thresholds
	LowThreshold    int
	MediumThreshold int
	MaxComplexity   int // 0 means no limit

	// Copybook resolution
	IncludeDirs  []string
	Extensions   []string
	MaxCopyDepth int
	CacheSize    int

	// Structuring
	MainParagraph string
	Keywords      []string
	SplitKeywords []string

	// Configuration
	ConfigPath string

	// File selection
	Recursive        bool
	RespectGitignore bool
	FollowSymlinks   bool
	IncludePatterns  []string
	ExcludePatterns  []string

	// Execution
	MaxGoroutines int
	Timeout       time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// MetricsTextfile receives Prometheus metrics after the run when set
	MetricsTextfile string
}

// AnalyzeSummary represents aggregate statistics
type AnalyzeSummary struct {
	ProgramsAnalyzed int `json:"programs_analyzed" yaml:"programs_analyzed"`
	FilesFailed      int `json:"files_failed" yaml:"files_failed"`
	TotalParagraphs  int `json:"total_paragraphs" yaml:"total_paragraphs"`
	TotalStatements  int `json:"total_statements" yaml:"total_statements"`

	AverageComplexity float64 `json:"average_complexity" yaml:"average_complexity"`
	MaxComplexity     int     `json:"max_complexity" yaml:"max_complexity"`

	// Risk distribution over paragraphs
	LowRiskParagraphs    int `json:"low_risk_paragraphs" yaml:"low_risk_paragraphs"`
	MediumRiskParagraphs int `json:"medium_risk_paragraphs" yaml:"medium_risk_paragraphs"`
	HighRiskParagraphs   int `json:"high_risk_paragraphs" yaml:"high_risk_paragraphs"`

	UnreachableParagraphs int `json:"unreachable_paragraphs" yaml:"unreachable_paragraphs"`
	Copybooks             int `json:"copybooks" yaml:"copybooks"`

	DiagnosticsByCategory map[string]int `json:"diagnostics_by_category,omitempty" yaml:"diagnostics_by_category,omitempty"`
}

// AnalyzeResponse represents the complete analysis result
type AnalyzeResponse struct {
	Programs []*ProgramGraph `json:"programs" yaml:"programs"`
	Summary  AnalyzeSummary  `json:"summary" yaml:"summary"`

	// Files that could not be analyzed
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Metadata
	GeneratedAt string `json:"generated_at" yaml:"generated_at"`
	Version     string `json:"version" yaml:"version"`
}

// ProgramService defines the core business logic for program structuring
type ProgramService interface {
	// Analyze structures every program the request selects
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error)

	// AnalyzeFile structures a single COBOL source file
	AnalyzeFile(ctx context.Context, filePath string, req AnalyzeRequest) (*ProgramGraph, error)
}

// FileReader defines COBOL-specific file operations
type FileReader interface {
	// CollectCOBOLFiles finds COBOL programs in the given paths
	CollectCOBOLFiles(paths []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error)

	// ReadFile reads the content of a file
	ReadFile(path string) ([]byte, error)

	// IsValidCOBOLFile checks the file extension
	IsValidCOBOLFile(path string) bool

	// FileExists checks if a file exists and returns an error if not
	FileExists(path string) (bool, error)
}

// OutputFormatter defines the interface for formatting analysis results
type OutputFormatter interface {
	// Format formats the analysis response according to the specified format
	Format(response *AnalyzeResponse, format OutputFormat) (string, error)

	// Write writes the formatted output to the writer
	Write(response *AnalyzeResponse, format OutputFormat, writer io.Writer) error
}

// ConfigurationLoader defines the interface for loading configuration
type ConfigurationLoader interface {
	// LoadConfig loads configuration from the specified path
	LoadConfig(path string) (*AnalyzeRequest, error)

	// LoadDefaultConfig loads the default configuration
	LoadDefaultConfig() *AnalyzeRequest

	// MergeConfig merges CLI flags with configuration file
	MergeConfig(base *AnalyzeRequest, override *AnalyzeRequest) *AnalyzeRequest
}
