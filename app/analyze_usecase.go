package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ludo-technologies/cblscan/domain"
)

// ReportSink writes one report per analyzed program into a directory
type ReportSink interface {
	WriteReports(response *domain.AnalyzeResponse, req domain.AnalyzeRequest) ([]string, error)
}

// AnalyzeResult holds the results of an analyze run
type AnalyzeResult struct {
	Response *domain.AnalyzeResponse
	Files    []string // Files selected for analysis
	Written  []string // Report files written when OutputDir is set
	Duration time.Duration
}

// AnalyzeUseCase orchestrates the program structuring workflow
type AnalyzeUseCase struct {
	service    domain.ProgramService
	fileHelper *FileHelper
	formatter  domain.OutputFormatter
	reports    ReportSink
	logger     *slog.Logger
}

// NewAnalyzeUseCase creates a new analyze use case
func NewAnalyzeUseCase(service domain.ProgramService, formatter domain.OutputFormatter, reports ReportSink) *AnalyzeUseCase {
	return &AnalyzeUseCase{
		service:    service,
		fileHelper: NewFileHelper(),
		formatter:  formatter,
		reports:    reports,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Execute collects programs, structures them and writes the output
func (uc *AnalyzeUseCase) Execute(ctx context.Context, req domain.AnalyzeRequest) (*AnalyzeResult, error) {
	startTime := time.Now()

	response, files, err := uc.analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &AnalyzeResult{Response: response, Files: files}

	if req.OutputDir != "" {
		if uc.reports == nil {
			return nil, domain.NewConfigError("no report writer configured", nil)
		}
		written, err := uc.reports.WriteReports(response, req)
		if err != nil {
			return nil, err
		}
		result.Written = written
	} else if req.OutputWriter != nil {
		if uc.formatter == nil {
			return nil, domain.NewConfigError("no output formatter configured", nil)
		}
		if err := uc.formatter.Write(response, req.OutputFormat, req.OutputWriter); err != nil {
			return nil, domain.NewOutputError("failed to write analysis output", err)
		}
	}

	result.Duration = time.Since(startTime)
	uc.logger.Info("analysis complete",
		slog.Int("programs", response.Summary.ProgramsAnalyzed),
		slog.Int("failed", response.Summary.FilesFailed),
		slog.Int("reports", len(result.Written)),
		slog.Duration("elapsed", result.Duration))
	return result, nil
}

// analyze resolves the request paths and runs the program service
func (uc *AnalyzeUseCase) analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.AnalyzeResponse, []string, error) {
	if err := validateRequest(req); err != nil {
		return nil, nil, domain.NewInvalidInputError("invalid request", err)
	}

	helper := uc.fileHelper.
		WithExtensions(req.Extensions).
		WithGitignore(req.RespectGitignore).
		WithFollowSymlinks(req.FollowSymlinks)

	files, err := ResolveFilePaths(helper, req.Paths, req.Recursive, req.IncludePatterns, req.ExcludePatterns)
	if err != nil {
		return nil, nil, domain.NewFileNotFoundError("failed to collect files", err)
	}
	if len(files) == 0 {
		return nil, nil, domain.NewInvalidInputError("no COBOL programs found in the specified paths", nil)
	}
	uc.logger.Debug("collected programs", slog.Int("count", len(files)))

	req.Paths = files
	response, err := uc.service.Analyze(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return response, files, nil
}

// validateRequest validates the analyze request
func validateRequest(req domain.AnalyzeRequest) error {
	if len(req.Paths) == 0 {
		return fmt.Errorf("no input paths specified")
	}

	if req.MaxComplexity < 0 {
		return fmt.Errorf("maximum complexity cannot be negative")
	}

	if req.LowThreshold > 0 && req.MediumThreshold > 0 && req.MediumThreshold <= req.LowThreshold {
		return fmt.Errorf("medium threshold must be greater than low threshold")
	}

	if req.MaxCopyDepth < 0 {
		return fmt.Errorf("copybook depth cannot be negative")
	}

	return nil
}

// AnalyzeUseCaseBuilder provides a builder pattern for creating AnalyzeUseCase
type AnalyzeUseCaseBuilder struct {
	service    domain.ProgramService
	fileHelper *FileHelper
	formatter  domain.OutputFormatter
	reports    ReportSink
	logger     *slog.Logger
}

// NewAnalyzeUseCaseBuilder creates a new builder
func NewAnalyzeUseCaseBuilder() *AnalyzeUseCaseBuilder {
	return &AnalyzeUseCaseBuilder{}
}

// WithService sets the program service
func (b *AnalyzeUseCaseBuilder) WithService(service domain.ProgramService) *AnalyzeUseCaseBuilder {
	b.service = service
	return b
}

// WithFileHelper sets the file helper
func (b *AnalyzeUseCaseBuilder) WithFileHelper(fileHelper *FileHelper) *AnalyzeUseCaseBuilder {
	b.fileHelper = fileHelper
	return b
}

// WithFormatter sets the output formatter
func (b *AnalyzeUseCaseBuilder) WithFormatter(formatter domain.OutputFormatter) *AnalyzeUseCaseBuilder {
	b.formatter = formatter
	return b
}

// WithReportSink sets the per-program report writer
func (b *AnalyzeUseCaseBuilder) WithReportSink(reports ReportSink) *AnalyzeUseCaseBuilder {
	b.reports = reports
	return b
}

// WithLogger sets the logger
func (b *AnalyzeUseCaseBuilder) WithLogger(logger *slog.Logger) *AnalyzeUseCaseBuilder {
	b.logger = logger
	return b
}

// Build creates the AnalyzeUseCase with the configured dependencies
func (b *AnalyzeUseCaseBuilder) Build() (*AnalyzeUseCase, error) {
	if b.service == nil {
		return nil, fmt.Errorf("program service is required")
	}

	uc := NewAnalyzeUseCase(b.service, b.formatter, b.reports)
	if b.fileHelper != nil {
		uc.fileHelper = b.fileHelper
	}
	if b.logger != nil {
		uc.logger = b.logger
	}
	return uc, nil
}
