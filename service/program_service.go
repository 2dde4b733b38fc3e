package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/internal/analyzer"
	"github.com/ludo-technologies/cblscan/internal/config"
	"github.com/ludo-technologies/cblscan/internal/constants"
	"github.com/ludo-technologies/cblscan/internal/copybook"
	"github.com/ludo-technologies/cblscan/internal/parser"
	"github.com/ludo-technologies/cblscan/internal/version"
)

// ProgramServiceImpl implements the ProgramService interface.
// It is safe for concurrent use; only the copybook cache is shared between runs.
type ProgramServiceImpl struct {
	cache    *copybook.Cache
	progress domain.ProgressManager
	metrics  *Metrics
	logger   *slog.Logger
}

// NewProgramService creates a program service. A nil cache gets a default-sized one.
func NewProgramService(cache *copybook.Cache) *ProgramServiceImpl {
	if cache == nil {
		if c, err := copybook.NewCache(constants.DefaultCopybookCacheSize); err == nil {
			cache = c
		}
	}
	return &ProgramServiceImpl{
		cache:   cache,
		metrics: NewMetrics(),
		logger:  discardLogger(),
	}
}

// NewProgramServiceWithProgress creates a program service with progress reporting
func NewProgramServiceWithProgress(cache *copybook.Cache, pm domain.ProgressManager) *ProgramServiceImpl {
	s := NewProgramService(cache)
	s.progress = pm
	return s
}

// SetLogger sets the logger handed to every pipeline stage
func (s *ProgramServiceImpl) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetMetrics replaces the metrics sink
func (s *ProgramServiceImpl) SetMetrics(m *Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Metrics returns the metrics sink
func (s *ProgramServiceImpl) Metrics() *Metrics {
	return s.metrics
}

// Analyze structures every program in req.Paths concurrently
func (s *ProgramServiceImpl) Analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.AnalyzeResponse, error) {
	if len(req.Paths) == 0 {
		return nil, domain.NewInvalidInputError("no input files specified", nil)
	}

	programTasks := make([]*ProgramTask, 0, len(req.Paths))
	tasks := make([]domain.ExecutableTask, 0, len(req.Paths))
	for _, path := range req.Paths {
		t := NewProgramTask(s, path, req)
		programTasks = append(programTasks, t)
		tasks = append(tasks, t)
	}

	executor := NewParallelExecutor()
	executor.SetMaxConcurrency(req.MaxGoroutines)
	executor.SetTimeout(req.Timeout)
	executor.SetLogger(s.logger)
	executor.SetProgress(s.progress)

	execErr := executor.Execute(ctx, tasks)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("program analysis cancelled: %w", err)
	}
	var aggErr *AggregatedError
	if execErr != nil && !errors.As(execErr, &aggErr) {
		return nil, execErr
	}

	skipped := make(map[string]error)
	if aggErr != nil {
		for _, te := range aggErr.Errors {
			if errors.Is(te.Err, ErrNotStarted) {
				skipped[te.TaskName] = te.Err
			}
		}
		if names := aggErr.NotStarted(); len(names) > 0 {
			s.logger.Warn("batch deadline reached", slog.Int("not_started", len(names)))
		}
	}

	var programs []*domain.ProgramGraph
	var failures []string
	for _, t := range programTasks {
		graph, err := t.Result()
		if graph == nil && err == nil {
			err = skipped[t.Name()]
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("[%s] %v", t.Name(), err))
			continue
		}
		if graph != nil {
			programs = append(programs, graph)
		}
	}

	if len(programs) == 0 {
		return nil, domain.NewAnalysisError("no programs could be analyzed", execErr)
	}

	response := &domain.AnalyzeResponse{
		Programs:    programs,
		Summary:     s.generateSummary(programs, len(failures)),
		Errors:      failures,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Version:     version.GetVersion(),
	}

	if req.MetricsTextfile != "" {
		if err := s.metrics.WriteTextfile(req.MetricsTextfile); err != nil {
			return response, err
		}
	}
	return response, nil
}

// AnalyzeFile reads and structures a single COBOL program
func (s *ProgramServiceImpl) AnalyzeFile(ctx context.Context, filePath string, req domain.AnalyzeRequest) (*domain.ProgramGraph, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		s.metrics.ObserveFailure()
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewFileNotFoundError(filePath, err)
		}
		return nil, domain.NewInvalidInputError(fmt.Sprintf("failed to read %s", filePath), err)
	}
	return s.AnalyzeSource(ctx, filePath, string(content), req)
}

// AnalyzeSource structures program text that was read from filePath.
// Copybooks are searched in req.IncludeDirs, then next to filePath.
func (s *ProgramServiceImpl) AnalyzeSource(ctx context.Context, filePath, text string, req domain.AnalyzeRequest) (*domain.ProgramGraph, error) {
	start := time.Now()
	logger := s.logger.With(slog.String("file", filePath))

	dirs := append(append([]string(nil), req.IncludeDirs...), filepath.Dir(filePath))
	resolver := copybook.NewResolver(copybook.NewDirSource(dirs...), s.cache, copybook.Options{
		Extensions: req.Extensions,
		MaxDepth:   req.MaxCopyDepth,
	})
	resolver.SetLogger(logger)

	expansion, err := resolver.Resolve(ctx, text)
	if err != nil {
		s.metrics.ObserveFailure()
		return nil, domain.NewAnalysisError(fmt.Sprintf("copybook expansion of %s interrupted", filePath), err)
	}

	p := parser.NewParser(parser.Options{SplitKeywords: req.SplitKeywords})
	p.SetLogger(logger)
	unit, err := p.ParseFile(ctx, filePath, expansion.Text)
	if err != nil {
		s.metrics.ObserveFailure()
		return nil, domain.NewParseError(filePath, err)
	}

	main := req.MainParagraph
	if entry := unit.Entry(); entry != "" {
		main = entry
	}
	if main == "" {
		main = constants.MainParagraph
	}
	opts := analyzer.Options{MainParagraph: main, Logger: logger}
	if len(req.Keywords) > 0 {
		keywords, err := analyzer.NewKeywordSet(req.Keywords)
		if err != nil {
			s.metrics.ObserveFailure()
			return nil, domain.NewConfigError("invalid keyword set", err)
		}
		opts.Keywords = keywords
	}

	input := unit.ProgramInput(analyzer.LineMap(expansion.LineMap), expansion.Diagnostics...)
	program, err := analyzer.BuildProgram(ctx, input, opts)
	if err != nil {
		s.metrics.ObserveFailure()
		return nil, domain.NewAnalysisError(fmt.Sprintf("structuring of %s interrupted", filePath), err)
	}

	graph, err := toProgramGraph(filePath, unit, expansion.Included, program, main, complexityConfig(req))
	if err != nil {
		s.metrics.ObserveFailure()
		return nil, domain.NewAnalysisError(fmt.Sprintf("complexity of %s", filePath), err)
	}
	s.metrics.ObserveProgram(graph, time.Since(start))
	logger.Debug("program analyzed",
		slog.String("program", graph.ProgramID),
		slog.Int("paragraphs", len(graph.Paragraphs)),
		slog.Int("diagnostics", len(graph.Diagnostics)),
		slog.Duration("elapsed", time.Since(start)))
	return graph, nil
}

func complexityConfig(req domain.AnalyzeRequest) *config.ComplexityConfig {
	cc := config.DefaultConfig().Complexity
	if req.LowThreshold > 0 {
		cc.LowThreshold = req.LowThreshold
	}
	if req.MediumThreshold > 0 {
		cc.MediumThreshold = req.MediumThreshold
	}
	cc.MaxComplexity = req.MaxComplexity
	cc.ReportUnchanged = true
	return &cc
}

// generateSummary aggregates statistics over the structured programs
func (s *ProgramServiceImpl) generateSummary(programs []*domain.ProgramGraph, failed int) domain.AnalyzeSummary {
	summary := domain.AnalyzeSummary{
		ProgramsAnalyzed:      len(programs),
		FilesFailed:           failed,
		DiagnosticsByCategory: make(map[string]int),
	}

	copybooks := make(map[string]bool)
	totalComplexity := 0
	for _, p := range programs {
		totalComplexity += p.Complexity
		if p.Complexity > summary.MaxComplexity {
			summary.MaxComplexity = p.Complexity
		}
		summary.TotalParagraphs += len(p.Paragraphs)
		summary.UnreachableParagraphs += len(p.Unreachable)
		for _, para := range p.Paragraphs {
			summary.TotalStatements += domain.CountStatements(para.Statements)
			switch para.RiskLevel {
			case domain.RiskLevelHigh:
				summary.HighRiskParagraphs++
			case domain.RiskLevelMedium:
				summary.MediumRiskParagraphs++
			default:
				summary.LowRiskParagraphs++
			}
		}
		for _, name := range p.Copybooks {
			copybooks[name] = true
		}
		for category, count := range p.DiagnosticsByCategory() {
			summary.DiagnosticsByCategory[category] += count
		}
	}
	summary.Copybooks = len(copybooks)
	if len(programs) > 0 {
		summary.AverageComplexity = float64(totalComplexity) / float64(len(programs))
	}
	return summary
}
