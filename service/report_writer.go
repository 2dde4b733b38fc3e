package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/internal/constants"
)

// ErrorReportEntry is one line of the batch error report
type ErrorReportEntry struct {
	File     string `json:"file"`
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Category string `json:"category,omitempty"`
	Subject  string `json:"subject,omitempty"`
}

// ErrorReport is the content of parsing_errors.json
type ErrorReport struct {
	Errors []ErrorReportEntry `json:"errors"`
}

// ReportWriter writes one report per program into an output directory,
// plus optional Mermaid and DOT companions and the batch error report
type ReportWriter struct {
	formatter *OutputFormatterImpl
	mermaid   *MermaidFormatter
	dot       *DOTFormatter
	logger    *slog.Logger
}

// NewReportWriter creates a report writer
func NewReportWriter(formatter *OutputFormatterImpl) *ReportWriter {
	if formatter == nil {
		formatter = NewOutputFormatter()
	}
	return &ReportWriter{
		formatter: formatter,
		mermaid:   NewMermaidFormatter(),
		dot:       NewDOTFormatter(nil),
		logger:    discardLogger(),
	}
}

// SetLogger sets the logger
func (w *ReportWriter) SetLogger(logger *slog.Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// WriteReports writes every report for response under req.OutputDir and
// returns the written paths
func (w *ReportWriter) WriteReports(response *domain.AnalyzeResponse, req domain.AnalyzeRequest) ([]string, error) {
	if req.OutputDir == "" {
		return nil, domain.NewInvalidInputError("output directory is required", nil)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, domain.NewOutputError("failed to create output directory", err)
	}

	var written []string
	for _, p := range response.Programs {
		paths, err := w.writeProgram(p, req)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}

	report := BuildErrorReport(response)
	if len(report.Errors) > 0 {
		path := filepath.Join(req.OutputDir, constants.ErrorReportFileName)
		if err := w.writeFile(path, func(f *os.File) error { return WriteJSON(f, report) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func (w *ReportWriter) writeProgram(p *domain.ProgramGraph, req domain.AnalyzeRequest) ([]string, error) {
	var written []string

	format := req.OutputFormat
	if format == "" || format == domain.OutputFormatMermaid || format == domain.OutputFormatDOT {
		format = domain.OutputFormatJSON
	}
	reportPath := filepath.Join(req.OutputDir, ReportFileName(req.OutputPrefix, p.FilePath, format))
	if err := w.writeFile(reportPath, func(f *os.File) error {
		return w.formatter.WriteProgram(p, format, f)
	}); err != nil {
		return written, err
	}
	written = append(written, reportPath)

	if req.Mermaid {
		callGraph := filepath.Join(req.OutputDir, req.OutputPrefix+"callgraph_"+p.ProgramID+".md")
		if err := w.writeFile(callGraph, func(f *os.File) error {
			return writeMermaidDocument(f, func(sb *strings.Builder) error { return w.mermaid.WriteCallGraph(p, sb) })
		}); err != nil {
			return written, err
		}
		dataFlow := filepath.Join(req.OutputDir, req.OutputPrefix+"dataflow_"+p.ProgramID+".md")
		if err := w.writeFile(dataFlow, func(f *os.File) error {
			return writeMermaidDocument(f, func(sb *strings.Builder) error { return w.mermaid.WriteDataFlow(p, sb) })
		}); err != nil {
			return written, err
		}
		written = append(written, callGraph, dataFlow)
	}

	if req.DOT {
		cfgPath := filepath.Join(req.OutputDir, req.OutputPrefix+"cfg_"+p.ProgramID+".dot")
		if err := w.writeFile(cfgPath, func(f *os.File) error { return w.dot.WriteCFG(p, f) }); err != nil {
			return written, err
		}
		written = append(written, cfgPath)
	}

	w.logger.Info("wrote program report",
		slog.String("program", p.ProgramID),
		slog.String("report", reportPath))
	return written, nil
}

func (w *ReportWriter) writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return domain.NewOutputError(fmt.Sprintf("failed to create %s", path), err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return domain.NewOutputError(fmt.Sprintf("failed to write %s", path), err)
	}
	if err := f.Close(); err != nil {
		return domain.NewOutputError(fmt.Sprintf("failed to close %s", path), err)
	}
	return nil
}

func writeMermaidDocument(f *os.File, render func(sb *strings.Builder) error) error {
	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	if err := render(&sb); err != nil {
		return err
	}
	sb.WriteString("```\n")
	_, err := f.WriteString(sb.String())
	return err
}

// ReportFileName derives <prefix><basename>.<ext> from a program path
func ReportFileName(prefix, programPath string, format domain.OutputFormat) string {
	base := filepath.Base(programPath)
	ext := filepath.Ext(base)
	for _, known := range constants.DefaultSourceExtensions {
		if strings.EqualFold(ext, known) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}

	switch format {
	case domain.OutputFormatYAML:
		return prefix + base + ".yaml"
	case domain.OutputFormatText:
		return prefix + base + ".txt"
	case domain.OutputFormatHTML:
		return prefix + base + ".html"
	default:
		return prefix + base + ".json"
	}
}

// BuildErrorReport collects file failures and program diagnostics
func BuildErrorReport(response *domain.AnalyzeResponse) ErrorReport {
	report := ErrorReport{Errors: []ErrorReportEntry{}}
	if response == nil {
		return report
	}
	for _, e := range response.Errors {
		file, message := splitTaskError(e)
		report.Errors = append(report.Errors, ErrorReportEntry{File: file, Message: message})
	}
	for _, p := range response.Programs {
		for _, d := range p.Diagnostics {
			report.Errors = append(report.Errors, ErrorReportEntry{
				File:     p.FilePath,
				Message:  d.Message,
				Line:     d.Line,
				Category: d.Category,
				Subject:  d.Subject,
			})
		}
	}
	return report
}

// splitTaskError separates "[path] message" as produced by the program service
func splitTaskError(s string) (string, string) {
	if strings.HasPrefix(s, "[") {
		if end := strings.Index(s, "] "); end > 0 {
			return s[1:end], s[end+2:]
		}
	}
	return "", s
}
