package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/cblscan/app"
	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/service"
)

type analyzeOptions struct {
	requestFlags

	outputFormat string
	jsonOutput   bool
	htmlOutput   bool
	outputPath   string
	outputDir    string
	prefix       string
	mermaid      bool
	dot          bool
	details      bool
	sortBy       string
}

func analyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [path...]",
		Short: "Structure COBOL programs",
		Long: `Expand copybooks, structure statements and build the call graph, control flow
graph and data flow of every COBOL program under the given paths.

Examples:
  cblscan analyze src/
  cblscan analyze -I copybooks --json src/PAYROLL.cbl
  cblscan analyze --output-dir reports --mermaid --dot src/
  cblscan analyze --html -o report.html src/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputFormat, "format", "f", "",
		"Output format: text, json, yaml, html (default from config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false,
		"Output results as JSON (shorthand for --format json)")
	cmd.Flags().BoolVar(&opts.htmlOutput, "html", false,
		"Output results as HTML (shorthand for --format html)")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "",
		"Write the combined report to this file instead of stdout")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "d", "",
		"Write one report per program into this directory")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "",
		"Prefix for generated report file names")
	cmd.Flags().BoolVar(&opts.mermaid, "mermaid", false,
		"Also write Mermaid call graph and data flow diagrams (with --output-dir)")
	cmd.Flags().BoolVar(&opts.dot, "dot", false,
		"Also write Graphviz control flow graphs (with --output-dir)")
	cmd.Flags().BoolVar(&opts.details, "details", false,
		"Include statement trees in text output")
	cmd.Flags().StringVar(&opts.sortBy, "sort", "",
		"Paragraph order in text output: line, name, complexity")
	opts.register(cmd)

	return cmd
}

// format resolves the output format from the shorthand flags
func (o *analyzeOptions) format() domain.OutputFormat {
	switch {
	case o.jsonOutput:
		return domain.OutputFormatJSON
	case o.htmlOutput:
		return domain.OutputFormatHTML
	default:
		return domain.OutputFormat(o.outputFormat)
	}
}

// request builds the command-line override for the configuration
func (o *analyzeOptions) request() domain.AnalyzeRequest {
	req := domain.AnalyzeRequest{
		OutputFormat: o.format(),
		OutputDir:    o.outputDir,
		OutputPrefix: o.prefix,
		Mermaid:      o.mermaid,
		DOT:          o.dot,
		ShowDetails:  o.details,
		SortBy:       domain.SortCriteria(o.sortBy),
	}
	o.override(&req)
	return req
}

func runAnalyze(cmd *cobra.Command, args []string, opts *analyzeOptions) error {
	if len(args) == 0 {
		return fmt.Errorf("no paths specified")
	}

	req, err := loadRequest(opts.configPath, args, opts.request())
	if err != nil {
		return err
	}

	logger, err := newLogger(req.LogLevel, req.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	// Progress bars only when the report does not go to the terminal
	pm := service.NewProgressManager(req.OutputDir != "" || opts.outputPath != "")
	defer pm.Close()

	svc, _, err := newProgramService(req, pm, logger)
	if err != nil {
		return err
	}

	formatter := service.NewOutputFormatter().WithSort(req.SortBy).WithDetails(req.ShowDetails)
	reports := service.NewReportWriter(formatter)
	reports.SetLogger(logger)

	uc, err := app.NewAnalyzeUseCaseBuilder().
		WithService(svc).
		WithFormatter(formatter).
		WithReportSink(reports).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}

	req.OutputWriter = cmd.OutOrStdout()
	if opts.outputPath != "" && req.OutputDir == "" {
		file, err := os.Create(opts.outputPath)
		if err != nil {
			return domain.NewOutputError("failed to create output file", err)
		}
		defer file.Close()
		req.OutputWriter = file
	}

	result, err := uc.Execute(cmd.Context(), *req)
	if err != nil {
		return err
	}

	for _, e := range result.Response.Errors {
		logger.Warn("program skipped", "error", e)
	}

	switch {
	case req.OutputDir != "":
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d report files to %s\n", len(result.Written), req.OutputDir)
	case opts.outputPath != "":
		displayPath := opts.outputPath
		if absPath, err := filepath.Abs(opts.outputPath); err == nil {
			displayPath = absPath
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report saved to: %s\n", displayPath)
	}
	return nil
}
