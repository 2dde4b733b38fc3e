package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/cblscan/app"
	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/service"
)

// CheckExitError is a custom error type for check command exit codes
type CheckExitError struct {
	Code    int
	Message string
}

func (e *CheckExitError) Error() string {
	return e.Message
}

type checkOptions struct {
	requestFlags

	maxComplexity    int
	allowStructural  bool
	allowUnreachable bool
	verbose          bool
	jsonOutput       bool
}

func checkCmd() *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check [path...]",
		Short: "Fast quality check for CI/CD pipelines",
		Long: `Run quality checks against configurable thresholds for CI/CD integration.

Exit codes:
  0 - All checks pass
  1 - Quality threshold(s) violated
  2 - Analysis error (file not found, invalid configuration, etc.)

Examples:
  # Basic check with defaults
  cblscan check src/

  # Fail programs above complexity 50
  cblscan check --max-complexity 50 src/

  # Tolerate unbalanced scope terminators and dead paragraphs
  cblscan check --allow-structural --allow-unreachable src/

  # JSON output for machine parsing
  cblscan check --json src/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
		SilenceUsage:  true, // Don't print usage on errors (we handle our own output)
		SilenceErrors: true, // Don't print error messages (we handle our own output)
	}

	cmd.Flags().IntVar(&opts.maxComplexity, "max-complexity", 0,
		"Maximum allowed program complexity (default from config, 0 = no limit)")
	cmd.Flags().BoolVar(&opts.allowStructural, "allow-structural", false,
		"Allow structural diagnostics without failing")
	cmd.Flags().BoolVar(&opts.allowUnreachable, "allow-unreachable", false,
		"Allow unreachable paragraphs without failing")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show detailed output")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false,
		"Output results as JSON")
	opts.register(cmd)

	return cmd
}

func runCheck(cmd *cobra.Command, args []string, opts *checkOptions) error {
	if len(args) == 0 {
		return &CheckExitError{Code: 2, Message: "no paths specified"}
	}

	override := domain.AnalyzeRequest{}
	opts.override(&override)

	req, err := loadRequest(opts.configPath, args, override)
	if err != nil {
		return &CheckExitError{Code: 2, Message: fmt.Sprintf("failed to load configuration: %v", err)}
	}
	// An explicit --max-complexity 0 disables the limit
	if cmd.Flags().Changed("max-complexity") {
		req.MaxComplexity = opts.maxComplexity
	}

	logger, err := newLogger(req.LogLevel, req.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return &CheckExitError{Code: 2, Message: err.Error()}
	}

	// Create progress manager (auto-disabled for JSON output or non-TTY/CI)
	pm := service.NewProgressManager(!opts.jsonOutput)
	defer pm.Close()

	svc, _, err := newProgramService(req, pm, logger)
	if err != nil {
		return &CheckExitError{Code: 2, Message: err.Error()}
	}

	checker := service.NewCheckService(service.CheckOptions{
		MaxComplexity:    req.MaxComplexity,
		AllowStructural:  opts.allowStructural,
		AllowUnreachable: opts.allowUnreachable,
		Verbose:          opts.verbose,
	})

	result, err := app.NewCheckUseCase(svc, checker).Execute(cmd.Context(), *req)
	if err != nil {
		return &CheckExitError{Code: 2, Message: err.Error()}
	}

	if opts.jsonOutput {
		return outputCheckJSON(cmd.OutOrStdout(), result)
	}
	return outputCheckText(cmd.OutOrStdout(), result, opts.verbose, req.MaxComplexity)
}

func outputCheckText(w io.Writer, result *domain.CheckResult, verbose bool, maxComplexity int) error {
	if result.Passed {
		fmt.Fprintln(w, "PASS: All quality checks passed")
		if verbose {
			fmt.Fprintf(w, "  Programs analyzed: %d\n", result.Summary.FilesAnalyzed)
			fmt.Fprintf(w, "  Duration: %dms\n", result.Duration)
			if result.Summary.ComplexityChecked {
				fmt.Fprintf(w, "  Complexity: checked (max: %d)\n", maxComplexity)
			}
			if result.Summary.StructureChecked {
				fmt.Fprintf(w, "  Structure: checked\n")
			}
			if result.Summary.ReachabilityChecked {
				fmt.Fprintf(w, "  Reachability: checked\n")
			}
		}
		return nil
	}

	fmt.Fprintln(w, "FAIL: Quality check failed")
	fmt.Fprintf(w, "  Violations: %d\n", result.Summary.TotalViolations)

	// Print violations
	for _, v := range result.Violations {
		severity := "ERROR"
		if v.Severity == "warning" {
			severity = "WARN"
		}
		fmt.Fprintf(w, "  [%s] %s: %s\n", severity, v.Category, v.Message)
		if verbose && v.Location != "" {
			fmt.Fprintf(w, "         at %s\n", v.Location)
		}
	}

	if verbose {
		fmt.Fprintf(w, "\nSummary:\n")
		fmt.Fprintf(w, "  Programs: %d\n", result.Summary.FilesAnalyzed)
		if result.Summary.ComplexityChecked {
			fmt.Fprintf(w, "  High complexity programs: %d\n", result.Summary.HighComplexityPrograms)
		}
		fmt.Fprintf(w, "  Structural diagnostics: %d\n", result.Summary.StructuralDiagnostics)
		fmt.Fprintf(w, "  Unreachable paragraphs: %d\n", result.Summary.UnreachableParagraphs)
		fmt.Fprintf(w, "  Duration: %dms\n", result.Duration)
	}

	return &CheckExitError{Code: result.ExitCode, Message: ""}
}

func outputCheckJSON(w io.Writer, result *domain.CheckResult) error {
	if err := service.WriteJSON(w, result); err != nil {
		return &CheckExitError{Code: 2, Message: fmt.Sprintf("failed to encode JSON: %v", err)}
	}

	if !result.Passed {
		return &CheckExitError{Code: result.ExitCode, Message: ""}
	}
	return nil
}

