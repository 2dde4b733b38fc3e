package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/cblscan/app"
	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/service"
)

type watchOptions struct {
	requestFlags

	outputFormat string
	outputDir    string
	debounce     time.Duration
}

func watchCmd() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [path...]",
		Short: "Re-analyze programs whenever sources or copybooks change",
		Long: `Analyze the given paths, then watch them and every copybook directory and
re-run the analysis after each batch of changes. Stop with Ctrl-C.

Examples:
  cblscan watch src/
  cblscan watch -I copybooks --output-dir reports src/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputFormat, "format", "f", "",
		"Output format: text, json, yaml, html (default from config)")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "d", "",
		"Write one report per program into this directory")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", app.DefaultDebounce,
		"Quiet period before re-running after a change")
	opts.register(cmd)

	return cmd
}

func runWatch(cmd *cobra.Command, args []string, opts *watchOptions) error {
	if len(args) == 0 {
		return fmt.Errorf("no paths specified")
	}

	override := domain.AnalyzeRequest{
		OutputFormat: domain.OutputFormat(opts.outputFormat),
		OutputDir:    opts.outputDir,
	}
	opts.override(&override)

	req, err := loadRequest(opts.configPath, args, override)
	if err != nil {
		return err
	}
	req.OutputWriter = cmd.OutOrStdout()

	logger, err := newLogger(req.LogLevel, req.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	svc, cache, err := newProgramService(req, nil, logger)
	if err != nil {
		return err
	}

	formatter := service.NewOutputFormatter().WithSort(req.SortBy).WithDetails(req.ShowDetails)
	reports := service.NewReportWriter(formatter)
	reports.SetLogger(logger)

	analyze, err := app.NewAnalyzeUseCaseBuilder().
		WithService(svc).
		WithFormatter(formatter).
		WithReportSink(reports).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d path(s), press Ctrl-C to stop\n", len(args))

	uc := app.NewWatchUseCase(analyze).
		WithDebounce(opts.debounce).
		WithInvalidate(cache.Purge)

	return uc.Run(ctx, *req, func(result *app.AnalyzeResult, err error) {
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("analysis failed", "error", err)
			}
			return
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] analyzed %d program(s) in %s\n",
			time.Now().Format(time.TimeOnly),
			result.Response.Summary.ProgramsAnalyzed,
			result.Duration.Round(time.Millisecond))
	})
}
