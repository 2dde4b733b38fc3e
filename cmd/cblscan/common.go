package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/internal/constants"
	"github.com/ludo-technologies/cblscan/internal/copybook"
	"github.com/ludo-technologies/cblscan/service"
)

var (
	logLevel  string
	logFormat string
)

// requestFlags are the options shared by analyze, check and watch
type requestFlags struct {
	configPath      string
	includeDirs     []string
	mainParagraph   string
	maxCopyDepth    int
	workers         int
	timeout         time.Duration
	metricsTextfile string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "",
		"Path to config file")
	cmd.Flags().StringSliceVarP(&f.includeDirs, "include-dir", "I", nil,
		"Copybook directory, searched before configured ones (repeatable)")
	cmd.Flags().StringVar(&f.mainParagraph, "main-paragraph", "",
		"Name of the paragraph holding statements before the first header")
	cmd.Flags().IntVar(&f.maxCopyDepth, "max-copy-depth", 0,
		"Maximum COPY nesting (default from config)")
	cmd.Flags().IntVarP(&f.workers, "workers", "j", 0,
		"Concurrent program analyses (default from config)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0,
		"Timeout for the whole run (default from config)")
	cmd.Flags().StringVar(&f.metricsTextfile, "metrics-textfile", "",
		"Write Prometheus metrics to this file after the run")
}

// override copies the flags onto a request for merging with the config
func (f *requestFlags) override(req *domain.AnalyzeRequest) {
	req.ConfigPath = f.configPath
	req.IncludeDirs = f.includeDirs
	req.MainParagraph = f.mainParagraph
	req.MaxCopyDepth = f.maxCopyDepth
	req.MaxGoroutines = f.workers
	req.Timeout = f.timeout
	req.MetricsTextfile = f.metricsTextfile
	req.LogLevel = logLevel
	req.LogFormat = logFormat
}

// loadRequest loads the configuration found for args[0], applies the
// command-line override and validates the result
func loadRequest(configPath string, args []string, override domain.AnalyzeRequest) (*domain.AnalyzeRequest, error) {
	loader := service.NewConfigurationLoader()

	target := ""
	if len(args) > 0 {
		target = args[0]
	}
	base, err := loader.LoadConfigForTarget(configPath, target)
	if err != nil {
		return nil, err
	}

	override.Paths = args
	merged := loader.MergeConfig(base, &override)
	if err := loader.ValidateConfig(merged); err != nil {
		return nil, domain.NewConfigError("invalid configuration", err)
	}
	return merged, nil
}

// newLogger builds the slog logger for level and format. Empty values
// default to warn and text.
func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level = slog.LevelWarn
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q", level)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (must be text or json)", format)
	}
}

// newProgramService wires a program service with its copybook cache
func newProgramService(req *domain.AnalyzeRequest, pm domain.ProgressManager, logger *slog.Logger) (*service.ProgramServiceImpl, *copybook.Cache, error) {
	size := req.CacheSize
	if size <= 0 {
		size = constants.DefaultCopybookCacheSize
	}
	cache, err := copybook.NewCache(size)
	if err != nil {
		return nil, nil, domain.NewConfigError("invalid copybook cache size", err)
	}

	svc := service.NewProgramServiceWithProgress(cache, pm)
	svc.SetLogger(logger)
	return svc, cache, nil
}
