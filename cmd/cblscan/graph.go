package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/cblscan/app"
	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/service"
)

type graphOptions struct {
	configPath   string
	includeDirs  []string
	kind         string
	outputPath   string
	maxDepth     int
	noLegend     bool
	hideExternal bool
	rankDir      string
	direction    string
}

func graphCmd() *cobra.Command {
	opts := &graphOptions{}

	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Render the call graph, data flow or control flow of one program",
		Long: `Structure a single COBOL program and render one of its graphs.

Kinds:
  callgraph      Mermaid paragraph call graph
  dataflow       Mermaid variable data flow
  callgraph-dot  Graphviz paragraph call graph
  cfg            Graphviz statement control flow graph

Examples:
  # Render the control flow graph with Graphviz
  cblscan graph --kind cfg src/PAYROLL.cbl | dot -Tsvg -o payroll.svg

  # Paragraph call graph limited to two levels below the entry paragraph
  cblscan graph --kind callgraph-dot --max-depth 2 src/PAYROLL.cbl

  # Save a Mermaid diagram
  cblscan graph --kind dataflow -o dataflow.mmd src/PAYROLL.cbl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "kind", "k", string(app.GraphCallMermaid),
		"Graph kind: callgraph, dataflow, callgraph-dot, cfg")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "",
		"Output file path (default: stdout)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to config file")
	cmd.Flags().StringSliceVarP(&opts.includeDirs, "include-dir", "I", nil,
		"Copybook directory, searched before configured ones (repeatable)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0,
		"Limit call graph depth from the entry paragraph (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.noLegend, "no-legend", false,
		"Disable legend in DOT output")
	cmd.Flags().BoolVar(&opts.hideExternal, "hide-external", false,
		"Hide CALL targets in the DOT call graph")
	cmd.Flags().StringVar(&opts.rankDir, "rank-dir", "TB",
		"Layout direction for DOT: TB, LR, BT, RL")
	cmd.Flags().StringVar(&opts.direction, "direction", "TD",
		"Layout direction for Mermaid: TD, LR, BT, RL")

	return cmd
}

// renderers maps every graph kind to its formatter
func (o *graphOptions) renderers() map[app.GraphKind]app.GraphRenderer {
	dotConfig := service.DefaultDOTFormatterConfig()
	dotConfig.MaxDepth = o.maxDepth
	dotConfig.ShowLegend = !o.noLegend
	dotConfig.ShowExternal = !o.hideExternal
	dotConfig.RankDir = o.rankDir
	dot := service.NewDOTFormatter(dotConfig)

	mermaid := service.NewMermaidFormatter()
	mermaid.Direction = o.direction

	return map[app.GraphKind]app.GraphRenderer{
		app.GraphCallMermaid: mermaid.WriteCallGraph,
		app.GraphDataFlow:    mermaid.WriteDataFlow,
		app.GraphCallDOT:     dot.WriteCallGraph,
		app.GraphCFG:         dot.WriteCFG,
	}
}

func runGraph(cmd *cobra.Command, args []string, opts *graphOptions) (err error) {
	override := domain.AnalyzeRequest{
		ConfigPath:  opts.configPath,
		IncludeDirs: opts.includeDirs,
		LogLevel:    logLevel,
		LogFormat:   logFormat,
	}
	req, err := loadRequest(opts.configPath, args, override)
	if err != nil {
		return err
	}

	logger, err := newLogger(req.LogLevel, req.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	svc, _, err := newProgramService(req, nil, logger)
	if err != nil {
		return err
	}

	// Determine output writer
	var writer io.Writer = cmd.OutOrStdout()
	if opts.outputPath != "" {
		f, createErr := os.Create(opts.outputPath)
		if createErr != nil {
			return fmt.Errorf("failed to create output file: %w", createErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("failed to close output file: %w", closeErr)
			}
		}()
		writer = f
	}

	uc := app.NewGraphUseCase(svc, opts.renderers())
	program, err := uc.Execute(cmd.Context(), args[0], app.GraphKind(opts.kind), *req, writer)
	if err != nil {
		return err
	}

	for _, d := range program.Diagnostics {
		logger.Info("diagnostic",
			"category", d.Category,
			"subject", d.Subject,
			"line", d.Line,
			"message", d.Message)
	}
	return nil
}
