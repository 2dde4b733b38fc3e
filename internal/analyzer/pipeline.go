package analyzer

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ludo-technologies/cblscan/internal/constants"
	"github.com/ludo-technologies/cblscan/internal/diag"
)

// Options configures a structuring run
type Options struct {
	MainParagraph string
	Keywords      *KeywordSet
	Logger        *slog.Logger
}

// DefaultOptions returns options with the default keyword set and _MAIN entry
func DefaultOptions() Options {
	return Options{
		MainParagraph: constants.MainParagraph,
		Keywords:      DefaultKeywordSet(),
	}
}

// ProgramInput is everything the core needs from a front-end
type ProgramInput struct {
	ProgramID        string
	HasProgramID     bool
	Paragraphs       []ParagraphInput
	Variables        []string
	WorkingStorage   map[string]string
	FileControls     []FileControlEntry
	FileDescriptions []FileDescriptionInput
	LineMap          LineMap
	Diagnostics      []diag.Diagnostic
}

// Program is the structured result of one input program
type Program struct {
	ID           string
	Paragraphs   []*ParagraphResult
	CallGraph    *CallGraph
	Reachability *ReachabilityResult
	Cycles       []ParagraphCycle
	Movements    []Movement
	Usage        map[string]ParagraphUsage
	CFG          *CFG
	Files        *FileIndex
	Complexity   int
	Diagnostics  []diag.Diagnostic
}

// Paragraph returns the named paragraph, or nil
func (p *Program) Paragraph(name string) *ParagraphResult {
	for _, para := range p.Paragraphs {
		if para.Name == name {
			return para
		}
	}
	return nil
}

// BuildProgram runs the structurer, graph builder and post-processor over one
// program. It only fails when ctx is cancelled; every other problem becomes a
// diagnostic.
func BuildProgram(ctx context.Context, input ProgramInput, opts Options) (*Program, error) {
	if opts.MainParagraph == "" {
		opts.MainParagraph = constants.MainParagraph
	}
	if opts.Keywords == nil {
		opts.Keywords = DefaultKeywordSet()
	}
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}

	diags := diag.NewList()
	diags.Append(input.Diagnostics...)

	names := paragraphNames(input.Paragraphs, opts.MainParagraph)
	id := ResolveProgramID(input.ProgramID, input.HasProgramID, names, diags)
	logger = logger.With(slog.String("program", id))

	files := BuildFileIndex(input.FileControls, input.FileDescriptions, input.WorkingStorage, diags, logger)

	structurer := NewStructurer(opts.Keywords, files)
	structurer.SetLogger(logger)

	// structural diagnostics carry expanded lines until remapped here
	structural := diag.NewList()
	results := make([]*ParagraphResult, 0, len(input.Paragraphs))
	for i, para := range input.Paragraphs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		para.Name = names[i]
		results = append(results, structurer.Structure(para, structural))
	}
	for _, d := range structural.Items() {
		d.Line = input.LineMap.Remap(d.Line)
		diags.Append(d)
	}

	post := NewPostProcessor(input.LineMap, opts.MainParagraph)
	post.SetLogger(logger)
	results, cfg := post.Run(results)
	for _, fd := range files.Ordered() {
		shapeFileDescription(fd)
	}

	graph := NewCallGraph()
	graph.AddParagraph(opts.MainParagraph)
	fileNames := make([]string, 0, len(files.Controls)+len(files.Descriptions))
	for name := range files.Controls {
		fileNames = append(fileNames, name)
	}
	for name := range files.Descriptions {
		fileNames = append(fileNames, name)
	}
	tracker := NewDataFlowTracker(input.Variables, fileNames)

	for _, p := range results {
		graph.AddParagraph(p.Name)
		for _, target := range p.Targets {
			graph.AddEdge(p.Name, target)
		}
		tracker.TrackAll(p.Name, p.Statements)
	}

	reach := NewReachabilityAnalyzer(graph).AnalyzeReachability(opts.MainParagraph)
	logger.Debug("program structured",
		slog.Int("paragraphs", len(results)),
		slog.Int("edges", graph.EdgeCount()),
		slog.Int("unreachable", reach.UnreachableCount))

	return &Program{
		ID:           id,
		Paragraphs:   results,
		CallGraph:    graph,
		Reachability: reach,
		Cycles:       NewRecursionDetector().DetectCycles(graph),
		Movements:    tracker.Movements(),
		Usage:        tracker.Usage(),
		CFG:          cfg,
		Files:        files,
		Complexity:   ProgramComplexity(results),
		Diagnostics:  diags.Items(),
	}, nil
}

// paragraphNames upper-cases names and fills in missing ones. The first
// unnamed paragraph is the main paragraph.
func paragraphNames(paragraphs []ParagraphInput, main string) []string {
	names := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		name := strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(p.Name), "."))
		switch {
		case name != "":
		case i == 0:
			name = main
		default:
			name = constants.UnknownValue + "_" + strconv.Itoa(i)
		}
		names[i] = name
	}
	return names
}
