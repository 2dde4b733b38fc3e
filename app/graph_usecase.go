package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ludo-technologies/cblscan/domain"
)

// GraphKind names one rendering of a program graph
type GraphKind string

const (
	GraphCallMermaid GraphKind = "callgraph"
	GraphDataFlow    GraphKind = "dataflow"
	GraphCallDOT     GraphKind = "callgraph-dot"
	GraphCFG         GraphKind = "cfg"
)

// GraphRenderer writes one rendering of a program
type GraphRenderer func(program *domain.ProgramGraph, w io.Writer) error

// GraphUseCase structures a single program and renders one of its graphs
type GraphUseCase struct {
	service    domain.ProgramService
	fileHelper *FileHelper
	renderers  map[GraphKind]GraphRenderer
}

// NewGraphUseCase creates a graph use case with the given renderers
func NewGraphUseCase(service domain.ProgramService, renderers map[GraphKind]GraphRenderer) *GraphUseCase {
	return &GraphUseCase{
		service:    service,
		fileHelper: NewFileHelper(),
		renderers:  renderers,
	}
}

// Kinds lists the registered graph kinds in name order
func (uc *GraphUseCase) Kinds() []string {
	kinds := make([]string, 0, len(uc.renderers))
	for k := range uc.renderers {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	return kinds
}

// Execute structures filePath and writes the requested graph to w
func (uc *GraphUseCase) Execute(ctx context.Context, filePath string, kind GraphKind, req domain.AnalyzeRequest, w io.Writer) (*domain.ProgramGraph, error) {
	render, ok := uc.renderers[kind]
	if !ok {
		return nil, domain.NewUnsupportedFormatError(fmt.Sprintf("%s (expected one of %s)", kind, strings.Join(uc.Kinds(), ", ")))
	}

	helper := uc.fileHelper.WithExtensions(req.Extensions)
	if !helper.IsValidCOBOLFile(filePath) {
		return nil, domain.NewInvalidInputError(fmt.Sprintf("not a COBOL source file: %s", filePath), nil)
	}
	exists, err := helper.FileExists(filePath)
	if err != nil {
		return nil, domain.NewFileNotFoundError(filePath, err)
	}
	if !exists {
		return nil, domain.NewFileNotFoundError(filePath, fmt.Errorf("file does not exist"))
	}

	program, err := uc.service.AnalyzeFile(ctx, filePath, req)
	if err != nil {
		return nil, err
	}
	if err := render(program, w); err != nil {
		return nil, domain.NewOutputError("failed to render "+string(kind), err)
	}
	return program, nil
}
