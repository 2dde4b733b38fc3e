package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/service"
)

const billingProgram = `       IDENTIFICATION DIVISION.
       PROGRAM-ID. BILLING.
       PROCEDURE DIVISION.
       MAIN-LOGIC.
           PERFORM CALC-PARA
           GOBACK.
       CALC-PARA.
           DISPLAY 'CALC'.
       ORPHAN-PARA.
           DISPLAY 'NEVER'.
`

func writeProgram(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(billingProgram), 0o644))
	return path
}

func newAnalyzeUseCase(t *testing.T) *AnalyzeUseCase {
	t.Helper()
	formatter := service.NewOutputFormatter()
	uc, err := NewAnalyzeUseCaseBuilder().
		WithService(service.NewProgramService(nil)).
		WithFormatter(formatter).
		WithReportSink(service.NewReportWriter(formatter)).
		Build()
	require.NoError(t, err)
	return uc
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var de domain.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %T: %v", err, err)
	return de.Code
}

func TestAnalyzeUseCaseBuilder_RequiresService(t *testing.T) {
	_, err := NewAnalyzeUseCaseBuilder().Build()
	assert.Error(t, err)
}

func TestAnalyzeUseCase_WritesToOutputWriter(t *testing.T) {
	dir := t.TempDir()
	writeProgram(t, dir, "BILLING.cbl")

	var buf bytes.Buffer
	result, err := newAnalyzeUseCase(t).Execute(context.Background(), domain.AnalyzeRequest{
		Paths:        []string{dir},
		Recursive:    true,
		OutputFormat: domain.OutputFormatJSON,
		OutputWriter: &buf,
	})
	require.NoError(t, err)

	require.Len(t, result.Files, 1)
	require.Len(t, result.Response.Programs, 1)
	assert.Equal(t, "BILLING", result.Response.Programs[0].ProgramID)
	assert.Equal(t, []string{"ORPHAN-PARA"}, result.Response.Programs[0].Unreachable)
	assert.Empty(t, result.Written)
	assert.Contains(t, buf.String(), `"program_id": "BILLING"`)
}

func TestAnalyzeUseCase_WritesReports(t *testing.T) {
	dir := t.TempDir()
	writeProgram(t, dir, "BILLING.cbl")
	out := filepath.Join(t.TempDir(), "reports")

	result, err := newAnalyzeUseCase(t).Execute(context.Background(), domain.AnalyzeRequest{
		Paths:        []string{dir},
		Recursive:    true,
		OutputFormat: domain.OutputFormatJSON,
		OutputDir:    out,
		Mermaid:      true,
	})
	require.NoError(t, err)

	require.Len(t, result.Written, 3)
	for _, path := range result.Written {
		assert.FileExists(t, path)
	}
	assert.FileExists(t, filepath.Join(out, "BILLING.json"))
	assert.FileExists(t, filepath.Join(out, "callgraph_BILLING.md"))
}

func TestAnalyzeUseCase_NoPrograms(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0o644))

	_, err := newAnalyzeUseCase(t).Execute(context.Background(), domain.AnalyzeRequest{
		Paths:     []string{dir},
		Recursive: true,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeInvalidInput, domainCode(t, err))
}

func TestAnalyzeUseCase_MissingPath(t *testing.T) {
	_, err := newAnalyzeUseCase(t).Execute(context.Background(), domain.AnalyzeRequest{
		Paths: []string{filepath.Join(t.TempDir(), "missing")},
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeFileNotFound, domainCode(t, err))
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.AnalyzeRequest
		wantErr bool
	}{
		{"valid", domain.AnalyzeRequest{Paths: []string{"."}}, false},
		{"no paths", domain.AnalyzeRequest{}, true},
		{"negative max", domain.AnalyzeRequest{Paths: []string{"."}, MaxComplexity: -1}, true},
		{"inverted thresholds", domain.AnalyzeRequest{Paths: []string{"."}, LowThreshold: 20, MediumThreshold: 10}, true},
		{"negative copy depth", domain.AnalyzeRequest{Paths: []string{"."}, MaxCopyDepth: -1}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequest(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckUseCase(t *testing.T) {
	dir := t.TempDir()
	writeProgram(t, dir, "BILLING.cbl")
	req := domain.AnalyzeRequest{Paths: []string{dir}, Recursive: true}

	strict := NewCheckUseCase(service.NewProgramService(nil), service.NewCheckService(service.CheckOptions{}))
	result, err := strict.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, 1, result.Summary.UnreachableParagraphs)

	lenient := NewCheckUseCase(service.NewProgramService(nil), service.NewCheckService(service.CheckOptions{
		AllowStructural:  true,
		AllowUnreachable: true,
	}))
	result, err = lenient.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, 0, result.ExitCode)
}

func TestCheckUseCase_NoChecker(t *testing.T) {
	uc := NewCheckUseCase(service.NewProgramService(nil), nil)
	_, err := uc.Execute(context.Background(), domain.AnalyzeRequest{Paths: []string{"."}})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeConfigError, domainCode(t, err))
}

func newGraphUseCase() *GraphUseCase {
	mermaid := service.NewMermaidFormatter()
	dot := service.NewDOTFormatter(nil)
	return NewGraphUseCase(service.NewProgramService(nil), map[GraphKind]GraphRenderer{
		GraphCallMermaid: mermaid.WriteCallGraph,
		GraphDataFlow:    mermaid.WriteDataFlow,
		GraphCallDOT:     dot.WriteCallGraph,
		GraphCFG:         dot.WriteCFG,
	})
}

func TestGraphUseCase(t *testing.T) {
	path := writeProgram(t, t.TempDir(), "BILLING.cbl")
	uc := newGraphUseCase()

	assert.Equal(t, []string{"callgraph", "callgraph-dot", "cfg", "dataflow"}, uc.Kinds())

	var buf bytes.Buffer
	program, err := uc.Execute(context.Background(), path, GraphCallMermaid, domain.AnalyzeRequest{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "BILLING", program.ProgramID)
	assert.Contains(t, buf.String(), "MAIN_LOGIC --> CALC_PARA")

	buf.Reset()
	_, err = uc.Execute(context.Background(), path, GraphCFG, domain.AnalyzeRequest{}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "digraph")
}

func TestGraphUseCase_Errors(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "BILLING.cbl")
	uc := newGraphUseCase()
	var buf bytes.Buffer

	_, err := uc.Execute(context.Background(), path, GraphKind("svg"), domain.AnalyzeRequest{}, &buf)
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeUnsupportedFormat, domainCode(t, err))

	_, err = uc.Execute(context.Background(), filepath.Join(dir, "NOTES.txt"), GraphCFG, domain.AnalyzeRequest{}, &buf)
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeInvalidInput, domainCode(t, err))

	_, err = uc.Execute(context.Background(), filepath.Join(dir, "MISSING.cbl"), GraphCFG, domain.AnalyzeRequest{}, &buf)
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeFileNotFound, domainCode(t, err))
}

func TestWatchUseCase_RerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "BILLING.cbl")

	var mu sync.Mutex
	runs := 0
	invalidated := 0
	rerun := make(chan struct{}, 4)

	uc := NewWatchUseCase(newAnalyzeUseCase(t)).
		WithDebounce(20 * time.Millisecond).
		WithInvalidate(func() {
			mu.Lock()
			invalidated++
			mu.Unlock()
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- uc.Run(ctx, domain.AnalyzeRequest{Paths: []string{dir}, Recursive: true}, func(result *AnalyzeResult, err error) {
			if ctx.Err() == nil {
				assert.NoError(t, err)
			}
			mu.Lock()
			runs++
			mu.Unlock()
			rerun <- struct{}{}
		})
	}()

	select {
	case <-rerun:
	case <-time.After(5 * time.Second):
		t.Fatal("initial analysis did not run")
	}

	require.NoError(t, os.WriteFile(path, []byte(billingProgram+"\n"), 0o644))

	select {
	case <-rerun:
	case <-time.After(5 * time.Second):
		t.Fatal("change did not trigger a re-run")
	}

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, runs, 2)
	assert.Equal(t, runs, invalidated)
}

func TestWatchUseCase_Relevant(t *testing.T) {
	uc := NewWatchUseCase(newAnalyzeUseCase(t))

	assert.True(t, uc.relevant(fsnotifyEvent("src/PAYROLL.cbl", true)))
	assert.True(t, uc.relevant(fsnotifyEvent("copy/PAYWS.cpy", true)))
	assert.False(t, uc.relevant(fsnotifyEvent("notes.txt", true)))
	assert.False(t, uc.relevant(fsnotifyEvent("src/PAYROLL.cbl", false)))
}

func fsnotifyEvent(name string, write bool) fsnotify.Event {
	op := fsnotify.Chmod
	if write {
		op = fsnotify.Write
	}
	return fsnotify.Event{Name: name, Op: op}
}
