package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/cblscan/domain"
)

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var de domain.DomainError
	require.True(t, errors.As(err, &de), "expected a DomainError, got %T", err)
	return de.Code
}

func TestProgramService_AnalyzeFile(t *testing.T) {
	path := payrollFixture(t)
	svc := NewProgramService(nil)

	graph, err := svc.AnalyzeFile(context.Background(), path, domain.AnalyzeRequest{})
	require.NoError(t, err)
	require.NotNil(t, graph)

	assert.Equal(t, "PAYROLL", graph.ProgramID)
	assert.Equal(t, path, graph.FilePath)
	assert.Equal(t, []string{"PAYWS.cpy"}, graph.Copybooks)
	assert.Equal(t, "_MAIN", graph.EntryParagraph)

	names := make([]string, 0, len(graph.Paragraphs))
	for _, p := range graph.Paragraphs {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"_MAIN", "READ-PARA", "DEAD-PARA"}, names)

	assert.Equal(t, []string{"DEAD-PARA"}, graph.Unreachable)
	assert.Equal(t, []string{"READ-PARA", "CALL::AUDIT"}, graph.CallGraph["_MAIN"])
	assert.Contains(t, graph.CallGraph, "DEAD-PARA")

	assert.Equal(t, 2, graph.Paragraph("_MAIN").Complexity)
	assert.Equal(t, 2, graph.Paragraph("READ-PARA").Complexity)
	assert.Equal(t, 1, graph.Paragraph("DEAD-PARA").Complexity)
	assert.Equal(t, 3, graph.Complexity)
	assert.False(t, graph.Paragraph("DEAD-PARA").Reachable)
	assert.True(t, graph.Paragraph("READ-PARA").Reachable)

	assert.Contains(t, graph.WorkingStorage, "WS-TOTAL")
	assert.Contains(t, graph.WorkingStorage, "WS-AMOUNT")

	require.Len(t, graph.FileDescriptions, 1)
	assert.Equal(t, "PAYFILE", graph.FileDescriptions[0].Name)
	require.NotNil(t, graph.FileDescriptions[0].FileControl)
	assert.Equal(t, "PAYFILE", graph.FileDescriptions[0].FileControl.Name)

	// out-of-line PERFORM opens a block that the paragraph end closes
	assert.Greater(t, graph.DiagnosticsByCategory()[domain.DiagnosticStructural], 0)
	assert.NotEmpty(t, graph.CFG.Entry)
}

func TestProgramService_AnalyzeFile_NotFound(t *testing.T) {
	svc := NewProgramService(nil)
	_, err := svc.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "MISSING.cbl"), domain.AnalyzeRequest{})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeFileNotFound, errorCode(t, err))
}

func TestProgramService_AnalyzeSource_NamedEntry(t *testing.T) {
	svc := NewProgramService(nil)
	path := filepath.Join(t.TempDir(), "BILLING.cbl")

	graph, err := svc.AnalyzeSource(context.Background(), path, billingSource, domain.AnalyzeRequest{MainParagraph: "IGNORED"})
	require.NoError(t, err)

	assert.Equal(t, "BILLING", graph.ProgramID)
	assert.Equal(t, "MAIN-LOGIC", graph.EntryParagraph)
	assert.Equal(t, []string{"CALC-PARA"}, graph.CallGraph["MAIN-LOGIC"])
	assert.Empty(t, graph.Unreachable)
	assert.Empty(t, graph.Copybooks)
}

func TestProgramService_AnalyzeSource_MissingCopybook(t *testing.T) {
	svc := NewProgramService(nil)
	path := filepath.Join(t.TempDir(), "PAYROLL.cbl")

	graph, err := svc.AnalyzeSource(context.Background(), path, payrollSource, domain.AnalyzeRequest{})
	require.NoError(t, err)
	assert.Empty(t, graph.Copybooks)
	assert.Greater(t, graph.DiagnosticsByCategory()[domain.DiagnosticInclusion], 0)
}

func TestProgramService_AnalyzeSource_InvalidKeywords(t *testing.T) {
	svc := NewProgramService(nil)
	_, err := svc.AnalyzeSource(context.Background(), "BILLING.cbl", billingSource,
		domain.AnalyzeRequest{Keywords: []string{"IF", "FROBNICATE"}})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeConfigError, errorCode(t, err))
}

func TestProgramService_Analyze(t *testing.T) {
	payroll := payrollFixture(t)
	billing := writeFixture(t, filepath.Dir(payroll), "BILLING.cbl", billingSource)
	missing := filepath.Join(filepath.Dir(payroll), "GONE.cbl")

	svc := NewProgramService(nil)
	resp, err := svc.Analyze(context.Background(), domain.AnalyzeRequest{
		Paths:         []string{payroll, billing, missing},
		MaxGoroutines: 2,
	})
	require.NoError(t, err)
	require.Len(t, resp.Programs, 2)

	ids := []string{resp.Programs[0].ProgramID, resp.Programs[1].ProgramID}
	assert.ElementsMatch(t, []string{"PAYROLL", "BILLING"}, ids)

	require.Len(t, resp.Errors, 1)
	assert.True(t, strings.HasPrefix(resp.Errors[0], "["+missing+"] "), resp.Errors[0])

	s := resp.Summary
	assert.Equal(t, 2, s.ProgramsAnalyzed)
	assert.Equal(t, 1, s.FilesFailed)
	assert.Equal(t, 5, s.TotalParagraphs)
	assert.Equal(t, 1, s.UnreachableParagraphs)
	assert.Equal(t, 1, s.Copybooks)
	assert.Equal(t, 3, s.MaxComplexity)
	assert.Equal(t, 5, s.LowRiskParagraphs)
	assert.NotEmpty(t, resp.GeneratedAt)
	assert.NotEmpty(t, resp.Version)
}

func TestProgramService_Analyze_NoPaths(t *testing.T) {
	_, err := NewProgramService(nil).Analyze(context.Background(), domain.AnalyzeRequest{})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeInvalidInput, errorCode(t, err))
}

func TestProgramService_Analyze_AllFailed(t *testing.T) {
	dir := t.TempDir()
	_, err := NewProgramService(nil).Analyze(context.Background(), domain.AnalyzeRequest{
		Paths: []string{filepath.Join(dir, "A.cbl"), filepath.Join(dir, "B.cbl")},
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeAnalysisError, errorCode(t, err))
}

func TestProgramService_Analyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProgramService(nil).Analyze(ctx, domain.AnalyzeRequest{Paths: []string{payrollFixture(t)}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProgramService_Analyze_MetricsTextfile(t *testing.T) {
	path := payrollFixture(t)
	out := filepath.Join(t.TempDir(), "cblscan.prom")

	svc := NewProgramService(nil)
	_, err := svc.Analyze(context.Background(), domain.AnalyzeRequest{
		Paths:           []string{path},
		MetricsTextfile: out,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cblscan_programs_analyzed_total 1")
	assert.Contains(t, string(data), "cblscan_paragraphs_total 3")
}

func TestProgramTask(t *testing.T) {
	svc := NewProgramService(nil)
	task := NewProgramTask(svc, payrollFixture(t), domain.AnalyzeRequest{})

	assert.True(t, task.IsEnabled())
	assert.True(t, strings.HasSuffix(task.Name(), "PAYROLL.cbl"))

	out, err := task.Execute(context.Background())
	require.NoError(t, err)
	graph, err := task.Result()
	require.NoError(t, err)
	assert.Same(t, graph, out.(*domain.ProgramGraph))

	assert.False(t, NewProgramTask(nil, "X.cbl", domain.AnalyzeRequest{}).IsEnabled())
	assert.False(t, NewProgramTask(svc, "", domain.AnalyzeRequest{}).IsEnabled())
}
