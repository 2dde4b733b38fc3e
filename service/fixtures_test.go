package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/cblscan/domain"
)

const payrollSource = `       IDENTIFICATION DIVISION.
       PROGRAM-ID. PAYROLL.
       ENVIRONMENT DIVISION.
       INPUT-OUTPUT SECTION.
       FILE-CONTROL.
           SELECT PAYFILE ASSIGN TO 'PAYDAT'.
       DATA DIVISION.
       FILE SECTION.
       FD PAYFILE
           LABEL RECORDS ARE STANDARD.
       01 PAY-REC PIC X(80).
       WORKING-STORAGE SECTION.
       COPY PAYWS.
       PROCEDURE DIVISION.
           OPEN INPUT PAYFILE
           PERFORM READ-PARA
           CALL 'AUDIT' USING WS-TOTAL
           STOP RUN.
       READ-PARA.
           READ PAYFILE
           IF WS-AMOUNT > 0
               ADD WS-AMOUNT TO WS-TOTAL
           END-IF.
       DEAD-PARA.
           DISPLAY 'NEVER'.
`

const payrollCopybook = `       01 WS-TOTAL PIC 9(7) VALUE ZERO.
       01 WS-AMOUNT PIC 9(5) VALUE ZERO.
`

const billingSource = `       IDENTIFICATION DIVISION.
       PROGRAM-ID. BILLING.
       PROCEDURE DIVISION.
       MAIN-LOGIC.
           PERFORM CALC-PARA
           GOBACK.
       CALC-PARA.
           DISPLAY 'CALC'.
`

// writeFixture writes name with content into dir and returns its path
func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), name)
	return path
}

// payrollFixture lays out PAYROLL.cbl with its copybook and returns the program path
func payrollFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, "PAYWS.cpy", payrollCopybook)
	return writeFixture(t, dir, "PAYROLL.cbl", payrollSource)
}

// sampleGraph is a hand-built program for formatter tests
func sampleGraph() *domain.ProgramGraph {
	return &domain.ProgramGraph{
		ProgramID:      "PAYROLL",
		FilePath:       "src/PAYROLL.cbl",
		Copybooks:      []string{"PAYWS.cpy"},
		Divisions:      []string{"IDENTIFICATION", "PROCEDURE"},
		Sections:       []string{},
		WorkingStorage: map[string]string{"WS-TOTAL": "PIC 9(7)"},
		EntryParagraph: "_MAIN",
		Paragraphs: []domain.ParagraphNode{
			{
				Name: "_MAIN", StartLine: 15, Complexity: 2, RiskLevel: domain.RiskLevelLow, Reachable: true,
				PerformTargets: []string{"READ-PARA"}, CallTargets: []string{"AUDIT"},
				Statements: []*domain.StatementNode{
					{Kind: "PERFORM", Line: 16, Content: "PERFORM READ-PARA", Pseudocode: "READ_PARA();"},
					{Kind: "CALL", Line: 17, Content: "CALL 'AUDIT' USING WS-TOTAL", Pseudocode: "call AUDIT(WS-TOTAL);"},
				},
			},
			{
				Name: "READ-PARA", StartLine: 19, Complexity: 12, RiskLevel: domain.RiskLevelMedium, Reachable: true,
				GoToTargets: []string{"READ-PARA"},
				Statements: []*domain.StatementNode{
					{
						Kind: "CONDITION", Line: 21, Content: "IF WS-AMOUNT > 0", Pseudocode: "if (WS-AMOUNT > 0) {",
						Then: []*domain.StatementNode{
							{Kind: "ADD", Line: 22, Content: "ADD WS-AMOUNT TO WS-TOTAL", Pseudocode: "WS-TOTAL += WS-AMOUNT;"},
						},
					},
					{Kind: "GOTO", Line: 24, Content: "GO TO READ-PARA", Pseudocode: "goto READ_PARA;"},
				},
			},
			{Name: "DEAD-PARA", StartLine: 25, Complexity: 1, RiskLevel: domain.RiskLevelLow, Reachable: false},
		},
		CallGraph: map[string][]string{
			"_MAIN":     {"READ-PARA", "CALL::AUDIT"},
			"READ-PARA": {"READ-PARA"},
			"DEAD-PARA": {},
		},
		Unreachable: []string{"DEAD-PARA"},
		Cycles: []domain.Cycle{
			{Paragraphs: []string{"READ-PARA"}, Severity: "low", Description: "READ-PARA transfers control to itself"},
		},
		Movements: []domain.Movement{
			{Operation: "ADD", Sources: []string{"WS-AMOUNT"}, Target: "WS-TOTAL", Line: 22},
			{Operation: "ACCEPT", Sources: []string{}, Target: "WS-DATE", Line: 23},
			{Operation: "DISPLAY", Sources: []string{"WS-TOTAL"}, Target: "", Line: 26},
		},
		Usage: map[string]domain.ParagraphUsage{},
		CFG: domain.ControlFlowGraph{
			Entry: "LINE_16",
			Edges: []domain.CFGEdge{
				{From: "LINE_16", To: "READ-PARA"},
				{From: "LINE_16", To: "LINE_17"},
				{From: "LINE_21", To: "LINE_22"},
			},
		},
		Complexity: 13,
		Diagnostics: []domain.Diagnostic{
			{Subject: "END-IF", Message: "END-IF without open IF", Line: 27, Category: domain.DiagnosticStructural},
			{Subject: "PAYWS", Message: "Missing copybook PAYWS", Line: 13, Category: domain.DiagnosticInclusion},
		},
	}
}
