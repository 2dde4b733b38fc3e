package parser

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/ludo-technologies/cblscan/internal/analyzer"
	"github.com/ludo-technologies/cblscan/internal/diag"
)

// areaA indents each line past the sequence and indicator areas
func areaA(lines ...string) string {
	var b strings.Builder
	for _, l := range lines {
		if strings.HasPrefix(l, "*") {
			b.WriteString("      " + l + "\n")
			continue
		}
		b.WriteString("       " + l + "\n")
	}
	return b.String()
}

const payrollProgram = `       IDENTIFICATION DIVISION.
       PROGRAM-ID. PAYROLL.
       ENVIRONMENT DIVISION.
       INPUT-OUTPUT SECTION.
       FILE-CONTROL.
           SELECT PAYFILE ASSIGN TO 'PAYDAT'
               ORGANIZATION IS SEQUENTIAL.
       DATA DIVISION.
       FILE SECTION.
       FD PAYFILE
           LABEL RECORDS ARE STANDARD.
       01 PAY-REC PIC X(80).
       WORKING-STORAGE SECTION.
       01 WS-TOTAL PIC 9(7) VALUE ZERO.
       01 WS-EOF PIC X VALUE 'N'.
           88 EOF-YES VALUE 'Y'.
      * a comment
       PROCEDURE DIVISION.
           OPEN INPUT PAYFILE
           PERFORM READ-PARA
           STOP RUN.
       READ-PARA.
           READ PAYFILE AT END MOVE 'Y' TO WS-EOF.
           ADD 1 TO
               WS-TOTAL.
           IF WS-TOTAL > 10 DISPLAY 'BIG' END-IF.
`

func parse(t *testing.T, text string) *Unit {
	t.Helper()
	unit, err := NewParser(Options{}).ParseString(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if unit == nil {
		t.Fatal("Unit is nil")
	}
	return unit
}

func TestParseProgramStructure(t *testing.T) {
	unit := parse(t, payrollProgram)

	if unit.ProgramID != "PAYROLL." || !unit.HasProgramID {
		t.Errorf("Expected raw program id 'PAYROLL.', got %q (present=%v)", unit.ProgramID, unit.HasProgramID)
	}

	wantDivisions := []string{"IDENTIFICATION", "ENVIRONMENT", "DATA", "PROCEDURE"}
	if !reflect.DeepEqual(unit.Divisions, wantDivisions) {
		t.Errorf("Expected divisions %v, got %v", wantDivisions, unit.Divisions)
	}
	wantSections := []string{"INPUT-OUTPUT", "FILE", "WORKING-STORAGE"}
	if !reflect.DeepEqual(unit.Sections, wantSections) {
		t.Errorf("Expected sections %v, got %v", wantSections, unit.Sections)
	}
	if len(unit.Diagnostics) != 0 {
		t.Errorf("Expected no diagnostics, got %v", unit.Diagnostics)
	}
}

func TestParseDataDivision(t *testing.T) {
	unit := parse(t, payrollProgram)

	wantVars := []string{"PAY-REC", "WS-TOTAL", "WS-EOF", "EOF-YES"}
	if got := unit.Variables(); !reflect.DeepEqual(got, wantVars) {
		t.Errorf("Expected variables %v, got %v", wantVars, got)
	}

	ws := unit.WorkingStorage()
	expected := map[string]string{
		"PAY-REC":  "PIC X(80)",
		"WS-TOTAL": "PIC 9(7) VALUE ZERO",
		"WS-EOF":   "PIC X VALUE 'N'",
		"EOF-YES":  "VALUE 'Y'",
	}
	for name, def := range expected {
		if ws[name] != def {
			t.Errorf("Expected definition of %s to be %q, got %q", name, def, ws[name])
		}
	}

	if len(unit.DataItems) != 4 {
		t.Fatalf("Expected 4 data items, got %d", len(unit.DataItems))
	}
	if !unit.DataItems[3].IsCondition() {
		t.Error("Expected EOF-YES to be a condition name")
	}
	if unit.DataItems[1].Section != "WORKING-STORAGE" {
		t.Errorf("Expected WORKING-STORAGE section, got %s", unit.DataItems[1].Section)
	}
}

func TestParseFileEntries(t *testing.T) {
	unit := parse(t, payrollProgram)

	if len(unit.FileControls) != 1 {
		t.Fatalf("Expected 1 FILE-CONTROL entry, got %d", len(unit.FileControls))
	}
	fc := unit.FileControls[0]
	if fc.Name != "PAYFILE" || fc.Assign != "PAYDAT" || fc.Organization != "SEQUENTIAL" {
		t.Errorf("Unexpected FILE-CONTROL entry: %+v", fc)
	}
	if fc.Line != 6 {
		t.Errorf("Expected FILE-CONTROL line 6, got %d", fc.Line)
	}
	if fc.Select != "SELECT PAYFILE ASSIGN PAYDAT ORGANIZATION SEQUENTIAL" {
		t.Errorf("Unexpected select clause: %s", fc.Select)
	}

	if len(unit.FDs) != 1 {
		t.Fatalf("Expected 1 FD, got %d", len(unit.FDs))
	}
	fd := unit.FDs[0]
	if fd.Name != "PAYFILE" || fd.Label != "LABEL RECORDS ARE STANDARD" || fd.Location.Line != 10 {
		t.Errorf("Unexpected FD: %+v", fd)
	}
	if len(fd.Records) != 1 || fd.Records[0].Name != "PAY-REC" || fd.Records[0].Picture != "X(80)" {
		t.Errorf("Unexpected FD records: %+v", fd.Records)
	}
}

func TestParseProcedureParagraphs(t *testing.T) {
	unit := parse(t, payrollProgram)

	if len(unit.Paragraphs) != 2 {
		t.Fatalf("Expected 2 paragraphs, got %d", len(unit.Paragraphs))
	}
	if unit.Entry() != "" {
		t.Errorf("Expected no named entry paragraph, got %s", unit.Entry())
	}

	main := unit.Paragraphs[0]
	wantMain := []analyzer.StatementLine{
		{Text: "OPEN INPUT PAYFILE", Line: 19},
		{Text: "PERFORM READ-PARA", Line: 20},
		{Text: "STOP RUN.", Line: 21},
	}
	if main.Name != "" || !reflect.DeepEqual(main.Lines, wantMain) {
		t.Errorf("Unexpected main paragraph %q: %+v", main.Name, main.Lines)
	}

	read := unit.Paragraphs[1]
	wantRead := []analyzer.StatementLine{
		{Text: "READ PAYFILE AT END", Line: 23},
		{Text: "MOVE 'Y' TO WS-EOF.", Line: 23},
		{Text: "ADD 1 TO WS-TOTAL.", Line: 24},
		{Text: "IF WS-TOTAL > 10", Line: 26},
		{Text: "DISPLAY 'BIG'", Line: 26},
		{Text: "END-IF.", Line: 26},
	}
	if read.Name != "READ-PARA" || !reflect.DeepEqual(read.Lines, wantRead) {
		t.Errorf("Unexpected paragraph %q: %+v", read.Name, read.Lines)
	}
}

// numbered builds a fixed-format line with a sequence number and an
// identification area in columns 73-80
func numbered(seq int, indicator byte, body string) string {
	return fmt.Sprintf("%06d%c%-65s%s\n", seq, indicator, body, fmt.Sprintf("SEQ%05d", seq))
}

func TestParseSequenceAndIdentificationAreas(t *testing.T) {
	text := numbered(100, ' ', "IDENTIFICATION DIVISION.") +
		numbered(200, ' ', "PROGRAM-ID. NUMBERED.") +
		numbered(300, ' ', "PROCEDURE DIVISION.") +
		numbered(400, ' ', "    DISPLAY 'HELLO'") +
		numbered(500, '*', "    DISPLAY 'COMMENTED'") +
		numbered(600, ' ', "    DISPLAY 'A LONG LITERAL THAT") +
		numbered(700, '-', "    'CONTINUES HERE'.")

	unit := parse(t, text)
	if unit.ProgramID != "NUMBERED." {
		t.Errorf("Expected program id NUMBERED., got %q", unit.ProgramID)
	}
	if len(unit.Paragraphs) != 1 {
		t.Fatalf("Expected 1 paragraph, got %d", len(unit.Paragraphs))
	}
	want := []analyzer.StatementLine{
		{Text: "DISPLAY 'HELLO'", Line: 4},
		{Text: "DISPLAY 'A LONG LITERAL THATCONTINUES HERE'.", Line: 6},
	}
	if !reflect.DeepEqual(unit.Paragraphs[0].Lines, want) {
		t.Errorf("Unexpected lines: %+v", unit.Paragraphs[0].Lines)
	}
}

func TestParseCopybookMarkersAndInlineComments(t *testing.T) {
	text := areaA(
		"PROCEDURE DIVISION.",
		"*> #include <CUST.cpy> line 2",
		"MOVE 'A*>B' TO X *> trailing note",
		"*> #endinclude <CUST.cpy>",
		"GOBACK.",
	)

	unit := parse(t, text)
	want := []analyzer.StatementLine{
		{Text: "MOVE 'A*>B' TO X", Line: 3},
		{Text: "GOBACK.", Line: 5},
	}
	if !reflect.DeepEqual(unit.Paragraphs[0].Lines, want) {
		t.Errorf("Unexpected lines: %+v", unit.Paragraphs[0].Lines)
	}
}

func TestParseEntryParagraph(t *testing.T) {
	text := areaA(
		"PROCEDURE DIVISION.",
		"MAIN-LOGIC SECTION.",
		"START-PARA. DISPLAY 'GO'.",
		"EXIT.",
	)

	unit := parse(t, text)
	if len(unit.Paragraphs) != 2 {
		t.Fatalf("Expected 2 paragraphs, got %d", len(unit.Paragraphs))
	}
	if unit.Entry() != "MAIN-LOGIC" {
		t.Errorf("Expected entry MAIN-LOGIC, got %q", unit.Entry())
	}
	start := unit.Paragraphs[1]
	want := []analyzer.StatementLine{
		{Text: "DISPLAY 'GO'.", Line: 3},
		{Text: "EXIT.", Line: 4},
	}
	if start.Name != "START-PARA" || !reflect.DeepEqual(start.Lines, want) {
		t.Errorf("Unexpected paragraph %q: %+v", start.Name, start.Lines)
	}
	if !reflect.DeepEqual(unit.Sections, []string{"MAIN-LOGIC"}) {
		t.Errorf("Expected procedure section recorded, got %v", unit.Sections)
	}
}

func TestParseProgramIDOnNextLine(t *testing.T) {
	unit := parse(t, areaA("IDENTIFICATION DIVISION.", "PROGRAM-ID.", "LATE-NAME.", "PROCEDURE DIVISION."))
	if !unit.HasProgramID || unit.ProgramID != "LATE-NAME." {
		t.Errorf("Expected LATE-NAME., got %q", unit.ProgramID)
	}

	unit = parse(t, areaA("IDENTIFICATION DIVISION.", "PROGRAM-ID.", "AUTHOR. SOMEONE.", "PROCEDURE DIVISION."))
	if !unit.HasProgramID || unit.ProgramID != "" {
		t.Errorf("Expected an empty program id, got %q", unit.ProgramID)
	}
}

func TestParseMissingProcedureDivision(t *testing.T) {
	unit := parse(t, areaA("IDENTIFICATION DIVISION.", "PROGRAM-ID. NOPROC."))
	if len(unit.Diagnostics) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(unit.Diagnostics))
	}
	d := unit.Diagnostics[0]
	if d.Category != diag.CategoryMalformed || d.Message != "Missing PROCEDURE DIVISION" {
		t.Errorf("Unexpected diagnostic: %+v", d)
	}
}

func TestSplitStatements(t *testing.T) {
	keywords := NewParser(Options{}).keywords

	tests := []struct {
		text string
		want []string
	}{
		{"MOVE A TO B", []string{"MOVE A TO B"}},
		{"IF A = 1 MOVE 1 TO B ELSE MOVE 2 TO B END-IF.", []string{"IF A = 1", "MOVE 1 TO B", "ELSE", "MOVE 2 TO B", "END-IF."}},
		{"GO TO DONE DISPLAY 'X'", []string{"GO TO DONE", "DISPLAY 'X'"}},
		{"DISPLAY 'IF ELSE' MOVE A TO B", []string{"DISPLAY 'IF ELSE'", "MOVE A TO B"}},
		{"PERFORM X CALL 'SUB' USING A", []string{"PERFORM X CALL 'SUB' USING A"}},
		{"EVALUATE X WHEN 1 DISPLAY 'A'", []string{"EVALUATE X", "WHEN 1", "DISPLAY 'A'"}},
		{"MOVE END-IF-FLAG TO B", []string{"MOVE END-IF-FLAG TO B"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.text, func(t *testing.T) {
			got := splitStatements(tt.text, keywords)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitStatements(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalizeLine(t *testing.T) {
	tests := []struct {
		raw  string
		kind lineKind
		text string
	}{
		{"", lineBlank, ""},
		{"       ", lineBlank, ""},
		{"      * comment", lineComment, ""},
		{"      / page", lineComment, ""},
		{"      D DISPLAY 'DEBUG'", lineComment, ""},
		{"*> free comment", lineComment, ""},
		{"       MOVE   A   TO  B", lineCode, "MOVE A TO B"},
		{"   MOVE A TO B", lineCode, "MOVE A TO B"},
		{"      -    'REST'.", lineContinuation, "'REST'."},
	}

	for _, tt := range tests {
		got := normalizeLine(tt.raw, 1)
		if got.kind != tt.kind || got.text != tt.text {
			t.Errorf("normalizeLine(%q) = (%d, %q), want (%d, %q)", tt.raw, got.kind, got.text, tt.kind, tt.text)
		}
	}
}

func TestUnitProgramInput(t *testing.T) {
	unit := parse(t, payrollProgram)

	lineMap := make(analyzer.LineMap, 26)
	for i := range lineMap {
		lineMap[i] = i + 101
	}
	input := unit.ProgramInput(lineMap, diag.Diagnostic{Category: diag.CategoryInclusion, Message: "Missing copybook X"})

	if input.ProgramID != "PAYROLL." || !input.HasProgramID {
		t.Errorf("Unexpected program id %q", input.ProgramID)
	}
	if len(input.Paragraphs) != 2 || input.Paragraphs[1].Name != "READ-PARA" {
		t.Fatalf("Unexpected paragraphs: %+v", input.Paragraphs)
	}
	if input.Paragraphs[0].Lines[0].Line != 19 {
		t.Errorf("Statement lines must stay in expanded coordinates, got %d", input.Paragraphs[0].Lines[0].Line)
	}
	if input.FileControls[0].Line != 106 {
		t.Errorf("Expected remapped FILE-CONTROL line 106, got %d", input.FileControls[0].Line)
	}
	fd := input.FileDescriptions[0]
	if fd.Line != 110 || fd.Records[0].Level != "01" || fd.Records[0].Line != 112 {
		t.Errorf("Unexpected FD input: %+v", fd)
	}
	if len(input.Diagnostics) != 1 || input.Diagnostics[0].Message != "Missing copybook X" {
		t.Errorf("Unexpected diagnostics: %+v", input.Diagnostics)
	}
	if unit.FileControls[0].Line != 6 {
		t.Error("ProgramInput must not modify the unit")
	}
}

func TestParseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewParser(Options{}).ParseFile(ctx, "x.cbl", payrollProgram); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
