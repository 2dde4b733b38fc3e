package analyzer

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/ludo-technologies/cblscan/internal/diag"
)

func sampleInput() ProgramInput {
	return ProgramInput{
		ProgramID:    "PAYROLL",
		HasProgramID: true,
		Variables:    []string{"WS-TOTAL", "WS-AMOUNT", "WS-EOF", "PAY-REC"},
		WorkingStorage: map[string]string{
			"WS-TOTAL":  "PIC 9(7)",
			"WS-AMOUNT": "PIC 9(5)",
		},
		FileControls: []FileControlEntry{{Name: "PAYFILE", Assign: "PAYDAT", Line: 4}},
		FileDescriptions: []FileDescriptionInput{
			{Name: "PAYFILE", Label: "STANDARD", Line: 8, Records: []FileRecord{{Name: "PAY-REC", Level: "01", Line: 9}}},
		},
		Paragraphs: []ParagraphInput{
			para("", 20,
				"OPEN INPUT PAYFILE",
				"PERFORM READ-PARA THRU READ-EXIT",
				"CALL 'AUDIT' USING WS-TOTAL",
				"STOP RUN.",
			),
			para("READ-PARA", 30,
				"READ PAYFILE INTO PAY-REC",
				"IF WS-AMOUNT > 0",
				"ADD WS-AMOUNT TO WS-TOTAL",
				"END-IF",
			),
			para("READ-EXIT", 40, "EXIT."),
			para("DEAD-PARA", 50, "DISPLAY 'NEVER'"),
		},
	}
}

func TestBuildProgram_EndToEnd(t *testing.T) {
	program, err := BuildProgram(context.Background(), sampleInput(), DefaultOptions())
	if err != nil {
		t.Fatalf("BuildProgram failed: %v", err)
	}

	if program.ID != "PAYROLL" {
		t.Errorf("Expected program PAYROLL, got %s", program.ID)
	}
	if len(program.Paragraphs) != 4 {
		t.Fatalf("Expected 4 paragraphs, got %d", len(program.Paragraphs))
	}
	if program.Paragraphs[0].Name != "_MAIN" {
		t.Errorf("Expected unnamed paragraph to become _MAIN, got %s", program.Paragraphs[0].Name)
	}

	if got, want := program.CallGraph.Targets("_MAIN"), []string{"READ-PARA", "READ-EXIT", "CALL::AUDIT"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected _MAIN targets %v, got %v", want, got)
	}
	if got := program.Reachability.UnreachableParagraphs; !reflect.DeepEqual(got, []string{"DEAD-PARA"}) {
		t.Errorf("Expected [DEAD-PARA] unreachable, got %v", got)
	}

	// _MAIN: PERFORM (+1); READ-PARA: IF (+1)
	if program.Paragraphs[0].Complexity != 2 || program.Paragraphs[1].Complexity != 2 {
		t.Errorf("Expected paragraph complexities 2 and 2, got %d and %d",
			program.Paragraphs[0].Complexity, program.Paragraphs[1].Complexity)
	}
	if program.Complexity != 3 {
		t.Errorf("Expected program complexity 3, got %d", program.Complexity)
	}

	if program.CFG.Entry != "LINE_20" {
		t.Errorf("Expected CFG entry LINE_20, got %s", program.CFG.Entry)
	}

	readPara := program.Paragraph("READ-PARA")
	if readPara == nil {
		t.Fatal("Expected READ-PARA to exist")
	}
	cond := readPara.Statements[1]
	if cond.Kind != KindCondition {
		t.Errorf("Expected CONDITION, got %s", cond.Kind)
	}
	if d, ok := cond.Descriptor.(*ConditionDescriptor); !ok || d.Operator != ">" {
		t.Errorf("Expected > condition, got %+v", cond.Descriptor)
	}

	usage := program.Usage["READ-PARA"]
	if want := []string{"PAYFILE", "WS-AMOUNT", "WS-TOTAL"}; !reflect.DeepEqual(usage.Reads, want) {
		t.Errorf("Expected reads %v, got %v", want, usage.Reads)
	}
	if want := []string{"PAYFILE", "PAY-REC", "WS-TOTAL"}; !reflect.DeepEqual(usage.Writes, want) {
		t.Errorf("Expected writes %v, got %v", want, usage.Writes)
	}
	callMove := Movement{Operation: "CALL", Sources: []string{"WS-TOTAL"}, Target: "AUDIT", Line: 22}
	found := false
	for _, m := range program.Movements {
		if reflect.DeepEqual(m, callMove) {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected movement %+v in %+v", callMove, program.Movements)
	}

	// the out-of-line PERFORM opens a block that is never closed
	if len(program.Diagnostics) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %v", program.Diagnostics)
	}
	if msg := program.Diagnostics[0].Message; !strings.HasPrefix(msg, "Unclosed PERFORM in paragraph _MAIN") {
		t.Errorf("Unexpected diagnostic %q", msg)
	}
}

func TestBuildProgram_RemapsLinesAndDiagnostics(t *testing.T) {
	input := ProgramInput{
		ProgramID:    "P",
		HasProgramID: true,
		LineMap:      LineMap{1, 2, 1, 1, 3},
		Paragraphs: []ParagraphInput{
			para("MAIN-PARA", 1, "MOVE A TO B", "IF X", "DISPLAY 'IN COPY'", "END-EVALUATE", "END-IF"),
		},
	}

	program, err := BuildProgram(context.Background(), input, Options{MainParagraph: "MAIN-PARA"})
	if err != nil {
		t.Fatalf("BuildProgram failed: %v", err)
	}

	p := program.Paragraphs[0]
	if p.Statements[0].Line != 1 || p.Statements[1].Line != 2 || p.Statements[1].Then[0].Line != 1 {
		t.Errorf("Expected remapped lines 1, 2 and 1, got %d, %d and %d",
			p.Statements[0].Line, p.Statements[1].Line, p.Statements[1].Then[0].Line)
	}

	if len(program.Diagnostics) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %v", program.Diagnostics)
	}
	if program.Diagnostics[0].Line != 1 {
		t.Errorf("Expected diagnostic at line 1, got %d", program.Diagnostics[0].Line)
	}
	if program.CFG.Entry != "LINE_1" {
		t.Errorf("Expected CFG entry LINE_1, got %s", program.CFG.Entry)
	}
}

func TestBuildProgram_ProgramIDValidation(t *testing.T) {
	unknownID := regexp.MustCompile(`^UNKNOWN_[0-9a-f]{8}$`)
	tests := []struct {
		name     string
		raw      string
		present  bool
		wantID   string
		wantDiag string
	}{
		{"valid", "PAYROLL.", true, "PAYROLL", ""},
		{"quoted", "'PAY-01'", true, "PAY-01", ""},
		{"missing", "", false, "", "Missing program name in PROGRAM-ID paragraph"},
		{"empty", "  ", true, "", "Empty program name in PROGRAM-ID paragraph"},
		{"invalid", "PAY_ROLL", true, "PAY_ROLL", "Invalid program name: PAY_ROLL (must be alphanumeric or hyphen, max 31 characters)"},
		{"too long", strings.Repeat("A", 32), true, strings.Repeat("A", 32), "Invalid program name: " + strings.Repeat("A", 32) + " (must be alphanumeric or hyphen, max 31 characters)"},
		{"collision", "INIT", true, "INIT", "Program ID conflicts with paragraph name: INIT"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			diags := diag.NewList()
			id := ResolveProgramID(tt.raw, tt.present, []string{"_MAIN", "INIT"}, diags)

			if tt.wantID == "" {
				if !unknownID.MatchString(id) {
					t.Errorf("Expected an UNKNOWN_ fallback id, got %s", id)
				}
			} else if id != tt.wantID {
				t.Errorf("Expected id %s, got %s", tt.wantID, id)
			}

			if tt.wantDiag == "" {
				if diags.Len() != 0 {
					t.Errorf("Expected no diagnostics, got %v", diags.Items())
				}
				return
			}
			if diags.Len() != 1 {
				t.Fatalf("Expected 1 diagnostic, got %d", diags.Len())
			}
			d := diags.Items()[0]
			if d.Message != tt.wantDiag {
				t.Errorf("Expected %q, got %q", tt.wantDiag, d.Message)
			}
			if d.Category != diag.CategoryReferential {
				t.Errorf("Expected referential diagnostic, got %s", d.Category)
			}
		})
	}
}

func TestBuildProgram_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := BuildProgram(ctx, sampleInput(), DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestBuildProgram_EmptyInput(t *testing.T) {
	program, err := BuildProgram(context.Background(), ProgramInput{}, Options{})
	if err != nil {
		t.Fatalf("BuildProgram failed: %v", err)
	}

	if len(program.Paragraphs) != 0 {
		t.Errorf("Expected no paragraphs, got %d", len(program.Paragraphs))
	}
	if program.Complexity != 1 {
		t.Errorf("Expected complexity 1, got %d", program.Complexity)
	}
	if program.CFG.Entry != "UNKNOWN" {
		t.Errorf("Expected CFG entry UNKNOWN, got %s", program.CFG.Entry)
	}
	if got := program.Reachability.ReachableParagraphs; !reflect.DeepEqual(got, []string{"_MAIN"}) {
		t.Errorf("Expected [_MAIN] reachable, got %v", got)
	}
	if len(program.Diagnostics) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %v", program.Diagnostics)
	}
	if msg := program.Diagnostics[0].Message; msg != "Missing program name in PROGRAM-ID paragraph" {
		t.Errorf("Unexpected diagnostic %q", msg)
	}
}

func TestLineMap_Remap(t *testing.T) {
	m := LineMap{10, 11, 3}
	tests := []struct {
		m    LineMap
		line int
		want int
	}{
		{m, 1, 10},
		{m, 3, 3},
		{m, 4, 4},
		{m, 0, 0},
		{nil, 7, 7},
	}
	for _, tt := range tests {
		if got := tt.m.Remap(tt.line); got != tt.want {
			t.Errorf("Remap(%d) = %d, expected %d", tt.line, got, tt.want)
		}
	}
}
