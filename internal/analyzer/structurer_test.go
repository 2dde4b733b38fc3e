package analyzer

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ludo-technologies/cblscan/internal/diag"
)

func TestStructurer_IfThenClose(t *testing.T) {
	res, diags := structure(para("P", 1, "IF A = B.", "MOVE X TO Y.", "END-IF."))

	if len(res.Statements) != 1 {
		t.Fatalf("Expected 1 top-level statement, got %d", len(res.Statements))
	}
	ifNode := res.Statements[0]
	if ifNode.Kind != KindIf || ifNode.Line != 1 {
		t.Errorf("Expected IF at line 1, got %s at %d", ifNode.Kind, ifNode.Line)
	}
	if len(ifNode.Then) != 1 || ifNode.Then[0].Kind != KindMove {
		t.Fatalf("Expected a single MOVE in the then-block, got %v", ifNode.Then)
	}
	if len(ifNode.Else) != 0 {
		t.Errorf("Expected empty else-block, got %v", ifNode.Else)
	}

	if res.Complexity != 2 {
		t.Errorf("Expected complexity 2, got %d", res.Complexity)
	}
	if diags.Len() != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags.Items())
	}
	want := []Terminator{{Kind: KindEndIf, Line: 3, OpenerLine: 1}}
	if !reflect.DeepEqual(res.Terminators, want) {
		t.Errorf("Expected terminators %v, got %v", want, res.Terminators)
	}
}

func TestStructurer_IfElse(t *testing.T) {
	res, diags := structure(para("P", 10,
		"IF FLAG = 'Y'",
		"MOVE 1 TO X",
		"ELSE",
		"MOVE 2 TO X",
		"DISPLAY X",
		"END-IF",
	))

	if len(res.Statements) != 1 {
		t.Fatalf("Expected 1 top-level statement, got %d", len(res.Statements))
	}
	ifNode := res.Statements[0]
	if len(ifNode.Then) != 1 {
		t.Fatalf("Expected 1 then statement, got %d", len(ifNode.Then))
	}
	if len(ifNode.Else) != 3 {
		t.Fatalf("Expected 3 else statements, got %d", len(ifNode.Else))
	}
	if ifNode.Else[0].Kind != KindElse || ifNode.Else[0].Pseudocode != "} else {" {
		t.Errorf("Expected ELSE marker first, got %s %q", ifNode.Else[0].Kind, ifNode.Else[0].Pseudocode)
	}
	if ifNode.Else[1].Line != 13 {
		t.Errorf("Expected else MOVE at line 13, got %d", ifNode.Else[1].Line)
	}
	if ifNode.Else[2].Kind != KindDisplay {
		t.Errorf("Expected DISPLAY, got %s", ifNode.Else[2].Kind)
	}
	if diags.Len() != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags.Items())
	}
}

func TestStructurer_ElseIfChain(t *testing.T) {
	res, diags := structure(para("P", 1,
		"IF A = 1",
		"MOVE 'ONE' TO X",
		"ELSE IF A = 2",
		"MOVE 'TWO' TO X",
		"END-IF",
		"END-IF",
	))

	if len(res.Statements) != 1 {
		t.Fatalf("Expected 1 top-level statement, got %d", len(res.Statements))
	}
	outer := res.Statements[0]
	if len(outer.Else) != 1 {
		t.Fatalf("Expected the chained IF as the only else statement, got %d", len(outer.Else))
	}
	inner := outer.Else[0]
	if inner.Kind != KindIf || inner.Content != "IF A = 2" {
		t.Errorf("Expected nested IF A = 2, got %s %q", inner.Kind, inner.Content)
	}
	if len(inner.Then) != 1 || inner.Then[0].Line != 4 {
		t.Errorf("Expected inner then-block with line 4, got %v", inner.Then)
	}

	if res.Complexity != 3 {
		t.Errorf("Expected complexity 3, got %d", res.Complexity)
	}
	if diags.Len() != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags.Items())
	}
	if len(res.Terminators) != 2 {
		t.Fatalf("Expected 2 terminators, got %d", len(res.Terminators))
	}
	if res.Terminators[0].OpenerLine != 3 || res.Terminators[1].OpenerLine != 1 {
		t.Errorf("Expected inner IF closed first, got %v", res.Terminators)
	}
}

func TestStructurer_ElseIfWithoutIf(t *testing.T) {
	res, diags := structure(para("P", 1, "ELSE IF A = 2", "MOVE 1 TO X"))

	if len(res.Statements) != 1 || res.Statements[0].Kind != KindMove {
		t.Errorf("Expected only the MOVE to survive, got %v", res.Statements)
	}
	if diags.Len() != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", diags.Len())
	}
	if diags.Items()[0].Category != diag.CategoryStructural {
		t.Errorf("Expected structural diagnostic, got %s", diags.Items()[0].Category)
	}
	if res.Complexity != 1 {
		t.Errorf("Expected complexity 1, got %d", res.Complexity)
	}
}

func TestStructurer_StrayTerminator(t *testing.T) {
	res, diags := structure(para("P", 7, "END-IF."))

	if len(res.Statements) != 0 || len(res.Terminators) != 0 {
		t.Errorf("Expected nothing structured, got %v / %v", res.Statements, res.Terminators)
	}
	if diags.Len() != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", diags.Len())
	}
	d := diags.Items()[0]
	if d.Category != diag.CategoryStructural {
		t.Errorf("Expected structural diagnostic, got %s", d.Category)
	}
	if d.Message != "Unmatched END-IF in paragraph P: END-IF." {
		t.Errorf("Unexpected message %q", d.Message)
	}
	if d.Line != 7 {
		t.Errorf("Expected line 7, got %d", d.Line)
	}
}

func TestStructurer_MismatchedTerminator(t *testing.T) {
	res, diags := structure(para("P", 1, "IF A", "END-EVALUATE", "MOVE A TO B", "END-IF"))

	if len(res.Statements) != 1 {
		t.Fatalf("Expected 1 top-level statement, got %d", len(res.Statements))
	}
	ifNode := res.Statements[0]
	if len(ifNode.Then) != 1 || ifNode.Then[0].Kind != KindMove {
		t.Errorf("Expected the MOVE inside the IF, got %v", ifNode.Then)
	}

	if diags.Len() != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", diags.Len())
	}
	if got := diags.Items()[0].Message; got != "Mismatched END-EVALUATE for IF in paragraph P: END-EVALUATE" {
		t.Errorf("Unexpected message %q", got)
	}
}

func TestStructurer_UnclosedBlocks(t *testing.T) {
	res, diags := structure(para("P", 1, "IF A", "EVALUATE B", "WHEN 1", "MOVE A TO B"))

	if len(res.Statements) != 1 {
		t.Fatalf("Expected 1 top-level statement, got %d", len(res.Statements))
	}
	ifNode := res.Statements[0]
	if len(ifNode.Then) != 1 {
		t.Fatalf("Expected EVALUATE inside the IF, got %v", ifNode.Then)
	}
	eval := ifNode.Then[0]
	if eval.Kind != KindEvaluate || len(eval.Cases) != 2 {
		t.Errorf("Expected EVALUATE with 2 cases, got %s with %d", eval.Kind, len(eval.Cases))
	}

	items := diags.Items()
	if len(items) != 2 {
		t.Fatalf("Expected 2 diagnostics, got %d", len(items))
	}
	if items[0].Message != "Unclosed EVALUATE in paragraph P: EVALUATE B" {
		t.Errorf("Unexpected first message %q", items[0].Message)
	}
	if items[1].Message != "Unclosed IF in paragraph P: IF A" {
		t.Errorf("Unexpected second message %q", items[1].Message)
	}
}

func TestStructurer_Evaluate(t *testing.T) {
	res, diags := structure(para("P", 1,
		"EVALUATE CODE",
		"WHEN 1",
		"MOVE 'A' TO X",
		"WHEN OTHER",
		"MOVE 'Z' TO X",
		"END-EVALUATE",
	))

	if len(res.Statements) != 1 {
		t.Fatalf("Expected 1 top-level statement, got %d", len(res.Statements))
	}
	eval := res.Statements[0]
	if len(eval.Cases) != 4 {
		t.Fatalf("Expected 4 cases, got %d", len(eval.Cases))
	}
	if eval.Cases[0].Kind != KindWhen || eval.Cases[0].Pseudocode != "case 1:" {
		t.Errorf("Expected WHEN 1 as case 1:, got %s %q", eval.Cases[0].Kind, eval.Cases[0].Pseudocode)
	}
	if eval.Cases[1].Kind != KindMove {
		t.Errorf("Expected MOVE after WHEN, got %s", eval.Cases[1].Kind)
	}
	if res.Complexity != 4 {
		t.Errorf("Expected complexity 4, got %d", res.Complexity)
	}
	if diags.Len() != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags.Items())
	}
}

func TestStructurer_OrphanWhen(t *testing.T) {
	res, diags := structure(para("P", 1, "WHEN 1", "MOVE A TO B"))

	if len(res.Statements) != 2 || res.Statements[0].Kind != KindWhen {
		t.Fatalf("Expected WHEN and MOVE at top level, got %v", res.Statements)
	}
	// A WHEN outside an EVALUATE is not a branch
	if res.Complexity != 1 {
		t.Errorf("Expected complexity 1, got %d", res.Complexity)
	}
	if diags.Len() != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", diags.Len())
	}
	if got := diags.Items()[0].Message; got != "Unmatched WHEN in paragraph P: WHEN 1" {
		t.Errorf("Unexpected message %q", got)
	}
}

func TestStructurer_Perform(t *testing.T) {
	t.Run("thru yields two edges", func(t *testing.T) {
		res, _ := structure(para("P", 1, "PERFORM PARA-A THRU PARA-B."))
		if len(res.Statements) != 1 {
			t.Fatalf("Expected 1 statement, got %d", len(res.Statements))
		}
		want := []string{"PARA-A", "PARA-B"}
		if !reflect.DeepEqual(res.Targets, want) {
			t.Errorf("Expected targets %v, got %v", want, res.Targets)
		}
		if !reflect.DeepEqual(res.PerformTargets, want) {
			t.Errorf("Expected perform targets %v, got %v", want, res.PerformTargets)
		}
		if got := res.Statements[0].Pseudocode; got != "call PARA-A thru PARA-B;" {
			t.Errorf("Unexpected pseudocode %q", got)
		}
		if res.Complexity != 2 {
			t.Errorf("Expected complexity 2, got %d", res.Complexity)
		}
	})

	t.Run("simple target", func(t *testing.T) {
		res, _ := structure(para("P", 1, "PERFORM INIT-PARA", "END-PERFORM"))
		if !reflect.DeepEqual(res.Targets, []string{"INIT-PARA"}) {
			t.Errorf("Expected [INIT-PARA], got %v", res.Targets)
		}
	})

	t.Run("varying yields no edges", func(t *testing.T) {
		res, diags := structure(para("P", 1,
			"PERFORM VARYING I FROM 1 BY 1 UNTIL I > 10",
			"ADD I TO TOTAL",
			"END-PERFORM",
		))
		if len(res.Statements) != 1 {
			t.Fatalf("Expected 1 statement, got %d", len(res.Statements))
		}
		loop := res.Statements[0]
		if len(res.Targets) != 0 {
			t.Errorf("Expected no targets, got %v", res.Targets)
		}
		if len(loop.Then) != 1 {
			t.Errorf("Expected loop body of 1, got %d", len(loop.Then))
		}
		if loop.Pseudocode != "for (I = 1; !(I > 10); I += 1) {" {
			t.Errorf("Unexpected pseudocode %q", loop.Pseudocode)
		}
		if diags.Len() != 0 {
			t.Errorf("Expected no diagnostics, got %v", diags.Items())
		}
	})

	t.Run("inline TIMES has no target", func(t *testing.T) {
		res, _ := structure(para("P", 1, "PERFORM 3 TIMES", "END-PERFORM"))
		if len(res.Targets) != 0 {
			t.Errorf("Expected no targets, got %v", res.Targets)
		}
	})

	t.Run("repeated targets collapse in the flat set", func(t *testing.T) {
		res, _ := structure(para("P", 1, "PERFORM A", "END-PERFORM", "PERFORM A", "END-PERFORM"))
		if !reflect.DeepEqual(res.Targets, []string{"A", "A"}) {
			t.Errorf("Expected both edges, got %v", res.Targets)
		}
		if !reflect.DeepEqual(res.PerformTargets, []string{"A"}) {
			t.Errorf("Expected [A], got %v", res.PerformTargets)
		}
	})
}

func TestStructurer_Call(t *testing.T) {
	res, diags := structure(para("P", 1, "CALL 'SUBPROG' USING X Y."))

	if len(res.Statements) != 1 {
		t.Fatalf("Expected 1 statement, got %d", len(res.Statements))
	}
	call := res.Statements[0]
	if call.Kind != KindCall {
		t.Errorf("Expected CALL, got %s", call.Kind)
	}
	if !reflect.DeepEqual(res.Targets, []string{"CALL::SUBPROG"}) {
		t.Errorf("Expected [CALL::SUBPROG], got %v", res.Targets)
	}
	if !reflect.DeepEqual(res.CallTargets, []string{"SUBPROG"}) {
		t.Errorf("Expected [SUBPROG], got %v", res.CallTargets)
	}
	if call.Pseudocode != "call_program(SUBPROG([X, Y]));" {
		t.Errorf("Unexpected pseudocode %q", call.Pseudocode)
	}
	if diags.Len() != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags.Items())
	}
	if res.Complexity != 1 {
		t.Errorf("Expected complexity 1, got %d", res.Complexity)
	}
}

func TestStructurer_MalformedCall(t *testing.T) {
	res, diags := structure(para("P", 5, "CALL"))

	if len(res.Statements) != 1 {
		t.Fatalf("Expected the CALL to be kept, got %d statements", len(res.Statements))
	}
	if len(res.Targets) != 0 {
		t.Errorf("Expected no targets, got %v", res.Targets)
	}
	if diags.Len() != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", diags.Len())
	}
	d := diags.Items()[0]
	if d.Category != diag.CategoryMalformed {
		t.Errorf("Expected malformed diagnostic, got %s", d.Category)
	}
	if d.Message != "Invalid CALL statement in paragraph P: CALL" {
		t.Errorf("Unexpected message %q", d.Message)
	}
}

func TestStructurer_GoTo(t *testing.T) {
	res, _ := structure(para("P", 1, "GO TO EXIT-PARA."))

	if len(res.Statements) != 1 {
		t.Fatalf("Expected 1 statement, got %d", len(res.Statements))
	}
	if res.Statements[0].Kind != KindGoTo {
		t.Errorf("Expected GOTO, got %s", res.Statements[0].Kind)
	}
	if !reflect.DeepEqual(res.GoToTargets, []string{"EXIT-PARA"}) {
		t.Errorf("Expected [EXIT-PARA], got %v", res.GoToTargets)
	}
	if got := res.Statements[0].Pseudocode; got != "goto EXIT-PARA;" {
		t.Errorf("Unexpected pseudocode %q", got)
	}
}

func TestStructurer_FileOps(t *testing.T) {
	files := BuildFileIndex(
		[]FileControlEntry{{Name: "CUSTFILE", Assign: "CUSTDAT"}},
		[]FileDescriptionInput{{Name: "CUSTFILE", Records: []FileRecord{{Name: "CUST-REC", Level: "01"}}}},
		nil, diag.NewList(), discardLogger(),
	)
	s := NewStructurer(DefaultKeywordSet(), files)
	res := s.Structure(para("P", 1, "OPEN INPUT CUSTFILE", "WRITE CUST-REC", "CLOSE UNKNOWN-FILE"), diag.NewList())

	if len(res.Statements) != 3 {
		t.Fatalf("Expected 3 statements, got %d", len(res.Statements))
	}
	if got := res.Statements[0].meta.file; got != "CUSTFILE" {
		t.Errorf("Expected OPEN on CUSTFILE, got %q", got)
	}
	want := files.Lookup("CUSTFILE")
	if res.Statements[0].meta.description != want || res.Statements[1].meta.description != want {
		t.Error("Expected OPEN and WRITE to share the CUSTFILE description")
	}
	if res.Statements[2].meta.description != nil {
		t.Error("Expected no description for an unknown file")
	}
}

func TestStructurer_EmptyInput(t *testing.T) {
	res, diags := structure(ParagraphInput{})
	if res.Statements == nil || len(res.Statements) != 0 {
		t.Errorf("Expected an empty non-nil statement list, got %#v", res.Statements)
	}
	if res.Complexity != 1 {
		t.Errorf("Expected complexity 1, got %d", res.Complexity)
	}
	if diags.Len() != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags.Items())
	}

	res, _ = structure(para("P", 1, "", "   "))
	if len(res.Statements) != 0 {
		t.Errorf("Expected blank lines to be skipped, got %v", res.Statements)
	}
}

// Every opened block is either closed once or flagged once, and every
// non-dropped line appears once in the tree.
func TestStructurer_ClosureAndCount(t *testing.T) {
	inputs := [][]string{
		{"IF A", "IF B", "MOVE 1 TO X", "END-IF", "ELSE", "MOVE 2 TO X", "END-IF"},
		{"EVALUATE A", "WHEN 1", "IF B", "DISPLAY B", "END-EVALUATE", "END-IF", "END-EVALUATE"},
		{"PERFORM VARYING I FROM 1 BY 1", "IF A", "END-PERFORM"},
		{"ELSE", "END-IF", "MOVE 1 TO X", "WHEN 2"},
	}

	for _, lines := range inputs {
		res, diags := structure(para("P", 1, lines...))

		opened := 0
		WalkStatements(res.Statements, func(s *Statement) bool {
			switch s.origin {
			case KindIf, KindEvaluate, KindPerform:
				opened++
			}
			return true
		})
		unclosed, orphanWhen := 0, 0
		for _, d := range diags.Items() {
			switch {
			case strings.HasPrefix(d.Message, "Unclosed"):
				unclosed++
			case strings.HasPrefix(d.Message, "Unmatched WHEN"):
				orphanWhen++
			}
		}
		if opened != len(res.Terminators)+unclosed {
			t.Errorf("lines %v: %d blocks opened, %d closed, %d unclosed", lines, opened, len(res.Terminators), unclosed)
		}

		dropped := diags.Count(diag.CategoryStructural) - unclosed - orphanWhen
		if want, got := len(lines)-len(res.Terminators)-dropped, countNodes(res.Statements); want != got {
			t.Errorf("lines %v: expected %d nodes, got %d", lines, want, got)
		}
	}
}
