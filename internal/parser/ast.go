package parser

import (
	"fmt"

	"github.com/ludo-technologies/cblscan/internal/analyzer"
	"github.com/ludo-technologies/cblscan/internal/diag"
)

// Division names as they appear in the structure summary
const (
	DivisionIdentification = "IDENTIFICATION"
	DivisionEnvironment    = "ENVIRONMENT"
	DivisionData           = "DATA"
	DivisionProcedure      = "PROCEDURE"
)

// Location represents a position in the expanded source
type Location struct {
	File string
	Line int
}

// String returns a string representation of the location
func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// DataItem is one data description entry from the DATA DIVISION
type DataItem struct {
	Level      int
	Name       string
	Picture    string
	Value      string
	Definition string
	Section    string
	Location   Location
}

// IsCondition reports a level-88 condition name
func (d DataItem) IsCondition() bool {
	return d.Level == 88
}

// FileDescriptionEntry is an FD entry and the data items declared under it
type FileDescriptionEntry struct {
	Name     string
	Label    string
	Location Location
	Records  []DataItem
}

// Paragraph is a procedure paragraph (or section) with its statement lines.
// The paragraph before the first header has an empty name.
type Paragraph struct {
	Name     string
	Location Location
	Lines    []analyzer.StatementLine
}

// Unit is everything the front-end recovers from one expanded program
type Unit struct {
	Filename     string
	ProgramID    string
	HasProgramID bool
	Divisions    []string
	Sections     []string
	DataItems    []DataItem
	FileControls []analyzer.FileControlEntry
	FDs          []FileDescriptionEntry
	Paragraphs   []Paragraph
	Diagnostics  []diag.Diagnostic
}

// Variables returns the declared data names in declaration order
func (u *Unit) Variables() []string {
	seen := make(map[string]bool, len(u.DataItems))
	out := make([]string, 0, len(u.DataItems))
	for _, item := range u.DataItems {
		if item.Name == "" || seen[item.Name] {
			continue
		}
		seen[item.Name] = true
		out = append(out, item.Name)
	}
	return out
}

// WorkingStorage returns the data dictionary: name to normalized definition
func (u *Unit) WorkingStorage() map[string]string {
	out := make(map[string]string, len(u.DataItems))
	for _, item := range u.DataItems {
		if item.Name == "" {
			continue
		}
		if _, ok := out[item.Name]; !ok {
			out[item.Name] = item.Definition
		}
	}
	return out
}

// Entry returns the first paragraph name when the procedure division starts
// with a paragraph header, or "" when it starts with unnamed statements
func (u *Unit) Entry() string {
	if len(u.Paragraphs) == 0 || u.Paragraphs[0].Name == "" {
		return ""
	}
	return u.Paragraphs[0].Name
}

// ProgramInput converts the unit into the structuring core's input
func (u *Unit) ProgramInput(lineMap analyzer.LineMap, extra ...diag.Diagnostic) analyzer.ProgramInput {
	input := analyzer.ProgramInput{
		ProgramID:      u.ProgramID,
		HasProgramID:   u.HasProgramID,
		Variables:      u.Variables(),
		WorkingStorage: u.WorkingStorage(),
		FileControls:   append([]analyzer.FileControlEntry(nil), u.FileControls...),
		LineMap:        lineMap,
	}

	for _, p := range u.Paragraphs {
		input.Paragraphs = append(input.Paragraphs, analyzer.ParagraphInput{
			Name:  p.Name,
			Lines: append([]analyzer.StatementLine(nil), p.Lines...),
		})
	}

	for _, fd := range u.FDs {
		in := analyzer.FileDescriptionInput{
			Name:  fd.Name,
			Label: fd.Label,
			Line:  lineMap.Remap(fd.Location.Line),
		}
		for _, rec := range fd.Records {
			in.Records = append(in.Records, analyzer.FileRecord{
				Name:    rec.Name,
				Level:   fmt.Sprintf("%02d", rec.Level),
				Line:    lineMap.Remap(rec.Location.Line),
				Picture: rec.Picture,
			})
		}
		input.FileDescriptions = append(input.FileDescriptions, in)
	}
	for i := range input.FileControls {
		input.FileControls[i].Line = lineMap.Remap(input.FileControls[i].Line)
	}

	for _, d := range u.Diagnostics {
		d.Line = lineMap.Remap(d.Line)
		input.Diagnostics = append(input.Diagnostics, d)
	}
	input.Diagnostics = append(input.Diagnostics, extra...)
	return input
}
