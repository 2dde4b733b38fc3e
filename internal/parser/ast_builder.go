package parser

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/ludo-technologies/cblscan/internal/analyzer"
	"github.com/ludo-technologies/cblscan/internal/constants"
	"github.com/ludo-technologies/cblscan/internal/diag"
)

var (
	divisionHeader  = regexp.MustCompile(`^(IDENTIFICATION|ID|ENVIRONMENT|DATA|PROCEDURE)\s+DIVISION\b`)
	sectionHeader   = regexp.MustCompile(`^([A-Z0-9][A-Z0-9-]*)\s+SECTION(\s+\d+)?\s*\.?$`)
	paragraphHeader = regexp.MustCompile(`^([A-Z0-9][A-Z0-9-]*)\.(\s+(.*))?$`)
	levelNumber     = regexp.MustCompile(`^\d{1,2}$`)
)

// identificationParagraphs end a PROGRAM-ID whose name was not on its line
var identificationParagraphs = map[string]bool{
	"AUTHOR": true, "INSTALLATION": true, "DATE-WRITTEN": true,
	"DATE-COMPILED": true, "SECURITY": true, "REMARKS": true,
}

// statementStarters begin a new statement; other lines continue the previous one
var statementStarters = map[string]bool{
	"ACCEPT": true, "ADD": true, "ALTER": true, "AT": true, "CALL": true,
	"CANCEL": true, "CLOSE": true, "COMPUTE": true, "CONTINUE": true,
	"DELETE": true, "DISPLAY": true, "DIVIDE": true, "ELSE": true,
	"ENTRY": true, "EVALUATE": true, "EXEC": true, "EXIT": true,
	"GENERATE": true, "GO": true, "GOBACK": true, "IF": true,
	"INITIALIZE": true, "INSPECT": true, "INVALID": true, "MERGE": true,
	"MOVE": true, "MULTIPLY": true, "NEXT": true, "NOT": true, "OPEN": true,
	"PERFORM": true, "READ": true, "RELEASE": true, "RETURN": true,
	"REWRITE": true, "SEARCH": true, "SET": true, "SORT": true,
	"START": true, "STOP": true, "STRING": true, "SUBTRACT": true,
	"UNSTRING": true, "WHEN": true, "WRITE": true,
}

// reservedParagraphWords look like `NAME.` but are statements
var reservedParagraphWords = map[string]bool{
	"EXIT": true, "GOBACK": true, "CONTINUE": true, "ELSE": true,
	"DECLARATIVES": true,
}

// labelStop ends the LABEL RECORD clause of an FD
var labelStop = map[string]bool{
	"BLOCK": true, "RECORDING": true, "DATA": true, "VALUE": true,
	"CODE-SET": true, "LINAGE": true,
}

// unitBuilder accumulates a Unit from normalized lines
type unitBuilder struct {
	unit     *Unit
	keywords [][]string
	logger   *slog.Logger
	diags    *diag.List

	division string
	section  string

	pendingProgramID bool

	// sentence accumulation for DATA and ENVIRONMENT entries
	entry     []string
	entryLine int

	currentFD *FileDescriptionEntry

	paragraph  *Paragraph
	stmt       *analyzer.StatementLine
	stmtClosed bool
}

func newUnitBuilder(filename string, keywords [][]string, logger *slog.Logger) *unitBuilder {
	return &unitBuilder{
		unit:     &Unit{Filename: filename},
		keywords: keywords,
		logger:   logger,
		diags:    diag.NewList(),
	}
}

func (b *unitBuilder) add(l sourceLine) {
	switch l.kind {
	case lineBlank, lineComment:
		return
	case lineContinuation:
		b.continueLine(l)
		return
	}

	upper := strings.ToUpper(l.text)

	if m := divisionHeader.FindStringSubmatch(upper); m != nil {
		b.startDivision(m[1], l.line)
		if b.division == DivisionProcedure {
			b.startParagraph("", l.line)
		}
		return
	}

	switch b.division {
	case DivisionIdentification:
		b.identification(l)
	case DivisionEnvironment, DivisionData:
		b.declaration(l, upper)
	case DivisionProcedure:
		b.procedure(l, upper)
	}
}

func (b *unitBuilder) startDivision(name string, line int) {
	b.flushEntry()
	b.closeStatement()
	if name == "ID" {
		name = DivisionIdentification
	}
	b.division = name
	b.section = ""
	b.currentFD = nil
	b.unit.Divisions = appendOnce(b.unit.Divisions, name)
	b.logger.Debug("entering division", slog.String("division", name), slog.Int("line", line))
}

func (b *unitBuilder) identification(l sourceLine) {
	tokens := strings.Fields(l.text)
	if b.pendingProgramID {
		b.pendingProgramID = false
		head := strings.TrimSuffix(strings.ToUpper(tokens[0]), ".")
		if !identificationParagraphs[head] {
			b.unit.ProgramID = tokens[0]
			return
		}
	}
	if head := strings.ToUpper(tokens[0]); head != "PROGRAM-ID." && head != "PROGRAM-ID" {
		return
	}
	b.unit.HasProgramID = true
	rest := tokens[1:]
	if len(rest) > 0 && rest[0] == "." {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		b.pendingProgramID = true
		return
	}
	b.unit.ProgramID = rest[0]
}

// declaration handles ENVIRONMENT and DATA division lines, which are
// period-terminated entries that may span lines
func (b *unitBuilder) declaration(l sourceLine, upper string) {
	if len(b.entry) == 0 {
		if m := sectionHeader.FindStringSubmatch(upper); m != nil {
			b.section = m[1]
			b.currentFD = nil
			b.unit.Sections = appendOnce(b.unit.Sections, m[1])
			return
		}
		for _, prefix := range []string{"FILE-CONTROL.", "I-O-CONTROL."} {
			if strings.HasPrefix(upper, prefix) {
				l.text = strings.TrimSpace(l.text[len(prefix):])
				upper = strings.TrimSpace(upper[len(prefix):])
			}
		}
		if l.text == "" {
			return
		}
		b.entryLine = l.line
	}
	b.entry = append(b.entry, l.text)
	if endsSentence(l.text) {
		b.flushEntry()
	}
}

func (b *unitBuilder) flushEntry() {
	if len(b.entry) == 0 {
		return
	}
	text := strings.Join(b.entry, " ")
	line := b.entryLine
	b.entry = nil

	tokens := tokenize(strings.TrimSuffix(text, "."))
	if len(tokens) == 0 {
		return
	}
	head := strings.ToUpper(tokens[0])

	switch {
	case b.division == DivisionEnvironment && head == "SELECT":
		b.fileControl(tokens, line)
	case b.division == DivisionData && (head == "FD" || head == "SD"):
		b.fileDescription(tokens, line)
	case b.division == DivisionData && levelNumber.MatchString(head):
		b.dataItem(tokens, line)
	}
}

// fileControl reads `SELECT name ASSIGN [TO] x [ORGANIZATION [IS] x]
// [ACCESS [MODE] [IS] x] [RECORD KEY [IS] x]`
func (b *unitBuilder) fileControl(tokens []string, line int) {
	upper := upperAll(tokens)
	entry := analyzer.FileControlEntry{Line: line}
	var sel []string

	for i := 0; i < len(upper); i++ {
		switch upper[i] {
		case "SELECT":
			if i+1 < len(upper) && upper[i+1] != "OPTIONAL" {
				entry.Name = upper[i+1]
			} else if i+2 < len(upper) {
				entry.Name = upper[i+2]
			}
			sel = append(sel, "SELECT", entry.Name)
		case "ASSIGN":
			j := skipWords(upper, i+1, "TO", "USING")
			if j < len(upper) {
				entry.Assign = strings.Trim(tokens[j], `'"`)
				sel = append(sel, "ASSIGN", entry.Assign)
			}
		case "ORGANIZATION":
			j := skipWords(upper, i+1, "IS")
			if j < len(upper) {
				entry.Organization = upper[j]
				sel = append(sel, "ORGANIZATION", entry.Organization)
			}
		case "ACCESS":
			j := skipWords(upper, i+1, "MODE", "IS")
			if j < len(upper) {
				entry.AccessMode = upper[j]
				sel = append(sel, "ACCESS", entry.AccessMode)
			}
		case "KEY":
			if i > 0 && upper[i-1] == "RECORD" {
				j := skipWords(upper, i+1, "IS")
				if j < len(upper) {
					entry.RecordKey = upper[j]
					sel = append(sel, "RECORD KEY", entry.RecordKey)
				}
			}
		}
	}
	if len(sel) > 0 && entry.Name != "" {
		entry.Select = strings.Join(sel, " ")
	}
	b.unit.FileControls = append(b.unit.FileControls, entry)
	b.logger.Debug("processed FILE-CONTROL entry", slog.String("file", entry.Name), slog.Int("line", line))
}

func (b *unitBuilder) fileDescription(tokens []string, line int) {
	upper := upperAll(tokens)
	fd := FileDescriptionEntry{Location: Location{File: b.unit.Filename, Line: line}}
	if len(upper) > 1 {
		fd.Name = upper[1]
	}

	for i := 2; i < len(upper); i++ {
		if upper[i] != "LABEL" {
			continue
		}
		label := []string{"LABEL"}
		for j := i + 1; j < len(upper); j++ {
			w := upper[j]
			if labelStop[w] || (w == "RECORD" && j+1 < len(upper) && (upper[j+1] == "CONTAINS" || upper[j+1] == "VARYING")) {
				break
			}
			label = append(label, w)
		}
		fd.Label = strings.Join(label, " ")
		break
	}

	b.unit.FDs = append(b.unit.FDs, fd)
	b.currentFD = &b.unit.FDs[len(b.unit.FDs)-1]
}

// dataItem reads `level [name|FILLER] [clauses]`
func (b *unitBuilder) dataItem(tokens []string, line int) {
	level, _ := strconv.Atoi(tokens[0])
	item := DataItem{
		Level:    level,
		Section:  b.section,
		Location: Location{File: b.unit.Filename, Line: line},
	}

	rest := tokens[1:]
	if len(rest) > 0 && !isClauseWord(strings.ToUpper(rest[0])) {
		name := strings.ToUpper(rest[0])
		rest = rest[1:]
		if name != "FILLER" {
			item.Name = name
		}
	}

	var def []string
	for i := 0; i < len(rest); i++ {
		w := strings.ToUpper(rest[i])
		switch w {
		case "PIC", "PICTURE":
			j := skipWords(upperAll(rest), i+1, "IS")
			def = append(def, "PIC")
			if j < len(rest) {
				item.Picture = strings.ToUpper(rest[j])
				def = append(def, item.Picture)
			}
			i = j
		case "VALUE", "VALUES":
			j := skipWords(upperAll(rest), i+1, "IS", "ARE")
			def = append(def, "VALUE")
			if j < len(rest) {
				item.Value = rest[j]
				def = append(def, item.Value)
			}
			i = j
		default:
			def = append(def, rest[i])
		}
	}
	item.Definition = strings.Join(def, " ")

	if b.currentFD != nil && b.section == "FILE" {
		b.currentFD.Records = append(b.currentFD.Records, item)
	}
	b.unit.DataItems = append(b.unit.DataItems, item)
}

func isClauseWord(w string) bool {
	switch w {
	case "PIC", "PICTURE", "VALUE", "VALUES", "REDEFINES", "OCCURS", "USAGE",
		"COMP", "COMP-3", "BINARY", "PACKED-DECIMAL", "JUSTIFIED", "SYNC":
		return true
	}
	return false
}

func (b *unitBuilder) procedure(l sourceLine, upper string) {
	if m := sectionHeader.FindStringSubmatch(upper); m != nil && !statementStarters[m[1]] {
		b.unit.Sections = appendOnce(b.unit.Sections, m[1])
		b.startParagraph(m[1], l.line)
		return
	}
	if upper == "END DECLARATIVES." {
		return
	}
	// a header can only follow a closed sentence
	open := b.stmt != nil && !b.stmtClosed
	if m := paragraphHeader.FindStringSubmatch(upper); m != nil && !open && !reservedParagraphWords[m[1]] &&
		!statementStarters[m[1]] && !strings.HasPrefix(m[1], "END-") {
		b.startParagraph(m[1], l.line)
		if rest := strings.TrimSpace(l.text[len(m[1])+1:]); rest != "" {
			b.statement(rest, l.line)
		}
		return
	}
	b.statement(l.text, l.line)
}

func (b *unitBuilder) startParagraph(name string, line int) {
	b.closeStatement()
	b.unit.Paragraphs = append(b.unit.Paragraphs, Paragraph{
		Name:     name,
		Location: Location{File: b.unit.Filename, Line: line},
	})
	b.paragraph = &b.unit.Paragraphs[len(b.unit.Paragraphs)-1]
}

// statement starts a new statement line or continues the open one
func (b *unitBuilder) statement(text string, line int) {
	first := strings.ToUpper(strings.TrimSuffix(strings.Fields(text)[0], "."))
	starts := statementStarters[first] || strings.HasPrefix(first, "END-")
	if b.stmt != nil && !b.stmtClosed && !starts {
		b.stmt.Text += " " + text
	} else {
		b.closeStatement()
		b.stmt = &analyzer.StatementLine{Text: text, Line: line}
	}
	b.stmtClosed = endsSentence(text)
}

func (b *unitBuilder) continueLine(l sourceLine) {
	if l.text == "" {
		return
	}
	if b.division != DivisionProcedure {
		if len(b.entry) > 0 {
			b.entry[len(b.entry)-1] += joinContinuation(l.text)
			if endsSentence(l.text) {
				b.flushEntry()
			}
		}
		return
	}
	if b.stmt == nil {
		b.statement(l.text, l.line)
		return
	}
	b.stmt.Text += joinContinuation(l.text)
	b.stmtClosed = endsSentence(b.stmt.Text)
}

// joinContinuation glues a continued literal directly and anything else
// after a space
func joinContinuation(text string) string {
	if strings.HasPrefix(text, "'") || strings.HasPrefix(text, `"`) {
		return text[1:]
	}
	return " " + text
}

// closeStatement splits the open statement at the split keywords and files
// the pieces under the current paragraph with the statement's first line
func (b *unitBuilder) closeStatement() {
	if b.stmt == nil {
		return
	}
	stmt := b.stmt
	b.stmt = nil
	b.stmtClosed = false
	if b.paragraph == nil {
		b.startParagraph("", stmt.Line)
	}
	for _, piece := range splitStatements(stmt.Text, b.keywords) {
		if piece == "" || piece == "." {
			continue
		}
		b.paragraph.Lines = append(b.paragraph.Lines, analyzer.StatementLine{Text: piece, Line: stmt.Line})
	}
}

func (b *unitBuilder) finish() *Unit {
	b.flushEntry()
	b.closeStatement()

	if !containsString(b.unit.Divisions, DivisionProcedure) {
		b.diags.Add(diag.CategoryMalformed, constants.UnknownValue, 0, "Missing PROCEDURE DIVISION")
	}
	// drop an empty prologue so the first named paragraph is the entry
	if len(b.unit.Paragraphs) > 1 && b.unit.Paragraphs[0].Name == "" && len(b.unit.Paragraphs[0].Lines) == 0 {
		b.unit.Paragraphs = b.unit.Paragraphs[1:]
	}
	b.unit.Diagnostics = b.diags.Items()
	return b.unit
}

func appendOnce(list []string, v string) []string {
	if containsString(list, v) {
		return list
	}
	return append(list, v)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func upperAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = strings.ToUpper(t)
	}
	return out
}

// skipWords returns the first index at or after i whose word is not in skip
func skipWords(upper []string, i int, skip ...string) int {
	for i < len(upper) && containsString(skip, upper[i]) {
		i++
	}
	return i
}
