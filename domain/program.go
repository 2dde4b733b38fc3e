package domain

import "encoding/json"

// ProgramGraph is the structured representation of one COBOL program
type ProgramGraph struct {
	// ProgramID is the validated PROGRAM-ID, or an UNKNOWN_ fallback
	ProgramID string `json:"program_id" yaml:"program_id"`

	// FilePath is the analyzed source file
	FilePath string `json:"file_path" yaml:"file_path"`

	// Copybooks lists resolved COPY members in first-inclusion order
	Copybooks []string `json:"copybooks" yaml:"copybooks"`

	// Divisions and Sections in source order
	Divisions []string `json:"divisions" yaml:"divisions"`
	Sections  []string `json:"sections" yaml:"sections"`

	// WorkingStorage maps data names to their definitions
	WorkingStorage map[string]string `json:"working_storage" yaml:"working_storage"`

	Paragraphs []ParagraphNode `json:"paragraphs" yaml:"paragraphs"`

	// ParagraphOrigins maps each paragraph to the program defining it
	ParagraphOrigins map[string]string `json:"paragraph_origins" yaml:"paragraph_origins"`

	// EntryParagraph is where reachability starts
	EntryParagraph string `json:"entry_paragraph" yaml:"entry_paragraph"`

	// CallGraph maps each paragraph to its ordered PERFORM, GO TO and CALL:: targets
	CallGraph   map[string][]string `json:"call_graph" yaml:"call_graph"`
	Unreachable []string            `json:"unreachable_paragraphs" yaml:"unreachable_paragraphs"`
	Cycles      []Cycle             `json:"cycles,omitempty" yaml:"cycles,omitempty"`

	Movements []Movement                `json:"movements" yaml:"movements"`
	Usage     map[string]ParagraphUsage `json:"variable_usage" yaml:"variable_usage"`

	CFG ControlFlowGraph `json:"cfg" yaml:"cfg"`

	FileControls     []FileControl     `json:"file_controls" yaml:"file_controls"`
	FileDescriptions []FileDescription `json:"file_descriptions" yaml:"file_descriptions"`

	// Complexity is 1 plus the decision points of every paragraph
	Complexity int `json:"complexity" yaml:"complexity"`

	DeadCode []DeadCodeFinding `json:"dead_code,omitempty" yaml:"dead_code,omitempty"`

	Diagnostics []Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

// Paragraph returns the named paragraph, or nil
func (p *ProgramGraph) Paragraph(name string) *ParagraphNode {
	for i := range p.Paragraphs {
		if p.Paragraphs[i].Name == name {
			return &p.Paragraphs[i]
		}
	}
	return nil
}

// DiagnosticsByCategory counts diagnostics per category
func (p *ProgramGraph) DiagnosticsByCategory() map[string]int {
	counts := make(map[string]int)
	for _, d := range p.Diagnostics {
		counts[d.Category]++
	}
	return counts
}

// ParagraphNode is one paragraph with its statement tree and metrics
type ParagraphNode struct {
	Name           string           `json:"name" yaml:"name"`
	StartLine      int              `json:"start_line" yaml:"start_line"`
	Complexity     int              `json:"complexity" yaml:"complexity"`
	NestingDepth   int              `json:"nesting_depth" yaml:"nesting_depth"`
	RiskLevel      RiskLevel        `json:"risk_level" yaml:"risk_level"`
	Reachable      bool             `json:"reachable" yaml:"reachable"`
	CallTargets    []string         `json:"call_targets,omitempty" yaml:"call_targets,omitempty"`
	PerformTargets []string         `json:"perform_targets,omitempty" yaml:"perform_targets,omitempty"`
	GoToTargets    []string         `json:"goto_targets,omitempty" yaml:"goto_targets,omitempty"`
	Statements     []*StatementNode `json:"statements" yaml:"statements"`
}

// StatementNode is one node of a paragraph's statement tree
type StatementNode struct {
	Kind       string `json:"type" yaml:"type"`
	Line       int    `json:"line" yaml:"line"`
	Content    string `json:"content" yaml:"content"`
	Pseudocode string `json:"pseudocode,omitempty" yaml:"pseudocode,omitempty"`

	// at most one descriptor is set
	Loop      *LoopInfo      `json:"loop,omitempty" yaml:"loop,omitempty"`
	Perform   *PerformInfo   `json:"perform,omitempty" yaml:"perform,omitempty"`
	Call      *CallInfo      `json:"call,omitempty" yaml:"call,omitempty"`
	GoTo      *GoToInfo      `json:"goto,omitempty" yaml:"goto,omitempty"`
	FileOp    *FileOpInfo    `json:"file,omitempty" yaml:"file,omitempty"`
	Condition *ConditionInfo `json:"condition,omitempty" yaml:"condition,omitempty"`

	Then  []*StatementNode `json:"then,omitempty" yaml:"then,omitempty"`
	Else  []*StatementNode `json:"else,omitempty" yaml:"else,omitempty"`
	Cases []*StatementNode `json:"cases,omitempty" yaml:"cases,omitempty"`
}

// statementWire mirrors StatementNode, except that a child list is omitted
// only when absent, so an empty block still serializes as []
type statementWire struct {
	Kind       string         `json:"type" yaml:"type"`
	Line       int            `json:"line" yaml:"line"`
	Content    string         `json:"content" yaml:"content"`
	Pseudocode string         `json:"pseudocode,omitempty" yaml:"pseudocode,omitempty"`
	Loop       *LoopInfo      `json:"loop,omitempty" yaml:"loop,omitempty"`
	Perform    *PerformInfo   `json:"perform,omitempty" yaml:"perform,omitempty"`
	Call       *CallInfo      `json:"call,omitempty" yaml:"call,omitempty"`
	GoTo       *GoToInfo      `json:"goto,omitempty" yaml:"goto,omitempty"`
	FileOp     *FileOpInfo    `json:"file,omitempty" yaml:"file,omitempty"`
	Condition  *ConditionInfo `json:"condition,omitempty" yaml:"condition,omitempty"`

	Then  *[]*StatementNode `json:"then,omitempty" yaml:"then,omitempty"`
	Else  *[]*StatementNode `json:"else,omitempty" yaml:"else,omitempty"`
	Cases *[]*StatementNode `json:"cases,omitempty" yaml:"cases,omitempty"`
}

func childList(list []*StatementNode) *[]*StatementNode {
	if list == nil {
		return nil
	}
	return &list
}

func (n StatementNode) wire() statementWire {
	return statementWire{
		Kind:       n.Kind,
		Line:       n.Line,
		Content:    n.Content,
		Pseudocode: n.Pseudocode,
		Loop:       n.Loop,
		Perform:    n.Perform,
		Call:       n.Call,
		GoTo:       n.GoTo,
		FileOp:     n.FileOp,
		Condition:  n.Condition,
		Then:       childList(n.Then),
		Else:       childList(n.Else),
		Cases:      childList(n.Cases),
	}
}

// MarshalJSON implements json.Marshaler
func (n StatementNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.wire())
}

// MarshalYAML implements yaml.Marshaler
func (n StatementNode) MarshalYAML() (interface{}, error) {
	return n.wire(), nil
}

// CountStatements returns the number of nodes in the list and all subtrees
func CountStatements(nodes []*StatementNode) int {
	count := 0
	for _, n := range nodes {
		if n == nil {
			continue
		}
		count += 1 + CountStatements(n.Then) + CountStatements(n.Else) + CountStatements(n.Cases)
	}
	return count
}

type LoopInfo struct {
	Variable  string `json:"variable" yaml:"variable"`
	From      string `json:"from" yaml:"from"`
	By        string `json:"by" yaml:"by"`
	Until     string `json:"until,omitempty" yaml:"until,omitempty"`
	LoopLevel int    `json:"loop_level" yaml:"loop_level"`
	Parent    int    `json:"parent,omitempty" yaml:"parent,omitempty"`
}

type PerformInfo struct {
	Start     string `json:"start" yaml:"start"`
	End       string `json:"end,omitempty" yaml:"end,omitempty"`
	LoopLevel int    `json:"loop_level" yaml:"loop_level"`
	Parent    int    `json:"parent,omitempty" yaml:"parent,omitempty"`
}

type CallInfo struct {
	Name   string   `json:"name" yaml:"name"`
	Args   []string `json:"args,omitempty" yaml:"args,omitempty"`
	Parent int      `json:"parent,omitempty" yaml:"parent,omitempty"`
}

type GoToInfo struct {
	Destination string `json:"destination" yaml:"destination"`
	Parent      int    `json:"parent,omitempty" yaml:"parent,omitempty"`
}

type FileOpInfo struct {
	Name string `json:"name" yaml:"name"`
	// Description names the matching FD, when one is declared
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Parent      int    `json:"parent,omitempty" yaml:"parent,omitempty"`
}

type ConditionInfo struct {
	LHS      string `json:"lhs" yaml:"lhs"`
	RHS      string `json:"rhs" yaml:"rhs"`
	Operator string `json:"operator" yaml:"operator"`
}

// Movement is one recorded data movement between declared variables
type Movement struct {
	Operation string   `json:"operation" yaml:"operation"`
	Sources   []string `json:"sources" yaml:"sources"`
	Target    string   `json:"target,omitempty" yaml:"target,omitempty"`
	Line      int      `json:"line" yaml:"line"`
}

// ParagraphUsage lists the variables a paragraph reads and writes
type ParagraphUsage struct {
	Reads  []string `json:"reads" yaml:"reads"`
	Writes []string `json:"writes" yaml:"writes"`
}

// ControlFlowGraph is the line-level control flow of a program
type ControlFlowGraph struct {
	Entry string    `json:"entry" yaml:"entry"`
	Edges []CFGEdge `json:"edges" yaml:"edges"`
}

type CFGEdge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// FileControl is a FILE-CONTROL SELECT entry
type FileControl struct {
	Name         string `json:"name" yaml:"name"`
	Assign       string `json:"assign" yaml:"assign"`
	Organization string `json:"organization" yaml:"organization"`
	AccessMode   string `json:"access_mode" yaml:"access_mode"`
	RecordKey    string `json:"record_key" yaml:"record_key"`
	Select       string `json:"select" yaml:"select"`
	Line         int    `json:"line" yaml:"line"`
}

// FileDescription is an FD entry with its records
type FileDescription struct {
	Name        string       `json:"name" yaml:"name"`
	Label       string       `json:"label" yaml:"label"`
	Line        int          `json:"line" yaml:"line"`
	Records     []FileRecord `json:"records" yaml:"records"`
	FileControl *FileControl `json:"file_control,omitempty" yaml:"file_control,omitempty"`
}

type FileRecord struct {
	Name              string `json:"name" yaml:"name"`
	Level             string `json:"level" yaml:"level"`
	Line              int    `json:"line" yaml:"line"`
	Picture           string `json:"picture,omitempty" yaml:"picture,omitempty"`
	WorkingStorageRef string `json:"working_storage_ref,omitempty" yaml:"working_storage_ref,omitempty"`
}

// Cycle is a set of paragraphs that reach each other through PERFORM or GO TO
type Cycle struct {
	Paragraphs  []string `json:"paragraphs" yaml:"paragraphs"`
	Severity    string   `json:"severity" yaml:"severity"`
	Description string   `json:"description" yaml:"description"`
}

// DeadCodeFinding is statement-level or paragraph-level dead code
type DeadCodeFinding struct {
	Paragraph   string `json:"paragraph" yaml:"paragraph"`
	StartLine   int    `json:"start_line" yaml:"start_line"`
	EndLine     int    `json:"end_line" yaml:"end_line"`
	Code        string `json:"code" yaml:"code"`
	Reason      string `json:"reason" yaml:"reason"`
	Severity    string `json:"severity" yaml:"severity"`
	Description string `json:"description" yaml:"description"`
}

// Diagnostic is a structural, referential, malformed or inclusion finding
type Diagnostic struct {
	Subject  string `json:"subject" yaml:"subject"`
	Message  string `json:"message" yaml:"message"`
	Line     int    `json:"line" yaml:"line"`
	Category string `json:"category" yaml:"category"`
}

// Diagnostic categories
const (
	DiagnosticStructural  = "structural"
	DiagnosticReferential = "referential"
	DiagnosticMalformed   = "malformed"
	DiagnosticInclusion   = "inclusion"
)
