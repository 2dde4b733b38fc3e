package analyzer

// Statement is one node of a paragraph's statement tree.
// Only block kinds carry child lists, and a node carries at most one descriptor.
type Statement struct {
	Kind       StatementKind
	Line       int
	Content    string
	Pseudocode string
	Descriptor Descriptor

	Then  []*Statement
	Else  []*Statement
	Cases []*Statement

	// origin is the kind the classifier assigned, before any retyping
	origin StatementKind

	// meta holds the raw parse facts until the post-processor canonicalizes them
	meta *rawMeta

	// expandedLine is the line before remapping; dedupe keys on it
	expandedLine int
	remapped     bool
}

// Origin returns the kind the statement was classified as
func (s *Statement) Origin() StatementKind {
	return s.origin
}

// Children returns the child lists in then, else, cases order
func (s *Statement) Children() [][]*Statement {
	return [][]*Statement{s.Then, s.Else, s.Cases}
}

// Walk visits s and its descendants depth-first, parents before children.
// Returning false from fn skips the node's children.
func (s *Statement) Walk(fn func(*Statement) bool) {
	if s == nil || !fn(s) {
		return
	}
	for _, list := range s.Children() {
		for _, child := range list {
			child.Walk(fn)
		}
	}
}

// WalkStatements walks every statement in the list
func WalkStatements(list []*Statement, fn func(*Statement) bool) {
	for _, s := range list {
		s.Walk(fn)
	}
}

// Descriptor is the kind-specific payload of a statement
type Descriptor interface {
	DescriptorKey() string
}

// LoopDescriptor describes PERFORM VARYING
type LoopDescriptor struct {
	Variable  string
	From      string
	By        string
	Until     string
	LoopLevel int
	Parent    int
}

// DescriptorKey implements Descriptor
func (LoopDescriptor) DescriptorKey() string { return "loop" }

// PerformDescriptor describes an out-of-line PERFORM
type PerformDescriptor struct {
	Start     string
	End       string
	LoopLevel int
	Parent    int
}

// DescriptorKey implements Descriptor
func (PerformDescriptor) DescriptorKey() string { return "perform" }

// CallDescriptor describes a CALL to an external program
type CallDescriptor struct {
	Name   string
	Args   []string
	Parent int
}

// DescriptorKey implements Descriptor
func (CallDescriptor) DescriptorKey() string { return "call" }

// GoToDescriptor describes a GO TO
type GoToDescriptor struct {
	Destination string
	Parent      int
}

// DescriptorKey implements Descriptor
func (GoToDescriptor) DescriptorKey() string { return "goto" }

// FileOpDescriptor describes OPEN, READ, WRITE and CLOSE
type FileOpDescriptor struct {
	Name        string
	Description *FileDescription
	Parent      int
}

// DescriptorKey implements Descriptor
func (FileOpDescriptor) DescriptorKey() string { return "fileOp" }

// ConditionDescriptor is a parsed two-sided comparison
type ConditionDescriptor struct {
	LHS      string
	RHS      string
	Operator string
}

// DescriptorKey implements Descriptor
func (ConditionDescriptor) DescriptorKey() string { return "condition" }

// rawMeta is what the structurer reads off a statement's text
type rawMeta struct {
	// PERFORM
	target  string
	thru    string
	varying *varyingClause

	// CALL
	program string
	args    []string

	// GO TO
	destination string

	// OPEN, READ, WRITE, CLOSE
	file        string
	description *FileDescription
}

type varyingClause struct {
	variable string
	from     string
	by       string
	until    string
}

func newStatement(kind StatementKind, line int, content string) *Statement {
	s := &Statement{
		Kind:    kind,
		Line:    line,
		Content: content,
		origin:  kind,

		expandedLine: line,
	}
	s.Pseudocode = Pseudocode(kind, content)
	return s
}
