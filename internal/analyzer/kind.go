package analyzer

import (
	"fmt"
	"sort"
	"strings"
)

// StatementKind is the closed set of statement kinds
type StatementKind string

const (
	KindIf        StatementKind = "IF"
	KindElse      StatementKind = "ELSE"
	KindCondition StatementKind = "CONDITION"
	KindEvaluate  StatementKind = "EVALUATE"
	KindWhen      StatementKind = "WHEN"
	KindPerform   StatementKind = "PERFORM"
	KindCall      StatementKind = "CALL"
	KindGoTo      StatementKind = "GOTO"
	KindMove      StatementKind = "MOVE"
	KindAdd       StatementKind = "ADD"
	KindSubtract  StatementKind = "SUBTRACT"
	KindCompute   StatementKind = "COMPUTE"
	KindOpen      StatementKind = "OPEN"
	KindClose     StatementKind = "CLOSE"
	KindRead      StatementKind = "READ"
	KindWrite     StatementKind = "WRITE"
	KindInspect   StatementKind = "INSPECT"
	KindAtEnd     StatementKind = "AT_END"
	KindNotAtEnd  StatementKind = "NOT_AT_END"
	KindDisplay   StatementKind = "DISPLAY"
	KindAccept    StatementKind = "ACCEPT"
	KindGoback    StatementKind = "GOBACK"
	KindStopRun   StatementKind = "STOP-RUN"
	KindOther     StatementKind = "OTHER"

	// Terminators close a block. They never appear in a statement tree;
	// the structurer records them separately for CFG derivation.
	KindEndIf       StatementKind = "END-IF"
	KindEndEvaluate StatementKind = "END-EVALUATE"
	KindEndPerform  StatementKind = "END-PERFORM"
)

// IsBlock reports whether the kind may carry child lists
func (k StatementKind) IsBlock() bool {
	switch k {
	case KindIf, KindCondition, KindEvaluate, KindPerform, KindAtEnd, KindNotAtEnd:
		return true
	}
	return false
}

// IsTerminator reports whether the kind closes a block
func (k StatementKind) IsTerminator() bool {
	return k == KindEndIf || k == KindEndEvaluate || k == KindEndPerform
}

// Opener returns the block kind a terminator closes
func (k StatementKind) Opener() StatementKind {
	switch k {
	case KindEndIf:
		return KindIf
	case KindEndEvaluate:
		return KindEvaluate
	case KindEndPerform:
		return KindPerform
	}
	return ""
}

// keywordKinds maps every recognized leading keyword to its kind
var keywordKinds = map[string]StatementKind{
	"IF":           KindIf,
	"ELSE":         KindElse,
	"END-IF":       KindEndIf,
	"EVALUATE":     KindEvaluate,
	"WHEN":         KindWhen,
	"END-EVALUATE": KindEndEvaluate,
	"PERFORM":      KindPerform,
	"END-PERFORM":  KindEndPerform,
	"CALL":         KindCall,
	"GO TO":        KindGoTo,
	"OPEN":         KindOpen,
	"READ":         KindRead,
	"WRITE":        KindWrite,
	"CLOSE":        KindClose,
	"MOVE":         KindMove,
	"ADD":          KindAdd,
	"SUBTRACT":     KindSubtract,
	"DISPLAY":      KindDisplay,
	"ACCEPT":       KindAccept,
	"INSPECT":      KindInspect,
	"GOBACK":       KindGoback,
	"STOP RUN":     KindStopRun,
	"COMPUTE":      KindCompute,
}

// DefaultKeywords is the default control keyword set, in declaration order
var DefaultKeywords = []string{
	"IF", "ELSE", "END-IF", "EVALUATE", "WHEN", "END-EVALUATE",
	"PERFORM", "END-PERFORM", "CALL", "GO TO",
	"OPEN", "READ", "WRITE", "CLOSE",
	"MOVE", "ADD", "SUBTRACT", "DISPLAY", "ACCEPT", "INSPECT",
	"GOBACK", "STOP RUN", "COMPUTE",
}

// KeywordSet classifies statement text by its leading keyword
type KeywordSet struct {
	keywords []string
}

// NewKeywordSet builds a keyword set; every keyword must be a known one
func NewKeywordSet(keywords []string) (*KeywordSet, error) {
	ks := &KeywordSet{}
	seen := make(map[string]bool)
	for _, kw := range keywords {
		kw = strings.Join(strings.Fields(strings.ToUpper(kw)), " ")
		if _, ok := keywordKinds[kw]; !ok {
			return nil, fmt.Errorf("unknown control keyword %q", kw)
		}
		if seen[kw] {
			continue
		}
		seen[kw] = true
		ks.keywords = append(ks.keywords, kw)
	}
	// longest first so END-IF wins over IF-prefixed matches
	sort.SliceStable(ks.keywords, func(i, j int) bool {
		return len(ks.keywords[i]) > len(ks.keywords[j])
	})
	return ks, nil
}

// DefaultKeywordSet returns the default keyword set
func DefaultKeywordSet() *KeywordSet {
	ks, err := NewKeywordSet(DefaultKeywords)
	if err != nil {
		panic(err)
	}
	return ks
}

// Classify returns the kind of a statement's text and the matched keyword.
// Unmatched text is OTHER.
func (ks *KeywordSet) Classify(text string) (StatementKind, string) {
	upper := strings.ToUpper(strings.TrimSpace(text))
	for _, kw := range ks.keywords {
		if matchesKeyword(upper, kw) {
			return keywordKinds[kw], kw
		}
	}
	return KindOther, ""
}

// Keywords returns the configured keywords, longest first
func (ks *KeywordSet) Keywords() []string {
	return append([]string(nil), ks.keywords...)
}

func matchesKeyword(upper, kw string) bool {
	if upper == kw || upper == kw+"." {
		return true
	}
	return strings.HasPrefix(upper, kw+" ")
}
