package analyzer

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ludo-technologies/cblscan/internal/constants"
	"github.com/ludo-technologies/cblscan/internal/diag"
)

// LineMap maps expanded-text lines (1-based) to original-coordinate lines
type LineMap []int

// Remap translates one line. Lines outside the map are returned unchanged.
func (m LineMap) Remap(line int) int {
	if line >= 1 && line <= len(m) {
		return m[line-1]
	}
	return line
}

var programIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,31}$`)

// ResolveProgramID validates the PROGRAM-ID value and returns the id to use.
// present reports whether a PROGRAM-ID paragraph exists at all.
func ResolveProgramID(raw string, present bool, paragraphs []string, diags *diag.List) string {
	id := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "."))
	id = strings.Trim(id, `'"`)

	switch {
	case !present:
		diags.Add(diag.CategoryReferential, constants.UnknownValue, 0,
			"Missing program name in PROGRAM-ID paragraph")
		return fallbackProgramID()
	case id == "":
		diags.Add(diag.CategoryReferential, constants.UnknownValue, 0,
			"Empty program name in PROGRAM-ID paragraph")
		return fallbackProgramID()
	case !programIDPattern.MatchString(id):
		diags.Add(diag.CategoryReferential, id, 0,
			"Invalid program name: %s (must be alphanumeric or hyphen, max 31 characters)", id)
	}

	id = strings.ToUpper(id)
	for _, p := range paragraphs {
		if strings.EqualFold(p, id) {
			diags.Add(diag.CategoryReferential, id, 0,
				"Program ID conflicts with paragraph name: %s", id)
			break
		}
	}
	return id
}

func fallbackProgramID() string {
	return "UNKNOWN_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
