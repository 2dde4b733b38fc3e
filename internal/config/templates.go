package config

import (
	"strconv"
	"strings"
)

// ProjectType represents the layout of a COBOL code base
type ProjectType string

const (
	ProjectTypeGeneric   ProjectType = "generic"
	ProjectTypeMainframe ProjectType = "mainframe"
	ProjectTypeGnuCOBOL  ProjectType = "gnucobol"
)

// Strictness represents the analysis strictness level
type Strictness string

const (
	StrictnessRelaxed  Strictness = "relaxed"
	StrictnessStandard Strictness = "standard"
	StrictnessStrict   Strictness = "strict"
)

// ProjectPreset holds configuration presets for different project types
type ProjectPreset struct {
	IncludePatterns []string
	ExcludePatterns []string
	IncludeDirs     []string
	Extensions      []string
}

// StrictnessPreset holds threshold values for different strictness levels
type StrictnessPreset struct {
	LowThreshold    int
	MediumThreshold int
	MaxComplexity   int
}

// GetProjectPresets returns presets for different project types
func GetProjectPresets() map[ProjectType]ProjectPreset {
	return map[ProjectType]ProjectPreset{
		ProjectTypeGeneric: {
			IncludePatterns: []string{"**/*.cbl", "**/*.cob", "**/*.cobol"},
			ExcludePatterns: []string{".git", "**/*.cpy"},
			IncludeDirs:     []string{"copybooks"},
			Extensions:      []string{".cpy", ".cob", ".inc"},
		},
		ProjectTypeMainframe: {
			IncludePatterns: []string{"**/*.cbl", "**/*.CBL"},
			ExcludePatterns: []string{".git", "**/COPYLIB/**", "**/JCL/**"},
			IncludeDirs:     []string{"COPYLIB", "copylib"},
			Extensions:      []string{".cpy", ".CPY", ".copy"},
		},
		ProjectTypeGnuCOBOL: {
			IncludePatterns: []string{"**/*.cob", "**/*.cbl"},
			ExcludePatterns: []string{".git", "**/build/**", "**/*.cpy"},
			IncludeDirs:     []string{"copy", "include"},
			Extensions:      []string{".cpy", ".cbl", ".cob"},
		},
	}
}

// GetStrictnessPresets returns presets for different strictness levels
func GetStrictnessPresets() map[Strictness]StrictnessPreset {
	return map[Strictness]StrictnessPreset{
		StrictnessRelaxed: {
			LowThreshold:    15,
			MediumThreshold: 30,
			MaxComplexity:   0, // No limit
		},
		StrictnessStandard: {
			LowThreshold:    10,
			MediumThreshold: 20,
			MaxComplexity:   0, // No limit
		},
		StrictnessStrict: {
			LowThreshold:    5,
			MediumThreshold: 10,
			MaxComplexity:   40,
		},
	}
}

// GetFullConfigTemplate returns the documented config template as YAML
func GetFullConfigTemplate(projectType ProjectType, strictness Strictness) string {
	preset, ok := GetProjectPresets()[projectType]
	if !ok {
		preset = GetProjectPresets()[ProjectTypeGeneric]
	}
	strict, ok := GetStrictnessPresets()[strictness]
	if !ok {
		strict = GetStrictnessPresets()[StrictnessStandard]
	}

	return `# cblscan configuration
# Documentation: https://github.com/ludo-technologies/cblscan

# ============================================================================
# COPYBOOK RESOLUTION
# ============================================================================
copybook:
  # Directories searched in order for COPY members
  include_dirs: ` + formatYAMLArray(preset.IncludeDirs) + `

  # Extensions tried in order when a COPY name has none
  extensions: ` + formatYAMLArray(preset.Extensions) + `

  # Maximum nesting of COPY statements
  max_depth: 10

  # Number of copybook bodies kept in memory
  cache_size: 1024

# ============================================================================
# STATEMENT STRUCTURE
# ============================================================================
structure:
  # Paragraph holding statements before the first paragraph header
  main_paragraph: "_MAIN"

  # Control keywords (empty = built-in set)
  keywords: []

  # Keywords that start a new statement mid-line (empty = built-in set)
  split_keywords: []

# ============================================================================
# COMPLEXITY ANALYSIS
# ============================================================================
complexity:
  enabled: true

  # Paragraphs with complexity <= this value are low risk
  low_threshold: ` + strconv.Itoa(strict.LowThreshold) + `

  # Paragraphs above low_threshold and <= this value are medium risk
  medium_threshold: ` + strconv.Itoa(strict.MediumThreshold) + `

  # Maximum allowed program complexity for 'cblscan check' (0 = no limit)
  max_complexity: ` + strconv.Itoa(strict.MaxComplexity) + `

  # Report paragraphs with complexity = 1
  report_unchanged: false

# ============================================================================
# OUTPUT SETTINGS
# ============================================================================
output:
  # Output format: "text", "json", "yaml", "html"
  format: "text"

  # Write one report per program into this directory (empty = stdout)
  directory: ""

  # Prefix for generated file names
  prefix: ""

  # Emit Mermaid call graph and data flow diagrams
  mermaid: false

  # Emit Graphviz control flow graphs
  dot: false

  show_details: false

  # Paragraph order in text output: "name", "complexity", "line"
  sort_by: "line"

# ============================================================================
# ANALYSIS SCOPE
# ============================================================================
analysis:
  include_patterns: ` + formatYAMLArray(preset.IncludePatterns) + `
  exclude_patterns: ` + formatYAMLArray(preset.ExcludePatterns) + `
  respect_gitignore: true
  recursive: true
  follow_symlinks: false

performance:
  # Concurrent program analyses (0 = number of CPUs)
  max_goroutines: 0
  timeout_seconds: 300

logging:
  # "debug", "info", "warn", "error"
  level: "warn"
  # "text" or "json"
  format: "text"

metrics:
  # Prometheus textfile written after each run (empty = disabled)
  textfile: ""
`
}

// GetMinimalConfigTemplate returns a minimal config template
func GetMinimalConfigTemplate() string {
	return `# cblscan configuration (minimal)
# See full options: https://github.com/ludo-technologies/cblscan

copybook:
  include_dirs: ["copybooks"]

complexity:
  enabled: true
  low_threshold: 10
  medium_threshold: 20

analysis:
  include_patterns: ["**/*.cbl", "**/*.cob"]
  exclude_patterns: [".git", "**/*.cpy"]
`
}

// formatYAMLArray formats a string slice as a YAML flow sequence
func formatYAMLArray(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
