package constants

// Tool name and related constants
const (
	// ToolName is the name of this tool
	ToolName = "cblscan"

	// ConfigFileName is the default config file name
	ConfigFileName = "cblscan.yaml"

	// EnvVarPrefix is the prefix for environment variables
	EnvVarPrefix = "CBLSCAN"
)

// Paragraph and graph naming constants
const (
	// MainParagraph names the synthesized paragraph holding the unnamed procedure body
	MainParagraph = "_MAIN"

	// ExternalCallPrefix namespaces external program calls in the call graph
	ExternalCallPrefix = "CALL::"

	// UnknownValue is the placeholder for missing descriptor fields
	UnknownValue = "UNKNOWN"

	// LinePrefix prefixes line-level CFG node identifiers
	LinePrefix = "LINE_"
)

// Copybook resolution defaults
const (
	// DefaultMaxCopyDepth bounds nested COPY expansion
	DefaultMaxCopyDepth = 10

	// DefaultCopybookCacheSize bounds the number of cached copybook bodies
	DefaultCopybookCacheSize = 1024
)

// DefaultCopybookExtensions are tried in order when resolving a COPY name
var DefaultCopybookExtensions = []string{".cpy", ".cob", ".inc"}

// DefaultSourceExtensions identify COBOL programs during file collection
var DefaultSourceExtensions = []string{".cbl", ".cob", ".cobol"}

// Output format constants
const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"
)

// Output file names
const (
	// ErrorReportFileName collects diagnostics for a batch run
	ErrorReportFileName = "parsing_errors.json"

	// MetricsFileName is the default Prometheus textfile name
	MetricsFileName = "cblscan.prom"
)
