package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ludo-technologies/cblscan/internal/constants"
)

// Default complexity thresholds based on McCabe complexity standards
const (
	// DefaultLowComplexityThreshold defines the upper bound for low complexity paragraphs
	// Paragraphs with complexity <= 9 are considered low risk and easy to maintain
	DefaultLowComplexityThreshold = 9

	// DefaultMediumComplexityThreshold defines the upper bound for medium complexity paragraphs
	// Paragraphs with complexity 10-19 are considered medium risk and may need refactoring
	DefaultMediumComplexityThreshold = 19

	// DefaultMaxComplexityLimit defines no upper limit for complexity analysis
	// Setting to 0 means no maximum complexity enforcement
	DefaultMaxComplexityLimit = 0
)

// Default runtime settings
const (
	DefaultTimeoutSeconds = 300
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "text"
)

// Config represents the main configuration structure
type Config struct {
	// Copybook holds COPY resolution configuration
	Copybook CopybookConfig `json:"copybook" mapstructure:"copybook" yaml:"copybook"`

	// Structure holds statement structuring configuration
	Structure StructureConfig `json:"structure" mapstructure:"structure" yaml:"structure"`

	// Complexity holds complexity analysis configuration
	Complexity ComplexityConfig `json:"complexity" mapstructure:"complexity" yaml:"complexity"`

	// Output holds output formatting configuration
	Output OutputConfig `json:"output" mapstructure:"output" yaml:"output"`

	// Analysis holds file selection configuration
	Analysis AnalysisConfig `json:"analysis" mapstructure:"analysis" yaml:"analysis"`

	// Performance holds batch execution limits
	Performance PerformanceConfig `json:"performance" mapstructure:"performance" yaml:"performance"`

	// Logging holds log output configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging" yaml:"logging"`

	// Metrics holds Prometheus textfile export configuration
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics" yaml:"metrics"`
}

// CopybookConfig holds configuration for COPY expansion
type CopybookConfig struct {
	// IncludeDirs are searched in order for copybooks
	IncludeDirs []string `json:"include_dirs" mapstructure:"include_dirs" yaml:"include_dirs"`

	// Extensions are tried in order when a COPY name has none
	Extensions []string `json:"extensions" mapstructure:"extensions" yaml:"extensions" validate:"min=1,dive,startswith=."`

	// MaxDepth bounds nested COPY expansion
	MaxDepth int `json:"max_depth" mapstructure:"max_depth" yaml:"max_depth" validate:"gte=1,lte=64"`

	// CacheSize bounds the number of cached copybook bodies
	CacheSize int `json:"cache_size" mapstructure:"cache_size" yaml:"cache_size" validate:"gte=1"`
}

// StructureConfig holds configuration for the statement structurer
type StructureConfig struct {
	// MainParagraph names the paragraph holding the unnamed procedure body
	MainParagraph string `json:"main_paragraph" mapstructure:"main_paragraph" yaml:"main_paragraph" validate:"required"`

	// Keywords is the control keyword set; empty means the default set
	Keywords []string `json:"keywords" mapstructure:"keywords" yaml:"keywords"`

	// SplitKeywords break a physical line holding several statements
	SplitKeywords []string `json:"split_keywords" mapstructure:"split_keywords" yaml:"split_keywords"`
}

// ComplexityConfig holds configuration for cyclomatic complexity analysis
type ComplexityConfig struct {
	// LowThreshold is the upper bound for low complexity (inclusive)
	LowThreshold int `json:"low_threshold" mapstructure:"low_threshold" yaml:"low_threshold" validate:"gte=1"`

	// MediumThreshold is the upper bound for medium complexity (inclusive)
	// Values above this are considered high complexity
	MediumThreshold int `json:"medium_threshold" mapstructure:"medium_threshold" yaml:"medium_threshold" validate:"gtfield=LowThreshold"`

	// Enabled controls whether complexity analysis is performed
	Enabled bool `json:"enabled" mapstructure:"enabled" yaml:"enabled"`

	// ReportUnchanged controls whether to report paragraphs with complexity = 1
	ReportUnchanged bool `json:"report_unchanged" mapstructure:"report_unchanged" yaml:"report_unchanged"`

	// MaxComplexity is the maximum allowed program complexity before failing a check
	// 0 means no limit
	MaxComplexity int `json:"max_complexity" mapstructure:"max_complexity" yaml:"max_complexity" validate:"gte=0"`
}

// OutputConfig holds configuration for output formatting
type OutputConfig struct {
	// Format specifies the report format: text, json, yaml, html
	Format string `json:"format" mapstructure:"format" yaml:"format" validate:"oneof=text json yaml html"`

	// Directory receives one report per program; empty writes to stdout
	Directory string `json:"directory" mapstructure:"directory" yaml:"directory"`

	// Prefix is prepended to every generated file name
	Prefix string `json:"prefix" mapstructure:"prefix" yaml:"prefix"`

	// Mermaid writes callgraph_<ID>.md and dataflow_<ID>.md next to each report
	Mermaid bool `json:"mermaid" mapstructure:"mermaid" yaml:"mermaid"`

	// DOT writes cfg_<ID>.dot next to each report
	DOT bool `json:"dot" mapstructure:"dot" yaml:"dot"`

	// ShowDetails includes statement trees in text output
	ShowDetails bool `json:"show_details" mapstructure:"show_details" yaml:"show_details"`

	// SortBy orders paragraphs in text output: name, complexity, line
	SortBy string `json:"sort_by" mapstructure:"sort_by" yaml:"sort_by" validate:"oneof=name complexity line"`
}

// AnalysisConfig holds general analysis configuration
type AnalysisConfig struct {
	// IncludePatterns specifies file patterns to include
	IncludePatterns []string `json:"include_patterns" mapstructure:"include_patterns" yaml:"include_patterns" validate:"min=1"`

	// ExcludePatterns specifies file patterns to exclude
	ExcludePatterns []string `json:"exclude_patterns" mapstructure:"exclude_patterns" yaml:"exclude_patterns"`

	// RespectGitignore skips files ignored by .gitignore
	RespectGitignore bool `json:"respect_gitignore" mapstructure:"respect_gitignore" yaml:"respect_gitignore"`

	// Recursive controls whether to analyze directories recursively
	Recursive bool `json:"recursive" mapstructure:"recursive" yaml:"recursive"`

	// FollowSymlinks controls whether to follow symbolic links
	FollowSymlinks bool `json:"follow_symlinks" mapstructure:"follow_symlinks" yaml:"follow_symlinks"`
}

// PerformanceConfig holds batch execution limits
type PerformanceConfig struct {
	// MaxGoroutines bounds concurrent program analyses (0 = number of CPUs)
	MaxGoroutines int `json:"max_goroutines" mapstructure:"max_goroutines" yaml:"max_goroutines" validate:"gte=0"`

	// TimeoutSeconds bounds the whole batch (0 = five minutes)
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=0"`
}

// LoggingConfig holds log output configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// MetricsConfig holds Prometheus textfile export configuration
type MetricsConfig struct {
	// Textfile is written after each run when set
	Textfile string `json:"textfile" mapstructure:"textfile" yaml:"textfile"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Copybook: CopybookConfig{
			IncludeDirs: []string{},
			Extensions:  append([]string(nil), constants.DefaultCopybookExtensions...),
			MaxDepth:    constants.DefaultMaxCopyDepth,
			CacheSize:   constants.DefaultCopybookCacheSize,
		},
		Structure: StructureConfig{
			MainParagraph: constants.MainParagraph,
			Keywords:      []string{},
			SplitKeywords: []string{},
		},
		Complexity: ComplexityConfig{
			LowThreshold:    DefaultLowComplexityThreshold,
			MediumThreshold: DefaultMediumComplexityThreshold,
			Enabled:         true,
			ReportUnchanged: true,
			MaxComplexity:   DefaultMaxComplexityLimit,
		},
		Output: OutputConfig{
			Format: constants.OutputFormatText,
			SortBy: "line",
		},
		Analysis: AnalysisConfig{
			IncludePatterns: []string{"**/*.cbl", "**/*.cob", "**/*.cobol"},
			ExcludePatterns: []string{
				".git",
				"copybooks",
				"**/*.cpy",
			},
			RespectGitignore: true,
			Recursive:        true,
			FollowSymlinks:   false,
		},
		Performance: PerformanceConfig{
			MaxGoroutines:  0,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// LoadConfig loads configuration from a file, or discovers one when path is empty
func LoadConfig(configPath string) (*Config, error) {
	return LoadConfigWithTarget(configPath, "")
}

// LoadConfigWithTarget loads configuration, discovering the file from the
// target path upward when configPath is empty
func LoadConfigWithTarget(configPath string, targetPath string) (*Config, error) {
	if configPath == "" {
		configPath = findDefaultConfig(targetPath)
	}

	return loadConfigFromFile(configPath)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(constants.EnvVarPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func loadConfigFromFile(configPath string) (*Config, error) {
	v := newViper()
	config := DefaultConfig()

	// env overrides apply only to keys viper knows about
	bindDefaults(v, config)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func bindDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("copybook.include_dirs", c.Copybook.IncludeDirs)
	v.SetDefault("copybook.extensions", c.Copybook.Extensions)
	v.SetDefault("copybook.max_depth", c.Copybook.MaxDepth)
	v.SetDefault("copybook.cache_size", c.Copybook.CacheSize)
	v.SetDefault("structure.main_paragraph", c.Structure.MainParagraph)
	v.SetDefault("structure.keywords", c.Structure.Keywords)
	v.SetDefault("structure.split_keywords", c.Structure.SplitKeywords)
	v.SetDefault("complexity.low_threshold", c.Complexity.LowThreshold)
	v.SetDefault("complexity.medium_threshold", c.Complexity.MediumThreshold)
	v.SetDefault("complexity.enabled", c.Complexity.Enabled)
	v.SetDefault("complexity.report_unchanged", c.Complexity.ReportUnchanged)
	v.SetDefault("complexity.max_complexity", c.Complexity.MaxComplexity)
	v.SetDefault("output.format", c.Output.Format)
	v.SetDefault("output.directory", c.Output.Directory)
	v.SetDefault("output.prefix", c.Output.Prefix)
	v.SetDefault("output.mermaid", c.Output.Mermaid)
	v.SetDefault("output.dot", c.Output.DOT)
	v.SetDefault("output.show_details", c.Output.ShowDetails)
	v.SetDefault("output.sort_by", c.Output.SortBy)
	v.SetDefault("analysis.include_patterns", c.Analysis.IncludePatterns)
	v.SetDefault("analysis.exclude_patterns", c.Analysis.ExcludePatterns)
	v.SetDefault("analysis.respect_gitignore", c.Analysis.RespectGitignore)
	v.SetDefault("analysis.recursive", c.Analysis.Recursive)
	v.SetDefault("analysis.follow_symlinks", c.Analysis.FollowSymlinks)
	v.SetDefault("performance.max_goroutines", c.Performance.MaxGoroutines)
	v.SetDefault("performance.timeout_seconds", c.Performance.TimeoutSeconds)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.format", c.Logging.Format)
	v.SetDefault("metrics.textfile", c.Metrics.Textfile)
}

// configCandidates are searched in each directory, in order
var configCandidates = []string{
	"cblscan.yaml",
	"cblscan.yml",
	".cblscan.yaml",
	".cblscan.yml",
	"cblscan.json",
	".cblscan.toml",
}

func searchConfigInDirectory(dir string, candidates []string) string {
	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindDefaultConfig returns the first config file found from targetPath
// upward, then the working directory, XDG and home config directories, and
// finally $CBLSCAN_CONFIG
func FindDefaultConfig(targetPath string) string {
	return findDefaultConfig(targetPath)
}

func findDefaultConfig(targetPath string) string {
	if targetPath != "" {
		absPath, err := filepath.Abs(targetPath)
		if err == nil {
			info, err := os.Stat(absPath)
			if err == nil && !info.IsDir() {
				absPath = filepath.Dir(absPath)
			}

			volume := filepath.VolumeName(absPath)
			for dir := absPath; ; dir = filepath.Dir(dir) {
				if config := searchConfigInDirectory(dir, configCandidates); config != "" {
					return config
				}

				parent := filepath.Dir(dir)
				if parent == dir || // Unix-style root reached (/), Windows UNC root (\\server)
					dir == volume || // Windows volume root reached (C:\)
					(volume != "" && dir == volume+string(filepath.Separator)) {
					break
				}
			}
		}
	}

	if config := searchConfigInDirectory(".", configCandidates); config != "" {
		return config
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		if config := searchConfigInDirectory(filepath.Join(xdgConfig, constants.ToolName), configCandidates); config != "" {
			return config
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		configDir := filepath.Join(home, ".config", constants.ToolName)
		if config := searchConfigInDirectory(configDir, configCandidates); config != "" {
			return config
		}
	}

	if envConfig := os.Getenv(constants.EnvVarPrefix + "_CONFIG"); envConfig != "" {
		if _, err := os.Stat(envConfig); err == nil {
			return envConfig
		}
	}

	return ""
}

var validate = validator.New()

// Validate checks struct tags and the cross-field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Complexity.MaxComplexity > 0 && c.Complexity.MaxComplexity <= c.Complexity.MediumThreshold {
		return fmt.Errorf("complexity.max_complexity (%d) must be > medium_threshold (%d) or 0 for no limit",
			c.Complexity.MaxComplexity, c.Complexity.MediumThreshold)
	}

	return nil
}

func (c *ComplexityConfig) AssessRiskLevel(complexity int) string {
	if complexity <= c.LowThreshold {
		return "low"
	} else if complexity <= c.MediumThreshold {
		return "medium"
	}
	return "high"
}

func (c *ComplexityConfig) ShouldReport(complexity int) bool {
	if !c.Enabled {
		return false
	}

	if complexity == 1 && !c.ReportUnchanged {
		return false
	}

	return true
}

func (c *ComplexityConfig) ExceedsMaxComplexity(complexity int) bool {
	return c.MaxComplexity > 0 && complexity > c.MaxComplexity
}

// SaveConfig writes the configuration as YAML
func SaveConfig(config *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("copybook", config.Copybook)
	v.Set("structure", config.Structure)
	v.Set("complexity", config.Complexity)
	v.Set("output", config.Output)
	v.Set("analysis", config.Analysis)
	v.Set("performance", config.Performance)
	v.Set("logging", config.Logging)
	v.Set("metrics", config.Metrics)

	return v.WriteConfig()
}
