package service

import (
	"fmt"
	"time"

	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/internal/config"
)

// ConfigurationLoaderImpl implements the ConfigurationLoader interface
type ConfigurationLoaderImpl struct{}

// NewConfigurationLoader creates a new configuration loader service
func NewConfigurationLoader() *ConfigurationLoaderImpl {
	return &ConfigurationLoaderImpl{}
}

// LoadConfig loads configuration from the specified path
func (c *ConfigurationLoaderImpl) LoadConfig(path string) (*domain.AnalyzeRequest, error) {
	return c.LoadConfigForTarget(path, "")
}

// LoadConfigForTarget loads configuration, discovering the file from target
// upward when path is empty
func (c *ConfigurationLoaderImpl) LoadConfigForTarget(path, target string) (*domain.AnalyzeRequest, error) {
	cfg, err := config.LoadConfigWithTarget(path, target)
	if err != nil {
		return nil, domain.NewConfigError("failed to load configuration file", err)
	}

	req := c.convertToAnalyzeRequest(cfg)
	if path != "" {
		req.ConfigPath = path
	} else {
		req.ConfigPath = config.FindDefaultConfig(target)
	}
	return req, nil
}

// LoadDefaultConfig loads the discovered configuration, falling back to the
// built-in defaults
func (c *ConfigurationLoaderImpl) LoadDefaultConfig() *domain.AnalyzeRequest {
	cfg, err := config.LoadConfigWithTarget("", "")
	if err == nil {
		return c.convertToAnalyzeRequest(cfg)
	}

	return c.convertToAnalyzeRequest(config.DefaultConfig())
}

// FindDefaultConfigFile searches for a configuration file from the current
// directory upward and in the user config locations
func (c *ConfigurationLoaderImpl) FindDefaultConfigFile() string {
	return config.FindDefaultConfig("")
}

// MergeConfig merges CLI flags with configuration file values. Non-zero
// override fields win; booleans can only be switched on.
func (c *ConfigurationLoaderImpl) MergeConfig(base *domain.AnalyzeRequest, override *domain.AnalyzeRequest) *domain.AnalyzeRequest {
	merged := *base

	// Paths always come from command arguments
	if len(override.Paths) > 0 {
		merged.Paths = override.Paths
	}

	if override.OutputFormat != "" {
		merged.OutputFormat = override.OutputFormat
	}
	if override.OutputWriter != nil {
		merged.OutputWriter = override.OutputWriter
	}
	if override.OutputDir != "" {
		merged.OutputDir = override.OutputDir
	}
	if override.OutputPrefix != "" {
		merged.OutputPrefix = override.OutputPrefix
	}
	if override.Mermaid {
		merged.Mermaid = true
	}
	if override.DOT {
		merged.DOT = true
	}
	if override.ShowDetails {
		merged.ShowDetails = true
	}
	if override.SortBy != "" {
		merged.SortBy = override.SortBy
	}

	if override.LowThreshold > 0 {
		merged.LowThreshold = override.LowThreshold
	}
	if override.MediumThreshold > 0 {
		merged.MediumThreshold = override.MediumThreshold
	}
	if override.MaxComplexity > 0 {
		merged.MaxComplexity = override.MaxComplexity
	}

	// Command-line include dirs are searched before configured ones
	if len(override.IncludeDirs) > 0 {
		merged.IncludeDirs = append(append([]string(nil), override.IncludeDirs...), base.IncludeDirs...)
	}
	if len(override.Extensions) > 0 {
		merged.Extensions = override.Extensions
	}
	if override.MaxCopyDepth > 0 {
		merged.MaxCopyDepth = override.MaxCopyDepth
	}
	if override.CacheSize > 0 {
		merged.CacheSize = override.CacheSize
	}

	if override.MainParagraph != "" {
		merged.MainParagraph = override.MainParagraph
	}
	if len(override.Keywords) > 0 {
		merged.Keywords = override.Keywords
	}
	if len(override.SplitKeywords) > 0 {
		merged.SplitKeywords = override.SplitKeywords
	}

	if len(override.IncludePatterns) > 0 {
		merged.IncludePatterns = override.IncludePatterns
	}
	if len(override.ExcludePatterns) > 0 {
		merged.ExcludePatterns = override.ExcludePatterns
	}

	if override.MaxGoroutines > 0 {
		merged.MaxGoroutines = override.MaxGoroutines
	}
	if override.Timeout > 0 {
		merged.Timeout = override.Timeout
	}
	if override.MetricsTextfile != "" {
		merged.MetricsTextfile = override.MetricsTextfile
	}
	if override.LogLevel != "" {
		merged.LogLevel = override.LogLevel
	}
	if override.LogFormat != "" {
		merged.LogFormat = override.LogFormat
	}

	if override.ConfigPath != "" {
		merged.ConfigPath = override.ConfigPath
	}

	return &merged
}

// convertToAnalyzeRequest converts a Config to AnalyzeRequest
func (c *ConfigurationLoaderImpl) convertToAnalyzeRequest(cfg *config.Config) *domain.AnalyzeRequest {
	return &domain.AnalyzeRequest{
		// Paths are set by the caller, not from config
		Paths: []string{},

		OutputFormat: domain.OutputFormat(cfg.Output.Format),
		OutputDir:    cfg.Output.Directory,
		OutputPrefix: cfg.Output.Prefix,
		Mermaid:      cfg.Output.Mermaid,
		DOT:          cfg.Output.DOT,
		ShowDetails:  cfg.Output.ShowDetails,
		SortBy:       domain.SortCriteria(cfg.Output.SortBy),

		LowThreshold:    cfg.Complexity.LowThreshold,
		MediumThreshold: cfg.Complexity.MediumThreshold,
		MaxComplexity:   cfg.Complexity.MaxComplexity,

		IncludeDirs:  append([]string(nil), cfg.Copybook.IncludeDirs...),
		Extensions:   append([]string(nil), cfg.Copybook.Extensions...),
		MaxCopyDepth: cfg.Copybook.MaxDepth,
		CacheSize:    cfg.Copybook.CacheSize,

		MainParagraph: cfg.Structure.MainParagraph,
		Keywords:      append([]string(nil), cfg.Structure.Keywords...),
		SplitKeywords: append([]string(nil), cfg.Structure.SplitKeywords...),

		Recursive:        cfg.Analysis.Recursive,
		RespectGitignore: cfg.Analysis.RespectGitignore,
		FollowSymlinks:   cfg.Analysis.FollowSymlinks,
		IncludePatterns:  append([]string(nil), cfg.Analysis.IncludePatterns...),
		ExcludePatterns:  append([]string(nil), cfg.Analysis.ExcludePatterns...),

		MaxGoroutines: cfg.Performance.MaxGoroutines,
		Timeout:       time.Duration(cfg.Performance.TimeoutSeconds) * time.Second,

		LogLevel:  cfg.Logging.Level,
		LogFormat: cfg.Logging.Format,

		MetricsTextfile: cfg.Metrics.Textfile,
	}
}

// ValidateConfig validates the merged request
func (c *ConfigurationLoaderImpl) ValidateConfig(req *domain.AnalyzeRequest) error {
	if req.LowThreshold <= 0 {
		return fmt.Errorf("low_threshold must be greater than 0, got %d", req.LowThreshold)
	}

	if req.MediumThreshold <= req.LowThreshold {
		return fmt.Errorf("medium_threshold (%d) must be greater than low_threshold (%d)",
			req.MediumThreshold, req.LowThreshold)
	}

	if req.MaxComplexity < 0 {
		return fmt.Errorf("max_complexity cannot be negative, got %d", req.MaxComplexity)
	}

	if req.MaxCopyDepth < 0 {
		return fmt.Errorf("max_copy_depth cannot be negative, got %d", req.MaxCopyDepth)
	}

	validFormats := map[domain.OutputFormat]bool{
		domain.OutputFormatText:    true,
		domain.OutputFormatJSON:    true,
		domain.OutputFormatYAML:    true,
		domain.OutputFormatMermaid: true,
		domain.OutputFormatDOT:     true,
		domain.OutputFormatHTML:    true,
	}
	if !validFormats[req.OutputFormat] {
		return fmt.Errorf("invalid output format: %s (must be one of: text, json, yaml, html, mermaid, dot)",
			req.OutputFormat)
	}

	validSorts := map[domain.SortCriteria]bool{
		"":                      true,
		domain.SortByComplexity: true,
		domain.SortByName:       true,
		domain.SortByLine:       true,
	}
	if !validSorts[req.SortBy] {
		return fmt.Errorf("invalid sort criteria: %s (must be one of: complexity, name, line)", req.SortBy)
	}

	return nil
}
