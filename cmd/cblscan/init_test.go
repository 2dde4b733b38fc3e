package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ludo-technologies/cblscan/internal/config"
)

func TestInitCommand_BasicConfigCreation(t *testing.T) {
	tmpDir := t.TempDir()

	// Set up the config path
	configPath := filepath.Join(tmpDir, "cblscan.yaml")

	// Run the init command with args
	cmd := initCmd()
	cmd.SetArgs([]string{"--config", configPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init command failed: %v", err)
	}

	// Verify content
	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	// Check for expected sections
	contentStr := string(content)
	expectedSections := []string{
		"copybook:",
		"structure:",
		"complexity:",
		"output:",
		"analysis:",
		"low_threshold: 10",
		"medium_threshold: 20",
		`include_dirs: ["copybooks"]`,
	}

	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing expected section: %s", section)
		}
	}

	// The generated file must load as a valid configuration
	if _, err := config.LoadConfig(configPath); err != nil {
		t.Errorf("Generated config does not load: %v", err)
	}
}

func TestInitCommand_ForceOverwrite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cblscan.yaml")

	// Create an existing file
	if err := os.WriteFile(configPath, []byte("existing: true\n"), 0644); err != nil {
		t.Fatalf("Failed to create existing file: %v", err)
	}

	// Try to create without force - should fail
	cmd := initCmd()
	cmd.SetArgs([]string{"--config", configPath})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("Expected error when file exists without --force")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}

	// Now try with force - should succeed
	cmd = initCmd()
	cmd.SetArgs([]string{"--config", configPath, "--force"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init --force failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if !strings.Contains(string(content), "complexity") {
		t.Error("Config file was not overwritten with new content")
	}
}

func TestInitCommand_MinimalConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cblscan.yaml")

	cmd := initCmd()
	cmd.SetArgs([]string{"--config", configPath, "--minimal"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init --minimal failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	contentStr := string(content)

	if !strings.Contains(contentStr, "complexity") {
		t.Error("Minimal config missing complexity section")
	}
	if !strings.Contains(contentStr, "copybook") {
		t.Error("Minimal config missing copybook section")
	}
	// Minimal config should have the minimal comment
	if !strings.Contains(contentStr, "minimal") {
		t.Error("Minimal config should indicate it's minimal")
	}
}

func TestInitCommand_ProjectAndStrictness(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cblscan.yaml")

	cmd := initCmd()
	cmd.SetArgs([]string{"--config", configPath, "--project", "mainframe", "--strictness", "strict"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	for _, want := range []string{`"COPYLIB"`, "low_threshold: 5", "max_complexity: 40"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("Config missing %s", want)
		}
	}
}

func TestInitCommand_UnknownPreset(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := initCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(tmpDir, "a.yaml"), "--project", "cics"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "unknown project type") {
		t.Errorf("Expected unknown project type error, got: %v", err)
	}

	cmd = initCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(tmpDir, "b.yaml"), "--strictness", "paranoid"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "unknown strictness") {
		t.Errorf("Expected unknown strictness error, got: %v", err)
	}
}

func TestInitCommand_InvalidDirectory(t *testing.T) {
	// Try to create config in non-existent directory
	cmd := initCmd()
	cmd.SetArgs([]string{"--config", "/nonexistent/directory/cblscan.yaml"})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("Expected error when directory doesn't exist")
	}

	if !strings.Contains(err.Error(), "directory does not exist") {
		t.Errorf("Expected 'directory does not exist' error, got: %v", err)
	}
}

func TestInitCommand_FullConfigSize(t *testing.T) {
	tmpDir := t.TempDir()

	fullPath := filepath.Join(tmpDir, "full.yaml")
	cmd := initCmd()
	cmd.SetArgs([]string{"--config", fullPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	fullContent, _ := os.ReadFile(fullPath)

	minimalPath := filepath.Join(tmpDir, "minimal.yaml")
	cmd = initCmd()
	cmd.SetArgs([]string{"--config", minimalPath, "--minimal"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init --minimal failed: %v", err)
	}
	minimalContent, _ := os.ReadFile(minimalPath)

	// Full config should be larger than minimal
	if len(fullContent) <= len(minimalContent) {
		t.Error("Full config should be larger than minimal config")
	}
}

func TestStrictnessPresets(t *testing.T) {
	presets := config.GetStrictnessPresets()

	relaxed := presets[config.StrictnessRelaxed]
	standard := presets[config.StrictnessStandard]
	strict := presets[config.StrictnessStrict]

	// Verify strictness ordering (relaxed > standard > strict thresholds)
	if relaxed.LowThreshold <= standard.LowThreshold {
		t.Error("Relaxed should have higher thresholds than standard")
	}
	if standard.LowThreshold <= strict.LowThreshold {
		t.Error("Standard should have higher thresholds than strict")
	}

	// Strict should have maxComplexity set
	if strict.MaxComplexity <= 0 {
		t.Error("Strict mode should have maxComplexity enforcement")
	}
}
