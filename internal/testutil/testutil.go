// Package testutil provides helper functions for testing cblscan components
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// indicator area columns of a fixed-format line
const areaA = "       "

// Program renders a fixed-format program named id. Each procedure line is
// placed in Area A, so statements carry their own extra indentation.
func Program(id string, procedure ...string) string {
	var sb strings.Builder
	sb.WriteString(areaA + "IDENTIFICATION DIVISION.\n")
	sb.WriteString(areaA + "PROGRAM-ID. " + id + ".\n")
	sb.WriteString(areaA + "PROCEDURE DIVISION.\n")
	for _, line := range procedure {
		sb.WriteString(areaA + line + "\n")
	}
	return sb.String()
}

// WriteFiles writes each relative path under root, creating parent
// directories, and returns root
func WriteFiles(t *testing.T, root string, files map[string]string) string {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return root
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected error but got nil")
	}
}
