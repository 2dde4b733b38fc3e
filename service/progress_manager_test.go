package service

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/cblscan/domain"
)

func TestNewProgressManager_NonInteractive(t *testing.T) {
	pm := NewProgressManager(false)
	assert.False(t, pm.IsInteractive(), "disabled progress is non-interactive")

	var _ domain.ProgressManager = pm
}

func TestIsInteractiveEnvironment_CI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.False(t, IsInteractiveEnvironment())
	assert.False(t, NewProgressManager(true).IsInteractive(), "no-op progress under CI")
}

func TestNoOpProgressManager(t *testing.T) {
	pm := &NoOpProgressManager{}
	assert.False(t, pm.IsInteractive())

	task := pm.StartTask("test", 100)
	require.NotNil(t, task)

	task.Increment(10)
	task.Describe("testing")
	task.Complete()

	pm.Close()
}

func TestNoOpTaskProgress(t *testing.T) {
	tp := &NoOpTaskProgress{}

	tp.Increment(10)
	tp.Describe("testing")
	tp.Complete()

	var _ domain.TaskProgress = tp
}

func TestProgressManagerImpl_WritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	pm := NewProgressManagerWithWriter(&buf)

	task := pm.StartTask("Structuring programs", 2)
	task.Describe("PAYROLL.cbl")
	task.Increment(1)
	task.Increment(1)
	task.Complete()
	pm.Close()

	assert.NotZero(t, buf.Len(), "progress output written")
	assert.True(t, pm.IsInteractive())
}

func TestProgressManagerImpl_Interface(t *testing.T) {
	var _ domain.ProgressManager = &ProgressManagerImpl{}
	var _ domain.TaskProgress = &TaskProgressImpl{}
}

func TestDescribeItem(t *testing.T) {
	tests := []struct {
		label, item, want string
	}{
		{"Structuring programs", "src/batch/PAYROLL.cbl", "Structuring programs (PAYROLL.cbl)"},
		{"Structuring programs", "", "Structuring programs"},
		{"", "src/BILLING.cbl", "BILLING.cbl"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, describeItem(tt.label, tt.item), "describeItem(%q, %q)", tt.label, tt.item)
	}
}
