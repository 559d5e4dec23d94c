package printer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	DisableColor()
	var stdout, stderr bytes.Buffer
	restore := SetOutput(&stdout, &stderr)
	t.Cleanup(restore)
	return &stdout, &stderr
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "This is a test error", nil)
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, stderr.String(), "This is a test error")
	})

	t.Run("single suggestion printed as-is", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "Explanation", []string{"Try this fix"})
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, stderr.String(), "\nTry this fix\n")
		assert.NotContains(t, stderr.String(), "Either:")
	})

	t.Run("multiple suggestions are numbered", func(t *testing.T) {
		_, stderr := capture(t)
		err := Error("Test Error", "Explanation", []string{"First option", "Second option"})
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, stderr.String(), "Either:\n  1. First option\n  2. Second option\n")
	})
}

func TestErrorWithContext(t *testing.T) {
	_, stderr := capture(t)
	err := ErrorWithContext("Test Error", "Explanation", map[string]string{
		"Project":   "Soil carbon",
		"Namespace": "lab",
	}, []string{"Fix it"})
	require.Equal(t, "Test Error", err.Error())
	assert.Contains(t, stderr.String(), "  Namespace: lab\n  Project: Soil carbon\n")
}

func TestMessages(t *testing.T) {
	stdout, _ := capture(t)

	Success("Saved %s\n", "project")
	Warning("Slow\n")
	Step("Refining\n")
	Findings([]string{"Risk without contingency", "Aim without evidence"})

	out := stdout.String()
	assert.Contains(t, out, "✓ Saved project")
	assert.Contains(t, out, "⚠️  Slow")
	assert.Contains(t, out, "→ Refining")
	assert.Contains(t, out, "  1. Risk without contingency\n  2. Aim without evidence\n")
}
