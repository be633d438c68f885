package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDiagnosticsSeverity(t *testing.T) {
	output := "error: something broke\nwarning: looks odd\nnote: declared here"
	diags := parseDiagnostics(output, "f.wgsl", 0)
	require.Len(t, diags, 3)
	assert.Equal(t, SeverityError, diags[0].Severity)
	assert.Equal(t, "something broke", diags[0].Message)
	assert.Equal(t, SeverityWarning, diags[1].Severity)
	assert.Equal(t, SeverityInfo, diags[2].Severity)
}

func TestParseDiagnosticsLocationShift(t *testing.T) {
	output := "error: unknown identifier at :12:5"
	diags := parseDiagnostics(output, "f.wgsl", 10)
	require.Len(t, diags, 1)
	assert.Equal(t, 2, diags[0].Line)
	assert.Equal(t, 5, diags[0].Column)
}

func TestParseDiagnosticsPreludeLocationDropped(t *testing.T) {
	// A location inside the prepended prelude is meaningless to the user.
	output := "error: bad declaration at :3:1"
	diags := parseDiagnostics(output, "f.wgsl", 10)
	require.Len(t, diags, 1)
	assert.Equal(t, 0, diags[0].Line)
	assert.Equal(t, 0, diags[0].Column)
}

func TestParseDiagnosticsContinuationFolding(t *testing.T) {
	output := "error: type mismatch\n  let x: f32 = 1;\n       ^^^ expected f32"
	diags := parseDiagnostics(output, "f.wgsl", 0)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "type mismatch")
	assert.Contains(t, diags[0].Message, "^^^")
}

func TestParseDiagnosticsNeverEmpty(t *testing.T) {
	diags := parseDiagnostics("unrecognizable gibberish", "f.wgsl", 0)
	require.NotEmpty(t, diags)
	assert.Equal(t, SeverityError, diags[0].Severity)
	assert.NotEmpty(t, diags[0].Message)
}

func TestDiagnosticString(t *testing.T) {
	withLoc := Diagnostic{Severity: SeverityError, Message: "m", File: "a.wgsl", Line: 3, Column: 7}
	assert.Equal(t, "a.wgsl:3:7: error: m", withLoc.String())

	noLoc := Diagnostic{Severity: SeverityWarning, Message: "m", File: "a.wgsl"}
	assert.Equal(t, "a.wgsl: warning: m", noLoc.String())
}
