package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Severity classifies a compiler diagnostic.
type Severity int

const (
	// SeverityError indicates the shader failed to compile.
	SeverityError Severity = iota

	// SeverityWarning indicates a problem that did not stop compilation.
	SeverityWarning

	// SeverityInfo indicates a supplementary note attached to another diagnostic.
	SeverityInfo
)

// String returns the lower-case label for the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Diagnostic is a single structured message produced by shader compilation.
// Line and Column are 1-based positions in the composed shader source and are
// zero when the compiler output carried no usable location.
type Diagnostic struct {
	Severity Severity
	Message  string
	File     string
	Line     int
	Column   int
}

// String formats the diagnostic the way it is shown on the error overlay.
func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.File, d.Severity, d.Message)
}

// diagLineRe matches one diagnostic line of the compiler's textual output.
// Accepted shapes, in order of specificity:
//
//	error: message at :12:34
//	wgsl:12:34 error: message
//	error: message
var (
	diagHeadRe = regexp.MustCompile(`^\s*(error|warning|note|info)(?:\[[^\]]*\])?\s*:\s*(.*)$`)
	diagLocRe  = regexp.MustCompile(`:(\d+):(\d+)`)
)

// parseDiagnostics converts the compiler's textual error output into a
// structured diagnostic list. Lines that cannot be parsed are folded into the
// message of the preceding diagnostic, or emitted as a location-less error if
// there is none, so the result is never empty for non-empty input.
//
// preludeLines is the number of source lines the compiler prepended before the
// user's composed source; reported line numbers are shifted back so they refer
// to the file the user is editing. Diagnostics pointing inside the prelude
// keep no location.
func parseDiagnostics(output, file string, preludeLines int) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := diagHeadRe.FindStringSubmatch(line)
		if m == nil {
			// Continuation line (source snippet, caret markers): append to the
			// previous diagnostic's message.
			if len(diags) > 0 {
				last := &diags[len(diags)-1]
				last.Message += "\n" + line
			} else {
				diags = append(diags, Diagnostic{Severity: SeverityError, Message: line, File: file})
			}
			continue
		}
		d := Diagnostic{Message: m[2], File: file}
		switch m[1] {
		case "warning":
			d.Severity = SeverityWarning
		case "note", "info":
			d.Severity = SeverityInfo
		default:
			d.Severity = SeverityError
		}
		if loc := diagLocRe.FindStringSubmatch(line); loc != nil {
			lineNo, _ := strconv.Atoi(loc[1])
			colNo, _ := strconv.Atoi(loc[2])
			if lineNo > preludeLines {
				d.Line = lineNo - preludeLines
				d.Column = colNo
			}
		}
		diags = append(diags, d)
	}
	if len(diags) == 0 {
		diags = append(diags, Diagnostic{Severity: SeverityError, Message: strings.TrimSpace(output), File: file})
	}
	return diags
}
