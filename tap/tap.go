// Package tap renders TAP13 protocol lines.
//
// Everything here is line oriented: each function returns one text line (or
// an ordered slice of them) with no trailing newline, ready for a line sink.
package tap

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/acarl005/stripansi"
)

// Version is the mandatory TAP13 header line.
const Version = "TAP version 13"

// blockThreshold is the combined expected+actual length above which both
// values switch to YAML block-literal style in the diagnostic.
const blockThreshold = 65

// undefinedSentinel stands in for the missing-value marker during JSON
// serialization, which cannot otherwise represent it. It is substituted
// back to the bare token after encoding.
const undefinedSentinel = "__tapzero_undefined__"

type undefinedMarker struct{}

// Undefined is the explicit "missing value" marker. Serializing it through
// EncodeValue yields the literal token "undefined" instead of dropping it.
var Undefined undefinedMarker

func (undefinedMarker) MarshalJSON() ([]byte, error) {
	return json.Marshal(undefinedSentinel)
}

// Result renders one assertion outcome line: "ok 3 description".
func Result(pass bool, id int, description string) string {
	status := "ok"
	if !pass {
		status = "not ok"
	}
	return fmt.Sprintf("%s %d %s", status, id, Sanitize(description))
}

// Comment renders a TAP comment line.
func Comment(msg string) string {
	return "# " + Sanitize(msg)
}

// Plan renders the run plan line "1..N".
func Plan(total int) string {
	return fmt.Sprintf("1..%d", total)
}

// Summary renders the run trailer: a blank separator, the plan line and the
// count comments. A fully passing run ends with "# ok" instead of a fail
// count.
func Summary(total, pass, fail int) []string {
	lines := []string{
		"",
		Plan(total),
		fmt.Sprintf("# tests %d", total),
		fmt.Sprintf("# pass  %d", pass),
	}
	if fail > 0 {
		return append(lines, fmt.Sprintf("# fail  %d", fail))
	}
	return append(lines, "", "# ok")
}

// Diagnostic renders the YAML-ish failure block emitted under a "not ok"
// line. Every element of the returned slice is exactly one sink line: long
// expected/actual values and the stack become a block-literal header plus
// one indented element per value line. The at line is omitted when location
// is empty.
func Diagnostic(operator, expected, actual, location string, stack []string) []string {
	lines := []string{
		"  ---",
		"    operator: " + operator,
	}
	if len(expected)+len(actual) > blockThreshold {
		lines = appendBlock(lines, "    expected: |-", expected)
		lines = appendBlock(lines, "    actual:   |-", actual)
	} else {
		lines = append(lines,
			"    expected: "+expected,
			"    actual:   "+actual,
		)
	}
	if location != "" {
		lines = append(lines, "    at:       "+location)
	}
	lines = append(lines, "    stack:    |-")
	for _, s := range stack {
		lines = append(lines, "      "+s)
	}
	return append(lines, "  ...")
}

// EncodeValue serializes a value for the expected/actual diagnostic fields:
// JSON with 2-space indentation, with the missing-value marker rendered as
// the bare token "undefined" via sentinel substitution.
func EncodeValue(v any) string {
	if err, ok := v.(error); ok {
		v = err.Error()
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return strings.ReplaceAll(string(data), `"`+undefinedSentinel+`"`, "undefined")
}

// Sanitize makes arbitrary text safe for a single protocol line: ANSI
// escapes stripped, newlines collapsed to spaces.
func Sanitize(s string) string {
	s = stripansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

func appendBlock(lines []string, header, value string) []string {
	lines = append(lines, header)
	for _, l := range strings.Split(value, "\n") {
		lines = append(lines, "      "+l)
	}
	return lines
}
