package tap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok 1 should be truthy", Result(true, 1, "should be truthy"))
	assert.Equal(t, "not ok 12 should be equal", Result(false, 12, "should be equal"))
}

func TestComment(t *testing.T) {
	assert.Equal(t, "# t1", Comment("t1"))
	assert.Equal(t, "# one line", Comment("one\nline"))
	assert.Equal(t, "# colored", Comment("\x1b[31mcolored\x1b[0m"))
}

func TestPlan(t *testing.T) {
	assert.Equal(t, "1..0", Plan(0))
	assert.Equal(t, "1..42", Plan(42))
}

func TestSummary(t *testing.T) {
	t.Run("all passing", func(t *testing.T) {
		lines := Summary(2, 2, 0)
		assert.Equal(t, []string{
			"",
			"1..2",
			"# tests 2",
			"# pass  2",
			"",
			"# ok",
		}, lines)
	})

	t.Run("with failures", func(t *testing.T) {
		lines := Summary(3, 2, 1)
		assert.Equal(t, []string{
			"",
			"1..3",
			"# tests 3",
			"# pass  2",
			"# fail  1",
		}, lines)
	})
}

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"int", 1, "1"},
		{"string", "a", `"a"`},
		{"bool", true, "true"},
		{"nil", nil, "null"},
		{"undefined marker", Undefined, "undefined"},
		{"slice", []int{1, 2}, "[\n  1,\n  2\n]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeValue(tt.value))
		})
	}
}

func TestEncodeValueNestedUndefined(t *testing.T) {
	got := EncodeValue(map[string]any{"x": Undefined})
	assert.Equal(t, "{\n  \"x\": undefined\n}", got)
}

func TestDiagnostic(t *testing.T) {
	lines := Diagnostic("equal", "2", "1", "main.check (/app/main.go:7)",
		[]string{"Error: should be equal", "goroutine 1 [running]:"})

	assert.Equal(t, []string{
		"  ---",
		"    operator: equal",
		"    expected: 2",
		"    actual:   1",
		"    at:       main.check (/app/main.go:7)",
		"    stack:    |-",
		"      Error: should be equal",
		"      goroutine 1 [running]:",
		"  ...",
	}, lines)
}

func TestDiagnosticOmitsUnresolvedLocation(t *testing.T) {
	lines := Diagnostic("ok", "true", "false", "", []string{"Error: x"})
	for _, line := range lines {
		assert.NotContains(t, line, "at:")
	}
}

func TestDiagnosticLongValuesUseBlockStyle(t *testing.T) {
	expected := EncodeValue(map[string]string{"key": strings.Repeat("v", 60)})
	lines := Diagnostic("deepEqual", expected, expected, "", []string{"Error: x"})

	assert.Equal(t, []string{
		"  ---",
		"    operator: deepEqual",
		"    expected: |-",
		"      {",
		`        "key": "` + strings.Repeat("v", 60) + `"`,
		"      }",
		"    actual:   |-",
		"      {",
		`        "key": "` + strings.Repeat("v", 60) + `"`,
		"      }",
		"    stack:    |-",
		"      Error: x",
		"  ...",
	}, lines)
}

func TestDiagnosticElementsAreSingleLines(t *testing.T) {
	expected := EncodeValue(map[string]any{"key": strings.Repeat("v", 60), "n": []int{1, 2, 3}})
	lines := Diagnostic("deepEqual", expected, expected, "main.check (/app/main.go:7)",
		[]string{"Error: should be equivalent", "goroutine 1 [running]:"})

	for i, line := range lines {
		assert.NotContains(t, line, "\n", "element %d spans lines", i)
	}
}
