// Package callsite resolves the user-code origin of a failing assertion by
// parsing a captured stack trace in the Go runtime's native text format.
//
// Resolution is best effort: a stack that contains no recognizable external
// frame yields an empty location, never an error.
package callsite

import (
	"fmt"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"strings"
	"sync"
)

// locationPattern matches the tab-indented half of a runtime frame, e.g.
// "\t/abs/path/file.go:42 +0x1b2". Only absolute paths (unix or drive
// letter) are recognized.
var locationPattern = regexp.MustCompile(`^\t((?:/|[A-Za-z]:\\).*?\.go):(\d+)(?: \+0x[0-9a-f]+)?$`)

// runtimePrefixes name frames that never belong to user code.
var runtimePrefixes = []string{
	"runtime.",
	"runtime/debug.",
	"testing.",
	"panic",
	"created by ",
}

// Frame is one parsed stack frame.
type Frame struct {
	Func string
	File string
	Line string
}

// String renders the frame as "<func> (<file>:<line>)".
func (f Frame) String() string {
	return fmt.Sprintf("%s (%s:%s)", f.Func, f.File, f.Line)
}

// Resolver locates the first stack frame that does not belong to this
// library. The library's own root directory is learned lazily from the
// resolver's own stack and cached for the life of the resolver.
type Resolver struct {
	once     sync.Once
	ownRoot  string
	prefixes []string
}

// New returns a Resolver. When skipPrefixes are given they replace the
// self-detected library root as the set of file-path prefixes to exclude.
func New(skipPrefixes ...string) *Resolver {
	return &Resolver{prefixes: skipPrefixes}
}

var defaultResolver = New()

// Resolve parses stack with the default resolver.
func Resolve(stack string) string {
	return defaultResolver.Resolve(stack)
}

// Resolve walks the frames of the captured stack top to bottom and returns
// the rendered description of the first frame outside the library, or ""
// when every frame is internal or unparseable.
func (r *Resolver) Resolve(stack string) string {
	skip := r.prefixes
	if len(skip) == 0 {
		r.once.Do(r.detectOwnRoot)
		if r.ownRoot == "" {
			return ""
		}
		skip = []string{r.ownRoot}
	}

	for _, f := range ParseFrames(stack) {
		if isRuntimeFrame(f.Func) {
			continue
		}
		if hasAnyPrefix(f.File, skip) {
			continue
		}
		return f.String()
	}
	return ""
}

// ParseFrames extracts the recognizable frames from a stack trace. A frame
// is a function line followed by a tab-indented absolute file location;
// anything else (goroutine headers, relative paths) is ignored.
func ParseFrames(stack string) []Frame {
	lines := strings.Split(stack, "\n")
	var frames []Frame
	for i := 0; i+1 < len(lines); i++ {
		m := locationPattern.FindStringSubmatch(lines[i+1])
		if m == nil {
			continue
		}
		fn := lines[i]
		if idx := strings.LastIndex(fn, "("); idx > 0 {
			fn = fn[:idx]
		}
		fn = strings.TrimSpace(fn)
		if fn == "" {
			fn = "<anonymous>"
		}
		frames = append(frames, Frame{Func: fn, File: m[1], Line: m[2]})
		i++
	}
	return frames
}

// detectOwnRoot parses the resolver's own stack for the first frame that
// belongs to this package and records the library root directory (one level
// above the callsite package directory).
func (r *Resolver) detectOwnRoot() {
	for _, f := range ParseFrames(string(debug.Stack())) {
		if isRuntimeFrame(f.Func) {
			continue
		}
		dir := filepath.Dir(f.File)
		r.ownRoot = filepath.Dir(dir) + string(filepath.Separator)
		return
	}
}

func isRuntimeFrame(fn string) bool {
	return hasAnyPrefix(fn, runtimePrefixes)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
