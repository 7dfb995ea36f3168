// Package testinfo implements the hierarchical diagnostic log attached to
// every test configuration.
//
// A TestInfo holds an ordered list of messages and child subtests. Callers
// only ever need to know whether anything failed; message content is for
// humans and for the report files.
package testinfo

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Level is the severity of a diagnostic message.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelFailure
)

// String returns the label used in printed reports.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "Info"
	case LevelWarning:
		return "Warning"
	case LevelFailure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// ParseLevel accepts any casing of Info, Warning or Failure.
func ParseLevel(name string) (Level, error) {
	for _, l := range []Level{LevelInfo, LevelWarning, LevelFailure} {
		if strings.EqualFold(name, l.String()) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown level %q (expected Info, Warning or Failure)", name)
}

// Unlimited disables the depth limit in PrintMsg.
const Unlimited = -1

// Message is a flattened view of one logged line, used for structured output.
type Message struct {
	Path    string `json:"path" yaml:"path"`
	Level   string `json:"level" yaml:"level"`
	Message string `json:"message" yaml:"message"`
}

type entry struct {
	level   Level
	msg     string
	subtest *TestInfo
}

// TestInfo is a node in the diagnostic log tree.
type TestInfo struct {
	mu      sync.Mutex
	name    string
	parent  *TestInfo
	entries []entry
}

// New creates a root diagnostic log.
func New(name string) *TestInfo {
	return &TestInfo{name: name}
}

// Name returns the name this log was created with.
func (t *TestInfo) Name() string {
	return t.name
}

// CreateSubtest appends a child log and returns it.
func (t *TestInfo) CreateSubtest(name string) *TestInfo {
	child := &TestInfo{name: name, parent: t}
	t.mu.Lock()
	t.entries = append(t.entries, entry{subtest: child})
	t.mu.Unlock()
	return child
}

// Info records an informational message.
func (t *TestInfo) Info(format string, args ...interface{}) {
	t.add(LevelInfo, format, args...)
}

// Warning records a message that does not fail the test.
func (t *TestInfo) Warning(format string, args ...interface{}) {
	t.add(LevelWarning, format, args...)
}

// Failure records a message that fails this log and all of its ancestors.
func (t *TestInfo) Failure(format string, args ...interface{}) {
	t.add(LevelFailure, format, args...)
}

func (t *TestInfo) add(level Level, format string, args ...interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	t.mu.Lock()
	t.entries = append(t.entries, entry{level: level, msg: msg})
	t.mu.Unlock()
}

// Failed reports whether a failure was recorded here or in any subtest.
func (t *TestInfo) Failed() bool {
	return t.count(LevelFailure) > 0
}

// Warnings returns the number of warnings recorded in the tree.
func (t *TestInfo) Warnings() int {
	return t.count(LevelWarning)
}

// Failures returns the number of failures recorded in the tree.
func (t *TestInfo) Failures() int {
	return t.count(LevelFailure)
}

func (t *TestInfo) count(level Level) int {
	n := 0
	for _, e := range t.snapshot() {
		if e.subtest != nil {
			n += e.subtest.count(level)
			continue
		}
		if e.level == level {
			n++
		}
	}
	return n
}

func (t *TestInfo) snapshot() []entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *TestInfo) hasAtLeast(level Level) bool {
	for _, e := range t.snapshot() {
		if e.subtest != nil {
			if e.subtest.hasAtLeast(level) {
				return true
			}
			continue
		}
		if e.level >= level {
			return true
		}
	}
	return false
}

// PrintMsg writes every message at or above level. Subtests deeper than
// maxDepth are not expanded; a failed subtest that is cut off still produces
// a one-line failure so that failures are never hidden entirely.
func (t *TestInfo) PrintMsg(w io.Writer, level Level, maxDepth int) error {
	return t.print(w, level, maxDepth, 0)
}

func (t *TestInfo) print(w io.Writer, level Level, maxDepth, depth int) error {
	indent := strings.Repeat("  ", depth)
	if _, err := fmt.Fprintf(w, "%s%s\n", indent, t.name); err != nil {
		return err
	}
	for _, e := range t.snapshot() {
		if e.subtest == nil {
			if e.level < level {
				continue
			}
			if _, err := fmt.Fprintf(w, "%s  %s: %s\n", indent, e.level, e.msg); err != nil {
				return err
			}
			continue
		}
		if !e.subtest.hasAtLeast(level) {
			continue
		}
		if maxDepth != Unlimited && depth >= maxDepth {
			if e.subtest.Failed() {
				if _, err := fmt.Fprintf(w, "%s  %s: subtest %s failed\n", indent, LevelFailure, e.subtest.name); err != nil {
					return err
				}
			}
			continue
		}
		if err := e.subtest.print(w, level, maxDepth, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Messages flattens the tree into path-qualified messages at or above level.
func (t *TestInfo) Messages(level Level) []Message {
	var out []Message
	t.collect(t.name, level, &out)
	return out
}

func (t *TestInfo) collect(path string, level Level, out *[]Message) {
	for _, e := range t.snapshot() {
		if e.subtest != nil {
			e.subtest.collect(path+"/"+e.subtest.name, level, out)
			continue
		}
		if e.level >= level {
			*out = append(*out, Message{Path: path, Level: e.level.String(), Message: e.msg})
		}
	}
}
