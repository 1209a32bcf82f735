package synth

import (
	"regexp"
	"strings"
)

// Preamble is the import every renderable program must carry.
const Preamble = "from manim import *"

const fence = "```"

var sceneClassPattern = regexp.MustCompile(`class\s+(\w+)\s*\([^)]*Scene[^)]*\)\s*:`)

// Sanitize turns a raw oracle reply into plain program text: the innermost
// fenced block is kept, stray fence lines are dropped, and the Manim preamble
// is prepended when missing. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(raw string) string {
	code := raw
	if block, ok := innermostFencedBlock(raw); ok {
		code = block
	}
	code = strings.TrimSpace(dropFenceLines(code))
	if !strings.Contains(code, Preamble) {
		if code == "" {
			return Preamble
		}
		code = Preamble + "\n\n" + code
	}
	return code
}

// SceneClassName returns the first class extending a Scene type.
func SceneClassName(code string) (string, bool) {
	match := sceneClassPattern.FindStringSubmatch(code)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// innermostFencedBlock returns the body of the first fenced block that
// contains no other fence. A fence line carrying an info string (```python)
// always opens; a bare fence closes the most recent open one.
func innermostFencedBlock(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	var open []int
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, fence) {
			continue
		}
		info := strings.TrimSpace(strings.TrimLeft(trimmed, "`"))
		if info != "" || len(open) == 0 {
			open = append(open, i)
			continue
		}
		start := open[len(open)-1]
		return strings.Join(lines[start+1:i], "\n"), true
	}
	return "", false
}

func dropFenceLines(text string) string {
	if !strings.Contains(text, fence) {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), fence) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
