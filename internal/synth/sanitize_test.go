package synth

import (
	"strings"
	"testing"
)

func TestSanitizeExtractsFencedBlock(t *testing.T) {
	raw := "Here is your scene:\n```python\nfrom manim import *\n\nclass Demo(Scene):\n    def construct(self):\n        self.wait()\n```\nLet me know if you need changes."
	got := Sanitize(raw)
	want := "from manim import *\n\nclass Demo(Scene):\n    def construct(self):\n        self.wait()"
	if got != want {
		t.Fatalf("unexpected sanitized code:\n%s", got)
	}
}

func TestSanitizePrependsPreamble(t *testing.T) {
	got := Sanitize("```\nclass Demo(Scene):\n    pass\n```")
	if !strings.HasPrefix(got, Preamble+"\n\n") {
		t.Fatalf("expected preamble, got:\n%s", got)
	}
	if strings.Contains(got, "```") {
		t.Fatalf("fence left in output:\n%s", got)
	}
}

func TestSanitizeKeepsInnermostBlock(t *testing.T) {
	raw := "```markdown\nSome notes\n```python\nclass Inner(Scene):\n    pass\n```\n```"
	got := Sanitize(raw)
	if got != Preamble+"\n\nclass Inner(Scene):\n    pass" {
		t.Fatalf("unexpected innermost extraction:\n%s", got)
	}
}

func TestSanitizeDropsUnterminatedFence(t *testing.T) {
	got := Sanitize("```python\nclass Demo(Scene):\n    pass")
	if strings.Contains(got, "```") {
		t.Fatalf("fence left in output:\n%s", got)
	}
	if _, ok := SceneClassName(got); !ok {
		t.Fatalf("expected class to survive:\n%s", got)
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"```python\nclass A(Scene):\n    pass\n```",
		"class B(MovingCameraScene):\n    pass",
		"   ",
		"```markdown\n```python\nx = 1\n```\n```",
		"from manim import *\nclass C(Scene): pass\n",
		"prose only, no code",
	}
	for _, input := range inputs {
		once := Sanitize(input)
		twice := Sanitize(once)
		if once != twice {
			t.Fatalf("Sanitize not idempotent for %q:\nonce:  %q\ntwice: %q", input, once, twice)
		}
		if !strings.Contains(once, Preamble) || strings.Contains(once, "```") {
			t.Fatalf("envelope violated for %q: %q", input, once)
		}
	}
}

func TestSceneClassName(t *testing.T) {
	cases := []struct {
		code string
		want string
		ok   bool
	}{
		{"class Demo(Scene):\n    pass", "Demo", true},
		{"class Helper:\n    pass\nclass Zoom(MovingCameraScene):\n    pass", "Zoom", true},
		{"class Spaced ( ThreeDScene ) :\n    pass", "Spaced", true},
		{"class Helper(object):\n    pass", "", false},
		{"def construct(self): pass", "", false},
	}
	for _, tc := range cases {
		got, ok := SceneClassName(tc.code)
		if got != tc.want || ok != tc.ok {
			t.Errorf("SceneClassName(%q) = %q, %v; want %q, %v", tc.code, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFallbackSceneIsRenderable(t *testing.T) {
	code := FallbackScene(`The "chain rule" \ composes derivatives`)
	if Sanitize(code) != strings.TrimSpace(code) {
		t.Fatal("fallback scene should already be sanitized")
	}
	name, ok := SceneClassName(code)
	if !ok || name != "TheChainRuleComposesDeriScene" {
		t.Fatalf("unexpected class name %q", name)
	}
	if strings.Contains(code, `\ `) {
		t.Fatalf("backslash leaked into program:\n%s", code)
	}
	if got := fallbackClassName("42 things"); got != "ConceptScene" {
		t.Fatalf("expected ConceptScene for digit-leading name, got %q", got)
	}
}
