package synth

import (
	"fmt"
	"strings"
	"unicode"
)

// FallbackScene returns a self-contained title-card program that shows the
// scene description over a simple plot.
func FallbackScene(description string) string {
	text := strings.Join(strings.Fields(description), " ")
	text = strings.ReplaceAll(text, `\`, "")
	text = strings.ReplaceAll(text, `"`, "'")
	if runes := []rune(text); len(runes) > 80 {
		text = string(runes[:80]) + "..."
	}
	return fmt.Sprintf(`%s

class %s(Scene):
    def construct(self):
        caption = Text("%s", font_size=30).to_edge(UP)
        self.play(Write(caption))
        axes = Axes(x_range=[-3, 3, 1], y_range=[-2, 2, 1], x_length=6, y_length=4)
        curve = axes.plot(lambda x: 0.5 * x**2 - 1, color=BLUE)
        self.play(Create(axes), Create(curve))
        self.wait(2)
        self.play(FadeOut(caption), FadeOut(axes), FadeOut(curve))
`, Preamble, fallbackClassName(description), text)
}

func fallbackClassName(description string) string {
	var b strings.Builder
	for _, word := range strings.Fields(description) {
		first := true
		for _, r := range word {
			if r > unicode.MaxASCII || (!unicode.IsLetter(r) && !unicode.IsDigit(r)) {
				continue
			}
			if first {
				r = unicode.ToUpper(r)
				first = false
			}
			b.WriteRune(r)
		}
		if b.Len() >= 24 {
			break
		}
	}
	name := b.String()
	if len(name) > 24 {
		name = name[:24]
	}
	if name == "" || unicode.IsDigit(rune(name[0])) {
		return "ConceptScene"
	}
	return name + "Scene"
}
