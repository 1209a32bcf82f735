// Package planner splits a concept into ordered scene descriptions.
//
// The oracle is asked for a JSON array of strings. Any failure (transport,
// malformed reply, empty array) falls back to splitting the description on
// sentence boundaries, so Plan always yields at least one scene.
package planner

import (
	"bytes"
	"context"
	_ "embed"
	"log/slog"
	"strings"
	"text/template"
	"unicode/utf8"

	"clarifai/internal/jobs"
	"clarifai/internal/logging"
	"clarifai/internal/services/llm"
)

// minFragmentRunes is the shortest sentence kept by the fallback splitter.
const minFragmentRunes = 10

//go:embed prompts/split_scenes.txt
var splitScenesPrompt string

var splitScenesTemplate = template.Must(template.New("split_scenes").Parse(splitScenesPrompt))

// TextOracle returns a free-text completion for a prompt.
type TextOracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Planner turns a concept into scenes.
type Planner struct {
	oracle TextOracle
	logger *slog.Logger
}

// New constructs a planner. A nil oracle always uses the fallback.
func New(oracle TextOracle, logger *slog.Logger) *Planner {
	return &Planner{oracle: oracle, logger: logging.NewComponentLogger(logger, "planner")}
}

// Plan returns the ordered scenes for a concept. It never returns an error;
// the boolean reports whether the oracle's plan was used.
func (p *Planner) Plan(ctx context.Context, conceptName, conceptDescription string) ([]jobs.Scene, bool) {
	logger := logging.WithContext(ctx, p.logger)

	descriptions, err := p.askOracle(ctx, conceptName, conceptDescription)
	if err != nil {
		logging.WarnWithContext(logger, "scene planning fell back to sentence splitting", "plan_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check oracle connectivity and model output"),
			logging.String(logging.FieldImpact, "scenes follow the description's sentences"),
		)
		return toScenes(Fallback(conceptDescription)), false
	}
	logger.Debug("scene plan received", logging.Int("scene_count", len(descriptions)))
	return toScenes(descriptions), true
}

func (p *Planner) askOracle(ctx context.Context, conceptName, conceptDescription string) ([]string, error) {
	if p.oracle == nil {
		return nil, errNoOracle
	}
	var prompt bytes.Buffer
	if err := splitScenesTemplate.Execute(&prompt, struct {
		ConceptName        string
		ConceptDescription string
	}{strings.TrimSpace(conceptName), strings.TrimSpace(conceptDescription)}); err != nil {
		return nil, err
	}
	reply, err := p.oracle.Complete(ctx, prompt.String())
	if err != nil {
		return nil, err
	}
	var raw []string
	if err := llm.DecodeLLMJSON(reply, &raw); err != nil {
		return nil, err
	}
	descriptions := make([]string, 0, len(raw))
	for _, entry := range raw {
		if entry = strings.TrimSpace(entry); entry != "" {
			descriptions = append(descriptions, entry)
		}
	}
	if len(descriptions) == 0 {
		return nil, errEmptyPlan
	}
	return descriptions, nil
}

// Fallback splits description on "." and keeps trimmed fragments of at least
// ten characters. With no such fragment it returns the description verbatim.
func Fallback(description string) []string {
	var out []string
	for _, fragment := range strings.Split(description, ".") {
		fragment = strings.TrimSpace(fragment)
		if utf8.RuneCountInString(fragment) >= minFragmentRunes {
			out = append(out, fragment)
		}
	}
	if len(out) == 0 {
		return []string{description}
	}
	return out
}

func toScenes(descriptions []string) []jobs.Scene {
	scenes := make([]jobs.Scene, len(descriptions))
	for i, description := range descriptions {
		scenes[i] = jobs.Scene{Index: i, Description: description}
	}
	return scenes
}
