// Package synth asks the oracle for Manim scene programs and repairs them
// from renderer diagnostics.
//
// Both operations pipe the reply through Sanitize. Neither retries: the
// repair loop owns the attempt budget.
package synth

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"clarifai/internal/logging"
	"clarifai/internal/services"
)

//go:embed prompts/generate_code.txt
var generatePrompt string

//go:embed prompts/correct_code.txt
var correctPrompt string

var (
	generateTemplate = template.Must(template.New("generate_code").Parse(generatePrompt))
	correctTemplate  = template.Must(template.New("correct_code").Parse(correctPrompt))
)

// TextOracle returns a free-text completion for a prompt.
type TextOracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Synthesizer produces sanitized scene programs.
type Synthesizer struct {
	oracle        TextOracle
	logger        *slog.Logger
	fallbackScene bool
}

// Option customizes a Synthesizer.
type Option func(*Synthesizer)

// WithFallbackScene makes Synthesize return a title-card program instead of
// an error when the oracle call fails.
func WithFallbackScene(enabled bool) Option {
	return func(s *Synthesizer) {
		s.fallbackScene = enabled
	}
}

// New constructs a Synthesizer.
func New(oracle TextOracle, logger *slog.Logger, opts ...Option) *Synthesizer {
	s := &Synthesizer{oracle: oracle, logger: logging.NewComponentLogger(logger, "synth")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize generates a program for one scene description.
func (s *Synthesizer) Synthesize(ctx context.Context, sceneDescription string) (string, error) {
	prompt, err := render(generateTemplate, struct{ Description string }{strings.TrimSpace(sceneDescription)})
	if err != nil {
		return "", err
	}
	code, err := s.complete(ctx, "synthesize", prompt)
	if err != nil && s.fallbackScene {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "using fallback title-card scene", "synth_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check oracle connectivity"),
			logging.String(logging.FieldImpact, "scene shows a title card instead of generated animation"),
		)
		return FallbackScene(sceneDescription), nil
	}
	return code, err
}

// Correct asks the oracle to fix previousCode given the renderer's output.
// renderError is passed through verbatim.
func (s *Synthesizer) Correct(ctx context.Context, previousCode, renderError string) (string, error) {
	prompt, err := render(correctTemplate, struct{ Code, Error string }{previousCode, renderError})
	if err != nil {
		return "", err
	}
	return s.complete(ctx, "correct", prompt)
}

func (s *Synthesizer) complete(ctx context.Context, operation, prompt string) (string, error) {
	if s.oracle == nil {
		return "", services.Wrap(services.ErrConfiguration, "synth", operation, "no oracle configured", nil)
	}
	reply, err := s.oracle.Complete(ctx, prompt)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "synth", operation, "oracle call failed", err)
	}
	code := Sanitize(reply)
	logging.WithContext(ctx, s.logger).Debug("scene code received",
		logging.String("operation", operation),
		logging.Int("code_bytes", len(code)),
	)
	return code, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
