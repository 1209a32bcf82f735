package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"clarifai/internal/config"
	"clarifai/internal/fileutil"
	"clarifai/internal/logging"
	"clarifai/internal/services"
	"clarifai/internal/synth"
)

// commandRunner executes name with args and returns combined stdout+stderr.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Executor renders scene programs with the manim CLI.
type Executor struct {
	binary  string
	quality string
	workDir string
	timeout time.Duration
	logger  *slog.Logger
	run     commandRunner
}

// Option customizes an Executor.
type Option func(*Executor)

// WithCommandRunner allows injecting a custom command runner for tests.
func WithCommandRunner(r commandRunner) Option {
	return func(e *Executor) {
		if r != nil {
			e.run = r
		}
	}
}

// WithTimeout overrides the per-attempt wall-clock budget.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New constructs an Executor from the render and path settings in cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		binary:  cfg.Render.ManimBinary,
		quality: cfg.Render.Quality,
		workDir: cfg.Paths.WorkDir,
		timeout: cfg.RenderTimeout(),
		logger:  logging.NewComponentLogger(logger, "render"),
		run:     defaultCommandRunner,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithQuality returns a copy of e rendering at quality. Unknown or empty
// values keep the current setting.
func (e *Executor) WithQuality(quality string) *Executor {
	clone := *e
	if _, ok := qualityFlags[strings.ToLower(strings.TrimSpace(quality))]; ok {
		clone.quality = strings.ToLower(strings.TrimSpace(quality))
	}
	return &clone
}

var qualityFlags = map[string]string{
	config.QualityLow:    "-ql",
	config.QualityMedium: "-qm",
	config.QualityHigh:   "-qh",
}

// QualityFlag returns the manim CLI flag for a quality preset.
func QualityFlag(quality string) string {
	if flag, ok := qualityFlags[strings.ToLower(strings.TrimSpace(quality))]; ok {
		return flag
	}
	return qualityFlags[config.QualityMedium]
}

// Render renders code into outputPath. Parent context cancellation is
// returned as the context error rather than a render failure.
func (e *Executor) Render(ctx context.Context, code, outputPath string) error {
	logger := logging.WithContext(ctx, e.logger)

	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "render", "prepare", "create work directory", err)
	}
	source, err := os.CreateTemp(e.workDir, "scene-*.py")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "render", "prepare", "create scene file", err)
	}
	sourcePath := source.Name()
	defer func() {
		if removeErr := os.Remove(sourcePath); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			logger.Debug("scene file cleanup failed", logging.String("path", sourcePath), logging.Error(removeErr))
		}
	}()
	if _, err := source.WriteString(code); err != nil {
		_ = source.Close()
		return services.Wrap(services.ErrConfiguration, "render", "prepare", "write scene file", err)
	}
	if err := source.Close(); err != nil {
		return services.Wrap(services.ErrConfiguration, "render", "prepare", "close scene file", err)
	}

	sceneName, ok := synth.SceneClassName(code)
	if !ok {
		return structuralError()
	}

	mediaDir, err := os.MkdirTemp(e.workDir, "media-*")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "render", "prepare", "create media directory", err)
	}
	defer os.RemoveAll(mediaDir)

	baseName := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	args := []string{
		sourcePath,
		sceneName,
		"-o", baseName,
		"--media_dir", mediaDir,
		"-v", "WARNING",
		QualityFlag(e.quality),
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	output, runErr := e.run(runCtx, e.binary, args...)
	elapsed := time.Since(started)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		logger.Info("render attempt timed out", logging.String("scene", sceneName), logging.Duration("limit", e.timeout))
		return timeoutError(e.timeout)
	}
	if runErr != nil {
		text := strings.TrimSpace(string(output))
		if text == "" {
			text = fmt.Sprintf("%s: %v", e.binary, runErr)
		}
		logger.Info("render attempt failed",
			logging.String("scene", sceneName),
			logging.Duration("elapsed", elapsed),
			logging.Error(runErr),
		)
		return &Error{Kind: FailureEngine, Output: text}
	}

	produced, found := findRenderedClip(mediaDir, baseName+".mp4")
	if !found || !fileutil.NonEmptyFile(produced) {
		return missingOutputError(sceneName)
	}
	if err := fileutil.MoveFile(produced, outputPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "collect", "move rendered clip", err)
	}
	logger.Debug("render attempt succeeded",
		logging.String("scene", sceneName),
		logging.String("output", outputPath),
		logging.Duration("elapsed", elapsed),
	)
	return nil
}

// findRenderedClip walks manim's media tree for the final clip, skipping
// partial movie segments.
func findRenderedClip(mediaDir, name string) (string, bool) {
	var found string
	_ = filepath.WalkDir(mediaDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "partial_movie_files" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == name {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.WaitDelay = 5 * time.Second
	return cmd.CombinedOutput()
}
