package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"clarifai/internal/config"
	"clarifai/internal/fileutil"
	"clarifai/internal/logging"
	"clarifai/internal/media/ffprobe"
	"clarifai/internal/services"
)

// ErrNoClips is returned when Assemble is called without clips.
var ErrNoClips = errors.New("no clips to assemble")

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

type probeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Assembler concatenates clips with ffmpeg.
type Assembler struct {
	ffmpeg  string
	ffprobe string
	verify  bool
	logger  *slog.Logger
	run     commandRunner
	probe   probeFunc
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithCommandRunner allows injecting a custom command runner for tests.
func WithCommandRunner(r commandRunner) Option {
	return func(a *Assembler) {
		if r != nil {
			a.run = r
		}
	}
}

// WithProbe replaces the ffprobe inspection used when verification is on.
func WithProbe(p probeFunc) Option {
	return func(a *Assembler) {
		if p != nil {
			a.probe = p
		}
	}
}

// New constructs an Assembler from the assembly settings in cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Assembler {
	a := &Assembler{
		ffmpeg:  cfg.Assembly.FFmpegBinary,
		ffprobe: cfg.Assembly.FFprobeBinary,
		verify:  cfg.Assembly.VerifyOutput,
		logger:  logging.NewComponentLogger(logger, "assemble"),
		run:     defaultCommandRunner,
		probe:   ffprobe.Inspect,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble writes clips, in the given order, to finalPath and returns it.
func (a *Assembler) Assemble(ctx context.Context, clips []string, finalPath string) (string, error) {
	if len(clips) == 0 {
		return "", ErrNoClips
	}
	if strings.TrimSpace(finalPath) == "" {
		return "", services.Wrap(services.ErrValidation, "assemble", "prepare", "final path is required", nil)
	}
	for _, clip := range clips {
		if !fileutil.NonEmptyFile(clip) {
			return "", services.Wrap(services.ErrValidation, "assemble", "prepare", fmt.Sprintf("clip %q is missing or empty", clip), nil)
		}
	}
	logger := logging.WithContext(ctx, a.logger)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "assemble", "prepare", "create output directory", err)
	}

	if len(clips) == 1 {
		if err := fileutil.CopyFileVerified(clips[0], finalPath); err != nil {
			return "", services.Wrap(services.ErrExternalTool, "assemble", "copy", "copy single clip", err)
		}
		logger.Info("single clip copied", logging.String("output", finalPath))
	} else if err := a.concat(ctx, logger, clips, finalPath); err != nil {
		return "", err
	}

	if err := a.verifyOutput(ctx, finalPath); err != nil {
		return "", err
	}
	return finalPath, nil
}

func (a *Assembler) concat(ctx context.Context, logger *slog.Logger, clips []string, finalPath string) error {
	manifest, err := writeManifest(filepath.Dir(finalPath), clips)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "assemble", "manifest", "write concat manifest", err)
	}
	defer func() {
		if removeErr := os.Remove(manifest); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.Debug("manifest cleanup failed", logging.String("path", manifest), logging.Error(removeErr))
		}
	}()

	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", manifest, "-c", "copy", finalPath}
	started := time.Now()
	output, runErr := a.run(ctx, a.ffmpeg, args...)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if runErr != nil {
		_ = os.Remove(finalPath)
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = runErr.Error()
		}
		return services.Wrap(services.ErrExternalTool, "assemble", "concat", "ffmpeg failed: "+detail, runErr)
	}
	if !fileutil.NonEmptyFile(finalPath) {
		return services.Wrap(services.ErrExternalTool, "assemble", "concat", "ffmpeg produced no output", nil)
	}
	logger.Info("clips concatenated",
		logging.Int("clip_count", len(clips)),
		logging.String("output", finalPath),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func (a *Assembler) verifyOutput(ctx context.Context, path string) error {
	if !a.verify {
		return nil
	}
	result, err := a.probe(ctx, a.ffprobe, path)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "assemble", "verify", "inspect final video", err)
	}
	if err := result.CheckPlayable(); err != nil {
		return services.Wrap(services.ErrValidation, "assemble", "verify", "final video is not playable", err)
	}
	return nil
}

// writeManifest writes a concat demuxer list next to the final video.
func writeManifest(dir string, clips []string) (string, error) {
	file, err := os.CreateTemp(dir, ".concat-*.txt")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			_ = file.Close()
			_ = os.Remove(file.Name())
			return "", err
		}
		b.WriteString("file '")
		b.WriteString(escapeManifestPath(abs))
		b.WriteString("'\n")
	}
	if _, err := file.WriteString(b.String()); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}

// escapeManifestPath quotes single quotes for the concat demuxer.
func escapeManifestPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.WaitDelay = 5 * time.Second
	return cmd.CombinedOutput()
}
