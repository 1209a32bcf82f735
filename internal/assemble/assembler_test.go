package assemble

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clarifai/internal/config"
	"clarifai/internal/media/ffprobe"
	"clarifai/internal/services"
)

func newTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Assembly.FFmpegBinary = "ffmpeg"
	cfg.Assembly.FFprobeBinary = "ffprobe"
	return &cfg
}

func writeClip(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	return path
}

// recordingRunner captures the manifest and writes the joined clip contents
// to the output argument.
type recordingRunner struct {
	calls    int
	args     []string
	manifest string
	fail     bool
}

func (r *recordingRunner) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	r.calls++
	r.args = args
	manifestPath := args[6]
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}
	r.manifest = string(data)
	if r.fail {
		return []byte("Invalid data found when processing input"), errors.New("exit status 1")
	}
	var joined bytes.Buffer
	for _, line := range strings.Split(strings.TrimSpace(r.manifest), "\n") {
		path := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
		path = strings.ReplaceAll(path, `'\''`, "'")
		clip, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		joined.Write(clip)
	}
	return nil, os.WriteFile(args[len(args)-1], joined.Bytes(), 0o644)
}

func TestAssembleNoClipsWritesNothing(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "out", "final.mp4")
	runner := &recordingRunner{}
	a := New(newTestConfig(), nil, WithCommandRunner(runner.run))

	path, err := a.Assemble(context.Background(), nil, final)
	if !errors.Is(err, ErrNoClips) {
		t.Fatalf("expected ErrNoClips, got %v", err)
	}
	if path != "" || runner.calls != 0 {
		t.Fatalf("expected no work, got path %q and %d calls", path, runner.calls)
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Fatalf("output directory should not exist, stat err %v", err)
	}
}

func TestAssembleSingleClipIsIdentity(t *testing.T) {
	dir := t.TempDir()
	clip := writeClip(t, dir, "scene_1.mp4", "only-clip-bytes")
	final := filepath.Join(dir, "final", "video.mp4")
	runner := &recordingRunner{}
	a := New(newTestConfig(), nil, WithCommandRunner(runner.run))

	path, err := a.Assemble(context.Background(), []string{clip}, final)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if path != final {
		t.Fatalf("expected %q, got %q", final, path)
	}
	got, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("read final: %v", err)
	}
	if string(got) != "only-clip-bytes" {
		t.Fatalf("single clip must be copied verbatim, got %q", got)
	}
	if runner.calls != 0 {
		t.Fatal("ffmpeg must not run for a single clip")
	}
}

func TestAssembleConcatPreservesOrderAndRemovesManifest(t *testing.T) {
	dir := t.TempDir()
	clips := []string{
		writeClip(t, dir, "scene_2.mp4", "B"),
		writeClip(t, dir, "scene_1.mp4", "A"),
		writeClip(t, dir, "it's.mp4", "C"),
	}
	final := filepath.Join(dir, "final.mp4")
	runner := &recordingRunner{}
	a := New(newTestConfig(), nil, WithCommandRunner(runner.run))

	if _, err := a.Assemble(context.Background(), clips, final); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	got, _ := os.ReadFile(final)
	if string(got) != "BAC" {
		t.Fatalf("clips reordered: %q", got)
	}

	want := []string{"-y", "-f", "concat", "-safe", "0", "-i"}
	for i, arg := range want {
		if runner.args[i] != arg {
			t.Fatalf("arg %d: got %q want %q (%v)", i, runner.args[i], arg, runner.args)
		}
	}
	if tail := runner.args[7:]; strings.Join(tail, " ") != "-c copy "+final {
		t.Fatalf("unexpected trailing args %v", tail)
	}
	if !strings.Contains(runner.manifest, `it'\''s.mp4'`) {
		t.Fatalf("quote not escaped in manifest:\n%s", runner.manifest)
	}
	if _, err := os.Stat(runner.args[6]); !os.IsNotExist(err) {
		t.Fatalf("manifest should be removed, stat err %v", err)
	}
}

func TestAssembleFailureRemovesManifest(t *testing.T) {
	dir := t.TempDir()
	clips := []string{writeClip(t, dir, "a.mp4", "A"), writeClip(t, dir, "b.mp4", "B")}
	runner := &recordingRunner{fail: true}
	a := New(newTestConfig(), nil, WithCommandRunner(runner.run))

	_, err := a.Assemble(context.Background(), clips, filepath.Join(dir, "final.mp4"))
	if err == nil {
		t.Fatal("expected ffmpeg failure")
	}
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("expected external tool error carrying ffmpeg output, got %v", err)
	}
	if _, statErr := os.Stat(runner.args[6]); !os.IsNotExist(statErr) {
		t.Fatal("manifest should be removed after failure")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "final.mp4")); !os.IsNotExist(statErr) {
		t.Fatal("no final video should remain after failure")
	}
}

func TestAssembleMissingOutputFails(t *testing.T) {
	dir := t.TempDir()
	clips := []string{writeClip(t, dir, "a.mp4", "A"), writeClip(t, dir, "b.mp4", "B")}
	silent := func(context.Context, string, ...string) ([]byte, error) { return nil, nil }
	a := New(newTestConfig(), nil, WithCommandRunner(silent))

	if _, err := a.Assemble(context.Background(), clips, filepath.Join(dir, "final.mp4")); err == nil {
		t.Fatal("expected failure when ffmpeg exits cleanly without output")
	}
}

func TestAssembleRejectsMissingClip(t *testing.T) {
	dir := t.TempDir()
	a := New(newTestConfig(), nil)
	_, err := a.Assemble(context.Background(), []string{filepath.Join(dir, "nope.mp4")}, filepath.Join(dir, "final.mp4"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAssembleVerifiesOutput(t *testing.T) {
	dir := t.TempDir()
	clip := writeClip(t, dir, "a.mp4", "A")
	cfg := newTestConfig()
	cfg.Assembly.VerifyOutput = true

	var probed string
	unplayable := func(_ context.Context, _ string, path string) (ffprobe.Result, error) {
		probed = path
		return ffprobe.Result{}, nil
	}
	a := New(cfg, nil, WithProbe(unplayable))
	final := filepath.Join(dir, "final.mp4")
	if _, err := a.Assemble(context.Background(), []string{clip}, final); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected verification failure, got %v", err)
	}
	if probed != final {
		t.Fatalf("expected probe of %q, got %q", final, probed)
	}

	playable := func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video"}},
			Format:  ffprobe.Format{Duration: "4.2"},
		}, nil
	}
	a = New(cfg, nil, WithProbe(playable))
	if _, err := a.Assemble(context.Background(), []string{clip}, final); err != nil {
		t.Fatalf("expected verified output, got %v", err)
	}
}
