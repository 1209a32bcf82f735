package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"clarifai/internal/jobs"
	"clarifai/internal/textutil"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var statusStyles = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style, ok := statusStyles[kind]
	if !ok {
		style = statusStyles[statusInfo]
	}
	line := fmt.Sprintf("%s%-*s [%s]", statusIndent, statusLabelWidth, label+":", style.label)
	if message != "" {
		line += " " + message
	}
	if colorize {
		return style.color + line + ansiReset
	}
	return line
}

// renderJobSummary returns the header lines of `status`: identity, state and,
// once assembled, the final video.
func renderJobSummary(job *jobs.ConceptJob, colorize bool) []string {
	lines := []string{
		renderStatusLine("Job", statusInfo, job.ID, colorize),
		renderStatusLine("Concept", statusInfo, textutil.DisplayTitle(job.ConceptName), colorize),
		renderStatusLine("Status", jobStatusKind(job), jobStatusMessage(job), colorize),
	}
	if job.FinalVideoPath != "" {
		lines = append(lines, renderStatusLine("Video", statusOK, job.FinalVideoPath, colorize))
	}
	return lines
}

func jobStatusKind(job *jobs.ConceptJob) statusKind {
	switch job.Status {
	case jobs.StatusCompleted:
		return statusOK
	case jobs.StatusFailed:
		if job.FailureReason == jobs.ReasonCanceled || job.FailureReason == jobs.ReasonStale {
			return statusWarn
		}
		return statusError
	default:
		return statusInfo
	}
}

func jobStatusMessage(job *jobs.ConceptJob) string {
	switch job.Status {
	case jobs.StatusFailed:
		if job.ErrorMessage != "" {
			return fmt.Sprintf("%s (%s)", job.Status, job.ErrorMessage)
		}
	case jobs.StatusGenerating:
		if len(job.Scenes) > 0 {
			return fmt.Sprintf("%s (%d/%d scenes rendered)", job.Status, len(job.ClipPaths), len(job.Scenes))
		}
	}
	return string(job.Status)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
