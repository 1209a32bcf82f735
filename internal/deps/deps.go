// Package deps reports whether the external programs the pipeline shells out
// to are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"clarifai/internal/config"
)

// Requirement defines an external binary clarifai relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// Requirements lists the binaries implied by cfg. ffprobe is only required
// when output verification is enabled.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	return []Requirement{
		{Name: "Manim", Command: cfg.Render.ManimBinary, Description: "Renders scene code to clips"},
		{Name: "FFmpeg", Command: cfg.Assembly.FFmpegBinary, Description: "Concatenates clips"},
		{
			Name:        "FFprobe",
			Command:     cfg.Assembly.FFprobeBinary,
			Description: "Verifies assembled videos",
			Optional:    !cfg.Assembly.VerifyOutput,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		results = append(results, status)
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}
