package jobs

import (
	"fmt"
	"time"
)

// Status represents the lifecycle of a concept job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var statusSet = map[Status]struct{}{
	StatusPending:    {},
	StatusGenerating: {},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// ParseStatus converts a string into a Status if it is recognized.
func ParseStatus(value string) (Status, bool) {
	status := Status(value)
	_, ok := statusSet[status]
	return status, ok
}

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Short machine-readable failure reasons recorded on failed jobs.
const (
	ReasonSceneFailed    = "scene_failed"
	ReasonAssemblyFailed = "assembly_failed"
	ReasonCanceled       = "canceled"
	ReasonInternal       = "internal_error"
	ReasonStale          = "stale"
)

// MaxAttempts is the fixed repair budget per scene.
const MaxAttempts = 3

// LogEntry is one timestamped line of a job log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// String renders the entry the way it is shown to users.
func (e LogEntry) String() string {
	return fmt.Sprintf("[%s] %s", e.Time.UTC().Format(time.RFC3339), e.Message)
}

// Scene is one planning unit. Index defines final ordering and never changes.
type Scene struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
}

// Number returns the 1-based scene number used in log messages.
func (s Scene) Number() int {
	return s.Index + 1
}

// Attempt is one generate-or-correct-then-render cycle for a scene.
type Attempt struct {
	Number      int    `json:"number"`
	Code        string `json:"code"`
	RenderError string `json:"render_error,omitempty"`
}

// Failed reports whether the attempt ended with an error.
func (a Attempt) Failed() bool {
	return a.RenderError != ""
}

// ClipResult is the outcome of one scene. Path is set iff Succeeded.
type ClipResult struct {
	SceneIndex int       `json:"scene_index"`
	Path       string    `json:"path,omitempty"`
	Succeeded  bool      `json:"succeeded"`
	Attempts   []Attempt `json:"attempts,omitempty"`
}

// ConceptJob is one end-to-end request to turn a description into a video.
type ConceptJob struct {
	ID                 string     `json:"id"`
	Owner              string     `json:"owner"`
	ConceptName        string     `json:"concept_name"`
	ConceptDescription string     `json:"concept_description"`
	OutputDir          string     `json:"output_dir"`
	Quality            string     `json:"quality"`
	Status             Status     `json:"status"`
	Scenes             []Scene    `json:"scenes,omitempty"`
	Log                []LogEntry `json:"log"`
	ClipPaths          []string   `json:"clip_paths"`
	FinalVideoPath     string     `json:"final_video_path,omitempty"`
	FailureReason      string     `json:"failure_reason,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LastHeartbeat      *time.Time `json:"last_heartbeat,omitempty"`
}

// AppendLog adds a log entry. Timestamps never go backwards, so entries stay
// strictly ordered even if the wall clock is adjusted mid-run.
func (j *ConceptJob) AppendLog(at time.Time, message string) LogEntry {
	if n := len(j.Log); n > 0 && at.Before(j.Log[n-1].Time) {
		at = j.Log[n-1].Time
	}
	entry := LogEntry{Time: at.UTC(), Message: message}
	j.Log = append(j.Log, entry)
	return entry
}

// LogLines renders the log as display strings.
func (j *ConceptJob) LogLines() []string {
	lines := make([]string, 0, len(j.Log))
	for _, entry := range j.Log {
		lines = append(lines, entry.String())
	}
	return lines
}

// SetFailed marks the job failed with a short reason and human message.
func (j *ConceptJob) SetFailed(reason, message string) {
	j.Status = StatusFailed
	j.FailureReason = reason
	j.ErrorMessage = message
	j.FinalVideoPath = ""
}

// Clone returns a deep copy so callers never share slices with a store.
func (j *ConceptJob) Clone() *ConceptJob {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Scenes = append([]Scene(nil), j.Scenes...)
	cp.Log = append([]LogEntry(nil), j.Log...)
	cp.ClipPaths = append([]string(nil), j.ClipPaths...)
	if j.LastHeartbeat != nil {
		hb := *j.LastHeartbeat
		cp.LastHeartbeat = &hb
	}
	return &cp
}
