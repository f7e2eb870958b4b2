package model

import "time"

// HistoryType represents the type of history entry
type HistoryType string

const (
	HistoryTypeRun      HistoryType = "run"
	HistoryTypeSystrace HistoryType = "systrace"
)

// History represents a single recorded execution (page run or systrace capture).
// It contains common fields shared by all execution types.
type History struct {
	// Unique ID for this execution (UUID)
	ID string `json:"id"`
	// Type of execution (run or systrace)
	Type HistoryType `json:"type"`
	// Timestamp when the execution started
	Timestamp time.Time `json:"timestamp"`
	// Command-line arguments (including command name)
	Args []string `json:"args,omitempty"`
	// Working directory where command was run (relative to repo root)
	WorkDir string `json:"workdir,omitempty"`
	// Exit code of the execution
	ExitCode int `json:"exit_code"`
	// Duration of execution
	Duration time.Duration `json:"duration"`
	// Git information
	Git *Git `json:"git,omitempty"`
	// Artifacts generated during this run
	Artifacts []Artifact `json:"artifacts,omitempty"`

	// Type-specific data (only one should be populated based on Type)
	Run      *RunSummary  `json:"run,omitempty"`
	Systrace *SystraceRun `json:"systrace,omitempty"`
}

// Git contains git repository information
type Git struct {
	Commit string `json:"commit,omitempty"`
	Branch string `json:"branch,omitempty"`
	Repo   string `json:"repo,omitempty"`
}

// RunSummary contains page run counters
type RunSummary struct {
	// Name of the measurement or validator that was run
	Test string `json:"test,omitempty"`
	// Page set file the pages came from
	PageSet      string `json:"page_set,omitempty"`
	Pages        int    `json:"pages"`
	Successes    int    `json:"successes"`
	Failures     int    `json:"failures"`
	Skipped      int    `json:"skipped"`
	OutputFormat string `json:"output_format,omitempty"`
}

// SystraceRun contains the options of a systrace capture
type SystraceRun struct {
	Device     string   `json:"device,omitempty"`
	Categories []string `json:"categories,omitempty"`
	RingBuffer bool     `json:"ring_buffer,omitempty"`
}

// ArtifactType identifies the type of artifact
type ArtifactType uint8

const (
	ArtifactTypeResults ArtifactType = iota
	ArtifactTypeSummary
	ArtifactTypeSystrace
	ArtifactTypeMetrics
)

func (t ArtifactType) String() string {
	switch t {
	case ArtifactTypeResults:
		return "results"
	case ArtifactTypeSummary:
		return "summary"
	case ArtifactTypeSystrace:
		return "systrace"
	case ArtifactTypeMetrics:
		return "metrics"
	default:
		return "unknown"
	}
}

// Artifact represents a file generated during execution
type Artifact struct {
	Type ArtifactType `json:"type"`
	Size uint64       `json:"size"`
	File string       `json:"file"` // relative to run dir
}
