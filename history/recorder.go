package history

// This file contains the recorder writing a run directory with its
// history.json, results snapshot and artifacts.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/perfgo/pagerunner/metrics"
	"github.com/perfgo/pagerunner/model"
	"github.com/perfgo/pagerunner/results"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	// ResultsFile holds the results snapshot of a page run.
	ResultsFile = "results.json"
	// MetricsFile holds the runner metrics in the Prometheus text format.
	MetricsFile = "metrics.prom"

	runDirTimeFormat = "20060102-150405"
)

// Recorder records one execution into its own run directory below the
// history root.
type Recorder struct {
	logger  zerolog.Logger
	now     func() time.Time
	workDir string
	git     func(dir string) (*model.Git, error)

	dir     string
	history model.History
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger.
func WithRecorderLogger(logger zerolog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

// WithRecorderClock overrides the clock used for timestamps and durations.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithWorkDir sets the directory the execution was started from.
func WithWorkDir(dir string) RecorderOption {
	return func(r *Recorder) { r.workDir = dir }
}

// NewRecorder creates the run directory for a new execution of typ below
// root. Git information is recorded when the working directory is inside a
// repository.
func NewRecorder(root string, typ model.HistoryType, args []string, opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{
		logger: zerolog.Nop(),
		now:    time.Now,
		git:    GitInfo,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			r.workDir = cwd
		}
	}

	r.history = model.History{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: r.now(),
		Args:      args,
		WorkDir:   r.workDir,
	}

	if git, err := r.git(r.workDir); err == nil {
		r.history.Git = git
		if rel, err := filepath.Rel(git.Repo, r.workDir); err == nil {
			r.history.WorkDir = rel
		}
	} else {
		r.logger.Debug().Err(err).Msg("Recording without git information")
	}

	commit := "nogit"
	if r.history.Git != nil && r.history.Git.Commit != "" {
		commit = shorten(r.history.Git.Commit)
	}
	runName := fmt.Sprintf("%s-%s-%s", r.history.Timestamp.Format(runDirTimeFormat), commit, shorten(r.history.ID))
	r.dir = filepath.Join(root, "history", runName)

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return r, nil
}

// Dir returns the run directory. Artifacts may be written to it directly
// and registered with Register.
func (r *Recorder) Dir() string {
	return r.dir
}

// History returns the record being built.
func (r *Recorder) History() *model.History {
	return &r.history
}

// Register adds a file already in the run directory as an artifact.
func (r *Recorder) Register(typ model.ArtifactType, file string) error {
	info, err := os.Stat(filepath.Join(r.dir, file))
	if err != nil {
		return fmt.Errorf("failed to stat artifact: %w", err)
	}
	r.history.Artifacts = append(r.history.Artifacts, model.Artifact{
		Type: typ,
		Size: uint64(info.Size()),
		File: file,
	})
	r.logger.Debug().Str("file", file).Stringer("type", typ).Msg("Registered artifact")
	return nil
}

// AddArtifact copies src into the run directory and registers it.
func (r *Recorder) AddArtifact(typ model.ArtifactType, src string) error {
	name := filepath.Base(src)
	if err := copyFile(src, filepath.Join(r.dir, name)); err != nil {
		return fmt.Errorf("failed to copy artifact %s: %w", src, err)
	}
	return r.Register(typ, name)
}

// SaveResults stores the results snapshot and fills the run summary.
func (r *Recorder) SaveResults(test, pageSet string, res *results.Results) error {
	snapshot := res.Snapshot()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, ResultsFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	r.history.Run = &model.RunSummary{
		Test:         test,
		PageSet:      pageSet,
		Pages:        len(snapshot.Pages),
		Successes:    len(res.Successes()),
		Failures:     len(res.Failures()),
		Skipped:      len(res.Skipped()),
		OutputFormat: string(res.Format()),
	}
	return r.Register(model.ArtifactTypeResults, ResultsFile)
}

// SaveMetrics writes the metrics gathered from g.
func (r *Recorder) SaveMetrics(g prometheus.Gatherer) error {
	if err := metrics.WriteTextfile(filepath.Join(r.dir, MetricsFile), g); err != nil {
		return err
	}
	return r.Register(model.ArtifactTypeMetrics, MetricsFile)
}

// Finish writes history.json. A non-nil runErr is recorded as exit code 1
// unless it wraps the exit error of a command.
func (r *Recorder) Finish(runErr error) error {
	r.history.Duration = r.now().Sub(r.history.Timestamp)
	r.history.ExitCode = 0
	if runErr != nil {
		r.history.ExitCode = 1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			r.history.ExitCode = exitErr.ExitCode()
		}
	}

	data, err := json.MarshalIndent(r.history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, historyFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	r.logger.Debug().Str("dir", r.dir).Str("id", r.history.ID).Msg("Recorded history")
	return nil
}

// LoadResults reads the results snapshot of a recorded page run.
func LoadResults(entry *Entry, opts ...results.Option) (*results.Results, error) {
	for _, a := range entry.History.Artifacts {
		if a.Type == model.ArtifactTypeResults {
			return LoadSnapshotFile(filepath.Join(entry.FullPath, a.File), opts...)
		}
	}
	return nil, fmt.Errorf("run %s has no recorded results", entry.ShortID())
}

// LoadSnapshotFile reads results from a snapshot file.
func LoadSnapshotFile(path string, opts ...results.Option) (*results.Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	var snapshot results.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse results %s: %w", path, err)
	}
	return results.FromSnapshot(snapshot, opts...)
}

// GitInfo returns the commit, branch and top level directory of the git
// repository containing dir.
func GitInfo(dir string) (*model.Git, error) {
	root, err := repoRoot(dir)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get git commit: %w", err)
	}
	commit := strings.TrimSpace(string(output))

	cmd = exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	output, err = cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get git branch: %w", err)
	}

	return &model.Git{
		Commit: commit,
		Branch: strings.TrimSpace(string(output)),
		Repo:   root,
	}, nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	sourceInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, sourceInfo.Mode())
}
