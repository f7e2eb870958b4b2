package history

// This file contains RecordRun, running a page set into a new run
// directory.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/perfgo/pagerunner/browser"
	"github.com/perfgo/pagerunner/config"
	"github.com/perfgo/pagerunner/metrics"
	"github.com/perfgo/pagerunner/model"
	"github.com/perfgo/pagerunner/results"
	"github.com/perfgo/pagerunner/runner"
	"github.com/prometheus/client_golang/prometheus"
)

// SummaryFile holds the summary of a page run in its output format.
const SummaryFile = "summary.txt"

// Run describes a page run to record.
type Run struct {
	Test runner.PageTest
	// Name of the page test in the run summary
	TestName string
	PageSet  *model.PageSet
	// Page set file in the run summary
	PageSetPath  string
	Expectations *runner.Expectations
	// Command line recorded with the run
	Args []string
	// Applied after the options taken from the config
	Options []runner.Option
}

// RecordRun runs a page set with a runner built from cfg and records it
// below root: the results snapshot, the runner metrics and the summary.
// The summary is also printed to the configured output. The run error is
// returned with the results collected up to it.
func RecordRun(ctx context.Context, root string, launcher browser.Launcher, cfg config.Config, run Run, opts ...RecorderOption) (*Recorder, *results.Results, error) {
	rec, err := NewRecorder(root, model.HistoryTypeRun, run.Args, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare history directory: %w", err)
	}

	reg := prometheus.NewRegistry()
	options := append([]runner.Option{
		runner.WithLogger(rec.logger),
		runner.WithMetrics(metrics.New(reg)),
	}, run.Options...)

	res, runErr := runner.NewFromConfig(launcher, cfg, options...).
		Run(ctx, run.Test, run.PageSet, run.Expectations)
	if res != nil {
		runErr = errors.Join(runErr, rec.saveRun(run, res, reg))
	}

	// Record the history (non-fatal if it fails)
	if err := rec.Finish(runErr); err != nil {
		rec.logger.Warn().Err(err).Msg("Failed to record history")
	}
	return rec, res, runErr
}

func (r *Recorder) saveRun(run Run, res *results.Results, g prometheus.Gatherer) error {
	if err := r.SaveResults(run.TestName, run.PageSetPath, res); err != nil {
		return err
	}
	if err := r.SaveMetrics(g); err != nil {
		return err
	}
	if err := r.SaveSummary(res); err != nil {
		return err
	}
	return res.PrintSummary()
}

// SaveSummary stores the summary of res. Nothing is stored for the none
// format.
func (r *Recorder) SaveSummary(res *results.Results) error {
	summary, err := res.Summary()
	if err != nil {
		return err
	}
	if summary == "" {
		return nil
	}
	if err := os.WriteFile(filepath.Join(r.dir, SummaryFile), []byte(summary), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return r.Register(model.ArtifactTypeSummary, SummaryFile)
}
