package cli

// This file contains the view command for displaying runs from history.

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/perfgo/pagerunner/history"
	"github.com/perfgo/pagerunner/model"
	"github.com/perfgo/pagerunner/results"
	"github.com/urfave/cli/v2"
)

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

// parseViewArgs returns the entry to view, "0" when none is given. Flags
// are not parsed so that negative indexes reach the command.
func parseViewArgs(in []string) (string, error) {
	in = removeFirstDashDash(in)
	switch len(in) {
	case 0:
		return "0", nil
	case 1:
		arg := in[0]
		if len(arg) > 1 && arg[0] == '-' {
			if _, err := strconv.ParseInt(arg, 10, 64); err != nil {
				return "", fmt.Errorf("unknown flag %s", arg)
			}
		}
		return arg, nil
	default:
		return "", fmt.Errorf("expected at most one ID or index, got %d arguments", len(in))
	}
}

func (a *App) view(ctx *cli.Context) error {
	arg, err := parseViewArgs(ctx.Args().Slice())
	if err != nil {
		return err
	}

	entries, err := a.loadEntries()
	if err != nil {
		return err
	}

	entry, err := history.Find(entries, arg)
	if err != nil {
		return err
	}
	return a.displayHistoryEntry(entry)
}

func (a *App) displayHistoryEntry(entry *history.Entry) error {
	h := entry.History
	w := a.out

	// Print header
	fmt.Fprintf(w, "=== %s %s ===\n", entry.ShortID(), h.Type)
	fmt.Fprintf(w, "Time: %s\n", h.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration: %s\n", h.Duration)
	fmt.Fprintf(w, "Exit Code: %d\n", h.ExitCode)
	if h.WorkDir != "" {
		fmt.Fprintf(w, "Working Dir: %s\n", h.WorkDir)
	}
	if h.Git != nil && h.Git.Commit != "" {
		commit := h.Git.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		fmt.Fprintf(w, "Git Commit: %s", commit)
		if h.Git.Branch != "" {
			fmt.Fprintf(w, " (%s)", h.Git.Branch)
		}
		fmt.Fprintln(w)
	}
	if r := h.Run; r != nil {
		if r.Test != "" {
			fmt.Fprintf(w, "Test: %s\n", r.Test)
		}
		if r.PageSet != "" {
			fmt.Fprintf(w, "Page Set: %s\n", r.PageSet)
		}
		fmt.Fprintf(w, "Pages: %d (%d ok, %d failed, %d skipped)\n", r.Pages, r.Successes, r.Failures, r.Skipped)
	}
	if s := h.Systrace; s != nil {
		fmt.Fprintf(w, "Systrace: device=%q categories=%v ring_buffer=%t\n", s.Device, s.Categories, s.RingBuffer)
	}
	fmt.Fprintln(w)

	var summaryArtifact, resultsArtifact *model.Artifact
	for i := range h.Artifacts {
		artifact := &h.Artifacts[i]
		switch artifact.Type {
		case model.ArtifactTypeSummary:
			summaryArtifact = artifact
		case model.ArtifactTypeResults:
			resultsArtifact = artifact
		default:
			fmt.Fprintf(w, "%s: %s (%.1f KB)\n", artifact.Type, filepath.Join(entry.FullPath, artifact.File), float64(artifact.Size)/1024)
		}
	}

	if summaryArtifact != nil {
		return a.displaySummary(entry.FullPath, summaryArtifact)
	}
	if resultsArtifact != nil {
		res, err := history.LoadResults(entry, results.WithLogger(a.logger))
		if err != nil {
			return err
		}
		a.displayRuns(res)
		return nil
	}

	fmt.Fprintf(w, "History directory: %s\n", entry.FullPath)
	return nil
}

func (a *App) displaySummary(runDir string, artifact *model.Artifact) error {
	path := filepath.Join(runDir, artifact.File)
	fmt.Fprintf(a.out, "Summary: %s\n", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read summary: %w", err)
	}
	fmt.Fprintln(a.out, string(data))
	return nil
}

// displayRuns prints one row per page run.
func (a *App) displayRuns(res *results.Results) {
	t := table.NewWriter()
	t.SetOutputMirror(a.out)
	t.AppendHeader(table.Row{"Page", "Status", "Duration", "Values", "Message"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Page", AutoMerge: true},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Values", Align: text.AlignRight},
		{Name: "Message", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, run := range res.Runs() {
		t.AppendRow(table.Row{
			res.PageName(run.Page),
			string(run.Status),
			run.Duration(),
			len(run.Values),
			run.Message,
		})
	}
	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d ok, %d failed, %d skipped", len(res.Successes()), len(res.Failures()), len(res.Skipped())),
	})

	if len(res.Failures()) > 0 {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	} else {
		t.SetStyle(table.StyleLight)
	}
	t.Render()
}
