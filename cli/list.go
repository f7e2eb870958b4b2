package cli

// This file contains the list command for displaying previous runs.

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/perfgo/pagerunner/history"
	"github.com/perfgo/pagerunner/model"
	"github.com/urfave/cli/v2"
)

func (a *App) list(ctx *cli.Context) error {
	filterPath := ctx.String("path")
	limit := ctx.Int("limit")

	var filterType model.HistoryType
	switch t := model.HistoryType(ctx.String("type")); t {
	case "", model.HistoryTypeRun, model.HistoryTypeSystrace:
		filterType = t
	default:
		return fmt.Errorf("unknown run type %q", t)
	}

	entries, err := a.loadEntries()
	if err != nil {
		return err
	}

	filtered := history.Filter(entries, filterPath, filterType)
	if len(filtered) == 0 {
		fmt.Fprintln(a.out, "No history entries found")
		return nil
	}

	display := filtered
	if limit > 0 && limit < len(display) {
		display = display[:limit]
	}

	t := table.NewWriter()
	t.SetOutputMirror(a.out)
	t.SetTitle(fmt.Sprintf("History (%d total)", len(filtered)))
	t.AppendHeader(table.Row{"", "ID", "Time", "Type", "Duration", "Details", "Commit", "Path"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Duration", Align: text.AlignRight},
	})

	for i := range display {
		entry := &display[i]
		h := entry.History

		// Determine status indicator
		status := "✓"
		if h.ExitCode != 0 {
			status = "✗"
		}

		commit := ""
		if h.Git != nil && h.Git.Commit != "" {
			commit = h.Git.Commit
			if len(commit) > 8 {
				commit = commit[:8]
			}
			if h.Git.Branch != "" {
				commit += " (" + h.Git.Branch + ")"
			}
		}

		t.AppendRow(table.Row{
			status,
			entry.ShortID(),
			h.Timestamp.Format("2006-01-02 15:04:05"),
			string(h.Type),
			h.Duration.Round(time.Millisecond),
			details(&h),
			commit,
			h.WorkDir,
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	fmt.Fprintf(a.out, "\nView a run: %s view <ID>\n", AppName)
	return nil
}

// details summarizes the type specific data of a run in one cell.
func details(h *model.History) string {
	switch {
	case h.Run != nil:
		r := h.Run
		s := fmt.Sprintf("%d pages: %d ok, %d failed, %d skipped", r.Pages, r.Successes, r.Failures, r.Skipped)
		if r.Test != "" {
			s = r.Test + " " + s
		}
		return s
	case h.Systrace != nil:
		s := h.Systrace
		parts := []string{}
		if s.Device != "" {
			parts = append(parts, "device="+s.Device)
		}
		if len(s.Categories) > 0 {
			parts = append(parts, "categories="+strings.Join(s.Categories, ","))
		}
		if s.RingBuffer {
			parts = append(parts, "ring buffer")
		}
		return strings.Join(parts, " ")
	}
	return ""
}
