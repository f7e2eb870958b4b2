package cli

// This file contains the summarize command printing recorded results in
// one of the output formats.

import (
	"errors"

	"github.com/perfgo/pagerunner/history"
	"github.com/perfgo/pagerunner/model"
	"github.com/perfgo/pagerunner/results"
	"github.com/urfave/cli/v2"
)

func (a *App) summarize(ctx *cli.Context) error {
	format := a.config.Run.OutputFormat
	if f := ctx.String("format"); f != "" {
		parsed, err := results.ParseFormat(f)
		if err != nil {
			return err
		}
		format = parsed
	}

	opts := []results.Option{
		results.WithFormat(format),
		results.WithOutput(a.out),
		results.WithLogger(a.logger),
	}
	output := ctx.String("output")
	if output == "" {
		output = a.config.Run.OutputFile
	}
	if output != "" {
		opts = append(opts, results.WithOutputFile(output))
	}

	res, err := a.loadResults(ctx, opts)
	if err != nil {
		return err
	}
	return res.PrintSummary()
}

func (a *App) loadResults(ctx *cli.Context, opts []results.Option) (*results.Results, error) {
	if path := ctx.String("results"); path != "" {
		if ctx.NArg() > 0 {
			return nil, errors.New("--results cannot be combined with a history entry")
		}
		return history.LoadSnapshotFile(path, opts...)
	}

	arg := "0"
	if ctx.NArg() > 1 {
		return nil, errors.New("expected at most one history entry")
	} else if ctx.NArg() == 1 {
		arg = ctx.Args().First()
	}

	entries, err := a.loadEntries()
	if err != nil {
		return nil, err
	}
	entry, err := history.Find(history.Filter(entries, "", model.HistoryTypeRun), arg)
	if err != nil {
		return nil, err
	}
	return history.LoadResults(entry, opts...)
}
