package cli

// This file contains the systrace commands capturing traces from an
// Android device into history.

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/perfgo/pagerunner/config"
	"github.com/perfgo/pagerunner/history"
	"github.com/perfgo/pagerunner/model"
	"github.com/perfgo/pagerunner/systrace"
	"github.com/urfave/cli/v2"
)

func deviceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "device",
		Aliases: []string{"s"},
		Usage:   "adb serial of the device, default from config",
	}
}

// newController builds a controller from the config, overridden by the
// flags that were set.
func (a *App) newController(ctx *cli.Context) (*systrace.Controller, config.Systrace) {
	cfg := a.config.Systrace
	if ctx.IsSet("device") {
		cfg.Device = ctx.String("device")
	}
	if ctx.IsSet("categories") {
		cfg.Categories = ctx.StringSlice("categories")
	}
	if ctx.IsSet("ring-buffer") {
		cfg.RingBuffer = ctx.Bool("ring-buffer")
	}
	if ctx.IsSet("interval") {
		cfg.Interval = ctx.Duration("interval")
	}

	opts := []systrace.Option{
		systrace.WithLogger(a.logger),
		systrace.WithInterval(cfg.Interval),
	}
	if a.adb != nil {
		opts = append(opts, systrace.WithRunner(a.adb))
	}
	return systrace.New(cfg.Device, cfg.Categories, cfg.RingBuffer, opts...), cfg
}

func (a *App) systraceCategories(ctx *cli.Context) error {
	controller, _ := a.newController(ctx)
	categories, err := controller.Categories(ctx.Context)
	if err != nil {
		return err
	}
	for _, c := range categories {
		fmt.Fprintln(a.out, c)
	}
	return nil
}

func (a *App) systraceRecord(ctx *cli.Context) error {
	root, err := history.ResolveRoot(a.config.HistoryDir)
	if err != nil {
		return err
	}
	rec, err := history.NewRecorder(root, model.HistoryTypeSystrace, os.Args, history.WithRecorderLogger(a.logger))
	if err != nil {
		return fmt.Errorf("failed to prepare history directory: %w", err)
	}

	controller, cfg := a.newController(ctx)
	rec.History().Systrace = &model.SystraceRun{
		Device:     cfg.Device,
		Categories: cfg.Categories,
		RingBuffer: cfg.RingBuffer,
	}
	runErr := a.recordTrace(ctx, controller, rec)

	// Record the history (non-fatal if it fails)
	if err := rec.Finish(runErr); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to record history")
	}
	return runErr
}

func (a *App) recordTrace(ctx *cli.Context, controller *systrace.Controller, rec *history.Recorder) error {
	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt)
	defer stop()

	if err := controller.Start(sigCtx); err != nil {
		return err
	}

	if d := ctx.Duration("duration"); d > 0 {
		a.logger.Info().Stringer("duration", d).Msg("Recording")
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-sigCtx.Done():
		}
	} else {
		a.logger.Info().Msg("Recording, press Ctrl-C to stop")
		<-sigCtx.Done()
	}
	controller.Stop()

	path, err := controller.Pull(context.WithoutCancel(ctx.Context), rec.Dir())
	if err != nil {
		return fmt.Errorf("failed to pull trace: %w", err)
	}
	if path == "" {
		return nil
	}
	if err := rec.Register(model.ArtifactTypeSystrace, filepath.Base(path)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Trace written to %s\n", path)
	return nil
}
