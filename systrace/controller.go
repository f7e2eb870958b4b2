// Package systrace collects atrace data from an Android device in the
// background while pages run.
package systrace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

const (
	// DefaultInterval is how often trace data is pulled from the device.
	DefaultInterval = 15 * time.Second

	// Trace buffer size in KB, large enough for the default interval.
	bufferSizeKB = "16384"

	timestampFormat = "2006-01-02-150405"
)

// Controller runs one trace collection: Start, then Stop, then Pull.
type Controller struct {
	logger     zerolog.Logger
	runner     CommandRunner
	device     string
	categories []string
	ringBuffer bool
	interval   time.Duration
	now        func() time.Time

	startOnce sync.Once
	started   atomic.Bool
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}

	// written by the collector before done is closed
	data []byte
	err  error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithRunner replaces the adb runner.
func WithRunner(r CommandRunner) Option {
	return func(c *Controller) { c.runner = r }
}

// WithInterval sets how often trace data is pulled.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock overrides the clock used to name trace files.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller tracing categories on device. In ring buffer
// mode the trace is only pulled when tracing stops.
func New(device string, categories []string, ringBuffer bool, opts ...Option) *Controller {
	c := &Controller{
		logger:     zerolog.Nop(),
		device:     device,
		categories: categories,
		ringBuffer: ringBuffer,
		interval:   DefaultInterval,
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runner == nil {
		c.runner = NewADB(c.logger, device)
	}
	return c
}

func (c *Controller) String() string {
	return "systrace"
}

// Categories lists the trace categories supported by the device.
func (c *Controller) Categories(ctx context.Context) ([]string, error) {
	out, err := c.runner.Shell(ctx, "atrace --list_categories")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	var categories []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			categories = append(categories, line)
		}
	}
	return categories, nil
}

// Start starts tracing in the background. The collection ends on Stop or
// when ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	err := errors.New("tracing already started")
	c.startOnce.Do(func() {
		c.started.Store(true)
		err = nil
		c.logger.Info().
			Str("device", c.device).
			Strs("categories", c.categories).
			Bool("ring_buffer", c.ringBuffer).
			Msg("Starting systrace")
		go c.collect(ctx)
	})
	return err
}

// Stop ends tracing. It is safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// Pull waits for the collection to end and writes the trace to a
// systrace-<timestamp> file in dir. It returns the file path, or an empty
// path when no data was collected.
func (c *Controller) Pull(ctx context.Context, dir string) (string, error) {
	if !c.started.Load() {
		return "", errors.New("tracing not started")
	}

	select {
	case <-c.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if c.err != nil {
		return "", c.err
	}
	if len(c.data) == 0 {
		c.logger.Warn().Msg("No systrace data collected")
		return "", nil
	}

	path := filepath.Join(dir, "systrace-"+c.now().Format(timestampFormat))
	if err := os.WriteFile(path, c.data, 0644); err != nil {
		return "", fmt.Errorf("failed to write trace: %w", err)
	}
	c.logger.Info().Str("path", path).Int("bytes", len(c.data)).Msg("Wrote systrace")
	return path, nil
}

// command returns the atrace command line for an async subcommand.
func (c *Controller) command(sub string) string {
	parts := []string{"atrace", "--" + sub, "-z", "-b", bufferSizeKB}
	for _, category := range c.categories {
		parts = append(parts, shellescape.Quote(category))
	}
	return strings.Join(parts, " ")
}

func (c *Controller) collect(ctx context.Context) {
	defer close(c.done)

	// Commands outlive ctx so the device is always told to stop tracing.
	cmdCtx := context.WithoutCancel(ctx)

	if _, err := c.runner.Shell(cmdCtx, c.command("async_start")); err != nil {
		c.err = fmt.Errorf("failed to start tracing: %w", err)
		return
	}

	var chunks [][]byte
	var errs []error
	pull := func(sub string) {
		out, err := c.runner.Shell(cmdCtx, c.command(sub))
		if err == nil {
			out, err = decodeTraceData(out)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("atrace --%s: %w", sub, err))
			return
		}
		chunks = append(chunks, out)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for stopped := false; !stopped; {
		select {
		case <-c.stop:
			stopped = true
		case <-ctx.Done():
			stopped = true
		case <-ticker.C:
		}
		if !c.ringBuffer || stopped {
			pull("async_dump")
		}
	}
	pull("async_stop")

	var data []byte
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		out, err := decompress(chunk)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		data = append(data, out...)
	}

	c.data = data
	c.err = errors.Join(errs...)
	c.logger.Debug().Int("chunks", len(chunks)).Int("bytes", len(data)).Msg("Systrace collection finished")
}
