// Package runner drives a page test over a page set: it launches the
// browser, runs every page with bounded crash retry and a failure cutoff,
// and collects the outcome of every attempt into results.
package runner

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/perfgo/pagerunner/browser"
	"github.com/perfgo/pagerunner/config"
	"github.com/perfgo/pagerunner/credentials"
	"github.com/perfgo/pagerunner/metrics"
	"github.com/perfgo/pagerunner/model"
	"github.com/perfgo/pagerunner/results"
	"github.com/rs/zerolog"
)

// Runner runs page tests. A Runner runs one page set at a time.
type Runner struct {
	launcher    browser.Launcher
	opts        config.RunOptions
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	credentials *credentials.Store
	backends    []credentials.Backend
	credsPath   string
	browserOpts browser.Options
	now         func() time.Time
	out         io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics records attempts in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithCredentialsBackend registers a login backend.
func WithCredentialsBackend(b credentials.Backend) Option {
	return func(r *Runner) { r.backends = append(r.backends, b) }
}

// WithCredentialsFile loads credentials from path in addition to the
// credentials file of the page set.
func WithCredentialsFile(path string) Option {
	return func(r *Runner) { r.credsPath = path }
}

// WithBrowserOptions sets the base options every browser is launched with.
func WithBrowserOptions(opts browser.Options) Option {
	return func(r *Runner) { r.browserOpts = opts }
}

// WithClock overrides the clock used to time attempts.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithOutput sets where the results summary is written when no output
// file is configured.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// New creates a runner launching browsers with launcher.
func New(launcher browser.Launcher, opts config.RunOptions, options ...Option) *Runner {
	r := &Runner{
		launcher: launcher,
		opts:     opts,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, o := range options {
		o(r)
	}
	r.credentials = credentials.NewStore(r.logger)
	for _, b := range r.backends {
		r.credentials.AddBackend(b)
	}
	return r
}

// NewFromConfig creates a runner with the run options, browser settings and
// credentials file of cfg. options are applied after those taken from cfg.
func NewFromConfig(launcher browser.Launcher, cfg config.Config, options ...Option) *Runner {
	base := []Option{WithBrowserOptions(browser.Options{
		UserAgentType: cfg.Browser.UserAgentType,
		ExtraArgs:     slices.Clone(cfg.Browser.ExtraArgs),
	})}
	if cfg.CredentialsPath != "" {
		base = append(base, WithCredentialsFile(cfg.CredentialsPath))
	}
	return New(launcher, cfg.Run, append(base, options...)...)
}

// run is the state of one Run call.
type run struct {
	test    PageTest
	set     *model.PageSet
	exp     *Expectations
	res     *results.Results
	browser browser.Browser
	// what the running browser was launched for
	launched launchKey
	// pages that had their first attempt
	attempted map[*model.Page]bool
}

// Run runs test over every page of set and returns the collected results.
// An error is returned when the run had to be aborted: the results
// collected up to that point are returned with it.
func (r *Runner) Run(ctx context.Context, test PageTest, set *model.PageSet, exp *Expectations) (*results.Results, error) {
	if err := r.opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run options: %w", err)
	}

	resOpts := []results.Option{
		results.WithFormat(r.opts.OutputFormat),
		results.WithPageSet(set),
		results.WithClock(r.now),
		results.WithLogger(r.logger),
	}
	if r.out != nil {
		resOpts = append(resOpts, results.WithOutput(r.out))
	}
	if r.opts.OutputFile != "" {
		resOpts = append(resOpts, results.WithOutputFile(r.opts.OutputFile))
	}

	st := &run{
		test:      test,
		set:       set,
		exp:       exp,
		res:       results.New(resOpts...),
		attempted: make(map[*model.Page]bool),
	}
	defer r.closeBrowser(st)

	r.loadCredentials(set)

	maxFailures := r.opts.MaxFailures
	if maxFailures < 0 {
		maxFailures = test.MaxFailures()
	}

	total := r.opts.PagesetRepeat * len(set.Pages) * r.opts.PageRepeat
	done := 0

	r.logger.Info().
		Int("pages", len(set.Pages)).
		Int("page_repeat", r.opts.PageRepeat).
		Int("pageset_repeat", r.opts.PagesetRepeat).
		Int("max_failures", maxFailures).
		Msg("Running page set")

	for i := 0; i < r.opts.PagesetRepeat; i++ {
		for _, page := range set.Pages {
			for j := 0; j < r.opts.PageRepeat; j++ {
				if err := ctx.Err(); err != nil {
					return st.res, err
				}

				if err := r.runPage(ctx, st, page); err != nil {
					return st.res, err
				}
				done++

				if failures := len(st.res.Failures()); maxFailures >= 0 && failures > maxFailures {
					r.logger.Error().
						Int("failures", failures).
						Int("max_failures", maxFailures).
						Int("abandoned", total-done).
						Msg("Too many failures, abandoning remaining pages")
					r.metrics.RecordAbandoned(total - done)
					return st.res, nil
				}
			}
		}
	}

	r.logger.Info().
		Int("successes", len(st.res.Successes())).
		Int("failures", len(st.res.Failures())).
		Int("skipped", len(st.res.Skipped())).
		Msg("Finished page set")
	return st.res, nil
}

func (r *Runner) loadCredentials(set *model.PageSet) {
	for _, path := range []string{r.credsPath, set.CredentialsPath} {
		if path == "" {
			continue
		}
		if err := r.credentials.LoadFile(path); err != nil {
			r.logger.Warn().Err(err).Str("path", path).Msg("Failed to load credentials")
		}
	}
}

// runPage runs one repetition of page, retrying once after a crash.
func (r *Runner) runPage(ctx context.Context, st *run, page *model.Page) error {
	first := !st.attempted[page]
	st.attempted[page] = true

	var outcome Outcome
	for try := 0; ; try++ {
		start := r.now()
		var err error
		outcome, err = r.runAttempt(ctx, st, page, try == 0)
		if err != nil {
			return err
		}
		r.metrics.RecordAttempt(outcome.Kind.String(), r.now().Sub(start))
		if outcome.Kind != Retry {
			break
		}

		r.logger.Warn().Str("page", page.URL).Str("reason", outcome.Reason).Msg("Browser crashed, restarting")
		r.closeBrowser(st)
	}

	if first && outcome.Kind == Success && st.test.DiscardFirstResult() {
		st.res.DiscardLastSuccess()
		r.logger.Debug().Str("page", page.URL).Msg("Discarded first result")
	}
	return nil
}

func (r *Runner) closeBrowser(st *run) {
	if st.browser == nil {
		return
	}
	if err := st.browser.Close(context.Background()); err != nil {
		r.logger.Debug().Err(err).Msg("Failed to close browser")
	}
	st.browser = nil
}
