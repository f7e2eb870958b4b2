package runner

import (
	"context"
	"fmt"
	"slices"

	"github.com/perfgo/pagerunner/browser"
	"github.com/perfgo/pagerunner/model"
	"github.com/perfgo/pagerunner/results"
)

// launchKey identifies what a browser was launched for. Pages with a
// different key need a new browser.
type launchKey struct {
	startupURL  string
	archivePath string
}

// runAttempt runs page once inside its own results scope. An error is
// returned only when the run must be aborted.
func (r *Runner) runAttempt(ctx context.Context, st *run, page *model.Page, canRetry bool) (Outcome, error) {
	if err := st.res.WillMeasurePage(page); err != nil {
		return Outcome{}, err
	}

	outcome, err := r.attempt(ctx, st, page)
	if err != nil {
		st.res.AbandonCurrentPage()
		return Outcome{}, err
	}

	if outcome.Kind == Retry && !canRetry {
		outcome = failed(outcome.Err)
	}
	if outcome.Kind == Failure {
		if kind, reason := st.exp.ForPage(page); kind == ExpectFail {
			r.logger.Warn().Str("page", page.URL).Str("reason", reason).Err(outcome.Err).Msg("Page failed as expected")
			outcome = succeeded()
		}
	}

	r.logger.Debug().Str("page", page.URL).Str("outcome", outcome.String()).Msg("Page attempt finished")
	return outcome, r.record(st, page, outcome)
}

// record closes the results scope of the attempt.
func (r *Runner) record(st *run, page *model.Page, outcome Outcome) error {
	switch outcome.Kind {
	case Retry:
		st.res.AbandonCurrentPage()
		return nil
	case Failure:
		r.logger.Error().Str("page", page.URL).Err(outcome.Err).Msg("Page failed")
		if err := st.res.AddFailureMessage(page, outcome.Reason); err != nil {
			return err
		}
	case Skipped:
		r.logger.Info().Str("page", page.URL).Str("reason", outcome.Reason).Msg("Page skipped")
		if err := st.res.AddSkipMessage(page, outcome.Reason); err != nil {
			return err
		}
	}
	return st.res.DidMeasurePage()
}

func (r *Runner) attempt(ctx context.Context, st *run, page *model.Page) (Outcome, error) {
	if kind, reason := st.exp.ForPage(page); kind == ExpectSkip {
		if reason == "" {
			reason = "skipped by expectations"
		}
		return skipped(reason), nil
	}

	if err := r.ensureBrowser(ctx, st, page); err != nil {
		if browser.IsCrash(err) {
			return retry(err), nil
		}
		return Outcome{}, err
	}

	if !page.CanRunOn(st.browser) || !st.test.CanRunOnBrowser(st.browser) {
		return skipped("page cannot run on this browser"), nil
	}

	tab, err := prepareTab(ctx, st.browser)
	if err != nil {
		return r.classify(ctx, err)
	}

	if page.Credentials != "" {
		ok, err := r.credentials.LoginNeeded(ctx, tab, page.Credentials)
		if err != nil {
			return r.classify(ctx, fmt.Errorf("failed to log in with %s credentials: %w", page.Credentials, err))
		}
		if !ok {
			return skipped(fmt.Sprintf("could not log in with %s credentials", page.Credentials)), nil
		}
		defer func() {
			if err := r.credentials.LoginNoLongerNeeded(ctx, tab, page.Credentials); err != nil {
				r.logger.Warn().Err(err).Str("page", page.URL).Msg("Failed to release login")
			}
		}()
	}

	return r.classify(ctx, r.runTest(ctx, st, page, tab))
}

// runTest navigates to the page and validates it. CleanUpAfterPage runs
// whatever happens once navigation started.
func (r *Runner) runTest(ctx context.Context, st *run, page *model.Page, tab browser.Tab) (err error) {
	defer func() {
		cerr := st.test.CleanUpAfterPage(ctx, page, tab)
		if cerr == nil {
			return
		}
		if err == nil {
			err = fmt.Errorf("failed to clean up after page: %w", cerr)
			return
		}
		r.logger.Warn().Err(cerr).Str("page", page.URL).Msg("Failed to clean up after page")
	}()

	if err := st.test.WillNavigateToPage(ctx, page, tab); err != nil {
		return fmt.Errorf("failed before navigating: %w", err)
	}
	if err := page.RunNavigateSteps(ctx, tab); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", page.URL, err)
	}
	if err := st.test.DidNavigateToPage(ctx, page, tab); err != nil {
		return fmt.Errorf("failed after navigating: %w", err)
	}
	return st.test.ValidatePage(ctx, page, tab, st.res)
}

// classify turns the error of an attempt into its outcome. Inconsistent
// results and cancellation abort the run.
func (r *Runner) classify(ctx context.Context, err error) (Outcome, error) {
	switch {
	case err == nil:
		return succeeded(), nil
	case results.IsConsistencyError(err):
		return Outcome{}, err
	case ctx.Err() != nil:
		return Outcome{}, ctx.Err()
	case browser.IsCrash(err):
		return retry(err), nil
	default:
		return failed(err), nil
	}
}

// ensureBrowser makes sure a browser launched for page is running.
func (r *Runner) ensureBrowser(ctx context.Context, st *run, page *model.Page) error {
	opts := r.browserOpts
	opts.ExtraArgs = slices.Clone(opts.ExtraArgs)
	opts.StartupURL = page.StartupURL
	if st.set.UserAgentType != "" {
		opts.UserAgentType = st.set.UserAgentType
	}
	if archive := st.set.ArchivePathFor(page); archive != "" {
		opts.ArchivePath = archive
	}
	if r.opts.UseLiveSites {
		opts.ArchivePath = ""
	}

	key := launchKey{startupURL: opts.StartupURL, archivePath: opts.ArchivePath}
	if st.browser != nil && st.launched == key {
		return nil
	}
	r.closeBrowser(st)

	if page.StartupURL != "" {
		st.test.CustomizeBrowserOptionsForSinglePage(page, &opts)
	}
	st.test.WillStartBrowser(&opts)

	r.logger.Info().
		Str("startup_url", opts.StartupURL).
		Str("archive", opts.ArchivePath).
		Strs("args", opts.ExtraArgs).
		Msg("Starting browser")
	b, err := r.launcher.Launch(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	r.metrics.RecordBrowserLaunch()
	st.browser = b
	st.launched = key

	if err := st.test.DidStartBrowser(ctx, b); err != nil {
		return fmt.Errorf("failed after starting browser: %w", err)
	}
	return nil
}

// prepareTab closes all but the first tab of b, opening one if there is
// none, and returns it.
func prepareTab(ctx context.Context, b browser.Browser) (browser.Tab, error) {
	tabs := b.Tabs()
	for tabs.Len() > 1 {
		n := tabs.Len()
		if err := tabs.Get(n - 1).Close(ctx); err != nil {
			return nil, fmt.Errorf("failed to close tab: %w", err)
		}
		if tabs.Len() >= n {
			return nil, fmt.Errorf("tab %d did not close", n-1)
		}
	}
	if tabs.Len() == 0 {
		tab, err := tabs.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open tab: %w", err)
		}
		return tab, nil
	}
	return tabs.Get(0), nil
}
