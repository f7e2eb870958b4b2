package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/perfgo/pagerunner/browser"
	"github.com/perfgo/pagerunner/browser/browsertest"
	"github.com/perfgo/pagerunner/config"
	"github.com/perfgo/pagerunner/metrics"
	"github.com/perfgo/pagerunner/model"
	"github.com/perfgo/pagerunner/results"
	"github.com/perfgo/pagerunner/value"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const simpleCredentials = `
{
  "test": {
    "username": "example",
    "password": "asdf"
  }
}
`

// recordingTest records every hook call.
type recordingTest struct {
	Base
	maxFailures  int
	discardFirst bool
	cannotRun    bool
	validate     func(ctx context.Context, page *model.Page, tab browser.Tab, res *results.Results) error
	didStart     func(ctx context.Context, b browser.Browser) error

	calls       []string
	validations int
	cleanups    int
	customized  int
}

func newRecordingTest() *recordingTest {
	return &recordingTest{maxFailures: config.Unbounded}
}

func (t *recordingTest) CanRunOnBrowser(browser.Browser) bool {
	return !t.cannotRun
}

func (t *recordingTest) CustomizeBrowserOptionsForSinglePage(_ *model.Page, _ *browser.Options) {
	t.customized++
}

func (t *recordingTest) WillStartBrowser(*browser.Options) {
	t.calls = append(t.calls, "WillStartBrowser")
}

func (t *recordingTest) DidStartBrowser(ctx context.Context, b browser.Browser) error {
	t.calls = append(t.calls, "DidStartBrowser")
	if t.didStart != nil {
		return t.didStart(ctx, b)
	}
	return nil
}

func (t *recordingTest) WillNavigateToPage(context.Context, *model.Page, browser.Tab) error {
	t.calls = append(t.calls, "WillNavigateToPage")
	return nil
}

func (t *recordingTest) DidNavigateToPage(context.Context, *model.Page, browser.Tab) error {
	t.calls = append(t.calls, "DidNavigateToPage")
	return nil
}

func (t *recordingTest) ValidatePage(ctx context.Context, page *model.Page, tab browser.Tab, res *results.Results) error {
	t.calls = append(t.calls, "ValidatePage")
	t.validations++
	if t.validate != nil {
		return t.validate(ctx, page, tab, res)
	}
	return nil
}

func (t *recordingTest) CleanUpAfterPage(context.Context, *model.Page, browser.Tab) error {
	t.calls = append(t.calls, "CleanUpAfterPage")
	t.cleanups++
	return nil
}

func (t *recordingTest) DiscardFirstResult() bool { return t.discardFirst }

func (t *recordingTest) MaxFailures() int { return t.maxFailures }

func noneOptions() config.RunOptions {
	opts := config.DefaultRunOptions()
	opts.OutputFormat = results.FormatNone
	return opts
}

func blankPages(n int) *model.PageSet {
	ps := &model.PageSet{}
	for i := 0; i < n; i++ {
		ps.AddPage("file://blank.html")
	}
	return ps
}

func crashOn(url string) func(context.Context, string) error {
	return func(_ context.Context, u string) error {
		if u == url {
			return browser.NewTabCrash("navigated to " + u)
		}
		return nil
	}
}

func TestHandlingOfCrashedTab(t *testing.T) {
	ps := &model.PageSet{}
	ps.AddPage("chrome://crash")
	launcher := &browsertest.Launcher{NavigateFunc: crashOn("chrome://crash")}

	res, err := New(launcher, noneOptions()).Run(context.Background(), newRecordingTest(), ps, NewExpectations())
	require.NoError(t, err)
	require.Empty(t, res.Successes())
	require.Len(t, res.Failures(), 1, "a second crash is recorded as one failure")
	require.Len(t, launcher.Browsers, 2, "the browser is restarted after the first crash")
	require.True(t, launcher.Browsers[0].Closed)
}

func TestHandlingOfTestThatReturnsNonFatalErrors(t *testing.T) {
	test := newRecordingTest()
	test.validate = func(context.Context, *model.Page, browser.Tab, *results.Results) error {
		if test.validations == 1 {
			return errors.New("expected error")
		}
		return nil
	}

	res, err := New(&browsertest.Launcher{}, noneOptions()).Run(context.Background(), test, blankPages(2), nil)
	require.NoError(t, err)
	require.Equal(t, 2, test.validations)
	require.Len(t, res.Successes(), 1)
	require.Len(t, res.Failures(), 1)
	require.Equal(t, "expected error", res.Failures()[0].Message)
}

func TestHandlingOfCrashedTabWithExpectedFailure(t *testing.T) {
	ps := &model.PageSet{}
	ps.AddPage("chrome://crash")
	exp := NewExpectations()
	exp.Fail("chrome://crash", "crashes on purpose")
	launcher := &browsertest.Launcher{NavigateFunc: crashOn("chrome://crash")}

	res, err := New(launcher, noneOptions()).Run(context.Background(), newRecordingTest(), ps, exp)
	require.NoError(t, err)
	require.Len(t, res.Successes(), 1)
	require.Empty(t, res.Failures())
}

func TestRetryOnBrowserCrash(t *testing.T) {
	test := newRecordingTest()
	test.validate = func(context.Context, *model.Page, browser.Tab, *results.Results) error {
		if test.validations == 1 {
			return browser.NewBrowserGone("crashed during measurement")
		}
		return nil
	}
	launcher := &browsertest.Launcher{}
	reg := prometheus.NewRegistry()

	opts := noneOptions()
	opts.OutputFormat = results.FormatCSV
	res, err := New(launcher, opts, WithMetrics(metrics.New(reg)), WithOutput(&bytes.Buffer{})).
		Run(context.Background(), test, blankPages(1), nil)
	require.NoError(t, err)
	require.Len(t, res.Successes(), 1)
	require.Empty(t, res.Failures())
	require.Len(t, launcher.Launched, 2)
	require.Equal(t, 2, test.cleanups)

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP pagerunner_browser_launches_total Count of browser launches
# TYPE pagerunner_browser_launches_total counter
pagerunner_browser_launches_total 2
# HELP pagerunner_page_retries_total Count of page attempts retried after a browser crash
# TYPE pagerunner_page_retries_total counter
pagerunner_page_retries_total 1
`), "pagerunner_browser_launches_total", "pagerunner_page_retries_total"))
}

func TestTimeoutHandling(t *testing.T) {
	for _, tc := range []struct {
		name      string
		err       error
		successes int
		failures  int
		launches  int
	}{
		{
			name:     "plain timeout fails the page",
			err:      &browser.TimeoutError{What: "page to load", Timeout: time.Second},
			failures: 1,
			launches: 1,
		},
		{
			name:      "timeout caused by a crash is retried",
			err:       &browser.TimeoutError{What: "page to load", Timeout: time.Second, Err: browser.NewTabCrash("")},
			successes: 1,
			launches:  2,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			test := newRecordingTest()
			test.validate = func(context.Context, *model.Page, browser.Tab, *results.Results) error {
				if test.validations == 1 {
					return tc.err
				}
				return nil
			}
			launcher := &browsertest.Launcher{}

			res, err := New(launcher, noneOptions()).Run(context.Background(), test, blankPages(1), nil)
			require.NoError(t, err)
			require.Len(t, res.Successes(), tc.successes)
			require.Len(t, res.Failures(), tc.failures)
			require.Len(t, launcher.Launched, tc.launches)
		})
	}
}

func TestDiscardFirstResult(t *testing.T) {
	for _, tc := range []struct {
		name          string
		pageRepeat    int
		pagesetRepeat int
		format        results.Format
		successes     int
	}{
		{name: "once", pageRepeat: 1, pagesetRepeat: 1, format: results.FormatNone, successes: 0},
		{name: "pageset repeat", pageRepeat: 1, pagesetRepeat: 2, format: results.FormatNone, successes: 2},
		{name: "page repeat", pageRepeat: 2, pagesetRepeat: 1, format: results.FormatNone, successes: 2},
		{name: "html", pageRepeat: 1, pagesetRepeat: 1, format: results.FormatHTML, successes: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			test := newRecordingTest()
			test.discardFirst = true
			opts := noneOptions()
			opts.PageRepeat = tc.pageRepeat
			opts.PagesetRepeat = tc.pagesetRepeat
			opts.OutputFormat = tc.format

			var buf bytes.Buffer
			res, err := New(&browsertest.Launcher{}, opts, WithOutput(&buf)).Run(context.Background(), test, blankPages(2), nil)
			require.NoError(t, err)
			require.Len(t, res.Successes(), tc.successes)
			require.Empty(t, res.Failures())
			require.NoError(t, res.PrintSummary())
		})
	}
}

func TestDiscardFirstResultKeepsFailures(t *testing.T) {
	test := newRecordingTest()
	test.discardFirst = true
	test.validate = func(context.Context, *model.Page, browser.Tab, *results.Results) error {
		if test.validations == 1 {
			return Failf("first run failed")
		}
		return nil
	}
	opts := noneOptions()
	opts.PageRepeat = 2

	res, err := New(&browsertest.Launcher{}, opts).Run(context.Background(), test, blankPages(1), nil)
	require.NoError(t, err)
	require.Len(t, res.Failures(), 1)
	require.Len(t, res.Successes(), 1)
}

func TestPagesetRepeat(t *testing.T) {
	ps := &model.PageSet{}
	ps.AddPage("file://blank.html")
	ps.AddPage("file://green_rect.html")

	test := newRecordingTest()
	i := 0.0
	test.validate = func(_ context.Context, page *model.Page, _ browser.Tab, res *results.Results) error {
		i++
		return res.AddValue(value.NewScalar(page, "metric", "unit", i))
	}

	outputFile := filepath.Join(t.TempDir(), "results.txt")
	opts := config.DefaultRunOptions()
	opts.PagesetRepeat = 2
	opts.OutputFile = outputFile
	launcher := &browsertest.Launcher{}

	res, err := New(launcher, opts).Run(context.Background(), test, ps, nil)
	require.NoError(t, err)
	require.NoError(t, res.PrintSummary())
	require.Len(t, res.Successes(), 4)
	require.Empty(t, res.Failures())

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	stdout := string(data)
	require.Contains(t, stdout, "RESULT metric: blank.html= [1,3] unit")
	require.Contains(t, stdout, "RESULT metric: green_rect.html= [2,4] unit")
	require.Contains(t, stdout, "*RESULT metric: metric= [1,2,3,4] unit")

	require.Equal(t,
		[]string{"file://blank.html", "file://green_rect.html", "file://blank.html", "file://green_rect.html"},
		launcher.Last().Navigations())
}

func TestPageRepeatOrder(t *testing.T) {
	ps := &model.PageSet{}
	ps.AddPage("file://blank.html")
	ps.AddPage("file://green_rect.html")
	opts := noneOptions()
	opts.PageRepeat = 2
	opts.PagesetRepeat = 2
	launcher := &browsertest.Launcher{}

	_, err := New(launcher, opts).Run(context.Background(), newRecordingTest(), ps, nil)
	require.NoError(t, err)
	require.Equal(t, []string{
		"file://blank.html", "file://blank.html", "file://green_rect.html", "file://green_rect.html",
		"file://blank.html", "file://blank.html", "file://green_rect.html", "file://green_rect.html",
	}, launcher.Last().Navigations())
}

type stubCredentialsBackend struct {
	loginResult               bool
	didGetLogin               bool
	didGetLoginNoLongerNeeded bool
}

func (b *stubCredentialsBackend) CredentialsType() string { return "test" }

func (b *stubCredentialsBackend) LoginNeeded(context.Context, browser.Tab, map[string]any) (bool, error) {
	b.didGetLogin = true
	return b.loginResult, nil
}

func (b *stubCredentialsBackend) LoginNoLongerNeeded(context.Context, browser.Tab) error {
	b.didGetLoginNoLongerNeeded = true
	return nil
}

func runCredentialsTest(t *testing.T, backend *stubCredentialsBackend) (*recordingTest, *results.Results) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(simpleCredentials), 0600))

	ps := &model.PageSet{CredentialsPath: path}
	page := ps.AddPage("file://blank.html")
	page.Credentials = "test"

	test := newRecordingTest()
	res, err := New(&browsertest.Launcher{}, noneOptions(), WithCredentialsBackend(backend)).
		Run(context.Background(), test, ps, nil)
	require.NoError(t, err)
	return test, res
}

func TestCredentialsWhenLoginFails(t *testing.T) {
	backend := &stubCredentialsBackend{loginResult: false}
	test, res := runCredentialsTest(t, backend)
	require.True(t, backend.didGetLogin)
	require.False(t, backend.didGetLoginNoLongerNeeded)
	require.Zero(t, test.validations)
	require.Len(t, res.Skipped(), 1)
}

func TestCredentialsWhenLoginSucceeds(t *testing.T) {
	backend := &stubCredentialsBackend{loginResult: true}
	test, res := runCredentialsTest(t, backend)
	require.True(t, backend.didGetLogin)
	require.True(t, backend.didGetLoginNoLongerNeeded)
	require.Equal(t, 1, test.validations)
	require.Len(t, res.Successes(), 1)
}

func TestUnknownCredentialsTypeFails(t *testing.T) {
	ps := &model.PageSet{}
	page := ps.AddPage("file://blank.html")
	page.Credentials = "google"

	res, err := New(&browsertest.Launcher{}, noneOptions()).Run(context.Background(), newRecordingTest(), ps, nil)
	require.NoError(t, err)
	require.Len(t, res.Failures(), 1)
}

func TestOneTab(t *testing.T) {
	launcher := &browsertest.Launcher{}
	test := newRecordingTest()
	test.didStart = func(ctx context.Context, b browser.Browser) error {
		_, err := b.Tabs().New(ctx)
		return err
	}
	test.validate = func(context.Context, *model.Page, browser.Tab, *results.Results) error {
		if n := launcher.Last().Tabs().Len(); n != 1 {
			return Failf("expected 1 tab, got %d", n)
		}
		return nil
	}

	res, err := New(launcher, noneOptions()).Run(context.Background(), test, blankPages(1), nil)
	require.NoError(t, err)
	require.Len(t, res.Successes(), 1)
}

func TestBrowserBeforeLaunch(t *testing.T) {
	test := newRecordingTest()
	_, err := New(&browsertest.Launcher{}, noneOptions()).Run(context.Background(), test, blankPages(1), nil)
	require.NoError(t, err)
	require.Equal(t, []string{
		"WillStartBrowser",
		"DidStartBrowser",
		"WillNavigateToPage",
		"DidNavigateToPage",
		"ValidatePage",
		"CleanUpAfterPage",
	}, test.calls)
}

func TestRunPageWithStartupURL(t *testing.T) {
	ps := &model.PageSet{}
	page := ps.AddPage("file://blank.html")
	page.StartupURL = "about:blank"
	ps.AddPage("file://green_rect.html")

	opts := noneOptions()
	opts.PageRepeat = 2
	launcher := &browsertest.Launcher{}
	test := newRecordingTest()

	res, err := New(launcher, opts).Run(context.Background(), test, ps, nil)
	require.NoError(t, err)
	require.Len(t, res.Successes(), 4)
	require.Equal(t, 1, test.customized)
	require.Len(t, launcher.Launched, 2, "the startup URL browser is reused for repeats only")
	require.Equal(t, "about:blank", launcher.Launched[0].StartupURL)
	require.Empty(t, launcher.Launched[1].StartupURL)
	require.True(t, launcher.Browsers[0].Closed)
}

func TestCleanUpPage(t *testing.T) {
	test := newRecordingTest()
	test.validate = func(context.Context, *model.Page, browser.Tab, *results.Results) error {
		return Failf("intentional failure")
	}

	res, err := New(&browsertest.Launcher{}, noneOptions()).Run(context.Background(), test, blankPages(1), nil)
	require.NoError(t, err)
	require.Equal(t, 1, test.cleanups)
	require.Len(t, res.Failures(), 1)
	require.Equal(t, "intentional failure", res.Failures()[0].Message)
}

func TestPageCannotRunOnBrowser(t *testing.T) {
	ps := &model.PageSet{}
	page := ps.AddPage("file://blank.html")
	page.CanRunOnBrowser = func(browser.Browser) bool { return false }

	test := newRecordingTest()
	res, err := New(&browsertest.Launcher{}, noneOptions()).Run(context.Background(), test, ps, nil)
	require.NoError(t, err)
	require.NotContains(t, test.calls, "WillNavigateToPage")
	require.Empty(t, res.Successes())
	require.Empty(t, res.Failures())
	require.Len(t, res.Skipped(), 1)
}

func TestTestCannotRunOnBrowser(t *testing.T) {
	test := newRecordingTest()
	test.cannotRun = true
	res, err := New(&browsertest.Launcher{}, noneOptions()).Run(context.Background(), test, blankPages(1), nil)
	require.NoError(t, err)
	require.Zero(t, test.validations)
	require.Len(t, res.Skipped(), 1)
}

func TestUseLiveSites(t *testing.T) {
	for _, tc := range []struct {
		name         string
		useLiveSites bool
		wantArchive  string
	}{
		{name: "archive", useLiveSites: false, wantArchive: filepath.Join("/data/unittest", "data/archive_blank.json")},
		{name: "live", useLiveSites: true, wantArchive: ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ps := &model.PageSet{ArchiveDataFile: "data/archive_blank.json", BaseDir: "/data/unittest"}
			ps.AddPage("file://blank.html")
			opts := noneOptions()
			opts.UseLiveSites = tc.useLiveSites
			launcher := &browsertest.Launcher{}

			_, err := New(launcher, opts).Run(context.Background(), newRecordingTest(), ps, nil)
			require.NoError(t, err)
			require.Len(t, launcher.Launched, 1)
			require.Equal(t, tc.wantArchive, launcher.Launched[0].ArchivePath)
		})
	}
}

func TestMaxFailuresOptionIsRespected(t *testing.T) {
	ps := &model.PageSet{}
	ran := make([]bool, 5)
	for i := range ran {
		page := ps.AddPage("file://blank.html")
		page.NavigateSteps = func(context.Context, browser.Tab) error {
			ran[i] = true
			return errors.New("test error")
		}
	}

	test := newRecordingTest()
	test.maxFailures = 2
	reg := prometheus.NewRegistry()
	res, err := New(&browsertest.Launcher{}, noneOptions(), WithMetrics(metrics.New(reg))).
		Run(context.Background(), test, ps, nil)
	require.NoError(t, err)
	require.Empty(t, res.Successes())
	// Runs up to max failures + 1 pages before stopping.
	require.Len(t, res.Failures(), 3)
	require.Equal(t, []bool{true, true, true, false, false}, ran)
	require.Equal(t, 3, test.cleanups)

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP pagerunner_pages_abandoned_total Count of pages not run because of the failure cutoff
# TYPE pagerunner_pages_abandoned_total counter
pagerunner_pages_abandoned_total 2
`), "pagerunner_pages_abandoned_total"))
}

func TestMaxFailuresRunOptionWins(t *testing.T) {
	test := newRecordingTest()
	test.maxFailures = 2
	test.validate = func(context.Context, *model.Page, browser.Tab, *results.Results) error {
		return Failf("always fails")
	}
	opts := noneOptions()
	opts.MaxFailures = 0

	res, err := New(&browsertest.Launcher{}, opts).Run(context.Background(), test, blankPages(3), nil)
	require.NoError(t, err)
	require.Len(t, res.Failures(), 1)
}

func TestInconsistentResultsAbortRun(t *testing.T) {
	test := newRecordingTest()
	test.validate = func(_ context.Context, page *model.Page, _ browser.Tab, res *results.Results) error {
		return res.AddValue(value.NewString(page, "url", "", page.URL))
	}

	res, err := New(&browsertest.Launcher{}, noneOptions()).Run(context.Background(), test, blankPages(2), nil)
	require.Error(t, err)
	require.True(t, results.IsConsistencyError(err))
	require.Equal(t, 1, test.validations)
	require.Empty(t, res.Runs())
	require.Nil(t, res.CurrentPage())
}

func TestSkipExpectation(t *testing.T) {
	ps := &model.PageSet{}
	ps.AddPage("http://www.foo.com/slow")
	ps.AddPage("http://www.bar.com/")
	exp := NewExpectations()
	exp.Skip("http://www.foo.com/*", "too slow")
	launcher := &browsertest.Launcher{}

	res, err := New(launcher, noneOptions()).Run(context.Background(), newRecordingTest(), ps, exp)
	require.NoError(t, err)
	require.Len(t, res.Skipped(), 1)
	require.Equal(t, "too slow", res.Skipped()[0].Message)
	require.Len(t, res.Successes(), 1)
	require.Equal(t, []string{"http://www.bar.com/"}, launcher.Last().Navigations())
}

func TestLaunchErrorAbortsRun(t *testing.T) {
	launcher := &browsertest.Launcher{LaunchErr: errors.New("no browser binary")}
	_, err := New(launcher, noneOptions()).Run(context.Background(), newRecordingTest(), blankPages(2), nil)
	require.ErrorContains(t, err, "no browser binary")
	require.Len(t, launcher.Launched, 1)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	test := newRecordingTest()
	_, err := New(&browsertest.Launcher{}, noneOptions()).Run(ctx, test, blankPages(1), nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, test.validations)
}

func TestInvalidRunOptions(t *testing.T) {
	opts := noneOptions()
	opts.PageRepeat = 0
	_, err := New(&browsertest.Launcher{}, opts).Run(context.Background(), newRecordingTest(), blankPages(1), nil)
	require.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Run = noneOptions()
	cfg.Run.MaxFailures = 0
	cfg.Browser = config.Browser{UserAgentType: "tablet", ExtraArgs: []string{"--no-first-run"}}

	test := newRecordingTest()
	test.validate = func(context.Context, *model.Page, browser.Tab, *results.Results) error {
		return Failf("broken")
	}
	launcher := &browsertest.Launcher{}
	res, err := NewFromConfig(launcher, cfg).Run(context.Background(), test, blankPages(3), nil)
	require.NoError(t, err)
	require.Len(t, res.Failures(), 1, "max_failures from the config stops the run")

	require.Len(t, launcher.Launched, 1)
	require.Equal(t, "tablet", launcher.Launched[0].UserAgentType)
	require.Equal(t, []string{"--no-first-run"}, launcher.Launched[0].ExtraArgs)
}
