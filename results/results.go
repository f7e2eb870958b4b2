// Package results collects the values page tests report, one page scope at
// a time, and prints summaries of them.
package results

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/perfgo/pagerunner/model"
	"github.com/perfgo/pagerunner/value"
	"github.com/rs/zerolog"
)

// ReservedName cannot be used as a value name, summaries use it for the
// page column.
const ReservedName = "url"

// Status is the outcome of one page run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// PageRun is the record of one attempt at one page.
type PageRun struct {
	Page    *model.Page
	Status  Status
	Message string
	Values  []value.Value
	Start   time.Time
	End     time.Time
}

// Duration returns the wall time the run took.
func (r *PageRun) Duration() time.Duration {
	if r.End.Before(r.Start) {
		return 0
	}
	return r.End.Sub(r.Start)
}

type nameInfo struct {
	units string
	kind  value.Kind
}

// Results is the aggregator of one run. It is not safe for concurrent use.
type Results struct {
	logger  zerolog.Logger
	format  Format
	out     io.Writer
	outPath string
	pageSet *model.PageSet
	now     func() time.Time

	runs          []*PageRun
	current       *PageRun
	names         map[string]nameInfo
	summaryValues []value.Value
}

// Option configures Results.
type Option func(*Results)

// WithFormat selects the summary format, FormatNone by default.
func WithFormat(f Format) Option {
	return func(r *Results) { r.format = f }
}

// WithOutput sets where PrintSummary writes, stdout by default.
func WithOutput(w io.Writer) Option {
	return func(r *Results) { r.out = w }
}

// WithOutputFile makes PrintSummary write to the file at path, replacing
// its content.
func WithOutputFile(path string) Option {
	return func(r *Results) { r.outPath = path }
}

// WithPageSet sets the page set used to order and name pages in summaries.
func WithPageSet(s *model.PageSet) Option {
	return func(r *Results) { r.pageSet = s }
}

// WithClock overrides the clock used to stamp page runs.
func WithClock(now func() time.Time) Option {
	return func(r *Results) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Results) { r.logger = logger }
}

// New creates an empty aggregator.
func New(opts ...Option) *Results {
	r := &Results{
		logger: zerolog.Nop(),
		format: FormatNone,
		out:    os.Stdout,
		now:    time.Now,
		names:  make(map[string]nameInfo),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Format returns the selected summary format.
func (r *Results) Format() Format {
	return r.format
}

// WillMeasurePage opens the scope of a new run of page.
func (r *Results) WillMeasurePage(page *model.Page) error {
	if r.current != nil {
		return consistencyErrorf("WillMeasurePage", "page %s is still being measured", r.current.Page)
	}
	r.current = &PageRun{Page: page, Status: StatusSuccess, Start: r.now()}
	r.logger.Debug().Str("page", page.URL).Msg("Measuring page")
	return nil
}

// AddValue adds a value to the current page scope.
func (r *Results) AddValue(v value.Value) error {
	if v.Name() == ReservedName {
		return consistencyErrorf("AddValue", "%q is a reserved value name", ReservedName)
	}
	if r.current == nil {
		return consistencyErrorf("AddValue", "value %q added outside of a page scope", v.Name())
	}
	if v.Page() != r.current.Page {
		return consistencyErrorf("AddValue", "value %q belongs to page %s, but %s is being measured", v.Name(), v.Page(), r.current.Page)
	}
	if err := r.checkName("AddValue", v); err != nil {
		return err
	}
	r.current.Values = append(r.current.Values, v)
	return nil
}

func (r *Results) checkName(op string, v value.Value) error {
	info, ok := r.names[v.Name()]
	if !ok {
		r.names[v.Name()] = nameInfo{units: v.Units(), kind: v.Kind()}
		return nil
	}
	if info.units != v.Units() {
		return consistencyErrorf(op, "value %q changed units from %q to %q", v.Name(), info.units, v.Units())
	}
	if info.kind != v.Kind() {
		return consistencyErrorf(op, "value %q changed kind from %s to %s", v.Name(), info.kind, v.Kind())
	}
	return nil
}

// AddFailureMessage marks the run of page as failed. It is an error to
// mark page while another page is being measured.
func (r *Results) AddFailureMessage(page *model.Page, msg string) error {
	return r.mark("AddFailureMessage", page, StatusFailure, msg)
}

// AddSkipMessage marks the run of page as skipped. It is an error to mark
// page while another page is being measured.
func (r *Results) AddSkipMessage(page *model.Page, msg string) error {
	return r.mark("AddSkipMessage", page, StatusSkipped, msg)
}

// mark sets the status of the current scope if it is for page. Without an
// open scope the latest finished run of page is marked, else a new run.
func (r *Results) mark(op string, page *model.Page, status Status, msg string) error {
	run := r.current
	if run != nil && run.Page != page {
		return consistencyErrorf(op, "page %s marked while measuring %s", page.URL, run.Page.URL)
	}
	if run == nil {
		run = r.latestRun(page)
	}
	if run == nil {
		now := r.now()
		run = &PageRun{Page: page, Start: now, End: now}
		r.runs = append(r.runs, run)
	}
	run.Status = status
	run.Message = msg
	r.logger.Debug().Str("page", page.URL).Str("status", string(status)).Str("message", msg).Msg("Marked page run")
	return nil
}

func (r *Results) latestRun(page *model.Page) *PageRun {
	for i := len(r.runs) - 1; i >= 0; i-- {
		if r.runs[i].Page == page {
			return r.runs[i]
		}
	}
	return nil
}

// DidMeasurePage closes the current page scope.
func (r *Results) DidMeasurePage() error {
	if r.current == nil {
		return consistencyErrorf("DidMeasurePage", "no page is being measured")
	}
	r.current.End = r.now()
	r.runs = append(r.runs, r.current)
	r.logger.Debug().
		Str("page", r.current.Page.URL).
		Str("status", string(r.current.Status)).
		Int("values", len(r.current.Values)).
		Msg("Finished measuring page")
	r.current = nil
	return nil
}

// AbandonCurrentPage drops the current page scope and its values.
func (r *Results) AbandonCurrentPage() {
	if r.current != nil {
		r.logger.Debug().Str("page", r.current.Page.URL).Msg("Abandoned page run")
	}
	r.current = nil
}

// DiscardLastSuccess removes the most recent run if it succeeded and
// reports whether it did.
func (r *Results) DiscardLastSuccess() bool {
	if len(r.runs) == 0 {
		return false
	}
	last := r.runs[len(r.runs)-1]
	if last.Status != StatusSuccess {
		return false
	}
	r.runs = r.runs[:len(r.runs)-1]
	r.logger.Debug().Str("page", last.Page.URL).Msg("Discarded page run")
	return true
}

// AddSummaryValue adds a value describing the whole run.
func (r *Results) AddSummaryValue(v value.Value) error {
	if v.Page() != nil {
		return consistencyErrorf("AddSummaryValue", "summary value %q must not have a page", v.Name())
	}
	if r.current != nil {
		return consistencyErrorf("AddSummaryValue", "summary value %q added while page %s is being measured", v.Name(), r.current.Page)
	}
	if v.Name() == ReservedName {
		return consistencyErrorf("AddSummaryValue", "%q is a reserved value name", ReservedName)
	}
	if err := r.checkName("AddSummaryValue", v); err != nil {
		return err
	}
	r.summaryValues = append(r.summaryValues, v)
	return nil
}

// CurrentPageValues returns the values of the current page scope.
func (r *Results) CurrentPageValues() ([]value.Value, error) {
	if r.current == nil {
		return nil, consistencyErrorf("CurrentPageValues", "no page is being measured")
	}
	return r.current.Values, nil
}

// CurrentPage returns the page being measured, nil outside of a scope.
func (r *Results) CurrentPage() *model.Page {
	if r.current == nil {
		return nil
	}
	return r.current.Page
}

// Runs returns every finished run in order.
func (r *Results) Runs() []*PageRun {
	return r.runs
}

func (r *Results) runsWithStatus(status Status) []*PageRun {
	var runs []*PageRun
	for _, run := range r.runs {
		if run.Status == status {
			runs = append(runs, run)
		}
	}
	return runs
}

// Successes returns the successful runs in order.
func (r *Results) Successes() []*PageRun {
	return r.runsWithStatus(StatusSuccess)
}

// Failures returns the failed runs in order.
func (r *Results) Failures() []*PageRun {
	return r.runsWithStatus(StatusFailure)
}

// Skipped returns the skipped runs in order.
func (r *Results) Skipped() []*PageRun {
	return r.runsWithStatus(StatusSkipped)
}

// SummaryValues returns the values added with AddSummaryValue.
func (r *Results) SummaryValues() []value.Value {
	return r.summaryValues
}

// AllPageSpecificValues returns the values of every successful run in
// the order they were added.
func (r *Results) AllPageSpecificValues() []value.Value {
	var values []value.Value
	for _, run := range r.Successes() {
		values = append(values, run.Values...)
	}
	return values
}

// FindAllPageSpecificValuesNamed returns the values named name of every
// successful run.
func (r *Results) FindAllPageSpecificValuesNamed(name string) []value.Value {
	var values []value.Value
	for _, v := range r.AllPageSpecificValues() {
		if v.Name() == name {
			values = append(values, v)
		}
	}
	return values
}

// FindPageSpecificValuesForPage returns the values named name measured on
// page by successful runs.
func (r *Results) FindPageSpecificValuesForPage(page *model.Page, name string) []value.Value {
	var values []value.Value
	for _, v := range r.AllPageSpecificValues() {
		if v.Page() == page && v.Name() == name {
			values = append(values, v)
		}
	}
	return values
}

// PageName returns the name of page in summaries.
func (r *Results) PageName(page *model.Page) string {
	if r.pageSet != nil {
		return r.pageSet.DisplayName(page)
	}
	return page.DisplayName()
}

// Summary renders the summary in the selected format. It is empty for the
// none format.
func (r *Results) Summary() (string, error) {
	formatter, err := NewFormatter(r.format)
	if err != nil {
		return "", err
	}
	content, err := formatter.Format(r)
	if err != nil {
		return "", fmt.Errorf("failed to format %s summary: %w", r.format, err)
	}
	return content, nil
}

// PrintSummary writes the summary in the selected format.
func (r *Results) PrintSummary() error {
	content, err := r.Summary()
	if err != nil {
		return err
	}
	if content == "" {
		return nil
	}

	out := r.out
	if r.outPath != "" {
		f, err := os.Create(r.outPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if _, err := io.WriteString(out, content); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// metricNames returns the names of the values of successful runs in the
// order they first appear, with their units.
func (r *Results) metricNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, v := range r.AllPageSpecificValues() {
		if seen[v.Name()] {
			continue
		}
		seen[v.Name()] = true
		names = append(names, v.Name())
	}
	return names
}

// unitsOf returns the units registered for name.
func (r *Results) unitsOf(name string) string {
	return r.names[name].units
}

// pageNamesInOrder returns the names of pages with successful runs, in
// page set order when a page set is known, otherwise in run order.
func (r *Results) pageNamesInOrder() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(p *model.Page) {
		name := r.PageName(p)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if r.pageSet != nil {
		for _, p := range r.pageSet.Pages {
			add(p)
		}
	}
	for _, run := range r.Successes() {
		add(run.Page)
	}
	return names
}
