package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/perfgo/pagerunner/browser"
	"github.com/perfgo/pagerunner/config"
	"github.com/perfgo/pagerunner/model"
	"github.com/perfgo/pagerunner/results"
)

// PageTest is driven over every page of a page set. Measurements add
// values to the results in ValidatePage.
type PageTest interface {
	CanRunOnBrowser(b browser.Browser) bool
	// CustomizeBrowserOptionsForSinglePage adjusts the launch options of a
	// browser started for a page with its own startup URL.
	CustomizeBrowserOptionsForSinglePage(page *model.Page, opts *browser.Options)
	WillStartBrowser(opts *browser.Options)
	DidStartBrowser(ctx context.Context, b browser.Browser) error
	WillNavigateToPage(ctx context.Context, page *model.Page, tab browser.Tab) error
	DidNavigateToPage(ctx context.Context, page *model.Page, tab browser.Tab) error
	ValidatePage(ctx context.Context, page *model.Page, tab browser.Tab, res *results.Results) error
	CleanUpAfterPage(ctx context.Context, page *model.Page, tab browser.Tab) error
	// DiscardFirstResult drops the first run of every page when it
	// succeeded, e.g. to ignore cold cache runs.
	DiscardFirstResult() bool
	// MaxFailures is used when the run options leave it unbounded.
	MaxFailures() int
}

// Base implements PageTest with no-op hooks. Embed it and override what
// the test needs.
type Base struct{}

var _ PageTest = Base{}

func (Base) CanRunOnBrowser(browser.Browser) bool { return true }

func (Base) CustomizeBrowserOptionsForSinglePage(*model.Page, *browser.Options) {}

func (Base) WillStartBrowser(*browser.Options) {}

func (Base) DidStartBrowser(context.Context, browser.Browser) error { return nil }

func (Base) WillNavigateToPage(context.Context, *model.Page, browser.Tab) error { return nil }

func (Base) DidNavigateToPage(context.Context, *model.Page, browser.Tab) error { return nil }

func (Base) ValidatePage(context.Context, *model.Page, browser.Tab, *results.Results) error {
	return nil
}

func (Base) CleanUpAfterPage(context.Context, *model.Page, browser.Tab) error { return nil }

func (Base) DiscardFirstResult() bool { return false }

func (Base) MaxFailures() int { return config.Unbounded }

// ValidationError is returned by a page test when the page did not pass
// its checks.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Failf returns a *ValidationError.
func Failf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// OutcomeKind classifies one attempt at a page.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Failure
	Skipped
	// Retry means the browser crashed and the page should run again
	Retry
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Skipped:
		return "skipped"
	case Retry:
		return "retry"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of one attempt.
type Outcome struct {
	Kind OutcomeKind
	// Reason of a failure or skip
	Reason string
	Err    error
}

func succeeded() Outcome {
	return Outcome{Kind: Success}
}

func failed(err error) Outcome {
	return Outcome{Kind: Failure, Reason: err.Error(), Err: err}
}

func skipped(reason string) Outcome {
	return Outcome{Kind: Skipped, Reason: reason}
}

func retry(err error) Outcome {
	return Outcome{Kind: Retry, Reason: err.Error(), Err: err}
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Kind.String()
	}
	return o.Kind.String() + ": " + o.Reason
}
