package browser

import (
	"errors"
	"fmt"
	"time"
)

// CrashKind tells which part of the browser went away.
type CrashKind string

const (
	CrashBrowserGone CrashKind = "browser gone"
	CrashTab         CrashKind = "tab crashed"
)

// CrashError reports that the browser or one of its tabs became unusable.
type CrashError struct {
	Kind   CrashKind
	Reason string
	Err    error
}

// NewBrowserGone returns a CrashError for a browser that disappeared.
func NewBrowserGone(reason string) *CrashError {
	return &CrashError{Kind: CrashBrowserGone, Reason: reason}
}

// NewTabCrash returns a CrashError for a crashed tab.
func NewTabCrash(reason string) *CrashError {
	return &CrashError{Kind: CrashTab, Reason: reason}
}

func (e *CrashError) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CrashError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a condition that was not met before its deadline.
type TimeoutError struct {
	What    string
	Timeout time.Duration
	// Last error returned by the condition, if any
	Err error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.What)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// IsCrash reports whether err, or any error it wraps, is a *CrashError.
// A timeout caused by a crash counts as a crash.
func IsCrash(err error) bool {
	var crash *CrashError
	return errors.As(err, &crash)
}

// IsTimeout reports whether err, or any error it wraps, is a *TimeoutError.
func IsTimeout(err error) bool {
	var timeout *TimeoutError
	return errors.As(err, &timeout)
}
