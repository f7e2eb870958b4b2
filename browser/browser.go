// Package browser defines the browser control surface the page runner
// drives. Concrete browsers live outside this module; browsertest provides
// an in-memory implementation for tests.
package browser

import (
	"context"
	"time"
)

// Options describe how a browser is launched.
type Options struct {
	// URL the browser opens on startup, empty for the default
	StartupURL string
	// Web page replay archive served to the browser, empty for live sites
	ArchivePath string
	// User agent emulation (desktop, mobile, tablet)
	UserAgentType string
	// Extra command line arguments for the browser binary
	ExtraArgs []string
}

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Browser, error)
}

// Browser is a running browser instance.
type Browser interface {
	Tabs() TabList
	// Close shuts the browser down. Closing a crashed browser is not an error.
	Close(ctx context.Context) error
}

// TabList is the live collection of tabs of a browser.
type TabList interface {
	Len() int
	Get(i int) Tab
	New(ctx context.Context) (Tab, error)
}

// Tab is a single browser tab. All methods may return a *CrashError when
// the tab or its browser is gone.
type Tab interface {
	Navigate(ctx context.Context, url string) error
	EvaluateJavaScript(ctx context.Context, expr string) (any, error)
	// WaitForCondition waits until expr evaluates to a truthy value, or
	// returns a *TimeoutError after timeout.
	WaitForCondition(ctx context.Context, expr string, timeout time.Duration) error
	Close(ctx context.Context) error
}
