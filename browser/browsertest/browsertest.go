// Package browsertest provides an in-memory browser for exercising code
// that drives the browser control surface.
package browsertest

import (
	"context"
	"errors"
	"time"

	"github.com/perfgo/pagerunner/browser"
)

// Launcher launches fake browsers and remembers every launch.
type Launcher struct {
	// Options of every launch, in order
	Launched []browser.Options
	// Browsers returned by Launch, in order
	Browsers []*Browser
	// LaunchErr is returned by Launch when set
	LaunchErr error
	// InitialTabs is the number of tabs a new browser opens with (default 1)
	InitialTabs int
	// NavigateFunc, when set, decides the result of every navigation
	NavigateFunc func(ctx context.Context, url string) error
	// EvalFunc, when set, answers every JavaScript evaluation
	EvalFunc func(ctx context.Context, expr string) (any, error)
}

var _ browser.Launcher = (*Launcher)(nil)

// Launch implements browser.Launcher.
func (l *Launcher) Launch(_ context.Context, opts browser.Options) (browser.Browser, error) {
	l.Launched = append(l.Launched, opts)
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}

	b := &Browser{Options: opts, launcher: l}
	n := l.InitialTabs
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		b.tabs = append(b.tabs, &Tab{browser: b})
	}
	l.Browsers = append(l.Browsers, b)
	return b, nil
}

// Last returns the most recently launched browser.
func (l *Launcher) Last() *Browser {
	if len(l.Browsers) == 0 {
		return nil
	}
	return l.Browsers[len(l.Browsers)-1]
}

// Browser is a fake browser.Browser.
type Browser struct {
	Options browser.Options
	Closed  bool

	launcher *Launcher
	tabs     []*Tab
}

var _ browser.Browser = (*Browser)(nil)

// Tabs implements browser.Browser.
func (b *Browser) Tabs() browser.TabList {
	return (*tabList)(b)
}

// Close implements browser.Browser.
func (b *Browser) Close(_ context.Context) error {
	b.Closed = true
	return nil
}

// Navigations returns every URL navigated to in any tab of the browser.
func (b *Browser) Navigations() []string {
	var urls []string
	for _, t := range b.tabs {
		urls = append(urls, t.Navigations...)
	}
	return urls
}

type tabList Browser

func (l *tabList) Len() int {
	return len(l.tabs)
}

func (l *tabList) Get(i int) browser.Tab {
	return l.tabs[i]
}

func (l *tabList) New(_ context.Context) (browser.Tab, error) {
	if l.Closed {
		return nil, browser.NewBrowserGone("browser closed")
	}
	t := &Tab{browser: (*Browser)(l)}
	l.tabs = append(l.tabs, t)
	return t, nil
}

// Tab is a fake browser.Tab.
type Tab struct {
	Navigations []string

	browser *Browser
}

var _ browser.Tab = (*Tab)(nil)

// Navigate implements browser.Tab.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	if t.browser.Closed {
		return browser.NewBrowserGone("browser closed")
	}
	t.Navigations = append(t.Navigations, url)
	if t.browser.launcher.NavigateFunc != nil {
		return t.browser.launcher.NavigateFunc(ctx, url)
	}
	return nil
}

// EvaluateJavaScript implements browser.Tab.
func (t *Tab) EvaluateJavaScript(ctx context.Context, expr string) (any, error) {
	if t.browser.Closed {
		return nil, browser.NewBrowserGone("browser closed")
	}
	if t.browser.launcher.EvalFunc != nil {
		return t.browser.launcher.EvalFunc(ctx, expr)
	}
	return nil, errors.New("no JavaScript engine in fake browser")
}

// WaitForCondition implements browser.Tab.
func (t *Tab) WaitForCondition(ctx context.Context, expr string, timeout time.Duration) error {
	return browser.WaitFor(ctx, expr, timeout, time.Millisecond, func(ctx context.Context) (bool, error) {
		v, err := t.EvaluateJavaScript(ctx, expr)
		if err != nil {
			return false, err
		}
		return browser.Truthy(v), nil
	})
}

// Close implements browser.Tab.
func (t *Tab) Close(_ context.Context) error {
	tabs := t.browser.tabs
	for i, other := range tabs {
		if other == t {
			t.browser.tabs = append(tabs[:i], tabs[i+1:]...)
			return nil
		}
	}
	return errors.New("tab already closed")
}
