package runner

import (
	"path"

	"github.com/perfgo/pagerunner/model"
)

// Expectation of a page.
type Expectation int

const (
	ExpectPass Expectation = iota
	ExpectFail
	ExpectSkip
)

type expectation struct {
	pattern string
	kind    Expectation
	reason  string
}

// Expectations mark pages known to fail or to be skipped. Patterns are
// matched with path.Match against the page URL and name.
type Expectations struct {
	entries []expectation
}

// NewExpectations returns empty expectations: every page is expected to pass.
func NewExpectations() *Expectations {
	return &Expectations{}
}

// Fail expects pages matching pattern to fail. Their failures are
// recorded as successes.
func (e *Expectations) Fail(pattern, reason string) {
	e.entries = append(e.entries, expectation{pattern: pattern, kind: ExpectFail, reason: reason})
}

// Skip does not run pages matching pattern.
func (e *Expectations) Skip(pattern, reason string) {
	e.entries = append(e.entries, expectation{pattern: pattern, kind: ExpectSkip, reason: reason})
}

// ForPage returns the expectation of page and its reason. The first
// matching entry wins.
func (e *Expectations) ForPage(page *model.Page) (Expectation, string) {
	if e == nil {
		return ExpectPass, ""
	}
	for _, entry := range e.entries {
		if match(entry.pattern, page.URL) || (page.Name != "" && match(entry.pattern, page.Name)) {
			return entry.kind, entry.reason
		}
	}
	return ExpectPass, ""
}

func match(pattern, s string) bool {
	if pattern == s {
		return true
	}
	ok, err := path.Match(pattern, s)
	return err == nil && ok
}
