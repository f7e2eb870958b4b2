package results

import (
	"errors"
	"fmt"
)

// ConsistencyError reports misuse of the results protocol: values outside
// a page scope, reserved names, or a metric changing its units or kind.
// It is a programming error in the page test and aborts the run.
type ConsistencyError struct {
	Op  string
	Msg string
}

func consistencyErrorf(op, format string, args ...any) *ConsistencyError {
	return &ConsistencyError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent results: %s: %s", e.Op, e.Msg)
}

// IsConsistencyError reports whether err is or wraps a *ConsistencyError.
func IsConsistencyError(err error) bool {
	var cerr *ConsistencyError
	return errors.As(err, &cerr)
}
