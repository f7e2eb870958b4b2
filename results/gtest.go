package results

import (
	"fmt"
	"strings"
)

// GTestFormatter prints runs the way gtest prints test cases.
type GTestFormatter struct{}

// Format implements Formatter.
func (f *GTestFormatter) Format(r *Results) (string, error) {
	var sb strings.Builder

	for _, run := range r.Runs() {
		name := r.PageName(run.Page)
		ms := run.Duration().Milliseconds()
		switch run.Status {
		case StatusSuccess:
			fmt.Fprintf(&sb, "[ RUN      ] %s\n", name)
			fmt.Fprintf(&sb, "[       OK ] %s (%d ms)\n", name, ms)
		case StatusFailure:
			fmt.Fprintf(&sb, "[ RUN      ] %s\n", name)
			fmt.Fprintf(&sb, "[  FAILED  ] %s (%d ms)\n", name, ms)
		case StatusSkipped:
			fmt.Fprintf(&sb, "===== SKIPPING TEST %s: %s =====\n", name, run.Message)
		}
	}

	successes := len(r.Successes())
	failures := r.Failures()
	fmt.Fprintf(&sb, "[  PASSED  ] %s.\n", tests(successes))
	if len(failures) == 0 {
		sb.WriteString("\n")
		return sb.String(), nil
	}

	fmt.Fprintf(&sb, "[  FAILED  ] %s, listed below:\n", tests(len(failures)))
	for _, run := range failures {
		fmt.Fprintf(&sb, "[  FAILED  ]  %s\n", r.PageName(run.Page))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s\n\n", failedTests(len(failures)))
	return sb.String(), nil
}

func tests(n int) string {
	if n == 1 {
		return "1 test"
	}
	return fmt.Sprintf("%d tests", n)
}

func failedTests(n int) string {
	if n == 1 {
		return "1 FAILED TEST"
	}
	return fmt.Sprintf("%d FAILED TESTS", n)
}
