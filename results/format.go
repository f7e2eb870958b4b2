package results

import (
	"fmt"
	"strconv"
	"strings"
)

// Format selects how PrintSummary renders the collected results.
type Format string

const (
	FormatNone     Format = "none"
	FormatCSV      Format = "csv"
	FormatHTML     Format = "html"
	FormatBuildbot Format = "buildbot"
	FormatGTest    Format = "gtest"
)

// Formats lists every supported format.
var Formats = []Format{FormatNone, FormatCSV, FormatHTML, FormatBuildbot, FormatGTest}

// ParseFormat returns the format named s.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q, expected one of %s", s, formatNames())
}

func formatNames() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Formatter renders results into a report.
type Formatter interface {
	Format(r *Results) (string, error)
}

// NewFormatter returns the formatter for f.
func NewFormatter(f Format) (Formatter, error) {
	switch f {
	case FormatNone:
		return noneFormatter{}, nil
	case FormatCSV:
		return &CSVFormatter{}, nil
	case FormatHTML:
		return NewHTMLFormatter()
	case FormatBuildbot:
		return &BuildbotFormatter{}, nil
	case FormatGTest:
		return &GTestFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", f)
	}
}

type noneFormatter struct{}

func (noneFormatter) Format(*Results) (string, error) {
	return "", nil
}

// formatNumber prints v with the fewest digits that represent it exactly.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatNumbers(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatNumber(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
