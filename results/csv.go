package results

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/perfgo/pagerunner/value"
)

// CSVFormatter prints one row per successful run with a column per metric.
type CSVFormatter struct{}

// Format implements Formatter.
func (f *CSVFormatter) Format(r *Results) (string, error) {
	header, rows := table(r)
	if len(rows) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", err
	}
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to write csv rows: %w", err)
	}
	return buf.String(), nil
}

// table returns the header and rows shared by the tabular formats.
func table(r *Results) ([]string, [][]string) {
	successes := r.Successes()
	if len(successes) == 0 {
		return nil, nil
	}

	names := r.metricNames()
	header := []string{"page_name"}
	for _, name := range names {
		header = append(header, fmt.Sprintf("%s (%s)", name, r.unitsOf(name)))
	}

	var rows [][]string
	for _, run := range successes {
		row := []string{r.PageName(run.Page)}
		for _, name := range names {
			row = append(row, cell(run.Values, name))
		}
		rows = append(rows, row)
	}
	return header, rows
}

func cell(values []value.Value, name string) string {
	var parts []string
	for _, v := range values {
		if v.Name() != name {
			continue
		}
		switch t := v.(type) {
		case *value.String:
			parts = append(parts, t.Value)
		default:
			for _, n := range v.Numbers() {
				parts = append(parts, formatNumber(n))
			}
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
