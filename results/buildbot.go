package results

import (
	"fmt"
	"strings"

	"github.com/perfgo/pagerunner/value"
)

// BuildbotFormatter prints perf dashboard lines:
//
//	RESULT <metric>: <page>= [<v1>,<v2>] <units>
//	*RESULT <metric>: <metric>= [<all values>] <units>
type BuildbotFormatter struct{}

// Format implements Formatter.
func (f *BuildbotFormatter) Format(r *Results) (string, error) {
	var sb strings.Builder

	if len(r.Successes()) > 0 {
		pages := r.pageNamesInOrder()
		for _, name := range r.metricNames() {
			f.writeMetric(&sb, r, name, pages)
		}
		for _, v := range r.SummaryValues() {
			if nums := v.Numbers(); len(nums) > 0 {
				fmt.Fprintf(&sb, "*RESULT %s: %s= %s %s\n", v.Name(), v.Name(), formatValueNumbers(nums), v.Units())
			}
		}
	}

	if failures := r.Failures(); len(failures) > 0 {
		fmt.Fprintf(&sb, "Pages failed: %d\n", len(failures))
		for _, run := range failures {
			fmt.Fprintf(&sb, "  %s: %s\n", run.Page.URL, run.Message)
		}
	}

	return sb.String(), nil
}

func (f *BuildbotFormatter) writeMetric(sb *strings.Builder, r *Results, name string, pages []string) {
	units := r.unitsOf(name)
	values := r.FindAllPageSpecificValuesNamed(name)

	byPage := make(map[string][]value.Value)
	for _, v := range values {
		page := r.PageName(v.Page())
		byPage[page] = append(byPage[page], v)
	}

	for _, page := range pages {
		var nums []float64
		for _, v := range byPage[page] {
			switch t := v.(type) {
			case *value.Histogram:
				fmt.Fprintf(sb, "HISTOGRAM %s: %s= %s %s\n", name, page, t.JSON(), units)
			case *value.String:
			default:
				nums = append(nums, v.Numbers()...)
			}
		}
		if len(nums) > 0 {
			fmt.Fprintf(sb, "RESULT %s: %s= %s %s\n", name, page, formatValueNumbers(nums), units)
		}
	}

	var all []float64
	for _, v := range values {
		all = append(all, v.Numbers()...)
	}
	if len(all) > 0 {
		fmt.Fprintf(sb, "*RESULT %s: %s= %s %s\n", name, name, formatNumbers(all), units)
	}
}

// formatValueNumbers prints a single number bare and several as a list.
func formatValueNumbers(nums []float64) string {
	if len(nums) == 1 {
		return formatNumber(nums[0])
	}
	return formatNumbers(nums)
}
