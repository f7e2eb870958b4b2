package value

import (
	"encoding/json"
	"fmt"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/perfgo/pagerunner/model"
)

// Bucket samples are kept with three decimal digits.
const histogramScale = 1000

// Bucket is one bucket of a histogram as reported by the browser.
type Bucket struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high,omitempty"`
	Count int64   `json:"count"`
}

// Histogram is a bucketed distribution.
type Histogram struct {
	base
	Buckets []Bucket

	hist *hdrhistogram.Histogram
}

// NewHistogram parses a histogram from its raw JSON representation,
// e.g. {"buckets": [{"low": 1, "high": 2, "count": 1}]}.
func NewHistogram(page *model.Page, name, units, rawJSON string) (*Histogram, error) {
	var raw struct {
		Buckets []Bucket `json:"buckets"`
	}
	if err := json.Unmarshal([]byte(rawJSON), &raw); err != nil {
		return nil, fmt.Errorf("invalid histogram %q: %w", name, err)
	}
	return NewHistogramFromBuckets(page, name, units, raw.Buckets)
}

// NewHistogramFromBuckets creates a histogram from buckets. Every bucket
// is recorded at its midpoint; open buckets (no high bound) at their low.
func NewHistogramFromBuckets(page *model.Page, name, units string, buckets []Bucket) (*Histogram, error) {
	highest := int64(2)
	for _, b := range buckets {
		if b.Low < 0 || b.Count < 0 || (b.High != 0 && b.High < b.Low) {
			return nil, fmt.Errorf("invalid bucket %+v in histogram %q", b, name)
		}
		if v := midpoint(b); v > highest {
			highest = v
		}
	}

	hist := hdrhistogram.New(1, highest, 3)
	for _, b := range buckets {
		if err := hist.RecordValues(midpoint(b), b.Count); err != nil {
			return nil, fmt.Errorf("failed to record bucket %+v of %q: %w", b, name, err)
		}
	}

	return &Histogram{
		base:    base{page: page, name: name, units: units},
		Buckets: buckets,
		hist:    hist,
	}, nil
}

func midpoint(b Bucket) int64 {
	high := b.High
	if high == 0 {
		high = b.Low
	}
	return int64((b.Low + high) / 2 * histogramScale)
}

func (h *Histogram) Kind() Kind { return KindHistogram }

// Numbers returns the mean of the histogram, or nothing when it is empty.
func (h *Histogram) Numbers() []float64 {
	if h.Count() == 0 {
		return nil
	}
	return []float64{h.Mean()}
}

// Count returns the number of samples.
func (h *Histogram) Count() int64 {
	return h.hist.TotalCount()
}

// Mean returns the average sample.
func (h *Histogram) Mean() float64 {
	if h.Count() == 0 {
		return 0
	}
	return h.hist.Mean() / histogramScale
}

// Percentile returns the sample at quantile q (0-100).
func (h *Histogram) Percentile(q float64) float64 {
	return float64(h.hist.ValueAtQuantile(q)) / histogramScale
}

// JSON returns the raw JSON representation of the buckets.
func (h *Histogram) JSON() string {
	data, err := json.Marshal(struct {
		Buckets []Bucket `json:"buckets"`
	}{h.Buckets})
	if err != nil {
		// Buckets only hold plain numbers.
		panic(err)
	}
	return string(data)
}
