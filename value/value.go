// Package value defines the measurements a page test reports: named,
// unit-carrying payloads attached to a page, or to no page for summary
// values.
package value

import (
	"fmt"

	"github.com/perfgo/pagerunner/model"
)

// Kind is the payload type of a value. All values sharing a name within a
// run must share their kind.
type Kind string

const (
	KindScalar    Kind = "scalar"
	KindList      Kind = "list"
	KindHistogram Kind = "histogram"
	KindString    Kind = "string"
)

// Value is a single measurement.
type Value interface {
	// Page the value was measured on, nil for summary values
	Page() *model.Page
	Name() string
	Units() string
	Kind() Kind
	// Numbers returns the samples the value contributes to summaries.
	Numbers() []float64
}

type base struct {
	page  *model.Page
	name  string
	units string
}

func (b base) Page() *model.Page { return b.page }
func (b base) Name() string      { return b.name }
func (b base) Units() string     { return b.units }

// Scalar is a single number.
type Scalar struct {
	base
	Value float64
}

// NewScalar creates a scalar value.
func NewScalar(page *model.Page, name, units string, v float64) *Scalar {
	return &Scalar{base: base{page: page, name: name, units: units}, Value: v}
}

func (s *Scalar) Kind() Kind          { return KindScalar }
func (s *Scalar) Numbers() []float64 { return []float64{s.Value} }

func (s *Scalar) String() string {
	return fmt.Sprintf("%s=%g %s", s.name, s.Value, s.units)
}

// List is an ordered series of numbers measured together.
type List struct {
	base
	Values []float64
}

// NewList creates a list value.
func NewList(page *model.Page, name, units string, values []float64) *List {
	return &List{base: base{page: page, name: name, units: units}, Values: values}
}

func (l *List) Kind() Kind          { return KindList }
func (l *List) Numbers() []float64 { return l.Values }

// String is a textual value. It contributes no numbers to summaries.
type String struct {
	base
	Value string
}

// NewString creates a string value.
func NewString(page *model.Page, name, units, v string) *String {
	return &String{base: base{page: page, name: name, units: units}, Value: v}
}

func (s *String) Kind() Kind          { return KindString }
func (s *String) Numbers() []float64 { return nil }

// Record is the serializable form of a value.
type Record struct {
	Name    string    `json:"name"`
	Units   string    `json:"units"`
	Kind    Kind      `json:"kind"`
	Numbers []float64 `json:"numbers,omitempty"`
	Text    string    `json:"text,omitempty"`
	Buckets []Bucket  `json:"buckets,omitempty"`
}

// ToRecord converts v to its serializable form.
func ToRecord(v Value) Record {
	r := Record{Name: v.Name(), Units: v.Units(), Kind: v.Kind()}
	switch t := v.(type) {
	case *String:
		r.Text = t.Value
	case *Histogram:
		r.Buckets = t.Buckets
	default:
		r.Numbers = v.Numbers()
	}
	return r
}

// FromRecord rebuilds a value measured on page.
func FromRecord(page *model.Page, r Record) (Value, error) {
	switch r.Kind {
	case KindScalar:
		if len(r.Numbers) != 1 {
			return nil, fmt.Errorf("scalar value %q has %d numbers", r.Name, len(r.Numbers))
		}
		return NewScalar(page, r.Name, r.Units, r.Numbers[0]), nil
	case KindList:
		return NewList(page, r.Name, r.Units, r.Numbers), nil
	case KindString:
		return NewString(page, r.Name, r.Units, r.Text), nil
	case KindHistogram:
		return NewHistogramFromBuckets(page, r.Name, r.Units, r.Buckets)
	default:
		return nil, fmt.Errorf("unknown value kind %q for %q", r.Kind, r.Name)
	}
}
