package value

import (
	"testing"

	"github.com/perfgo/pagerunner/model"
	"github.com/stretchr/testify/require"
)

func TestHistogram(t *testing.T) {
	page := &model.Page{URL: "http://www.foo.com/"}
	h, err := NewHistogram(page, "x", "counts",
		`{"buckets": [{"low": 1, "high": 3, "count": 1}, {"low": 3, "high": 5, "count": 3}]}`)
	require.NoError(t, err)

	require.Equal(t, KindHistogram, h.Kind())
	require.Equal(t, int64(4), h.Count())
	require.InDelta(t, 3.5, h.Mean(), 0.01)
	require.InDelta(t, 4, h.Percentile(100), 0.01)
	require.Len(t, h.Numbers(), 1)
	require.JSONEq(t,
		`{"buckets": [{"low": 1, "high": 3, "count": 1}, {"low": 3, "high": 5, "count": 3}]}`,
		h.JSON())
}

func TestHistogram_Empty(t *testing.T) {
	h, err := NewHistogram(nil, "x", "counts", `{"buckets": []}`)
	require.NoError(t, err)
	require.Zero(t, h.Mean())
	require.Empty(t, h.Numbers())
}

func TestHistogram_Invalid(t *testing.T) {
	_, err := NewHistogram(nil, "x", "counts", `{"buckets": [`)
	require.Error(t, err)

	_, err = NewHistogram(nil, "x", "counts", `{"buckets": [{"low": 5, "high": 1, "count": 1}]}`)
	require.Error(t, err)
}

func TestRecordRoundTrip(t *testing.T) {
	page := &model.Page{URL: "http://www.bar.com/"}
	h, err := NewHistogramFromBuckets(page, "h", "ms", []Bucket{{Low: 10, High: 20, Count: 2}})
	require.NoError(t, err)

	for _, v := range []Value{
		NewScalar(page, "a", "seconds", 3),
		NewList(page, "b", "ms", []float64{1, 2}),
		NewString(page, "c", "", "hello"),
		h,
	} {
		got, err := FromRecord(page, ToRecord(v))
		require.NoError(t, err)
		require.Equal(t, v.Kind(), got.Kind())
		require.Equal(t, v.Name(), got.Name())
		require.Equal(t, v.Units(), got.Units())
		require.Equal(t, v.Numbers(), got.Numbers())
		require.Same(t, page, got.Page())
	}
}

func TestFromRecord_Invalid(t *testing.T) {
	_, err := FromRecord(nil, Record{Name: "a", Kind: KindScalar})
	require.Error(t, err)

	_, err = FromRecord(nil, Record{Name: "a", Kind: "table"})
	require.Error(t, err)
}
