package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordAttempt(OutcomeSuccess, time.Second)
	m.RecordAttempt(OutcomeSuccess, time.Second)
	m.RecordAttempt(OutcomeRetry, time.Second)
	m.RecordAbandoned(3)
	m.RecordBrowserLaunch()

	require.Equal(t, 2.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues(OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues(OutcomeRetry)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal))
	require.Equal(t, 3.0, testutil.ToFloat64(m.abandonedTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.browserLaunches))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordAttempt(OutcomeFailure, time.Second)
	m.RecordAbandoned(1)
	m.RecordBrowserLaunch()
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordAttempt(OutcomeFailure, time.Second)

	path := filepath.Join(t.TempDir(), "pagerunner.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `pagerunner_page_attempts_total{outcome="failure"} 1`)
}
