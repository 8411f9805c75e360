package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogramSampleCount(t *testing.T, m prometheus.Metric) uint64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	return pb.GetHistogram().GetSampleCount()
}

func TestNewTimerStartsImmediately(t *testing.T) {
	timer := NewTimer()
	require.NotNil(t, timer)
	assert.False(t, timer.start.IsZero())
	assert.Less(t, timer.Duration(), 50*time.Millisecond)
}

func TestTimerDurationAdvancesMonotonically(t *testing.T) {
	timer := NewTimer()
	first := timer.Duration()
	time.Sleep(10 * time.Millisecond)
	second := timer.Duration()
	assert.Greater(t, second, first)
}

func TestTimerObserveDurationRecordsOnRealHistogram(t *testing.T) {
	before := histogramSampleCount(t, GenerationHashDuration)

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration(GenerationHashDuration)

	assert.Equal(t, before+1, histogramSampleCount(t, GenerationHashDuration))
}

func TestTimerObserveDurationVecRecordsOnHistogramVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_vessel_operation_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	observer := vec.WithLabelValues("apply").(prometheus.Metric)

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDurationVec(vec, "apply")

	assert.Equal(t, uint64(1), histogramSampleCount(t, observer))
}
