// Package observability holds the process-wide Prometheus collectors and the
// OpenTelemetry tracer setup.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rythm",
		Subsystem: "sessions",
		Name:      "operations_total",
		Help:      "Session aggregate operations by operation and outcome.",
	}, []string{"operation", "outcome"})
	sessionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rythm",
		Subsystem: "sessions",
		Name:      "operation_duration_seconds",
		Help:      "Latency of session aggregate operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	setsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rythm",
		Subsystem: "sessions",
		Name:      "sets_written_total",
		Help:      "Sets inserted by committed create and update operations.",
	})
	exercisesCataloged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rythm",
		Subsystem: "catalog",
		Name:      "exercises_cataloged_total",
		Help:      "Exercises added to the global catalog by session writes.",
	})
	measurementFields = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rythm",
		Subsystem: "sessions",
		Name:      "measurement_fields_total",
		Help:      "Submitted set measurement values by field spelling.",
	}, []string{"variant"})
	sessionPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rythm",
		Subsystem: "persistence",
		Name:      "last_session_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent committed session write.",
	})
)

func init() {
	prometheus.MustRegister(sessionWrites, sessionLatency, setsWritten, exercisesCataloged, measurementFields, sessionPersistGauge)
}

// ObserveSessionOperation records the outcome and latency of one aggregate operation.
func ObserveSessionOperation(operation, outcome string, elapsed time.Duration) {
	sessionWrites.WithLabelValues(operation, outcome).Inc()
	sessionLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordSessionPersisted updates the persistence watermark gauge and the set counter.
func RecordSessionPersisted(ts time.Time, sets int) {
	if sets > 0 {
		setsWritten.Add(float64(sets))
	}
	if ts.IsZero() {
		return
	}
	sessionPersistGauge.Set(float64(ts.Unix()))
}

// RecordMeasurementFields counts measurement values of a committed write that
// used the given field spelling.
func RecordMeasurementFields(variant string, n int) {
	if n <= 0 {
		return
	}
	measurementFields.WithLabelValues(variant).Add(float64(n))
}

// RecordExercisesCataloged counts catalog inserts from a committed write.
func RecordExercisesCataloged(n int) {
	if n <= 0 {
		return
	}
	exercisesCataloged.Add(float64(n))
}
