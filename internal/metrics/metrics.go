// Package metrics records pipeline step outcomes and row counts through a
// pluggable backend. The default backend discards everything, so callers
// never need to check whether metrics are configured.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

const (
	StepTotal           = "sparkify_step_total"
	StepDurationSeconds = "sparkify_step_duration_seconds"
	RowsTotal           = "sparkify_rows_total"
)

// Backend is implemented by concrete metric systems.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs b. Passing nil restores the no-op backend.
func SetBackend(b Backend) {
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of step and observes its duration.
func RecordStep(pipeline, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"pipeline": pipeline,
		"step":     step,
		"status":   status,
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRows adds n rows written to (or dropped from) table.
func RecordRows(pipeline, table, kind string, n int64) {
	if n <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(n), Labels{
		"pipeline": pipeline,
		"table":    table,
		"kind":     kind,
	})
}
