package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WatchMetrics records refresh activity for polling/subscription watchers.
type WatchMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	triggers *prometheus.CounterVec
}

// NewWatchMetrics registers the watcher metrics on the provided registerer.
func NewWatchMetrics(reg prometheus.Registerer) *WatchMetrics {
	if reg == nil {
		return &WatchMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "watcher_refresh_duration_seconds",
		Help:    "Duration of watcher fetch-and-replace refreshes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"watcher"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_refresh_success",
		Help: "Successful watcher refreshes.",
	}, []string{"watcher"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_refresh_failure",
		Help: "Failed watcher refreshes.",
	}, []string{"watcher"})
	triggers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_triggers",
		Help: "Refresh triggers by source (initial, tick, feed).",
	}, []string{"watcher", "source"})
	reg.MustRegister(duration, success, failure, triggers)
	return &WatchMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		triggers: triggers,
	}
}

// ObserveDuration records the duration of one refresh.
func (w *WatchMetrics) ObserveDuration(watcher string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(watcher)).Observe(duration.Seconds())
}

func (w *WatchMetrics) IncSuccess(watcher string) {
	if w == nil || w.success == nil {
		return
	}
	w.success.WithLabelValues(normalizeLabel(watcher)).Inc()
}

func (w *WatchMetrics) IncFailure(watcher string) {
	if w == nil || w.failure == nil {
		return
	}
	w.failure.WithLabelValues(normalizeLabel(watcher)).Inc()
}

// IncTrigger counts what woke the watcher up.
func (w *WatchMetrics) IncTrigger(watcher, source string) {
	if w == nil || w.triggers == nil {
		return
	}
	w.triggers.WithLabelValues(normalizeLabel(watcher), normalizeLabel(source)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
