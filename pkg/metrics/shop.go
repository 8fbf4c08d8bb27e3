package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sale record outcomes.
const (
	SaleInserted   = "inserted"
	SaleDuplicate  = "duplicate"
	SaleSkipped    = "skipped"
	SaleFailed     = "failed"
	SaleGuardError = "guard_error"
)

// TrackerMetrics counts order status edges seen by status bar controllers.
type TrackerMetrics struct {
	edges      *prometheus.CounterVec
	suppressed prometheus.Counter
}

func NewTrackerMetrics(reg prometheus.Registerer) *TrackerMetrics {
	if reg == nil {
		return &TrackerMetrics{}
	}
	edges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transition_edges",
		Help: "Terminal status edges detected by status bar controllers.",
	}, []string{"status"})
	suppressed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_delivered_modal_suppressed",
		Help: "Delivered modals suppressed because a staff route was active.",
	})
	reg.MustRegister(edges, suppressed)
	return &TrackerMetrics{edges: edges, suppressed: suppressed}
}

func (m *TrackerMetrics) IncEdge(status string) {
	if m == nil || m.edges == nil {
		return
	}
	m.edges.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *TrackerMetrics) IncSuppressedModal() {
	if m == nil || m.suppressed == nil {
		return
	}
	m.suppressed.Inc()
}

// SalesMetrics counts daily sale recording outcomes.
type SalesMetrics struct {
	records *prometheus.CounterVec
}

func NewSalesMetrics(reg prometheus.Registerer) *SalesMetrics {
	if reg == nil {
		return &SalesMetrics{}
	}
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daily_sale_records",
		Help: "Daily sale recording attempts by result.",
	}, []string{"result"})
	reg.MustRegister(records)
	return &SalesMetrics{records: records}
}

func (m *SalesMetrics) Inc(result string) {
	if m == nil || m.records == nil {
		return
	}
	m.records.WithLabelValues(normalizeLabel(result)).Inc()
}

// BusMetrics counts in-process signals.
type BusMetrics struct {
	published *prometheus.CounterVec
}

func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	if reg == nil {
		return &BusMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_signals_published",
		Help: "Signals published on the in-process event bus.",
	}, []string{"signal"})
	reg.MustRegister(published)
	return &BusMetrics{published: published}
}

func (m *BusMetrics) IncPublished(signal string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(signal)).Inc()
}
