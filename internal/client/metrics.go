package client

import "github.com/prometheus/client_golang/prometheus"

const (
	resultDelivered = "delivered"
	resultPrimed    = "primed"
	resultFailed    = "failed"
	resultDiscarded = "discarded"
)

// Metrics holds the client's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	cycles    *prometheus.CounterVec
	skipped   prometheus.Counter
	delivered prometheus.Counter
	shown     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Poll cycles by result.",
		}, []string{"result"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "poller",
			Name:      "skipped_total",
			Help:      "Ticks skipped because a cycle was still in flight.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "listener",
			Name:      "notifications_delivered_total",
			Help:      "New notifications fanned out to listeners.",
		}),
		shown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify",
			Subsystem: "bridge",
			Name:      "shown_total",
			Help:      "Platform notifications displayed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.cycles, m.skipped, m.delivered, m.shown)
	}
	return m
}

func (m *Metrics) cycle(result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
}

func (m *Metrics) skip() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

func (m *Metrics) deliver() {
	if m == nil {
		return
	}
	m.delivered.Inc()
}

// Shown counts one platform display. It matches the bridge's OnShown hook.
func (m *Metrics) Shown() {
	if m == nil {
		return
	}
	m.shown.Inc()
}
