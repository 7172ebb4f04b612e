package metrics

import "github.com/prometheus/client_golang/prometheus"

// AgendaMetrics exposes counters/histograms for the scheduling core.
type AgendaMetrics struct {
	cancellationsTotal *prometheus.CounterVec
	startAttemptsTotal *prometheus.CounterVec
	expandLatency      *prometheus.HistogramVec
}

func NewAgendaMetrics(reg prometheus.Registerer) *AgendaMetrics {
	m := &AgendaMetrics{
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "appointments",
			Name:      "cancellations_total",
			Help:      "Total appointment cancellations",
		}, []string{"scope", "refund_eligible"}),
		startAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "appointments",
			Name:      "start_attempts_total",
			Help:      "Total teleconsultation start attempts",
		}, []string{"outcome"}),
		expandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agenda",
			Subsystem: "appointments",
			Name:      "expand_latency_seconds",
			Help:      "Latency of recurrence window expansion",
			Buckets:   prometheus.DefBuckets,
		}, []string{"recurrence"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.cancellationsTotal, m.startAttemptsTotal, m.expandLatency)
	return m
}

func (m *AgendaMetrics) ObserveCancellation(scope string, refundEligible bool) {
	if m == nil {
		return
	}
	label := "false"
	if refundEligible {
		label = "true"
	}
	m.cancellationsTotal.WithLabelValues(scope, label).Inc()
}

func (m *AgendaMetrics) ObserveStartAttempt(outcome string) {
	if m == nil {
		return
	}
	m.startAttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *AgendaMetrics) ObserveExpandLatency(recurrence string, seconds float64) {
	if m == nil {
		return
	}
	m.expandLatency.WithLabelValues(recurrence).Observe(seconds)
}
