package stubserver

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts requests and scheduling rejections served by the stub.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "stubserver",
			Name:      "requests_total",
			Help:      "Total HTTP requests served",
		}, []string{"route", "status"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "stubserver",
			Name:      "rejections_total",
			Help:      "Scheduling rejections by reason",
		}, []string{"reason"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.rejectionsTotal)
	return m
}

func (m *Metrics) ObserveRequest(route, status string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, status).Inc()
}

func (m *Metrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}
