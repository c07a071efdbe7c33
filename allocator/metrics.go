package allocator

import "github.com/prometheus/client_golang/prometheus"

type metrics interface {
	incBound()
	incBusy()
	incExhausted()
}

type noopMetrics struct{}

func (noopMetrics) incBound()     {}
func (noopMetrics) incBusy()      {}
func (noopMetrics) incExhausted() {}

type promMetrics struct {
	bound     prometheus.Counter
	busy      prometheus.Counter
	exhausted prometheus.Counter
}

func newPromMetrics(labels prometheus.Labels) *promMetrics {
	p := &promMetrics{
		bound: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "mediaport_bound_count",
			Help:        "mediaport successful allocations count",
			ConstLabels: labels,
		}),
		busy: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "mediaport_bind_conflicts_count",
			Help:        "mediaport recoverable bind conflicts count",
			ConstLabels: labels,
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "mediaport_exhausted_count",
			Help:        "mediaport allocations failed with exhausted retries count",
			ConstLabels: labels,
		}),
	}
	return p
}

func (m *promMetrics) Describe(d chan<- *prometheus.Desc) {
	d <- m.bound.Desc()
	d <- m.busy.Desc()
	d <- m.exhausted.Desc()
}

func (m *promMetrics) Collect(c chan<- prometheus.Metric) {
	m.bound.Collect(c)
	m.busy.Collect(c)
	m.exhausted.Collect(c)
}

func (m *promMetrics) incBound()     { m.bound.Inc() }
func (m *promMetrics) incBusy()      { m.busy.Inc() }
func (m *promMetrics) incExhausted() { m.exhausted.Inc() }
