package signal

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	workers     *prometheus.GaugeVec
	clients     *prometheus.GaugeVec
	queueLength prometheus.Gauge
}

var (
	metricsOnce sync.Once
	sharedStats *metrics
)

// getMetrics registers the broker gauges once per process.
func getMetrics() *metrics {
	metricsOnce.Do(func() {
		sharedStats = &metrics{
			workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "signal",
				Name:      "workers",
				Help:      "Connected registered workers by status.",
			}, []string{"status"}),
			clients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "signal",
				Name:      "clients",
				Help:      "Connected clients by connection state.",
			}, []string{"state"}),
			queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "signal",
				Name:      "queue_length",
				Help:      "Clients waiting for a worker.",
			}),
		}
		prometheus.MustRegister(sharedStats.workers, sharedStats.clients, sharedStats.queueLength)
	})
	return sharedStats
}

// observe runs under the hub lock.
func (m *metrics) observe(r *Registry, q *Queue) {
	var available, busy float64
	r.EachWorker(func(w *Worker) {
		if w.status == Available {
			available++
		} else {
			busy++
		}
	})
	m.workers.WithLabelValues(string(Available)).Set(available)
	m.workers.WithLabelValues(string(Busy)).Set(busy)

	states := map[ClientState]float64{Waiting: 0, Queued: 0, Connecting: 0, Connected: 0}
	r.EachClient(func(c *Client) { states[c.state]++ })
	for state, n := range states {
		m.clients.WithLabelValues(string(state)).Set(n)
	}

	m.queueLength.Set(float64(q.Len()))
}
