// Package metrics exposes Prometheus counters for sale outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sales counts sale operations. It satisfies sales.Recorder.
type Sales struct {
	registry *prometheus.Registry
	created  prometheus.Counter
	updated  prometheus.Counter
	deleted  prometheus.Counter
	failures *prometheus.CounterVec
}

// NewSales registers the sale counters, plus Go runtime and process
// collectors, on a fresh registry.
func NewSales() *Sales {
	m := &Sales{
		registry: prometheus.NewRegistry(),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Name:      "sales_created_total",
			Help:      "Sales committed.",
		}),
		updated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Name:      "sales_updated_total",
			Help:      "Sales rewritten with a new cart.",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Name:      "sales_deleted_total",
			Help:      "Sales deleted with inventory restored.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Name:      "sale_failures_total",
			Help:      "Sale operations rolled back, by operation and error code.",
		}, []string{"operation", "code"}),
	}
	m.registry.MustRegister(
		m.created, m.updated, m.deleted, m.failures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Sales) SaleCreated() { m.created.Inc() }
func (m *Sales) SaleUpdated() { m.updated.Inc() }
func (m *Sales) SaleDeleted() { m.deleted.Inc() }

func (m *Sales) SaleFailed(op, code string) {
	m.failures.WithLabelValues(op, code).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Sales) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
