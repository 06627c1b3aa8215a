package dumper

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are kept in a registry of their own so that every run starts from zero.
type Metrics struct {
	registry *prometheus.Registry

	written   prometheus.Counter
	skipped   *prometheus.CounterVec
	batches   prometheus.Counter
	retries   prometheus.Counter
	fallbacks prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wikibase",
			Subsystem: "rdf_dump",
			Name:      "entities_written_total",
			Help:      "Total number of entities written to the dump",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wikibase",
			Subsystem: "rdf_dump",
			Name:      "entities_skipped_total",
			Help:      "Total number of entities left out of the dump",
		}, []string{"reason"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wikibase",
			Subsystem: "rdf_dump",
			Name:      "batches_total",
			Help:      "Total number of id batches processed",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wikibase",
			Subsystem: "rdf_dump",
			Name:      "lookup_retries_total",
			Help:      "Total number of retried revision lookups",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wikibase",
			Subsystem: "rdf_dump",
			Name:      "fallback_values_total",
			Help:      "Total number of values written with the fallback encoding",
		}),
	}

	m.registry.MustRegister(m.written, m.skipped, m.batches, m.retries, m.fallbacks)

	return m
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteToTextfile writes the current values in the node exporter textfile format.
func (m *Metrics) WriteToTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, m.registry)
}
