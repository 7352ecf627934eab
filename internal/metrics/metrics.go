// Package metrics holds the Prometheus collectors for the user directory.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "userdir"

	// Result labels for DirectoryLookupDur.
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds Prometheus metrics for uid resolution.
type Metrics struct {
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	Provisions         prometheus.Counter
	ProvisionFailures  prometheus.Counter
	DirectoryLookupDur *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of uid lookups answered from the directory cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of uid lookups that went to the store",
		}),
		Provisions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisions_total",
			Help:      "Total number of users created from the external directory",
		}),
		ProvisionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provision_failures_total",
			Help:      "Total number of failed lazy provisioning attempts",
		}),
		DirectoryLookupDur: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "directory_lookup_duration_seconds",
			Help:      "Duration of external directory lookups",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"result"}),
	}
}

// ObserveLookup records a directory lookup that started at start.
func (m *Metrics) ObserveLookup(start time.Time, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.DirectoryLookupDur.WithLabelValues(result).Observe(time.Since(start).Seconds())
}
