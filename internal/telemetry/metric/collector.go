package metric

import "github.com/prometheus/client_golang/prometheus"

// KeyStats is the view of the key space read at scrape time.
type KeyStats interface {
	Len() int
	ExpiredTotal() uint64
}

// Collector collects key space statistics.
type Collector struct {
	stats KeyStats

	keys    *prometheus.Desc
	expired *prometheus.Desc
}

// NewCollector creates a collector over stats.
func NewCollector(stats KeyStats) *Collector {
	return &Collector{
		stats: stats,
		keys: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "keyspace", "keys"),
			"Live keys in the key space",
			nil, nil),
		expired: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "keyspace", "expired_keys_total"),
			"Keys removed because their expiry passed",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.expired
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(c.stats.Len()))
	ch <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(c.stats.ExpiredTotal()))
}
