package kernel

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mazmem"

// Collector implements prometheus.Collector over a Buddy's statistics
// snapshot, the same Describe/Collect shape this corpus's systemd
// collector uses: one *prometheus.Desc per exported series, built once at
// construction, and a Collect that takes a single locked Stat() snapshot
// per scrape.
type Collector struct {
	buddy *Buddy

	totalPages     *prometheus.Desc
	freePages      *prometheus.Desc
	freePagesByLvl *prometheus.Desc
}

// NewCollector returns a Collector exporting statistics for b.
func NewCollector(b *Buddy) *Collector {
	return &Collector{
		buddy: b,
		totalPages: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "buddy", "total_pages"),
			"Total working pages managed by the buddy arena.",
			nil, nil,
		),
		freePages: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "buddy", "free_pages"),
			"Free pages currently available across all levels.",
			nil, nil,
		),
		freePagesByLvl: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "buddy", "free_pages_by_level"),
			"Free-list length at a given buddy level.",
			[]string{"level"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalPages
	ch <- c.freePages
	ch <- c.freePagesByLvl
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stat := c.buddy.Stat()

	ch <- prometheus.MustNewConstMetric(c.totalPages, prometheus.GaugeValue, float64(stat.TotalPages))
	ch <- prometheus.MustNewConstMetric(c.freePages, prometheus.GaugeValue, float64(stat.FreePages))

	for level, n := range stat.FreeBySize {
		ch <- prometheus.MustNewConstMetric(
			c.freePagesByLvl, prometheus.GaugeValue, float64(n),
			fmt.Sprintf("%d", level),
		)
	}
}
