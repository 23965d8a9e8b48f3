package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// LiveStats provides the metrics collector access to live-feed state.
type LiveStats interface {
	ActiveJobCount() int
	SubscriberCount() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool  *pgxpool.Pool
	stats LiveStats

	activeJobs      *prometheus.Desc
	subscribers     *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool may be nil when results are not persisted; stats may be nil when no
// live feed is running. Missing sources report 0.
func NewCollector(pool *pgxpool.Pool, stats LiveStats) *Collector {
	return &Collector{
		pool:  pool,
		stats: stats,
		activeJobs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_jobs"),
			"Transcriptions currently streaming.",
			nil, nil,
		),
		subscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "live_subscribers_active"),
			"Current number of live feed subscribers (SSE and websocket).",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeJobs
	ch <- c.subscribers
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var jobs, subs float64
	if c.stats != nil {
		jobs = float64(c.stats.ActiveJobCount())
		subs = float64(c.stats.SubscriberCount())
	}
	ch <- prometheus.MustNewConstMetric(c.activeJobs, prometheus.GaugeValue, jobs)
	ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, subs)

	var total, acquired, idle float64
	if c.pool != nil {
		stat := c.pool.Stat()
		total = float64(stat.TotalConns())
		acquired = float64(stat.AcquiredConns())
		idle = float64(stat.IdleConns())
	}
	ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, total)
	ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, acquired)
	ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, idle)
}
