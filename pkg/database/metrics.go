package database

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type poolStatser interface {
	PoolStats() *redis.PoolStats
}

// PoolStatsCollector exports go-redis connection pool statistics.
type PoolStatsCollector struct {
	client  poolStatser
	service string

	hits       *prometheus.Desc
	misses     *prometheus.Desc
	timeouts   *prometheus.Desc
	totalConns *prometheus.Desc
	idleConns  *prometheus.Desc
	staleConns *prometheus.Desc
}

// NewPoolStatsCollector creates a collector for client.
func NewPoolStatsCollector(client poolStatser, service string) *PoolStatsCollector {
	labels := []string{"service"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(name, help, labels, nil)
	}
	return &PoolStatsCollector{
		client:     client,
		service:    service,
		hits:       desc("redis_pool_hits_total", "Times a free connection was found in the pool"),
		misses:     desc("redis_pool_misses_total", "Times a free connection was not found in the pool"),
		timeouts:   desc("redis_pool_timeouts_total", "Times a wait for a connection timed out"),
		totalConns: desc("redis_pool_total_connections", "Total number of connections in the pool"),
		idleConns:  desc("redis_pool_idle_connections", "Number of idle connections in the pool"),
		staleConns: desc("redis_pool_stale_connections_total", "Stale connections removed from the pool"),
	}
}

func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.timeouts
	ch <- c.totalConns
	ch <- c.idleConns
	ch <- c.staleConns
}

func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.client.PoolStats()

	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), c.service)
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), c.service)
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(s.Timeouts), c.service)
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(s.TotalConns), c.service)
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(s.IdleConns), c.service)
	ch <- prometheus.MustNewConstMetric(c.staleConns, prometheus.CounterValue, float64(s.StaleConns), c.service)
}

// RegisterPoolMetrics registers a pool collector for client with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, client *redis.Client, service string) error {
	return reg.Register(NewPoolStatsCollector(client, service))
}
