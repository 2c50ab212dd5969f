package adapter

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// BufferStats is implemented by *shm.Buffer.
type BufferStats interface {
	Len() int
	Cap() int
}

// PoolStats is implemented by *shm.BufferManager.
type PoolStats interface {
	Stats() map[uint32]int
	Slices() map[uint32]int
}

// BufferCollector exports the fill level of a shared memory buffer.
type BufferCollector struct {
	buf      BufferStats
	used     *prometheus.Desc
	capacity *prometheus.Desc
}

// NewBufferCollector returns a collector for buf labelled with name.
func NewBufferCollector(name string, buf BufferStats) *BufferCollector {
	labels := prometheus.Labels{"buffer": name}
	return &BufferCollector{
		buf: buf,
		used: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "buffer", "used_bytes"),
			"Unread bytes in the ring.", nil, labels),
		capacity: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "buffer", "capacity_bytes"),
			"Ring capacity.", nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *BufferCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.used
	ch <- c.capacity
}

// Collect implements prometheus.Collector.
func (c *BufferCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.used, prometheus.GaugeValue, float64(c.buf.Len()))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(c.buf.Cap()))
}

// PoolCollector exports free and total slices per size class of a slab pool.
type PoolCollector struct {
	pool  PoolStats
	free  *prometheus.Desc
	total *prometheus.Desc
}

// NewPoolCollector returns a collector for pool labelled with name.
func NewPoolCollector(name string, pool PoolStats) *PoolCollector {
	labels := prometheus.Labels{"pool": name}
	return &PoolCollector{
		pool: pool,
		free: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "pool", "free_slices"),
			"Free slices per size class.", []string{"size"}, labels),
		total: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "pool", "slices"),
			"Slices per size class.", []string{"size"}, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.free
	ch <- c.total
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	for size, n := range c.pool.Stats() {
		ch <- prometheus.MustNewConstMetric(c.free, prometheus.GaugeValue, float64(n), strconv.FormatUint(uint64(size), 10))
	}
	for size, n := range c.pool.Slices() {
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(n), strconv.FormatUint(uint64(size), 10))
	}
}
