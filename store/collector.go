package store

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

type metric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(*pebble.Metrics) float64
}

// dbCollector exports the pebble stats that matter for a merge-heavy
// workload: compaction pressure tells you how fast states are folding.
type dbCollector struct {
	db      *pebble.DB
	metrics []metric
}

// Collector returns a prometheus collector over the store's database.
// Register it wherever the surrounding process keeps its registry.
func (s *Store) Collector() prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("crdt_store_"+name, help, nil, nil)
	}
	return &dbCollector{
		db: s.db,
		metrics: []metric{
			{
				desc("compaction_count_total", "Compactions performed"),
				prometheus.CounterValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.Count) },
			},
			{
				desc("compaction_estimated_debt_bytes", "Bytes to compact to reach a stable state"),
				prometheus.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.EstimatedDebt) },
			},
			{
				desc("memtable_size_bytes", "Current memtable size"),
				prometheus.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.MemTable.Size) },
			},
			{
				desc("memtable_count", "Live memtables"),
				prometheus.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.MemTable.Count) },
			},
			{
				desc("wal_files", "Live WAL files"),
				prometheus.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.WAL.Files) },
			},
			{
				desc("wal_bytes_written_total", "Physical bytes written to the WAL"),
				prometheus.CounterValue,
				func(m *pebble.Metrics) float64 { return float64(m.WAL.BytesWritten) },
			},
		},
	}
}

func (c *dbCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *dbCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.db.Metrics()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(stats))
	}
}
