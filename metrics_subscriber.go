package lazyarray

import "github.com/prometheus/client_golang/prometheus"

// MetricsSubscriber exposes the subscriber bus's event stream as
// Prometheus counters (dragonflyoss-nydus's snapshotter depends on
// prometheus/client_golang for exactly this kind of counter surface),
// letting a host process scrape cache and flush behavior without polling
// the array directly. It implements prometheus.Collector so it can be
// registered with a Registerer as-is.
type MetricsSubscriber struct {
	NoopSubscriber

	cacheMisses         prometheus.Counter
	writeCollisions     prometheus.Counter
	chunksSerialized    prometheus.Counter
	chunksDeserialized  prometheus.Counter
	recordsSerialized   prometheus.Counter
	recordsDeserialized prometheus.Counter
	chunkResizes        *prometheus.CounterVec
}

// NewMetricsSubscriber builds a subscriber whose metric names are prefixed
// namespace_subsystem_.
func NewMetricsSubscriber(namespace, subsystem string) *MetricsSubscriber {
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help}
	}
	return &MetricsSubscriber{
		cacheMisses:         prometheus.NewCounter(opts("cache_misses_total", "Number of Get calls that missed the in-memory window.")),
		writeCollisions:     prometheus.NewCounter(opts("write_collisions_total", "Number of Set calls that evicted a dirty, unflushed predecessor.")),
		chunksSerialized:    prometheus.NewCounter(opts("chunks_serialized_total", "Number of write-chunk flushes performed.")),
		chunksDeserialized:  prometheus.NewCounter(opts("chunks_deserialized_total", "Number of read-chunk loads performed.")),
		recordsSerialized:   prometheus.NewCounter(opts("records_serialized_total", "Number of individual records written to disk.")),
		recordsDeserialized: prometheus.NewCounter(opts("records_deserialized_total", "Number of individual records read from disk.")),
		chunkResizes: prometheus.NewCounterVec(opts("chunk_resizes_total", "Number of read/write/memory chunk resizes, labeled by kind."),
			[]string{"kind"}),
	}
}

func (m *MetricsSubscriber) Describe(ch chan<- *prometheus.Desc) {
	m.cacheMisses.Describe(ch)
	m.writeCollisions.Describe(ch)
	m.chunksSerialized.Describe(ch)
	m.chunksDeserialized.Describe(ch)
	m.recordsSerialized.Describe(ch)
	m.recordsDeserialized.Describe(ch)
	m.chunkResizes.Describe(ch)
}

func (m *MetricsSubscriber) Collect(ch chan<- prometheus.Metric) {
	m.cacheMisses.Collect(ch)
	m.writeCollisions.Collect(ch)
	m.chunksSerialized.Collect(ch)
	m.chunksDeserialized.Collect(ch)
	m.recordsSerialized.Collect(ch)
	m.recordsDeserialized.Collect(ch)
	m.chunkResizes.Collect(ch)
}

func (m *MetricsSubscriber) OnCacheMiss(int)                     { m.cacheMisses.Inc() }
func (m *MetricsSubscriber) OnWriteCollision(prior, incoming int) { m.writeCollisions.Inc() }
func (m *MetricsSubscriber) OnChunkSerialized()                  { m.chunksSerialized.Inc() }
func (m *MetricsSubscriber) OnChunkDeserialized()                { m.chunksDeserialized.Inc() }
func (m *MetricsSubscriber) OnRecordSerialized(int)              { m.recordsSerialized.Inc() }
func (m *MetricsSubscriber) OnRecordDeserialized(int)            { m.recordsDeserialized.Inc() }

func (m *MetricsSubscriber) OnChunkResized(kind ChunkKind, prior, next int) {
	m.chunkResizes.WithLabelValues(kind.String()).Inc()
}
