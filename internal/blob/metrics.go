package blob

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus counters for blob store activity.
// All methods are nil-safe so stores can run without a registry in tests.
type Metrics struct {
	putsTotal      prometheus.Counter
	putBytesTotal  prometheus.Counter
	dedupHitsTotal prometheus.Counter
	deletesTotal   prometheus.Counter
}

// NewMetrics creates and registers the blob store counters.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		putsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blob_puts_total",
			Help: "Total number of new blobs written to storage.",
		}),
		putBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blob_put_bytes_total",
			Help: "Total bytes of new blob content written to storage.",
		}),
		dedupHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blob_dedup_hits_total",
			Help: "Total number of puts that matched an existing blob.",
		}),
		deletesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blob_deletes_total",
			Help: "Total number of blobs physically removed.",
		}),
	}
	for _, c := range []prometheus.Collector{m.putsTotal, m.putBytesTotal, m.dedupHitsTotal, m.deletesTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) put(size int64) {
	if m == nil {
		return
	}
	m.putsTotal.Inc()
	m.putBytesTotal.Add(float64(size))
}

func (m *Metrics) dedupHit() {
	if m == nil {
		return
	}
	m.dedupHitsTotal.Inc()
}

func (m *Metrics) deleted() {
	if m == nil {
		return
	}
	m.deletesTotal.Inc()
}
