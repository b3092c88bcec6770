// Package stats implements Statistics (spec.md §3/§8): monotonic
// counters, an average queue depth, and latency histograms, mutated by the
// Controller and read by the printers in dramsim/print.go. Every value is
// cumulative over the whole run; nothing is reset at an epoch boundary.
// Counters are
// atomic (grounded on the teacher's own metrics.go) so a Prometheus
// scraper or a concurrent PrintStats call never races the ticking
// goroutine.
package stats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// latencyBucketsCycles defines the access-latency histogram buckets in
// simulated cycles, logarithmically spaced the way metrics.go spaces its
// nanosecond buckets.
var latencyBucketsCycles = []uint64{10, 20, 40, 80, 160, 320, 640, 1280}

// Stats is the per-channel statistics block.
type Stats struct {
	ReadsIssued        atomic.Uint64
	WritesIssued       atomic.Uint64
	RowHits            atomic.Uint64
	RowMisses          atomic.Uint64
	ActivatesIssued    atomic.Uint64
	PrechargesIssued   atomic.Uint64
	OnDemandPrecharges atomic.Uint64
	RefreshesIssued    atomic.Uint64

	TotalAccessLatency atomic.Uint64
	AccessCount        atomic.Uint64
	latencyHistogram   [len(latencyBucketsCycles)]atomic.Uint64

	// epochReads and epochWrites are never updated or read.
	epochReads  atomic.Uint64
	epochWrites atomic.Uint64

	QueueUsageTotal atomic.Uint64
	QueueUsageCount atomic.Uint64

	prom *promCollectors
}

// promCollectors holds the Prometheus instruments registered for one
// channel's Stats.
type promCollectors struct {
	reads        prometheus.Counter
	writes       prometheus.Counter
	rowHits      prometheus.Counter
	rowMisses    prometheus.Counter
	precharges   prometheus.Counter
	ondemandPres prometheus.Counter
	refreshes    prometheus.Counter
	accessLat    prometheus.Histogram
}

// New returns a zeroed Stats block, optionally registering its counters
// on reg under the given namespace/channel label. reg may be nil, in
// which case no Prometheus instruments are created.
func New(reg *prometheus.Registry, namespace string, channel int) *Stats {
	s := &Stats{}
	if reg == nil {
		return s
	}
	labels := prometheus.Labels{"channel": itoa(channel)}
	s.prom = &promCollectors{
		reads:        mustRegisterCounter(reg, namespace, "reads_issued_total", "Total READ commands issued.", labels),
		writes:       mustRegisterCounter(reg, namespace, "writes_issued_total", "Total WRITE commands issued.", labels),
		rowHits:      mustRegisterCounter(reg, namespace, "row_hits_total", "Total row-hit RW accesses.", labels),
		rowMisses:    mustRegisterCounter(reg, namespace, "row_misses_total", "Total row-miss RW accesses.", labels),
		precharges:   mustRegisterCounter(reg, namespace, "precharges_issued_total", "Total PRECHARGE commands issued.", labels),
		ondemandPres: mustRegisterCounter(reg, namespace, "on_demand_precharges_total", "Total on-demand precharges won by arbitration.", labels),
		refreshes:    mustRegisterCounter(reg, namespace, "refreshes_issued_total", "Total REFRESH commands issued.", labels),
		accessLat: mustRegisterHistogram(reg, namespace, "access_latency_cycles", "RW access latency in simulated cycles.", labels,
			[]float64{10, 20, 40, 80, 160, 320, 640, 1280}),
	}
	return s
}

func mustRegisterCounter(reg *prometheus.Registry, ns, name, help string, labels prometheus.Labels) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: name, Help: help, ConstLabels: labels})
	reg.MustRegister(c)
	return c
}

func mustRegisterHistogram(reg *prometheus.Registry, ns, name, help string, labels prometheus.Labels, buckets []float64) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: ns, Name: name, Help: help, ConstLabels: labels, Buckets: buckets})
	reg.MustRegister(h)
	return h
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// RecordActivate records an issued ACTIVATE command.
func (s *Stats) RecordActivate() { s.ActivatesIssued.Add(1) }

func (s *Stats) RecordPrecharge() {
	s.PrechargesIssued.Add(1)
	if s.prom != nil {
		s.prom.precharges.Inc()
	}
}

// RecordOnDemandPrecharge implements cmdqueue.StatsRecorder.
func (s *Stats) RecordOnDemandPrecharge() {
	s.OnDemandPrecharges.Add(1)
	if s.prom != nil {
		s.prom.ondemandPres.Inc()
	}
}

func (s *Stats) RecordRefresh() {
	s.RefreshesIssued.Add(1)
	if s.prom != nil {
		s.prom.refreshes.Inc()
	}
}

// RecordRW records an issued READ or WRITE, its row-hit classification,
// and its latency in cycles from the request's arrival to this issue.
func (s *Stats) RecordRW(isWrite bool, rowHit bool, latencyCycles uint64) {
	if isWrite {
		s.WritesIssued.Add(1)
		if s.prom != nil {
			s.prom.writes.Inc()
		}
	} else {
		s.ReadsIssued.Add(1)
		if s.prom != nil {
			s.prom.reads.Inc()
		}
	}
	if rowHit {
		s.RowHits.Add(1)
		if s.prom != nil {
			s.prom.rowHits.Inc()
		}
	} else {
		s.RowMisses.Add(1)
		if s.prom != nil {
			s.prom.rowMisses.Inc()
		}
	}
	s.TotalAccessLatency.Add(latencyCycles)
	s.AccessCount.Add(1)
	if s.prom != nil {
		s.prom.accessLat.Observe(float64(latencyCycles))
	}
	for i, bound := range latencyBucketsCycles {
		if latencyCycles <= bound {
			s.latencyHistogram[i].Add(1)
		}
	}
}

// RecordQueueUsage samples the current command queue depth. The sums are
// never reset, so the resulting average covers the whole run, not an epoch.
func (s *Stats) RecordQueueUsage(depth int) {
	s.QueueUsageTotal.Add(uint64(depth))
	s.QueueUsageCount.Add(1)
}

// Snapshot is a point-in-time, non-atomic copy suitable for printing.
type Snapshot struct {
	ReadsIssued, WritesIssued                 uint64
	RowHits, RowMisses                        uint64
	ActivatesIssued, PrechargesIssued         uint64
	OnDemandPrecharges, RefreshesIssued       uint64
	AverageAccessLatency                      float64
	AverageQueueUsage                         float64
	LatencyHistogram                          map[uint64]uint64
}

// Snapshot captures the current counters.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		ReadsIssued:        s.ReadsIssued.Load(),
		WritesIssued:       s.WritesIssued.Load(),
		RowHits:            s.RowHits.Load(),
		RowMisses:          s.RowMisses.Load(),
		ActivatesIssued:    s.ActivatesIssued.Load(),
		PrechargesIssued:   s.PrechargesIssued.Load(),
		OnDemandPrecharges: s.OnDemandPrecharges.Load(),
		RefreshesIssued:    s.RefreshesIssued.Load(),
		LatencyHistogram:   make(map[uint64]uint64, len(latencyBucketsCycles)),
	}
	if n := s.AccessCount.Load(); n > 0 {
		snap.AverageAccessLatency = float64(s.TotalAccessLatency.Load()) / float64(n)
	}
	if n := s.QueueUsageCount.Load(); n > 0 {
		snap.AverageQueueUsage = float64(s.QueueUsageTotal.Load()) / float64(n)
	}
	for i, bound := range latencyBucketsCycles {
		snap.LatencyHistogram[bound] = s.latencyHistogram[i].Load()
	}
	return snap
}
