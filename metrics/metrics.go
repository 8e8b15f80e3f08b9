package metrics

import (
	"sync/atomic"
	"time"
)

// Collector collects runtime metrics for the probe exchange.
type Collector struct {
	// Send-phase stats.
	probesSent      int64
	probeSendErrors int64
	probeBytesSent  int64

	// Receive-phase stats.
	datagramsReceived int64
	datagramsIgnored  int64
	bytesReceived     int64

	// Round stats.
	roundsTotal    int64
	roundsComplete int64
	roundsTimedOut int64

	// Classification stats, indexed by NAT class.
	classifications [5]int64

	startTime time.Time
}

// NewCollector creates a new Collector.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

func (c *Collector) IncProbesSent() {
	atomic.AddInt64(&c.probesSent, 1)
}

func (c *Collector) IncProbeSendErrors() {
	atomic.AddInt64(&c.probeSendErrors, 1)
}

func (c *Collector) AddProbeBytesSent(n int64) {
	atomic.AddInt64(&c.probeBytesSent, n)
}

func (c *Collector) IncDatagramsReceived() {
	atomic.AddInt64(&c.datagramsReceived, 1)
}

func (c *Collector) IncDatagramsIgnored() {
	atomic.AddInt64(&c.datagramsIgnored, 1)
}

func (c *Collector) AddBytesReceived(n int64) {
	atomic.AddInt64(&c.bytesReceived, n)
}

func (c *Collector) IncRoundsTotal() {
	atomic.AddInt64(&c.roundsTotal, 1)
}

func (c *Collector) IncRoundsComplete() {
	atomic.AddInt64(&c.roundsComplete, 1)
}

func (c *Collector) IncRoundsTimedOut() {
	atomic.AddInt64(&c.roundsTimedOut, 1)
}

// IncClassification records a classification outcome. class is the
// ordinal of the NAT class (0..4 for A..F); out-of-range values are
// dropped.
func (c *Collector) IncClassification(class int) {
	if class < 0 || class >= len(c.classifications) {
		return
	}
	atomic.AddInt64(&c.classifications[class], 1)
}

// Snapshot represents a point-in-time metrics snapshot.
type Snapshot struct {
	Uptime time.Duration

	ProbesSent      int64
	ProbeSendErrors int64
	ProbeBytesSent  int64

	DatagramsReceived int64
	DatagramsIgnored  int64
	BytesReceived     int64

	RoundsTotal    int64
	RoundsComplete int64
	RoundsTimedOut int64

	// Classifications holds per-class outcome counts, ordered A, B, C,
	// D, F.
	Classifications [5]int64
}

func (c *Collector) GetSnapshot() Snapshot {
	s := Snapshot{
		Uptime: time.Since(c.startTime),

		ProbesSent:      atomic.LoadInt64(&c.probesSent),
		ProbeSendErrors: atomic.LoadInt64(&c.probeSendErrors),
		ProbeBytesSent:  atomic.LoadInt64(&c.probeBytesSent),

		DatagramsReceived: atomic.LoadInt64(&c.datagramsReceived),
		DatagramsIgnored:  atomic.LoadInt64(&c.datagramsIgnored),
		BytesReceived:     atomic.LoadInt64(&c.bytesReceived),

		RoundsTotal:    atomic.LoadInt64(&c.roundsTotal),
		RoundsComplete: atomic.LoadInt64(&c.roundsComplete),
		RoundsTimedOut: atomic.LoadInt64(&c.roundsTimedOut),
	}
	for i := range c.classifications {
		s.Classifications[i] = atomic.LoadInt64(&c.classifications[i])
	}
	return s
}

func (c *Collector) Reset() {
	atomic.StoreInt64(&c.probesSent, 0)
	atomic.StoreInt64(&c.probeSendErrors, 0)
	atomic.StoreInt64(&c.probeBytesSent, 0)

	atomic.StoreInt64(&c.datagramsReceived, 0)
	atomic.StoreInt64(&c.datagramsIgnored, 0)
	atomic.StoreInt64(&c.bytesReceived, 0)

	atomic.StoreInt64(&c.roundsTotal, 0)
	atomic.StoreInt64(&c.roundsComplete, 0)
	atomic.StoreInt64(&c.roundsTimedOut, 0)

	for i := range c.classifications {
		atomic.StoreInt64(&c.classifications[i], 0)
	}

	c.startTime = time.Now()
}

// Global is the process-level metrics collector.
var Global = NewCollector()
