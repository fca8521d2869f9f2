// Package stats collects the bridge's runtime counters (packets
// received/lost/sent, buffer occupancy, underrun/overflow events) and
// exposes them both as a JSON HTTP snapshot and as Prometheus metrics.
package stats

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/eclesh/welford"
	log "github.com/sirupsen/logrus"
)

// Counters holds the live, atomically updated counter values for one
// stream direction. All fields are safe for concurrent use without an
// external lock, matching the teacher's atomic-counter convention in
// ptp4u/stats.
type Counters struct {
	packetsReceived  atomic.Int64
	packetsLost      atomic.Int64
	packetsSent      atomic.Int64
	underrunCount    atomic.Int64
	overflowCount    atomic.Int64
	bufferSize       atomic.Int64
	targetBufferSize atomic.Int64

	// occupancyMu guards occupancy, a running mean/variance of buffer
	// fill level sampled on every SetBufferSize call, the same
	// welford.Stats accumulator the teacher uses for clock-quality
	// running statistics in fbclock/daemon/math.go.
	occupancyMu sync.Mutex
	occupancy   *welford.Stats
}

// NewCounters returns a zeroed Counters.
func NewCounters() *Counters {
	return &Counters{occupancy: welford.New()}
}

func (c *Counters) AddPacketsReceived(n uint64) { c.packetsReceived.Add(int64(n)) }
func (c *Counters) AddPacketsLost(n uint64)      { c.packetsLost.Add(int64(n)) }
func (c *Counters) AddPacketsSent(n uint64)      { c.packetsSent.Add(int64(n)) }
func (c *Counters) IncUnderrunCount()            { c.underrunCount.Add(1) }
func (c *Counters) IncOverflowCount()            { c.overflowCount.Add(1) }
func (c *Counters) SetTargetBufferSize(n int)    { c.targetBufferSize.Store(int64(n)) }

// SetBufferSize records the jitter buffer's current occupancy, both as
// the latest point value and as a sample in the running mean/variance
// used for the buffer statistics view.
func (c *Counters) SetBufferSize(n int) {
	c.bufferSize.Store(int64(n))
	c.occupancyMu.Lock()
	c.occupancy.Add(float64(n))
	c.occupancyMu.Unlock()
}

// Snapshot captures the current values under the JSON field names used by
// both the HTTP snapshot and the Prometheus exporter.
type Snapshot struct {
	PacketsReceived     int64   `json:"packets_received"`
	PacketsLost         int64   `json:"packets_lost"`
	PacketsSent         int64   `json:"packets_sent"`
	UnderrunCount       int64   `json:"underrun_count"`
	OverflowCount       int64   `json:"overflow_count"`
	BufferSize          int64   `json:"buffer_size"`
	TargetBufferSize    int64   `json:"target_buffer_size"`
	BufferOccupancyMean float64 `json:"buffer_occupancy_mean"`
	BufferOccupancyStdd float64 `json:"buffer_occupancy_stddev"`
}

func (c *Counters) Snapshot() Snapshot {
	c.occupancyMu.Lock()
	mean, stddev := c.occupancy.Mean(), c.occupancy.Stddev()
	c.occupancyMu.Unlock()

	return Snapshot{
		PacketsReceived:     c.packetsReceived.Load(),
		PacketsLost:         c.packetsLost.Load(),
		PacketsSent:         c.packetsSent.Load(),
		UnderrunCount:       c.underrunCount.Load(),
		OverflowCount:       c.overflowCount.Load(),
		BufferSize:          c.bufferSize.Load(),
		TargetBufferSize:    c.targetBufferSize.Load(),
		BufferOccupancyMean: mean,
		BufferOccupancyStdd: stddev,
	}
}

// Reset atomically zeroes every counter.
func (c *Counters) Reset() {
	c.packetsReceived.Store(0)
	c.packetsLost.Store(0)
	c.packetsSent.Store(0)
	c.underrunCount.Store(0)
	c.overflowCount.Store(0)
	c.bufferSize.Store(0)
	c.targetBufferSize.Store(0)
	c.occupancyMu.Lock()
	c.occupancy = welford.New()
	c.occupancyMu.Unlock()
}

// JSONHandler serves the current snapshot as JSON, matching the teacher's
// handleRequest pattern in ptp4u/stats/json.go.
func (c *Counters) JSONHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		js, err := json.Marshal(c.Snapshot())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(js); err != nil {
			log.Errorf("stats: failed to write JSON snapshot: %v", err)
		}
	}
}
