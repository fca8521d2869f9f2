package rtp

// LossDetector tracks RTP sequence-number continuity for one stream. It
// is diagnostic only: it never reorders or drops packets itself.
type LossDetector struct {
	lastSeq     uint16
	firstPacket bool
	lost        uint64
	received    uint64
}

// NewLossDetector returns a detector ready to observe the first packet of
// a stream.
func NewLossDetector() *LossDetector {
	return &LossDetector{firstPacket: true}
}

// Observe records the sequence number of one received packet and returns
// the number of packets newly counted as lost (0 or more). Reordered
// packets (sequence numbers behind the expected value by less than 1000,
// modulo 2^16) are never counted as loss.
func (d *LossDetector) Observe(seq uint16) uint64 {
	d.received++
	if d.firstPacket {
		d.firstPacket = false
		d.lastSeq = seq
		return 0
	}

	expected := d.lastSeq + 1
	d.lastSeq = seq

	if seq == expected {
		return 0
	}

	gap := seq - expected // uint16 wraparound arithmetic
	if uint32(gap) < 1000 {
		d.lost += uint64(gap)
		return uint64(gap)
	}
	// Large negative-looking gap: treat as reordering, not loss.
	return 0
}

// Lost returns the cumulative count of packets counted as lost.
func (d *LossDetector) Lost() uint64 { return d.lost }

// Received returns the cumulative count of packets observed.
func (d *LossDetector) Received() uint64 { return d.received }

// Reset clears all counters, as if no packet had ever been observed.
func (d *LossDetector) Reset() {
	d.lastSeq = 0
	d.firstPacket = true
	d.lost = 0
	d.received = 0
}
