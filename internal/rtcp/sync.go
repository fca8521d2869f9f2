package rtcp

import "time"

// SyncState tracks the most recent SR observed for a stream, and derives
// the mapping between RTP timestamp units and master-clock milliseconds
// that the jitter buffer needs to compute playout deadlines.
type SyncState struct {
	valid        bool
	ntpSeconds   uint32 // whole seconds since 1900, per NTP epoch
	ntpFraction  uint32
	rtpTimestamp uint32
	sampleRate   uint32
	rttMs        int64
}

// NewSyncState returns a SyncState for a stream sampled at sampleRate Hz.
func NewSyncState(sampleRate uint32) *SyncState {
	return &SyncState{sampleRate: sampleRate}
}

// ObserveSR records a Sender Report's NTP/RTP timestamp pair as the
// current sync anchor.
func (s *SyncState) ObserveSR(sr SenderReport) {
	s.valid = true
	s.ntpSeconds = sr.NTPTimestamp.Seconds
	s.ntpFraction = sr.NTPTimestamp.Fraction
	s.rtpTimestamp = sr.RTPTimestamp
}

// ObserveRR uses a peer's DLSR/LSR to compute round-trip time from
// sentAt. Reports with a zero LSR or DLSR are ignored; the LSR value is
// not compared against any SR sent by this side.
func (s *SyncState) ObserveRR(rr ReceiverReport, sentAt time.Time) {
	if rr.LSR == 0 || rr.DLSR == 0 {
		return
	}
	// DLSR is expressed in 1/65536 second units.
	delay := time.Duration(rr.DLSR) * time.Second / 65536
	rtt := time.Since(sentAt) - delay
	if rtt > 0 {
		s.rttMs = rtt.Milliseconds()
	}
}

// Valid reports whether an SR has been observed yet.
func (s *SyncState) Valid() bool { return s.valid }

// RTTMilliseconds returns the most recently computed round-trip time.
func (s *SyncState) RTTMilliseconds() int64 { return s.rttMs }

// ProjectPlayoutMs projects the master-clock millisecond time at which
// the RTP timestamp rtpTS would be rendered, given the last observed SR
// anchor. It returns ok=false if no sync anchor is available yet.
func (s *SyncState) ProjectPlayoutMs(rtpTS uint32) (ms int64, ok bool) {
	if !s.valid || s.sampleRate == 0 {
		return 0, false
	}

	deltaSamples := int64(int32(rtpTS - s.rtpTimestamp))
	deltaMs := deltaSamples * 1000 / int64(s.sampleRate)

	anchorMs := ntpToUnixMillis(s.ntpSeconds, s.ntpFraction)
	return anchorMs + deltaMs, true
}

// ntpEpochOffsetSeconds is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpEpochOffsetSeconds = 2208988800

func ntpToUnixMillis(seconds, fraction uint32) int64 {
	unixSeconds := int64(seconds) - ntpEpochOffsetSeconds
	fracMs := int64(fraction) * 1000 / (1 << 32)
	return unixSeconds*1000 + fracMs
}
