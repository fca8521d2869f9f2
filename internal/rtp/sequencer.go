package rtp

// Sequencer generates monotonically increasing (with u16/u32 wraparound)
// sequence numbers and RTP timestamps for a sender stream.
type Sequencer struct {
	ssrc           uint32
	seq            uint16
	timestamp      uint32
	samplesPerSend uint32
	started        bool
}

// NewSequencer returns a Sequencer for a stream identified by ssrc, whose
// timestamp advances by samplesPerSend on every Next call.
func NewSequencer(ssrc uint32, samplesPerSend uint32) *Sequencer {
	return &Sequencer{ssrc: ssrc, samplesPerSend: samplesPerSend}
}

// Next returns the header to use for the next outgoing chunk, advancing
// internal sequence/timestamp state. marker is set on the very first
// packet of the stream, matching common RTP sender practice.
func (s *Sequencer) Next(payloadType uint8) Header {
	h := Header{
		Version:        Version,
		Marker:         !s.started,
		PayloadType:    payloadType,
		SequenceNumber: s.seq,
		Timestamp:      s.timestamp,
		SSRC:           s.ssrc,
	}
	s.started = true
	s.seq++
	s.timestamp += s.samplesPerSend
	return h
}
