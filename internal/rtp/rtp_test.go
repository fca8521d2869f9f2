package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsShortPacket(t *testing.T) {
	_, err := Parse(make([]byte, 11))
	require.Error(t, err)
}

func TestParseRejectsWrongVersion(t *testing.T) {
	buf := make([]byte, 12)
	buf[0] = 1 << 6 // version 1
	_, err := Parse(buf)
	require.Error(t, err)
}

func TestParseNeverReadsPastEnd(t *testing.T) {
	// Extension bit set but no extension header bytes present: must
	// reject, not panic.
	buf := make([]byte, 12)
	buf[0] = Version<<6 | 0x10
	_, err := Parse(buf)
	require.Error(t, err)
}

func TestMarshalParseRoundTrip(t *testing.T) {
	h := Header{
		Version:        Version,
		Marker:         true,
		PayloadType:    96,
		SequenceNumber: 1000,
		Timestamp:      48000,
		SSRC:           0xdeadbeef,
	}
	payload := []byte{1, 2, 3, 4, 5, 6}

	wire := Marshal(h, payload)
	pkt, err := Parse(wire)
	require.NoError(t, err)

	assert.Equal(t, h.SequenceNumber, pkt.Header.SequenceNumber)
	assert.Equal(t, h.Timestamp, pkt.Header.Timestamp)
	assert.Equal(t, h.SSRC, pkt.Header.SSRC)
	assert.True(t, pkt.Header.Marker)
	assert.Equal(t, payload, pkt.Payload)
}

func TestParseHonorsPadding(t *testing.T) {
	h := Header{Version: Version, Padding: true}
	payload := []byte{0xAA, 0xBB, 0xCC, 0x02} // last byte = padding length
	wire := Marshal(h, payload)

	pkt, err := Parse(wire)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, pkt.Payload)
}

func TestParseRejectsPaddingLongerThanPayload(t *testing.T) {
	h := Header{Version: Version, Padding: true}
	payload := []byte{0x05} // claims 5 bytes of padding in a 1-byte payload
	wire := Marshal(h, payload)

	_, err := Parse(wire)
	require.Error(t, err)
}

func TestSwapEndiannessIsSelfInverse(t *testing.T) {
	orig := []byte{0x01, 0x02, 0x03, 0x04}
	got := append([]byte(nil), orig...)
	SwapEndianness(got)
	assert.NotEqual(t, orig, got)
	SwapEndianness(got)
	assert.Equal(t, orig, got)
}

func TestLossDetectorInOrder(t *testing.T) {
	d := NewLossDetector()
	for _, seq := range []uint16{1000, 1001, 1002} {
		lost := d.Observe(seq)
		assert.Zero(t, lost)
	}
	assert.Zero(t, d.Lost())
	assert.EqualValues(t, 3, d.Received())
}

func TestLossDetectorWraparound(t *testing.T) {
	d := NewLossDetector()
	d.Observe(0xFFFF)
	lost := d.Observe(0x0000)
	assert.Zero(t, lost, "wraparound from 0xFFFF to 0x0000 is in order")
}

func TestLossDetectorCountsGap(t *testing.T) {
	d := NewLossDetector()
	d.Observe(1000)
	d.Observe(1001)
	lost := d.Observe(1003) // 1002 missing
	assert.EqualValues(t, 1, lost)
	lost = d.Observe(1004)
	assert.Zero(t, lost)
	assert.EqualValues(t, 1, d.Lost())
	assert.EqualValues(t, 4, d.Received())
}

func TestLossDetectorTreatsLargeGapAsReorder(t *testing.T) {
	d := NewLossDetector()
	d.Observe(50000)
	lost := d.Observe(100) // huge backward jump, not a realistic loss run
	assert.Zero(t, lost)
}

func TestSequencerAdvances(t *testing.T) {
	s := NewSequencer(0x1234, 288)
	h1 := s.Next(96)
	h2 := s.Next(96)
	assert.True(t, h1.Marker)
	assert.False(t, h2.Marker)
	assert.Equal(t, h1.SequenceNumber+1, h2.SequenceNumber)
	assert.Equal(t, h1.Timestamp+288, h2.Timestamp)
}
