package rtcp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSR(ssrc, ntpSec, ntpFrac, rtpTS, pktCount, octCount uint32) []byte {
	buf := make([]byte, 28)
	buf[0] = 2 << 6
	buf[1] = TypeSR
	binary.BigEndian.PutUint16(buf[2:4], 6)
	binary.BigEndian.PutUint32(buf[4:8], ssrc)
	binary.BigEndian.PutUint32(buf[8:12], ntpSec)
	binary.BigEndian.PutUint32(buf[12:16], ntpFrac)
	binary.BigEndian.PutUint32(buf[16:20], rtpTS)
	binary.BigEndian.PutUint32(buf[20:24], pktCount)
	binary.BigEndian.PutUint32(buf[24:28], octCount)
	return buf
}

func TestParseSR(t *testing.T) {
	buf := buildSR(0x1111, 3800000000, 0, 48000, 100, 115200)
	pkt, err := Parse(buf)
	require.NoError(t, err)

	sr, ok := pkt.(SenderReport)
	require.True(t, ok)
	assert.EqualValues(t, 0x1111, sr.SSRC)
	assert.EqualValues(t, 48000, sr.RTPTimestamp)
}

func TestParseRejectsWrongVersion(t *testing.T) {
	buf := make([]byte, 8)
	buf[0] = 1 << 6
	buf[1] = TypeRR
	_, err := Parse(buf)
	require.Error(t, err)
}

func TestParseBYE(t *testing.T) {
	buf := make([]byte, 8)
	buf[0] = 2<<6 | 1
	buf[1] = TypeBYE
	binary.BigEndian.PutUint16(buf[2:4], 1)
	binary.BigEndian.PutUint32(buf[4:8], 0xAAAA)

	pkt, err := Parse(buf)
	require.NoError(t, err)
	bye, ok := pkt.(ByePacket)
	require.True(t, ok)
	require.Len(t, bye.Sources, 1)
	assert.EqualValues(t, 0xAAAA, bye.Sources[0])
}

func TestSyncStateProjectsPlayout(t *testing.T) {
	s := NewSyncState(48000)
	_, ok := s.ProjectPlayoutMs(0)
	assert.False(t, ok, "no SR observed yet")

	sr := SenderReport{
		NTPTimestamp: NTPTimestamp{Seconds: 2208988800 + 1000}, // unix time 1000s
		RTPTimestamp: 48000,
	}
	s.ObserveSR(sr)

	ms, ok := s.ProjectPlayoutMs(48000 + 4800) // +100ms worth of samples
	require.True(t, ok)
	assert.Equal(t, int64(1000*1000+100), ms)
}
