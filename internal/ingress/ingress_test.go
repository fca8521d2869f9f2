package ingress

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netham45/rtpbridge/internal/jitter"
	"github.com/netham45/rtpbridge/internal/masterclock"
	"github.com/netham45/rtpbridge/internal/rtp"
	"github.com/netham45/rtpbridge/internal/stats"
)

func newTestReceiver(t *testing.T) (*Receiver, *jitter.Buffer) {
	t.Helper()
	buf, err := jitter.New(jitter.Config{
		ChunkSize:         8,
		MaxBufferSize:     16,
		InitialBufferSize: 2,
		GrowStepSize:      2,
		MaxGrowSize:       16,
	}, jitter.PolicyAdaptive)
	require.NoError(t, err)

	clock := masterclock.New()
	r := New([]net.IP{net.ParseIP("192.168.1.10")}, 40, buf, clock, 48000, stats.NewCounters())
	return r, buf
}

func buildRTPDatagram(t *testing.T, ssrc uint32, seq uint16, ts uint32, payload []byte) []byte {
	t.Helper()
	h := rtp.Header{Version: 2, PayloadType: 10, SequenceNumber: seq, Timestamp: ts, SSRC: ssrc}
	return rtp.Marshal(h, payload)
}

func TestHandleDatagramPushesToJitterBuffer(t *testing.T) {
	r, buf := newTestReceiver(t)
	datagram := buildRTPDatagram(t, 0x1234, 1, 1000, make([]byte, 8))

	r.handleDatagram(datagram, false)

	assert.Equal(t, 1, buf.ReceivedPackets())
}

func TestHandleDatagramFiltersByMulticastSSRC(t *testing.T) {
	r, buf := newTestReceiver(t)
	r.mu.Lock()
	r.sub = &subscription{destIP: net.ParseIP("224.1.1.1"), port: 5004, ssrc: 0xAAAA, hasSSRCFilter: true}
	r.mu.Unlock()

	wrongSSRC := buildRTPDatagram(t, 0xBBBB, 1, 1000, make([]byte, 8))
	r.handleDatagram(wrongSSRC, true)
	assert.Equal(t, 0, buf.ReceivedPackets())

	rightSSRC := buildRTPDatagram(t, 0xAAAA, 1, 1000, make([]byte, 8))
	r.handleDatagram(rightSSRC, true)
	assert.Equal(t, 1, buf.ReceivedPackets())
}

func TestHandleDatagramDropsMalformedPacket(t *testing.T) {
	r, buf := newTestReceiver(t)
	r.handleDatagram([]byte{0x01}, false)
	assert.Equal(t, 0, buf.ReceivedPackets())
}

func TestConfigureStreamRejectsNonLocalUnicast(t *testing.T) {
	r, _ := newTestReceiver(t)
	err := r.ConfigureStream(net.ParseIP("10.0.0.5"), net.ParseIP("10.0.0.1"), 5004)
	assert.Error(t, err)
}

func TestConfigureStreamLocalUnicastLeavesMulticast(t *testing.T) {
	r, _ := newTestReceiver(t)
	r.mu.Lock()
	r.sub = &subscription{destIP: net.ParseIP("224.1.1.1"), port: 5004}
	r.mu.Unlock()

	err := r.ConfigureStream(net.ParseIP("192.168.1.10"), net.ParseIP("10.0.0.1"), 5004)
	require.NoError(t, err)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Nil(t, r.sub)
}

func TestSubscriptionEqualsIsParameterExact(t *testing.T) {
	s := &subscription{destIP: net.ParseIP("224.1.1.1"), srcIP: net.ParseIP("10.0.0.1"), port: 5004}
	assert.True(t, s.equals(net.ParseIP("224.1.1.1"), net.ParseIP("10.0.0.1"), 5004))
	assert.False(t, s.equals(net.ParseIP("224.1.1.1"), net.ParseIP("10.0.0.1"), 5005))
}

func TestPlayoutDeadlineFallsBackToJitterDelayWithoutSync(t *testing.T) {
	r, _ := newTestReceiver(t)
	before := r.clock.NowMs()
	deadline := r.playoutDeadline(1000)
	assert.GreaterOrEqual(t, int64(deadline), before+40)
}

func TestStartAndStopBindsAndReleasesSocket(t *testing.T) {
	r, _ := newTestReceiver(t)
	require.NoError(t, r.Start(0))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, r.Stop())
}
