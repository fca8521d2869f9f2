package egress

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netham45/rtpbridge/internal/audioio"
	"github.com/netham45/rtpbridge/internal/rtp"
	"github.com/netham45/rtpbridge/internal/stats"
)

// fakeSource feeds a fixed PCM pattern repeatedly, standing in for a real
// capture device.
type fakeSource struct {
	pattern []byte
}

func (f *fakeSource) Initialize() error               { return nil }
func (f *fakeSource) Start(audioio.StreamConfig) error { return nil }
func (f *fakeSource) Stop() error                      { return nil }
func (f *fakeSource) Deinitialize() error              { return nil }
func (f *fakeSource) IsConnected() bool                { return true }
func (f *fakeSource) PrepareForSleep() error           { return nil }
func (f *fakeSource) RestoreAfterWake() error          { return nil }
func (f *fakeSource) State() audioio.ConnectionState   { return audioio.Streaming }

func (f *fakeSource) Read(ctx context.Context, pcm []byte, timeout time.Duration) (int, error) {
	n := copy(pcm, f.pattern)
	return n, nil
}

func TestTransmitterSendsFramedPackets(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer listener.Close()
	destAddr := listener.LocalAddr().(*net.UDPAddr)

	src := &fakeSource{pattern: []byte{0x00, 0x01, 0x00, 0x02}}
	tx := New(0xCAFE, 4, 2, 96, src, stats.NewCounters())
	require.NoError(t, tx.Start(destAddr.IP, uint16(destAddr.Port)))
	defer tx.Stop()

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)

	pkt, err := rtp.Parse(buf[:n])
	require.NoError(t, err)
	assert.EqualValues(t, 0xCAFE, pkt.Header.SSRC)
	assert.True(t, pkt.Header.Marker, "first packet should carry the marker bit")
	assert.Equal(t, uint8(96), pkt.Header.PayloadType)
	assert.Equal(t, []byte{0x01, 0x00, 0x02, 0x00}, pkt.Payload, "payload should be wire-order (big-endian)")
}

func TestUpdateDestinationRetargetsWithoutRestart(t *testing.T) {
	first, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer first.Close()
	second, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer second.Close()

	src := &fakeSource{pattern: []byte{0x00, 0x01, 0x00, 0x02}}
	tx := New(1, 4, 2, 96, src, stats.NewCounters())
	firstAddr := first.LocalAddr().(*net.UDPAddr)
	require.NoError(t, tx.Start(firstAddr.IP, uint16(firstAddr.Port)))
	defer tx.Stop()

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	_, _, err = first.ReadFromUDP(buf)
	require.NoError(t, err)

	secondAddr := second.LocalAddr().(*net.UDPAddr)
	tx.UpdateDestination(secondAddr.IP, uint16(secondAddr.Port))

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = second.ReadFromUDP(buf)
	require.NoError(t, err)
}
