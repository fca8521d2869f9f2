// Package egress implements the sender-mode RTP transmit pump: it reads
// fixed-size chunks from a local audio source, frames each with the next
// sequence number and timestamp, and sends to a runtime-updatable
// destination.
package egress

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netham45/rtpbridge/internal/audioio"
	"github.com/netham45/rtpbridge/internal/rtp"
	"github.com/netham45/rtpbridge/internal/stats"
)

// readTimeout bounds each source read so the pump can observe a stop
// request without blocking forever on silence.
const readTimeout = 500 * time.Millisecond

// Transmitter owns the outbound socket and sequencing state for one
// sender stream.
type Transmitter struct {
	mu       sync.Mutex
	destIP   net.IP
	destPort uint16

	conn        *net.UDPConn
	seq         *rtp.Sequencer
	payloadType uint8
	chunkSize   int
	source      audioio.Source
	counters    *stats.Counters

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Transmitter for the given SSRC, reading chunkSize-byte
// chunks from source and framing samplesPerSend samples per packet.
func New(ssrc uint32, chunkSize int, samplesPerSend uint32, payloadType uint8, source audioio.Source, counters *stats.Counters) *Transmitter {
	return &Transmitter{
		seq:         rtp.NewSequencer(ssrc, samplesPerSend),
		payloadType: payloadType,
		chunkSize:   chunkSize,
		source:      source,
		counters:    counters,
	}
}

// Start opens the send socket and begins the transmit pump toward
// destIP:destPort.
func (t *Transmitter) Start(destIP net.IP, destPort uint16) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return fmt.Errorf("egress: open send socket: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.destIP = destIP
	t.destPort = destPort
	t.stopCh = make(chan struct{})
	t.mu.Unlock()

	t.wg.Add(1)
	go t.pump()
	log.Infof("egress: transmitting toward %s:%d", destIP, destPort)
	return nil
}

// Stop halts the transmit pump and releases the socket.
func (t *Transmitter) Stop() error {
	t.mu.Lock()
	if t.stopCh != nil {
		close(t.stopCh)
		t.stopCh = nil
	}
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	t.wg.Wait()
	return nil
}

// UpdateDestination changes the send target without restarting the pump;
// it is re-read on every send.
func (t *Transmitter) UpdateDestination(destIP net.IP, destPort uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.destIP = destIP
	t.destPort = destPort
}

func (t *Transmitter) pump() {
	defer t.wg.Done()
	buf := make([]byte, t.chunkSize)

	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
		n, err := t.source.Read(ctx, buf, readTimeout)
		cancel()
		if err != nil {
			select {
			case <-t.stopCh:
				return
			default:
			}
			log.Warningf("egress: audio source read failed: %v", err)
			continue
		}
		if n != t.chunkSize {
			continue
		}

		rtp.SwapEndianness(buf)
		header := t.seq.Next(t.payloadType)
		datagram := rtp.Marshal(header, buf)

		t.mu.Lock()
		conn := t.conn
		dest := &net.UDPAddr{IP: t.destIP, Port: int(t.destPort)}
		t.mu.Unlock()

		if conn == nil {
			return
		}
		if _, err := conn.WriteToUDP(datagram, dest); err != nil {
			log.Warningf("egress: send to %s failed: %v", dest, err)
			continue
		}
		if t.counters != nil {
			t.counters.AddPacketsSent(1)
		}
	}
}
