// Package ingress implements the dual-socket RTP/RTCP receive side: an
// always-on unicast socket and a conditionally active SSRC-filtered
// multicast socket, both feeding the jitter buffer with a per-packet
// playout deadline.
package ingress

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/netham45/rtpbridge/internal/jitter"
	"github.com/netham45/rtpbridge/internal/masterclock"
	"github.com/netham45/rtpbridge/internal/rtcp"
	"github.com/netham45/rtpbridge/internal/rtp"
	"github.com/netham45/rtpbridge/internal/ssrc"
	"github.com/netham45/rtpbridge/internal/stats"
)

// reuseAddrListenConfig sets SO_REUSEADDR on the unicast socket before
// bind, so UpdatePort can rebind promptly after closing the old socket
// instead of waiting out TIME_WAIT, the same socket-option-via-raw-fd
// seam the teacher reaches for with unix.SetNonblock in
// ptp4u/server/server.go.
func reuseAddrListenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
}

const readBufSize = 2048

// readDeadline bounds each blocking read so Stop() can be observed
// without relying on a Close()/read race.
const readDeadline = 200 * time.Millisecond

// subscription describes an active multicast join.
type subscription struct {
	destIP        net.IP
	srcIP         net.IP
	port          uint16
	ssrc          uint32
	hasSSRCFilter bool
}

func (s *subscription) equals(destIP, srcIP net.IP, port uint16) bool {
	return s.destIP.Equal(destIP) && s.srcIP.Equal(srcIP) && s.port == port
}

// Receiver owns the unicast and multicast sockets for one RTP stream.
type Receiver struct {
	mu sync.Mutex

	localAddrs []net.IP

	unicastConn *net.UDPConn
	unicastPort uint16

	mcastConn *net.UDPConn
	sub       *subscription

	jitterDelayMs uint32
	buf           *jitter.Buffer
	clock         *masterclock.Clock
	sync          *rtcp.SyncState
	loss          *rtp.LossDetector
	counters      *stats.Counters

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Receiver. localAddrs lists the device's own interface
// addresses, used by ConfigureStream to distinguish a unicast
// reconfiguration from a multicast subscription. sampleRate feeds the
// RTCP sync state's timestamp-to-millisecond projection.
func New(localAddrs []net.IP, jitterDelayMs uint32, buf *jitter.Buffer, clock *masterclock.Clock, sampleRate uint32, counters *stats.Counters) *Receiver {
	return &Receiver{
		localAddrs:    localAddrs,
		jitterDelayMs: jitterDelayMs,
		buf:           buf,
		clock:         clock,
		sync:          rtcp.NewSyncState(sampleRate),
		loss:          rtp.NewLossDetector(),
		counters:      counters,
	}
}

// Start binds the unicast socket at port and begins receiving.
func (r *Receiver) Start(port uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pc, err := reuseAddrListenConfig().ListenPacket(context.Background(), "udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("ingress: listen unicast on port %d: %w", port, err)
	}
	conn := pc.(*net.UDPConn)
	r.unicastConn = conn
	r.unicastPort = port
	r.stopCh = make(chan struct{})

	r.wg.Add(1)
	go r.receiveLoop(conn, false)
	log.Infof("ingress: unicast socket bound on port %d", port)
	return nil
}

// Stop closes both sockets and waits for the receive loops to exit.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	if r.stopCh != nil {
		close(r.stopCh)
		r.stopCh = nil
	}
	uc := r.unicastConn
	mc := r.mcastConn
	r.unicastConn = nil
	r.mcastConn = nil
	r.sub = nil
	r.mu.Unlock()

	if uc != nil {
		uc.Close()
	}
	if mc != nil {
		mc.Close()
	}
	r.wg.Wait()
	return nil
}

// UpdatePort closes and re-opens the unicast socket at the new port
// without disturbing any active multicast subscription.
func (r *Receiver) UpdatePort(port uint16) error {
	r.mu.Lock()
	old := r.unicastConn
	r.mu.Unlock()

	pc, err := reuseAddrListenConfig().ListenPacket(context.Background(), "udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("ingress: listen unicast on port %d: %w", port, err)
	}
	conn := pc.(*net.UDPConn)

	r.mu.Lock()
	r.unicastConn = conn
	r.unicastPort = port
	r.mu.Unlock()

	r.wg.Add(1)
	go r.receiveLoop(conn, false)

	if old != nil {
		old.Close()
	}
	log.Infof("ingress: unicast socket moved to port %d", port)
	return nil
}

// Join subscribes to a multicast group. Re-joining with identical
// parameters while already subscribed is a no-op; any parameter change
// first leaves the existing group.
func (r *Receiver) Join(destIP, srcIP net.IP, port uint16, ssrcFilter uint32, hasSSRCFilter bool) error {
	r.mu.Lock()
	if r.sub != nil && r.sub.equals(destIP, srcIP, port) &&
		r.sub.ssrc == ssrcFilter && r.sub.hasSSRCFilter == hasSSRCFilter {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if err := r.Leave(); err != nil {
		return err
	}

	conn, err := net.ListenMulticastUDP("udp", nil, &net.UDPAddr{IP: destIP, Port: int(port)})
	if err != nil {
		return fmt.Errorf("ingress: join multicast group %s:%d: %w", destIP, port, err)
	}

	r.mu.Lock()
	r.mcastConn = conn
	r.sub = &subscription{destIP: destIP, srcIP: srcIP, port: port, ssrc: ssrcFilter, hasSSRCFilter: hasSSRCFilter}
	stopCh := r.stopCh
	r.mu.Unlock()

	if stopCh == nil {
		return fmt.Errorf("ingress: join called before Start")
	}

	r.wg.Add(1)
	go r.receiveLoop(conn, true)
	log.Infof("ingress: joined multicast group %s:%d", destIP, port)
	return nil
}

// Leave drops multicast membership and closes the multicast socket; the
// unicast socket is untouched.
func (r *Receiver) Leave() error {
	r.mu.Lock()
	conn := r.mcastConn
	r.mcastConn = nil
	r.sub = nil
	r.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	return nil
}

// ConfigureStream implements the three-way SAP/destination dispatch: a
// multicast destination subscribes with an SSRC derived from the source
// address, a destination matching one of our own interfaces falls back
// to unicast-only (ignoring the announced port), anything else is
// rejected.
func (r *Receiver) ConfigureStream(destIP, srcIP net.IP, port uint16) error {
	if destIP.IsMulticast() {
		filter := ssrc.MulticastFilter(srcIP, port)
		return r.Join(destIP, srcIP, port, filter, true)
	}
	for _, local := range r.localAddrs {
		if local.Equal(destIP) {
			return r.Leave()
		}
	}
	return fmt.Errorf("ingress: configure_stream: %s is neither multicast nor a local address", destIP)
}

func (r *Receiver) receiveLoop(conn *net.UDPConn, multicast bool) {
	defer r.wg.Done()
	buf := make([]byte, readBufSize)

	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-r.stopCh:
				return
			default:
			}
			log.Warningf("ingress: read error on %s socket: %v", socketLabel(multicast), err)
			continue
		}
		r.handleDatagram(buf[:n], multicast)
	}
}

func socketLabel(multicast bool) string {
	if multicast {
		return "multicast"
	}
	return "unicast"
}

func (r *Receiver) handleDatagram(datagram []byte, multicast bool) {
	if len(datagram) < 2 {
		return
	}
	pt := datagram[1]
	if pt >= rtcp.TypeSR && pt <= rtcp.TypeAPP {
		r.handleRTCP(datagram)
		return
	}

	pkt, err := rtp.Parse(datagram)
	if err != nil {
		log.Debugf("ingress: dropping malformed RTP packet: %v", err)
		return
	}

	if multicast {
		r.mu.Lock()
		sub := r.sub
		r.mu.Unlock()
		if sub != nil && sub.hasSSRCFilter && pkt.Header.SSRC != sub.ssrc {
			return
		}
	}

	lost := r.loss.Observe(pkt.Header.SequenceNumber)
	if r.counters != nil {
		r.counters.AddPacketsReceived(1)
		if lost > 0 {
			r.counters.AddPacketsLost(lost)
		}
	}

	rtp.SwapEndianness(pkt.Payload)

	playoutMs := r.playoutDeadline(pkt.Header.Timestamp)
	r.buf.PushWithDeadline(pkt.Payload, playoutMs, pkt.Header.Timestamp)
}

func (r *Receiver) handleRTCP(datagram []byte) {
	parsed, err := rtcp.Parse(datagram)
	if err != nil {
		log.Debugf("ingress: dropping malformed RTCP packet: %v", err)
		return
	}
	switch p := parsed.(type) {
	case rtcp.SenderReport:
		r.sync.ObserveSR(p)
	case rtcp.ReceiverReport:
		r.sync.ObserveRR(p, masterclock.Monotonic())
	default:
		// SDES/BYE/APP carry no information the playout path needs.
	}
}

// playoutDeadline derives the per-packet master-clock deadline: a
// master-clock projection of the RTP timestamp when sync is valid,
// otherwise now + the configured jitter delay.
func (r *Receiver) playoutDeadline(rtpTS uint32) uint64 {
	if r.sync.Valid() {
		if ms, ok := r.sync.ProjectPlayoutMs(rtpTS); ok {
			return uint64(ms)
		}
	}
	return uint64(r.clock.NowMs() + int64(r.jitterDelayMs))
}

// SyncState exposes the RTCP-derived clock sync state for diagnostics.
func (r *Receiver) SyncState() *rtcp.SyncState { return r.sync }

// LossDetector exposes the sequence-number loss tracker for diagnostics.
func (r *Receiver) LossDetector() *rtp.LossDetector { return r.loss }
