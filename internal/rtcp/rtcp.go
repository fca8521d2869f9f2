// Package rtcp parses the subset of RTCP packet types this bridge uses for
// clock synchronization and peer bookkeeping: SR, RR, SDES, BYE, and APP.
// It follows the same header-then-body parse shape as the sibling rtp
// package.
package rtcp

import (
	"encoding/binary"
	"fmt"
)

// Packet types, RFC 3550 §12.1.
const (
	TypeSR   = 200
	TypeRR   = 201
	TypeSDES = 202
	TypeBYE  = 203
	TypeAPP  = 204
)

// NTPTimestamp is a 64-bit NTP timestamp split into seconds and fraction,
// as carried in a Sender Report.
type NTPTimestamp struct {
	Seconds  uint32
	Fraction uint32
}

// MiddleBits returns the 32 middle bits of the timestamp, the form used
// as LSR (last SR) in a subsequent Receiver Report.
func (t NTPTimestamp) MiddleBits() uint32 {
	return (t.Seconds&0xffff)<<16 | (t.Fraction >> 16)
}

// SenderReport is a parsed SR packet (header fields needed by this
// bridge; report blocks are not retained).
type SenderReport struct {
	SSRC           uint32
	NTPTimestamp   NTPTimestamp
	RTPTimestamp   uint32
	PacketCount    uint32
	OctetCount     uint32
	ReceptionCount int
}

// ReceiverReport is a parsed RR packet.
type ReceiverReport struct {
	SSRC           uint32
	ReceptionCount int
	// DLSR and LSR of the first report block, if present; used to compute
	// round-trip time against a peer's prior SR.
	LSR  uint32
	DLSR uint32
}

// ByePacket is a parsed BYE packet.
type ByePacket struct {
	Sources []uint32
	Reason  string
}

// SDESPacket is a parsed SDES packet; individual chunk items are not
// decoded beyond CNAME since nothing else in this bridge consumes them.
type SDESPacket struct {
	SSRC  uint32
	CNAME string
}

// commonHeader is the first 4 bytes of every RTCP packet.
type commonHeader struct {
	version    uint8
	padding    bool
	count      int
	packetType uint8
	length     int // in 32-bit words, minus one, per RFC 3550
}

func parseCommonHeader(buf []byte) (commonHeader, error) {
	if len(buf) < 4 {
		return commonHeader{}, fmt.Errorf("rtcp: packet too short for header")
	}
	first := buf[0]
	h := commonHeader{
		version:    first >> 6,
		padding:    first&0x20 != 0,
		count:      int(first & 0x1f),
		packetType: buf[1],
		length:     int(binary.BigEndian.Uint16(buf[2:4])),
	}
	if h.version != 2 {
		return commonHeader{}, fmt.Errorf("rtcp: unsupported version %d", h.version)
	}
	return h, nil
}

// Parse parses one RTCP packet (not a compound packet series) and returns
// the typed body. Unrecognized or malformed packets return an error; no
// panics occur regardless of input.
func Parse(buf []byte) (any, error) {
	h, err := parseCommonHeader(buf)
	if err != nil {
		return nil, err
	}
	wordsAvail := (len(buf) - 4) / 4
	if h.length > wordsAvail {
		return nil, fmt.Errorf("rtcp: declared length %d exceeds buffer", h.length)
	}

	switch h.packetType {
	case TypeSR:
		return parseSR(buf, h)
	case TypeRR:
		return parseRR(buf, h)
	case TypeSDES:
		return parseSDES(buf, h)
	case TypeBYE:
		return parseBYE(buf, h)
	case TypeAPP:
		return buf, nil // opaque, no interpretation needed by this bridge
	default:
		return nil, fmt.Errorf("rtcp: unknown packet type %d", h.packetType)
	}
}

func parseSR(buf []byte, h commonHeader) (SenderReport, error) {
	if len(buf) < 28 {
		return SenderReport{}, fmt.Errorf("rtcp: SR too short")
	}
	return SenderReport{
		SSRC: binary.BigEndian.Uint32(buf[4:8]),
		NTPTimestamp: NTPTimestamp{
			Seconds:  binary.BigEndian.Uint32(buf[8:12]),
			Fraction: binary.BigEndian.Uint32(buf[12:16]),
		},
		RTPTimestamp:   binary.BigEndian.Uint32(buf[16:20]),
		PacketCount:    binary.BigEndian.Uint32(buf[20:24]),
		OctetCount:     binary.BigEndian.Uint32(buf[24:28]),
		ReceptionCount: h.count,
	}, nil
}

func parseRR(buf []byte, h commonHeader) (ReceiverReport, error) {
	if len(buf) < 8 {
		return ReceiverReport{}, fmt.Errorf("rtcp: RR too short")
	}
	rr := ReceiverReport{
		SSRC:           binary.BigEndian.Uint32(buf[4:8]),
		ReceptionCount: h.count,
	}
	if h.count > 0 && len(buf) >= 32 {
		// First report block: SSRC(4) fraction/lost(4) ext-seq(4) jitter(4) LSR(4) DLSR(4)
		rr.LSR = binary.BigEndian.Uint32(buf[24:28])
		rr.DLSR = binary.BigEndian.Uint32(buf[28:32])
	}
	return rr, nil
}

func parseSDES(buf []byte, h commonHeader) (SDESPacket, error) {
	if len(buf) < 8 {
		return SDESPacket{}, fmt.Errorf("rtcp: SDES too short")
	}
	pkt := SDESPacket{SSRC: binary.BigEndian.Uint32(buf[4:8])}
	offset := 8
	for offset+2 <= len(buf) {
		itemType := buf[offset]
		if itemType == 0 {
			break
		}
		itemLen := int(buf[offset+1])
		if offset+2+itemLen > len(buf) {
			break
		}
		if itemType == 1 { // CNAME
			pkt.CNAME = string(buf[offset+2 : offset+2+itemLen])
		}
		offset += 2 + itemLen
	}
	return pkt, nil
}

func parseBYE(buf []byte, h commonHeader) (ByePacket, error) {
	need := 4 + 4*h.count
	if len(buf) < need {
		return ByePacket{}, fmt.Errorf("rtcp: BYE too short for %d sources", h.count)
	}
	bye := ByePacket{Sources: make([]uint32, h.count)}
	for i := 0; i < h.count; i++ {
		bye.Sources[i] = binary.BigEndian.Uint32(buf[4+4*i:])
	}
	if len(buf) > need {
		reasonLen := int(buf[need])
		if need+1+reasonLen <= len(buf) {
			bye.Reason = string(buf[need+1 : need+1+reasonLen])
		}
	}
	return bye, nil
}
