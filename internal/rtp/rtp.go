// Package rtp implements a minimal RTPv2 parser and emitter for the
// 16-bit stereo PCM payloads this bridge carries. It deliberately does not
// interpret payload type semantics — that is left to the caller.
package rtp

import (
	"encoding/binary"
	"fmt"
)

// Version is the only RTP version this bridge accepts.
const Version = 2

// headerSize is the fixed 12-byte RTPv2 header length, before any CSRC
// list, extension, or padding.
const headerSize = 12

// Header is the parsed form of an RTPv2 packet header (Table in RFC 3550
// §5.1), including whatever CSRC identifiers and extension data followed
// it.
type Header struct {
	Version        uint8
	Padding        bool
	Extension      bool
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRC           []uint32
}

// Packet is a fully parsed RTP packet: header plus the payload slice,
// still in wire (big-endian) byte order.
type Packet struct {
	Header  Header
	Payload []byte
}

// Parse parses buf as an RTPv2 packet. It rejects packets shorter than the
// fixed header, packets that aren't version 2, and packets whose computed
// payload length is non-positive (bad CSRC/extension/padding lengths).
// Parse never reads past the end of buf.
func Parse(buf []byte) (Packet, error) {
	if len(buf) < headerSize {
		return Packet{}, fmt.Errorf("rtp: packet too short: %d bytes", len(buf))
	}

	first := buf[0]
	version := first >> 6
	if version != Version {
		return Packet{}, fmt.Errorf("rtp: unsupported version %d", version)
	}
	padding := first&0x20 != 0
	extension := first&0x10 != 0
	csrcCount := int(first & 0x0f)

	second := buf[1]
	marker := second&0x80 != 0
	payloadType := second & 0x7f

	seq := binary.BigEndian.Uint16(buf[2:4])
	ts := binary.BigEndian.Uint32(buf[4:8])
	ssrc := binary.BigEndian.Uint32(buf[8:12])

	offset := headerSize + 4*csrcCount
	if offset > len(buf) {
		return Packet{}, fmt.Errorf("rtp: csrc count %d overruns packet", csrcCount)
	}

	csrc := make([]uint32, csrcCount)
	for i := 0; i < csrcCount; i++ {
		csrc[i] = binary.BigEndian.Uint32(buf[headerSize+4*i:])
	}

	if extension {
		if offset+4 > len(buf) {
			return Packet{}, fmt.Errorf("rtp: extension header overruns packet")
		}
		extLen := int(binary.BigEndian.Uint16(buf[offset+2 : offset+4]))
		offset += 4 + 4*extLen
		if offset > len(buf) {
			return Packet{}, fmt.Errorf("rtp: extension length %d overruns packet", extLen)
		}
	}

	payloadLen := len(buf) - offset
	if padding {
		if payloadLen == 0 {
			return Packet{}, fmt.Errorf("rtp: padding bit set but no payload")
		}
		padLen := int(buf[len(buf)-1])
		if padLen == 0 || padLen > payloadLen {
			return Packet{}, fmt.Errorf("rtp: padding length %d exceeds payload %d", padLen, payloadLen)
		}
		payloadLen -= padLen
	}

	if payloadLen <= 0 {
		return Packet{}, fmt.Errorf("rtp: empty payload after header/padding")
	}

	return Packet{
		Header: Header{
			Version:        version,
			Padding:        padding,
			Extension:      extension,
			Marker:         marker,
			PayloadType:    payloadType,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           ssrc,
			CSRC:           csrc,
		},
		Payload: buf[offset : offset+payloadLen],
	}, nil
}

// Marshal emits h and payload as a wire-format RTP packet. Payload is
// appended verbatim; callers are expected to have already converted PCM
// samples to big-endian via SwapEndianness.
func Marshal(h Header, payload []byte) []byte {
	size := headerSize + 4*len(h.CSRC) + len(payload)
	buf := make([]byte, size)

	first := Version << 6
	if h.Padding {
		first |= 0x20
	}
	if h.Extension {
		first |= 0x10
	}
	first |= uint8(len(h.CSRC)) & 0x0f
	buf[0] = first

	second := h.PayloadType & 0x7f
	if h.Marker {
		second |= 0x80
	}
	buf[1] = second

	binary.BigEndian.PutUint16(buf[2:4], h.SequenceNumber)
	binary.BigEndian.PutUint32(buf[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(buf[8:12], h.SSRC)

	for i, c := range h.CSRC {
		binary.BigEndian.PutUint32(buf[headerSize+4*i:], c)
	}

	copy(buf[headerSize+4*len(h.CSRC):], payload)
	return buf
}

// SwapEndianness converts an even-length slice of interleaved 16-bit PCM
// samples between big-endian (wire order) and little-endian (host order)
// in place. It is its own inverse.
func SwapEndianness(pcm []byte) {
	for i := 0; i+1 < len(pcm); i += 2 {
		pcm[i], pcm[i+1] = pcm[i+1], pcm[i]
	}
}
