// Package ssrc derives the deterministic RTP synchronization-source
// identifier this bridge emits as a sender, from the local network
// interface's MAC address.
package ssrc

import (
	"encoding/binary"
	"fmt"
	"net"
)

// FromMAC folds an EUI-48 (6-byte) hardware address into a 32-bit SSRC.
// The fold lets every one of the 48 bits influence the result by XOR-ing
// the upper two bytes of a big-endian reinterpretation into the lower 32
// bits, the same "fold the
// interface identity into a fixed-width value" shape used to derive clock
// identities from interface MACs.
func FromMAC(mac net.HardwareAddr) (uint32, error) {
	if len(mac) != 6 {
		return 0, fmt.Errorf("ssrc: unsupported MAC length %d, want 6 (EUI-48)", len(mac))
	}
	var b [8]byte
	copy(b[2:], mac)
	full := binary.BigEndian.Uint64(b[:])
	return uint32(full) ^ uint32(full>>32), nil
}

// FromInterface looks up the named network interface and derives its
// SSRC via FromMAC.
func FromInterface(name string) (uint32, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("ssrc: lookup interface %q: %w", name, err)
	}
	return FromMAC(iface.HardwareAddr)
}

// MulticastFilter computes the SSRC-layer receive filter used for
// source-filtered multicast subscriptions, per the wire convention:
// (last octet of the source IP << 16) | destination port.
//
// This is distinct from, and not guaranteed to match, the SSRC any given
// sender puts in its own RTP packets — see DESIGN.md.
func MulticastFilter(srcIP net.IP, port uint16) uint32 {
	v4 := srcIP.To4()
	var lastOctet byte
	if v4 != nil {
		lastOctet = v4[3]
	}
	return uint32(lastOctet)<<16 | uint32(port)
}
