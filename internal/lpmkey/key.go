// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package lpmkey builds the composite LPM keys used by the decision
// path and rule tracker: group_id ‖ protocol ‖ address, with the prefix length counted so that
// the group and protocol fields are always "fully specified" and only
// the trailing address bits are subject to longest-prefix matching.
package lpmkey

import (
	"encoding/binary"

	"trieguard.dev/trieguard/internal/netaddr"
)

// Protocol is the concrete (post-GENERIC-unfold) wire protocol byte, or
// the Generic sentinel consumed at rule ingestion before any tracked key
// or packet ever carries it. TCP/UDP values are the IANA protocol
// numbers.
type Protocol uint8

const (
	TCP Protocol = 0x06
	UDP Protocol = 0x11

	// Generic is a rule-ingestion-only convenience: a rule carrying it
	// is unfolded into one TCP and one UDP record before it reaches the
	// tracker, so Generic itself never appears in a tracked key, a
	// compiled key, or a packet's protocol field.
	Generic Protocol = 0x00
)

func (p Protocol) String() string {
	switch p {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	case Generic:
		return "generic"
	default:
		return "unknown"
	}
}

// GroupBytes is the fixed width of the serialized group-id field.
const GroupBytes = 16

// NoGroup is the reserved group id meaning "no group" inside the data
// plane.
const NoGroup uint64 = 0

// Key is a composite LPM key: the full byte sequence plus the prefix
// length to register it under.
type Key struct {
	Bytes      []byte
	PrefixBits int
}

// groupPrefixBits is the number of leading, fully-specified bits
// contributed by the group and protocol fields: (GroupBytes+1)*8.
const groupPrefixBits = (GroupBytes + 1) * 8

// Build constructs the composite key for (groupID, proto, cidr). groupID
// is serialized little-endian into the fixed 16-byte group field (upper
// bytes zero for the common case of a 64-bit id space). The key's
// PrefixBits is cidr.Prefix + groupPrefixBits, so an LPM lookup only ever
// varies the address suffix.
func Build(groupID uint64, proto Protocol, cidr netaddr.CIDR) Key {
	addr := cidr.AddressBytes()
	buf := make([]byte, GroupBytes+1+len(addr))
	binary.LittleEndian.PutUint64(buf[0:8], groupID)
	buf[GroupBytes] = byte(proto)
	copy(buf[GroupBytes+1:], addr)

	return Key{
		Bytes:      buf,
		PrefixBits: cidr.Prefix + groupPrefixBits,
	}
}

// TotalBits returns the full composite key length in bits for family f,
// i.e. groupPrefixBits + the family's address width (168 for v4, 264 for
// v6).
func TotalBits(f netaddr.Family) int {
	return groupPrefixBits + netaddr.CapabilityOf(f).PrefixBits
}
