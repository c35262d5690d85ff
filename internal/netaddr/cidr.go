// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netaddr implements CIDR algebra: address normalization and
// containment, tracked independently per address family. Dispatch
// across address families is a small capability-set interface
// ({AddressBytes, PrefixBits}) with concrete V4/V6 variants, resolved
// once per packet rather than paid per field access.
package netaddr

import (
	"net/netip"

	"trieguard.dev/trieguard/internal/ferror"
)

// Family identifies an address family tracked independently throughout
// the tracker and classifier.
type Family int

const (
	V4 Family = iota
	V6
)

func (f Family) String() string {
	if f == V4 {
		return "v4"
	}
	return "v6"
}

// Capability is the per-family capability set: a fixed-size struct of
// {address_bytes, prefix_bits}, resolved once from the packet's IP
// version and then used statically, never a virtual call per field.
type Capability struct {
	AddressBytes int
	PrefixBits   int
}

var (
	capV4 = Capability{AddressBytes: 4, PrefixBits: 32}
	capV6 = Capability{AddressBytes: 16, PrefixBits: 128}
)

// CapabilityOf returns the capability set for f.
func CapabilityOf(f Family) Capability {
	if f == V4 {
		return capV4
	}
	return capV6
}

// CIDR is a normalized address block: an address with bits beyond Prefix
// zeroed, plus the prefix length itself.
type CIDR struct {
	Family Family
	Addr   netip.Addr
	Prefix int
}

// New builds a normalized CIDR from addr and a prefix length, masking any
// bits beyond the prefix.
func New(addr netip.Addr, prefix int) (CIDR, error) {
	fam := V4
	if addr.Is6() && !addr.Is4In6() {
		fam = V6
	}
	addr = addr.Unmap()
	cap := CapabilityOf(fam)

	if prefix < 0 || prefix > cap.PrefixBits {
		return CIDR{}, ferror.Errorf(ferror.KindInvalidPort, "prefix %d out of range [0,%d] for %s", prefix, cap.PrefixBits, fam)
	}

	p := netip.PrefixFrom(addr, prefix).Masked()
	return CIDR{Family: fam, Addr: p.Addr(), Prefix: prefix}, nil
}

// Parse parses a CIDR string ("10.0.0.0/8", "::1/128") and normalizes it.
func Parse(s string) (CIDR, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return CIDR{}, ferror.Wrapf(err, ferror.KindInvalidPort, "parse CIDR %q", s)
	}
	return New(p.Addr(), p.Bits())
}

// MustParse is Parse but panics on error; used for constants in tests.
func MustParse(s string) CIDR {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Equal reports whether two CIDRs have identical normalized forms.
func (c CIDR) Equal(o CIDR) bool {
	return c.Family == o.Family && c.Prefix == o.Prefix && c.Addr == o.Addr
}

// Contains reports whether c contains o: o's prefix must be at least as
// specific as c's, and o's address masked to c's prefix must equal c's
// address. A CIDR contains itself.
func (c CIDR) Contains(o CIDR) bool {
	if c.Family != o.Family {
		return false
	}
	if o.Prefix < c.Prefix {
		return false
	}
	masked := netip.PrefixFrom(o.Addr, c.Prefix).Masked().Addr()
	return masked == c.Addr
}

// AddressBytes returns the normalized address's big-endian byte slice,
// sized to the family's AddressBytes.
func (c CIDR) AddressBytes() []byte {
	return c.Addr.AsSlice()
}

// String renders the CIDR in standard "addr/prefix" form.
func (c CIDR) String() string {
	return netip.PrefixFrom(c.Addr, c.Prefix).String()
}
