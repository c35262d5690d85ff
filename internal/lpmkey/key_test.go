// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lpmkey

import (
	"testing"

	"github.com/stretchr/testify/require"
	"trieguard.dev/trieguard/internal/netaddr"
)

func TestBuildV4PrefixBits(t *testing.T) {
	c := netaddr.MustParse("10.0.0.0/24")
	k := Build(5, TCP, c)

	require.Equal(t, GroupBytes+1+4, len(k.Bytes))
	require.Equal(t, 24+17*8, k.PrefixBits)
	require.Equal(t, 168, TotalBits(netaddr.V4))
}

func TestBuildV6PrefixBits(t *testing.T) {
	c := netaddr.MustParse("2001:db8::/32")
	k := Build(0, UDP, c)

	require.Equal(t, GroupBytes+1+16, len(k.Bytes))
	require.Equal(t, 32+17*8, k.PrefixBits)
	require.Equal(t, 264, TotalBits(netaddr.V6))
}

func TestBuildGroupSerializedLittleEndian(t *testing.T) {
	c := netaddr.MustParse("0.0.0.0/0")
	k := Build(0x0102030405060708, TCP, c)

	require.Equal(t, byte(0x08), k.Bytes[0])
	require.Equal(t, byte(0x01), k.Bytes[7])
	for _, b := range k.Bytes[8:16] {
		require.Equal(t, byte(0), b)
	}
	require.Equal(t, byte(TCP), k.Bytes[GroupBytes])
}

func TestBuildDistinguishesProtoAndGroup(t *testing.T) {
	c := netaddr.MustParse("10.0.0.5/32")
	a := Build(1, TCP, c)
	b := Build(1, UDP, c)
	require.NotEqual(t, a.Bytes, b.Bytes)

	cc := Build(2, TCP, c)
	require.NotEqual(t, a.Bytes, cc.Bytes)
}
