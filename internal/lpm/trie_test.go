// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lpm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"trieguard.dev/trieguard/internal/lpmkey"
	"trieguard.dev/trieguard/internal/netaddr"
)

func TestInsertGetExactMatch(t *testing.T) {
	m := New[int]()
	k := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.0.0.0/24"))

	m.Insert(k, 42)
	v, ok := m.Get(k)
	require.True(t, ok)
	require.Equal(t, 42, v)
	require.Equal(t, 1, m.Len())
}

func TestGetMissingReturnsFalse(t *testing.T) {
	m := New[int]()
	k := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.0.0.0/24"))

	_, ok := m.Get(k)
	require.False(t, ok)
}

func TestInsertOverwritesSameKey(t *testing.T) {
	m := New[int]()
	k := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.0.0.0/24"))

	m.Insert(k, 1)
	m.Insert(k, 2)
	v, ok := m.Get(k)
	require.True(t, ok)
	require.Equal(t, 2, v)
	require.Equal(t, 1, m.Len())
}

// TestLPMPrefersMostSpecific checks the CIDR inheritance scenario: a
// rule on a broad CIDR and a rule on a narrower CIDR within
// the same (group, protocol) both sit in the trie, and a lookup for an
// address under the narrow block must return the narrow block's value.
func TestLPMPrefersMostSpecific(t *testing.T) {
	m := New[string]()

	broad := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.0.0.0/8"))
	narrow := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.1.0.0/16"))

	m.Insert(broad, "broad")
	m.Insert(narrow, "narrow")

	lookup := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.1.2.3/32"))
	v, ok := m.LPM(lookup.Bytes, lookup.PrefixBits)
	require.True(t, ok)
	require.Equal(t, "narrow", v)
}

func TestLPMFallsBackToBroader(t *testing.T) {
	m := New[string]()

	broad := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.0.0.0/8"))
	m.Insert(broad, "broad")

	lookup := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.9.9.9/32"))
	v, ok := m.LPM(lookup.Bytes, lookup.PrefixBits)
	require.True(t, ok)
	require.Equal(t, "broad", v)
}

func TestLPMNoMatch(t *testing.T) {
	m := New[string]()

	broad := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.0.0.0/8"))
	m.Insert(broad, "broad")

	lookup := lpmkey.Build(2, lpmkey.TCP, netaddr.MustParse("10.9.9.9/32"))
	_, ok := m.LPM(lookup.Bytes, lookup.PrefixBits)
	require.False(t, ok)
}

func TestLPMDistinguishesProtocol(t *testing.T) {
	m := New[string]()
	tcpKey := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.0.0.0/8"))
	m.Insert(tcpKey, "tcp-rule")

	udpLookup := lpmkey.Build(1, lpmkey.UDP, netaddr.MustParse("10.1.2.3/32"))
	_, ok := m.LPM(udpLookup.Bytes, udpLookup.PrefixBits)
	require.False(t, ok)
}

func TestDeleteThenMiss(t *testing.T) {
	m := New[int]()
	k := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.0.0.0/24"))

	m.Insert(k, 1)
	require.True(t, m.Delete(k))
	_, ok := m.Get(k)
	require.False(t, ok)
	require.Equal(t, 0, m.Len())
}

func TestDeleteMissingReturnsFalse(t *testing.T) {
	m := New[int]()
	k := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.0.0.0/24"))

	require.False(t, m.Delete(k))
}

func TestDeleteIsLeftInverseOfInsert(t *testing.T) {
	m := New[int]()
	a := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.0.0.0/8"))
	b := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.1.0.0/16"))

	m.Insert(a, 1)
	m.Insert(b, 2)
	require.Equal(t, 2, m.Len())

	require.True(t, m.Delete(b))
	require.Equal(t, 1, m.Len())

	va, ok := m.Get(a)
	require.True(t, ok)
	require.Equal(t, 1, va)

	_, ok = m.Get(b)
	require.False(t, ok)
}

func TestDeletePrunesEmptyPath(t *testing.T) {
	m := New[int]()
	k := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.0.0.0/32"))

	m.Insert(k, 1)
	require.True(t, m.Delete(k))
	require.Nil(t, m.root)
}

func TestLPMZeroMaxBitsNoMatch(t *testing.T) {
	m := New[string]()
	k := lpmkey.Build(1, lpmkey.TCP, netaddr.MustParse("10.0.0.0/8"))
	m.Insert(k, "v")

	_, ok := m.LPM(k.Bytes, 0)
	require.False(t, ok)
}
