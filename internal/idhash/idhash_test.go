// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package idhash

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateThenLookup(t *testing.T) {
	m := New[netip.Addr, uint64]()
	addr := netip.MustParseAddr("10.0.0.1")

	m.Update(addr, 7)
	v, ok := m.Lookup(addr)
	require.True(t, ok)
	require.Equal(t, uint64(7), v)
}

func TestLookupMissing(t *testing.T) {
	m := New[netip.Addr, uint64]()
	_, ok := m.Lookup(netip.MustParseAddr("10.0.0.1"))
	require.False(t, ok)
}

func TestUpdateOverwrites(t *testing.T) {
	m := New[netip.Addr, uint64]()
	addr := netip.MustParseAddr("10.0.0.1")

	m.Update(addr, 1)
	m.Update(addr, 2)
	v, _ := m.Lookup(addr)
	require.Equal(t, uint64(2), v)
	require.Equal(t, 1, m.Len())
}

func TestDeleteRemovesEntry(t *testing.T) {
	m := New[netip.Addr, uint64]()
	addr := netip.MustParseAddr("10.0.0.1")

	m.Update(addr, 1)
	require.True(t, m.Delete(addr))
	_, ok := m.Lookup(addr)
	require.False(t, ok)
}

func TestDeleteMissingReturnsFalse(t *testing.T) {
	m := New[netip.Addr, uint64]()
	require.False(t, m.Delete(netip.MustParseAddr("10.0.0.1")))
}

func TestKeysSnapshot(t *testing.T) {
	m := New[netip.Addr, uint64]()
	a1 := netip.MustParseAddr("10.0.0.1")
	a2 := netip.MustParseAddr("10.0.0.2")
	m.Update(a1, 1)
	m.Update(a2, 2)

	keys := m.Keys()
	require.Len(t, keys, 2)
	require.Contains(t, keys, a1)
	require.Contains(t, keys, a2)
}
