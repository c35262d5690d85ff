// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classifier

import (
	"encoding/binary"
	"net/netip"
	"os"
	"testing"

	"github.com/cilium/ebpf"
	"github.com/stretchr/testify/require"
)

func skipUnlessRoot(t *testing.T) {
	t.Helper()
	if os.Getuid() != 0 {
		t.Skip("skipping eBPF map test - requires root privileges")
	}
}

func TestInsertThenLookup(t *testing.T) {
	c := New()
	addr := netip.MustParseAddr("10.0.0.1")

	require.NoError(t, c.Insert(addr, 7))
	gid, ok := c.Lookup(addr)
	require.True(t, ok)
	require.Equal(t, uint64(7), gid)
}

func TestInsertRejectsReservedGroupZero(t *testing.T) {
	c := New()
	err := c.Insert(netip.MustParseAddr("10.0.0.1"), 0)
	require.Error(t, err)
}

func TestRemoveUnassignedErrors(t *testing.T) {
	c := New()
	err := c.Remove(netip.MustParseAddr("10.0.0.1"))
	require.Error(t, err)
}

func TestRemoveClearsAssignment(t *testing.T) {
	c := New()
	addr := netip.MustParseAddr("10.0.0.1")
	require.NoError(t, c.Insert(addr, 7))
	require.NoError(t, c.Remove(addr))

	_, ok := c.Lookup(addr)
	require.False(t, ok)
}

func TestRemoveByIDClearsEveryAddress(t *testing.T) {
	c := New()
	a1 := netip.MustParseAddr("10.0.0.1")
	a2 := netip.MustParseAddr("10.0.0.2")

	require.NoError(t, c.Insert(a1, 7))
	require.NoError(t, c.Insert(a2, 7))
	require.NoError(t, c.RemoveByID(7))

	_, ok := c.Lookup(a1)
	require.False(t, ok)
	_, ok = c.Lookup(a2)
	require.False(t, ok)
}

func TestRemoveByIDUnknownErrors(t *testing.T) {
	c := New()
	err := c.RemoveByID(42)
	require.Error(t, err)
}

func TestReassigningAddressDetachesFromOldGroup(t *testing.T) {
	c := New()
	addr := netip.MustParseAddr("10.0.0.1")
	require.NoError(t, c.Insert(addr, 1))
	require.NoError(t, c.Insert(addr, 2))

	gid, ok := c.Lookup(addr)
	require.True(t, ok)
	require.Equal(t, uint64(2), gid)

	// Group 1 should no longer have any members, so RemoveByID errors.
	require.Error(t, c.RemoveByID(1))
}

// TestBindWritesThroughToKernelMap checks that once a kernel hash map is
// bound, Insert/Remove reach it synchronously alongside the in-memory map.
func TestBindWritesThroughToKernelMap(t *testing.T) {
	skipUnlessRoot(t)

	raw, err := ebpf.NewMap(&ebpf.MapSpec{
		Name:       "test_classifier",
		Type:       ebpf.Hash,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: 16,
	})
	require.NoError(t, err)
	defer raw.Close()

	c := New()
	require.NoError(t, c.Bind(raw))

	addr := netip.MustParseAddr("10.0.0.1")
	require.NoError(t, c.Insert(addr, 7))

	val := make([]byte, 8)
	require.NoError(t, raw.Lookup(addr.AsSlice(), &val))
	require.Equal(t, uint64(7), binary.LittleEndian.Uint64(val))

	require.NoError(t, c.Remove(addr))
	require.Error(t, raw.Lookup(addr.AsSlice(), &val))
}
