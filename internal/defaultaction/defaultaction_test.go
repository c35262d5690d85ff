// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package defaultaction

import (
	"os"
	"testing"

	"github.com/cilium/ebpf"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToReject(t *testing.T) {
	s := New()
	require.Equal(t, Reject, s.Get())
}

func TestSetUpdatesGet(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(Accept))
	require.Equal(t, Accept, s.Get())
}

func TestInvert(t *testing.T) {
	require.Equal(t, Reject, Accept.Invert())
	require.Equal(t, Accept, Reject.Invert())
}

func TestBindAdoptsMapValueAndWritesThrough(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("skipping eBPF map test - requires root privileges")
	}

	m, err := ebpf.NewMap(&ebpf.MapSpec{
		Name:       "test_default_action",
		Type:       ebpf.Array,
		KeySize:    4,
		ValueSize:  4,
		MaxEntries: 1,
	})
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Update(uint32(0), uint32(Accept), ebpf.UpdateAny))

	s := New()
	require.NoError(t, s.Bind(m))
	require.Equal(t, Accept, s.Get())

	require.NoError(t, s.Set(Reject))

	var got uint32
	require.NoError(t, m.Lookup(uint32(0), &got))
	require.Equal(t, uint32(Reject), got)
}
