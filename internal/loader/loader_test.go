// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package loader

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapWithoutCollectionErrors(t *testing.T) {
	l := New()
	_, err := l.Map("does_not_matter")
	require.Error(t, err)
}

func TestAttachXDPWithoutCollectionErrors(t *testing.T) {
	l := New()
	err := l.AttachXDP("xdp_firewall", "lo")
	require.Error(t, err)
}

func TestCloseWithoutLoadIsNoop(t *testing.T) {
	l := New()
	require.NoError(t, l.Close())
}

func TestLoadSpecRejectsGarbage(t *testing.T) {
	_, err := LoadSpec([]byte("not an elf object"))
	require.Error(t, err)
}

func TestVerifyMemlock(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("skipping rlimit adjustment test - requires root privileges")
	}
	require.NoError(t, VerifyMemlock())
}
