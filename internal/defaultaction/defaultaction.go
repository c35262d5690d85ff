// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package defaultaction implements a single-entry store for the
// firewall's default verdict, readable by the packet decision path on
// every lookup and writable through the control plane's
// SetDefaultAction call.
package defaultaction

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/cilium/ebpf"
	"trieguard.dev/trieguard/internal/ferror"
)

// Action is the firewall verdict: either the configured default, or its
// inversion when a rule fires.
type Action int32

const (
	Reject Action = iota
	Accept
)

func (a Action) String() string {
	if a == Accept {
		return "accept"
	}
	return "reject"
}

// Invert returns the opposite verdict, used when a rule "fires" as an
// exception to the default.
func (a Action) Invert() Action {
	if a == Accept {
		return Reject
	}
	return Accept
}

// configKey is the single recognised key into the config map.
const configKey uint32 = 0

// Store holds the current default action, mirroring it into an attached
// kernel config map (an ebpf.Array of size 1) when one is attached.
type Store struct {
	value atomic.Int32
	bound *ebpf.Map
}

// New creates a Store defaulting to Reject, matching the common
// fail-closed posture before a caller explicitly sets one.
func New() *Store {
	s := &Store{}
	s.value.Store(int32(Reject))
	return s
}

// Bind attaches a kernel config map (ebpf.Array, one entry) so future
// Set calls write through to the data plane. The map's current value is
// read and adopted as the Store's starting value.
func (s *Store) Bind(m *ebpf.Map) error {
	info, err := m.Info()
	if err != nil {
		return ferror.Wrapf(err, ferror.KindMapError, "info for default-action config map")
	}
	if info.Type != ebpf.Array {
		return ferror.Errorf(ferror.KindMapError, "config map is type %s, want Array", info.Type)
	}

	var buf [4]byte
	if err := m.Lookup(configKey, &buf); err != nil {
		return ferror.Wrapf(err, ferror.KindMapError, "read initial default action")
	}
	s.value.Store(int32(binary.LittleEndian.Uint32(buf[:])))
	s.bound = m
	return nil
}

// Get returns the current default action.
func (s *Store) Get() Action {
	return Action(s.value.Load())
}

// Set writes a new verdict, updating any bound kernel config map first
// so a failed write leaves the in-memory value unchanged.
func (s *Store) Set(a Action) error {
	if s.bound != nil {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(a))
		if err := s.bound.Update(configKey, buf, ebpf.UpdateAny); err != nil {
			return ferror.Wrapf(err, ferror.KindMapError, "write default action")
		}
	}
	s.value.Store(int32(a))
	return nil
}
