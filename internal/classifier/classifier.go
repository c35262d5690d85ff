// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package classifier maintains the address-to-group-id assignment used
// to qualify rule lookups by source group, plus the userland
// id->addresses mirror needed to remove every address for a group in
// one call.
package classifier

import (
	"encoding/binary"
	"net/netip"

	"github.com/cilium/ebpf"
	"trieguard.dev/trieguard/internal/ebpfmap"
	"trieguard.dev/trieguard/internal/ferror"
	"trieguard.dev/trieguard/internal/idhash"
)

// Classifier tracks which group id a source address is assigned to.
// NoGroup (id 0) is reserved and rejected by Insert, mirroring the
// original's InvalidId error for id==0.
type Classifier struct {
	byAddr  *idhash.Map[netip.Addr, uint64]
	byGroup map[uint64]map[netip.Addr]struct{}
	bound   *ebpfmap.Hash
}

// New creates an empty Classifier.
func New() *Classifier {
	return &Classifier{
		byAddr:  idhash.New[netip.Addr, uint64](),
		byGroup: make(map[uint64]map[netip.Addr]struct{}),
	}
}

// Bind attaches a kernel hash map (raw address bytes -> little-endian
// group id) so future Insert/Remove/RemoveByID calls write through to
// the data plane before returning.
func (c *Classifier) Bind(m *ebpf.Map) error {
	bound, err := ebpfmap.NewHash("classifier_map", m)
	if err != nil {
		return err
	}
	c.bound = bound
	return nil
}

func groupIDBytes(groupID uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, groupID)
	return buf
}

// Insert assigns addr to groupID, overwriting any previous assignment
// for addr.
func (c *Classifier) Insert(addr netip.Addr, groupID uint64) error {
	if groupID == 0 {
		return ferror.New(ferror.KindInvalidID, "group id 0 is reserved for \"no group\"")
	}

	if c.bound != nil {
		if err := c.bound.Update(addr.AsSlice(), groupIDBytes(groupID)); err != nil {
			return err
		}
	}

	if old, ok := c.byAddr.Lookup(addr); ok && old != groupID {
		c.detach(old, addr)
	}

	c.byAddr.Update(addr, groupID)
	if c.byGroup[groupID] == nil {
		c.byGroup[groupID] = make(map[netip.Addr]struct{})
	}
	c.byGroup[groupID][addr] = struct{}{}
	return nil
}

// Remove clears addr's group assignment, returning NotExistingID if addr
// has none.
func (c *Classifier) Remove(addr netip.Addr) error {
	groupID, ok := c.byAddr.Lookup(addr)
	if !ok {
		return ferror.Errorf(ferror.KindNotExistingID, "address %s has no group assignment", addr)
	}
	if c.bound != nil {
		if err := c.bound.Delete(addr.AsSlice()); err != nil {
			return err
		}
	}
	c.byAddr.Delete(addr)
	c.detach(groupID, addr)
	return nil
}

// RemoveByID clears every address assigned to groupID.
func (c *Classifier) RemoveByID(groupID uint64) error {
	addrs, ok := c.byGroup[groupID]
	if !ok {
		return ferror.Errorf(ferror.KindNotExistingID, "group id %d has no assigned addresses", groupID)
	}
	for addr := range addrs {
		if c.bound != nil {
			if err := c.bound.Delete(addr.AsSlice()); err != nil {
				return err
			}
		}
		c.byAddr.Delete(addr)
	}
	delete(c.byGroup, groupID)
	return nil
}

// Lookup returns the group id assigned to addr, if any.
func (c *Classifier) Lookup(addr netip.Addr) (uint64, bool) {
	return c.byAddr.Lookup(addr)
}

func (c *Classifier) detach(groupID uint64, addr netip.Addr) {
	set, ok := c.byGroup[groupID]
	if !ok {
		return
	}
	delete(set, addr)
	if len(set) == 0 {
		delete(c.byGroup, groupID)
	}
}
