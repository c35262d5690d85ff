// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tracker implements the Rule Tracker: the
// userland (group, protocol, CIDR) -> port-range-set map, rule
// inheritance between broader and narrower CIDRs in the same group, and
// the two-pass check/mutate atomicity that keeps the in-memory map and
// the attached LPM map consistent.
package tracker

import (
	"sort"

	"github.com/cilium/ebpf"
	"github.com/google/uuid"
	"trieguard.dev/trieguard/internal/ebpfmap"
	"trieguard.dev/trieguard/internal/ferror"
	"trieguard.dev/trieguard/internal/lpm"
	"trieguard.dev/trieguard/internal/lpmkey"
	"trieguard.dev/trieguard/internal/netaddr"
	"trieguard.dev/trieguard/internal/portstore"
)

// key identifies one materialized rule-store entry: a (group, protocol,
// CIDR) triple. It is comparable, so it can be a Go map key directly.
type key struct {
	group uint64
	proto lpmkey.Protocol
	cidr  netaddr.CIDR
}

// Rule is one caller-supplied port range attached to a CIDR, carrying an
// opaque handle so a caller can remove exactly the range it added without
// re-specifying the range byte-for-byte.
type Rule struct {
	Handle uuid.UUID
	Range  portstore.Range
}

// Tracker owns the materialized rule map and keeps an in-memory LPM map
// synchronized with it, plus a bound kernel LPM-trie map once Bind has
// been called.
type Tracker struct {
	rules map[key]map[uuid.UUID]portstore.Range
	store *lpm.Map[portstore.Store]
	bound *ebpfmap.LPM
}

// New creates a Tracker backed by an in-memory LPM map. Call Bind once a
// collection is loaded so every subsequent write also reaches the
// attached kernel LPM-trie map before AddRule/RemoveRule return.
func New() *Tracker {
	return &Tracker{
		rules: make(map[key]map[uuid.UUID]portstore.Range),
		store: lpm.New[portstore.Store](),
	}
}

// Bind attaches a kernel LPM-trie map so future writeThrough calls update
// it synchronously, ahead of the in-memory map.
func (t *Tracker) Bind(m *ebpf.Map) error {
	bound, err := ebpfmap.NewLPM("rule_store_map", m)
	if err != nil {
		return err
	}
	t.bound = bound
	return nil
}

// compile resolves overlaps in the given range set and builds a
// portstore.Store, erroring out if the set exceeds portstore.MaxRanges.
func compile(ranges map[uuid.UUID]portstore.Range) (portstore.Store, error) {
	flat := make([]portstore.Range, 0, len(ranges))
	for _, r := range ranges {
		flat = append(flat, r)
	}
	return portstore.Compile(flat)
}

// checkCapacity dry-runs compile for every rule set in affected (each
// already carrying the proposed addition), erroring before anything is
// mutated if any key would exceed portstore.MaxRanges. This is the "check" pass of the
// two-pass atomic update.
func (t *Tracker) checkCapacity(affected map[key]map[uuid.UUID]portstore.Range) error {
	for k, ranges := range affected {
		if _, err := compile(ranges); err != nil {
			return ferror.Wrapf(err, ferror.KindExhausted, "capacity check failed for group=%d proto=%s cidr=%s", k.group, k.proto, k.cidr)
		}
	}
	return nil
}

// AddRule registers a new port range on (groupID, proto, cidr), returning
// an opaque handle for later removal. The update is all-or-nothing: a
// dry-run capacity check runs over every CIDR-group key that would be
// touched by inheritance before any map is mutated.
func (t *Tracker) AddRule(groupID uint64, proto lpmkey.Protocol, cidr netaddr.CIDR, rng portstore.Range) (uuid.UUID, error) {
	if err := portstore.ValidateRange(rng.Start, rng.End); err != nil {
		return uuid.UUID{}, err
	}

	handle := uuid.New()
	k := key{group: groupID, proto: proto, cidr: cidr}

	affected := t.affectedByPropagation(k)
	for other := range affected {
		affected[other][handle] = rng
	}
	affected[k] = cloneRanges(t.rules[k])
	affected[k][handle] = rng

	for broader := range t.reverseSources(k) {
		for h, r := range t.rules[broader] {
			affected[k][h] = r
		}
	}

	if err := t.checkCapacity(affected); err != nil {
		return uuid.UUID{}, err
	}

	if t.rules[k] == nil {
		t.rules[k] = make(map[uuid.UUID]portstore.Range)
	}
	t.rules[k][handle] = rng

	if err := t.reversePropagate(k); err != nil {
		return uuid.UUID{}, err
	}
	if err := t.propagate(k, handle, rng); err != nil {
		return uuid.UUID{}, err
	}

	return handle, nil
}

// RemoveRule removes the rule registered under handle from cidr, and
// from every narrower CIDR in the same (groupID, proto) it was
// propagated into.
func (t *Tracker) RemoveRule(groupID uint64, proto lpmkey.Protocol, cidr netaddr.CIDR, handle uuid.UUID) error {
	k := key{group: groupID, proto: proto, cidr: cidr}
	ranges, ok := t.rules[k]
	if !ok {
		return ferror.Errorf(ferror.KindNotExistingID, "no rules tracked for group=%d proto=%s cidr=%s", groupID, proto, cidr)
	}
	rng, ok := ranges[handle]
	if !ok {
		return ferror.Errorf(ferror.KindNotExistingID, "handle %s not found at group=%d proto=%s cidr=%s", handle, groupID, proto, cidr)
	}
	delete(ranges, handle)

	return t.propagateRemoval(k, handle, rng)
}

// cloneRanges returns a shallow copy of a rule set, safe to mutate
// without affecting the tracker's own state.
func cloneRanges(src map[uuid.UUID]portstore.Range) map[uuid.UUID]portstore.Range {
	out := make(map[uuid.UUID]portstore.Range, len(src))
	for h, r := range src {
		out[h] = r
	}
	return out
}

// affectedByPropagation returns a copy of every (groupID, proto, narrowerCIDR)
// rule set that origin.cidr would propagate a new rule into: every
// tracked key in the same (group, proto) whose CIDR origin contains.
func (t *Tracker) affectedByPropagation(origin key) map[key]map[uuid.UUID]portstore.Range {
	out := make(map[key]map[uuid.UUID]portstore.Range)
	for k, v := range t.rules {
		if k.group == origin.group && k.proto == origin.proto && origin.cidr.Contains(k.cidr) {
			out[k] = cloneRanges(v)
		}
	}
	return out
}

// reverseSources returns the set of tracked keys broader than target in
// the same (group, proto): the CIDRs whose existing rules must be
// pulled into a newly added narrower CIDR.
func (t *Tracker) reverseSources(target key) map[key]struct{} {
	out := make(map[key]struct{})
	for k := range t.rules {
		if k.group == target.group && k.proto == target.proto && k.cidr.Contains(target.cidr) {
			out[k] = struct{}{}
		}
	}
	return out
}

// writeThrough recompiles k's rule set and writes it into the in-memory
// LPM map and, if Bind was called, the kernel LPM-trie map, removing the
// entry entirely if the rule set is now empty. The kernel write happens
// before the in-memory one, so a failed kernel write never leaves the
// two maps out of sync with the in-memory write already committed.
func (t *Tracker) writeThrough(k key) error {
	ranges := t.rules[k]
	lk := lpmkey.Build(k.group, k.proto, k.cidr)

	if len(ranges) == 0 {
		if t.bound != nil {
			if err := t.bound.Delete(lk); err != nil {
				return err
			}
		}
		delete(t.rules, k)
		t.store.Delete(lk)
		return nil
	}

	store, err := compile(ranges)
	if err != nil {
		return err
	}
	if t.bound != nil {
		val, err := store.MarshalBinary()
		if err != nil {
			return err
		}
		if err := t.bound.Update(lk, val); err != nil {
			return err
		}
	}
	t.store.Insert(lk, store)
	return nil
}

// propagate inserts (handle, rng) into every narrower tracked CIDR in the
// same (group, proto) as k.
func (t *Tracker) propagate(k key, handle uuid.UUID, rng portstore.Range) error {
	for other := range t.rules {
		if other == k {
			continue
		}
		if other.group != k.group || other.proto != k.proto || !k.cidr.Contains(other.cidr) {
			continue
		}
		t.rules[other][handle] = rng
		if err := t.writeThrough(other); err != nil {
			return err
		}
	}
	return t.writeThrough(k)
}

// reversePropagate pulls every rule from broader tracked CIDRs in the
// same (group, proto) into k. Run before propagate so a rule just added
// at a broader CIDR does not also get pulled back into itself by this
// same call.
func (t *Tracker) reversePropagate(k key) error {
	for broader := range t.rules {
		if broader == k {
			continue
		}
		if broader.group != k.group || broader.proto != k.proto || !broader.cidr.Contains(k.cidr) {
			continue
		}
		for h, r := range t.rules[broader] {
			t.rules[k][h] = r
		}
	}
	return t.writeThrough(k)
}

// propagateRemoval removes (handle, rng) from k and from every narrower
// tracked CIDR in the same (group, proto) it reached by inheritance.
func (t *Tracker) propagateRemoval(k key, handle uuid.UUID, rng portstore.Range) error {
	if err := t.writeThrough(k); err != nil {
		return err
	}
	for other, ranges := range t.rules {
		if other == k {
			continue
		}
		if other.group != k.group || other.proto != k.proto || !k.cidr.Contains(other.cidr) {
			continue
		}
		if existing, ok := ranges[handle]; ok && existing == rng {
			delete(ranges, handle)
			if err := t.writeThrough(other); err != nil {
				return err
			}
		}
	}
	return nil
}

// Lookup returns the compiled port-range store for an exact
// (groupID, proto, cidr) triple, for inspection/testing.
func (t *Tracker) Lookup(groupID uint64, proto lpmkey.Protocol, cidr netaddr.CIDR) (portstore.Store, bool) {
	return t.store.Get(lpmkey.Build(groupID, proto, cidr))
}

// LPM performs a longest-prefix lookup over the compiled stores, used by
// the packet decision path.
func (t *Tracker) LPM(groupID uint64, proto lpmkey.Protocol, addr netaddr.CIDR) (portstore.Store, bool) {
	full, err := netaddr.New(addr.Addr, netaddr.CapabilityOf(addr.Family).PrefixBits)
	if err != nil {
		return portstore.Store{}, false
	}
	k := lpmkey.Build(groupID, proto, full)
	return t.store.LPM(k.Bytes, k.PrefixBits)
}

// sortedKeys is a small helper used by tests to get deterministic
// iteration order over tracked keys.
func (t *Tracker) sortedKeys() []key {
	out := make([]key, 0, len(t.rules))
	for k := range t.rules {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].group != out[j].group {
			return out[i].group < out[j].group
		}
		if out[i].proto != out[j].proto {
			return out[i].proto < out[j].proto
		}
		return out[i].cidr.String() < out[j].cidr.String()
	})
	return out
}
