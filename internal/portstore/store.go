// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package portstore implements a fixed-capacity, POD, verifier-friendly
// container of sorted non-overlapping port ranges.
package portstore

import (
	"encoding/binary"
	"sort"

	"trieguard.dev/trieguard/internal/ferror"
)

// MaxRanges is the fixed compile-time capacity of a Store. 128 sits well
// inside the ~1024-entry empirical kernel-verifier stack ceiling while
// comfortably covering the handful of port ranges any one
// (group,protocol,CIDR) key is expected to carry.
const MaxRanges = 128

// maxIter bounds the binary search in Lookup to ceil(log2(MaxRanges))+1
// iterations, a compile-time constant the kernel verifier can unroll.
const maxIter = 8

// Range is a closed port interval [Start, End].
type Range struct {
	Start uint16
	End   uint16
}

// ValidateRange checks a single (lo, hi) pair: lo<=hi,
// and any range containing port 0 must be exactly [0,0].
func ValidateRange(lo, hi uint16) error {
	if lo > hi {
		return ferror.Errorf(ferror.KindInvalidPort, "invalid port range [%d,%d]: lo > hi", lo, hi)
	}
	if lo == 0 && hi != 0 {
		return ferror.Errorf(ferror.KindInvalidPort, "invalid port range [%d,%d]: a range containing 0 must have length 1", lo, hi)
	}
	return nil
}

// Store is the fixed-capacity, sorted, non-overlapping port range table
// read by the packet decision algorithm. The zero value is an empty,
// ready-to-use store.
type Store struct {
	entries [MaxRanges]Range
	length  uint32
}

// New constructs a Store from ranges that must already be sorted by Start
// ascending and pairwise non-overlapping (prev.End < next.Start). Use
// Compile to build a Store from an unordered, possibly-overlapping set.
func New(ranges []Range) (Store, error) {
	if len(ranges) > MaxRanges {
		return Store{}, ferror.Errorf(ferror.KindExhausted, "%d ranges exceed MaxRanges=%d", len(ranges), MaxRanges)
	}

	for i, r := range ranges {
		if r.Start > r.End {
			return Store{}, ferror.Errorf(ferror.KindMalformed, "range %d: lo > hi (%d > %d)", i, r.Start, r.End)
		}
		if i > 0 && ranges[i-1].End >= r.Start {
			return Store{}, ferror.Errorf(ferror.KindMalformed, "ranges %d and %d overlap or are unsorted", i-1, i)
		}
	}

	var s Store
	copy(s.entries[:], ranges)
	s.length = uint32(len(ranges))
	return s, nil
}

// ResolveOverlap sorts ranges by Start ascending and sweeps left to right,
// merging any range whose Start falls at or before the running range's
// End. The result is sorted and pairwise non-overlapping.
func ResolveOverlap(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := make([]Range, 0, len(sorted))
	running := sorted[0]
	for _, r := range sorted[1:] {
		if r.Start <= running.End {
			if r.End > running.End {
				running.End = r.End
			}
		} else {
			out = append(out, running)
			running = r
		}
	}
	out = append(out, running)
	return out
}

// Compile resolves overlaps in an unordered range set and constructs a
// Store from the result, returning Exhausted if the resolved set is
// larger than MaxRanges.
func Compile(ranges []Range) (Store, error) {
	return New(ResolveOverlap(ranges))
}

// Len reports the number of ranges currently stored.
func (s *Store) Len() int { return int(s.length) }

// Ranges returns a copy of the stored ranges, in order.
func (s *Store) Ranges() []Range {
	out := make([]Range, s.length)
	copy(out, s.entries[:s.length])
	return out
}

// Lookup reports whether port is covered by any stored range. The search
// is a verifier-friendly bounded binary search: every index is
// range-checked before use, and the loop runs at most maxIter times
// regardless of input.
func (s *Store) Lookup(port uint16) bool {
	if s.length == 0 {
		return false
	}

	// A universal rule ([0,0]) is always the first entry after
	// ResolveOverlap/New's sort-by-Start ordering, and matches any port.
	if s.entries[0].Start == 0 {
		return true
	}

	// Only a universal rule matches port 0 (non-TCP/UDP traffic).
	if port == 0 {
		return false
	}

	left, right := 0, int(s.length)
	for iter := 0; iter < maxIter; iter++ {
		if left >= right {
			break
		}

		mid := left + (right-left)/2
		if mid < 0 || mid >= MaxRanges {
			return false
		}

		if s.entries[mid].Start <= port {
			left = mid + 1
		} else {
			right = mid
		}
	}

	if left < right {
		// Did not converge within maxIter; defensively refuse rather
		// than trust a stale bound.
		return false
	}

	if left == 0 {
		return false
	}

	idx := left - 1
	if idx < 0 || idx >= MaxRanges {
		return false
	}
	return s.entries[idx].End >= port
}

// wireSize is the POD wire size: MaxRanges+1 little-endian u32 words.
const wireSize = 4 * (MaxRanges + 1)

// MarshalBinary encodes the Store in the on-wire layout read by the data
// plane: MaxRanges packed (end<<16|start) u32 words followed by a u32
// length, all little-endian, with no padding.
func (s Store) MarshalBinary() ([]byte, error) {
	buf := make([]byte, wireSize)
	for i := 0; i < MaxRanges; i++ {
		var r Range
		if i < int(s.length) {
			r = s.entries[i]
		}
		word := uint32(r.End)<<16 | uint32(r.Start)
		binary.LittleEndian.PutUint32(buf[i*4:], word)
	}
	binary.LittleEndian.PutUint32(buf[MaxRanges*4:], s.length)
	return buf, nil
}

// UnmarshalBinary decodes a Store from the POD wire layout written by
// MarshalBinary.
func (s *Store) UnmarshalBinary(data []byte) error {
	if len(data) != wireSize {
		return ferror.Errorf(ferror.KindMalformed, "rule store wire data is %d bytes, want %d", len(data), wireSize)
	}

	var entries [MaxRanges]Range
	for i := 0; i < MaxRanges; i++ {
		word := binary.LittleEndian.Uint32(data[i*4:])
		entries[i] = Range{Start: uint16(word & 0xFFFF), End: uint16(word >> 16)}
	}
	length := binary.LittleEndian.Uint32(data[MaxRanges*4:])
	if length > MaxRanges {
		return ferror.Errorf(ferror.KindMalformed, "rule store length %d exceeds MaxRanges=%d", length, MaxRanges)
	}

	s.entries = entries
	s.length = length
	return nil
}
