// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package portstore

import (
	"testing"

	"github.com/stretchr/testify/require"
	"trieguard.dev/trieguard/internal/ferror"
)

func TestNewRejectsUnsortedOrOverlapping(t *testing.T) {
	_, err := New([]Range{{10, 20}, {5, 8}})
	require.Error(t, err)
	require.Equal(t, ferror.KindMalformed, ferror.GetKind(err))

	_, err = New([]Range{{10, 20}, {15, 30}})
	require.Error(t, err)
	require.Equal(t, ferror.KindMalformed, ferror.GetKind(err))
}

func TestNewRejectsExhausted(t *testing.T) {
	ranges := make([]Range, MaxRanges+1)
	for i := range ranges {
		ranges[i] = Range{Start: uint16(i * 2), End: uint16(i*2 + 1)}
	}
	_, err := New(ranges)
	require.Error(t, err)
	require.Equal(t, ferror.KindExhausted, ferror.GetKind(err))
}

func TestLookupMatchesSpecTable(t *testing.T) {
	s, err := New([]Range{{3, 6}, {10, 50}, {6000, 6000}})
	require.NoError(t, err)

	cases := []struct {
		port uint16
		want bool
	}{
		{4, true}, {5, true}, {3, true}, {6, true},
		{7, false}, {21, true}, {28, true}, {87, false},
		{50, true}, {10, true}, {6000, true}, {8000, false},
		{0, false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, s.Lookup(c.port), "port %d", c.port)
	}
}

func TestLookupUniversalRule(t *testing.T) {
	s, err := New([]Range{{0, 0}})
	require.NoError(t, err)

	require.True(t, s.Lookup(0))
	require.True(t, s.Lookup(22))
	require.True(t, s.Lookup(65535))
}

func TestLookupEmptyStore(t *testing.T) {
	var s Store
	require.False(t, s.Lookup(0))
	require.False(t, s.Lookup(80))
}

func TestResolveOverlapCoalescing(t *testing.T) {
	out := ResolveOverlap([]Range{{10, 20}, {15, 20}, {15, 25}, {18, 40}})
	require.Equal(t, []Range{{10, 40}}, out)
}

func TestResolveOverlapAdjacentNotMerged(t *testing.T) {
	out := ResolveOverlap([]Range{{1, 5}, {6, 10}})
	require.Equal(t, []Range{{1, 5}, {6, 10}}, out)
}

func TestCompileOrderIndependence(t *testing.T) {
	a, err := Compile([]Range{{10, 20}, {15, 20}, {15, 25}, {18, 40}})
	require.NoError(t, err)

	b, err := Compile([]Range{{18, 40}, {10, 20}, {15, 25}, {15, 20}})
	require.NoError(t, err)

	for port := 0; port < 60; port++ {
		require.Equal(t, a.Lookup(uint16(port)), b.Lookup(uint16(port)), "port %d", port)
	}
}

func TestValidateRange(t *testing.T) {
	require.NoError(t, ValidateRange(0, 0))
	require.NoError(t, ValidateRange(22, 22))
	require.NoError(t, ValidateRange(10, 20))

	err := ValidateRange(5, 2)
	require.Error(t, err)
	require.Equal(t, ferror.KindInvalidPort, ferror.GetKind(err))

	err = ValidateRange(0, 10)
	require.Error(t, err)
	require.Equal(t, ferror.KindInvalidPort, ferror.GetKind(err))
}

func TestMarshalRoundTrip(t *testing.T) {
	s, err := New([]Range{{3, 6}, {10, 50}, {6000, 6000}})
	require.NoError(t, err)

	data, err := s.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, wireSize)

	var s2 Store
	require.NoError(t, s2.UnmarshalBinary(data))
	require.Equal(t, s.Ranges(), s2.Ranges())

	for port := 0; port < 6010; port++ {
		require.Equal(t, s.Lookup(uint16(port)), s2.Lookup(uint16(port)))
	}
}

func TestUnmarshalRejectsBadSize(t *testing.T) {
	var s Store
	err := s.UnmarshalBinary([]byte{1, 2, 3})
	require.Error(t, err)
	require.Equal(t, ferror.KindMalformed, ferror.GetKind(err))
}
