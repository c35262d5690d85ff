// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"trieguard.dev/trieguard/internal/lpmkey"
	"trieguard.dev/trieguard/internal/netaddr"
	"trieguard.dev/trieguard/internal/portstore"
)

// Rule is the immutable-by-chaining builder:
// NewRule(dest).WithID(groupID).WithRange(start, end, proto).
type Rule struct {
	dest  netaddr.CIDR
	group uint64
	start uint16
	end   uint16
	proto lpmkey.Protocol
}

// NewRule starts a Rule targeting dest. Group defaults to NoGroup
// (ungrouped) and the range defaults to the universal [0,0] on GENERIC
// until WithID/WithRange narrow it.
func NewRule(dest netaddr.CIDR) Rule {
	return Rule{dest: dest, group: lpmkey.NoGroup, proto: lpmkey.Generic}
}

// WithID scopes the rule to group id, returning a new Rule value.
func (r Rule) WithID(groupID uint64) Rule {
	r.group = groupID
	return r
}

// WithRange narrows the rule to [start, end] on proto, returning a new
// Rule value.
func (r Rule) WithRange(start, end uint16, proto lpmkey.Protocol) Rule {
	r.start = start
	r.end = end
	r.proto = proto
	return r
}

func (r Rule) rangeValue() portstore.Range {
	return portstore.Range{Start: r.start, End: r.end}
}
