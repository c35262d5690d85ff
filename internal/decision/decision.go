// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package decision implements the packet decision algorithm: given a
// packet's (source, dest, proto, dest port), run the group-qualified
// lookup, the ungrouped fallback, and the default action in that order.
package decision

import (
	"net/netip"

	"trieguard.dev/trieguard/internal/classifier"
	"trieguard.dev/trieguard/internal/defaultaction"
	"trieguard.dev/trieguard/internal/lpmkey"
	"trieguard.dev/trieguard/internal/metrics"
	"trieguard.dev/trieguard/internal/netaddr"
	"trieguard.dev/trieguard/internal/tracker"
)

// Engine evaluates packets against a Classifier, Tracker and
// default-action Store: group-qualified lookup first, then the
// ungrouped fallback, then the default action unmodified.
type Engine struct {
	classifier *classifier.Classifier
	tracker    *tracker.Tracker
	defaults   *defaultaction.Store
	metrics    *metrics.Decision
}

// New creates an Engine. m may be nil, in which case no metrics are
// recorded.
func New(c *classifier.Classifier, t *tracker.Tracker, d *defaultaction.Store, m *metrics.Decision) *Engine {
	return &Engine{classifier: c, tracker: t, defaults: d, metrics: m}
}

func (e *Engine) count(c interface{ Inc() }) {
	if e.metrics == nil {
		return
	}
	c.Inc()
}

// Decide evaluates one packet and returns the verdict.
//
// port == 0 stands for "not TCP/UDP, no port parsed"; the lookup
// substitutes the canonical TCP protocol byte so a universal rule
// ([0,0]) still matches, since only a universal rule's Lookup(0) ever
// returns true (see internal/portstore).
func (e *Engine) Decide(sourceIP, destIP netip.Addr, proto lpmkey.Protocol, port uint16) defaultaction.Action {
	if e.metrics != nil {
		e.count(e.metrics.Evaluated)
	}

	lookupProto := proto
	if port == 0 {
		lookupProto = lpmkey.TCP
	}

	destCIDR, err := netaddr.New(destIP, netaddr.CapabilityOf(familyOf(destIP)).PrefixBits)
	if err != nil {
		return e.finish(e.defaults.Get(), false, false)
	}

	if groupID, ok := e.classifier.Lookup(sourceIP); ok {
		if store, found := e.tracker.LPM(groupID, lookupProto, destCIDR); found && store.Lookup(port) {
			return e.finish(e.defaults.Get().Invert(), true, false)
		}
	}

	if store, found := e.tracker.LPM(lpmkey.NoGroup, lookupProto, destCIDR); found && store.Lookup(port) {
		return e.finish(e.defaults.Get().Invert(), false, true)
	}

	return e.finish(e.defaults.Get(), false, false)
}

func (e *Engine) finish(verdict defaultaction.Action, groupHit, ungroupedHit bool) defaultaction.Action {
	if e.metrics != nil {
		switch {
		case groupHit:
			e.count(e.metrics.GroupHits)
		case ungroupedHit:
			e.count(e.metrics.Ungrouped)
		default:
			e.count(e.metrics.DefaultHit)
		}
		if verdict == defaultaction.Accept {
			e.count(e.metrics.Accepted)
		} else {
			e.count(e.metrics.Rejected)
		}
	}
	return verdict
}

func familyOf(addr netip.Addr) netaddr.Family {
	if addr.Is6() && !addr.Is4In6() {
		return netaddr.V6
	}
	return netaddr.V4
}
