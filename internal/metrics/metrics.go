// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes Prometheus counters for the packet decision
// path and the control-plane map operations that feed it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Decision holds the counters the packet decision path (internal/decision)
// updates on every evaluated packet.
type Decision struct {
	Evaluated  prometheus.Counter
	Accepted   prometheus.Counter
	Rejected   prometheus.Counter
	GroupHits  prometheus.Counter
	Ungrouped  prometheus.Counter
	DefaultHit prometheus.Counter
}

// NewDecision creates the decision-path counters.
func NewDecision() *Decision {
	return &Decision{
		Evaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trieguard_packets_evaluated_total",
			Help: "Total number of packets run through the decision path",
		}),
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trieguard_packets_accepted_total",
			Help: "Total number of packets accepted",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trieguard_packets_rejected_total",
			Help: "Total number of packets rejected",
		}),
		GroupHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trieguard_decision_group_match_total",
			Help: "Total number of decisions resolved by a group-qualified rule match",
		}),
		Ungrouped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trieguard_decision_ungrouped_match_total",
			Help: "Total number of decisions resolved by the ungrouped fallback rule match",
		}),
		DefaultHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trieguard_decision_default_total",
			Help: "Total number of decisions resolved by the default action with no rule match",
		}),
	}
}

// Collectors returns every metric for registration with a
// prometheus.Registerer.
func (d *Decision) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		d.Evaluated, d.Accepted, d.Rejected, d.GroupHits, d.Ungrouped, d.DefaultHit,
	}
}

// MapOps holds counters for control-plane map mutation outcomes.
type MapOps struct {
	Updates *prometheus.CounterVec
	Errors  *prometheus.CounterVec
	Entries *prometheus.GaugeVec
}

// NewMapOps creates the control-plane map operation counters.
func NewMapOps() *MapOps {
	return &MapOps{
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trieguard_map_updates_total",
			Help: "Total number of map update operations, by map name",
		}, []string{"map"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trieguard_map_errors_total",
			Help: "Total number of failed map operations, by map name",
		}, []string{"map"}),
		Entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trieguard_map_entries",
			Help: "Current number of entries tracked per map, by map name",
		}, []string{"map"}),
	}
}

// Collectors returns every metric for registration with a
// prometheus.Registerer.
func (m *MapOps) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Updates, m.Errors, m.Entries}
}
