// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package firewall is the Control API composite: a Firewall value owns
// the classifier, tracker, default-action store, the decision engine
// and (once attached) the loaded eBPF collection, for its entire
// lifetime.
package firewall

import (
	"net/netip"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"trieguard.dev/trieguard/internal/classifier"
	"trieguard.dev/trieguard/internal/defaultaction"
	"trieguard.dev/trieguard/internal/decision"
	"trieguard.dev/trieguard/internal/ferror"
	"trieguard.dev/trieguard/internal/loader"
	"trieguard.dev/trieguard/internal/logging"
	"trieguard.dev/trieguard/internal/lpmkey"
	"trieguard.dev/trieguard/internal/metrics"
	"trieguard.dev/trieguard/internal/tracker"
)

// xdpProgramName is the program the firewall's compiled collection must
// export for attachment.
const xdpProgramName = "xdp_firewall"

// Firewall is the embedded-library entry point: attach to an interface,
// configure the default action, and add/remove rules and group
// assignments.
type Firewall struct {
	mu sync.Mutex

	iface           string
	classifier      *classifier.Classifier
	tracker         *tracker.Tracker
	defaults        *defaultaction.Store
	engine          *decision.Engine
	decisionMetrics *metrics.Decision
	logger          *logging.Logger
	loader          *loader.Loader
	attached        bool

	// handles maps a Rule value to the opaque tracker handle(s) it was
	// registered under, so RemoveRule can identify the right entry
	// without the caller having to track handles itself. A GENERIC rule
	// unfolds into one TCP and one UDP record, so this is a slice: one
	// entry per concrete protocol the rule was compiled into.
	handles map[Rule][]ruleHandle
}

// ruleHandle pairs a concrete protocol with the tracker handle the rule
// was registered under for that protocol.
type ruleHandle struct {
	proto  lpmkey.Protocol
	handle uuid.UUID
}

// unfold expands GENERIC into the concrete {TCP, UDP} pair it stands for;
// any other protocol is already concrete and unfolds to itself.
func unfold(proto lpmkey.Protocol) []lpmkey.Protocol {
	if proto == lpmkey.Generic {
		return []lpmkey.Protocol{lpmkey.TCP, lpmkey.UDP}
	}
	return []lpmkey.Protocol{proto}
}

// Attach loads the compiled eBPF collection and attaches it to
// interfaceName, returning a ready-to-configure Firewall. object is the
// compiled eBPF program (cmd/trieguardd reads it from its --object path).
func Attach(interfaceName string, object []byte, logger *logging.Logger) (*Firewall, error) {
	if logger == nil {
		logger = logging.New(logging.Config{Level: logging.LevelInfo})
	}

	if err := loader.VerifyMemlock(); err != nil {
		logger.Warn("could not raise memlock limit", "error", err)
	}

	l := loader.New()
	spec, err := loader.LoadSpec(object)
	if err != nil {
		return nil, err
	}
	if err := l.LoadCollection(spec); err != nil {
		return nil, err
	}
	if err := l.AttachXDP(xdpProgramName, interfaceName); err != nil {
		_ = l.Close()
		return nil, err
	}

	fw := &Firewall{
		iface:           interfaceName,
		classifier:      classifier.New(),
		tracker:         tracker.New(),
		defaults:        defaultaction.New(),
		decisionMetrics: metrics.NewDecision(),
		logger:          logger,
		loader:          l,
		attached:        true,
		handles:         make(map[Rule][]ruleHandle),
	}

	if configMap, err := l.Map("default_action_map"); err == nil {
		if err := fw.defaults.Bind(configMap); err != nil {
			logger.Warn("could not bind default-action config map", "error", err)
		}
	}
	if ruleMap, err := l.Map("rule_store_map"); err == nil {
		if err := fw.tracker.Bind(ruleMap); err != nil {
			logger.Warn("could not bind rule store map", "error", err)
		}
	}
	if classifierMap, err := l.Map("classifier_map"); err == nil {
		if err := fw.classifier.Bind(classifierMap); err != nil {
			logger.Warn("could not bind classifier map", "error", err)
		}
	}

	fw.engine = decision.New(fw.classifier, fw.tracker, fw.defaults, fw.decisionMetrics)

	logger.Info("firewall attached", "interface", interfaceName)
	return fw, nil
}

// NewForTest builds an unattached Firewall: no interface, no eBPF
// collection, every other component wired exactly as Attach wires them.
// Exposed for tests in other packages (e.g. internal/api) that need a
// working Firewall without root privileges or a compiled object.
func NewForTest() *Firewall {
	c := classifier.New()
	tr := tracker.New()
	d := defaultaction.New()
	m := metrics.NewDecision()
	return &Firewall{
		classifier:      c,
		tracker:         tr,
		defaults:        d,
		decisionMetrics: m,
		engine:          decision.New(c, tr, d, m),
		logger:          logging.New(logging.Config{Level: logging.LevelInfo}),
		handles:         make(map[Rule][]ruleHandle),
	}
}

// MetricsCollectors returns the Prometheus collectors tracking this
// firewall's packet decisions, for registration with an HTTP exposition
// endpoint.
func (fw *Firewall) MetricsCollectors() []prometheus.Collector {
	return fw.decisionMetrics.Collectors()
}

// SetDefaultAction sets the firewall's default verdict.
func (fw *Firewall) SetDefaultAction(a defaultaction.Action) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.defaults.Set(a)
}

// AddRule registers r, propagating into/from any narrower or broader
// CIDR already tracked for the same (group, protocol). A GENERIC rule is
// unfolded into one TCP and one UDP record here, per-protocol, with
// every record added or none: if the second record fails capacity
// checking, the first is rolled back.
func (fw *Firewall) AddRule(r Rule) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, exists := fw.handles[r]; exists {
		return ferror.New(ferror.KindMalformed, "rule already registered")
	}

	protos := unfold(r.proto)
	added := make([]ruleHandle, 0, len(protos))
	for _, proto := range protos {
		h, err := fw.tracker.AddRule(r.group, proto, r.dest, r.rangeValue())
		if err != nil {
			for _, rh := range added {
				_ = fw.tracker.RemoveRule(r.group, rh.proto, r.dest, rh.handle)
			}
			return err
		}
		added = append(added, ruleHandle{proto: proto, handle: h})
	}
	fw.handles[r] = added
	return nil
}

// RemoveRule removes a previously added rule matching r exactly, undoing
// every concrete-protocol record a GENERIC rule was unfolded into.
func (fw *Firewall) RemoveRule(r Rule) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	handles, ok := fw.handles[r]
	if !ok {
		return ferror.New(ferror.KindNotExistingID, "no matching rule registered")
	}
	for _, rh := range handles {
		if err := fw.tracker.RemoveRule(r.group, rh.proto, r.dest, rh.handle); err != nil {
			return err
		}
	}
	delete(fw.handles, r)
	return nil
}

// AddID assigns addr to groupID in the source classifier.
func (fw *Firewall) AddID(addr netip.Addr, groupID uint64) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.classifier.Insert(addr, groupID)
}

// RemoveID clears addr's group assignment.
func (fw *Firewall) RemoveID(addr netip.Addr) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.classifier.Remove(addr)
}

// RemoveByID clears every address assigned to groupID.
func (fw *Firewall) RemoveByID(groupID uint64) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.classifier.RemoveByID(groupID)
}

// StartLogging is a placeholder for starting the per-CPU ring-buffer
// reader that streams packet decisions to userland; out of scope for
// this build. Reserved so the Control API surface stays complete.
func (fw *Firewall) StartLogging() error {
	fw.logger.Info("packet logging requested; ring-buffer reader is out of scope for this build")
	return nil
}

// Decide runs the packet decision algorithm for one packet; exposed for
// the control plane's own diagnostics/tests, the data plane runs the
// equivalent logic compiled into the attached program.
func (fw *Firewall) Decide(sourceIP, destIP netip.Addr, proto uint8, destPort uint16) defaultaction.Action {
	return fw.engine.Decide(sourceIP, destIP, lpmkey.Protocol(proto), destPort)
}

// Close detaches the XDP program and releases every owned map handle.
func (fw *Firewall) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.attached {
		return nil
	}
	fw.attached = false
	return fw.loader.Close()
}
