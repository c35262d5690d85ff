// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package loader loads the compiled eBPF collection and attaches its XDP
// program to an interface, exposing the maps the control plane binds to
// (internal/ebpfmap, internal/defaultaction).
package loader

import (
	"bytes"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
	"trieguard.dev/trieguard/internal/ferror"
)

// Loader owns one loaded eBPF collection and the XDP link attached from
// it, narrowed to the single XDP-on-ingress attachment this firewall
// needs.
type Loader struct {
	mu         sync.Mutex
	collection *ebpf.Collection
	xdpLink    link.Link
	loaded     bool
}

// New creates an unloaded Loader.
func New() *Loader {
	return &Loader{}
}

// LoadSpec parses a compiled eBPF object (typically embedded via go:embed
// from a bpf2go-generated build) into a CollectionSpec.
func LoadSpec(object []byte) (*ebpf.CollectionSpec, error) {
	spec, err := ebpf.LoadCollectionSpecFromReader(bytes.NewReader(object))
	if err != nil {
		return nil, ferror.Wrapf(err, ferror.KindProgramError, "load collection spec")
	}
	return spec, nil
}

// LoadCollection instantiates spec's programs and maps.
func (l *Loader) LoadCollection(spec *ebpf.CollectionSpec) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return ferror.New(ferror.KindProgramError, "collection already loaded")
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return ferror.Wrapf(err, ferror.KindProgramError, "instantiate collection")
	}
	l.collection = coll
	l.loaded = true
	return nil
}

// AttachXDP attaches the named program from the loaded collection to
// iface's ingress path.
func (l *Loader) AttachXDP(programName, iface string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		return ferror.New(ferror.KindProgramError, "no collection loaded")
	}
	prog, ok := l.collection.Programs[programName]
	if !ok {
		return ferror.Errorf(ferror.KindProgramError, "program %q not found in collection", programName)
	}

	nl, err := netlink.LinkByName(iface)
	if err != nil {
		return ferror.Wrapf(err, ferror.KindIO, "resolve interface %q", iface)
	}

	lnk, err := link.AttachXDP(link.XDPOptions{
		Program:   prog,
		Interface: nl.Attrs().Index,
	})
	if err != nil {
		return ferror.Wrapf(err, ferror.KindProgramError, "attach XDP program %q to %q", programName, iface)
	}
	l.xdpLink = lnk
	return nil
}

// Map returns a loaded map by name.
func (l *Loader) Map(name string) (*ebpf.Map, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		return nil, ferror.New(ferror.KindMapNotFound, "no collection loaded")
	}
	m, ok := l.collection.Maps[name]
	if !ok {
		return nil, ferror.Errorf(ferror.KindMapNotFound, "map %q not found", name)
	}
	return m, nil
}

// Close detaches the XDP link and releases the collection's programs and
// maps.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if l.xdpLink != nil {
		if err := l.xdpLink.Close(); err != nil {
			firstErr = err
		}
		l.xdpLink = nil
	}
	if l.collection != nil {
		l.collection.Close()
		l.collection = nil
	}
	l.loaded = false
	return firstErr
}

// VerifyMemlock raises the RLIMIT_MEMLOCK soft limit to the hard limit
// when it is below it, so map allocation has as much locked memory as
// the process is allowed. It does not raise the hard limit itself.
func VerifyMemlock() error {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlim); err != nil {
		return ferror.Wrapf(err, ferror.KindIO, "get RLIMIT_MEMLOCK")
	}
	if rlim.Cur >= rlim.Max {
		return nil
	}
	rlim.Cur = rlim.Max
	if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &rlim); err != nil {
		return ferror.Wrapf(err, ferror.KindIO, "raise RLIMIT_MEMLOCK")
	}
	return nil
}
