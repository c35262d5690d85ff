// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ebpfmap wraps kernel-backed *ebpf.Map instances with the
// type-safe, spec-shaped operations the control plane needs: an LPM-trie
// map for the composite key of internal/lpmkey, and a hash map for the
// source classifier's address-to-group-id table. It is the attached
// counterpart to the in-memory internal/lpm and internal/idhash maps used
// before a Firewall is attached to an interface.
package ebpfmap

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cilium/ebpf"
	"trieguard.dev/trieguard/internal/ferror"
	"trieguard.dev/trieguard/internal/lpmkey"
)

// Managed wraps a single *ebpf.Map with metadata and a mutex, narrowed to
// the two map kinds this control plane drives.
type Managed struct {
	Name       string
	Map        *ebpf.Map
	Type       ebpf.MapType
	KeySize    uint32
	ValueSize  uint32
	MaxEntries uint32
	CreatedAt  time.Time

	mu sync.RWMutex
}

func newManaged(name string, m *ebpf.Map) (*Managed, error) {
	info, err := m.Info()
	if err != nil {
		return nil, ferror.Wrapf(err, ferror.KindMapError, "info for map %q", name)
	}
	return &Managed{
		Name:       name,
		Map:        m,
		Type:       info.Type,
		KeySize:    uint32(info.KeySize),
		ValueSize:  uint32(info.ValueSize),
		MaxEntries: info.MaxEntries,
		CreatedAt:  time.Now(),
	}, nil
}

// LPM is the kernel-backed counterpart of internal/lpm.Map, keyed by the
// composite (group, proto, address) key and fronting an ebpf.LPMTrie map.
type LPM struct {
	*Managed
}

// NewLPM wraps an existing *ebpf.Map of type ebpf.LPMTrie.
func NewLPM(name string, m *ebpf.Map) (*LPM, error) {
	mm, err := newManaged(name, m)
	if err != nil {
		return nil, err
	}
	if mm.Type != ebpf.LPMTrie {
		return nil, ferror.Errorf(ferror.KindMapError, "map %q is type %s, want LPMTrie", name, mm.Type)
	}
	return &LPM{Managed: mm}, nil
}

// bpfLPMKey renders the composite key into the kernel's bpf_lpm_trie_key
// layout: a little-endian u32 prefix length followed by the key bytes,
// zero-padded (or truncated) to the map's key size minus 4.
func bpfLPMKey(k lpmkey.Key, dataLen int) []byte {
	buf := make([]byte, 4+dataLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(k.PrefixBits))
	copy(buf[4:], k.Bytes)
	return buf
}

// Update inserts or overwrites val (already marshaled to the map's wire
// value layout, e.g. by internal/portstore.Store.MarshalBinary) at k.
func (l *LPM) Update(k lpmkey.Key, val []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := bpfLPMKey(k, int(l.KeySize)-4)
	if err := l.Map.Update(key, val, ebpf.UpdateAny); err != nil {
		return ferror.Wrapf(err, ferror.KindMapError, "update LPM map %q", l.Name)
	}
	return nil
}

// Lookup performs an exact lookup at k (the kernel map itself does
// longest-prefix matching only for packet-path lookups keyed by a full
// address; the control plane always reads/writes whole prefix entries).
func (l *LPM) Lookup(k lpmkey.Key) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	key := bpfLPMKey(k, int(l.KeySize)-4)
	val := make([]byte, l.ValueSize)
	if err := l.Map.Lookup(key, &val); err != nil {
		return nil, ferror.Wrapf(err, ferror.KindMapError, "lookup LPM map %q", l.Name)
	}
	return val, nil
}

// Delete removes the exact prefix entry at k.
func (l *LPM) Delete(k lpmkey.Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := bpfLPMKey(k, int(l.KeySize)-4)
	if err := l.Map.Delete(key); err != nil {
		return ferror.Wrapf(err, ferror.KindMapError, "delete from LPM map %q", l.Name)
	}
	return nil
}

// Hash is the kernel-backed counterpart of internal/idhash.Map, fronting
// an ebpf.Hash map keyed by raw address bytes.
type Hash struct {
	*Managed
}

// NewHash wraps an existing *ebpf.Map of type ebpf.Hash.
func NewHash(name string, m *ebpf.Map) (*Hash, error) {
	mm, err := newManaged(name, m)
	if err != nil {
		return nil, err
	}
	if mm.Type != ebpf.Hash {
		return nil, ferror.Errorf(ferror.KindMapError, "map %q is type %s, want Hash", name, mm.Type)
	}
	return &Hash{Managed: mm}, nil
}

// Update inserts or overwrites val at the raw key bytes.
func (h *Hash) Update(key, val []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Map.Update(key, val, ebpf.UpdateAny); err != nil {
		return ferror.Wrapf(err, ferror.KindMapError, "update hash map %q", h.Name)
	}
	return nil
}

// Lookup reads the value for the raw key bytes.
func (h *Hash) Lookup(key []byte) ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	val := make([]byte, h.ValueSize)
	if err := h.Map.Lookup(key, &val); err != nil {
		return nil, ferror.Wrapf(err, ferror.KindMapError, "lookup hash map %q", h.Name)
	}
	return val, nil
}

// Delete removes the raw key bytes.
func (h *Hash) Delete(key []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Map.Delete(key); err != nil {
		return ferror.Wrapf(err, ferror.KindMapError, "delete from hash map %q", h.Name)
	}
	return nil
}

// Registry tracks every managed map attached from one loaded collection.
type Registry struct {
	mu   sync.RWMutex
	lpms map[string]*LPM
	hash map[string]*Hash
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		lpms: make(map[string]*LPM),
		hash: make(map[string]*Hash),
	}
}

// RegisterLPM wraps and stores an LPM-trie map under name.
func (r *Registry) RegisterLPM(name string, m *ebpf.Map) (*LPM, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lpms[name]; exists {
		return nil, ferror.Errorf(ferror.KindMapError, "LPM map %q already registered", name)
	}
	l, err := NewLPM(name, m)
	if err != nil {
		return nil, err
	}
	r.lpms[name] = l
	return l, nil
}

// RegisterHash wraps and stores a hash map under name.
func (r *Registry) RegisterHash(name string, m *ebpf.Map) (*Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.hash[name]; exists {
		return nil, ferror.Errorf(ferror.KindMapError, "hash map %q already registered", name)
	}
	h, err := NewHash(name, m)
	if err != nil {
		return nil, err
	}
	r.hash[name] = h
	return h, nil
}

// LPMByName returns a previously registered LPM map.
func (r *Registry) LPMByName(name string) (*LPM, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lpms[name]
	if !ok {
		return nil, ferror.Errorf(ferror.KindMapNotFound, "LPM map %q not found", name)
	}
	return l, nil
}

// HashByName returns a previously registered hash map.
func (r *Registry) HashByName(name string) (*Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hash[name]
	if !ok {
		return nil, ferror.Errorf(ferror.KindMapNotFound, "hash map %q not found", name)
	}
	return h, nil
}

func (m *Managed) String() string {
	return fmt.Sprintf("%s(%s, key=%d, value=%d, max=%d)", m.Name, m.Type, m.KeySize, m.ValueSize, m.MaxEntries)
}
