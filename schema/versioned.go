package schema

import "sync/atomic"

// Versioned is an atomically swappable registry reference. It is the
// supported path for dynamic re-registration: build a complete replacement
// registry, then Swap it in. Readers always observe one consistent
// snapshot; in-flight loads keep planning against the snapshot they
// started with.
type Versioned struct {
	p atomic.Pointer[Registry]
}

// NewVersioned returns a Versioned holding the given registry.
func NewVersioned(r *Registry) *Versioned {
	v := &Versioned{}
	v.p.Store(r)
	return v
}

// Load returns the current registry snapshot.
func (v *Versioned) Load() *Registry { return v.p.Load() }

// Swap replaces the current registry with a new one.
func (v *Versioned) Swap(r *Registry) { v.p.Store(r) }
