package core

import "sync/atomic"

// PersistencePolicy is the process-wide switch flipped when the remote
// collaborator signals that it persists tokens itself. Once set, both
// client-side credential tiers are suppressed for the rest of the session;
// the flag never flips back. One policy instance is shared by reference
// between the transport layer (which observes the marker) and the tiered
// store (which honors it).
type PersistencePolicy struct {
	serverManaged atomic.Bool
}

func NewPersistencePolicy() *PersistencePolicy {
	return &PersistencePolicy{}
}

// MarkServerManaged flips the switch. Safe to call repeatedly; the transition
// is one-directional (false to true only).
func (p *PersistencePolicy) MarkServerManaged() {
	if p == nil {
		return
	}
	p.serverManaged.Store(true)
}

func (p *PersistencePolicy) ServerManaged() bool {
	if p == nil {
		return false
	}
	return p.serverManaged.Load()
}

// Observer returns the callback the transport layer invokes on detecting the
// server-storage marker, so the header check lives in exactly one place.
func (p *PersistencePolicy) Observer() func() {
	return func() {
		p.MarkServerManaged()
	}
}
