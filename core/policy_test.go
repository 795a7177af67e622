package core

import "testing"

func TestPersistencePolicy_MarkIsOneDirectional(t *testing.T) {
	policy := NewPersistencePolicy()
	if policy.ServerManaged() {
		t.Fatalf("fresh policy must not be server managed")
	}

	policy.MarkServerManaged()
	if !policy.ServerManaged() {
		t.Fatalf("expected server managed after mark")
	}

	// Repeated marks stay set; there is no way back.
	policy.MarkServerManaged()
	if !policy.ServerManaged() {
		t.Fatalf("mark must be sticky")
	}
}

func TestPersistencePolicy_ObserverFlipsSharedInstance(t *testing.T) {
	policy := NewPersistencePolicy()
	observe := policy.Observer()
	observe()
	if !policy.ServerManaged() {
		t.Fatalf("observer must flip the shared policy")
	}
}

func TestPersistencePolicy_NilReceiverIsSafe(t *testing.T) {
	var policy *PersistencePolicy
	policy.MarkServerManaged()
	if policy.ServerManaged() {
		t.Fatalf("nil policy must report unmanaged")
	}
}
