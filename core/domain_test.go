package core

import (
	"testing"
	"time"
)

func TestAccountID_KnownValues(t *testing.T) {
	cases := []struct {
		provider string
		email    string
		want     string
	}{
		{"github", "a@x.com", "github_84o0r9"},
		{"gmail", "a@x.com", "gmail_uucsk0"},
		{"gmail", "b@y.com", "gmail_pht6lq"},
		{"slack", "dev@example.com", "slack_glsbyw"},
	}
	for _, tc := range cases {
		if got := AccountID(tc.provider, tc.email); got != tc.want {
			t.Fatalf("AccountID(%q, %q) = %q, want %q", tc.provider, tc.email, got, tc.want)
		}
	}
}

func TestAccountID_IsDeterministicAndRequiresBothParts(t *testing.T) {
	first := AccountID("github", "a@x.com")
	second := AccountID("github", "a@x.com")
	if first != second {
		t.Fatalf("account id must be deterministic: %q vs %q", first, second)
	}
	if AccountID("github", "a@x.com") == AccountID("gmail", "a@x.com") {
		t.Fatalf("same email on different providers must yield distinct ids")
	}
	if AccountID("", "a@x.com") != "" {
		t.Fatalf("missing provider must yield empty id")
	}
	if AccountID("github", "") != "" {
		t.Fatalf("missing email must yield empty id")
	}
	if AccountID(" github ", " a@x.com ") != AccountID("github", "a@x.com") {
		t.Fatalf("surrounding whitespace must not change the id")
	}
}

func TestPendingAuthorization_TransitionRules(t *testing.T) {
	pending := PendingAuthorization{Status: FlowStatusIdle}

	for _, status := range []FlowStatus{
		FlowStatusInitiated,
		FlowStatusDispatched,
		FlowStatusReturned,
		FlowStatusExchanged,
		FlowStatusStored,
	} {
		if err := pending.TransitionTo(status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	if err := pending.TransitionTo(FlowStatusInitiated); err == nil {
		t.Fatalf("stored is terminal; transition back must fail")
	}

	expired := PendingAuthorization{Status: FlowStatusDispatched}
	if err := expired.TransitionTo(FlowStatusExpired); err != nil {
		t.Fatalf("dispatched -> expired: %v", err)
	}
	if err := expired.TransitionTo(FlowStatusReturned); err == nil {
		t.Fatalf("expired is terminal; transition out must fail")
	}

	skipping := PendingAuthorization{Status: FlowStatusInitiated}
	if err := skipping.TransitionTo(FlowStatusExchanged); err == nil {
		t.Fatalf("initiated -> exchanged must be rejected")
	}

	same := PendingAuthorization{Status: FlowStatusReturned}
	if err := same.TransitionTo(FlowStatusReturned); err != nil {
		t.Fatalf("self transition must be a no-op: %v", err)
	}
}

func TestPendingAuthorization_ExpiredAt(t *testing.T) {
	now := time.Now().UTC()
	pending := PendingAuthorization{InitiatedAt: now}

	if pending.ExpiredAt(now.Add(4*time.Minute), 5*time.Minute) {
		t.Fatalf("record inside ttl must not be expired")
	}
	if !pending.ExpiredAt(now.Add(6*time.Minute), 5*time.Minute) {
		t.Fatalf("record beyond ttl must be expired")
	}
	if (PendingAuthorization{}).ExpiredAt(now, 5*time.Minute) {
		t.Fatalf("zero initiation time must never expire")
	}
}

func TestProviderCredential_CloneIsDeep(t *testing.T) {
	expires := time.Now().UTC().Add(time.Hour)
	original := ProviderCredential{
		AccessToken: "tok",
		Scopes:      []string{"a", "b"},
		ExpiresAt:   &expires,
	}
	cloned := original.Clone()
	cloned.Scopes[0] = "mutated"
	*cloned.ExpiresAt = cloned.ExpiresAt.Add(time.Hour)

	if original.Scopes[0] != "a" {
		t.Fatalf("clone must not share scope backing array")
	}
	if !original.ExpiresAt.Equal(expires) {
		t.Fatalf("clone must not share the expiry pointer")
	}
}
