package core

import (
	"strings"
	"testing"
)

func TestDeriveChallenge_MatchesRFC7636Vector(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	if got := DeriveChallenge(verifier); got != want {
		t.Fatalf("challenge mismatch: got %q want %q", got, want)
	}
}

func TestNewChallenge_GeneratesDistinctPairs(t *testing.T) {
	first, err := NewChallenge("")
	if err != nil {
		t.Fatalf("first challenge: %v", err)
	}
	second, err := NewChallenge("")
	if err != nil {
		t.Fatalf("second challenge: %v", err)
	}
	if first.CodeVerifier == second.CodeVerifier {
		t.Fatalf("verifiers must be unique")
	}
	if first.State == second.State {
		t.Fatalf("states must be unique")
	}
	if first.CodeChallenge != DeriveChallenge(first.CodeVerifier) {
		t.Fatalf("challenge must derive from verifier")
	}
	if strings.ContainsAny(first.CodeVerifier, "+/=") {
		t.Fatalf("verifier must be url-safe, got %q", first.CodeVerifier)
	}
}

func TestNewChallenge_EmbedsReturnURLInState(t *testing.T) {
	returnURL := "https://app.example/settings?tab=integrations&x=1"
	challenge, err := NewChallenge(returnURL)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if !strings.Contains(challenge.State, stateSeparator) {
		t.Fatalf("expected separator in state %q", challenge.State)
	}
	if got := ReturnURLFromState(challenge.State); got != returnURL {
		t.Fatalf("round trip mismatch: got %q want %q", got, returnURL)
	}
}

func TestReturnURLFromState_HandlesMissingAndMalformedPayloads(t *testing.T) {
	bare, err := NewChallenge("")
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if got := ReturnURLFromState(bare.State); got != "" {
		t.Fatalf("expected empty return url for bare state, got %q", got)
	}
	if got := ReturnURLFromState("nonce.!!!not-base64!!!"); got != "" {
		t.Fatalf("expected empty return url for malformed payload, got %q", got)
	}
	if got := ReturnURLFromState(""); got != "" {
		t.Fatalf("expected empty return url for empty state, got %q", got)
	}
}
