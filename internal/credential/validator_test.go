package credential

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

const testAddress = "0xAbC0000000000000000000000000000000dEaD"

type stubVerifier struct {
	ok  bool
	err error
}

func (s stubVerifier) VerifyProof(credential json.RawMessage, issuer string) (bool, error) {
	return s.ok, s.err
}

func makeCredential(t *testing.T, provider, issuer string, expiresAt time.Time, nullifiers []string) json.RawMessage {
	t.Helper()
	raw := map[string]interface{}{
		"issuer":         issuer,
		"expirationDate": expiresAt.Format(time.RFC3339),
		"credentialSubject": map[string]interface{}{
			"id":         fmt.Sprintf("did:pkh:eip155:1:%s", strings.ToLower(testAddress)),
			"provider":   provider,
			"nullifiers": nullifiers,
		},
	}
	b, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("failed to marshal test credential: %v", err)
	}
	return b
}

func TestValidateAcceptsTrustedCredential(t *testing.T) {
	v := New([]string{"did:key:trusted"}, nil)
	cred := makeCredential(t, "Google", "did:key:trusted", time.Now().Add(24*time.Hour), []string{"v1:abc"})

	stamp, ok := v.Validate(cred, testAddress)
	if !ok {
		t.Fatalf("expected credential to be accepted")
	}
	if stamp.Provider != "Google" {
		t.Errorf("provider = %q, want Google", stamp.Provider)
	}
	if len(stamp.Nullifiers) != 1 || stamp.Nullifiers[0] != "v1:abc" {
		t.Errorf("nullifiers = %v", stamp.Nullifiers)
	}
}

func TestValidateRejectsUntrustedIssuer(t *testing.T) {
	v := New([]string{"did:key:trusted"}, nil)
	cred := makeCredential(t, "Google", "did:key:unknown", time.Now().Add(24*time.Hour), []string{"v1:abc"})

	if _, ok := v.Validate(cred, testAddress); ok {
		t.Error("expected credential from untrusted issuer to be rejected")
	}
}

func TestValidateRejectsExpiredCredential(t *testing.T) {
	v := New([]string{"did:key:trusted"}, nil)
	cred := makeCredential(t, "Google", "did:key:trusted", time.Now().Add(-time.Hour), []string{"v1:abc"})

	if _, ok := v.Validate(cred, testAddress); ok {
		t.Error("expected expired credential to be rejected")
	}
}

func TestValidateRejectsAddressMismatch(t *testing.T) {
	v := New([]string{"did:key:trusted"}, nil)
	cred := makeCredential(t, "Google", "did:key:trusted", time.Now().Add(24*time.Hour), []string{"v1:abc"})

	if _, ok := v.Validate(cred, "0x0000000000000000000000000000000000aaaa"); ok {
		t.Error("expected address mismatch to be rejected")
	}
}

func TestValidateRejectsMissingNullifiers(t *testing.T) {
	v := New([]string{"did:key:trusted"}, nil)
	cred := makeCredential(t, "Google", "did:key:trusted", time.Now().Add(24*time.Hour), nil)

	if _, ok := v.Validate(cred, testAddress); ok {
		t.Error("expected credential with no nullifiers to be rejected")
	}
}

func TestValidateUsesProofVerifier(t *testing.T) {
	v := New([]string{"did:key:trusted"}, stubVerifier{ok: false})
	cred := makeCredential(t, "Google", "did:key:trusted", time.Now().Add(24*time.Hour), []string{"v1:abc"})

	if _, ok := v.Validate(cred, testAddress); ok {
		t.Error("expected proof verification failure to reject the credential")
	}
}

func TestValidateBatchDedupesByProviderFirstWins(t *testing.T) {
	v := New([]string{"did:key:trusted"}, nil)
	first := makeCredential(t, "Google", "did:key:trusted", time.Now().Add(24*time.Hour), []string{"v1:first"})
	second := makeCredential(t, "Google", "did:key:trusted", time.Now().Add(24*time.Hour), []string{"v1:second"})

	stamps := v.ValidateBatch([]json.RawMessage{first, second}, testAddress)
	if len(stamps) != 1 {
		t.Fatalf("expected exactly one stamp, got %d", len(stamps))
	}
	if stamps[0].Nullifiers[0] != "v1:first" {
		t.Errorf("expected first occurrence to win, got %v", stamps[0].Nullifiers)
	}
}

func TestValidateBatchDropsRejectedEntries(t *testing.T) {
	v := New([]string{"did:key:trusted"}, nil)
	good := makeCredential(t, "Google", "did:key:trusted", time.Now().Add(24*time.Hour), []string{"v1:abc"})
	bad := makeCredential(t, "Discord", "did:key:unknown", time.Now().Add(24*time.Hour), []string{"v1:def"})

	stamps := v.ValidateBatch([]json.RawMessage{good, bad}, testAddress)
	if len(stamps) != 1 {
		t.Fatalf("expected exactly one accepted stamp, got %d", len(stamps))
	}
	if stamps[0].Provider != "Google" {
		t.Errorf("expected surviving stamp to be Google, got %s", stamps[0].Provider)
	}
}
