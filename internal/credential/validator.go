// Package credential implements the Credential Validator (C1): structural
// and cryptographic checks of a verifiable credential against an address
// and trusted-issuer set, grounded on spec.md §4.1 and
// original_source/rust-scorer/src/domain/stamps.rs.
package credential

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ValidStamp is the normalized output of a successful validation.
type ValidStamp struct {
	Provider   string
	Credential json.RawMessage
	Nullifiers []string
	ExpiresAt  time.Time
}

// ProofVerifier checks a credential's cryptographic proof under the
// AssertionMethod proof purpose. The actual JSON-LD/EIP-712 verification
// machinery is out of scope (spec.md §1 delegates it to an external
// "credential-verifier capability"); this interface is the documented
// boundary a real verifier implementation plugs into.
type ProofVerifier interface {
	VerifyProof(credential json.RawMessage, issuer string) (bool, error)
}

// Validator validates raw credentials against an address and a
// trusted-issuer set.
type Validator struct {
	trustedIssuers map[string]bool
	proofVerifier  ProofVerifier
}

// New creates a Validator for the given trusted-issuer set.
func New(trustedIssuers []string, proofVerifier ProofVerifier) *Validator {
	issuers := make(map[string]bool, len(trustedIssuers))
	for _, i := range trustedIssuers {
		issuers[i] = true
	}
	return &Validator{trustedIssuers: issuers, proofVerifier: proofVerifier}
}

type rawCredential struct {
	CredentialSubject struct {
		ID         string   `json:"id"`
		Provider   string   `json:"provider"`
		Nullifiers []string `json:"nullifiers"`
	} `json:"credentialSubject"`
	ExpirationDate string `json:"expirationDate"`
	Issuer         string `json:"issuer"`
}

// Validate checks one credential against address, returning (stamp, true)
// if accepted, or (nil, false) if rejected. Rejection is never an error —
// the caller simply drops the stamp (spec.md §4.1 "Failures").
func (v *Validator) Validate(credential json.RawMessage, address string) (*ValidStamp, bool) {
	var raw rawCredential
	if err := json.Unmarshal(credential, &raw); err != nil {
		return nil, false
	}

	expectedID := fmt.Sprintf("did:pkh:eip155:1:%s", strings.ToLower(address))
	if raw.CredentialSubject.ID != expectedID {
		return nil, false
	}
	if raw.CredentialSubject.Provider == "" {
		return nil, false
	}
	if len(raw.CredentialSubject.Nullifiers) == 0 {
		return nil, false
	}

	expiresAt, err := time.Parse(time.RFC3339, raw.ExpirationDate)
	if err != nil || !expiresAt.After(time.Now()) {
		return nil, false
	}

	if !v.trustedIssuers[raw.Issuer] {
		return nil, false
	}

	if v.proofVerifier != nil {
		ok, err := v.proofVerifier.VerifyProof(credential, raw.Issuer)
		if err != nil || !ok {
			return nil, false
		}
	}

	nullifiers := make([]string, len(raw.CredentialSubject.Nullifiers))
	copy(nullifiers, raw.CredentialSubject.Nullifiers)

	return &ValidStamp{
		Provider:   raw.CredentialSubject.Provider,
		Credential: credential,
		Nullifiers: nullifiers,
		ExpiresAt:  expiresAt,
	}, true
}

// ValidateBatch validates a batch of credentials, returning at most one
// stamp per provider (first wins, stable w.r.t. input order) — spec.md
// §4.1 "Batch policy".
func (v *Validator) ValidateBatch(credentials []json.RawMessage, address string) []*ValidStamp {
	seen := make(map[string]bool)
	var out []*ValidStamp
	for _, c := range credentials {
		stamp, ok := v.Validate(c, address)
		if !ok {
			continue
		}
		if seen[stamp.Provider] {
			continue
		}
		seen[stamp.Provider] = true
		out = append(out, stamp)
	}
	return out
}
