package auth

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/passportxyz/scorer/internal/apierr"
	"github.com/passportxyz/scorer/internal/database"
)

// APIKeyVerifier verifies the 8-char-prefix + SHA-512 API key scheme —
// spec.md §6 "API key auth".
type APIKeyVerifier struct {
	repo    *database.APIKeyRepository
	db      database.DBTX
	demoKey string
}

// NewAPIKeyVerifier creates an APIKeyVerifier. demoKey, if non-empty, is
// the configured demo credential: a caller presenting the literal alias
// "demo" is verified as if it had sent demoKey — spec.md §6 "API key auth".
func NewAPIKeyVerifier(repo *database.APIKeyRepository, db database.DBTX, demoKey string) *APIKeyVerifier {
	return &APIKeyVerifier{repo: repo, db: db, demoKey: demoKey}
}

// VerifyReadScores verifies rawKey and asserts its credential has
// read_scores set — the gate on `GET /v2/stamps/{scorer_id}/score/{address}`
// and similar routes.
func (v *APIKeyVerifier) VerifyReadScores(ctx context.Context, rawKey string) (*database.APIKeyCredential, error) {
	cred, err := v.verify(ctx, rawKey)
	if err != nil {
		return nil, err
	}
	if !cred.ReadScores {
		return nil, apierr.New(apierr.Unauthorized, "api key is not authorized to read scores")
	}
	return cred, nil
}

// Verify verifies rawKey and returns its stored credential, with no
// additional scope check — the gate on `GET /internal/embed/validate-api-key`.
func (v *APIKeyVerifier) Verify(ctx context.Context, rawKey string) (*database.APIKeyCredential, error) {
	return v.verify(ctx, rawKey)
}

// demoAlias is the literal key value the demo frontend sends in place of a
// real provisioned key; it maps onto the configured DEMO_API_KEY
// credential so the rest of the verification pipeline (prefix lookup,
// hash compare) runs unmodified.
const demoAlias = "demo"

func (v *APIKeyVerifier) verify(ctx context.Context, rawKey string) (*database.APIKeyCredential, error) {
	if v.demoKey != "" && rawKey == demoAlias {
		rawKey = v.demoKey
	}
	if len(rawKey) < 8 {
		return nil, apierr.New(apierr.Unauthorized, "malformed api key")
	}

	prefix := rawKey[:8]
	cred, err := v.repo.GetByPrefix(ctx, v.db, prefix)
	if err == database.ErrAPIKeyNotFound {
		return nil, apierr.New(apierr.Unauthorized, "unknown api key")
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to load api key", err)
	}

	sum := sha512.Sum512([]byte(rawKey))
	computed := "sha512$$" + hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(computed), []byte(cred.KeyHash)) != 1 {
		return nil, apierr.New(apierr.Unauthorized, "api key does not match stored hash")
	}
	return cred, nil
}

// ExtractKey pulls the raw key out of either the `X-API-Key` header or an
// `Authorization: Bearer <key>`/raw-value header — spec.md §6 "(`X-API-Key`
// or `Authorization`)".
func ExtractKey(apiKeyHeader, authHeader string) string {
	if apiKeyHeader != "" {
		return apiKeyHeader
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}
