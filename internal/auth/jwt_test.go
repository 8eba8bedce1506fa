package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-session-secret"

func signDIDToken(t *testing.T, secret, did string, expiresAt time.Time) string {
	t.Helper()
	claims := didClaims{
		DID: did,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestVerifyAddressExtractsLowercasedAddress(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token := signDIDToken(t, testSecret, "did:pkh:eip155:1:0xABCDEF0000000000000000000000000000dEaD", time.Now().Add(time.Hour))

	address, err := v.VerifyAddress(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "0xabcdef0000000000000000000000000000dead"
	if address != want {
		t.Errorf("address = %q, want %q", address, want)
	}
}

func TestVerifyAddressRejectsWrongSecret(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token := signDIDToken(t, "a-different-secret", "did:pkh:eip155:1:0xabc0000000000000000000000000000000dead", time.Now().Add(time.Hour))

	if _, err := v.VerifyAddress(token); err == nil {
		t.Error("expected an error for a token signed with the wrong secret")
	}
}

func TestVerifyAddressRejectsExpiredToken(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token := signDIDToken(t, testSecret, "did:pkh:eip155:1:0xabc0000000000000000000000000000000dead", time.Now().Add(-time.Hour))

	if _, err := v.VerifyAddress(token); err == nil {
		t.Error("expected an error for an expired token")
	}
}

func TestVerifyAddressRejectsNonDIDClaim(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token := signDIDToken(t, testSecret, "not-a-did", time.Now().Add(time.Hour))

	if _, err := v.VerifyAddress(token); err == nil {
		t.Error("expected an error for a malformed did claim")
	}
}

func TestRequireAddressMatchesPathAddress(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token := signDIDToken(t, testSecret, "did:pkh:eip155:1:0xABC0000000000000000000000000000000dEaD", time.Now().Add(time.Hour))

	if _, err := v.RequireAddress(token, "0xabc0000000000000000000000000000000dead"); err != nil {
		t.Errorf("unexpected error for matching address: %v", err)
	}
	if _, err := v.RequireAddress(token, "0x0000000000000000000000000000000000aaaa"); err == nil {
		t.Error("expected an error when the path address does not match the session address")
	}
}
