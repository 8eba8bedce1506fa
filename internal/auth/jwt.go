// Package auth implements the two inbound auth schemes spec.md §6 names
// (JWT for ceramic-cache routes, API key for scoring/embed routes). The
// teacher has no end-user auth layer of its own, so this is new
// infrastructure built with the same HS256 library the pack already pulls
// in (`github.com/golang-jwt/jwt/v4`, resolved at the same v4.5.2 the
// teacher's go.mod carries as an indirect dependency).
package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/passportxyz/scorer/internal/apierr"
)

// didClaims is the subset of a ceramic-cache session JWT's claims this
// service reads — spec.md §6 "JWT auth".
type didClaims struct {
	DID string `json:"did"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 ceramic-cache session tokens.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a JWTVerifier with the configured shared secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// VerifyAddress parses and validates the bearer token, returning the
// lower-cased Ethereum address encoded in its `did` claim — spec.md §6:
// "claim `did` has shape `did:pkh:eip155:<chain>:0x…`; the address is
// `split(':').last().lower()`".
func (v *JWTVerifier) VerifyAddress(bearerToken string) (string, error) {
	claims := &didClaims{}
	token, err := jwt.ParseWithClaims(bearerToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apierr.New(apierr.Unauthorized, "unexpected JWT signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", apierr.Wrap(apierr.Unauthorized, "invalid or expired session token", err)
	}

	parts := strings.Split(claims.DID, ":")
	if len(parts) == 0 || parts[0] != "did" {
		return "", apierr.New(apierr.Unauthorized, "malformed did claim")
	}
	address := strings.ToLower(parts[len(parts)-1])
	if !strings.HasPrefix(address, "0x") {
		return "", apierr.New(apierr.Unauthorized, "did claim does not encode an address")
	}
	return address, nil
}

// RequireAddress verifies the token and asserts it authorizes the given
// path address — spec.md §6 "GET /ceramic-cache/score/{address}: JWT (DID
// address must equal path)".
func (v *JWTVerifier) RequireAddress(bearerToken, pathAddress string) (string, error) {
	address, err := v.VerifyAddress(bearerToken)
	if err != nil {
		return "", err
	}
	if address != strings.ToLower(pathAddress) {
		return "", apierr.New(apierr.Unauthorized, "session address does not match requested address")
	}
	return address, nil
}
