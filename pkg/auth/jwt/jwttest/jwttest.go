// Package jwttest provides an in-process token issuer for exercising the
// JWT validator: an RSA key, its JWKS document, and RS256 signing.
package jwttest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

// DefaultKID is the key ID of issuers created by NewIssuer.
const DefaultKID = "tokengate-test-key"

// Issuer signs tokens with a single RSA key.
type Issuer struct {
	key      *rsa.PrivateKey
	kid      string
	issuer   string
	audience string
}

// NewIssuer generates a 2048-bit key. issuer and audience fill the iss and
// aud claims of tokens from Token; either may be empty.
func NewIssuer(issuer, audience string) (*Issuer, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}
	return &Issuer{key: key, kid: DefaultKID, issuer: issuer, audience: audience}, nil
}

// JWKS returns the public key set.
func (i *Issuer) JWKS() map[string]any {
	pub := i.key.PublicKey
	return map[string]any{
		"keys": []map[string]string{
			{
				"kty": "RSA",
				"kid": i.kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
}

// JWKSHandler serves JWKS as JSON.
func (i *Issuer) JWKSHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(i.JWKS())
	})
}

// Sign signs claims as is.
func (i *Issuer) Sign(claims jwtlib.MapClaims) (string, error) {
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = i.kid
	return token.SignedString(i.key)
}

// Token signs a token for subject valid for ttl. extra claims are merged
// over the standard ones.
func (i *Issuer) Token(subject string, ttl time.Duration, extra map[string]any) (string, error) {
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if i.issuer != "" {
		claims["iss"] = i.issuer
	}
	if i.audience != "" {
		claims["aud"] = i.audience
	}
	for k, v := range extra {
		claims[k] = v
	}
	return i.Sign(claims)
}
