// Package auth verifies HS256 bearer tokens and extracts the caller's
// customer identity from the sub claim. It stands in for the identity
// provider's verified-claim injection at the API gateway.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidToken indicates the token is malformed or cannot be decoded.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSignatureInvalid indicates the signature does not match.
	ErrSignatureInvalid = errors.New("signature verification failed")
	// ErrTokenExpired indicates the exp claim is in the past.
	ErrTokenExpired = errors.New("token has expired")
	// ErrMissingSubject indicates the token carries no sub claim.
	ErrMissingSubject = errors.New("token has no subject")
)

// Verifier checks HS256 tokens against a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret, now: time.Now}
}

// VerifySubject validates the token and returns its sub claim: the
// authenticated customer ID used as requestorId everywhere downstream.
func (v *Verifier) VerifySubject(tokenString string) (string, error) {
	claims, err := v.parse(tokenString)
	if err != nil {
		return "", err
	}

	if exp, ok := claims["exp"].(float64); ok {
		if v.now().UTC().After(time.Unix(int64(exp), 0)) {
			return "", ErrTokenExpired
		}
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrMissingSubject
	}
	return sub, nil
}

func (v *Verifier) parse(tokenString string) (map[string]any, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("empty token: %w", ErrInvalidToken)
	}

	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("token must have 3 parts: %w", ErrInvalidToken)
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", ErrInvalidToken)
	}
	var header map[string]any
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("unmarshal header: %w", ErrInvalidToken)
	}
	if alg, _ := header["alg"].(string); alg != "HS256" {
		return nil, fmt.Errorf("algorithm %q not allowed: %w", header["alg"], ErrInvalidToken)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	expected := mac.Sum(nil)

	actual, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", ErrInvalidToken)
	}
	if !hmac.Equal(expected, actual) {
		return nil, ErrSignatureInvalid
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", ErrInvalidToken)
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadBytes, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", ErrInvalidToken)
	}
	return claims, nil
}

// Sign produces an HS256 token for the given claims. Used by the seeder and
// tests; production tokens come from the identity provider.
func Sign(claims map[string]any, secret []byte) (string, error) {
	headerJSON, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(claimsJSON)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signingInput))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return signingInput + "." + sig, nil
}
