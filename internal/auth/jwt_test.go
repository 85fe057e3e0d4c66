package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func mintToken(t *testing.T, claims map[string]any, secret []byte) string {
	t.Helper()
	token, err := Sign(claims, secret)
	require.NoError(t, err)
	return token
}

func TestVerifySubject(t *testing.T) {
	v := NewVerifier(testSecret)
	token := mintToken(t, map[string]any{
		"sub": "cust-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	sub, err := v.VerifySubject(token)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", sub)
}

func TestVerifySubjectNoExpiry(t *testing.T) {
	// Tokens without an exp claim are accepted, matching gateway-issued
	// session tokens that rely on upstream revocation.
	v := NewVerifier(testSecret)
	token := mintToken(t, map[string]any{"sub": "cust-1"}, testSecret)

	sub, err := v.VerifySubject(token)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", sub)
}

func TestVerifySubjectExpired(t *testing.T) {
	v := NewVerifier(testSecret)
	token := mintToken(t, map[string]any{
		"sub": "cust-1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}, testSecret)

	_, err := v.VerifySubject(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifySubjectWrongSecret(t *testing.T) {
	v := NewVerifier(testSecret)
	token := mintToken(t, map[string]any{"sub": "cust-1"}, []byte("other-secret"))

	_, err := v.VerifySubject(token)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifySubjectTamperedPayload(t *testing.T) {
	v := NewVerifier(testSecret)
	token := mintToken(t, map[string]any{"sub": "cust-1"}, testSecret)

	evil := mintToken(t, map[string]any{"sub": "cust-2"}, []byte("attacker"))
	parts := strings.Split(token, ".")
	evilParts := strings.Split(evil, ".")
	tampered := parts[0] + "." + evilParts[1] + "." + parts[2]

	_, err := v.VerifySubject(tampered)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifySubjectMissingSubject(t *testing.T) {
	v := NewVerifier(testSecret)
	token := mintToken(t, map[string]any{"exp": time.Now().Add(time.Hour).Unix()}, testSecret)

	_, err := v.VerifySubject(token)
	require.ErrorIs(t, err, ErrMissingSubject)
}

func TestVerifySubjectMalformed(t *testing.T) {
	v := NewVerifier(testSecret)

	for _, token := range []string{"", "not-a-token", "a.b", "a.b.c.d", "!!!.###.$$$"} {
		_, err := v.VerifySubject(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestVerifySubjectRejectsNoneAlgorithm(t *testing.T) {
	v := NewVerifier(testSecret)

	// Hand-build a token whose header declares alg none.
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"cust-1"}`))
	token := header + "." + payload + "."

	_, err := v.VerifySubject(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
