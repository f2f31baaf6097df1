// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulafs/nebulafs/pkg/auth"
)

func newAuthEnv(t *testing.T) (*testEnv, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwksPath := filepath.Join(t.TempDir(), "jwks.json")
	doc := map[string]any{"keys": []any{map[string]string{
		"kty": "RSA",
		"kid": "test-key",
		"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
	}}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(jwksPath, data, 0o600))

	verifier := auth.NewVerifier(auth.Config{
		Enabled:   true,
		Issuer:    "https://issuer.example",
		Audience:  "nebulafs",
		JWKSURL:   jwksPath,
		CacheTTL:  time.Minute,
		ClockSkew: 30 * time.Second,
	})

	return newTestEnv(t, true, verifier), key
}

func signToken(t *testing.T, key *rsa.PrivateKey, exp time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "backup-client",
		"iss": "https://issuer.example",
		"aud": "nebulafs",
		"exp": exp.Unix(),
	})
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()
	env, key := newAuthEnv(t)

	// No header.
	resp := env.do(t, http.MethodGet, "/v1/buckets", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, resp))

	// Wrong scheme.
	resp = env.do(t, http.MethodGet, "/v1/buckets", nil, map[string]string{"Authorization": "Basic abc"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Valid token.
	valid := signToken(t, key, time.Now().Add(time.Hour))
	resp = env.do(t, http.MethodGet, "/v1/buckets", nil, map[string]string{"Authorization": "Bearer " + valid})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Expired token.
	expired := signToken(t, key, time.Now().Add(-time.Hour))
	resp = env.do(t, http.MethodGet, "/v1/buckets", nil, map[string]string{"Authorization": "Bearer " + expired})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Mangled token.
	resp = env.do(t, http.MethodGet, "/v1/buckets", nil, map[string]string{"Authorization": "Bearer " + strings.Repeat("x", 16)})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestPublicPathsSkipAuth(t *testing.T) {
	t.Parallel()
	env, _ := newAuthEnv(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp := env.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestUnauthorizedUploadIsNotBuffered(t *testing.T) {
	t.Parallel()
	env, _ := newAuthEnv(t)

	// An unauthenticated PUT is rejected before any object appears.
	resp := env.do(t, http.MethodPut, "/v1/buckets/demo/objects/x", strings.NewReader("payload"), nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
