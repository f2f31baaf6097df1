// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth verifies bearer tokens against a cached JWKS key set.
package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrKidNotFound is returned when a token's kid is absent from the key
// set even after a refresh.
var ErrKidNotFound = errors.New("kid not found in jwks")

// jwksDocument is the wire shape of a JWKS endpoint response.
type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSCache fetches a JWKS document and caches RSA public keys by kid
// with a TTL. A single mutex guards the key map, the expiry, and
// refreshes, so concurrent callers see one refresh at a time.
type JWKSCache struct {
	url string
	ttl time.Duration

	client *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

// NewJWKSCache creates a cache for the given JWKS location. The url may
// be http(s), a file:// URL, or a bare filesystem path.
func NewJWKSCache(url string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: 10 * time.Second},
		keys:   make(map[string]*rsa.PublicKey),
	}
}

// GetKey resolves a kid to its RSA public key. An empty or expired cache
// triggers a refresh; an unknown kid triggers one more refresh to pick
// up rotated keys before failing.
func (c *JWKSCache) GetKey(kid string) (*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.keys) == 0 || !time.Now().Before(c.expiresAt) {
		if err := c.refresh(); err != nil {
			return nil, err
		}
	}

	if key, ok := c.keys[kid]; ok {
		return key, nil
	}

	if err := c.refresh(); err != nil {
		return nil, err
	}
	if key, ok := c.keys[kid]; ok {
		return key, nil
	}
	return nil, ErrKidNotFound
}

// refresh replaces the key map from a fresh fetch. The expiry only moves
// forward on success, so a failed refresh retries on the next call.
// Callers must hold c.mu.
func (c *JWKSCache) refresh() error {
	body, err := c.fetch()
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("parse jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" || k.N == "" || k.E == "" {
			continue
		}
		key, err := rsaKeyFromJWK(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = key
	}
	if len(keys) == 0 {
		return errors.New("jwks contains no usable RSA keys")
	}

	c.keys = keys
	c.expiresAt = time.Now().Add(c.ttl)
	return nil
}

func (c *JWKSCache) fetch() ([]byte, error) {
	switch {
	case strings.HasPrefix(c.url, "http://"), strings.HasPrefix(c.url, "https://"):
		resp, err := c.client.Get(c.url)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("jwks endpoint returned %s", resp.Status)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	case strings.HasPrefix(c.url, "file://"):
		return os.ReadFile(strings.TrimPrefix(c.url, "file://"))
	default:
		return os.ReadFile(c.url)
	}
}

// rsaKeyFromJWK builds an RSA public key from base64url modulus and
// exponent.
func rsaKeyFromJWK(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 {
		return nil, errors.New("empty modulus or exponent")
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 1 {
		return nil, errors.New("invalid exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
