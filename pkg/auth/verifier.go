// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAlg is the signature algorithm accepted when none is configured.
const DefaultAlg = "RS256"

// Claims is the verified identity a token carries.
type Claims struct {
	Subject  string
	Issuer   string
	Audience []string
	Scopes   []string
}

// Config holds verifier settings. Issuer and Audience are only enforced
// when non-empty.
type Config struct {
	Enabled    bool
	Issuer     string
	Audience   string
	JWKSURL    string
	CacheTTL   time.Duration
	ClockSkew  time.Duration
	AllowedAlg string
}

// Verifier checks compact JWTs (RS256 by default) against the JWKS
// cache. When authentication is disabled it accepts every request with
// empty claims.
type Verifier struct {
	cfg    Config
	jwks   *JWKSCache
	parser *jwt.Parser
}

// NewVerifier creates a Verifier and its backing JWKS cache.
func NewVerifier(cfg Config) *Verifier {
	alg := cfg.AllowedAlg
	if alg == "" {
		alg = DefaultAlg
	}
	cfg.AllowedAlg = alg

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{alg}),
		jwt.WithLeeway(cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	var jwks *JWKSCache
	if cfg.Enabled {
		jwks = NewJWKSCache(cfg.JWKSURL, cfg.CacheTTL)
	}

	return &Verifier{
		cfg:    cfg,
		jwks:   jwks,
		parser: jwt.NewParser(opts...),
	}
}

// Verify validates a compact JWT and returns its claims. Any failure is
// an authentication failure; callers map it to 401.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if !v.cfg.Enabled {
		return &Claims{}, nil
	}

	if strings.Count(tokenString, ".") != 2 {
		return nil, errors.New("token is not a compact JWT")
	}

	token, err := v.parser.Parse(tokenString, v.resolveKey)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}

	claims := &Claims{}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if iss, err := mapClaims.GetIssuer(); err == nil {
		claims.Issuer = iss
	}
	if aud, err := mapClaims.GetAudience(); err == nil {
		claims.Audience = aud
	}
	claims.Scopes = parseScopes(mapClaims)

	return claims, nil
}

// resolveKey is the jwt keyfunc: it requires a kid header and resolves
// it through the JWKS cache.
func (v *Verifier) resolveKey(token *jwt.Token) (any, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, errors.New("token has no kid header")
	}
	return v.jwks.GetKey(kid)
}

// parseScopes collects scopes from the space-delimited "scope" claim and
// the "scp" array claim.
func parseScopes(claims jwt.MapClaims) []string {
	var scopes []string
	if scope, ok := claims["scope"].(string); ok && scope != "" {
		scopes = append(scopes, strings.Fields(scope)...)
	}
	if scp, ok := claims["scp"].([]any); ok {
		for _, s := range scp {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
	}
	return scopes
}
