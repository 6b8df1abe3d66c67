// Package tokens owns the server's RSA signing key: loading it from the
// durable store (generating and persisting it on first run), signing access
// and ID tokens, verifying access tokens, and exposing the public key as a
// JWKS entry.
package tokens

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/sparkloc/oidcd/internal/crypto"
)

const (
	keyBits = 2048

	// AccessTokenTTL is also reported as expires_in on the token response.
	AccessTokenTTL = 30 * time.Minute
	IDTokenTTL     = 6 * time.Hour
)

// KeyStore persists the PEM-encoded signing key under a fixed name with
// first-writer-wins semantics.
type KeyStore interface {
	LoadOrStoreSigningKey(candidate []byte) ([]byte, error)
}

// UserInfo carries the identity claims embedded in an ID token.
type UserInfo struct {
	ID         string
	Username   string
	Name       string
	Email      string
	AvatarURL  string
	TrustLevel int
}

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	Issuer    string
	Subject   string
	ClientID  string
	Scope     string
	ExpiresAt int64
}

// Signer signs and verifies this server's JWTs with a single RSA key.
type Signer struct {
	priv *rsa.PrivateKey
	kid  string
}

// NewSigner loads the signing key from store, generating and persisting a
// fresh RSA-2048 key if none exists yet. When several processes race on
// first run, the store keeps the first write and everyone loads that key.
// When masterKey is non-nil the stored PEM is encrypted at rest.
func NewSigner(store KeyStore, masterKey *[32]byte) (*Signer, error) {
	candidate, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}

	blob := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(candidate),
	})
	if masterKey != nil {
		if blob, err = crypto.EncryptAtRest(*masterKey, blob); err != nil {
			return nil, fmt.Errorf("encrypt signing key: %w", err)
		}
	}

	stored, err := store.LoadOrStoreSigningKey(blob)
	if err != nil {
		return nil, err
	}
	if masterKey != nil {
		if stored, err = crypto.DecryptAtRest(*masterKey, stored); err != nil {
			return nil, fmt.Errorf("decrypt signing key: %w", err)
		}
	}

	block, _ := pem.Decode(stored)
	if block == nil {
		return nil, fmt.Errorf("stored signing key is not PEM")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	kid, err := computeKID(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	return &Signer{priv: priv, kid: kid}, nil
}

// computeKID derives a stable key id: truncated SHA-256 over the DER-encoded
// public key. It changes only when the key changes.
func computeKID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])[:16], nil
}

// KID returns the key identifier embedded in token headers and the JWKS.
func (s *Signer) KID() string {
	return s.kid
}

// SignAccessToken issues an RS256 access token for the given subject.
func (s *Signer) SignAccessToken(issuer, subject, clientID, scope string) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":       issuer,
		"sub":       subject,
		"aud":       []string{clientID},
		"exp":       now.Add(AccessTokenTTL).Unix(),
		"iat":       now.Unix(),
		"scope":     scope,
		"client_id": clientID,
	})
	tok.Header["kid"] = s.kid

	signed, err := tok.SignedString(s.priv)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// SignIDToken issues an RS256 OpenID Connect ID token. Claims with empty
// values are omitted rather than emitted as null.
func (s *Signer) SignIDToken(issuer, clientID string, user UserInfo, oidcNonce string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":            issuer,
		"sub":            user.ID,
		"aud":            []string{clientID},
		"exp":            now.Add(IDTokenTTL).Unix(),
		"iat":            now.Unix(),
		"auth_time":      now.Unix(),
		"email_verified": true,
		"trust_level":    user.TrustLevel,
	}
	setIfPresent := func(name, value string) {
		if value != "" {
			claims[name] = value
		}
	}
	setIfPresent("nonce", oidcNonce)
	setIfPresent("email", user.Email)
	setIfPresent("preferred_username", user.Username)
	setIfPresent("name", user.Name)
	setIfPresent("picture", user.AvatarURL)

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.kid

	signed, err := tok.SignedString(s.priv)
	if err != nil {
		return "", fmt.Errorf("sign id token: %w", err)
	}
	return signed, nil
}

// DecodeAccessToken verifies signature and expiry and returns the claims.
// Any verification failure, including tampering and expiry, surfaces as an
// error rather than a panic or a partially filled result.
func (s *Signer) DecodeAccessToken(raw string) (*AccessClaims, error) {
	parsed, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return &s.priv.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("decode access token: unexpected claims type")
	}

	out := &AccessClaims{}
	out.Issuer, _ = claims["iss"].(string)
	out.Subject, _ = claims["sub"].(string)
	out.ClientID, _ = claims["client_id"].(string)
	out.Scope, _ = claims["scope"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Unix()
	}
	return out, nil
}

// PublicJWK returns the public half of the signing key as an RSA JWK.
func (s *Signer) PublicJWK() (jwk.Key, error) {
	key, err := jwk.FromRaw(&s.priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("build public JWK: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, s.kid); err != nil {
		return nil, fmt.Errorf("set kid: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, "RS256"); err != nil {
		return nil, fmt.Errorf("set alg: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set use: %w", err)
	}
	return key, nil
}

// JWKS returns the key set document served at /certs.
func (s *Signer) JWKS() (jwk.Set, error) {
	key, err := s.PublicJWK()
	if err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, fmt.Errorf("build JWKS: %w", err)
	}
	return set, nil
}
