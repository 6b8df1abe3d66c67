// Package sso implements the forum's signed single-sign-on redirect protocol.
//
// The outbound leg sends the browser to the forum's sso_provider endpoint with
// a base64 payload and an HMAC-SHA256 signature over it. The forum redirects
// back with the same scheme; the inbound leg verifies the signature and the
// nonce round-trip.
package sso

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrBadSignature is returned when the HMAC over the sso payload does
	// not match the supplied sig.
	ErrBadSignature = errors.New("invalid signature")

	// ErrNonceMismatch is returned when the signed response carries a nonce
	// other than the one issued for this handshake.
	ErrNonceMismatch = errors.New("nonce mismatch")
)

// Bridge signs outbound SSO redirects and validates inbound responses using
// the secret shared with the forum.
type Bridge struct {
	secret      string
	providerURL string
}

// NewBridge creates a Bridge for the given shared secret and forum base URL.
func NewBridge(secret, providerURL string) *Bridge {
	return &Bridge{
		secret:      secret,
		providerURL: strings.TrimRight(providerURL, "/"),
	}
}

// GenerateURL builds the signed redirect URL that sends the browser to the
// forum's SSO endpoint. The forum will authenticate the user and redirect
// back to callbackURL with signed user attributes.
func (b *Bridge) GenerateURL(callbackURL, nonce string) string {
	payload := "nonce=" + nonce + "&return_sso_url=" + callbackURL
	encoded := base64.StdEncoding.EncodeToString([]byte(payload))
	sig := b.sign(encoded)
	return fmt.Sprintf("%s/session/sso_provider?sso=%s&sig=%s",
		b.providerURL, url.QueryEscape(encoded), sig)
}

// ValidateResponse verifies the signature on an inbound sso/sig pair and
// checks the nonce round-trip. On success it returns the decoded response
// parameters (external_id, username, name, email, avatar_url, ...).
func (b *Bridge) ValidateResponse(sso, sig, expectedNonce string) (url.Values, error) {
	computed := b.sign(sso)
	if !hmac.Equal([]byte(computed), []byte(sig)) {
		return nil, ErrBadSignature
	}

	decoded, err := base64.StdEncoding.DecodeString(sso)
	if err != nil {
		return nil, fmt.Errorf("decode sso payload: %w", err)
	}
	params, err := url.ParseQuery(string(decoded))
	if err != nil {
		return nil, fmt.Errorf("parse sso payload: %w", err)
	}

	if params.Get("nonce") != expectedNonce {
		return nil, ErrNonceMismatch
	}
	return params, nil
}

func (b *Bridge) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(b.secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
