package session

import (
	"time"

	"github.com/sparkloc/oidcd/internal/server/db"
)

// TTLs for the flow artifacts. Codes live shorter than the handshake and
// consent windows.
const (
	LoginTTL    = 10 * time.Minute
	ConsentTTL  = 10 * time.Minute
	CodeTTL     = 5 * time.Minute
	UserInfoTTL = 6 * time.Hour
)

// UserIdentity is the user as resolved from the SSO response plus the local
// user record.
type UserIdentity struct {
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	AvatarURL  string `json:"avatar_url"`
	TrustLevel int    `json:"trust_level"`
}

// PendingLogin is the in-flight SSO handshake, created on /auth and consumed
// on /callback. Keyed by the opaque session id carried in the oidc_session
// cookie.
type PendingLogin struct {
	Nonce        string `json:"nonce"`
	ClientID     string `json:"client_id"`
	RedirectURI  string `json:"redirect_uri"`
	Scope        string `json:"scope"`
	State        string `json:"state"`
	ResponseType string `json:"response_type"`
	OIDCNonce    string `json:"oidc_nonce"`
}

// PendingConsent is the authenticated-but-not-yet-approved request, created
// on /callback and consumed on /authorize or /deny. Keyed by the opaque
// token carried in the consent_token cookie.
type PendingConsent struct {
	ClientID    string       `json:"client_id"`
	AppName     string       `json:"app_name"`
	RedirectURI string       `json:"redirect_uri"`
	Scope       string       `json:"scope"`
	State       string       `json:"state"`
	OIDCNonce   string       `json:"oidc_nonce"`
	User        UserIdentity `json:"user"`
}

// IssuedCode is a single-use authorization code awaiting redemption at the
// token endpoint.
type IssuedCode struct {
	ClientID    string       `json:"client_id"`
	RedirectURI string       `json:"redirect_uri"`
	User        UserIdentity `json:"user"`
	Scope       string       `json:"scope"`
	OIDCNonce   string       `json:"oidc_nonce"`
}

// CachedUserInfo is the privacy-preserving profile served by /userinfo,
// cached at token issuance. Email is the synthesized relay address, never
// the user's real one.
type CachedUserInfo struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatar_url"`
	TrustLevel int    `json:"trust_level"`
	Email      string `json:"email"`
	Active     bool   `json:"active"`
	Silenced   bool   `json:"silenced"`
}

// Buckets groups the four flow buckets over one store. Namespaces are
// disjoint so the same opaque key can never alias across artifact types.
type Buckets struct {
	Logins   *Bucket[PendingLogin]
	Consents *Bucket[PendingConsent]
	Codes    *Bucket[IssuedCode]
	UserInfo *Bucket[CachedUserInfo]
}

// NewBuckets creates the standard bucket set.
func NewBuckets(store *db.Store) *Buckets {
	return &Buckets{
		Logins:   NewBucket[PendingLogin](store, "oidc_session::", LoginTTL),
		Consents: NewBucket[PendingConsent](store, "consent::", ConsentTTL),
		Codes:    NewBucket[IssuedCode](store, "auth_code::", CodeTTL),
		UserInfo: NewBucket[CachedUserInfo](store, "userinfo::", UserInfoTTL),
	}
}
