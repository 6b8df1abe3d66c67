package db

import "time"

// OAuthClient is a registered client application. Records are managed by the
// forum's admin tooling; this server only reads them.
type OAuthClient struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"-"`
	Name         string    `json:"name"`
	RedirectURIs string    `json:"redirect_uris"` // comma-separated allow-list
	OwnerID      int64     `json:"owner_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// LocalUser is a forum user known to this server, consulted to resolve the
// trust level for identities arriving via SSO.
type LocalUser struct {
	Username   string    `json:"username"`
	Name       string    `json:"name"`
	TrustLevel int       `json:"trust_level"`
	CreatedAt  time.Time `json:"created_at"`
}

// Authorization is an audit record of a consent decision.
type Authorization struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ClientID  string    `json:"client_id"`
	AppName   string    `json:"app_name"`
	Scope     string    `json:"scope"`
	Status    string    `json:"status"` // "approved" or "denied"
	CreatedAt time.Time `json:"created_at"`
}
