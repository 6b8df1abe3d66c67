// Package handler implements the authorization flow: six HTTP-triggered
// transitions that bridge the forum's SSO redirect scheme to an OAuth2
// authorization-code grant.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sparkloc/oidcd/internal/registry"
	"github.com/sparkloc/oidcd/internal/server/db"
	"github.com/sparkloc/oidcd/internal/server/session"
	"github.com/sparkloc/oidcd/internal/sso"
	"github.com/sparkloc/oidcd/internal/tokens"
)

// Opaque flow identifiers travel only in these cookies, never in query or
// body parameters, so the external IdP cannot inject them.
const (
	sessionCookie = "oidc_session"
	consentCookie = "consent_token"

	cookieMaxAge = 600 // seconds, matches the login/consent TTL
)

// IdentityResolver resolves an SSO username to the locally known user.
// A nil result means the user is unknown locally (trust level 0).
type IdentityResolver interface {
	ResolveLocalUser(username string) (*db.LocalUser, error)
}

// AuditSink records consent decisions.
type AuditSink interface {
	RecordAuthorization(userID int64, clientID, appName, scope, status string) error
}

// Provider is the authorization flow orchestrator. All collaborators and
// configuration are injected at construction.
type Provider struct {
	issuerURL string
	bridge    *sso.Bridge
	signer    *tokens.Signer
	clients   registry.Resolver
	identity  IdentityResolver
	audit     AuditSink
	flows     *session.Buckets
}

// NewProvider wires the orchestrator.
func NewProvider(
	issuerURL string,
	bridge *sso.Bridge,
	signer *tokens.Signer,
	clients registry.Resolver,
	identity IdentityResolver,
	audit AuditSink,
	flows *session.Buckets,
) *Provider {
	return &Provider{
		issuerURL: issuerURL,
		bridge:    bridge,
		signer:    signer,
		clients:   clients,
		identity:  identity,
		audit:     audit,
		flows:     flows,
	}
}

func (p *Provider) setCookie(c *gin.Context, name, value string) {
	c.SetCookie(name, value, cookieMaxAge, "/", "", false, true)
}

func (p *Provider) clearCookie(c *gin.Context, name string) {
	c.SetCookie(name, "", -1, "/", "", false, true)
}
