package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sparkloc/oidcd/internal/logx"
)

func unauthorizedBearer(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
	c.String(http.StatusUnauthorized, msg)
}

// HandleUserInfo handles GET /userinfo. The access token proves the caller;
// the profile comes from the cache written at token issuance. When the cache
// has expired only the subject is known, so the response degrades to a
// minimal active record.
func (p *Provider) HandleUserInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauthorizedBearer(c, "missing or invalid bearer token")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if raw == "" {
			unauthorizedBearer(c, "missing or invalid bearer token")
			return
		}

		claims, err := p.signer.DecodeAccessToken(raw)
		if err != nil {
			unauthorizedBearer(c, "invalid access token")
			return
		}

		cached, err := p.flows.UserInfo.Get(claims.Subject)
		if err != nil {
			logx.Errorf("userinfo: read cache for %s: %v", claims.Subject, err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		if cached == nil {
			c.JSON(http.StatusOK, gin.H{"id": claims.Subject, "sub": claims.Subject, "active": true})
			return
		}

		resp := gin.H{
			"id":                 cached.ID,
			"sub":                cached.ID,
			"username":           cached.Username,
			"preferred_username": cached.Username,
			"email_verified":     true,
			"trust_level":        cached.TrustLevel,
			"active":             true,
		}
		setIfPresent := func(name, value string) {
			if value != "" {
				resp[name] = value
			}
		}
		setIfPresent("name", cached.Name)
		setIfPresent("email", cached.Email)
		setIfPresent("avatar_url", cached.AvatarURL)
		setIfPresent("picture", cached.AvatarURL)
		c.JSON(http.StatusOK, resp)
	}
}

// HandleCerts handles GET /certs, the JWKS document.
func (p *Provider) HandleCerts() gin.HandlerFunc {
	return func(c *gin.Context) {
		set, err := p.signer.JWKS()
		if err != nil {
			logx.Errorf("certs: build JWKS: %v", err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		c.JSON(http.StatusOK, set)
	}
}

// HandleDiscovery handles GET /.well-known/openid-configuration.
func (p *Provider) HandleDiscovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		iss := p.issuerURL
		c.JSON(http.StatusOK, gin.H{
			"issuer":                                iss,
			"authorization_endpoint":                iss + "/auth",
			"token_endpoint":                        iss + "/token",
			"userinfo_endpoint":                     iss + "/userinfo",
			"jwks_uri":                              iss + "/certs",
			"response_types_supported":              []string{"code"},
			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{"RS256"},
			"scopes_supported":                      []string{"openid", "profile", "email"},
			"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post"},
			"claims_supported": []string{
				"sub", "iss", "aud", "exp", "iat", "auth_time", "nonce",
				"email", "email_verified", "preferred_username", "name",
				"picture", "trust_level",
			},
		})
	}
}
