package handler

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sparkloc/oidcd/internal/logx"
	"github.com/sparkloc/oidcd/internal/server/session"
	"github.com/sparkloc/oidcd/internal/tokens"
)

func oauthError(c *gin.Context, status int, code, description string) {
	c.JSON(status, gin.H{"error": code, "error_description": description})
}

// HandleToken handles POST /token: redeem a single-use authorization code
// for an access token and, when the scope includes openid, an ID token.
// Token-endpoint failures are the only structured OAuth2 error bodies this
// server produces.
func (p *Provider) HandleToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.PostForm("grant_type") != "authorization_code" {
			oauthError(c, http.StatusBadRequest, "unsupported_grant_type", "only authorization_code is supported")
			return
		}

		code := c.PostForm("code")
		if code == "" {
			oauthError(c, http.StatusBadRequest, "invalid_request", "missing code parameter")
			return
		}

		// Single use: consume before any further validation, so even a
		// failed redemption burns the code.
		entry, err := p.flows.Codes.Consume(code)
		if err != nil {
			logx.Errorf("token: consume code: %v", err)
			oauthError(c, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		if entry == nil {
			oauthError(c, http.StatusBadRequest, "invalid_grant", "invalid or expired authorization code")
			return
		}

		clientID, clientSecret, ok := c.Request.BasicAuth()
		if !ok {
			clientID = c.PostForm("client_id")
			clientSecret = c.PostForm("client_secret")
		}

		if clientID != "" && clientID != entry.ClientID {
			oauthError(c, http.StatusBadRequest, "invalid_grant", "client_id mismatch")
			return
		}
		if ru := c.PostForm("redirect_uri"); ru != "" && ru != entry.RedirectURI {
			oauthError(c, http.StatusBadRequest, "invalid_grant", "redirect_uri mismatch")
			return
		}

		cid := clientID
		if cid == "" {
			cid = entry.ClientID
		}
		client, err := p.clients.Resolve(cid)
		if err != nil {
			logx.Errorf("token: resolve client %q: %v", cid, err)
			oauthError(c, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		if client == nil {
			oauthError(c, http.StatusUnauthorized, "invalid_client", "unknown client_id")
			return
		}
		// The built-in test client is the one sanctioned secret-check bypass.
		if !client.BuiltIn {
			if clientSecret == "" ||
				subtle.ConstantTimeCompare([]byte(clientSecret), []byte(client.ClientSecret)) != 1 {
				oauthError(c, http.StatusUnauthorized, "invalid_client", "invalid client_secret")
				return
			}
		}

		user := entry.User
		subject := user.ExternalID

		// Clients get a relay address, never the user's real email.
		relayEmail := fmt.Sprintf("%s_%s@privaterelay.sparkloc.com", user.Username, subject)

		accessToken, err := p.signer.SignAccessToken(p.issuerURL, subject, cid, entry.Scope)
		if err != nil {
			logx.Errorf("token: sign access token: %v", err)
			oauthError(c, http.StatusInternalServerError, "server_error", "internal error")
			return
		}

		var idToken string
		if strings.Contains(entry.Scope, "openid") {
			idToken, err = p.signer.SignIDToken(p.issuerURL, cid, tokens.UserInfo{
				ID:         subject,
				Username:   user.Username,
				Name:       user.Name,
				Email:      relayEmail,
				AvatarURL:  user.AvatarURL,
				TrustLevel: user.TrustLevel,
			}, entry.OIDCNonce)
			if err != nil {
				logx.Errorf("token: sign id token: %v", err)
				oauthError(c, http.StatusInternalServerError, "server_error", "internal error")
				return
			}
		}

		cached := &session.CachedUserInfo{
			ID:         subject,
			Username:   user.Username,
			Name:       user.Name,
			AvatarURL:  user.AvatarURL,
			TrustLevel: user.TrustLevel,
			Email:      relayEmail,
			Active:     true,
			Silenced:   false,
		}
		if err := p.flows.UserInfo.Put(subject, cached); err != nil {
			logx.Warnf("token: cache userinfo for %s: %v", subject, err)
		}

		resp := gin.H{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   int(tokens.AccessTokenTTL.Seconds()),
			"scope":        entry.Scope,
		}
		if idToken != "" {
			resp["id_token"] = idToken
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleIntrospect handles POST /introspect. An invalid token is a valid
// introspection result, so this never returns an error status.
func (p *Provider) HandleIntrospect() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := p.signer.DecodeAccessToken(c.PostForm("token"))
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"active": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"active":    true,
			"sub":       claims.Subject,
			"client_id": claims.ClientID,
			"scope":     claims.Scope,
			"iss":       claims.Issuer,
			"exp":       claims.ExpiresAt,
		})
	}
}

// HandleRevoke handles POST /revoke. There is no revocation list; tokens
// are only ever invalidated by natural expiry, and revoke reports success
// without invalidating anything.
func (p *Provider) HandleRevoke() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	}
}
