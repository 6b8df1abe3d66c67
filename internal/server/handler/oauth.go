package handler

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sparkloc/oidcd/internal/logx"
	"github.com/sparkloc/oidcd/internal/server/session"
)

// HandleAuth handles GET /auth, the entry point of the flow. It validates
// the client and redirect_uri, parks the request as a PendingLogin, and
// sends the browser to the forum's SSO endpoint.
func (p *Provider) HandleAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.Query("client_id")
		redirectURI := c.Query("redirect_uri")

		client, err := p.clients.Resolve(clientID)
		if err != nil {
			logx.Errorf("auth: resolve client %q: %v", clientID, err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		if client == nil {
			c.String(http.StatusBadRequest, "unknown client_id")
			return
		}
		// Nothing is redirected to an unverified URI; the flow stops here.
		if !client.RedirectAllowed(redirectURI) {
			c.String(http.StatusBadRequest, "redirect_uri not registered for this app")
			return
		}

		sessionID := uuid.NewString()
		nonce := uuid.NewString()

		scope := c.Query("scope")
		if scope == "" {
			scope = "openid"
		}
		login := &session.PendingLogin{
			Nonce:        nonce,
			ClientID:     clientID,
			RedirectURI:  redirectURI,
			Scope:        scope,
			State:        c.Query("state"),
			ResponseType: c.Query("response_type"),
			OIDCNonce:    c.Query("nonce"),
		}
		if err := p.flows.Logins.Put(sessionID, login); err != nil {
			logx.Errorf("auth: store pending login: %v", err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}

		p.setCookie(c, sessionCookie, sessionID)
		c.Redirect(http.StatusFound, p.bridge.GenerateURL(p.issuerURL+"/callback", nonce))
	}
}

// HandleCallback handles GET /callback, the forum's signed SSO response.
// The pending login is consumed exactly once; a replayed or expired callback
// reads as an invalid session.
func (p *Provider) HandleCallback() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(sessionCookie)
		if err != nil || sessionID == "" {
			c.String(http.StatusBadRequest, "invalid session, please try again")
			return
		}

		login, err := p.flows.Logins.Consume(sessionID)
		if err != nil {
			logx.Errorf("callback: consume pending login: %v", err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		if login == nil {
			c.String(http.StatusBadRequest, "invalid session, please try again")
			return
		}

		params, err := p.bridge.ValidateResponse(c.Query("sso"), c.Query("sig"), login.Nonce)
		if err != nil {
			c.String(http.StatusBadRequest, "authentication failed: "+err.Error())
			return
		}

		username := params.Get("username")
		local, err := p.identity.ResolveLocalUser(username)
		if err != nil {
			logx.Errorf("callback: resolve local user %q: %v", username, err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		trustLevel := 0
		if local != nil {
			trustLevel = local.TrustLevel
		}
		name := params.Get("name")
		if name == "" {
			name = username
		}
		user := session.UserIdentity{
			ExternalID: params.Get("external_id"),
			Username:   username,
			Name:       name,
			Email:      params.Get("email"),
			AvatarURL:  params.Get("avatar_url"),
			TrustLevel: trustLevel,
		}

		appName := login.ClientID
		if client, err := p.clients.Resolve(login.ClientID); err == nil && client != nil {
			appName = client.Name
		}

		consentToken := uuid.NewString()
		pending := &session.PendingConsent{
			ClientID:    login.ClientID,
			AppName:     appName,
			RedirectURI: login.RedirectURI,
			Scope:       login.Scope,
			State:       login.State,
			OIDCNonce:   login.OIDCNonce,
			User:        user,
		}
		if err := p.flows.Consents.Put(consentToken, pending); err != nil {
			logx.Errorf("callback: store pending consent: %v", err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}

		p.clearCookie(c, sessionCookie)
		p.setCookie(c, consentCookie, consentToken)

		html, err := renderConsentPage(p.issuerURL, appName, user)
		if err != nil {
			logx.Errorf("callback: render consent page: %v", err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", html)
	}
}

// HandleAuthorize handles POST /authorize: the user approved. The pending
// consent becomes a single-use authorization code.
func (p *Provider) HandleAuthorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		consentToken, err := c.Cookie(consentCookie)
		if err != nil || consentToken == "" {
			c.String(http.StatusBadRequest, "invalid session, please try again")
			return
		}

		pending, err := p.flows.Consents.Consume(consentToken)
		if err != nil {
			logx.Errorf("authorize: consume consent: %v", err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		if pending == nil {
			c.String(http.StatusBadRequest, "consent expired, please try again")
			return
		}

		code, err := newAuthorizationCode()
		if err != nil {
			logx.Errorf("authorize: generate code: %v", err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		entry := &session.IssuedCode{
			ClientID:    pending.ClientID,
			RedirectURI: pending.RedirectURI,
			User:        pending.User,
			Scope:       pending.Scope,
			OIDCNonce:   pending.OIDCNonce,
		}
		if err := p.flows.Codes.Put(code, entry); err != nil {
			logx.Errorf("authorize: store code: %v", err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}

		target, err := appendQuery(pending.RedirectURI, func(q url.Values) {
			q.Set("code", code)
			if pending.State != "" {
				q.Set("state", pending.State)
			}
		})
		if err != nil {
			c.String(http.StatusBadRequest, "invalid redirect_uri")
			return
		}

		p.clearCookie(c, consentCookie)
		p.recordDecision(pending, "approved")
		c.Redirect(http.StatusFound, target)
	}
}

// HandleDeny handles POST /deny: the user refused. The client learns only
// access_denied.
func (p *Provider) HandleDeny() gin.HandlerFunc {
	return func(c *gin.Context) {
		consentToken, err := c.Cookie(consentCookie)
		if err != nil || consentToken == "" {
			c.String(http.StatusBadRequest, "invalid session")
			return
		}

		pending, err := p.flows.Consents.Consume(consentToken)
		if err != nil {
			logx.Errorf("deny: consume consent: %v", err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		if pending == nil {
			c.String(http.StatusBadRequest, "consent expired")
			return
		}

		p.recordDecision(pending, "denied")

		target, err := appendQuery(pending.RedirectURI, func(q url.Values) {
			q.Set("error", "access_denied")
			q.Set("error_description", "user denied the request")
			if pending.State != "" {
				q.Set("state", pending.State)
			}
		})
		if err != nil {
			c.String(http.StatusBadRequest, "invalid redirect_uri")
			return
		}

		p.clearCookie(c, consentCookie)
		c.Redirect(http.StatusFound, target)
	}
}

func (p *Provider) recordDecision(pending *session.PendingConsent, status string) {
	userID, _ := strconv.ParseInt(pending.User.ExternalID, 10, 64)
	if err := p.audit.RecordAuthorization(userID, pending.ClientID, pending.AppName, pending.Scope, status); err != nil {
		logx.Errorf("record authorization (%s): %v", status, err)
	}
}

// newAuthorizationCode returns 32 bytes of entropy as 64 hex chars.
func newAuthorizationCode() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

// appendQuery parses rawURL and lets mutate add parameters to its existing
// query string.
func appendQuery(rawURL string, mutate func(url.Values)) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	mutate(q)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
