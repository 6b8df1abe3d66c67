//go:build bdd

package internal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/sparkloc/oidcd/internal/server"
	"github.com/sparkloc/oidcd/internal/server/db"
)

// bddContext holds per-scenario state.
type bddContext struct {
	forum *httptest.Server
	ts    *httptest.Server
	store *db.Store

	forumUser ssoUser

	browser     *http.Client
	clientID    string
	redirectURI string

	lastStatus  int
	lastBody    []byte
	consentPage string
	appRedirect *url.URL
	code        string
	accessToken string
}

func (b *bddContext) reset() {
	if b.ts != nil {
		b.ts.Close()
	}
	if b.forum != nil {
		b.forum.Close()
	}
	if b.store != nil {
		b.store.Close()
	}
	*b = bddContext{}
}

// ── Given steps ─────────────────────────────────────────────────────

func (b *bddContext) theServerIsRunning() error {
	if b.ts != nil {
		return nil
	}

	// The forum fake reads b.forumUser at request time, so the user can be
	// configured by a later Given step.
	forumMux := http.NewServeMux()
	forumMux.HandleFunc("/session/sso_provider", func(w http.ResponseWriter, r *http.Request) {
		sso := r.URL.Query().Get("sso")
		if r.URL.Query().Get("sig") != ssoSign(sso) {
			http.Error(w, "bad signature", http.StatusBadRequest)
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(sso)
		if err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		inbound, _ := url.ParseQuery(string(decoded))
		out := url.Values{
			"nonce":       {inbound.Get("nonce")},
			"external_id": {b.forumUser.ExternalID},
			"username":    {b.forumUser.Username},
			"name":        {b.forumUser.Name},
			"email":       {b.forumUser.Email},
			"avatar_url":  {b.forumUser.AvatarURL},
		}
		encoded := base64.StdEncoding.EncodeToString([]byte(out.Encode()))
		http.Redirect(w, r, inbound.Get("return_sso_url")+
			"?sso="+url.QueryEscape(encoded)+"&sig="+ssoSign(encoded), http.StatusFound)
	})
	b.forum = httptest.NewServer(forumMux)

	var engine http.Handler
	b.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		engine.ServeHTTP(w, r)
	}))

	cfg := &server.Config{
		DBPath:         ":memory:",
		IssuerURL:      b.ts.URL,
		SSOSecret:      itSSOSecret,
		SSOProviderURL: b.forum.URL,
	}
	eng, store, err := server.Build(cfg)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	engine = eng
	b.store = store

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	b.browser = &http.Client{Jar: jar}
	return nil
}

func (b *bddContext) aClientIsRegistered(clientID, secret, redirectURI string) error {
	b.redirectURI = redirectURI
	return b.store.CreateClient(&db.OAuthClient{
		ClientID:     clientID,
		ClientSecret: secret,
		Name:         clientID,
		RedirectURIs: redirectURI,
		OwnerID:      1,
	})
}

func (b *bddContext) theForumAuthenticatesAs(username, externalID string) error {
	b.forumUser = ssoUser{
		ExternalID: externalID,
		Username:   username,
		Name:       username,
		Email:      username + "@real-mail.example.com",
	}
	return nil
}

func (b *bddContext) aLocalUserWithTrustLevel(username string, trustLevel int) error {
	return b.store.UpsertUser(&db.LocalUser{Username: username, Name: username, TrustLevel: trustLevel})
}

// ── When steps ──────────────────────────────────────────────────────

func (b *bddContext) iStartAuthorization(clientID, state string) error {
	b.clientID = clientID
	authURL := b.ts.URL + "/auth?" + url.Values{
		"client_id":     {clientID},
		"redirect_uri":  {b.redirectURI},
		"response_type": {"code"},
		"scope":         {"openid"},
		"state":         {state},
	}.Encode()

	resp, err := b.browser.Get(authURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b.lastStatus = resp.StatusCode
	b.lastBody, _ = io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusOK {
		b.consentPage = string(b.lastBody)
	}
	return nil
}

func (b *bddContext) postConsent(path string) error {
	noRedirect := &http.Client{
		Jar: b.browser.Jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := noRedirect.Post(b.ts.URL+path, "application/x-www-form-urlencoded", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b.lastStatus = resp.StatusCode
	b.lastBody, _ = io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusFound {
		return fmt.Errorf("%s: status %d, body: %s", path, resp.StatusCode, b.lastBody)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		return err
	}
	b.appRedirect = loc
	b.code = loc.Query().Get("code")
	return nil
}

func (b *bddContext) iApproveTheConsent() error { return b.postConsent("/authorize") }
func (b *bddContext) iDenyTheConsent() error    { return b.postConsent("/deny") }

func (b *bddContext) iRedeemTheCodeWithSecret(secret string) error {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {b.code},
		"client_id":     {b.clientID},
		"client_secret": {secret},
		"redirect_uri":  {b.redirectURI},
	}
	resp, err := http.Post(b.ts.URL+"/token", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b.lastStatus = resp.StatusCode
	b.lastBody, _ = io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusOK {
		var tok struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(b.lastBody, &tok); err != nil {
			return err
		}
		b.accessToken = tok.AccessToken
	}
	return nil
}

func (b *bddContext) iFetchUserinfo() error {
	req, err := http.NewRequest(http.MethodGet, b.ts.URL+"/userinfo", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.accessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b.lastStatus = resp.StatusCode
	b.lastBody, _ = io.ReadAll(resp.Body)
	return nil
}

// ── Then steps ──────────────────────────────────────────────────────

func (b *bddContext) theConsentPageShows(text string) error {
	if !strings.Contains(b.consentPage, text) {
		return fmt.Errorf("consent page does not contain %q", text)
	}
	return nil
}

func (b *bddContext) theAppReceivesACodeAndState(state string) error {
	if b.appRedirect == nil {
		return fmt.Errorf("no redirect captured")
	}
	if b.code == "" {
		return fmt.Errorf("no code on redirect %s", b.appRedirect)
	}
	if got := b.appRedirect.Query().Get("state"); got != state {
		return fmt.Errorf("state = %q, want %q", got, state)
	}
	return nil
}

func (b *bddContext) theAppReceivesErrorAndState(errCode, state string) error {
	if b.appRedirect == nil {
		return fmt.Errorf("no redirect captured")
	}
	q := b.appRedirect.Query()
	if q.Get("error") != errCode {
		return fmt.Errorf("error = %q, want %q", q.Get("error"), errCode)
	}
	if q.Get("state") != state {
		return fmt.Errorf("state = %q, want %q", q.Get("state"), state)
	}
	if q.Get("code") != "" {
		return fmt.Errorf("redirect carries a code alongside the error")
	}
	return nil
}

func (b *bddContext) theResponseStatusShouldBe(expected int) error {
	if b.lastStatus != expected {
		return fmt.Errorf("expected status %d, got %d (body: %s)", expected, b.lastStatus, b.lastBody)
	}
	return nil
}

func (b *bddContext) theTokenResponseContainsTokens() error {
	var m map[string]interface{}
	if err := json.Unmarshal(b.lastBody, &m); err != nil {
		return fmt.Errorf("parse token response: %w", err)
	}
	if s, _ := m["access_token"].(string); s == "" {
		return fmt.Errorf("no access_token in %s", b.lastBody)
	}
	if s, _ := m["id_token"].(string); s == "" {
		return fmt.Errorf("no id_token in %s", b.lastBody)
	}
	return nil
}

func (b *bddContext) theResponseJSONShouldBe(key, expected string) error {
	var m map[string]interface{}
	if err := json.Unmarshal(b.lastBody, &m); err != nil {
		return fmt.Errorf("parse response JSON: %w", err)
	}
	val, ok := m[key]
	if !ok {
		return fmt.Errorf("key %q not found in response", key)
	}
	if fmt.Sprint(val) != expected {
		return fmt.Errorf("expected %q = %q, got %q", key, expected, fmt.Sprint(val))
	}
	return nil
}

// ── Suite runner ────────────────────────────────────────────────────

func TestBDD(t *testing.T) {
	b := &bddContext{}

	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				b.reset()
				return ctx, nil
			})

			// Given
			sc.Step(`^the server is running$`, b.theServerIsRunning)
			sc.Step(`^a client "([^"]*)" with secret "([^"]*)" and redirect uri "([^"]*)"$`, b.aClientIsRegistered)
			sc.Step(`^the forum authenticates users as "([^"]*)" with external id "([^"]*)"$`, b.theForumAuthenticatesAs)
			sc.Step(`^a local user "([^"]*)" with trust level (\d+)$`, b.aLocalUserWithTrustLevel)

			// When
			sc.Step(`^I start an authorization request for "([^"]*)" with state "([^"]*)"$`, b.iStartAuthorization)
			sc.Step(`^I approve the consent$`, b.iApproveTheConsent)
			sc.Step(`^I deny the consent$`, b.iDenyTheConsent)
			sc.Step(`^I redeem the code with secret "([^"]*)"$`, b.iRedeemTheCodeWithSecret)
			sc.Step(`^I fetch userinfo with the access token$`, b.iFetchUserinfo)

			// Then
			sc.Step(`^the consent page shows "([^"]*)"$`, b.theConsentPageShows)
			sc.Step(`^the app receives a code and state "([^"]*)"$`, b.theAppReceivesACodeAndState)
			sc.Step(`^the app receives error "([^"]*)" and state "([^"]*)"$`, b.theAppReceivesErrorAndState)
			sc.Step(`^the response status should be (\d+)$`, b.theResponseStatusShouldBe)
			sc.Step(`^the token response contains an access token and an id token$`, b.theTokenResponseContainsTokens)
			sc.Step(`^the response JSON "([^"]*)" should be "([^"]*)"$`, b.theResponseJSONShouldBe)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("BDD tests failed")
	}

	b.reset()
}

func init() {
	// Suppress Gin debug output during BDD tests
	os.Setenv("GIN_MODE", "release")
}
