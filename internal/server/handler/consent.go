package handler

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/sparkloc/oidcd/internal/server/session"
)

// fallbackAvatar is a neutral circle shown when the SSO response carries no
// avatar URL.
const fallbackAvatar = template.URL(`data:image/svg+xml,%3Csvg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'%3E%3Ccircle cx='50' cy='50' r='50' fill='%23ddd'/%3E%3C/svg%3E`)

var consentTmpl = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>授权 - {{.AppName}}</title>
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #f5f5f5; display: flex; justify-content: center; align-items: center; min-height: 100vh; padding: 20px; }
.card { background: #fff; border-radius: 16px; box-shadow: 0 2px 20px rgba(0,0,0,0.08); max-width: 420px; width: 100%; padding: 40px 32px; text-align: center; }
.lock-icon { width: 48px; height: 48px; margin: 0 auto 16px; color: #666; }
.app-name { font-size: 24px; font-weight: 700; margin-bottom: 4px; }
.subtitle { color: #888; font-size: 14px; margin-bottom: 24px; }
.section { background: #f9f9f9; border-radius: 12px; padding: 16px; margin-bottom: 16px; text-align: left; }
.user-row { display: flex; align-items: center; gap: 12px; }
.avatar { width: 40px; height: 40px; border-radius: 50%; object-fit: cover; }
.user-name { font-weight: 600; font-size: 15px; }
.user-sub { color: #888; font-size: 13px; }
.info-label { color: #888; font-size: 13px; margin-bottom: 8px; }
.scope-row { display: flex; align-items: center; gap: 8px; font-size: 14px; color: #333; }
.btn { display: block; width: 100%; padding: 14px; border: none; border-radius: 12px; font-size: 16px; font-weight: 600; cursor: pointer; margin-bottom: 10px; transition: opacity 0.2s; }
.btn:hover { opacity: 0.85; }
.btn-allow { background: #111; color: #fff; }
.btn-deny { background: #fff; color: #333; border: 1px solid #ddd; }
</style>
</head>
<body>
<div class="card">
  <svg class="lock-icon" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="1.5"><rect x="3" y="11" width="18" height="11" rx="2"/><path d="M7 11V7a5 5 0 0110 0v4"/></svg>
  <div class="app-name">{{.AppName}}</div>
  <div class="subtitle">请求访问你的 Sparkloc 账户</div>
  <div class="section">
    <div class="user-row">
      <img class="avatar" src="{{.Avatar}}" alt="avatar">
      <div>
        <div class="user-name">{{.Name}}</div>
        <div class="user-sub">以 @{{.Username}} 的身份授权</div>
      </div>
    </div>
  </div>
  <div class="section">
    <div class="info-label">将获取以下权限</div>
    <div class="scope-row"><span>👤</span><span>获取你的用户基本信息</span></div>
  </div>
  <form method="POST" action="{{.IssuerURL}}/authorize">
    <button type="submit" class="btn btn-allow">允许</button>
  </form>
  <form method="POST" action="{{.IssuerURL}}/deny">
    <button type="submit" class="btn btn-deny">拒绝</button>
  </form>
</div>
</body>
</html>
`))

type consentPageData struct {
	AppName   string
	Name      string
	Username  string
	Avatar    template.URL
	IssuerURL string
}

func renderConsentPage(issuerURL, appName string, user session.UserIdentity) ([]byte, error) {
	avatar := fallbackAvatar
	if user.AvatarURL != "" {
		avatar = template.URL(user.AvatarURL)
	}
	var buf bytes.Buffer
	err := consentTmpl.Execute(&buf, consentPageData{
		AppName:   appName,
		Name:      user.Name,
		Username:  user.Username,
		Avatar:    avatar,
		IssuerURL: issuerURL,
	})
	if err != nil {
		return nil, fmt.Errorf("render consent page: %w", err)
	}
	return buf.Bytes(), nil
}
