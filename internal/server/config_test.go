package server

import (
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OIDCD_SSO_SECRET", "s3cr3t")
	t.Setenv("OIDCD_SSO_PROVIDER_URL", "https://forum.example.com/")
	t.Setenv("OIDCD_ISSUER_URL", "https://id.example.com/")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "oidcd.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.SSOProviderURL != "https://forum.example.com" {
		t.Errorf("SSOProviderURL not trimmed: %q", cfg.SSOProviderURL)
	}
	if cfg.IssuerURL != "https://id.example.com" {
		t.Errorf("IssuerURL not trimmed: %q", cfg.IssuerURL)
	}
	if cfg.MasterKey != nil {
		t.Errorf("MasterKey set without OIDCD_MASTER_KEY")
	}
}

func TestLoadConfigRequiredVars(t *testing.T) {
	for _, name := range []string{"OIDCD_SSO_SECRET", "OIDCD_SSO_PROVIDER_URL", "OIDCD_ISSUER_URL"} {
		setRequiredEnv(t)
		t.Setenv(name, "")
		if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), name) {
			t.Errorf("missing %s: err = %v", name, err)
		}
	}
}

func TestLoadConfigMasterKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OIDCD_MASTER_KEY", strings.Repeat("ab", 32))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MasterKey == nil {
		t.Fatalf("MasterKey not parsed")
	}

	t.Setenv("OIDCD_MASTER_KEY", "not-hex")
	if _, err := LoadConfig(); err == nil {
		t.Errorf("invalid master key accepted")
	}
}

func TestLoadConfigCORSOrigins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OIDCD_CORS_ORIGINS", "https://a.example.com, https://b.example.com ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins[1] = %q", cfg.CORSOrigins[1])
	}
}
