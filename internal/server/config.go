package server

import (
	"fmt"
	"os"
	"strings"

	"github.com/sparkloc/oidcd/internal/crypto"
)

// Config holds server configuration loaded from environment variables.
// It is injected at construction; nothing reads the environment at request
// time.
type Config struct {
	ListenAddr     string
	DBPath         string
	IssuerURL      string // public base URL of this server, no trailing slash
	SSOSecret      string // secret shared with the forum's SSO endpoint
	SSOProviderURL string // forum base URL
	MasterKey      *[32]byte
	CORSOrigins    []string
}

// LoadConfig loads server configuration from environment variables.
func LoadConfig() (*Config, error) {
	ssoSecret := os.Getenv("OIDCD_SSO_SECRET")
	if ssoSecret == "" {
		return nil, fmt.Errorf("OIDCD_SSO_SECRET is required")
	}

	ssoProviderURL := strings.TrimRight(os.Getenv("OIDCD_SSO_PROVIDER_URL"), "/")
	if ssoProviderURL == "" {
		return nil, fmt.Errorf("OIDCD_SSO_PROVIDER_URL is required")
	}

	issuerURL := strings.TrimRight(os.Getenv("OIDCD_ISSUER_URL"), "/")
	if issuerURL == "" {
		return nil, fmt.Errorf("OIDCD_ISSUER_URL is required")
	}

	dbPath := os.Getenv("OIDCD_DB_PATH")
	if dbPath == "" {
		dbPath = "oidcd.db"
	}

	listenAddr := os.Getenv("OIDCD_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	var masterKey *[32]byte
	if v := strings.TrimSpace(os.Getenv("OIDCD_MASTER_KEY")); v != "" {
		key, err := crypto.ParseMasterKey(v)
		if err != nil {
			return nil, fmt.Errorf("OIDCD_MASTER_KEY: %w", err)
		}
		masterKey = &key
	}

	var corsOrigins []string
	if v := os.Getenv("OIDCD_CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	return &Config{
		ListenAddr:     listenAddr,
		DBPath:         dbPath,
		IssuerURL:      issuerURL,
		SSOSecret:      ssoSecret,
		SSOProviderURL: ssoProviderURL,
		MasterKey:      masterKey,
		CORSOrigins:    corsOrigins,
	}, nil
}
