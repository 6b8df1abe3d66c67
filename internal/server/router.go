package server

import (
	"github.com/gin-gonic/gin"

	"github.com/sparkloc/oidcd/internal/registry"
	"github.com/sparkloc/oidcd/internal/server/db"
	"github.com/sparkloc/oidcd/internal/server/handler"
	"github.com/sparkloc/oidcd/internal/server/session"
	"github.com/sparkloc/oidcd/internal/sso"
	"github.com/sparkloc/oidcd/internal/tokens"
)

// NewRouter creates and configures the Gin router with all routes.
func NewRouter(p *handler.Provider, cfg *Config) *gin.Engine {
	r := gin.Default()

	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORS(cfg.CORSOrigins))
	}

	r.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// Authorization flow
	r.GET("/auth", p.HandleAuth())
	r.GET("/callback", p.HandleCallback())
	r.POST("/authorize", p.HandleAuthorize())
	r.POST("/deny", p.HandleDeny())

	// Token surface
	r.POST("/token", p.HandleToken())
	r.GET("/userinfo", p.HandleUserInfo())
	r.POST("/introspect", p.HandleIntrospect())
	r.POST("/revoke", p.HandleRevoke())

	// Key and metadata documents
	r.GET("/certs", p.HandleCerts())
	r.GET("/.well-known/openid-configuration", p.HandleDiscovery())

	return r
}

// Build assembles the full server from configuration: store, signing key,
// SSO bridge, client registry, and orchestrator. The returned store must be
// closed by the caller.
func Build(cfg *Config) (*gin.Engine, *db.Store, error) {
	store, err := db.NewStore(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	signer, err := tokens.NewSigner(store, cfg.MasterKey)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	p := handler.NewProvider(
		cfg.IssuerURL,
		sso.NewBridge(cfg.SSOSecret, cfg.SSOProviderURL),
		signer,
		registry.NewStoreResolver(store),
		store, // identity resolution
		store, // audit sink
		session.NewBuckets(store),
	)
	return NewRouter(p, cfg), store, nil
}
