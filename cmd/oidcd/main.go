package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sparkloc/oidcd/internal/logx"
	"github.com/sparkloc/oidcd/internal/server"
	"github.com/sparkloc/oidcd/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "oidcd",
		Short:   "OpenID Connect provider bridging the forum's SSO login",
		Version: version.Version,
	}
	rootCmd.SetVersionTemplate(version.String("oidcd") + "\n")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newKeygenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var (
		verbose  bool
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authorization server",
		Long: `Start the HTTP server. Configuration comes from the environment:

  OIDCD_SSO_SECRET        Secret shared with the forum's SSO endpoint (required)
  OIDCD_SSO_PROVIDER_URL  Forum base URL (required)
  OIDCD_ISSUER_URL        Public base URL of this server (required)
  OIDCD_DB_PATH           SQLite database path (default: oidcd.db)
  OIDCD_LISTEN_ADDR       Listen address (default: :8080)
  OIDCD_MASTER_KEY        Optional 64-hex key encrypting the signing key at rest
  OIDCD_CORS_ORIGINS      Comma-separated allowed CORS origins
  OIDCD_LOG_LEVEL         Log level: debug|info|warn|error (default: info)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logx.Configure(logLevel, verbose); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			cfg, err := server.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			r, store, err := server.Build(cfg)
			if err != nil {
				return fmt.Errorf("build server: %w", err)
			}
			defer store.Close()

			logx.Infof("server config: issuer=%s forum=%s db=%s encrypted_key=%v",
				cfg.IssuerURL, cfg.SSOProviderURL, cfg.DBPath, cfg.MasterKey != nil)
			log.Printf("oidcd listening on %s", cfg.ListenAddr)
			return r.Run(cfg.ListenAddr)
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable verbose debug logs (same as --log-level debug)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (or OIDCD_LOG_LEVEL)")

	return cmd
}

// newKeygenCmd prints a fresh master key for OIDCD_MASTER_KEY.
func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a random master key (64 hex chars)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var key [32]byte
			if _, err := rand.Read(key[:]); err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(key[:]))
			return nil
		},
	}
}
