package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/veroide/mergehost/internal/certs"
	"github.com/veroide/mergehost/internal/config"
	"github.com/veroide/mergehost/internal/remote"
	"github.com/veroide/mergehost/internal/server"
	"github.com/veroide/mergehost/internal/session"
	"github.com/veroide/mergehost/internal/storage"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host conflict sessions for IDE clients over WebSocket",
		Long: `Start the WebSocket host. Clients open a session per sandbox merge, send
per-hunk decisions, and commit once every file is resolved. Open sessions are
saved to the database after each change and restored on the next start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if f := cmd.Flags().Lookup("tls-self-signed"); f.Changed {
				cfg.TLSSelfSigned, _ = cmd.Flags().GetBool("tls-self-signed")
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return runServe(ctx, cmd, cfg, dryRun)
		},
	}

	f := cmd.Flags()
	f.String("addr", "", "Listen address (default: "+config.DefaultAddr+")")
	f.String("db", "", "SQLite database for drafts and the commit log (default: ~/.mergehost/mergehost.db)")
	f.String("provider-url", "", "Diff provider base URL")
	f.String("sync-url", "", "Sync service base URL")
	f.String("both-order", "", "Side order for \"both\": theirs_first or yours_first")
	f.String("tls-cert", "", "TLS certificate file")
	f.String("tls-key", "", "TLS key file")
	f.Bool("tls-self-signed", false, "Serve wss:// with a generated certificate")
	f.Bool("dry-run", false, "Accept every commit without contacting the sync service")
	return cmd
}

// runServe starts the host and blocks until ctx is cancelled. With dryRun,
// commits are recorded locally and never sent.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, dryRun bool) error {
	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	manager := session.NewManager(session.ManagerOptions{
		Resolve: cfg.ResolveOptions(),
		Drafts:  store,
		Commits: store,
	})
	defer manager.Close()

	restored, err := restoreDrafts(ctx, store, manager)
	if err != nil {
		return err
	}

	srv := server.NewServer(cfg.Addr, manager)
	srv.SetRateLimit(cfg.RateLimit, cfg.RateBurst)

	opts := remote.ClientOptions{
		Timeout:    cfg.RequestTimeout(),
		MaxRetries: cfg.CommitMaxRetries,
	}
	if cfg.ProviderURL != "" {
		o := opts
		o.BaseURL = cfg.ProviderURL
		srv.SetProvider(remote.NewProviderClient(o))
	}
	switch {
	case dryRun:
		srv.SetCommitter(remote.Discard{})
		log.Warn("dry run: commits are not sent to the sync service")
	case cfg.SyncURL != "":
		o := opts
		o.BaseURL = cfg.SyncURL
		srv.SetCommitter(remote.NewCommitClient(o))
	default:
		log.Warn("no sync_url configured; commits will be refused")
	}

	tlsCfg, fingerprint, err := serverTLS(cfg)
	if err != nil {
		return err
	}

	scheme := "ws"
	var startErr <-chan error
	if tlsCfg != nil {
		scheme = "wss"
		startErr = srv.StartAsyncTLS(*tlsCfg)
	} else {
		startErr = srv.StartAsync()
	}
	if err := <-startErr; err != nil {
		return err
	}
	defer srv.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "mergehost %s listening on %s://%s/ws\n", Version, scheme, srv.Addr())
	if fingerprint != "" {
		fmt.Fprintf(out, "Certificate fingerprint: %s\n", fingerprint)
	}
	fmt.Fprintf(out, "Database: %s (%d open sessions restored)\n", cfg.DBPath, restored)

	<-ctx.Done()
	fmt.Fprintln(out, "\nStopping...")
	return nil
}

// serverTLS returns the certificate to serve with, or nil for plain ws://.
// A self-signed pair lives in a certs directory beside the database.
func serverTLS(cfg *config.Config) (*server.TLSConfig, string, error) {
	if cfg.TLSCert != "" {
		pair, err := certs.Load(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, "", err
		}
		return &server.TLSConfig{CertPath: pair.CertPath, KeyPath: pair.KeyPath}, pair.Fingerprint, nil
	}
	if !cfg.TLSSelfSigned {
		return nil, "", nil
	}
	pair, err := certs.Ensure(certs.Options{
		Dir:   filepath.Join(filepath.Dir(cfg.DBPath), "certs"),
		Hosts: certHosts(cfg.Addr),
	})
	if err != nil {
		return nil, "", err
	}
	return &server.TLSConfig{CertPath: pair.CertPath, KeyPath: pair.KeyPath}, pair.Fingerprint, nil
}

// certHosts adds the listen host to the default SANs.
func certHosts(addr string) []string {
	hosts := []string{"localhost", "127.0.0.1"}
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" || host == "localhost" || host == "127.0.0.1" || host == "0.0.0.0" {
		return hosts
	}
	return append(hosts, host)
}

// restoreDrafts hands every usable stored session to the manager.
func restoreDrafts(ctx context.Context, store *storage.SQLiteStore, manager *session.Manager) (int, error) {
	drafts, err := store.LoadDrafts()
	if err != nil {
		return 0, fmt.Errorf("failed to load drafts: %w", err)
	}
	for _, d := range drafts {
		if err := manager.Adopt(ctx, d); err != nil {
			return 0, err
		}
	}
	return len(drafts), nil
}
