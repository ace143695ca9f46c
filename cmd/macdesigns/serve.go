package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"macdesigns/internal/analytics"
	"macdesigns/internal/auth"
	"macdesigns/internal/config"
	"macdesigns/internal/contact"
	"macdesigns/internal/database"
	"macdesigns/internal/server"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portfolio HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, env.DatabaseURL, env.DataPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	logger.Info("database ready", zap.String("dialect", string(db.Dialect)))

	site, err := config.NewManager(env.SiteFile)
	if err != nil {
		return err
	}

	if env.ProfileSecret == "" {
		logger.Warn("PROFILE_SECRET not set, profile cookies will not survive a restart")
	}
	profiles, err := auth.NewProfileTokens(env.ProfileSecret)
	if err != nil {
		return fmt.Errorf("profile tokens: %w", err)
	}

	var cfIPs *auth.CloudflareIPs
	if env.TrustCloudflare {
		cfIPs = auth.NewCloudflareIPs(auth.DefaultCloudflareURLs, logger.Named("cloudflare"))
		defer cfIPs.Close()
	}

	svc, err := newContactService(ctx, db, site.Get().Contact.Phone)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		ListenAddr:         env.ListenAddr,
		DB:                 db,
		Site:               site,
		Profiles:           profiles,
		Contact:            svc,
		CloudflareIPs:      cfIPs,
		IPLookupURL:        env.IPLookupURL,
		RateLimitPerMinute: env.RateLimitPerMinute,
		Logger:             logger,
	})

	maintainer := analytics.NewMaintainer(db, env.EventRetentionDays, 0, logger)
	defer maintainer.Close()

	watcher, err := config.NewWatcher(site, logger.Named("site"), srv.ApplySite)
	if err != nil {
		logger.Warn("site file hot reload disabled", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		if watcher != nil {
			watcher.Start(gctx)
			defer watcher.Stop()
		}
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// newContactService relays SMS through SES when both addresses are configured
// and falls back to the demo notifier otherwise.
func newContactService(ctx context.Context, db *database.DB, phone string) (*contact.Service, error) {
	if !env.RelayConfigured() {
		logger.Info("SMS relay not configured, using demo mode")
		return contact.NewService(nil, contact.NewDemoNotifier(logger.Named("sms")), phone, logger), nil
	}

	relay, err := contact.NewRelayNotifier(ctx, env.AWSRegion, env.SMSRelayFrom, env.SMSRelayTo, logger.Named("sms"))
	if err != nil {
		return nil, fmt.Errorf("sms relay: %w", err)
	}
	return contact.NewService(contact.NewRepository(db), relay, phone, logger), nil
}
