package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/auth"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/bunx"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/identity"
	consolemw "github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/middleware"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/nav"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/repository"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/server"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the console API server",
	Long:  `Starts the HTTP server with the auth, user, and navigation endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Connect to database
		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		log.Printf("Connected to database")

		userRepo := repository.NewBunUserRepository(db)
		sessionRepo := repository.NewBunSessionRepository(db)

		events := identity.NewEvents()

		metrics, err := telemetry.NewAuthMetrics()
		if err != nil {
			log.Printf("WARNING: metrics disabled: %v", err)
			metrics = nil
		}
		if metrics != nil {
			unsubscribe := events.Subscribe(func(ev identity.Event) {
				ctx := context.Background()
				switch ev.Type {
				case identity.EventUserLoaded:
					if ev.Renewed {
						metrics.RecordRenewal(ctx, true)
					}
				case identity.EventSilentRenewError:
					metrics.RecordRenewal(ctx, false)
				case identity.EventUserSignedOut:
					metrics.RecordSignOut(ctx, "session")
				}
			})
			defer unsubscribe()
		}

		// Select the session backend from configuration. Exactly one is
		// active per deployment.
		var backend identity.SessionBackend
		var providerBackend *identity.ProviderBackend
		var fallbackBackend *identity.FallbackBackend
		var loginPath string

		if cfg.OIDC.Enabled() {
			rp, err := auth.NewRelyingParty(cmd.Context(), &cfg.OIDC)
			if err != nil {
				return fmt.Errorf("failed to create relying party: %w", err)
			}
			providerBackend = identity.NewProviderBackend(rp, userRepo, sessionRepo, events)
			backend = providerBackend
			loginPath = "/auth/sso/login"
			log.Printf("Auth mode: provider (%s)", cfg.OIDC.Authority)
		} else {
			fallbackBackend = identity.NewFallbackBackend(userRepo, sessionRepo, events)
			backend = fallbackBackend
			loginPath = "/login"
			log.Printf("Auth mode: fallback (dev login)")
		}

		resolver := identity.NewResolver(userRepo, backend, events)

		authenticator, err := consolemw.NewAuthenticator(cfg, resolver, sessionRepo, userRepo)
		if err != nil {
			return fmt.Errorf("configure authentication middleware: %w", err)
		}
		guard := consolemw.NewGuard(loginPath, "/")

		// Load the integrator navigation patch, if any.
		var navPatch *nav.Patch
		if cfg.NavPatchPath != "" {
			navPatch, err = nav.LoadPatch(cfg.NavPatchPath)
			if err != nil {
				return err
			}
			log.Printf("Loaded navigation patch %s", cfg.NavPatchPath)
		}
		navService, err := server.NewNavService(navPatch)
		if err != nil {
			return fmt.Errorf("configure navigation service: %w", err)
		}

		jobCtx, cancelJobs := context.WithCancel(cmd.Context())
		defer cancelJobs()

		// Provider sessions are renewed in the background before their
		// access expires; fallback sessions just expire.
		if providerBackend != nil {
			renewal := identity.NewRenewalJob(providerBackend, sessionRepo,
				time.Duration(cfg.OIDC.RenewalLeadSeconds)*time.Second)
			go renewal.Run(jobCtx)
		}

		// Periodic cleanup of expired session rows.
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-jobCtx.Done():
					return
				case <-ticker.C:
					if err := sessionRepo.DeleteExpired(jobCtx); err != nil {
						log.Printf("Delete expired sessions: %v", err)
					}
				}
			}
		}()

		mode := "fallback"
		if cfg.OIDC.Enabled() {
			mode = "provider"
		}
		healthHandler := func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ok","auth_mode":%q}`, mode)
		}

		routerOpts := server.RouterOptions{
			Cfg:           cfg,
			Authenticator: authenticator,
			Guard:         guard,
			Resolver:      resolver,
			Provider:      providerBackend,
			Fallback:      fallbackBackend,
			Sessions:      sessionRepo,
			Nav:           navService,
			Metrics:       metrics,
			HealthHandler: healthHandler,
		}
		// h2c keeps HTTP/2 available without TLS termination in front.
		h2cHandler, err := server.NewH2CHandler(routerOpts)
		if err != nil {
			return fmt.Errorf("assemble router: %w", err)
		}

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      h2cHandler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			log.Printf("Server URL: %s", cfg.ServerURL)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)
			cancelJobs()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
