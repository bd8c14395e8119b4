// Package main starts the license bot: the Discord gateway connection that
// serves chat commands and the HTTP server that receives purchase webhooks.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/silicabot/internal/backend"
	"github.com/atinyakov/silicabot/internal/bot"
	"github.com/atinyakov/silicabot/internal/config"
	"github.com/atinyakov/silicabot/internal/confirm"
	"github.com/atinyakov/silicabot/internal/discord"
	"github.com/atinyakov/silicabot/internal/logger"
	"github.com/atinyakov/silicabot/internal/notify"
	"github.com/atinyakov/silicabot/internal/server/handler/http"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Parse command-line, file and environment configuration.
	options, configPath, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	store := config.NewStore(options, configPath)

	session, err := discord.NewSession(options.DiscordToken)
	if err != nil {
		zapLogger.Fatal("cannot create discord session", zap.Error(err))
	}

	backendClient := backend.New(options.BackendURL, options.AdminKey, nil, options.BackendTimeout.Duration)
	notifier := notify.New(session, discord.GuildIDs(session.State), zapLogger.Named("notify"))
	confirmations := confirm.NewRegistry(options.ConfirmTimeout.Duration)

	dispatcher := bot.NewDispatcher(bot.Deps{
		Backend:       backendClient,
		Notifier:      notifier,
		Chat:          session,
		Settings:      store,
		Confirmations: confirmations,
		Log:           zapLogger.Named("bot"),
	})
	gateway := discord.NewGateway(session, dispatcher, zapLogger.Named("discord"))

	// Build the webhook router with middleware and routes.
	webhookHandler := &http.WebhookHandler{Registrar: notifier, Logger: zapLogger.Named("webhook")}
	healthHandler := &http.HealthHandler{Stats: notifier.Stats()}
	router := http.NewRouter(webhookHandler, healthHandler, options.WebhookSecret, zapLogger.Named("http"))

	server := &nethttp.Server{
		Addr:              options.WebhookAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reloadOnHangup(ctx, store, zapLogger)

	zapLogger.Info("starting bot",
		zap.String("backend_url", options.BackendURL),
		zap.String("webhook_addr", server.Addr),
		zap.Int("bootstrap_admins", len(options.BootstrapAdminIDs)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gateway.Run(gctx)
	})
	g.Go(func() error {
		return serve(server, options, zapLogger)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		zapLogger.Info("shutting down webhook server")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLogger.Fatal("bot stopped", zap.Error(err))
	}
	zapLogger.Info("bot stopped")
}

// serve runs the webhook server, over TLS when a certificate is configured.
func serve(server *nethttp.Server, options *config.Options, zapLogger *zap.Logger) error {
	var err error
	if options.WebhookTLSCert != "" && options.WebhookTLSKey != "" {
		zapLogger.Info("starting HTTPS webhook server", zap.String("addr", server.Addr))
		err = server.ListenAndServeTLS(options.WebhookTLSCert, options.WebhookTLSKey)
	} else {
		zapLogger.Info("starting HTTP webhook server", zap.String("addr", server.Addr))
		err = server.ListenAndServe()
	}
	if errors.Is(err, nethttp.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("webhook server: %w", err)
}

// reloadOnHangup re-reads the configuration on every SIGHUP until ctx is done.
// Access rules and the command prefix apply from the next message on.
func reloadOnHangup(ctx context.Context, store *config.Store, zapLogger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := store.Reload(); err != nil {
				zapLogger.Error("config reload failed, keeping previous configuration", zap.Error(err))
				continue
			}
			p := store.Policy()
			zapLogger.Info("configuration reloaded",
				zap.String("authorized_server_id", p.AuthorizedServerID),
				zap.Int("allowed_channels", len(p.AllowedChannelIDs)),
				zap.Int("bootstrap_admins", len(p.BootstrapAdminIDs)),
			)
		}
	}
}
