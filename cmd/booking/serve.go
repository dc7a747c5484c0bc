package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golf-booking/config"
	"golf-booking/internal/cart"
	"golf-booking/internal/catalog"
	"golf-booking/internal/checkout"
	"golf-booking/internal/db"
	"golf-booking/internal/identity"
	"golf-booking/internal/payment"
	"golf-booking/internal/registration"
	"golf-booking/internal/server"
	"golf-booking/internal/webhook"
	"golf-booking/pkg/logger"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		autoMigrate bool
		seed        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the booking HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(autoMigrate, seed)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply database migrations before serving")
	cmd.Flags().BoolVar(&seed, "seed", false, "load the default program catalog before serving (always on for the memory store)")

	return cmd
}

func runServe(autoMigrate, seed bool) error {
	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}
	defer l.Sync()

	l.Infow("starting golf booking API", "version", Version, "store", cfg.Store)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Stripe.WebhookSecret == "" {
		l.Warnw("stripe webhook secret is not configured, webhook calls will be rejected")
	}

	if autoMigrate && cfg.Store == config.StorePostgres {
		if err := db.Migrate(cfg.DB.DSN()); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	store, err := openStore(cfg, l)
	if err != nil {
		return err
	}
	defer store.Close()

	programs := catalog.NewService(store, l.With("component", "catalog"))
	if seed || cfg.Store == config.StoreMemory {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err := programs.Seed(ctx, catalog.DefaultPrograms(time.Now().Year()))
		cancel()
		if err != nil {
			return err
		}
	}

	cache := openCartCache(cfg, l)

	stripeClient := payment.NewStripeClient(cfg.Stripe)
	users := identity.NewResolver(store)
	carts := cart.NewService(store, programs, cache, cfg.Cart.TTL, l.With("component", "cart"))
	snapshots := checkout.NewSnapshots(store, cfg.Checkout.TTL)
	checkouts := checkout.NewService(carts, snapshots, stripeClient, users, store,
		stripeClient.Currency(), l.With("component", "checkout"))
	materializer := registration.NewMaterializer(store, snapshots, users, carts,
		l.With("component", "registration"))
	webhooks := webhook.NewHandler(stripeClient, materializer, l.With("component", "webhook"))

	api := server.NewAPI(server.Deps{
		Carts:     carts,
		Catalog:   programs,
		Checkout:  checkouts,
		Snapshots: snapshots,
		Intents:   stripeClient,
		Webhook:   http.HandlerFunc(webhooks.HandleStripeWebhook),
		Health:    store.Ping,
		Cookie: server.CookieConfig{
			Name:   cfg.Cart.CookieName,
			TTL:    cfg.Cart.TTL,
			Secure: cfg.Cart.SecureCookie,
		},
		Logger: l.With("component", "http"),
	})

	httpServer := server.NewServer(server.Options{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, api, l)

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		l.Infow("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		l.Errorw("error during HTTP server shutdown", "error", err)
	}

	l.Infow("server stopped")
	return nil
}

// openStore connects to the configured record store. Postgres gets a few
// attempts since it often starts alongside the API.
func openStore(cfg *config.Config, l *logger.Logger) (db.Store, error) {
	if cfg.Store == config.StoreMemory {
		l.Warnw("using in-memory store, data is lost on restart")
		return db.NewMemoryDB(), nil
	}

	var (
		database *db.PostgresDB
		err      error
	)
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		database, err = db.NewPostgresDB(ctx, cfg.DB)
		cancel()
		if err == nil {
			return database, nil
		}
		l.Errorw("failed to connect to database, retrying", "attempt", i+1, "error", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
}

// openCartCache returns nil when Redis is not configured or unreachable; the
// cart service then reads straight from the store.
func openCartCache(cfg *config.Config, l *logger.Logger) cart.CartCache {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client, err := cart.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		l.Warnw("redis unavailable, cart cache disabled", "addr", cfg.Redis.Addr, "error", err)
		return nil
	}
	l.Infow("cart cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CartTTL)
	return cart.NewRedisCache(client, cfg.Redis.CartTTL)
}
