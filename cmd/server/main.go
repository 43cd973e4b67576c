// Command server wires configuration, storage, domain services, and the HTTP
// router, then runs the server until a shutdown signal arrives. Business
// logic lives in the internal services packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	billingcache "orgkit/internal/billing/cache"
	billinghandler "orgkit/internal/billing/handler"
	billingmetrics "orgkit/internal/billing/metrics"
	"orgkit/internal/billing/paddle"
	billingservice "orgkit/internal/billing/service"
	billingstore "orgkit/internal/billing/store"
	"orgkit/internal/events"
	orghandler "orgkit/internal/organization/handler"
	orgmetrics "orgkit/internal/organization/metrics"
	orgservice "orgkit/internal/organization/service"
	orgstore "orgkit/internal/organization/store"
	"orgkit/internal/platform/config"
	"orgkit/internal/platform/httpserver"
	"orgkit/internal/platform/logger"
	"orgkit/internal/platform/postgres"
	redisplatform "orgkit/internal/platform/redis"
	"orgkit/internal/pricing"
	pricinghandler "orgkit/internal/pricing/handler"
	httptransport "orgkit/internal/transport/http"
	"orgkit/internal/webhook"
	webhookhandler "orgkit/internal/webhook/handler"
	webhookmetrics "orgkit/internal/webhook/metrics"
	"orgkit/pkg/platform/middleware/auth"
	"orgkit/pkg/platform/tx"
)

// subscriptionStore is the intersection both consumers of the subscription
// mirror need: the webhook pipeline writes it, the billing service reads it.
type subscriptionStore interface {
	billingservice.SubscriptionStore
	webhook.SubscriptionStore
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	redisClient, err := redisplatform.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	catalog, err := pricing.NewCatalog(cfg.Pricing)
	if err != nil {
		log.Error("invalid pricing configuration", "error", err)
		os.Exit(1)
	}

	// Storage. Without DATABASE_URL everything runs on in-memory stores,
	// which is only suitable for local development.
	var (
		orgSvcOpts  []orgservice.Option
		orgs        orgservice.OrganizationStore
		memberships orgservice.MembershipStore
		settings    orgservice.SettingsStore
		invites     orgservice.InviteStore
		apiKeys     orgservice.APIKeyStore
		directory   orgservice.UserDirectory

		billingAdmins billingservice.BillingAdminStore
		customers     webhook.CustomerStore
		subscriptions subscriptionStore
		grants        webhook.GrantStore
		eventLog      webhook.EventStore
	)
	if db != nil {
		orgs = orgstore.NewPostgresOrganizations(db)
		memberships = orgstore.NewPostgresMemberships(db)
		settings = orgstore.NewPostgresSettings(db)
		invites = orgstore.NewPostgresInvites(db)
		apiKeys = orgstore.NewPostgresAPIKeys(db)
		directory = orgstore.NewPostgresDirectory(db)
		orgSvcOpts = append(orgSvcOpts, orgservice.WithTxRunner(tx.NewRunner(db)))

		billingAdmins = billingstore.NewPostgresBillingAdmins(db)
		customers = billingstore.NewPostgresCustomers(db)
		subscriptions = billingstore.NewPostgresSubscriptions(db)
		grants = billingstore.NewPostgresGrants(db)
		eventLog = billingstore.NewPostgresEvents(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		orgs = orgstore.NewInMemoryOrganizations()
		memberships = orgstore.NewInMemoryMemberships()
		settings = orgstore.NewInMemorySettings()
		invites = orgstore.NewInMemoryInvites()
		apiKeys = orgstore.NewInMemoryAPIKeys()
		directory = orgstore.NewInMemoryDirectory()

		billingAdmins = billingstore.NewInMemoryBillingAdmins()
		customers = billingstore.NewInMemoryCustomers()
		subscriptions = billingstore.NewInMemorySubscriptions()
		grants = billingstore.NewInMemoryGrants()
		eventLog = billingstore.NewInMemoryEvents()
	}

	orgSvc := orgservice.New(
		orgs,
		memberships,
		settings,
		invites,
		apiKeys,
		directory,
		append(orgSvcOpts,
			orgservice.WithLogger(log),
			orgservice.WithMetrics(orgmetrics.New()),
		)...,
	)

	paddleClient := paddle.NewClient(cfg.Paddle.APIURL, cfg.Paddle.APIKey,
		paddle.WithLogger(log),
	)

	billingOpts := []billingservice.Option{
		billingservice.WithLogger(log),
		billingservice.WithMetrics(billingmetrics.New()),
	}
	if redisClient != nil {
		billingOpts = append(billingOpts,
			billingservice.WithStatusCache(billingcache.NewRedisCache(redisClient.Client), 0),
		)
	}
	billingSvc := billingservice.New(
		billingAdmins,
		subscriptions,
		memberships,
		directory,
		paddleClient,
		billingOpts...,
	)

	wbMetrics := webhookmetrics.New()
	processorOpts := []webhook.ProcessorOption{
		webhook.WithLogger(log),
		webhook.WithMetrics(wbMetrics),
	}

	var mirror *events.Mirror
	if len(cfg.KafkaBrokers) > 0 {
		mirror, err = events.New(ctx, cfg.KafkaBrokers, cfg.KafkaEventTopic,
			events.WithLogger(log),
		)
		if err != nil {
			log.Error("kafka mirror init failed", "error", err)
			os.Exit(1)
		}
		processorOpts = append(processorOpts, webhook.WithPublisher(mirror))
	}

	processor := webhook.NewProcessor(
		subscriptions,
		customers,
		grants,
		eventLog,
		processorOpts...,
	)

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:         log,
		DB:             db,
		Redis:          redisClient,
		Organizations:  orghandler.New(orgSvc, log),
		Billing:        billinghandler.New(billingSvc, log),
		Webhooks:       webhookhandler.New(processor, cfg.Paddle.WebhookSecret, log, wbMetrics),
		Pricing:        pricinghandler.New(catalog),
		TokenValidator: auth.NewHS256Validator(cfg.JWTSecret),
		APIKeys:        orgSvc,
		AdminToken:     cfg.AdminToken,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if mirror != nil {
		g.Go(func() error {
			return mirror.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
