package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nextiertech/outreach-messaging/internal/admission"
	"github.com/nextiertech/outreach-messaging/internal/api/rest"
	"github.com/nextiertech/outreach-messaging/internal/infrastructure/config"
	"github.com/nextiertech/outreach-messaging/internal/infrastructure/database"
	"github.com/nextiertech/outreach-messaging/internal/infrastructure/telemetry"
	"github.com/nextiertech/outreach-messaging/internal/infrastructure/transport"
	"github.com/nextiertech/outreach-messaging/internal/metrics"
	"github.com/nextiertech/outreach-messaging/internal/service/dispatch"
	"github.com/nextiertech/outreach-messaging/internal/service/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dispatcher: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	registry, err := cfg.BuildRegistry()
	if err != nil {
		return fmt.Errorf("building identity registry: %w", err)
	}
	logger.Info("identity registry loaded", zap.Int("identities", registry.Len()))

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewRegistry(promRegistry)

	var controller admission.Controller
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("pinging redis: %w", err)
		}
		controller = admission.NewRedisController(client, logger)
		logger.Info("admission control backed by redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		controller = admission.NewMemoryController()
		logger.Info("admission control in memory; caps are per-instance")
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	leads := database.NewLeadRepository(pool)
	deals := database.NewDealRepository(pool)
	suppressions := database.NewSuppressionRepository(pool)

	vendor := transport.NewClient(transport.Config{
		BaseURL:           cfg.Vendor.BaseURL,
		APIKey:            cfg.Vendor.APIKey,
		APIToken:          cfg.Vendor.APIToken,
		Timeout:           cfg.Vendor.Timeout,
		RequestsPerSecond: cfg.Vendor.RequestsPerSecond,
	}, transport.DefaultRetryPolicy(), logger)

	defaults := dispatch.Defaults{
		From:       cfg.Dispatch.DefaultFrom,
		BatchSize:  cfg.Dispatch.BatchSize,
		GroupSize:  cfg.Dispatch.GroupSize,
		GroupDelay: cfg.Dispatch.GroupDelay,
		BatchDelay: cfg.Dispatch.BatchDelay,
		PerMinute:  cfg.Dispatch.PerMinute,
		PerDay:     cfg.Dispatch.PerDay,
	}

	dispatcher := dispatch.NewService(registry, controller, vendorTransport{vendor}, suppressions, defaults, logger, m)
	processor := pipeline.NewProcessor(leads, deals, suppressions, logger, m)

	handler := rest.NewHandler(dispatcher, processor, registry, controller, defaults, logger, nil)
	router := rest.NewRouter(handler, logger, rest.RouterConfig{
		JWTSecret: cfg.Security.JWTSecret,
		Gatherer:  promRegistry,
	})

	server := rest.NewServer(cfg.Server, router, logger)
	return server.Run(ctx)
}

// vendorTransport adapts the gateway client to the dispatcher's
// transport boundary.
type vendorTransport struct {
	client *transport.Client
}

func (v vendorTransport) Send(ctx context.Context, from, to, body, mediaURL string) (string, error) {
	receipt, err := v.client.Send(ctx, from, to, body, mediaURL)
	if err != nil {
		return "", err
	}
	return receipt.ProviderMessageID, nil
}
