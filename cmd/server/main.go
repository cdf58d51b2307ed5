package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ulp-gateway/internal/audit"
	"ulp-gateway/internal/credential"
	"ulp-gateway/internal/credential/cache"
	"ulp-gateway/internal/did"
	"ulp-gateway/internal/directory"
	"ulp-gateway/internal/enrollment"
	enrollmentHandler "ulp-gateway/internal/enrollment/handler"
	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/identity/digilocker"
	"ulp-gateway/internal/linking"
	linkingHandler "ulp-gateway/internal/linking/handler"
	"ulp-gateway/internal/platform/config"
	"ulp-gateway/internal/platform/httpserver"
	"ulp-gateway/internal/platform/logger"
	"ulp-gateway/internal/platform/metrics"
	"ulp-gateway/internal/platform/middleware"
	"ulp-gateway/internal/platform/redis"
	"ulp-gateway/internal/registry"
	"ulp-gateway/internal/upstream"
	"ulp-gateway/internal/wallet"
	walletHandler "ulp-gateway/internal/wallet/handler"
	"ulp-gateway/pkg/platform/httputil"
)

const auditQueueCapacity = 1024

// main wires collaborators, services and the HTTP router, then serves until
// SIGINT or SIGTERM.
func main() {
	configPath := flag.String("config", os.Getenv("ULP_CONFIG"), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	schemaCache := buildSchemaCache(rdb, cfg, log)

	publisher, stopAudit, err := buildAudit(ctx, cfg, log)
	if err != nil {
		return err
	}
	// Runs after the HTTP server has drained, so events from in-flight
	// requests are still delivered.
	defer stopAudit()

	g, ctx := errgroup.WithContext(ctx)

	outbound := func(service string) *upstream.Client {
		return upstream.NewClient(service, upstream.WithTimeout(cfg.Outbound.Timeout), upstream.WithObserver(m))
	}

	idp := digilocker.New(ctx, cfg.DigiLocker,
		digilocker.WithLogger(log),
		digilocker.WithUpstream(outbound("digilocker")),
	)
	dir := directory.New(cfg.Directory,
		directory.WithLogger(log),
		directory.WithUpstream(outbound("directory")),
	)
	records := registry.New(cfg.Registry.BaseURL,
		registry.WithLogger(log),
		registry.WithUpstream(outbound("registry")),
	)
	dids := did.New(cfg.DID.BaseURL, outbound("did"))
	issuer := credential.New(cfg.Credentials.BaseURL, cfg.Credentials.SchemaURL,
		credential.WithLogger(log),
		credential.WithSchemaCache(schemaCache),
		credential.WithCacheObserver(m),
		credential.WithUpstream(outbound("credentials"), outbound("schema")),
	)

	linkSvc := linking.New(idp, dir, records, dids, identity.NewDeriver(cfg.Identity.Salt),
		linking.WithLogger(log),
		linking.WithMetrics(m),
		linking.WithAuditPublisher(publisher),
		linking.WithStepTimeout(cfg.Outbound.Timeout),
	)
	rosterSvc := enrollment.New(linkSvc, records, dids, issuer,
		enrollment.WithLogger(log),
		enrollment.WithMetrics(m),
		enrollment.WithAuditPublisher(publisher),
		enrollment.WithConcurrency(cfg.Server.BulkConcurrency),
		enrollment.WithStepTimeout(cfg.Outbound.Timeout),
	)
	walletSvc := wallet.New(linkSvc, issuer,
		wallet.WithLogger(log),
		wallet.WithMetrics(m),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log, m))
	r.Use(middleware.Recovery(log))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := rdb.Health(r.Context()); err != nil {
			log.WarnContext(r.Context(), "health check failed", "dependency", "redis", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
		linkingHandler.New(linkSvc, log).Register(r)
		enrollmentHandler.New(rosterSvc, log).Register(r)
		walletHandler.New(walletSvc, log).Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, r)
	g.Go(func() error {
		return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildSchemaCache shares schemas through Redis when it is configured and
// falls back to an in-process LRU otherwise.
func buildSchemaCache(rdb *redis.Client, cfg config.Config, log *slog.Logger) cache.Cache {
	if rdb == nil {
		log.Info("schema cache in memory", "max_entries", cfg.Credentials.SchemaCacheMax)
		return cache.NewMemory(cfg.Credentials.SchemaCacheMax, cfg.Credentials.SchemaCacheTTL)
	}
	log.Info("schema cache in redis")
	return cache.NewRedis(rdb.Client, cfg.Credentials.SchemaCacheTTL)
}

// buildAudit always logs audit events and, with brokers configured, also
// streams them to Kafka through a background worker. The returned stop
// flushes the worker and closes the producer.
func buildAudit(ctx context.Context, cfg config.Config, log *slog.Logger) (*audit.Publisher, func(), error) {
	sinks := []audit.Sink{audit.NewSlogSink(log)}
	if len(cfg.Audit.KafkaBrokers) == 0 {
		return audit.NewPublisher(sinks...), func() {}, nil
	}

	kafka, err := audit.NewKafkaSink(ctx, cfg.Audit.KafkaBrokers, cfg.Audit.Topic)
	if err != nil {
		return nil, nil, err
	}
	queue := audit.NewAsyncSink(auditQueueCapacity)
	stopWorker := audit.NewWorker(kafka, queue, log).Start()
	log.Info("audit events streamed to kafka", "topic", cfg.Audit.Topic)
	stop := func() {
		stopWorker()
		kafka.Close()
	}
	return audit.NewPublisher(append(sinks, queue)...), stop, nil
}
