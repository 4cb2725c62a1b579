package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	assetmetrics "citadel/internal/asset/metrics"
	"citadel/internal/asset/service"
	assetmemory "citadel/internal/asset/store/memory"
	assetpostgres "citadel/internal/asset/store/postgres"
	jwttoken "citadel/internal/jwt_token"
	"citadel/internal/platform/config"
	"citadel/internal/platform/height"
	"citadel/internal/platform/httpserver"
	"citadel/internal/platform/kafka"
	"citadel/internal/platform/logger"
	platformmetrics "citadel/internal/platform/metrics"
	platformmiddleware "citadel/internal/platform/middleware"
	platformpg "citadel/internal/platform/postgres"
	platformredis "citadel/internal/platform/redis"
	ratemetrics "citadel/internal/ratelimit/metrics"
	ratelimit "citadel/internal/ratelimit/middleware"
	ratemodels "citadel/internal/ratelimit/models"
	"citadel/internal/ratelimit/store/bucket"
	id "citadel/pkg/domain"
	audit "citadel/pkg/platform/audit"
	"citadel/pkg/platform/audit/publisher"
	"citadel/pkg/platform/audit/sink"
	kafkasink "citadel/pkg/platform/audit/sink/kafka"
	auditmemory "citadel/pkg/platform/audit/store/memory"
	auditredis "citadel/pkg/platform/audit/store/redis"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	configPath := flag.String("config", os.Getenv("CITADEL_CONFIG"), "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// backends holds the optional infrastructure clients so they can be closed in reverse order.
type backends struct {
	db    *sql.DB
	redis *platformredis.Client
	kafka *kgo.Client
}

func (b *backends) close() {
	if b.kafka != nil {
		b.kafka.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var be backends
	defer be.close()

	stores, err := buildLedger(ctx, cfg, log, &be)
	if err != nil {
		return err
	}

	auditStore, err := buildAuditStore(ctx, cfg, log, &be)
	if err != nil {
		return err
	}
	sinks, err := buildSinks(ctx, cfg, log, &be)
	if err != nil {
		return err
	}
	auditPublisher := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(cfg.Asset.AuditBuffer),
		publisher.WithLogger(log),
		publisher.WithSinks(sinks...),
	)
	defer auditPublisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	clock := height.NewClock(cfg.Height.Genesis, cfg.Height.Interval)
	svc, err := service.New(stores,
		service.Config{Administrator: cfg.Administrator(), Limits: cfg.Limits()},
		service.WithLogger(log),
		service.WithMetrics(assetmetrics.New(reg)),
		service.WithAuditPublisher(auditPublisher),
		service.WithHeightSource(clock),
	)
	if err != nil {
		return fmt.Errorf("build asset service: %w", err)
	}

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)
	heightPolicy := platformmiddleware.HeightPolicy{
		Trusted:  cfg.TrustedHeightSources(),
		MaxAhead: id.Height(cfg.Height.MaxAhead),
	}
	router := newRouter(routerDeps{
		service:      svc,
		audit:        auditPublisher,
		validator:    jwttoken.NewJWTServiceAdapter(jwtService),
		clock:        clock,
		heightPolicy: heightPolicy,
		limiter:      buildLimiter(cfg.Rate, reg, log, &be),
		metrics:      platformmetrics.New(reg),
		gatherer:     reg,
		health:       be.health,
		logger:       log,
	})

	log.Info("starting citadel",
		"addr", cfg.Server.Addr,
		"administrator", cfg.Administrator(),
		"postgres", be.db != nil,
		"redis", be.redis != nil,
		"kafka", be.kafka != nil,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Server.Addr, router), cfg.Server.ShutdownTimeout, log)
	})
	return g.Wait()
}

// health reports the first unhealthy backend.
func (b *backends) health(ctx context.Context) error {
	if b.db != nil {
		if err := b.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if b.redis != nil {
		if err := b.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func buildLedger(ctx context.Context, cfg config.Config, log *slog.Logger, be *backends) (service.Stores, error) {
	db, err := platformpg.Open(ctx, cfg.Postgres)
	if err != nil {
		return service.Stores{}, err
	}
	if db == nil {
		log.Warn("postgres not configured, ledger is in memory and will not survive restarts")
		l := assetmemory.NewLedger()
		return service.Stores{Assets: l.Assets, Grants: l.Grants, Transitions: l.Transitions, Counters: l.Counters, Tx: l}, nil
	}
	be.db = db
	if err := platformpg.Migrate(ctx, db); err != nil {
		return service.Stores{}, err
	}
	l := assetpostgres.NewLedger(db)
	return service.Stores{Assets: l.Assets, Grants: l.Grants, Transitions: l.Transitions, Counters: l.Counters, Tx: l}, nil
}

func buildAuditStore(ctx context.Context, cfg config.Config, log *slog.Logger, be *backends) (audit.Store, error) {
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Warn("redis not configured, audit trail is in memory")
		return auditmemory.NewInMemoryStore(), nil
	}
	be.redis = client
	return auditredis.New(client.Client, auditredis.WithRecentCap(cfg.Redis.AuditCap)), nil
}

func buildSinks(ctx context.Context, cfg config.Config, log *slog.Logger, be *backends) ([]audit.Sink, error) {
	client, err := kafka.NewProducer(ctx, cfg.Kafka, log)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, nil
	}
	be.kafka = client
	if err := kafkasink.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
		return nil, err
	}
	return []audit.Sink{
		sink.NewGuarded(kafkasink.New(client, cfg.Kafka.AuditTopic), cfg.Kafka.BreakerThreshold, cfg.Kafka.BreakerCooldown),
	}, nil
}

func buildLimiter(cfg config.RateLimit, reg prometheus.Registerer, log *slog.Logger, be *backends) *ratelimit.Middleware {
	var store ratelimit.BucketStore = bucket.NewInMemoryBucketStore()
	if be.redis != nil {
		store = bucket.NewRedisBucketStore(be.redis.Client)
	}
	policies := map[ratemodels.Class]ratemodels.Policy{
		ratemodels.ClassRead:  {Limit: cfg.ReadLimit, Window: cfg.Window},
		ratemodels.ClassWrite: {Limit: cfg.WriteLimit, Window: cfg.Window},
	}
	return ratelimit.New(store, policies, log,
		ratelimit.WithDisabled(cfg.Disabled),
		ratelimit.WithMetrics(ratemetrics.New(reg)),
	)
}
