package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/portalstack/portal-server/internal/authz"
	"github.com/portalstack/portal-server/internal/config"
	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/httpserver"
	"github.com/portalstack/portal-server/internal/httpserver/deps"
	"github.com/portalstack/portal-server/internal/logger"
	"github.com/portalstack/portal-server/internal/manager"
	"github.com/portalstack/portal-server/internal/metrics"
	"github.com/portalstack/portal-server/internal/redis"
	"github.com/portalstack/portal-server/internal/rpcserver"
	"github.com/portalstack/portal-server/internal/scheduler"
	"github.com/portalstack/portal-server/internal/seed"
	"github.com/portalstack/portal-server/internal/store"
	"github.com/portalstack/portal-server/internal/store/memory"
	"github.com/portalstack/portal-server/internal/store/rediscache"
	"github.com/portalstack/portal-server/internal/store/sqlstore"
	"github.com/portalstack/portal-server/internal/token"
	"github.com/portalstack/portal-server/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	rpcServer   *rpcserver.Server
	manager     *manager.Manager
	store       store.Store
	redisClient *goredis.Client
	purger      *scheduler.Purger
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	st := openStore(cfg, loggerClient)

	// Optional Redis cache in front of the store. Unreachable Redis is
	// fatal when configured - silently running uncached would hide a
	// deployment problem.
	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		loggerClient.Info("Redis initialized successfully")

		redisClient = client
		st = rediscache.New(st, redisClient, cfg.CacheTTL)
	}

	authzClient := authz.NewRPCClient(cfg.AuthzAddr, cfg.AuthzDialTimeout, cfg.AuthzCallTimeout)
	prober := domain.NewHTTPProber(cfg.ProbeTimeout)

	mgr := manager.New(st, authzClient, prober, loggerClient)

	var verifier *token.Verifier
	if cfg.JWTPublicKeyFile != "" {
		v, err := token.NewVerifierFromFile(cfg.JWTPublicKeyFile)
		if err != nil {
			loggerClient.Errorf("Failed to load JWT public key: %v", err)
			os.Exit(1)
		}
		verifier = v
	} else {
		loggerClient.Warn("JWT public key not configured, HTTP auth disabled")
	}

	m := metrics.New()

	d := deps.Deps{
		Logger:      loggerClient,
		StartTime:   time.Now(),
		Version:     version.Version,
		Commit:      version.Commit,
		BuildDate:   version.BuildDate,
		GoVersion:   version.GoVersion,
		Manager:     mgr,
		Store:       st,
		Verifier:    verifier,
		RedisClient: redisClient,
		AuthzAddr:   cfg.AuthzAddr,
		Metrics:     m,
		TrustProxy:  cfg.TrustProxy,
	}

	server := httpserver.New(cfg, loggerClient, d)
	rpcSrv := rpcserver.New(cfg.RPCListenAddr, mgr, loggerClient, m)
	purger := scheduler.NewPurger(st, loggerClient, cfg.PurgeInterval, cfg.PurgeThreshold)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		rpcServer:   rpcSrv,
		manager:     mgr,
		store:       st,
		redisClient: redisClient,
		purger:      purger,
	}
}

func openStore(cfg *config.Config, log logger.Logger) store.Store {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case "postgres":
		st, err := sqlstore.OpenPostgres(ctx, cfg.StoreDSN)
		if err != nil {
			log.Errorf("Failed to open postgres store: %v", err)
			os.Exit(1)
		}
		log.Info("postgres store initialized")
		return st
	case "sqlite":
		st, err := sqlstore.OpenSQLite(ctx, cfg.StoreDSN)
		if err != nil {
			log.Errorf("Failed to open sqlite store: %v", err)
			os.Exit(1)
		}
		log.Info("sqlite store initialized")
		return st
	default:
		log.Warn("using in-memory store, data is lost on restart")
		return memory.New()
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting portal-server v%s on %s (rpc %s)",
		version.Version, a.cfg.HTTPListenAddr, a.cfg.RPCListenAddr)
	a.logger.Infof("portal-server %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.SeedFile != "" {
		if err := seed.Apply(ctx, a.cfg.SeedFile, a.manager, a.logger); err != nil {
			a.logger.Warn("seeding failed", logger.Error(err))
		}
	}

	if err := a.purger.Start(ctx); err != nil {
		return fmt.Errorf("failed to start purge scheduler: %w", err)
	}
	a.logger.Info("purge scheduler started",
		logger.Duration("interval", a.cfg.PurgeInterval))

	errCh := make(chan error, 2)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()
	go func() {
		if err := a.rpcServer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("rpc server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.purger.Stop()
	a.rpcServer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if err := a.store.Close(); err != nil {
		a.logger.Warnf("failed to close store: %v", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ portal-server stopped cleanly")
	return nil
}
