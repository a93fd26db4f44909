package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/BaSui01/flowedit/api/handlers"
	"github.com/BaSui01/flowedit/config"
	"github.com/BaSui01/flowedit/editor"
	"github.com/BaSui01/flowedit/internal/cache"
	"github.com/BaSui01/flowedit/internal/database"
	"github.com/BaSui01/flowedit/internal/metrics"
	"github.com/BaSui01/flowedit/internal/pubsub"
	"github.com/BaSui01/flowedit/internal/server"
	"github.com/BaSui01/flowedit/internal/telemetry"
	"github.com/BaSui01/flowedit/session"
	"github.com/BaSui01/flowedit/store"
	"github.com/BaSui01/flowedit/transport"
	"github.com/BaSui01/flowedit/web"
	"github.com/BaSui01/flowedit/workflow"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// poolStatsInterval 数据库连接数指标的采样间隔
const poolStatsInterval = 15 * time.Second

// =============================================================================
// 🖥️ 服务器结构
// =============================================================================

// Server 持有服务的全部组件
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	registry  *prometheus.Registry
	collector *metrics.Collector
	otel      *telemetry.Providers

	pool  *database.PoolManager
	cache *cache.Manager
	store store.Store
	bus   pubsub.Bus

	hub      *transport.Hub
	executor *workflow.Executor
	router   *transport.Router
	health   *handlers.HealthHandler
}

// NewServer 按配置创建全部组件；任一外部依赖不可用时返回错误并释放已创建的资源
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		collector: metrics.NewCollectorWithRegistry("flowedit", registry, logger),
		health:    handlers.NewHealthHandler(logger),
	}

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		// 遥测失败不阻止启动
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.otel = otelProviders

	if cfg.Redis.Enabled {
		if err := s.initRedis(); err != nil {
			s.close()
			return nil, err
		}
	} else {
		s.bus = pubsub.NewMemoryBus(logger)
	}

	if err := s.initStore(context.Background()); err != nil {
		s.close()
		return nil, err
	}

	s.hub = transport.NewHub(s.bus, logger)
	s.executor = workflow.NewExecutor(s.hub, workflow.Config{
		Timeout:   cfg.Server.ExecutionTimeout,
		TaskDelay: cfg.Server.TaskDelay,
	}, logger)
	s.executor.SetRecorder(s.collector)

	s.router = transport.NewRouter(logger)
	s.router.SetRecorder(s.collector)
	handlers.NewCommands(s.store, s.executor, handlers.DefaultToolCatalog(), logger).Register(s.router)

	return s, nil
}

// =============================================================================
// 🔧 组件初始化
// =============================================================================

func (s *Server) initRedis() error {
	rc := s.cfg.Redis
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Addr = rc.Addr
	cacheCfg.Password = rc.Password
	cacheCfg.DB = rc.DB
	if rc.PoolSize > 0 {
		cacheCfg.PoolSize = rc.PoolSize
	}
	if rc.MinIdleConns > 0 {
		cacheCfg.MinIdleConns = rc.MinIdleConns
	}
	if rc.KeyPrefix != "" {
		cacheCfg.KeyPrefix = rc.KeyPrefix
	}
	if s.cfg.Store.CacheTTL > 0 {
		cacheCfg.DefaultTTL = s.cfg.Store.CacheTTL
	}

	cm, err := cache.NewManager(cacheCfg, s.logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	s.cache = cm
	s.bus = pubsub.NewRedisBus(cm.Client(), rc.ChannelPrefix, s.logger)
	s.health.RegisterCheck(handlers.NewPingCheck("redis", cm.Ping))
	return nil
}

func (s *Server) initStore(ctx context.Context) error {
	var st store.Store
	switch s.cfg.Store.Backend {
	case "database":
		pool, err := database.Open(s.cfg.Database, s.logger)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		s.pool = pool
		gs := store.NewGormStoreWithPool(pool, s.logger)
		if s.cfg.Store.AutoMigrate {
			if err := gs.AutoMigrate(); err != nil {
				return fmt.Errorf("auto-migrate workflows: %w", err)
			}
		}
		s.health.RegisterCheck(handlers.NewPingCheck("database", pool.Ping))
		st = gs
	case "mongo":
		ms, err := store.NewMongoStore(ctx, s.cfg.Store.MongoURI, s.cfg.Store.MongoDatabase, s.logger)
		if err != nil {
			return err
		}
		s.health.RegisterCheck(handlers.NewPingCheck("mongo", ms.Ping))
		st = ms
	default:
		st = store.NewMemoryStore()
	}

	if s.cache != nil && s.cfg.Store.CacheTTL > 0 {
		st = store.NewCached(st, s.cache, s.cfg.Store.CacheTTL, s.logger).WithObserver(s.collector)
	}
	s.store = st
	s.logger.Info("workflow store ready", zap.String("backend", s.cfg.Store.Backend))
	return nil
}

// =============================================================================
// 🌐 HTTP 路由
// =============================================================================

// sessionOptions 把编辑器配置转换为会话参数
func (s *Server) sessionOptions() session.Options {
	ec := s.cfg.Editor
	return session.Options{
		Editor: editor.Options{
			MinZoom:         ec.MinZoom,
			MaxZoom:         ec.MaxZoom,
			ZoomSensitivity: ec.ZoomSensitivity,
			FlowDirection:   editor.ParseOrientation(ec.FlowDirection),
		},
		Observer: s.collector.EditorObserver(),
	}
}

// Handler 构建带中间件的 API 处理器；ctx 结束时限流器的清理协程退出
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	ws := handlers.NewWebSocketHandler(s.router, s.hub, s.store, handlers.WebSocketConfig{
		OriginPatterns: s.cfg.Server.AllowedOrigins,
		Session:        s.sessionOptions(),
		Recorder:       s.collector,
	}, s.logger)
	mux.Handle("GET /ws", ws)

	handlers.NewWorkflowHandler(s.store, s.logger).Routes(mux)

	mux.HandleFunc("GET /healthz", s.health.HandleHealthz)
	mux.HandleFunc("GET /ready", s.health.HandleReady)
	mux.HandleFunc("GET /version", s.health.HandleVersion(Version, BuildTime, GitCommit))
	mux.Handle("GET /", web.Handler())

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		CORS(s.cfg.Server.AllowedOrigins),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		RequestLogger(s.logger),
	}
	if s.cfg.Auth.Enabled() {
		middlewares = append(middlewares, Auth(s.cfg.Auth, s.logger))
	}
	if s.cfg.Auth.RateLimitRPS > 0 {
		middlewares = append(middlewares, RateLimiter(ctx, s.cfg.Auth.RateLimitRPS, s.cfg.Auth.RateLimitBurst, s.logger))
	}
	return Chain(mux, middlewares...)
}

// MetricsHandler 暴露本服务的 Prometheus registry
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

func (s *Server) serverConfig(port int) server.Config {
	sc := server.DefaultConfig()
	sc.Addr = fmt.Sprintf(":%d", port)
	if s.cfg.Server.ReadTimeout > 0 {
		sc.ReadTimeout = s.cfg.Server.ReadTimeout
	}
	if s.cfg.Server.WriteTimeout > 0 {
		sc.WriteTimeout = s.cfg.Server.WriteTimeout
	}
	if s.cfg.Server.ShutdownTimeout > 0 {
		sc.ShutdownTimeout = s.cfg.Server.ShutdownTimeout
	}
	return sc
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 启动全部服务并阻塞到收到 SIGINT/SIGTERM
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer s.close()

	if err := s.hub.Start(ctx); err != nil {
		return fmt.Errorf("start hub: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	api := server.NewManager("api", s.Handler(gctx), s.serverConfig(s.cfg.Server.HTTPPort), s.logger)
	api.RegisterOnShutdown(s.hub.CloseAll)
	g.Go(func() error { return api.Run(gctx) })

	if s.cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", s.MetricsHandler())
		ms := server.NewManager("metrics", mux, s.serverConfig(s.cfg.Server.MetricsPort), s.logger)
		g.Go(func() error { return ms.Run(gctx) })
	}

	if s.pool != nil {
		g.Go(func() error {
			s.recordPoolStats(gctx)
			return nil
		})
	}

	s.logger.Info("FlowEdit started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("store", s.cfg.Store.Backend),
	)

	err := g.Wait()
	s.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout())
	defer cancel()
	if serr := s.executor.Shutdown(shutdownCtx); serr != nil {
		s.logger.Warn("executions did not finish before shutdown", zap.Error(serr))
	}
	s.hub.Stop()
	if serr := s.otel.Shutdown(shutdownCtx); serr != nil {
		s.logger.Warn("telemetry shutdown failed", zap.Error(serr))
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.Server.ShutdownTimeout > 0 {
		return s.cfg.Server.ShutdownTimeout
	}
	return 30 * time.Second
}

func (s *Server) recordPoolStats(ctx context.Context) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		stats := s.pool.GetStats()
		s.collector.RecordDBConnections(s.cfg.Database.Driver, stats.OpenConnections, stats.Idle)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// close 释放存储、缓存与总线
func (s *Server) close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close store failed", zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Warn("close database failed", zap.Error(err))
		}
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.logger.Warn("close event bus failed", zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("close redis failed", zap.Error(err))
		}
	}
}
