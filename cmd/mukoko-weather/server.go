// Package main provides the mukoko-weather server implementation.
package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/api/handlers"
	"github.com/nyuchitech/mukoko-weather/config"
	"github.com/nyuchitech/mukoko-weather/internal/aisummary"
	"github.com/nyuchitech/mukoko-weather/internal/breaker"
	"github.com/nyuchitech/mukoko-weather/internal/cache"
	"github.com/nyuchitech/mukoko-weather/internal/chat"
	"github.com/nyuchitech/mukoko-weather/internal/explore"
	"github.com/nyuchitech/mukoko-weather/internal/followup"
	"github.com/nyuchitech/mukoko-weather/internal/geo"
	"github.com/nyuchitech/mukoko-weather/internal/history"
	"github.com/nyuchitech/mukoko-weather/internal/llmclient"
	"github.com/nyuchitech/mukoko-weather/internal/metrics"
	"github.com/nyuchitech/mukoko-weather/internal/prompts"
	"github.com/nyuchitech/mukoko-weather/internal/ratelimit"
	"github.com/nyuchitech/mukoko-weather/internal/reports"
	"github.com/nyuchitech/mukoko-weather/internal/season"
	"github.com/nyuchitech/mukoko-weather/internal/server"
	"github.com/nyuchitech/mukoko-weather/internal/status"
	"github.com/nyuchitech/mukoko-weather/internal/store"
	"github.com/nyuchitech/mukoko-weather/internal/suitability"
	"github.com/nyuchitech/mukoko-weather/internal/tags"
	"github.com/nyuchitech/mukoko-weather/internal/telemetry"
	"github.com/nyuchitech/mukoko-weather/internal/tiles"
	"github.com/nyuchitech/mukoko-weather/internal/weather"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server is the mukoko-weather server: document store, cache, circuit
// breakers, the LLM client, and every domain service wired into HTTP
// handlers behind the shared middleware chain.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	store *store.Store
	cache *cache.Manager

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler      *handlers.HealthHandler
	weatherHandler     *handlers.WeatherHandler
	aiHandler          *handlers.AIHandler
	chatHandler        *handlers.ChatHandler
	exploreHandler     *handlers.ExploreHandler
	reportsHandler     *handlers.ReportsHandler
	historyHandler     *handlers.HistoryHandler
	suitabilityHandler *handlers.SuitabilityHandler
	locationsHandler   *handlers.LocationsHandler
	tilesHandler       *handlers.TilesHandler
	statusHandler      *handlers.StatusHandler

	metricsCollector *metrics.Collector

	wg sync.WaitGroup
}

// NewServer connects the document store and builds every domain service
// from cfg. The returned Server is not yet listening; call Start.
func NewServer(cfg *config.Config, otel *telemetry.Providers, logger *zap.Logger) (*Server, error) {
	ctx := context.Background()

	st, err := store.Connect(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		logger.Warn("failed to ensure store indexes", zap.Error(err))
	}

	cacheCfg := cache.FromServiceConfig(
		cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB,
		cfg.Cache.PoolSize, cfg.Cache.MinIdleConns, cfg.Cache.HealthCheckInterval,
		10*time.Minute,
	)
	cm, err := cache.NewManager(cacheCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect cache: %w", err)
	}

	return &Server{cfg: cfg, logger: logger, otel: otel, store: st, cache: cm}, nil
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start wires the domain services, registers HTTP routes, and starts the
// HTTP and metrics listeners.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("mukoko_weather", s.logger)

	s.initHandlers()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initHandlers builds the breaker registry, the LLM client, and every
// domain service, then wraps each in its HTTP handler.
func (s *Server) initHandlers() {
	p := s.cfg.Providers

	breakers := breaker.NewRegistry(s.logger, s.metricsCollector)
	llm := llmclient.New(p.AnthropicKey, p.AnthropicModel, breakers, s.metricsCollector, s.logger)
	promptLib := prompts.New(s.store, s.logger)
	seasons := season.New(s.store)
	tagRegistry := tags.New(s.store, s.logger)
	limiter := ratelimit.New(s.store)

	suitabilityEval := suitability.New(s.store, s.logger)

	weatherPipeline := weather.New(s.store, s.cache, breakers, s.metricsCollector, s.logger,
		weather.WithTomorrowIOKey(p.TomorrowIOKey),
		weather.WithOpenMeteoBaseURL(p.OpenMeteoBaseURL),
	)
	summaryGen := aisummary.New(s.store, llm, promptLib, seasons, p.AnthropicModel, s.logger)
	followupSvc := followup.New(limiter, llm, promptLib, breakers, s.logger)
	chatOrch := chat.New(s.store, llm, suitabilityEval, tagRegistry, s.metricsCollector, s.logger)
	exploreSvc := explore.New(s.store, llm, promptLib, limiter, breakers, s.logger)
	reportsSvc := reports.New(s.store, limiter, llm, promptLib, s.logger)
	historySvc := history.New(s.store, limiter, llm, promptLib, seasons, breakers, s.logger)
	locator := geo.New(s.store, breakers, limiter, p.NominatimBaseURL, p.GeocodingBaseURL, p.ElevationBaseURL, s.logger)
	tileProxy := tiles.New(p.TomorrowIOKey, s.logger)
	statusSvc := status.New(s.store, llm, p.TomorrowIOKey, s.logger)

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.weatherHandler = handlers.NewWeatherHandler(weatherPipeline, s.logger)
	s.aiHandler = handlers.NewAIHandler(weatherPipeline, summaryGen, followupSvc, locator, s.logger)
	s.chatHandler = handlers.NewChatHandler(chatOrch, limiter, s.logger)
	s.exploreHandler = handlers.NewExploreHandler(exploreSvc, s.logger)
	s.reportsHandler = handlers.NewReportsHandler(reportsSvc, s.logger)
	s.historyHandler = handlers.NewHistoryHandler(historySvc, s.logger)
	s.suitabilityHandler = handlers.NewSuitabilityHandler(suitabilityEval, s.logger)
	s.locationsHandler = handlers.NewLocationsHandler(locator, s.logger)
	s.tilesHandler = handlers.NewTilesHandler(tileProxy, s.logger)
	s.statusHandler = handlers.NewStatusHandler(statusSvc, s.logger)

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer registers every route and starts the HTTP listener.
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))
	mux.HandleFunc("/status", s.statusHandler.HandleStatus)

	// 天气与 AI
	mux.HandleFunc("/weather", s.weatherHandler.HandleWeather)
	mux.HandleFunc("/ai", s.aiHandler.HandleSummary)
	mux.HandleFunc("/ai/followup", s.aiHandler.HandleFollowup)
	mux.HandleFunc("/chat", s.chatHandler.HandleChat)
	mux.HandleFunc("/explore/search", s.exploreHandler.HandleSearch)

	// 历史与适宜度
	mux.HandleFunc("/history/analyze", s.historyHandler.HandleAnalyze)
	mux.HandleFunc("/history", s.historyHandler.HandleList)
	mux.HandleFunc("/suitability", s.suitabilityHandler.HandleRules)

	// 社区举报
	mux.HandleFunc("/reports", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			s.reportsHandler.HandleSubmit(w, r)
			return
		}
		s.reportsHandler.HandleList(w, r)
	})
	mux.HandleFunc("/reports/upvote", s.reportsHandler.HandleUpvote)
	mux.HandleFunc("/reports/clarify", s.reportsHandler.HandleClarify)

	// 位置目录与地图瓦片
	mux.HandleFunc("/locations", s.locationsHandler.HandleList)
	mux.HandleFunc("/locations/add", s.locationsHandler.HandleAdd)
	mux.HandleFunc("/search", s.locationsHandler.HandleSearch)
	mux.HandleFunc("/geo", s.locationsHandler.HandleGeo)
	mux.HandleFunc("/map-tiles", s.tilesHandler.HandleTile)

	// ========================================
	// 构建中间件链
	// ========================================
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		SecurityHeaders(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(context.Background(), s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     120 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer starts the Prometheus metrics listener.
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown blocks until a shutdown signal arrives, then cleans up.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown gracefully stops every server and closes the store and cache.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(ctx); err != nil {
			s.logger.Error("Store shutdown error", zap.Error(err))
		}
	}

	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
