package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/teamchat/internal/config"
	"github.com/thereayou/teamchat/internal/database"
	"github.com/thereayou/teamchat/internal/enrichment"
	"github.com/thereayou/teamchat/internal/handlers"
	"github.com/thereayou/teamchat/internal/metrics"
	"github.com/thereayou/teamchat/internal/middleware"
	"github.com/thereayou/teamchat/internal/services"
	ws "github.com/thereayou/teamchat/internal/websocket"
	"github.com/thereayou/teamchat/pkg/auth"
	"github.com/thereayou/teamchat/pkg/sanitize"
)

const (
	shutdownTimeout = 10 * time.Second
	demoPassword    = "password123"
)

type Server struct {
	Router     *gin.Engine
	Store      services.Store
	DB         *database.Database
	Redis      *redis.Client
	JWTManager *auth.JWTManager
	Hub        *ws.Hub
	Enrichment *enrichment.Queue
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry

	cfg    *config.Config
	cancel context.CancelFunc
}

// OpenStore выбирает хранилище по cfg.Store. db nil для store=memory.
func OpenStore(ctx context.Context, cfg *config.Config) (services.Store, *database.Database, error) {
	switch cfg.Store {
	case config.StoreMemory:
		mem := database.NewMemoryStore()
		if _, err := database.Seed(ctx, mem, demoPassword); err != nil {
			return nil, nil, fmt.Errorf("seed memory store: %w", err)
		}
		log.Warn().Str("module", "server").Msg("using in-memory store with demo data, nothing is persisted")
		return mem, nil, nil

	case config.StoreSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open failed: %w", err)
		}
		return db, db, nil

	default:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect failed: %w", err)
		}
		return db, db, nil
	}
}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	store, db, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	var (
		rdb       *redis.Client
		blacklist auth.Blacklist
	)
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(redisOpts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis connect failed: %w", err)
		}
		blacklist = auth.NewRedisBlacklist(rdb)
	} else {
		log.Warn().Str("module", "server").Msg("redis_url is empty, logout will not revoke tokens")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewAuthenticator(jwtMgr, blacklist)

	hub := ws.NewHub(ws.NewSessionStore(cfg.SendBuffer), ws.NewRoomRegistry(), m)

	var queue *enrichment.Queue
	if cfg.OpenAIAPIKey != "" {
		queue = enrichment.NewQueue(
			enrichment.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel),
			store, m, cfg.EnrichmentWorkers, cfg.EnrichmentQueueSize,
		)
		queue.Start()
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	authority := services.NewMembershipAuthority(store)
	processor := handlers.NewEventProcessor(store, authority, hub, sanitize.New(), queue, m)
	lifecycle := handlers.NewLifecycle(authenticator, store, hub)

	h := Handlers{
		Auth:     handlers.NewAuthHandler(store, jwtMgr, authenticator),
		Messages: handlers.NewHTTPMessageHandler(store, authority),
		Channels: handlers.NewChannelHandler(store, authority, hub),
		Users:    handlers.NewUserHandler(store, hub),
		DMs:      handlers.NewDirectMessageHandler(store),
		WS: handlers.NewWebSocketHandler(baseCtx, hub, lifecycle, processor, cfg.AllowedOrigins, ws.ClientConfig{
			ReadLimit:  cfg.ReadLimit,
			EventRate:  cfg.EventRate,
			EventBurst: cfg.EventBurst,
		}),
	}

	s := &Server{
		Store:      store,
		DB:         db,
		Redis:      rdb,
		JWTManager: jwtMgr,
		Hub:        hub,
		Enrichment: queue,
		Metrics:    m,
		Registry:   registry,
		cfg:        cfg,
		cancel:     cancel,
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger())
	APIEndpoints(router, h, authenticator, lifecycle, m)
	router.GET("/healthz", s.health)
	router.GET("/metrics", MetricsHandler(registry))
	s.Router = router

	return s, nil
}

// Run слушает порт до отмены ctx, затем аккуратно останавливается
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("module", "server").Str("addr", srv.Addr).Str("store", s.cfg.Store).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.Close()
			return fmt.Errorf("server run error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Str("module", "server").Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	s.Close()

	log.Info().Str("module", "server").Msg("server exited gracefully")
	return err
}

// Close закрывает сессии, дожидается фоновых задач и освобождает соединения
func (s *Server) Close() {
	s.Hub.Shutdown()
	s.cancel()
	s.Enrichment.Close()

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close failed")
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("database close failed")
		}
	}
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}

	if s.DB != nil {
		checks["database"] = "ok"
		if err := s.DB.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if s.Redis != nil {
		checks["redis"] = "ok"
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, gin.H{
		"status":   http.StatusText(status),
		"checks":   checks,
		"sessions": s.Hub.Sessions().Len(),
		"rooms":    s.Hub.Rooms().Len(),
	})
}
