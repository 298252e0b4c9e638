package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/mvc_layer/internal/config"
	"github.com/R3E-Network/mvc_layer/internal/httputil"
	"github.com/R3E-Network/mvc_layer/internal/logging"
	"github.com/R3E-Network/mvc_layer/internal/metrics"
	"github.com/R3E-Network/mvc_layer/internal/middleware"
	"github.com/R3E-Network/mvc_layer/pkg/filters"
	"github.com/R3E-Network/mvc_layer/pkg/hosting"
	"github.com/R3E-Network/mvc_layer/pkg/mvc"
	"github.com/R3E-Network/mvc_layer/pkg/results"
)

const serviceName = "mvcserver"

// Global filter orders. Lower runs first within a stage.
const (
	orderAuthorize     = -100
	orderRateLimit     = -50
	orderResponseCache = 0
	orderServiceError  = 100
)

// server is the assembled host: router, pipeline and background jobs.
type server struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	app     *mvc.App
	router  *mux.Router
	cron    *cron.Cron

	rateLimit *filters.RateLimit
	memCache  *filters.MemoryCacheStore
	redis     *redis.Client
}

func newServer(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics, dir *directory) (*server, error) {
	s := &server{cfg: cfg, logger: logger, metrics: m}

	views, err := results.NewTemplateViewEngine(assets, "assets/views/*.html")
	if err != nil {
		return nil, err
	}

	b := mvc.NewBuilder().
		WithOptions(mvc.OptionsFromConfig(cfg)).
		WithLogger(logger).
		WithMetrics(m).
		AddActions(employeeActions(dir)).
		AddActions(miscActions()...).
		AddFilter(filters.ServiceErrorFilter{Logger: logger, HandleAll: true}, orderServiceError)
	b.Services().RegisterSingleton(results.ViewEngineService, views)

	if cfg.Auth.JWTSecret != "" {
		opts := []filters.AuthorizeOption{filters.WithAuthLogger(logger)}
		if cfg.Auth.Issuer != "" {
			opts = append(opts, filters.WithIssuer(cfg.Auth.Issuer))
		}
		b.AddFilter(filters.NewAuthorize([]byte(cfg.Auth.JWTSecret), opts...), orderAuthorize)
	}

	if cfg.RateLimit.RequestsPerSecond > 0 {
		s.rateLimit = filters.NewRateLimit(float64(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst, logger)
		b.AddFilter(s.rateLimit, orderRateLimit)
	}

	if cfg.Cache.TTL > 0 {
		var store filters.CacheStore
		if cfg.Cache.RedisAddr != "" {
			s.redis = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
			store = filters.NewRedisCacheStore(s.redis, serviceName+":")
		} else {
			s.memCache = filters.NewMemoryCacheStore()
			store = s.memCache
		}
		b.AddFilter(filters.NewResponseCache(store, cfg.Cache.TTL), orderResponseCache)
	}

	app, err := b.Build()
	if err != nil {
		return nil, err
	}
	s.app = app

	if err := s.schedule(); err != nil {
		return nil, err
	}
	s.router = s.routes()
	return s, nil
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(
		middleware.Tracing(s.logger),
		middleware.Recover(s.logger),
		middleware.Metrics(serviceName, s.metrics),
		middleware.NewCORS(s.cfg.CORS.Origins()).Middleware(),
	)

	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(hosting.Mux(s.app))
	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "healthy",
		"actions": s.app.Actions().Len(),
	}
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			status["status"] = "degraded"
			status["cache"] = "unreachable"
		}
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// schedule registers housekeeping on the cron scheduler.
func (s *server) schedule() error {
	s.cron = cron.New()
	if s.rateLimit == nil && s.memCache == nil {
		return nil
	}
	_, err := s.cron.AddFunc(s.cfg.RateLimit.CleanupSchedule, s.cleanup)
	return err
}

func (s *server) cleanup() {
	entry := s.logger.WithField("job", "cleanup")
	if s.rateLimit != nil {
		entry = entry.WithField("limiters_removed", s.rateLimit.Cleanup())
	}
	if s.memCache != nil {
		entry = entry.WithField("cache_entries_purged", s.memCache.Purge())
	}
	entry.Debug("Housekeeping finished")
}

func (s *server) close() {
	<-s.cron.Stop().Done()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close redis client")
		}
	}
}
