// Package http exposes the JSON API of the dashboard.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"financas/internal/auth"
	"financas/internal/cache"
	"financas/internal/config"
	"financas/internal/log"
	"financas/internal/middleware/ratelimit"
	"financas/internal/middleware/security"
	"financas/internal/middleware/trace"
	"financas/internal/services"
	"financas/internal/storage"
)

type Server struct {
	http.Server

	auth    *auth.Service
	records *services.RecordService
	repo    *storage.SQLiteRepository
	logger  *log.Logger

	limiter *ratelimit.Limiter
	ips     *security.Resolver
	headers *security.HeadersMiddleware
	tracer  *trace.Middleware

	// Per-account dashboard views; invalidated on every write.
	summaryCache     *cache.LRUCache[summaryView]
	comparisonCache  *cache.LRUCache[comparisonView]
	consumptionCache *cache.LRUCache[consumptionView]
	caches           *cache.Manager
	group            singleflight.Group

	shutdownOnce sync.Once
}

// NewServer wires routes, middleware, and the view caches.
func NewServer(cfg *config.Config, authSvc *auth.Service, records *services.RecordService, repo *storage.SQLiteRepository, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	ips := security.NewResolver()

	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.RequestsPerMinute = cfg.RateLimitRPM

	httpLogger := logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		auth:    authSvc,
		records: records,
		repo:    repo,
		logger:  httpLogger,
		limiter: ratelimit.NewLimiter(limiterCfg),
		ips:     ips,
		headers: security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		tracer:  trace.NewMiddleware(httpLogger, ips.ClientIP),

		summaryCache:     cache.NewLRUCache[summaryView](cfg.CacheCapacity, cfg.CacheTTL),
		comparisonCache:  cache.NewLRUCache[comparisonView](cfg.CacheCapacity, cfg.CacheTTL),
		consumptionCache: cache.NewLRUCache[consumptionView](cfg.CacheCapacity, cfg.CacheTTL),
		caches:           cache.NewManager(),
	}

	s.caches.Register(s.summaryCache)
	s.caches.Register(s.comparisonCache)
	s.caches.Register(s.consumptionCache)
	s.caches.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/logout", s.handleLogout)

	mux.HandleFunc("/api/incomes", collectionHandler(s, s.incomeRoutes()))
	mux.HandleFunc("/api/planned-expenses", collectionHandler(s, s.plannedExpenseRoutes()))
	mux.HandleFunc("/api/credit-cards", collectionHandler(s, s.creditCardRoutes()))
	mux.HandleFunc("/api/utilities", collectionHandler(s, s.utilityRoutes()))

	mux.HandleFunc("/api/salary", s.handleSalary)

	mux.HandleFunc("/api/dashboard/summary", s.protected(s.handleDashboardSummary))
	mux.HandleFunc("/api/dashboard/comparison", s.protected(s.handleDashboardComparison))
	mux.HandleFunc("/api/consumption", s.protected(s.handleConsumption))

	s.Server = http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.tracer.Middleware(s.headers.Middleware(s.withRateLimit(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// withRateLimit consumes rate-limit budget on writes only; reads stay free.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			clientIP := s.ips.ClientIP(r)
			if !s.limiter.Allow(clientIP) {
				s.logger.WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldClientIP, clientIP,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path)
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// protected authenticates the request and hands the identity to the handler.
func (s *Server) protected(next func(http.ResponseWriter, *http.Request, auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		ident, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		next(w, r, ident)
	}
}

// invalidateViews drops every cached dashboard view of the account.
func (s *Server) invalidateViews(accountID string) {
	prefix := accountID + ":"
	n := s.summaryCache.DeletePrefix(prefix)
	n += s.comparisonCache.DeletePrefix(prefix)
	n += s.consumptionCache.DeletePrefix(prefix)
	if n > 0 {
		s.logger.Debug("Invalidated cached views", log.FieldAccountID, accountID, "entries", n)
	}
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
