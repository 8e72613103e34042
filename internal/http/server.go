package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/services"
)

const (
	listCacheKey    = "transactions"
	summaryCacheKey = "summary"
)

type Server struct {
	http.Server
	ledger      *services.LedgerService
	rateLimiter *ratelimit.Limiter

	// Read-through caches over the store. Never the source of truth: both are
	// invalidated on every mutation and expire on their own shortly after.
	// cacheGen is bumped on every invalidation so a fill that raced with a
	// mutation is discarded instead of pinning stale data for the TTL.
	listCache    *cache.LRUCache[[]core.Transaction]
	summaryCache *cache.LRUCache[core.Summary]
	cacheManager *cache.Manager
	cacheGen     atomic.Int64

	shutdownOnce sync.Once
}

// Options tunes the request-facing knobs of the server.
type Options struct {
	// RateLimitPerMinute caps mutating requests per client IP.
	RateLimitPerMinute int
	// CacheTTL bounds how stale a cached list or summary may get.
	CacheTTL time.Duration
}

// DefaultOptions returns the defaults used when no configuration is supplied.
func DefaultOptions() Options {
	return Options{
		RateLimitPerMinute: 60,
		CacheTTL:           30 * time.Second,
	}
}

// NewServer configures routes and middleware with default options.
func NewServer(addr string, ledger *services.LedgerService) *Server {
	return NewServerWithOptions(addr, ledger, DefaultOptions())
}

// NewServerWithOptions configures routes and middleware, returning a
// ready-to-run server.
func NewServerWithOptions(addr string, ledger *services.LedgerService, opts Options) *Server {
	if opts.RateLimitPerMinute < 1 {
		opts.RateLimitPerMinute = DefaultOptions().RateLimitPerMinute
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultOptions().CacheTTL
	}

	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.RequestsPerMinute = opts.RateLimitPerMinute

	s := &Server{
		Server:       http.Server{Addr: addr},
		ledger:       ledger,
		rateLimiter:  ratelimit.NewLimiter(limiterCfg),
		listCache:    cache.NewLRUCache[[]core.Transaction](1, opts.CacheTTL),
		summaryCache: cache.NewLRUCache[core.Summary](1, opts.CacheTTL),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.listCache)
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)

	router.HandleFunc("/healthz", handleHealth)
	router.HandleFunc("/readyz", handleReady)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(clientIP)

	s.Handler = tracer.Middleware(headers.Middleware(s.limitMutations(router)))

	return s
}

// limitMutations rate-limits mutating requests per client IP. Reads stay
// unlimited; they are cheap and cached.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(clientIP, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		respondError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodDelete {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// invalidateCaches drops cached reads after any ledger mutation. Bumping the
// generation first means any in-flight cache fill that read before the
// mutation gets discarded.
func (s *Server) invalidateCaches() {
	s.cacheGen.Add(1)
	s.listCache.Delete(listCacheKey)
	s.summaryCache.Delete(summaryCacheKey)
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// clientIP extracts the client address, trusting proxy headers when present.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
