package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rexbrahh/raydium-swaps/api/http/cache"
	apitypes "github.com/rexbrahh/raydium-swaps/api/http/types"
	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"
)

// SwapStore is the durable source of truth behind the cache, typically the
// ClickHouse table the sink maintains.
type SwapStore interface {
	SwapsBySlot(ctx context.Context, slot uint64) ([]ray.Swap, error)
}

// Server bundles dependencies for the HTTP API.
type Server struct {
	router  *chi.Mux
	cache   *cache.Cache
	store   SwapStore
	logger  *log.Logger
	started time.Time
}

// NewServer constructs a Server with registered routes. A nil store serves
// cache hits only.
func NewServer(cacheClient *cache.Cache, store SwapStore, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stdout, "api-http ", log.LstdFlags|log.Lshortfile)
	}

	s := &Server{
		router:  chi.NewRouter(),
		cache:   cacheClient,
		store:   store,
		logger:  logger,
		started: time.Now(),
	}

	s.router.Get("/healthz", s.healthzHandler)
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/slot/{slot}/swaps", s.swapsHandler)
		r.Get("/slot/{slot}/summary", s.summaryHandler)
	})

	return s
}

// Handler exposes the underlying router for integration tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	resp := apitypes.HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Millisecond).String(),
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) swapsHandler(w http.ResponseWriter, r *http.Request) {
	slot, swaps, ok := s.slotSwaps(w, r)
	if !ok {
		return
	}

	resp := apitypes.SwapsResponse{
		Slot:  slot,
		Swaps: swaps,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	slot, swaps, ok := s.slotSwaps(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, apitypes.Summarize(slot, swaps))
}

// slotSwaps resolves the slot parameter and loads its swaps, cache first,
// store second. It writes the error response itself when ok is false.
func (s *Server) slotSwaps(w http.ResponseWriter, r *http.Request) (uint64, []ray.Swap, bool) {
	slot, err := apitypes.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: err.Error()})
		return 0, nil, false
	}

	ctx := r.Context()

	swaps, err := s.cache.GetSwaps(ctx, slot)
	if err == nil {
		return slot, swaps, true
	}
	if !errors.Is(err, cache.ErrDisabled) && !errors.Is(err, apitypes.ErrNotFound) {
		s.logger.Printf("cache get failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, apitypes.ErrorResponse{Error: "internal error"})
		return 0, nil, false
	}

	if s.store == nil {
		writeJSON(w, http.StatusNotFound, apitypes.ErrorResponse{Error: "slot not found"})
		return 0, nil, false
	}

	swaps, err = s.store.SwapsBySlot(ctx, slot)
	if err != nil {
		if errors.Is(err, apitypes.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, apitypes.ErrorResponse{Error: "slot not found"})
			return 0, nil, false
		}
		s.logger.Printf("store get failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, apitypes.ErrorResponse{Error: "internal error"})
		return 0, nil, false
	}

	// Seed the cache so repeat reads of the same slot stay cheap.
	go func() {
		if err := s.cache.SetSwaps(context.Background(), slot, swaps); err != nil && !errors.Is(err, cache.ErrDisabled) {
			s.logger.Printf("cache set failed: %v", err)
		}
	}()

	return slot, swaps, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func main() {
	logger := log.New(os.Stdout, "api-http ", log.LstdFlags|log.Lshortfile)

	cfg, err := cache.LoadConfigFromEnv()
	if err != nil {
		logger.Fatalf("load redis config: %v", err)
	}

	cacheClient, err := cache.New(cfg)
	if err != nil {
		logger.Fatalf("init redis cache: %v", err)
	}
	if !cfg.Enabled {
		logger.Println("redis cache disabled: API_REDIS_ADDR not set")
	}

	server := NewServer(cacheClient, nil, logger)

	addr := os.Getenv("API_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	go func() {
		logger.Printf("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Println("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}
