package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cryptoSignalAgent/internal/ports"
)

// StatusSource exposes the runtime state reported by the health endpoint.
type StatusSource interface {
	CacheKeys() []string
	OpenCount() int
}

type healthResponse struct {
	Status     string   `json:"status"`
	Time       string   `json:"time"`
	CacheKeys  []string `json:"cacheKeys"`
	OpenTrades int      `json:"openTrades"`
}

// Server is the liveness endpoint.
type Server struct {
	addr   string
	source StatusSource
	logger ports.Logger
	now    func() time.Time
	srv    *http.Server
}

// New creates a health server listening on addr (e.g. ":10000").
func New(addr string, source StatusSource, logger ports.Logger) *Server {
	s := &Server{addr: addr, source: source, logger: logger, now: time.Now}
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.health)
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	keys := s.source.CacheKeys()
	if keys == nil {
		keys = []string{}
	}
	resp := healthResponse{
		Status:     "ok",
		Time:       s.now().UTC().Format(time.RFC3339),
		CacheKeys:  keys,
		OpenTrades: s.source.OpenCount(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error(r.Context(), err, "Failed to write health response")
	}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting health endpoint", map[string]interface{}{"addr": s.addr})
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Shutting down health endpoint...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error(ctx, err, "Health endpoint graceful shutdown failed")
		return err
	}
	return nil
}
