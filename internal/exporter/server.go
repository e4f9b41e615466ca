package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jorge-barreto/fleet/internal/balancer"
	"github.com/jorge-barreto/fleet/internal/config"
)

const shutdownTimeout = 5 * time.Second

// Picker selects the least loaded host among candidates.
type Picker interface {
	SelectOptimalHost(ctx context.Context, candidates []string, preferGroup string) balancer.Selection
}

// Server serves /metrics, /healthz and /pick.
type Server struct {
	Registry *prometheus.Registry
	Picker   Picker
	// Candidates resolves a group name to its hosts; "" means every host.
	Candidates func(group string) ([]string, error)
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/pick", s.pick)
	return mux
}

func (s *Server) pick(w http.ResponseWriter, r *http.Request) {
	if s.Picker == nil || s.Candidates == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "selection not configured"})
		return
	}
	group := r.URL.Query().Get("group")
	prefer := r.URL.Query().Get("prefer")
	hosts, err := s.Candidates(group)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, balancer.ErrGroupNotFound):
			status = http.StatusNotFound
		case errors.Is(err, config.ErrValidation):
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultScrapeTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	sel := s.Picker.SelectOptimalHost(ctx, hosts, prefer)
	if !sel.Found() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":    "no host could be measured",
			"excluded": sel.Excluded,
		})
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
