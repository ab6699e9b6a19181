package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/thisis/placesguard/internal/ops"
)

// NewServer creates and configures the HTTP server for the UI layer.
func NewServer(svc *ops.Service, bind string, port int) *http.Server {
	h := &Handlers{
		svc:    svc,
		logger: svc.Logger().Named("web"),
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /v1/budget", h.HandleBudget)
	mux.HandleFunc("GET /v1/usage", h.HandleUsage)
	mux.HandleFunc("GET /v1/flags", h.HandleFlags)
	mux.HandleFunc("POST /v1/visual/resolve", h.HandleVisualResolve)
	mux.HandleFunc("GET /v1/visual/ws", h.HandleVisualSocket)
	mux.HandleFunc("POST /v1/reason", h.HandleReason)
	mux.HandleFunc("GET /v1/cell", h.HandleCell)
	mux.HandleFunc("GET /v1/nearby", h.HandleNearby)
	mux.HandleFunc("POST /v1/autocomplete/session", h.HandleSessionBegin)
	mux.HandleFunc("POST /v1/autocomplete/predict", h.HandlePredict)
	mux.HandleFunc("POST /v1/autocomplete/end", h.HandleSessionEnd)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := securityHeaders(accessLog(h.logger, mux))

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for access logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func accessLog(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			logger.Debug("socket closed", zap.String("path", r.URL.Path), zap.Duration("duration", time.Since(start)))
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *zap.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("placesguard API listening", zap.String("addr", "http://"+srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
