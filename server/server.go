// Package server is the thin HTTP boundary: querystring in, JSON
// envelope out. It holds no business logic; everything is delegated to
// the scanner. The envelope shapes are the ones the existing frontend
// already consumes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"skinarb/config"
	"skinarb/errs"
	"skinarb/logger"
	"skinarb/models"
	"skinarb/scanner"
)

// ScanService is what the handlers need from the orchestrator.
type ScanService interface {
	Scan(ctx context.Context, req scanner.ScanRequest) (*models.ScanResult, error)
	LookupReference(ctx context.Context, tradeName string) (*models.ReferenceQuote, error)
}

// Server hosts the scan API.
type Server struct {
	cfg        config.ServerConfig
	svc        ScanService
	log        *logger.Log
	httpServer *http.Server
}

func New(cfg config.ServerConfig, svc ScanService) *Server {
	return &Server{cfg: cfg, svc: svc, log: logger.GetLogger()}
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout(),
		WriteTimeout: s.cfg.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.WithComponent("server").WithFields(logger.Fields{"address": s.cfg.Address}).Info("http server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Router builds the chi router. Exposed for handler tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/scan", s.handleScan)
	r.Get("/api/orders", s.handleOrders)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// handleScan serves the main scan operation. For compatibility with the
// previous single-endpoint deployment it also answers detail queries
// when the "orders" parameter is present.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	if name := qs.Get("orders"); name != "" {
		s.serveOrders(w, r, name)
		return
	}

	req := scanner.ScanRequest{
		Search:      qs.Get("search"),
		Limit:       parseIntDefault(qs.Get("limit"), 20),
		MinPriceUsd: parseDecimal(qs.Get("minPrice")),
		MaxPriceUsd: parseDecimal(qs.Get("maxPrice")),
	}

	result, err := s.svc.Scan(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rows := result.Rows
	if rows == nil {
		rows = []models.EnrichedRow{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"fx":    result.FxRate,
		"items": rows,
	})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	s.serveOrders(w, r, r.URL.Query().Get("name"))
}

func (s *Server) serveOrders(w http.ResponseWriter, r *http.Request, name string) {
	quote, err := s.svc.LookupReference(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	type orderEntry struct {
		PriceUsd decimal.Decimal `json:"priceUsd"`
		Quantity int             `json:"quantity"`
	}
	orders := []orderEntry{}
	if quote.TotalCount > 0 {
		orders = append(orders, orderEntry{PriceUsd: quote.BestPriceUsd, Quantity: 1})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"nameHash":   name,
		"totalCount": quote.TotalCount,
		"orders":     orders,
	})
}

// writeError maps the error taxonomy onto HTTP statuses and the
// {ok:false, error} envelope.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var authErr *errs.AuthError
	var upErr *errs.UpstreamError
	var parseErr *errs.ParseError
	switch {
	case errors.As(err, &authErr), errors.As(err, &upErr):
		status = http.StatusBadGateway
	case errors.As(err, &parseErr):
		status = http.StatusBadRequest
	}

	writeJSON(w, status, map[string]interface{}{"ok": false, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// corsMiddleware mirrors the permissive CORS policy of the previous
// serverless deployment.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithComponent("server").WithFields(logger.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
		}).Info("request handled")
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
