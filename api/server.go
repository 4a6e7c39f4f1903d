// Package api provides the HTTP API server for finview.
//
// It exposes endpoints for company profile lookup, income statement
// retrieval, and filtering/sorting of the resident income statement.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/seenimoa/finview/internal/config"
	"github.com/seenimoa/finview/internal/income"
	"github.com/seenimoa/finview/internal/infra"
	"github.com/seenimoa/finview/internal/logging"
	"github.com/seenimoa/finview/internal/profile"
	"github.com/seenimoa/finview/internal/provider"
)

// HeaderDatasetID carries the ID of the stored income statement set.
const HeaderDatasetID = "X-Dataset-ID"

// Upstream is the data source the server proxies.
type Upstream interface {
	provider.ProfileSource
	provider.StatementSource
}

// Server is the HTTP API server.
type Server struct {
	router     chi.Router
	cfg        *config.Config
	log        zerolog.Logger
	profiles   *profile.Cache
	statements provider.StatementSource
	store      *income.Store
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, up Upstream, log zerolog.Logger) *Server {
	srv := &Server{
		cfg:        cfg,
		log:        log,
		profiles:   profile.NewCache(up, log.With().Str("component", "profiles").Logger()),
		statements: up,
		store:      income.NewStore(),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Store exposes the income statement store.
func (s *Server) Store() *income.Store {
	return s.store
}

// ListenAndServe starts the HTTP server and shuts it down gracefully when
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", HeaderDatasetID},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Get("/fetch-data", s.handleFetchData)
	r.Get("/fetch-income", s.handleFetchIncome)
	r.Get("/filter-sort-income", s.handleFilterSortGET)
	r.Post("/filter-sort-income", s.handleFilterSortPOST)
	r.Get("/income/current", s.handleCurrentIncome)

	r.Get("/config", s.handleGetConfig)
	r.Get("/config/keys", s.handleGetConfigKeys)

	return r
}

// ============================================================
// Response types
// ============================================================

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the JSON envelope for every non-proxy response. Errors
// carry the text in both "message" and "error" so clients of either
// contract can read it.
type APIResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DatasetInfo describes the resident income statement set.
type DatasetInfo struct {
	Symbol    string    `json:"symbol"`
	DatasetID string    `json:"dataset_id"`
	FetchedAt time.Time `json:"fetched_at"`
	Records   int       `json:"records"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{
		Status: StatusSuccess,
		Data: map[string]any{
			"profiles_loaded": s.profiles.Len(),
			"time":            time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// handleFetchData looks a company profile up by symbol, loading the
// profile list on first use.
func (s *Server) handleFetchData(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("query"))
	if symbol == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	// A failed load is not fatal; the lookup below simply misses.
	_ = s.profiles.EnsureLoaded(r.Context())

	p, err := s.profiles.FindBySymbol(symbol)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// handleFetchIncome fetches a symbol's annual income statements, stores
// them as the resident dataset, and returns them.
func (s *Server) handleFetchIncome(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("query"))
	if symbol == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	ticket := s.store.Begin()
	stmts, err := s.statements.FetchIncomeStatement(r.Context(), symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("income statement fetch failed")
		s.writeError(w, statusFor(err), fetchErrorMessage(symbol, err))
		return
	}

	snap, stored := s.store.ReplaceIfCurrent(ticket, symbol, stmts)
	if stored {
		w.Header().Set(HeaderDatasetID, snap.DatasetID)
		ev := s.log.Info().Str("symbol", symbol).Str("dataset_id", snap.DatasetID).Int("records", len(stmts))
		if len(stmts) > 0 {
			ev = ev.Str("reported_symbol", stmts[0].Symbol())
		}
		ev.Msg("income statement stored")
	} else {
		s.log.Warn().Str("symbol", symbol).Str("resident", snap.Symbol).
			Msg("income statement superseded by a newer fetch; not stored")
	}
	s.writeJSON(w, http.StatusOK, stmts)
}

func (s *Server) handleFilterSortGET(w http.ResponseWriter, r *http.Request) {
	req, err := parseFilterQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.filterSort(w, req)
}

func (s *Server) handleFilterSortPOST(w http.ResponseWriter, r *http.Request) {
	req, err := decodeFilterBody(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.filterSort(w, req)
}

func (s *Server) filterSort(w http.ResponseWriter, req FilterRequest) {
	if err := req.Criteria.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.store.Current()
	if req.DatasetID != "" && req.DatasetID != snap.DatasetID {
		s.writeError(w, http.StatusConflict,
			fmt.Sprintf("dataset %s is no longer resident; fetch the income statement again", req.DatasetID))
		return
	}

	out, err := income.Run(snap.Records, req.Criteria, req.Sort)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	if !snap.Empty() {
		w.Header().Set(HeaderDatasetID, snap.DatasetID)
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Status: StatusSuccess, Data: out})
}

func (s *Server) handleCurrentIncome(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	if snap.Empty() {
		s.writeError(w, http.StatusNotFound, "no income statement has been fetched")
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{
		Status: StatusSuccess,
		Data: DatasetInfo{
			Symbol:    snap.Symbol,
			DatasetID: snap.DatasetID,
			FetchedAt: snap.FetchedAt,
			Records:   len(snap.Records),
		},
	})
}

// ============================================================
// Helpers
// ============================================================

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	var (
		up        *infra.ErrUpstream
		missing   *provider.ErrMissingParam
		badRecord *income.ErrMalformedRecord
		badSort   *income.ErrInvalidSortField
		badInput  *income.ErrInvalidInput
	)
	switch {
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, provider.ErrNoData):
		return http.StatusNotFound
	case errors.As(err, &up):
		if up.NotFound() {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	case errors.As(err, &missing), errors.As(err, &badRecord),
		errors.As(err, &badSort), errors.As(err, &badInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fetchErrorMessage(symbol string, err error) string {
	if errors.Is(err, provider.ErrNoData) {
		return fmt.Sprintf("no income statement found for %s", symbol)
	}
	return fmt.Sprintf("failed to fetch income statement for %s: %v", symbol, err)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, APIResponse{
		Status:  StatusError,
		Message: msg,
		Error:   msg,
	})
}
