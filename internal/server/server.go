// Package server exposes the quote pipeline and the catalog validator over
// HTTP for the document-generation tooling.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/friocalc/orcafrio/internal/catalog"
	"github.com/friocalc/orcafrio/internal/check"
	"github.com/friocalc/orcafrio/internal/compose"
	"github.com/friocalc/orcafrio/internal/pricing"
	"github.com/friocalc/orcafrio/internal/quote"
	"github.com/friocalc/orcafrio/internal/store"
)

// Server wires the pipeline components behind a chi router.
type Server struct {
	cat    *catalog.Catalog
	rules  check.Rules
	quotes *store.Store
	logger *zap.Logger
}

// New creates a Server. The catalog is loaded once at startup and treated as
// immutable for the process lifetime.
func New(cat *catalog.Catalog, rules check.Rules, quotes *store.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cat: cat, rules: rules, quotes: quotes, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/quotes", s.handleCreateQuote)
	r.Get("/api/quotes", s.handleListQuotes)
	r.Get("/api/quotes/{id}", s.handleGetQuote)
	r.Post("/api/catalogo/validar", s.handleValidateCatalog)
	return r
}

func (s *Server) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	var scope quote.Scope
	if err := json.NewDecoder(r.Body).Decode(&scope); err != nil {
		http.Error(w, "invalid scope document", http.StatusBadRequest)
		return
	}
	if len(scope.Items) == 0 {
		http.Error(w, "scope has no items", http.StatusBadRequest)
		return
	}

	doc, err := quote.Generate(s.cat, scope, s.logger,
		pricing.WithStaleThresholds(s.rules.Staleness.AlertDays, s.rules.Staleness.CriticalDays))
	if err != nil {
		if errors.Is(err, compose.ErrCompositionNotFound) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.logger.Error("generate budget", zap.Error(err))
		http.Error(w, "failed to generate budget", http.StatusInternalServerError)
		return
	}

	if _, err := s.quotes.Save(scope, doc); err != nil {
		s.logger.Error("save quote", zap.Error(err))
		http.Error(w, "failed to save quote", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	quotes, err := s.quotes.List(query)
	if err != nil {
		s.logger.Error("list quotes", zap.Error(err))
		http.Error(w, "failed to load quotes", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, quotes)
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.quotes.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error("get quote", zap.String("id", id), zap.Error(err))
		http.Error(w, "failed to load quote", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleValidateCatalog runs the validator over the loaded catalog. Any
// error-severity finding turns the response into 422 so CI gates can key off
// the status code alone.
func (s *Server) handleValidateCatalog(w http.ResponseWriter, r *http.Request) {
	report := check.New(s.rules).Run(s.cat)

	status := http.StatusOK
	if report.HasErrors() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
