// Package api implements the public catalog HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kinolab/marquee/internal/browse"
	"github.com/kinolab/marquee/internal/card"
	"github.com/kinolab/marquee/internal/catalog"
	"github.com/kinolab/marquee/internal/detail"
	"github.com/kinolab/marquee/internal/home"
	"github.com/kinolab/marquee/internal/lang"
	"github.com/kinolab/marquee/internal/search"
)

// Server is the catalog API server.
type Server struct {
	home    *home.Aggregator
	detail  *detail.Assembler
	browser *browse.Paginator
	engine  *search.Engine
	log     *slog.Logger
}

// New creates an API server over the four aggregators.
func New(h *home.Aggregator, d *detail.Assembler, b *browse.Paginator, e *search.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{home: h, detail: d, browser: b, engine: e, log: log}
}

// RegisterRoutes registers API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ping", s.ok)
	mux.HandleFunc("GET /health", s.ok)

	mux.HandleFunc("GET /v1/home", s.getHome)
	mux.HandleFunc("GET /v1/titles/{id}", s.getTitle)
	mux.HandleFunc("GET /v1/browse/{tab}/{page}", s.getBrowse)
	mux.HandleFunc("GET /v1/search", s.searchBootstrap)
	mux.HandleFunc("GET /v1/search/{query}", s.search)
}

func (s *Server) ok(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) getHome(w http.ResponseWriter, r *http.Request) {
	p, err := s.home.Home(r.Context(), requestLang(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) getTitle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "title id must be an integer")
		return
	}
	p, err := s.detail.Title(r.Context(), id, requestLang(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) getBrowse(w http.ResponseWriter, r *http.Request) {
	tab := r.PathValue("tab")
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAGE", "page must be an integer")
		return
	}
	if page <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAGE", "page must be positive")
		return
	}
	p, err := s.browser.GetPage(r.Context(), tab, page, requestLang(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// bootstrapPayload is the bare /v1/search response: the trending strip plus
// an empty result set for the client to render the search page around.
type bootstrapPayload struct {
	TrendingToday []card.Card `json:"trending_today"`
	Query         string      `json:"query"`
	Results       []card.Card `json:"results"`
}

func (s *Server) searchBootstrap(w http.ResponseWriter, r *http.Request) {
	h, err := s.home.Home(r.Context(), requestLang(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bootstrapPayload{
		TrendingToday: h.TrendingToday,
		Query:         "",
		Results:       []card.Card{},
	})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Search(r.Context(), r.PathValue("query"), requestLang(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// requestLang negotiates the normalized request language.
func requestLang(r *http.Request) string {
	return lang.Negotiate(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
}

// writeFailure maps domain errors onto the wire. Cache computation failures
// wrap the underlying cause, so sentinel checks see through them.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "title not found")
	case errors.Is(err, catalog.ErrUnavailable):
		s.log.Error("catalog unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "catalog unavailable")
	default:
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "COMPUTE_FAILED", "payload computation failed")
	}
}

// Error response
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
