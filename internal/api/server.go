// Package api exposes quote resolution and alignment projection over HTTP,
// with a WebSocket hub that mirrors every selection to connected study
// clients. The server is read-only: books are built and stored by the CLI,
// then served from here.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/FocuswithJustin/CedarAlign/core/align"
	"github.com/FocuswithJustin/CedarAlign/core/errors"
	"github.com/FocuswithJustin/CedarAlign/core/quote"
	"github.com/FocuswithJustin/CedarAlign/core/ref"
	"github.com/FocuswithJustin/CedarAlign/core/token"
	"github.com/FocuswithJustin/CedarAlign/internal/logging"
	"github.com/FocuswithJustin/CedarAlign/internal/store"
)

// Server handles the alignment API.
type Server struct {
	provider *Provider
	hub      *Hub
}

// NewServer creates a server over a provider. The hub's Run loop starts
// when Handler is first built by ListenAndServe, or call StartHub directly
// when embedding the handler elsewhere.
func NewServer(provider *Provider) *Server {
	return &Server{
		provider: provider,
		hub:      NewHub(),
	}
}

// StartHub starts the WebSocket hub loop.
func (s *Server) StartHub() {
	go s.hub.Run()
}

// Handler returns the API handler with request-id and logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/resolve", s.handleResolve)
	mux.HandleFunc("POST /api/project", s.handleProject)
	mux.HandleFunc("GET /api/books", s.handleBooks)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return logging.CombinedMiddleware(mux)
}

// ListenAndServe starts the hub and serves the API on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.StartHub()
	logging.ServerStartup("api", "http", portOf(addr), "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type resolveRequest struct {
	Resource   string `json:"resource"`
	Book       string `json:"book"`
	Reference  string `json:"reference"`
	Quote      string `json:"quote"`
	Occurrence int    `json:"occurrence"`
}

type resolveResponse struct {
	Success     bool           `json:"success"`
	Matches     []*quote.Match `json:"matches,omitempty"`
	TotalTokens token.Stream   `json:"total_tokens,omitempty"`
	Error       string         `json:"error,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Occurrence == 0 {
		req.Occurrence = 1
	}

	rng, err := ref.Parse(req.Reference)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid reference: %v", err))
		return
	}

	book, err := s.provider.Book(r.Context(), req.Resource, req.Book)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	resolved := quote.Resolve(book.Tokens(), req.Quote, req.Occurrence, rng)
	logging.QuoteResolved(req.Quote, req.Reference, resolved.Success, len(resolved.TotalTokens),
		"resource", req.Resource)

	resp := resolveResponse{
		Success:     resolved.Success,
		Matches:     resolved.Matches,
		TotalTokens: resolved.TotalTokens,
	}
	if resolved.Err != nil {
		resp.Error = resolved.Err.Error()
	}
	if resolved.Success {
		s.hub.Broadcast(SelectionMessage{
			Type:      "resolved",
			Resource:  req.Resource,
			Book:      req.Book,
			Reference: req.Reference,
			Quote:     req.Quote,
			AnchorIDs: matchTokenIDs(resolved.Matches),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type projectRequest struct {
	Resource  string `json:"resource"`
	Book      string `json:"book"`
	AnchorIDs []int  `json:"anchor_ids"`
	Reference string `json:"reference,omitempty"`
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.AnchorIDs) == 0 {
		writeError(w, http.StatusBadRequest, "anchor_ids is required")
		return
	}

	book, err := s.provider.Book(r.Context(), req.Resource, req.Book)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	projection := align.Project(req.AnchorIDs, book.Tokens())
	s.hub.Broadcast(SelectionMessage{
		Type:      "selection",
		Resource:  req.Resource,
		Book:      req.Book,
		Reference: req.Reference,
		AnchorIDs: req.AnchorIDs,
		Phrase:    projection.Phrase,
	})
	writeJSON(w, http.StatusOK, projection)
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	resource := r.URL.Query().Get("resource")
	if resource == "" {
		writeError(w, http.StatusBadRequest, "resource query parameter is required")
		return
	}
	books, err := s.provider.ListBooks(r.Context(), resource)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resource": resource,
		"books":    books,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"driver":  store.DriverType(),
		"clients": s.hub.ClientCount(),
	})
}

func matchTokenIDs(matches []*quote.Match) []int {
	var ids []int
	for _, m := range matches {
		for _, t := range m.Tokens {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeProviderError(w http.ResponseWriter, err error) {
	if errors.Is(err, errors.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func portOf(addr string) int {
	var port int
	fmt.Sscanf(addr, ":%d", &port)
	return port
}
