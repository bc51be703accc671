// Package api exposes the content-indexing HTTP endpoint used to ingest
// documents into the relevance index.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mveloso/companion-bot/internal/indexer"
	"github.com/mveloso/companion-bot/internal/retriever"
)

// Server serves the indexing API.
type Server struct {
	indexer *indexer.Indexer
	log     *slog.Logger
	httpSrv *http.Server
}

// NewServer creates the API server listening on addr.
func NewServer(addr string, ix *indexer.Indexer, log *slog.Logger) *Server {
	s := &Server{
		indexer: ix,
		log:     log.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /index", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run starts the HTTP listener and shuts it down gracefully when the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("Starting HTTP API server", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("Error shutting down HTTP API server", "error", err)
			return err
		}
		s.log.Info("HTTP API server stopped gracefully.")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	}
}

type indexRequest struct {
	Content  string `json:"content"`
	FileType string `json:"file_type"`
	Title    string `json:"title,omitempty"`
}

type indexResponse struct {
	Status    string   `json:"status"`
	Documents []string `json:"documents,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.WarnContext(ctx, "Invalid index request body", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" || req.FileType == "" {
		writeJSONError(w, http.StatusBadRequest, "content and file_type are required")
		return
	}

	handles, err := s.indexer.IndexContent(ctx, indexer.SourceType(req.FileType), req.Content, req.Title)

	switch {
	case errors.Is(err, retriever.ErrDocumentExists):
		s.log.InfoContext(ctx, "Rejected duplicate document", "file_type", req.FileType)
		writeJSONError(w, http.StatusConflict, "resource already added")
		return

	case err != nil:
		s.log.ErrorContext(ctx, "Failed to index content", "file_type", req.FileType, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to index content")
		return
	}

	s.log.InfoContext(ctx, "Content indexed", "file_type", req.FileType, "documents", len(handles))
	writeJSON(w, http.StatusOK, indexResponse{Status: "added", Documents: handles})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
