package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/tessera-search/tessera/internal/embeddings"
	"github.com/tessera-search/tessera/internal/ingest"
	"github.com/tessera-search/tessera/internal/node"
	"github.com/tessera-search/tessera/internal/pipeline"
	"github.com/tessera-search/tessera/internal/search"
)

type enqueueRequest struct {
	Path     string `json:"path"`
	Priority string `json:"priority,omitempty"`
}

type enqueueResponse struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Priority   string `json:"priority"`
}

// handleEnqueue accepts a document path and queues it for indexing.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}

	abs, err := filepath.Abs(req.Path)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if _, err := os.Stat(abs); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found: " + abs})
		return
	}

	priority := ingest.PriorityMedium
	if req.Priority != "" {
		p, err := ingest.ParsePriority(req.Priority)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		priority = p
	}

	s.queue.Enqueue(abs, ingest.ChangeAdded, priority)
	writeJSON(w, http.StatusAccepted, enqueueResponse{
		DocumentID: pipeline.DocumentID(abs),
		Path:       abs,
		Priority:   priority.String(),
	})
}

// handleSearch runs a query and returns the ranked response.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var q search.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	resp, err := s.engine.Search(r.Context(), q)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("server: search: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	Queue      ingest.Status    `json:"queue"`
	Embeddings embeddings.Stats `json:"embeddings"`
	Index      indexStats       `json:"index"`
}

type indexStats struct {
	TextNodes    int `json:"text_nodes"`
	ImageNodes   int `json:"image_nodes"`
	KeywordNodes int `json:"keyword_nodes"`
}

// handleStatus reports queue, embedding, and index statistics.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	kwCount, err := s.index.Count(r.Context())
	if err != nil {
		log.Printf("server: keyword count: %v", err)
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Queue:      s.queue.Status(),
		Embeddings: s.embedder.Snapshot(),
		Index: indexStats{
			TextNodes:    s.store.Count(node.KindText),
			ImageNodes:   s.store.Count(node.KindImage),
			KeywordNodes: kwCount,
		},
	})
}

type healthResponse struct {
	Status       string `json:"status"`
	Extractor    bool   `json:"extractor"`
	Embeddings   bool   `json:"embeddings"`
	BreakerState string `json:"breaker_state"`
	QueueDepth   int    `json:"queue_depth"`
	FailedDocs   int    `json:"failed_documents"`
}

// handleHealth aggregates dependency health. Degraded means the server
// still answers queries but some capability is reduced.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	extractorOK := s.extract.Healthy(r.Context())
	embeddingsOK := s.embedder.Healthy(r.Context())

	status := "ok"
	code := http.StatusOK
	if !extractorOK || !embeddingsOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	st := s.queue.Status()
	writeJSON(w, code, healthResponse{
		Status:       status,
		Extractor:    extractorOK,
		Embeddings:   embeddingsOK,
		BreakerState: string(s.embedder.BreakerState()),
		QueueDepth:   st.Pending,
		FailedDocs:   st.FailedDocs,
	})
}

// handleFailed lists documents that exhausted their retries.
func (s *Server) handleFailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"failed": s.queue.Failed()})
}

// handleRetryFailed re-queues one failed document at high priority.
func (s *Server) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.queue.RetryFailed(id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"document_id": id, "status": "queued"})
}

// handleClearFailed drops one failed document from the failure list.
func (s *Server) handleClearFailed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.queue.ClearFailed(id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"document_id": id, "status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
