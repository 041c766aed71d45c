package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/spark-health/sparkai/internal/log"
	"github.com/spark-health/sparkai/internal/rag"
)

// IngestHandler handles the document ingestion endpoint.
type IngestHandler struct {
	svc     Service
	limiter *rate.Limiter
	logger  log.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(svc Service, limiter *rate.Limiter, logger log.Logger) *IngestHandler {
	return &IngestHandler{svc: svc, limiter: limiter, logger: logger}
}

// RegisterRoutes registers the ingest route on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/add_data", rateLimited(h.limiter, h.addData))
}

type ingestRequest struct {
	Data string `json:"data"`
}

type ingestResponse struct {
	Message string `json:"message"`
}

// addData chunks and embeds a document into the knowledge store.
// The write is all-or-nothing: an embedding failure mid-document rolls
// back every staged chunk and reports 502.
func (h *IngestHandler) addData(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "empty request", "")
		return
	}
	if req.Data == "" {
		writeError(w, http.StatusBadRequest, "empty request", "")
		return
	}

	n, err := h.svc.Ingest(r.Context(), req.Data)
	if err != nil {
		var eerr *rag.EmbeddingError
		if errors.As(err, &eerr) {
			h.logger.Error("ingestion aborted on embedding failure", "chunk", eerr.Chunk, "error", err)
			writeError(w, http.StatusBadGateway, "embedding provider failed", "no chunks were inserted")
			return
		}
		h.logger.Error("ingestion failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to insert data", "")
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{Message: fmt.Sprintf("Inserted %d chunks", n)})
}
