package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spark-health/sparkai/internal/log"
	"github.com/spark-health/sparkai/internal/rag"
)

// Fixed user-facing messages for pipeline-stage failures. They are
// returned in the normal response envelope so chat clients render them
// like any other answer, and they never leak internal error detail.
const (
	msgEmbeddingFailed  = "Failed to generate embedding for the query. Please check the model configuration."
	msgRetrievalFailed  = "Error retrieving medical data."
	msgGenerationFailed = "An error occurred while processing your request. Please try again later."
)

// AskHandler handles the question answering endpoint.
type AskHandler struct {
	svc    Service
	logger log.Logger
}

// NewAskHandler creates a new ask handler.
func NewAskHandler(svc Service, logger log.Logger) *AskHandler {
	return &AskHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the ask route on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /ask", h.ask)
}

type askRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
}

type askResponse struct {
	Response string `json:"response"`
}

// ask runs the question answering pipeline for one query.
//
// Pipeline failures are reported with 200 and a fixed message in the
// response field: the transport succeeded, the answer is a degraded
// one, and chat clients display it as-is.
func (h *AskHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "user_id and query are required", "")
		return
	}
	if req.UserID == "" || req.Query == "" {
		writeError(w, http.StatusBadRequest, "user_id and query are required", "")
		return
	}

	answer, err := h.svc.Answer(r.Context(), req.UserID, req.Query)
	if err != nil {
		writeJSON(w, http.StatusOK, askResponse{Response: stageMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Response: answer})
}

// stageMessage maps a pipeline error to its user-facing message.
func stageMessage(err error) string {
	switch {
	case errors.Is(err, rag.ErrQueryEmbedding):
		return msgEmbeddingFailed
	case errors.Is(err, rag.ErrRetrieval):
		return msgRetrievalFailed
	default:
		return msgGenerationFailed
	}
}
