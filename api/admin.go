package api

import (
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/spark-health/sparkai/internal/config"
	"github.com/spark-health/sparkai/internal/log"
)

// AdminHandler handles runtime configuration endpoints.
type AdminHandler struct {
	runtime   *config.Runtime
	reconnect func(ctx context.Context, dsn string) error
	limiter   *rate.Limiter
	logger    log.Logger
}

// NewAdminHandler creates a new admin handler. reconnect may be nil, in
// which case database changes take effect only after a restart.
func NewAdminHandler(runtime *config.Runtime, reconnect func(ctx context.Context, dsn string) error, limiter *rate.Limiter, logger log.Logger) *AdminHandler {
	return &AdminHandler{runtime: runtime, reconnect: reconnect, limiter: limiter, logger: logger}
}

// RegisterRoutes registers admin routes on the given mux.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /model", rateLimited(h.limiter, h.swapModel))
	mux.HandleFunc("GET /api/config/get", rateLimited(h.limiter, h.getConfig))
	mux.HandleFunc("POST /api/config/set", rateLimited(h.limiter, h.setConfig))
}

type swapModelRequest struct {
	Model string `json:"model"`
}

type swapModelResponse struct {
	CurrentModel  string `json:"current_model"`
	PreviousModel string `json:"previous_model"`
}

// swapModel replaces the embedding model for subsequent requests.
// In-flight requests finish on the snapshot they started with.
func (h *AdminHandler) swapModel(w http.ResponseWriter, r *http.Request) {
	var req swapModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "model is required", "")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required", "")
		return
	}

	previous := h.runtime.SwapEmbeddingModel(req.Model)
	h.logger.Info("embedding model swapped", "current", req.Model, "previous", previous)

	writeJSON(w, http.StatusOK, swapModelResponse{
		CurrentModel:  req.Model,
		PreviousModel: previous,
	})
}

// getConfig returns the current runtime configuration. Settings
// marshaling masks the database password.
func (h *AdminHandler) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.runtime.Snapshot())
}

// configPatch is a partial runtime-configuration update. Only fields
// present in the request body are changed.
type configPatch struct {
	DBUser         *string `json:"db_user"`
	DBPassword     *string `json:"db_password"`
	DBHost         *string `json:"db_host"`
	DBPort         *int    `json:"db_port"`
	DBName         *string `json:"db_name"`
	DBSSLMode      *string `json:"db_ssl_mode"`
	OllamaURL      *string `json:"ollama_url"`
	OllamaModel    *string `json:"ollama_model"`
	EmbeddingModel *string `json:"embedding_model"`
}

func (p *configPatch) apply(s config.Settings) config.Settings {
	if p.DBUser != nil {
		s.DBUser = *p.DBUser
	}
	if p.DBPassword != nil {
		s.DBPassword = *p.DBPassword
	}
	if p.DBHost != nil {
		s.DBHost = *p.DBHost
	}
	if p.DBPort != nil {
		s.DBPort = *p.DBPort
	}
	if p.DBName != nil {
		s.DBName = *p.DBName
	}
	if p.DBSSLMode != nil {
		s.DBSSLMode = *p.DBSSLMode
	}
	if p.OllamaURL != nil {
		s.OllamaURL = *p.OllamaURL
	}
	if p.OllamaModel != nil {
		s.OllamaModel = *p.OllamaModel
	}
	if p.EmbeddingModel != nil {
		s.EmbeddingModel = *p.EmbeddingModel
	}
	return s
}

func (p *configPatch) touchesDatabase() bool {
	return p.DBUser != nil || p.DBPassword != nil || p.DBHost != nil ||
		p.DBPort != nil || p.DBName != nil || p.DBSSLMode != nil
}

// setConfig validates and publishes a new runtime-configuration
// snapshot. A database change additionally rebuilds the knowledge pool;
// in-flight requests keep the pool they started with.
func (h *AdminHandler) setConfig(w http.ResponseWriter, r *http.Request) {
	var patch configPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	next, err := h.runtime.Apply(func(cur config.Settings) (config.Settings, error) {
		candidate := patch.apply(cur)
		if err := candidate.Validate(); err != nil {
			return config.Settings{}, err
		}
		return candidate, nil
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid configuration", err.Error())
		return
	}

	if patch.touchesDatabase() && h.reconnect != nil {
		if err := h.reconnect(r.Context(), next.KnowledgeDSN()); err != nil {
			h.logger.Error("knowledge database reconnect failed", "error", err)
			writeError(w, http.StatusInternalServerError,
				"configuration applied but database reconnect failed", err.Error())
			return
		}
	}

	h.logger.Info("runtime configuration updated")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Configuration updated successfully"})
}
