package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/adcraft/internal/llm"
	"github.com/kalambet/adcraft/internal/metrics"
	"github.com/kalambet/adcraft/internal/pipeline"
	"github.com/kalambet/adcraft/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// CampaignService is the generation pipeline as seen by the API layer.
type CampaignService interface {
	ProcessRequest(ctx context.Context, prompt string, brandURLs []string) (storage.Campaign, error)
	AnswerBrandQuestion(ctx context.Context, question string, brandURLs []string, usePrevious bool) (string, error)
}

// Deps holds the collaborators of the HTTP handler.
type Deps struct {
	Service CampaignService
	Store   *storage.Store
	Metrics *metrics.Metrics
}

// NewHandler returns the adcraft REST API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Post("/campaigns", handleCreateCampaign(deps))
	r.Get("/campaigns", handleListCampaigns(deps))
	r.Get("/campaigns/{id}", handleGetCampaign(deps))
	r.Delete("/campaigns/{id}", handleDeleteCampaign(deps))
	r.Post("/brands/answer", handleAnswer(deps))

	r.Post("/jobs/campaigns", handleEnqueueCampaign(deps))
	r.Get("/jobs/{id}", handleGetJob(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// decodeBody reads a size-limited JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// pipelineError maps a pipeline failure onto a status code.
func pipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInappropriateContent), errors.Is(err, pipeline.ErrIrrelevantContent):
		httpError(w, http.StatusUnprocessableEntity, "content_rejected", "%v", err)
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, llm.ErrUpstream):
		httpError(w, http.StatusBadGateway, "api_error", "upstream error: %v", err)
	case errors.Is(err, context.Canceled):
		slog.Debug("request cancelled by client")
		httpError(w, http.StatusServiceUnavailable, "request_cancelled", "request cancelled")
	default:
		slog.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
