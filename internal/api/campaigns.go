package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/adcraft/internal/jobs"
	"github.com/kalambet/adcraft/internal/storage"
)

// CampaignRequest is the body of POST /campaigns and POST /jobs/campaigns.
type CampaignRequest struct {
	Prompt    string   `json:"prompt"`
	BrandURLs []string `json:"brand_urls"`
}

// BrandQuestionRequest is the body of POST /brands/answer. Multiple
// questions are asked together as one newline-separated question.
type BrandQuestionRequest struct {
	Questions          []string `json:"questions"`
	BrandURLs          []string `json:"brand_urls"`
	UsePreviousContext bool     `json:"use_previous_context"`
}

// BrandQuestionResponse is the body returned by POST /brands/answer.
type BrandQuestionResponse struct {
	Response string `json:"response"`
}

// JobStatus is the body returned by the jobs endpoints.
type JobStatus struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	CampaignID string    `json:"campaign_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (req CampaignRequest) validate() string {
	if strings.TrimSpace(req.Prompt) == "" {
		return "prompt is required"
	}
	if req.BrandURLs == nil {
		return "brand_urls is required"
	}
	return ""
}

func handleCreateCampaign(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CampaignRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if msg := req.validate(); msg != "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", msg)
			return
		}

		c, err := deps.Service.ProcessRequest(r.Context(), req.Prompt, req.BrandURLs)
		if err != nil {
			pipelineError(w, err)
			return
		}
		writeJSON(w, c)
	}
}

func handleAnswer(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BrandQuestionRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var qs []string
		for _, q := range req.Questions {
			if q = strings.TrimSpace(q); q != "" {
				qs = append(qs, q)
			}
		}
		if len(qs) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "questions is required and must not be empty")
			return
		}

		answer, err := deps.Service.AnswerBrandQuestion(r.Context(), strings.Join(qs, "\n"), req.BrandURLs, req.UsePreviousContext)
		if err != nil {
			pipelineError(w, err)
			return
		}
		writeJSON(w, BrandQuestionResponse{Response: answer})
	}
}

func handleListCampaigns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		campaigns, err := deps.Store.ListCampaigns(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list campaigns: %v", err)
			return
		}
		if campaigns == nil {
			campaigns = []storage.Campaign{}
		}
		writeJSON(w, campaigns)
	}
}

func handleGetCampaign(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := deps.Store.GetCampaign(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "campaign not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get campaign: %v", err)
			return
		}
		writeJSON(w, c)
	}
}

func handleDeleteCampaign(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteCampaign(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "campaign not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete campaign: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleEnqueueCampaign(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CampaignRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if msg := req.validate(); msg != "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", msg)
			return
		}

		id, err := jobs.EnqueueCampaign(deps.Store, jobs.CampaignPayload{Prompt: req.Prompt, BrandURLs: req.BrandURLs})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"id":     id,
			"status": storage.JobPending,
		})
	}
}

func handleGetJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := deps.Store.GetJob(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get job: %v", err)
			return
		}

		out := JobStatus{
			ID:        job.ID,
			Status:    job.Status,
			Error:     job.LastError,
			CreatedAt: job.CreatedAt,
			UpdatedAt: job.UpdatedAt,
		}
		if job.ResultJSON != "" {
			var res jobs.CampaignResult
			if err := json.Unmarshal([]byte(job.ResultJSON), &res); err == nil {
				out.CampaignID = res.CampaignID
			}
		}
		writeJSON(w, out)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
