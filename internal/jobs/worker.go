// Package jobs runs campaign generation in the background off the store's
// job queue.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/adcraft/internal/metrics"
	"github.com/kalambet/adcraft/internal/storage"
)

// TypeCampaignGenerate is the job type for queued campaign requests.
const TypeCampaignGenerate = "campaign_generate"

// Enqueuer adds jobs to the queue.
type Enqueuer interface {
	EnqueueJob(job storage.Job) error
}

// JobStore abstracts the job queue operations the worker needs.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id, resultJSON string) error
	FailJob(id string, errMsg string) error
	ReleaseJob(id string) error
}

// CampaignRunner generates and persists one campaign.
type CampaignRunner interface {
	ProcessRequest(ctx context.Context, prompt string, brandURLs []string) (storage.Campaign, error)
}

// CampaignPayload is the body of a campaign_generate job.
type CampaignPayload struct {
	Prompt    string   `json:"prompt"`
	BrandURLs []string `json:"brand_urls"`
}

// CampaignResult is recorded on a completed campaign_generate job.
type CampaignResult struct {
	CampaignID string `json:"campaign_id"`
}

// EnqueueCampaign queues a campaign request and returns the job id. The job
// runs once; a failure is final.
func EnqueueCampaign(store Enqueuer, p CampaignPayload) (string, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	id := uuid.New().String()
	if err := store.EnqueueJob(storage.Job{
		ID:          id,
		Type:        TypeCampaignGenerate,
		PayloadJSON: string(payload),
		MaxAttempts: 1,
	}); err != nil {
		return "", fmt.Errorf("enqueueing job: %w", err)
	}
	return id, nil
}

// Worker processes campaign_generate jobs.
type Worker struct {
	store   JobStore
	runner  CampaignRunner
	poll    time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, runner CampaignRunner, m *metrics.Metrics, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:   store,
		runner:  runner,
		poll:    pollInterval,
		metrics: m,
		logger:  slog.Default().With("component", "jobs"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for ctx.Err() == nil {
		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job. It reports whether a job was
// claimed, whatever its outcome.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{TypeCampaignGenerate})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	result, err := w.process(ctx, job)
	if err != nil && ctx.Err() != nil {
		w.logger.Info("job interrupted, returning to queue", "job_id", job.ID)
		if relErr := w.store.ReleaseJob(job.ID); relErr != nil {
			w.logger.Error("failed to release job", "job_id", job.ID, "error", relErr)
		}
		return true, nil
	}
	if err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		w.metrics.JobFinished(storage.JobFailed)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID, result); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.metrics.JobFinished(storage.JobCompleted)
	return true, nil
}

func (w *Worker) process(ctx context.Context, job *storage.Job) (string, error) {
	var p CampaignPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		return "", fmt.Errorf("parsing payload: %w", err)
	}

	c, err := w.runner.ProcessRequest(ctx, p.Prompt, p.BrandURLs)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(CampaignResult{CampaignID: c.ID})
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(out), nil
}
