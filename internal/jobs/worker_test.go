package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/adcraft/internal/storage"
)

type mockRunner struct {
	calls atomic.Int32
	fn    func(prompt string, urls []string) (storage.Campaign, error)
	ctxFn func(ctx context.Context) (storage.Campaign, error)
}

func (m *mockRunner) ProcessRequest(ctx context.Context, prompt string, urls []string) (storage.Campaign, error) {
	m.calls.Add(1)
	if m.ctxFn != nil {
		return m.ctxFn(ctx)
	}
	return m.fn(prompt, urls)
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWorker_ProcessesJob(t *testing.T) {
	store := openTestStore(t)
	id, err := EnqueueCampaign(store, CampaignPayload{Prompt: "Summer", BrandURLs: []string{"https://acme.com"}})
	if err != nil {
		t.Fatalf("EnqueueCampaign: %v", err)
	}

	runner := &mockRunner{fn: func(prompt string, urls []string) (storage.Campaign, error) {
		if prompt != "Summer" || len(urls) != 1 || urls[0] != "https://acme.com" {
			t.Errorf("runner got %q %v", prompt, urls)
		}
		return storage.Campaign{ID: "CAMP01"}, nil
	}}
	w := NewWorker(store, runner, nil, time.Millisecond)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("RunOnce did not claim the job")
	}

	job, err := store.GetJob(id)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != storage.JobCompleted {
		t.Errorf("Status = %q, want completed", job.Status)
	}
	var res CampaignResult
	if err := json.Unmarshal([]byte(job.ResultJSON), &res); err != nil || res.CampaignID != "CAMP01" {
		t.Errorf("ResultJSON = %q (%v)", job.ResultJSON, err)
	}
}

func TestWorker_FailureIsFinal(t *testing.T) {
	store := openTestStore(t)
	id, err := EnqueueCampaign(store, CampaignPayload{Prompt: "p"})
	if err != nil {
		t.Fatalf("EnqueueCampaign: %v", err)
	}

	runner := &mockRunner{fn: func(string, []string) (storage.Campaign, error) {
		return storage.Campaign{}, errors.New("Inappropriate Content")
	}}
	w := NewWorker(store, runner, nil, time.Millisecond)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	job, err := store.GetJob(id)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != storage.JobFailed || job.LastError != "Inappropriate Content" {
		t.Errorf("job = %+v", job)
	}

	done, err := w.RunOnce(context.Background())
	if err != nil || done {
		t.Errorf("second RunOnce = %v, %v; want nothing to retry", done, err)
	}
	if n := runner.calls.Load(); n != 1 {
		t.Errorf("runner called %d times, want 1", n)
	}
}

func TestWorker_ShutdownRequeuesJob(t *testing.T) {
	store := openTestStore(t)
	id, err := EnqueueCampaign(store, CampaignPayload{Prompt: "p"})
	if err != nil {
		t.Fatalf("EnqueueCampaign: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runner := &mockRunner{ctxFn: func(ctx context.Context) (storage.Campaign, error) {
		cancel()
		return storage.Campaign{}, fmt.Errorf("generating text: %w", ctx.Err())
	}}
	w := NewWorker(store, runner, nil, time.Millisecond)

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	job, err := store.GetJob(id)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != storage.JobPending || job.Attempts != 0 || job.LastError != "" {
		t.Errorf("job = %+v, want pending with no attempts", job)
	}

	runner.ctxFn = nil
	runner.fn = func(string, []string) (storage.Campaign, error) {
		return storage.Campaign{ID: "CAMP02"}, nil
	}
	if done, err := w.RunOnce(context.Background()); err != nil || !done {
		t.Fatalf("RunOnce after restart = %v, %v", done, err)
	}
	job, _ = store.GetJob(id)
	if job.Status != storage.JobCompleted {
		t.Errorf("Status = %q, want completed", job.Status)
	}
}

func TestWorker_BadPayload(t *testing.T) {
	store := openTestStore(t)
	if err := store.EnqueueJob(storage.Job{ID: "bad", Type: TypeCampaignGenerate, PayloadJSON: "{"}); err != nil {
		t.Fatal(err)
	}
	runner := &mockRunner{fn: func(string, []string) (storage.Campaign, error) {
		t.Error("runner called for an unparsable payload")
		return storage.Campaign{}, nil
	}}

	if _, err := NewWorker(store, runner, nil, 0).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	job, _ := store.GetJob("bad")
	if job.Status != storage.JobFailed {
		t.Errorf("Status = %q, want failed", job.Status)
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	runner := &mockRunner{fn: func(string, []string) (storage.Campaign, error) {
		return storage.Campaign{ID: "X"}, nil
	}}
	w := NewWorker(store, runner, nil, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	if _, err := EnqueueCampaign(store, CampaignPayload{Prompt: "p"}); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(2 * time.Second)
	for runner.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never processed the job")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
