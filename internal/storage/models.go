package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Image is an image attached to a campaign, described by the tag that
// matched the campaign text.
type Image struct {
	URL         string `json:"image_url"`
	Description string `json:"description"`
}

// Campaign is a persisted campaign. ID is six characters from A-Z and 0-9.
type Campaign struct {
	ID        string    `json:"campaign_id"`
	Text      string    `json:"campaign_text"`
	Images    []Image   `json:"images"`
	CreatedAt time.Time `json:"timestamp"`
}

const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	ResultJSON  string
	Status      string
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
