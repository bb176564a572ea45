package domain

import "time"

// VideoStatus enumerates the lifecycle states of a generation job as reported
// by the provider.
type VideoStatus string

const (
	VideoStatusQueued     VideoStatus = "queued"
	VideoStatusInProgress VideoStatus = "in_progress"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

// Terminal reports whether the status admits no further transition.
func (s VideoStatus) Terminal() bool {
	return s == VideoStatusCompleted || s == VideoStatusFailed
}

// Video is one user-submitted generation or remix request and its tracked
// lifecycle. ProviderVideoID is assigned by the provider at submission and is
// never reassigned afterwards.
type Video struct {
	ID              string
	UserID          string
	ProviderVideoID string
	Prompt          string
	Model           string
	Size            string
	Seconds         int
	Status          VideoStatus
	Progress        *int
	VideoURL        string
	ThumbnailURL    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VideoUpdate carries a partial mutation of a video record. Nil fields are
// left untouched, so a provider response that omits a URL never clears one
// that was stored earlier.
type VideoUpdate struct {
	Status       *VideoStatus
	Progress     *int
	VideoURL     *string
	ThumbnailURL *string
}
