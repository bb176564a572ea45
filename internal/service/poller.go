package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vidgen/internal/domain"
	"vidgen/internal/realtime"
)

// The provider discourages tight polling on long-running media jobs, so the
// delay grows linearly from 10s to a 20s ceiling. With the 180 attempt cap a
// job is tracked for roughly 55 minutes before it is declared failed.
const (
	maxPollAttempts = 180
	basePollDelay   = 10 * time.Second
	pollDelayStep   = 1 * time.Second
	maxPollDelay    = 20 * time.Second
)

var (
	errProviderReportedFailure = errors.New("provider reported generation failure")
	errPollTimeout             = errors.New("generation did not finish within the attempt cap")
)

type jobUpdatePayload struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress *int   `json:"progress,omitempty"`
}

type jobRecordPayload struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Prompt       string `json:"prompt"`
	Model        string `json:"model"`
	Size         string `json:"size,omitempty"`
	Seconds      int    `json:"seconds,omitempty"`
	Progress     *int   `json:"progress,omitempty"`
	VideoURL     string `json:"videoUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

func recordPayload(v *domain.Video) jobRecordPayload {
	return jobRecordPayload{
		ID:           v.ID,
		Status:       string(v.Status),
		Prompt:       v.Prompt,
		Model:        v.Model,
		Size:         v.Size,
		Seconds:      v.Seconds,
		Progress:     v.Progress,
		VideoURL:     v.VideoURL,
		ThumbnailURL: v.ThumbnailURL,
	}
}

// launchPoll starts the poll loop for a freshly inserted record, detached
// from the submitting request. The goroutine carries its own error boundary:
// nothing that happens inside it reaches the HTTP caller or other jobs.
func (s *VideoService) launchPoll(video *domain.Video) {
	id, userID, providerID := video.ID, video.UserID, video.ProviderVideoID
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Str("video_id", id).Msg("poll: panic recovered")
			}
		}()
		s.pollVideo(context.Background(), id, userID, providerID)
	}()
}

// pollVideo drives one job from creation to a terminal state. It owns the
// record until then: bounded polling with growing backoff, a live update on
// every observed status, persistence of the terminal result.
func (s *VideoService) pollVideo(ctx context.Context, id, userID, providerID string) {
	for attempts := 0; attempts < s.maxAttempts; attempts++ {
		remote, err := s.provider.Retrieve(ctx, providerID)
		if err != nil {
			s.failVideo(ctx, id, userID, err)
			return
		}

		switch statusFromProvider(remote.Status) {
		case domain.VideoStatusCompleted:
			s.completeVideo(ctx, id, userID, remote.Progress, remote.URL, remote.ThumbnailURL)
			return
		case domain.VideoStatusFailed:
			s.failVideo(ctx, id, userID, errProviderReportedFailure)
			return
		}

		// Non-terminal: push fresh progress even when the status repeats.
		s.dispatcher.Emit(userID, realtime.EventJobUpdate, jobUpdatePayload{
			ID:       id,
			Status:   string(statusFromProvider(remote.Status)),
			Progress: remote.Progress,
		})

		delay := basePollDelay + time.Duration(attempts)*pollDelayStep
		if delay > maxPollDelay {
			delay = maxPollDelay
		}
		s.sleep(delay)
	}
	s.failVideo(ctx, id, userID, errPollTimeout)
}

// completeVideo persists the final record and emits one full-record update.
// Provider-asserted URLs take precedence, but an absent URL never clears a
// stored one. A persist failure routes into the failure path so the record
// still reaches a terminal state and the client still hears about it.
func (s *VideoService) completeVideo(ctx context.Context, id, userID string, progress *int, videoURL, thumbnailURL string) {
	status := domain.VideoStatusCompleted
	update := domain.VideoUpdate{Status: &status, Progress: progress}
	if videoURL != "" {
		update.VideoURL = &videoURL
	}
	if thumbnailURL != "" {
		update.ThumbnailURL = &thumbnailURL
	}
	record, err := s.videos.Update(ctx, id, update)
	if err != nil {
		s.failVideo(ctx, id, userID, fmt.Errorf("persist completed record: %w", err))
		return
	}
	s.dispatcher.Emit(userID, realtime.EventJobUpdate, recordPayload(record))
	s.logger.Info().Str("video_id", id).Str("url", record.VideoURL).Msg("poll: video completed")
}

// failVideo is the shared failure handler: it marks the record failed,
// leaving other fields at their last known values, and emits exactly one
// failure update. The triggering error is logged, never surfaced to the
// submitter, who already has their response.
func (s *VideoService) failVideo(ctx context.Context, id, userID string, cause error) {
	s.logger.Error().Err(cause).Str("video_id", id).Msg("poll: video failed")
	status := domain.VideoStatusFailed
	if _, err := s.videos.Update(ctx, id, domain.VideoUpdate{Status: &status}); err != nil {
		s.logger.Error().Err(err).Str("video_id", id).Msg("poll: persist failed status failed")
	}
	s.dispatcher.Emit(userID, realtime.EventJobUpdate, jobUpdatePayload{
		ID:     id,
		Status: string(domain.VideoStatusFailed),
	})
}
