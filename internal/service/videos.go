package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vidgen/internal/domain"
	"vidgen/internal/infra"
	"vidgen/internal/providers/sora"
)

// Provider is the call surface of the external generation service that the
// video service depends on.
type Provider interface {
	Create(ctx context.Context, req sora.CreateRequest) (*sora.Video, error)
	Retrieve(ctx context.Context, videoID string) (*sora.Video, error)
	Remix(ctx context.Context, videoID, prompt string) (*sora.Video, error)
	Delete(ctx context.Context, videoID string) error
	DownloadContent(ctx context.Context, videoID, variant string) ([]byte, string, error)
	Moderate(ctx context.Context, text string) (*sora.ModerationResult, error)
}

// Dispatcher delivers a typed event to the user's active live channel, if any.
type Dispatcher interface {
	Emit(userID, event string, payload any)
}

// VideoService orchestrates submissions and owns the background poll loops
// that track provider jobs to a terminal state.
type VideoService struct {
	videos      domain.VideoRepository
	provider    Provider
	dispatcher  Dispatcher
	logger      infra.Logger
	sleep       func(time.Duration)
	maxAttempts int
}

// Options configures a VideoService.
type Options struct {
	Videos     domain.VideoRepository
	Provider   Provider
	Dispatcher Dispatcher
	Logger     infra.Logger
	// Sleep substitutes the delay primitive between polls; tests inject a
	// controllable clock here. Defaults to time.Sleep.
	Sleep func(time.Duration)
	// MaxPollAttempts overrides the poll attempt cap. Defaults to 180.
	MaxPollAttempts int
}

// NewVideoService wires a video service from its collaborators.
func NewVideoService(opts Options) *VideoService {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	maxAttempts := opts.MaxPollAttempts
	if maxAttempts <= 0 {
		maxAttempts = maxPollAttempts
	}
	return &VideoService{
		videos:      opts.Videos,
		provider:    opts.Provider,
		dispatcher:  opts.Dispatcher,
		logger:      opts.Logger,
		sleep:       sleep,
		maxAttempts: maxAttempts,
	}
}

// CreateParams captures a new submission.
type CreateParams struct {
	Prompt  string
	Model   string
	Size    string
	Seconds int
	// ReferenceImage is forwarded to the provider at submission and not retained.
	ReferenceImage []byte
}

// Create validates and moderates the prompt, submits the job to the provider,
// persists the initial record and launches the poll loop detached from the
// caller. The record exists and is returned before polling starts.
func (s *VideoService) Create(ctx context.Context, userID string, params CreateParams) (*domain.Video, error) {
	if s.dispatcher == nil {
		return nil, domain.ErrRealtimeUnavailable
	}
	prompt := strings.TrimSpace(params.Prompt)
	if prompt == "" {
		return nil, domain.ErrInvalidPrompt
	}

	moderation, err := s.provider.Moderate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	if !moderation.Allowed {
		return nil, domain.ErrPolicyViolation
	}

	model := params.Model
	if model == "" {
		model = defaultModel
	}
	created, err := s.provider.Create(ctx, sora.CreateRequest{
		Prompt:         prompt,
		Model:          model,
		Size:           params.Size,
		Seconds:        params.Seconds,
		InputReference: params.ReferenceImage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}

	video, err := s.videos.Insert(ctx, &domain.Video{
		UserID:          userID,
		ProviderVideoID: created.ID,
		Prompt:          prompt,
		Model:           model,
		Size:            params.Size,
		Seconds:         params.Seconds,
		Status:          statusFromProvider(created.Status),
	})
	if err != nil {
		return nil, err
	}

	s.launchPoll(video)
	return video, nil
}

// Remix shares the submission pipeline, but derives the provider job from an
// existing record. The new record copies model, size and duration from the
// original and marks the prompt for display.
func (s *VideoService) Remix(ctx context.Context, userID, videoID, prompt string) (*domain.Video, error) {
	if s.dispatcher == nil {
		return nil, domain.ErrRealtimeUnavailable
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.ErrInvalidPrompt
	}

	original, err := s.videos.GetByID(ctx, videoID, userID)
	if err != nil {
		return nil, err
	}
	if original.ProviderVideoID == "" {
		return nil, domain.ErrNotFound
	}

	moderation, err := s.provider.Moderate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	if !moderation.Allowed {
		return nil, domain.ErrPolicyViolation
	}

	remixed, err := s.provider.Remix(ctx, original.ProviderVideoID, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}

	video, err := s.videos.Insert(ctx, &domain.Video{
		UserID:          userID,
		ProviderVideoID: remixed.ID,
		Prompt:          "Remix: " + prompt,
		Model:           original.Model,
		Size:            original.Size,
		Seconds:         original.Seconds,
		Status:          statusFromProvider(remixed.Status),
	})
	if err != nil {
		return nil, err
	}

	s.launchPoll(video)
	return video, nil
}

// Get returns the caller's record, refreshed from the provider when the job
// is still in flight.
func (s *VideoService) Get(ctx context.Context, userID, videoID string) (*domain.Video, error) {
	video, err := s.videos.GetByID(ctx, videoID, userID)
	if err != nil {
		return nil, err
	}
	if video.ProviderVideoID == "" || video.Status.Terminal() {
		return video, nil
	}
	remote, err := s.provider.Retrieve(ctx, video.ProviderVideoID)
	if err != nil {
		// Stale reads beat a 502 here; the poll loop keeps tracking.
		s.logger.Warn().Err(err).Str("video_id", videoID).Msg("videos: provider refresh failed")
		return video, nil
	}
	update := domain.VideoUpdate{Progress: remote.Progress}
	status := statusFromProvider(remote.Status)
	update.Status = &status
	if remote.URL != "" {
		update.VideoURL = &remote.URL
	}
	if remote.ThumbnailURL != "" {
		update.ThumbnailURL = &remote.ThumbnailURL
	}
	return s.videos.Update(ctx, videoID, update)
}

// List returns one page of the caller's records plus the total count.
func (s *VideoService) List(ctx context.Context, userID string, limit, offset int) ([]domain.Video, int, error) {
	return s.videos.List(ctx, userID, limit, offset)
}

// Delete removes the record, requesting provider-side deletion best-effort
// first. Provider failures are logged, never raised.
func (s *VideoService) Delete(ctx context.Context, userID, videoID string) error {
	video, err := s.videos.GetByID(ctx, videoID, userID)
	if err != nil {
		return err
	}
	if video.ProviderVideoID != "" {
		if err := s.provider.Delete(ctx, video.ProviderVideoID); err != nil {
			s.logger.Error().Err(err).Str("video_id", videoID).Msg("videos: provider delete failed")
		}
	}
	return s.videos.Delete(ctx, videoID)
}

// Download streams the rendered media for a completed job.
func (s *VideoService) Download(ctx context.Context, userID, videoID string) ([]byte, string, error) {
	video, err := s.videos.GetByID(ctx, videoID, userID)
	if err != nil {
		return nil, "", err
	}
	if video.Status != domain.VideoStatusCompleted || video.ProviderVideoID == "" {
		return nil, "", domain.ErrVideoNotReady
	}
	data, contentType, err := s.provider.DownloadContent(ctx, video.ProviderVideoID, "")
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	return data, contentType, nil
}

const defaultModel = "sora-2"

func statusFromProvider(status string) domain.VideoStatus {
	switch status {
	case "queued", "":
		return domain.VideoStatusQueued
	case "completed":
		return domain.VideoStatusCompleted
	case "failed":
		return domain.VideoStatusFailed
	default:
		// The provider reports intermediate states like "in_progress" or
		// "preprocessing"; all of them are non-terminal for us.
		return domain.VideoStatusInProgress
	}
}
