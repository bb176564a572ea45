package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vidgen/internal/domain"
	"vidgen/internal/providers/sora"
)

// videoStoreStub is an in-memory domain.VideoRepository that records every
// mutation so tests can assert on transition history.
type videoStoreStub struct {
	mu            sync.Mutex
	seq           int
	videos        map[string]*domain.Video
	statusHistory map[string][]domain.VideoStatus
	// failStatusUpdate makes Update reject writes carrying this status.
	failStatusUpdate domain.VideoStatus
}

func newVideoStoreStub() *videoStoreStub {
	return &videoStoreStub{
		videos:        make(map[string]*domain.Video),
		statusHistory: make(map[string][]domain.VideoStatus),
	}
}

func (s *videoStoreStub) Insert(ctx context.Context, video *domain.Video) (*domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	stored := *video
	if stored.ID == "" {
		stored.ID = fmt.Sprintf("video-%d", s.seq)
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.videos[stored.ID] = &stored
	s.statusHistory[stored.ID] = append(s.statusHistory[stored.ID], stored.Status)
	out := stored
	return &out, nil
}

func (s *videoStoreStub) GetByID(ctx context.Context, id, ownerID string) (*domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok || video.UserID != ownerID {
		return nil, domain.ErrNotFound
	}
	out := *video
	return &out, nil
}

func (s *videoStoreStub) Update(ctx context.Context, id string, update domain.VideoUpdate) (*domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if update.Status != nil && s.failStatusUpdate != "" && *update.Status == s.failStatusUpdate {
		return nil, fmt.Errorf("store rejected %s update", *update.Status)
	}
	video, ok := s.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if update.Status != nil {
		video.Status = *update.Status
		s.statusHistory[id] = append(s.statusHistory[id], *update.Status)
	}
	if update.Progress != nil {
		video.Progress = update.Progress
	}
	if update.VideoURL != nil {
		video.VideoURL = *update.VideoURL
	}
	if update.ThumbnailURL != nil {
		video.ThumbnailURL = *update.ThumbnailURL
	}
	video.UpdatedAt = time.Now()
	out := *video
	return &out, nil
}

func (s *videoStoreStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.videos, id)
	return nil
}

func (s *videoStoreStub) List(ctx context.Context, ownerID string, limit, offset int) ([]domain.Video, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []domain.Video
	for _, v := range s.videos {
		if v.UserID == ownerID {
			all = append(all, *v)
		}
	}
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *videoStoreStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.videos)
}

func (s *videoStoreStub) get(id string) *domain.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return nil
	}
	out := *video
	return &out
}

func (s *videoStoreStub) history(id string) []domain.VideoStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.VideoStatus(nil), s.statusHistory[id]...)
}

// providerStub scripts the provider's retrieve responses; the last entry
// repeats once the script is exhausted.
type providerStub struct {
	mu            sync.Mutex
	createResult  *sora.Video
	createErr     error
	createCalls   int
	remixResult   *sora.Video
	remixCalls    int
	remixedID     string
	script        []sora.Video
	retrieveErrAt int // 1-based attempt that fails; 0 disables
	retrieves     int
	deleteErr     error
	deleted       []string
	moderation    sora.ModerationResult
	moderateCalls int
	content       []byte
}

func (p *providerStub) Create(ctx context.Context, req sora.CreateRequest) (*sora.Video, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls++
	if p.createErr != nil {
		return nil, p.createErr
	}
	if p.createResult != nil {
		out := *p.createResult
		return &out, nil
	}
	return &sora.Video{ID: "provider-1", Status: "queued"}, nil
}

func (p *providerStub) Retrieve(ctx context.Context, videoID string) (*sora.Video, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retrieves++
	if p.retrieveErrAt > 0 && p.retrieves >= p.retrieveErrAt {
		return nil, fmt.Errorf("retrieve blew up on attempt %d", p.retrieves)
	}
	idx := p.retrieves - 1
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	out := p.script[idx]
	if out.ID == "" {
		out.ID = videoID
	}
	return &out, nil
}

func (p *providerStub) Remix(ctx context.Context, videoID, prompt string) (*sora.Video, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remixCalls++
	p.remixedID = videoID
	if p.remixResult != nil {
		out := *p.remixResult
		return &out, nil
	}
	return &sora.Video{ID: "provider-remix-1", Status: "queued"}, nil
}

func (p *providerStub) Delete(ctx context.Context, videoID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, videoID)
	return p.deleteErr
}

func (p *providerStub) DownloadContent(ctx context.Context, videoID, variant string) ([]byte, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.content == nil {
		return nil, "", fmt.Errorf("no content for %s", videoID)
	}
	return p.content, "video/mp4", nil
}

func (p *providerStub) Moderate(ctx context.Context, text string) (*sora.ModerationResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moderateCalls++
	out := p.moderation
	if !out.Allowed && !out.Flagged {
		out = sora.ModerationResult{Allowed: true}
	}
	return &out, nil
}

func (p *providerStub) retrieveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retrieves
}

func (p *providerStub) createCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createCalls
}

// dispatcherStub records emitted events and closes done on the first
// terminal one, so tests can wait for a detached poll loop to finish.
type dispatcherStub struct {
	mu     sync.Mutex
	events []emittedEvent
	done   chan struct{}
	closed bool
}

type emittedEvent struct {
	userID  string
	event   string
	payload any
}

func newDispatcherStub() *dispatcherStub {
	return &dispatcherStub{done: make(chan struct{})}
}

func (d *dispatcherStub) Emit(userID, event string, payload any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, emittedEvent{userID: userID, event: event, payload: payload})
	if d.closed {
		return
	}
	switch p := payload.(type) {
	case jobUpdatePayload:
		if p.Status == string(domain.VideoStatusFailed) {
			d.closed = true
			close(d.done)
		}
	case jobRecordPayload:
		if domain.VideoStatus(p.Status).Terminal() {
			d.closed = true
			close(d.done)
		}
	}
}

func (d *dispatcherStub) recorded() []emittedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]emittedEvent(nil), d.events...)
}

func (d *dispatcherStub) wait(timeout time.Duration) bool {
	select {
	case <-d.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

type harness struct {
	store      *videoStoreStub
	provider   *providerStub
	dispatcher *dispatcherStub
	delays     []time.Duration
	delayMu    sync.Mutex
	svc        *VideoService
}

func newHarness(provider *providerStub, maxAttempts int) *harness {
	h := &harness{
		store:      newVideoStoreStub(),
		provider:   provider,
		dispatcher: newDispatcherStub(),
	}
	h.svc = NewVideoService(Options{
		Videos:     h.store,
		Provider:   provider,
		Dispatcher: h.dispatcher,
		Logger:     zerolog.New(io.Discard),
		Sleep: func(d time.Duration) {
			h.delayMu.Lock()
			h.delays = append(h.delays, d)
			h.delayMu.Unlock()
		},
		MaxPollAttempts: maxAttempts,
	})
	return h
}

func (h *harness) sleeps() []time.Duration {
	h.delayMu.Lock()
	defer h.delayMu.Unlock()
	return append([]time.Duration(nil), h.delays...)
}

func intPtr(v int) *int { return &v }

func scripted(entries ...sora.Video) []sora.Video {
	return entries
}

func status(name string, progress *int) sora.Video {
	return sora.Video{Status: name, Progress: progress}
}

func completedStatus(url, thumbnailURL string, progress *int) sora.Video {
	return sora.Video{Status: "completed", Progress: progress, URL: url, ThumbnailURL: thumbnailURL}
}
