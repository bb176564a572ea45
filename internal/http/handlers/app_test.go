package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"vidgen/internal/domain"
	"vidgen/internal/middleware"
	"vidgen/internal/providers/sora"
	"vidgen/internal/service"
)

const testJWTSecret = "handlers-test-secret"

type userRepoStub struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[string]*domain.User)}
}

func (s *userRepoStub) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, domain.ErrEmailTaken
		}
	}
	s.seq++
	stored := *user
	stored.ID = fmt.Sprintf("user-%d", s.seq)
	stored.CreatedAt = time.Now()
	s.users[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *userRepoStub) GetByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *u
	return &out, nil
}

type videoRepoStub struct {
	mu     sync.Mutex
	seq    int
	videos map[string]*domain.Video
}

func newVideoRepoStub() *videoRepoStub {
	return &videoRepoStub{videos: make(map[string]*domain.Video)}
}

func (s *videoRepoStub) Insert(ctx context.Context, video *domain.Video) (*domain.Video, error) {
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
	out := stored
	return &out, nil
}

func (s *videoRepoStub) GetByID(ctx context.Context, id, ownerID string) (*domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok || video.UserID != ownerID {
		return nil, domain.ErrNotFound
	}
	out := *video
	return &out, nil
}

func (s *videoRepoStub) Update(ctx context.Context, id string, update domain.VideoUpdate) (*domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if update.Status != nil {
		video.Status = *update.Status
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

func (s *videoRepoStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.videos, id)
	return nil
}

func (s *videoRepoStub) List(ctx context.Context, ownerID string, limit, offset int) ([]domain.Video, int, error) {
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

type providerStub struct {
	mu         sync.Mutex
	createErr  error
	moderation sora.ModerationResult
	content    []byte
	deleted    []string
}

func (p *providerStub) Create(ctx context.Context, req sora.CreateRequest) (*sora.Video, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	return &sora.Video{ID: "provider-1", Status: "queued"}, nil
}

func (p *providerStub) Retrieve(ctx context.Context, videoID string) (*sora.Video, error) {
	return &sora.Video{ID: videoID, Status: "completed", URL: "https://cdn.example.com/v.mp4"}, nil
}

func (p *providerStub) Remix(ctx context.Context, videoID, prompt string) (*sora.Video, error) {
	return &sora.Video{ID: "provider-remix-1", Status: "queued"}, nil
}

func (p *providerStub) Delete(ctx context.Context, videoID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, videoID)
	return nil
}

func (p *providerStub) DownloadContent(ctx context.Context, videoID, variant string) ([]byte, string, error) {
	if p.content == nil {
		return nil, "", fmt.Errorf("no content for %s", videoID)
	}
	return p.content, "video/mp4", nil
}

func (p *providerStub) Moderate(ctx context.Context, text string) (*sora.ModerationResult, error) {
	out := p.moderation
	if !out.Allowed && !out.Flagged {
		out = sora.ModerationResult{Allowed: true}
	}
	return &out, nil
}

type dispatcherStub struct{}

func (dispatcherStub) Emit(userID, event string, payload any) {}

type fixture struct {
	users    *userRepoStub
	videos   *videoRepoStub
	provider *providerStub
	app      *App
	router   chi.Router
}

func newFixture(provider *providerStub) *fixture {
	logger := zerolog.New(io.Discard)
	f := &fixture{
		users:    newUserRepoStub(),
		videos:   newVideoRepoStub(),
		provider: provider,
	}
	svc := service.NewVideoService(service.Options{
		Videos:     f.videos,
		Provider:   provider,
		Dispatcher: dispatcherStub{},
		Logger:     logger,
		Sleep:      func(time.Duration) {},
	})
	f.app = NewApp(logger, f.users, svc, testJWTSecret)

	r := chi.NewRouter()
	r.Post("/api/auth/register", f.app.Register)
	r.Post("/api/auth/login", f.app.Login)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(testJWTSecret))
		r.Get("/api/auth/profile", f.app.Profile)
		r.Post("/api/videos/create", f.app.VideosCreate)
		r.Get("/api/videos", f.app.VideosList)
		r.Get("/api/videos/status/{id}", f.app.VideoStatus)
		r.Get("/api/videos/{id}/download", f.app.VideoDownload)
		r.Delete("/api/videos/{id}", f.app.VideoDelete)
		r.Post("/api/videos/remix/{id}", f.app.VideoRemix)
	})
	f.router = r
	return f
}

func (f *fixture) tokenFor(t *testing.T, userID, email string) string {
	t.Helper()
	token, err := middleware.SignJWT(testJWTSecret, middleware.TokenClaims{
		Sub:   userID,
		Email: email,
		Exp:   time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}
