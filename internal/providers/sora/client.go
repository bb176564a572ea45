package sora

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vidgen/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("sora: api key is required")

// Options configures the OpenAI video generation client.
type Options struct {
	APIKey          string
	BaseURL         string
	Model           string
	ModerationModel string
	HTTPClient      *http.Client
	Logger          *infra.Logger
	RequestTimeout  time.Duration
}

// Client performs HTTP calls to the OpenAI /videos API surface.
type Client struct {
	apiKey          string
	baseURL         string
	model           string
	moderationModel string
	httpClient      *http.Client
	logger          *infra.Logger
}

// CreateRequest captures the inputs for a new generation job.
type CreateRequest struct {
	Prompt  string
	Model   string
	Size    string
	Seconds int
	// InputReference is an optional reference image payload. The /videos
	// JSON request has no field for it, so Create accepts and drops it; it
	// is never stored or forwarded.
	InputReference []byte
}

// Video is the normalized provider-side view of a generation job.
type Video struct {
	ID           string
	Status       string
	Progress     *int
	URL          string
	ThumbnailURL string
}

type videoResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Progress     *int   `json:"progress"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Error        *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "sora-2"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:          strings.TrimSpace(opts.APIKey),
		baseURL:         baseURL,
		model:           model,
		moderationModel: strings.TrimSpace(opts.ModerationModel),
		httpClient:      httpClient,
		logger:          logger,
	}, nil
}

// Model returns the configured default video model.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Create submits a new video generation job.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Video, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("sora: prompt is required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	payload := map[string]any{
		"model":  model,
		"prompt": prompt,
	}
	if req.Size != "" {
		payload["size"] = req.Size
	}
	if req.Seconds > 0 {
		payload["seconds"] = strconv.Itoa(req.Seconds)
	}
	video, err := c.doVideo(ctx, http.MethodPost, "/videos", payload)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("video_id", video.ID).
		Str("status", video.Status).
		Msg("sora: created video job")
	return video, nil
}

// Retrieve fetches the current state of a generation job.
func (c *Client) Retrieve(ctx context.Context, videoID string) (*Video, error) {
	if videoID == "" {
		return nil, errors.New("sora: video id is required")
	}
	return c.doVideo(ctx, http.MethodGet, "/videos/"+videoID, nil)
}

// Remix submits a new job derived from an existing one with a fresh prompt.
func (c *Client) Remix(ctx context.Context, videoID, prompt string) (*Video, error) {
	if videoID == "" {
		return nil, errors.New("sora: video id is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("sora: prompt is required")
	}
	return c.doVideo(ctx, http.MethodPost, "/videos/"+videoID+"/remix", map[string]any{"prompt": prompt})
}

// Delete removes a job on the provider side. Callers treat failures as
// best-effort cleanup.
func (c *Client) Delete(ctx context.Context, videoID string) error {
	if videoID == "" {
		return errors.New("sora: video id is required")
	}
	_, err := c.do(ctx, http.MethodDelete, "/videos/"+videoID, nil)
	return err
}

// DownloadContent fetches the rendered media. Variant "" returns the video;
// "thumbnail" returns the preview image.
func (c *Client) DownloadContent(ctx context.Context, videoID, variant string) ([]byte, string, error) {
	if videoID == "" {
		return nil, "", errors.New("sora: video id is required")
	}
	endpoint := c.baseURL + "/videos/" + videoID + "/content"
	if variant != "" {
		endpoint += "?variant=" + variant
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("sora: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("sora: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, "", apiError(resp.StatusCode, raw)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("sora: read content: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	return data, contentType, nil
}

func (c *Client) doVideo(ctx context.Context, method, path string, payload map[string]any) (*Video, error) {
	raw, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	var decoded videoResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("sora: decode response: %w", err)
	}
	if decoded.ID == "" {
		return nil, errors.New("sora: response missing video id")
	}
	return &Video{
		ID:           decoded.ID,
		Status:       decoded.Status,
		Progress:     decoded.Progress,
		URL:          decoded.URL,
		ThumbnailURL: decoded.ThumbnailURL,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload map[string]any) ([]byte, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("sora: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("sora: build request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sora: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sora: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, raw)
	}
	return raw, nil
}

func apiError(status int, raw []byte) error {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
		return fmt.Errorf("sora: %s (%s)", detail.Error.Message, detail.Error.Type)
	}
	return fmt.Errorf("sora: status %d: %s", status, strings.TrimSpace(string(raw)))
}
