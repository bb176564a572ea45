package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vidgen/internal/domain"
	"vidgen/internal/service"
)

const maxReferenceImageBytes = 10 << 20

type videoCreateRequest struct {
	Prompt  string          `json:"prompt"`
	Model   string          `json:"model"`
	Size    string          `json:"size"`
	Seconds json.RawMessage `json:"seconds"`
}

type videoRemixRequest struct {
	Prompt string `json:"prompt"`
}

type videoDTO struct {
	ID              string    `json:"id"`
	ProviderVideoID string    `json:"providerVideoId,omitempty"`
	Prompt          string    `json:"prompt"`
	Model           string    `json:"model"`
	Size            string    `json:"size,omitempty"`
	Seconds         int       `json:"seconds,omitempty"`
	Status          string    `json:"status"`
	Progress        *int      `json:"progress,omitempty"`
	VideoURL        string    `json:"videoUrl,omitempty"`
	ThumbnailURL    string    `json:"thumbnailUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toVideoDTO(v *domain.Video) videoDTO {
	return videoDTO{
		ID:              v.ID,
		ProviderVideoID: v.ProviderVideoID,
		Prompt:          v.Prompt,
		Model:           v.Model,
		Size:            v.Size,
		Seconds:         v.Seconds,
		Status:          string(v.Status),
		Progress:        v.Progress,
		VideoURL:        v.VideoURL,
		ThumbnailURL:    v.ThumbnailURL,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

// VideosCreate starts a new generation job. It accepts JSON or, when a
// reference image is attached, multipart form data.
func (a *App) VideosCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	params, ok := a.decodeCreateParams(w, r)
	if !ok {
		return
	}
	video, err := a.Videos.Create(r.Context(), userID, params)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"message": "Video generation started",
		"video":   toVideoDTO(video),
	})
}

// VideoStatus returns the caller's record, refreshed from the provider while
// the job is still in flight.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	videoID := chi.URLParam(r, "id")
	video, err := a.Videos.Get(r.Context(), userID, videoID)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"video": toVideoDTO(video)})
}

// VideosList returns a page of the caller's records.
func (a *App) VideosList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	videos, total, err := a.Videos.List(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("videos: list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list videos")
		return
	}
	items := make([]videoDTO, 0, len(videos))
	for i := range videos {
		items = append(items, toVideoDTO(&videos[i]))
	}
	totalPages := (total + limit - 1) / limit
	a.json(w, http.StatusOK, map[string]any{
		"videos": items,
		"pagination": map[string]any{
			"total":      total,
			"page":       page,
			"limit":      limit,
			"totalPages": totalPages,
		},
	})
}

// VideoDownload streams the rendered media for a completed job.
func (a *App) VideoDownload(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	videoID := chi.URLParam(r, "id")
	data, contentType, err := a.Videos.Download(r.Context(), userID, videoID)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "video-"+videoID+".mp4"))
	_, _ = w.Write(data)
}

// VideoDelete removes the record and best-effort deletes the provider job.
func (a *App) VideoDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	videoID := chi.URLParam(r, "id")
	if err := a.Videos.Delete(r.Context(), userID, videoID); err != nil {
		a.serviceError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "Video deleted successfully"})
}

// VideoRemix starts a new job derived from an existing one.
func (a *App) VideoRemix(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	videoID := chi.URLParam(r, "id")
	var req videoRemixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	video, err := a.Videos.Remix(r.Context(), userID, videoID, req.Prompt)
	if err != nil {
		a.serviceError(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"message": "Video remix started",
		"video":   toVideoDTO(video),
	})
}

func (a *App) decodeCreateParams(w http.ResponseWriter, r *http.Request) (service.CreateParams, bool) {
	var params service.CreateParams
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxReferenceImageBytes); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid form payload")
			return params, false
		}
		params.Prompt = r.FormValue("prompt")
		params.Model = r.FormValue("model")
		params.Size = r.FormValue("size")
		params.Seconds, _ = strconv.Atoi(r.FormValue("seconds"))
		if file, _, err := r.FormFile("image"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxReferenceImageBytes))
			if err != nil {
				a.error(w, http.StatusBadRequest, "bad_request", "failed to read reference image")
				return params, false
			}
			params.ReferenceImage = data
		}
		return params, true
	}

	var req videoCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return params, false
	}
	params.Prompt = req.Prompt
	params.Model = req.Model
	params.Size = req.Size
	params.Seconds = parseSeconds(req.Seconds)
	return params, true
}

// parseSeconds accepts both a JSON number and a numeric string, which is how
// browser clients tend to send form-backed values.
func parseSeconds(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return asInt
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(asString)); err == nil {
			return v
		}
	}
	return 0
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
