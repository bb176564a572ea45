package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidgen/internal/domain"
)

// VideoRepositoryPG implements domain.VideoRepository.
type VideoRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewVideoRepository creates a new video repository backed by PostgreSQL.
func NewVideoRepository(pool *pgxpool.Pool) *VideoRepositoryPG {
	return &VideoRepositoryPG{pool: pool}
}

const videoColumns = `id, user_id, provider_video_id, prompt, model, size, seconds, status, progress, video_url, thumbnail_url, created_at, updated_at`

// Insert persists a new video record and returns it with store-generated fields set.
func (r *VideoRepositoryPG) Insert(ctx context.Context, video *domain.Video) (*domain.Video, error) {
	query := `
INSERT INTO videos (id, user_id, provider_video_id, prompt, model, size, seconds, status, progress)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + videoColumns + `;
`
	id := video.ID
	if id == "" {
		id = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, query,
		id,
		video.UserID,
		video.ProviderVideoID,
		video.Prompt,
		video.Model,
		video.Size,
		video.Seconds,
		video.Status,
		video.Progress,
	)
	return scanVideo(row)
}

// GetByID fetches a record scoped to its owner.
func (r *VideoRepositoryPG) GetByID(ctx context.Context, id, ownerID string) (*domain.Video, error) {
	query := `
SELECT ` + videoColumns + `
FROM videos
WHERE id = $1 AND user_id = $2;
`
	video, err := scanVideo(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return video, nil
}

// Update applies a partial mutation. COALESCE keeps any column whose bound
// value is NULL, so an absent URL never overwrites a stored one.
func (r *VideoRepositoryPG) Update(ctx context.Context, id string, update domain.VideoUpdate) (*domain.Video, error) {
	query := `
UPDATE videos
SET status = COALESCE($2, status),
    progress = COALESCE($3, progress),
    video_url = COALESCE($4, video_url),
    thumbnail_url = COALESCE($5, thumbnail_url),
    updated_at = NOW()
WHERE id = $1
RETURNING ` + videoColumns + `;
`
	row := r.pool.QueryRow(ctx, query, id, update.Status, update.Progress, update.VideoURL, update.ThumbnailURL)
	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return video, nil
}

// Delete removes a record by id.
func (r *VideoRepositoryPG) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1;`, id)
	return err
}

// List returns a page of the owner's records, newest first, with the owner's
// total record count.
func (r *VideoRepositoryPG) List(ctx context.Context, ownerID string, limit, offset int) ([]domain.Video, int, error) {
	row := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM videos WHERE user_id = $1;`, ownerID)
	total := 0
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
SELECT ` + videoColumns + `
FROM videos
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var videos []domain.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, 0, err
		}
		videos = append(videos, *video)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return videos, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*domain.Video, error) {
	var v domain.Video
	if err := row.Scan(
		&v.ID,
		&v.UserID,
		&v.ProviderVideoID,
		&v.Prompt,
		&v.Model,
		&v.Size,
		&v.Seconds,
		&v.Status,
		&v.Progress,
		&v.VideoURL,
		&v.ThumbnailURL,
		&v.CreatedAt,
		&v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}
