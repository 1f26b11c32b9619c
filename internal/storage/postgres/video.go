package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"video_ingestor/internal/domain"
)

const uniqueViolation = "23505"

type VideoStore struct {
	db *sqlx.DB
}

func NewVideoStore(db *sqlx.DB) *VideoStore {
	return &VideoStore{db: db}
}

// LatestPublishedAt returns the newest publication time in the catalog,
// or the Unix epoch when the catalog is empty.
func (s *VideoStore) LatestPublishedAt(ctx context.Context) (time.Time, error) {
	var latest sql.NullTime
	if err := s.db.GetContext(ctx, &latest, `SELECT MAX(published_at) FROM videos`); err != nil {
		return time.Time{}, err
	}
	if !latest.Valid {
		return time.Unix(0, 0).UTC(), nil
	}
	return latest.Time.UTC(), nil
}

func (s *VideoStore) ExistsByVideoID(ctx context.Context, videoID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM videos WHERE video_id = $1)`, videoID)
	return exists, err
}

// Insert creates the record and returns its id. An existing video id yields
// domain.ErrDuplicate; existing rows are never modified.
func (s *VideoStore) Insert(ctx context.Context, video *domain.Video) (int64, error) {
	query := `
		INSERT INTO videos (
			video_id, title, description, channel_id, channel_title, published_at,
			ingested_at, tags, view_count, likes, dislikes, comment_count,
			thumbnail_link, comments_disabled, ratings_disabled, duration_seconds,
			country_code, page_token, category_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		ON CONFLICT (video_id) DO NOTHING
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		video.VideoID,
		video.Title,
		video.Description,
		video.ChannelID,
		video.ChannelTitle,
		video.PublishedAt,
		video.IngestedAt,
		video.Tags,
		video.ViewCount,
		video.Likes,
		video.Dislikes,
		video.CommentCount,
		video.ThumbnailLink,
		video.CommentsDisabled,
		video.RatingsDisabled,
		video.DurationSeconds,
		video.CountryCode,
		video.PageToken,
		video.CategoryID,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrDuplicate
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return 0, domain.ErrDuplicate
	}
	if err != nil {
		return 0, err
	}

	video.ID = id
	return id, nil
}

// ListWithCategory returns the whole catalog joined with category titles,
// oldest publication first.
func (s *VideoStore) ListWithCategory(ctx context.Context) ([]domain.Video, error) {
	query := `
		SELECT v.id, v.video_id, v.title, v.description, v.channel_id, v.channel_title,
			v.published_at, v.ingested_at, v.tags, v.view_count, v.likes, v.dislikes,
			v.comment_count, v.thumbnail_link, v.comments_disabled, v.ratings_disabled,
			v.duration_seconds, v.country_code, v.page_token, v.category_id,
			COALESCE(c.title, '') AS category_title
		FROM videos v
		LEFT JOIN categories c ON c.category_id = v.category_id
		ORDER BY v.published_at, v.id`

	var videos []domain.Video
	err := s.db.SelectContext(ctx, &videos, query)
	return videos, err
}
