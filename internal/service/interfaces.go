package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"video_ingestor/internal/domain"
)

type KeyStore interface {
	ListKeys(ctx context.Context) ([]string, error)
}

type VideoStore interface {
	LatestPublishedAt(ctx context.Context) (time.Time, error)
	ExistsByVideoID(ctx context.Context, videoID string) (bool, error)
	Insert(ctx context.Context, video *domain.Video) (int64, error)
}

type CategoryStore interface {
	Exists(ctx context.Context, categoryID string) (bool, error)
}

type IngestStateStore interface {
	Get(ctx context.Context, sourceID string) (*domain.IngestState, error)
	Lock(ctx context.Context, sourceID string) (*domain.IngestState, error)
	Update(ctx context.Context, state *domain.IngestState) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Source interface {
	ID() string
	Name() string
	Search(ctx context.Context, query domain.SearchQuery, apiKey string) (*domain.SearchPage, error)
	Details(ctx context.Context, ids []string, apiKey string) ([]domain.EnrichedItem, error)
}

type Publisher interface {
	Publish(ctx context.Context, video *domain.Video) error
	Close() error
}

type RunLock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
	Extend(ctx context.Context) error
}
