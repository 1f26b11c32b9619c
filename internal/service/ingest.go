package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"video_ingestor/internal/config"
	"video_ingestor/internal/credential"
	"video_ingestor/internal/domain"
	"video_ingestor/internal/filter"
	"video_ingestor/internal/metrics"
)

// errRetryPage asks the loop to run the same page again on the next iteration.
var errRetryPage = errors.New("retry page")

type IngestService struct {
	source     Source
	keys       KeyStore
	videos     VideoStore
	categories CategoryStore
	state      IngestStateStore
	txManager  TransactionManager
	publisher  Publisher
	lock       RunLock
	metrics    *metrics.Metrics
	logger     *slog.Logger
	config     config.IngestConfig
}

// NewIngestService wires the pipeline. txManager, publisher, lock and
// metrics are optional and may be nil.
func NewIngestService(
	source Source,
	keys KeyStore,
	videos VideoStore,
	categories CategoryStore,
	state IngestStateStore,
	txManager TransactionManager,
	publisher Publisher,
	lock RunLock,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg config.IngestConfig,
) *IngestService {
	return &IngestService{
		source:     source,
		keys:       keys,
		videos:     videos,
		categories: categories,
		state:      state,
		txManager:  txManager,
		publisher:  publisher,
		lock:       lock,
		metrics:    m,
		logger:     logger.With("source", source.ID()),
		config:     cfg,
	}
}

// Ingest runs one ingestion cycle. Stats are returned even when the run
// aborts, so callers can report how far it got.
func (s *IngestService) Ingest(ctx context.Context) (*domain.IngestStats, error) {
	startTime := time.Now()

	if s.lock != nil {
		acquired, err := s.lock.TryLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !acquired {
			return nil, domain.ErrRunInProgress
		}
		defer func() {
			if err := s.lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release run lock", "error", err)
			}
		}()
		stop := s.keepLock(ctx)
		defer stop()
	}

	stats := &domain.IngestStats{
		RunID:    uuid.NewString(),
		SourceID: s.source.ID(),
	}
	logger := s.logger.With("run_id", stats.RunID)

	logger.Info("starting ingestion",
		"source_name", s.source.Name(),
		"max_iterations", s.config.MaxIterations,
		"max_run_time", s.config.MaxRunTime,
	)

	runErr := s.run(ctx, logger, stats)
	if runErr != nil {
		stats.Outcome = domain.OutcomeAborted
	}
	stats.Duration = time.Since(startTime)
	s.metrics.ObserveRun(stats.Outcome, stats.Duration)

	if err := s.updateIngestState(ctx, stats); err != nil {
		if runErr == nil {
			return stats, fmt.Errorf("update ingest state: %w", err)
		}
		logger.Error("failed to update ingest state", "error", err)
	}

	if runErr != nil {
		logger.Error("ingestion aborted",
			"error", runErr,
			"iterations", stats.Iterations,
			"ingested", stats.New,
			"duration", stats.Duration,
		)
		return stats, runErr
	}

	logger.Info("ingestion completed",
		"outcome", stats.Outcome,
		"iterations", stats.Iterations,
		"rotations", stats.Rotations,
		"fetched", stats.Fetched,
		"ingested", stats.New,
		"too_short", stats.TooShort,
		"unknown_category", stats.NoCategory,
		"duplicates", stats.Duplicates,
		"errors", stats.Errors,
		"next_page_token", stats.NextPageToken,
		"duration", stats.Duration,
	)

	return stats, nil
}

// State returns the bookkeeping row for this service's source.
func (s *IngestService) State(ctx context.Context) (*domain.IngestState, error) {
	return s.state.Get(ctx, s.source.ID())
}

func (s *IngestService) run(ctx context.Context, logger *slog.Logger, stats *domain.IngestStats) error {
	pool := credential.NewPool(s.keys)
	if err := pool.Load(ctx); err != nil {
		return err
	}
	key, err := pool.Next()
	if err != nil {
		return err
	}

	// The cursor is fixed for the whole run; pages are walked with tokens.
	cursor, err := s.videos.LatestPublishedAt(ctx)
	if err != nil {
		return fmt.Errorf("compute cursor: %w", err)
	}
	stats.Cursor = cursor
	logger.Info("resuming after cursor", "cursor", cursor, "credentials", pool.Len())

	deadline := time.Now().Add(s.config.MaxRunTime)
	pageToken := ""

	for {
		if s.budgetExhausted(stats.Iterations, deadline) {
			stats.Outcome = domain.OutcomeBudgetExhausted
			stats.NextPageToken = pageToken
			logger.Warn("run budget exhausted", "iterations", stats.Iterations, "page_token", pageToken)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Iterations++

		query := domain.SearchQuery{PublishedAfter: cursor, PageToken: pageToken}
		page, candidates, err := s.search(ctx, pool, &key, query, stats)
		if err != nil {
			return err
		}

		items, err := s.enrich(ctx, pool, &key, candidates, stats)
		if errors.Is(err, errRetryPage) {
			continue
		}
		if err != nil {
			return err
		}

		accepted := s.validate(ctx, items, stats)

		created := 0
		for i := range accepted {
			video := s.newVideo(&accepted[i], page.NextPageToken)
			isNew, err := s.persist(ctx, video)
			if err != nil {
				logger.Error("failed to save video", "video_id", video.VideoID, "error", err)
				stats.Errors++
				continue
			}
			if !isNew {
				stats.Conflicts++
				s.metrics.CountVideos(metrics.DispositionConflict, 1)
				continue
			}
			created++
			s.announce(ctx, video, stats)
		}
		stats.New += created
		s.metrics.CountVideos(metrics.DispositionIngested, created)

		logger.Debug("page processed",
			"iteration", stats.Iterations,
			"total_results", page.TotalResults,
			"candidates", len(candidates),
			"enriched", len(items),
			"accepted", len(accepted),
			"created", created,
		)

		if created > 0 {
			stats.Outcome = domain.OutcomeIngested
			stats.NextPageToken = page.NextPageToken
			return nil
		}
		if page.NextPageToken == "" {
			stats.Outcome = domain.OutcomeCaughtUp
			return nil
		}
		pageToken = page.NextPageToken
	}
}

// keepLock extends the run lock every LockRefreshInterval until the returned
// stop func is called.
func (s *IngestService) keepLock(ctx context.Context) (stop func()) {
	interval := s.config.LockRefreshInterval
	if interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.lock.Extend(ctx); err != nil && ctx.Err() == nil {
					s.logger.Warn("failed to extend run lock", "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *IngestService) budgetExhausted(iterations int, deadline time.Time) bool {
	if s.config.MaxIterations > 0 && iterations >= s.config.MaxIterations {
		return true
	}
	return s.config.MaxRunTime > 0 && time.Now().After(deadline)
}

// search fetches one page, rotating the key for as long as the platform
// reports quota exhaustion, and drops titles outside the target language.
func (s *IngestService) search(
	ctx context.Context,
	pool *credential.Pool,
	key *string,
	query domain.SearchQuery,
	stats *domain.IngestStats,
) (*domain.SearchPage, []domain.Candidate, error) {
	var page *domain.SearchPage
	for {
		var err error
		page, err = s.source.Search(ctx, query, *key)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrQuotaExceeded) {
			return nil, nil, fmt.Errorf("%w: %w", domain.ErrSearchFailed, err)
		}
		if err := s.rotate(pool, key, stats); err != nil {
			return nil, nil, err
		}
	}

	stats.Fetched += len(page.Items)

	candidates := make([]domain.Candidate, 0, len(page.Items))
	for _, c := range page.Items {
		if !filter.IsTargetLanguage(c.Title) {
			stats.LanguageSkip++
			continue
		}
		candidates = append(candidates, c)
	}
	s.metrics.CountVideos(metrics.DispositionLanguageRejected, len(page.Items)-len(candidates))

	return page, candidates, nil
}

// enrich resolves full metadata for all candidates with one batched call.
// Items the platform returns without statistics are dropped.
func (s *IngestService) enrich(
	ctx context.Context,
	pool *credential.Pool,
	key *string,
	candidates []domain.Candidate,
	stats *domain.IngestStats,
) ([]domain.EnrichedItem, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.VideoID
	}

	details, err := s.source.Details(ctx, ids, *key)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			if err := s.rotate(pool, key, stats); err != nil {
				return nil, err
			}
		} else {
			s.logger.Warn("failed to fetch video details, retrying page", "count", len(ids), "error", err)
			stats.Errors++
		}
		return nil, errRetryPage
	}

	items := make([]domain.EnrichedItem, 0, len(details))
	for _, item := range details {
		if item.Statistics == nil {
			s.logger.Debug("skipping video without statistics", "video_id", item.VideoID)
			stats.MissingStats++
			continue
		}
		items = append(items, item)
	}
	stats.Enriched += len(items)
	s.metrics.CountVideos(metrics.DispositionMissingStatistics, len(details)-len(items))

	return items, nil
}

// validate keeps items that are long enough, belong to a known category
// and are not in the catalog yet. It never writes.
func (s *IngestService) validate(ctx context.Context, items []domain.EnrichedItem, stats *domain.IngestStats) []domain.EnrichedItem {
	var accepted []domain.EnrichedItem
	for _, item := range items {
		if filter.ParseDuration(item.Duration) <= s.config.MinDurationSeconds {
			stats.TooShort++
			s.metrics.CountVideos(metrics.DispositionTooShort, 1)
			continue
		}

		known, err := s.categories.Exists(ctx, item.CategoryID)
		if err != nil {
			s.logger.Error("category lookup failed", "video_id", item.VideoID, "category_id", item.CategoryID, "error", err)
			stats.Errors++
			continue
		}
		if !known {
			stats.NoCategory++
			s.metrics.CountVideos(metrics.DispositionUnknownCategory, 1)
			continue
		}

		exists, err := s.videos.ExistsByVideoID(ctx, item.VideoID)
		if err != nil {
			s.logger.Error("duplicate check failed", "video_id", item.VideoID, "error", err)
			stats.Errors++
			continue
		}
		if exists {
			stats.Duplicates++
			s.metrics.CountVideos(metrics.DispositionDuplicate, 1)
			continue
		}

		accepted = append(accepted, item)
	}
	return accepted
}

func (s *IngestService) newVideo(item *domain.EnrichedItem, pageToken string) *domain.Video {
	video := &domain.Video{
		VideoID:         item.VideoID,
		Title:           filter.Sanitize(item.Title),
		Description:     filter.Sanitize(item.Description),
		ChannelID:       item.ChannelID,
		ChannelTitle:    filter.Sanitize(item.ChannelTitle),
		PublishedAt:     item.PublishedAt,
		IngestedAt:      time.Now().UTC(),
		Tags:            filter.JoinTags(item.Tags),
		ThumbnailLink:   item.ThumbnailURL,
		DurationSeconds: filter.ParseDuration(item.Duration),
		CountryCode:     s.config.CountryCode,
		PageToken:       pageToken,
		CategoryID:      item.CategoryID,
	}

	st := item.Statistics
	if st == nil {
		st = &domain.Statistics{}
	}
	video.ViewCount = valueOrZero(st.ViewCount)
	video.Likes = valueOrZero(st.LikeCount)
	video.Dislikes = valueOrZero(st.DislikeCount)
	video.CommentCount = valueOrZero(st.CommentCount)
	video.CommentsDisabled = st.CommentCount == nil
	video.RatingsDisabled = st.LikeCount == nil

	return video
}

// persist inserts the record. A record that appeared since validation is
// reported as not new rather than as an error.
func (s *IngestService) persist(ctx context.Context, video *domain.Video) (bool, error) {
	if _, err := s.videos.Insert(ctx, video); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			s.logger.Info("video already stored, skipping", "video_id", video.VideoID)
			return false, nil
		}
		return false, fmt.Errorf("insert video: %w", err)
	}
	return true, nil
}

func (s *IngestService) announce(ctx context.Context, video *domain.Video, stats *domain.IngestStats) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, video); err != nil {
		s.logger.Warn("failed to publish video", "video_id", video.VideoID, "error", err)
		stats.Errors++
		return
	}
	stats.Published++
}

func (s *IngestService) rotate(pool *credential.Pool, key *string, stats *domain.IngestStats) error {
	next, err := pool.Next()
	if err != nil {
		s.logger.Error("all api keys exhausted", "used", pool.Used())
		return err
	}
	s.logger.Warn("quota exceeded, rotating api key",
		"previous", credential.Mask(*key),
		"next", credential.Mask(next),
	)
	*key = next
	stats.Rotations++
	s.metrics.CountRotation()
	return nil
}

func (s *IngestService) updateIngestState(ctx context.Context, stats *domain.IngestStats) error {
	update := func(ctx context.Context) error {
		state, err := s.state.Lock(ctx, stats.SourceID)
		if err != nil {
			return err
		}

		state.SourceID = stats.SourceID
		state.LastRunAt = time.Now()
		state.LastOutcome = stats.Outcome
		if stats.NextPageToken != "" {
			state.LastPageToken = stats.NextPageToken
		}
		state.TotalIngested += int64(stats.New)

		return s.state.Update(ctx, state)
	}

	if s.txManager == nil {
		return update(ctx)
	}
	return s.txManager.WithTransaction(ctx, update)
}

func valueOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
