package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"video_ingestor/internal/domain"
)

type IngestStateStore struct {
	db *sqlx.DB
}

func NewIngestStateStore(db *sqlx.DB) *IngestStateStore {
	return &IngestStateStore{db: db}
}

const selectIngestState = `
	SELECT id, source_id, last_run_at, last_outcome, last_page_token, total_ingested
	FROM ingest_state
	WHERE source_id = $1`

func (s *IngestStateStore) Get(ctx context.Context, sourceID string) (*domain.IngestState, error) {
	var state domain.IngestState
	err := sqlx.GetContext(ctx, executor(ctx, s.db), &state, selectIngestState, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		// Return empty state for sources that never ran
		return &domain.IngestState{SourceID: sourceID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Lock reads the state row FOR UPDATE and must run inside a transaction.
// The row is created first, so a source's first two runs serialize too.
func (s *IngestStateStore) Lock(ctx context.Context, sourceID string) (*domain.IngestState, error) {
	ext := executor(ctx, s.db)

	_, err := ext.ExecContext(ctx, `
		INSERT INTO ingest_state (source_id, last_run_at)
		VALUES ($1, $2)
		ON CONFLICT (source_id) DO NOTHING`,
		sourceID, time.Time{},
	)
	if err != nil {
		return nil, fmt.Errorf("create ingest state: %w", err)
	}

	var state domain.IngestState
	if err := sqlx.GetContext(ctx, ext, &state, selectIngestState+" FOR UPDATE", sourceID); err != nil {
		return nil, fmt.Errorf("lock ingest state: %w", err)
	}
	return &state, nil
}

func (s *IngestStateStore) Update(ctx context.Context, state *domain.IngestState) error {
	query := `
		INSERT INTO ingest_state (source_id, last_run_at, last_outcome, last_page_token, total_ingested)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_id) DO UPDATE SET
			last_run_at = EXCLUDED.last_run_at,
			last_outcome = EXCLUDED.last_outcome,
			last_page_token = EXCLUDED.last_page_token,
			total_ingested = EXCLUDED.total_ingested`

	_, err := executor(ctx, s.db).ExecContext(ctx, query,
		state.SourceID,
		state.LastRunAt,
		state.LastOutcome,
		state.LastPageToken,
		state.TotalIngested,
	)
	return err
}
