package domain

import "time"

// Run outcomes recorded in IngestStats and IngestState.
const (
	OutcomeIngested        = "ingested"
	OutcomeCaughtUp        = "caught_up"
	OutcomeBudgetExhausted = "budget_exhausted"
	OutcomeAborted         = "aborted"
)

// IngestStats holds statistics about a single ingestion run.
type IngestStats struct {
	RunID         string        `json:"run_id"`
	SourceID      string        `json:"source_id"`
	Cursor        time.Time     `json:"cursor"`
	NextPageToken string        `json:"next_page_token"`
	Outcome       string        `json:"outcome"`
	Iterations    int           `json:"iterations"`
	Rotations     int           `json:"rotations"`
	Fetched       int           `json:"fetched"`
	LanguageSkip  int           `json:"language_rejected"`
	Enriched      int           `json:"enriched"`
	MissingStats  int           `json:"missing_statistics"`
	TooShort      int           `json:"too_short"`
	NoCategory    int           `json:"unknown_category"`
	Duplicates    int           `json:"duplicates"`
	Conflicts     int           `json:"conflicts"`
	New           int           `json:"ingested"`
	Published     int           `json:"published"`
	Errors        int           `json:"errors"`
	Duration      time.Duration `json:"duration"`
}

type IngestState struct {
	ID            int64     `db:"id" json:"-"`
	SourceID      string    `db:"source_id" json:"source_id"`
	LastRunAt     time.Time `db:"last_run_at" json:"last_run_at"`
	LastOutcome   string    `db:"last_outcome" json:"last_outcome"`
	LastPageToken string    `db:"last_page_token" json:"last_page_token"`
	TotalIngested int64     `db:"total_ingested" json:"total_ingested"`
}
