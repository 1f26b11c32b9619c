package domain

import "time"

// Candidate is a search hit that has not been enriched yet.
type Candidate struct {
	VideoID      string
	Title        string
	Description  string
	ChannelID    string
	ChannelTitle string
	PublishedAt  time.Time
}

type SearchQuery struct {
	PublishedAfter time.Time
	PageToken      string
}

type SearchPage struct {
	Items         []Candidate
	NextPageToken string
	TotalResults  int
}

// Statistics holds engagement counters. A nil field means the platform
// did not report the counter at all, which is not the same as zero.
type Statistics struct {
	ViewCount    *int64
	LikeCount    *int64
	DislikeCount *int64
	CommentCount *int64
}

// EnrichedItem is a candidate with full metadata from the batch details call.
// Statistics is nil when the platform returned no statistics object.
type EnrichedItem struct {
	VideoID      string
	Title        string
	Description  string
	ChannelID    string
	ChannelTitle string
	CategoryID   string
	Duration     string // ISO-8601, e.g. PT4M13S
	ThumbnailURL string
	Tags         []string
	PublishedAt  time.Time
	Statistics   *Statistics
}

// Video is the persisted catalog record.
type Video struct {
	ID               int64     `db:"id" json:"id"`
	VideoID          string    `db:"video_id" json:"video_id"`
	Title            string    `db:"title" json:"title"`
	Description      string    `db:"description" json:"description"`
	ChannelID        string    `db:"channel_id" json:"channel_id"`
	ChannelTitle     string    `db:"channel_title" json:"channel_title"`
	PublishedAt      time.Time `db:"published_at" json:"published_at"`
	IngestedAt       time.Time `db:"ingested_at" json:"ingested_at"`
	Tags             string    `db:"tags" json:"tags"`
	ViewCount        int64     `db:"view_count" json:"view_count"`
	Likes            int64     `db:"likes" json:"likes"`
	Dislikes         int64     `db:"dislikes" json:"dislikes"`
	CommentCount     int64     `db:"comment_count" json:"comment_count"`
	ThumbnailLink    string    `db:"thumbnail_link" json:"thumbnail_link"`
	CommentsDisabled bool      `db:"comments_disabled" json:"comments_disabled"`
	RatingsDisabled  bool      `db:"ratings_disabled" json:"ratings_disabled"`
	DurationSeconds  int       `db:"duration_seconds" json:"duration_seconds"`
	CountryCode      string    `db:"country_code" json:"country_code"`
	PageToken        string    `db:"page_token" json:"page_token"`
	CategoryID       string    `db:"category_id" json:"category_id"`

	// Only populated by joined reads.
	CategoryTitle string `db:"category_title" json:"category_title,omitempty"`
}

type Category struct {
	CategoryID string `db:"category_id"`
	Title      string `db:"title"`
}
