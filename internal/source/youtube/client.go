package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"video_ingestor/internal/domain"
)

const (
	SourceID   = "youtube"
	SourceName = "YouTube Data API"

	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"
)

// Config holds video API client configuration.
type Config struct {
	BaseURL           string
	RegionCode        string
	RelevanceLanguage string
	PageSize          int
	Timeout           time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

// Client talks to the search and videos endpoints of the video API.
// The API key is supplied per call so the caller can rotate keys.
type Client struct {
	httpClient        *http.Client
	baseURL           string
	regionCode        string
	relevanceLanguage string
	pageSize          int
	maxAttempts       int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	logger            *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:           strings.TrimRight(baseURL, "/"),
		regionCode:        cfg.RegionCode,
		relevanceLanguage: cfg.RelevanceLanguage,
		pageSize:          cfg.PageSize,
		maxAttempts:       maxAttempts,
		initialBackoff:    cfg.InitialBackoff,
		maxBackoff:        cfg.MaxBackoff,
		logger:            logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (c *Client) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (c *Client) Name() string {
	return SourceName
}

// Search lists videos published strictly after q.PublishedAfter, newest first.
func (c *Client) Search(ctx context.Context, q domain.SearchQuery, apiKey string) (*domain.SearchPage, error) {
	params := url.Values{}
	params.Set("part", "id,snippet")
	params.Set("type", "video")
	params.Set("order", "date")
	params.Set("maxResults", strconv.Itoa(c.pageSize))
	params.Set("publishedAfter", q.PublishedAfter.UTC().Format(time.RFC3339))
	if c.regionCode != "" {
		params.Set("regionCode", c.regionCode)
	}
	if c.relevanceLanguage != "" {
		params.Set("relevanceLanguage", c.relevanceLanguage)
	}
	if q.PageToken != "" {
		params.Set("pageToken", q.PageToken)
	}
	params.Set("key", apiKey)

	var resp SearchResponse
	if err := c.get(ctx, "search", params, &resp); err != nil {
		return nil, fmt.Errorf("search videos: %w", err)
	}

	page := &domain.SearchPage{
		Items:         make([]domain.Candidate, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
		TotalResults:  resp.PageInfo.TotalResults,
	}
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			c.logger.Warn("failed to parse published date",
				"video_id", item.ID.VideoID,
				"published_at", item.Snippet.PublishedAt,
			)
			continue
		}
		page.Items = append(page.Items, domain.Candidate{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelID:    item.Snippet.ChannelID,
			ChannelTitle: item.Snippet.ChannelTitle,
			PublishedAt:  publishedAt,
		})
	}

	c.logger.Debug("fetched search page",
		"results", len(resp.Items),
		"usable", len(page.Items),
		"has_next", resp.NextPageToken != "",
	)

	return page, nil
}

// Details fetches full metadata for ids in a single batched call.
// Videos the API does not know are simply absent from the result.
func (c *Client) Details(ctx context.Context, ids []string, apiKey string) ([]domain.EnrichedItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("part", "contentDetails,statistics,snippet")
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", apiKey)

	var resp VideosResponse
	if err := c.get(ctx, "videos", params, &resp); err != nil {
		return nil, fmt.Errorf("fetch video details: %w", err)
	}

	return c.transform(resp.Items), nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	reqURL := c.baseURL + "/" + endpoint + "?" + params.Encode()

	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = c.doRequest(ctx, reqURL, out)
		if err == nil {
			return nil
		}

		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"endpoint", endpoint,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
}

func (c *Client) doRequest(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "VideoIngestor/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the request URL, which carries the API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("execute request: %w: %w", errTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}

	var envelope ErrorResponse
	if json.Unmarshal(body, &envelope) == nil {
		if envelope.Error.Message != "" {
			apiErr.Message = envelope.Error.Message
		}
		if len(envelope.Error.Errors) > 0 {
			apiErr.Reason = envelope.Error.Errors[0].Reason
		}
	}
	return apiErr
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

func (c *Client) transform(videos []Video) []domain.EnrichedItem {
	items := make([]domain.EnrichedItem, 0, len(videos))

	for _, v := range videos {
		publishedAt, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt)
		if err != nil {
			c.logger.Warn("failed to parse published date",
				"video_id", v.ID,
				"published_at", v.Snippet.PublishedAt,
			)
			continue
		}

		item := domain.EnrichedItem{
			VideoID:      v.ID,
			Title:        v.Snippet.Title,
			Description:  v.Snippet.Description,
			ChannelID:    v.Snippet.ChannelID,
			ChannelTitle: v.Snippet.ChannelTitle,
			CategoryID:   v.Snippet.CategoryID,
			Tags:         v.Snippet.Tags,
			PublishedAt:  publishedAt,
		}

		if v.ContentDetails != nil {
			item.Duration = v.ContentDetails.Duration
		}
		if thumb, ok := v.Snippet.Thumbnails["default"]; ok {
			item.ThumbnailURL = thumb.URL
		}
		if v.Statistics != nil {
			item.Statistics = &domain.Statistics{
				ViewCount:    parseCount(v.Statistics.ViewCount),
				LikeCount:    parseCount(v.Statistics.LikeCount),
				DislikeCount: parseCount(v.Statistics.DislikeCount),
				CommentCount: parseCount(v.Statistics.CommentCount),
			}
		}

		items = append(items, item)
	}

	return items
}

// parseCount keeps a reported-but-unreadable counter as present with value 0.
func parseCount(raw *string) *int64 {
	if raw == nil {
		return nil
	}
	n, err := strconv.ParseInt(*raw, 10, 64)
	if err != nil {
		n = 0
	}
	return &n
}
