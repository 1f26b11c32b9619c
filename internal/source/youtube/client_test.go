package youtube

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video_ingestor/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{
		BaseURL:           srv.URL,
		RegionCode:        "PK",
		RelevanceLanguage: "en",
		PageSize:          50,
		Timeout:           5 * time.Second,
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
	}, logger)
}

const searchBody = `{
  "nextPageToken": "CDIQAA",
  "pageInfo": {"totalResults": 3, "resultsPerPage": 50},
  "items": [
    {"id": {"kind": "youtube#video", "videoId": "vid1"},
     "snippet": {"publishedAt": "2024-05-01T10:00:00Z", "channelId": "ch1", "channelTitle": "Channel One",
                 "title": "The first video", "description": "desc"}},
    {"id": {"kind": "youtube#channel"},
     "snippet": {"publishedAt": "2024-05-01T10:00:00Z", "title": "A channel"}},
    {"id": {"kind": "youtube#video", "videoId": "vid2"},
     "snippet": {"publishedAt": "not-a-date", "title": "Broken date"}}
  ]
}`

func TestClient_Search(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = map[string]string{}
		for k, v := range r.URL.Query() {
			gotQuery[k] = v[0]
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	})

	cursor := time.Date(2024, 4, 30, 8, 15, 0, 0, time.FixedZone("PKT", 5*3600))
	page, err := client.Search(context.Background(), domain.SearchQuery{
		PublishedAfter: cursor,
		PageToken:      "CAUQAA",
	}, "key-1")
	require.NoError(t, err)

	assert.Equal(t, "2024-04-30T03:15:00Z", gotQuery["publishedAfter"])
	assert.Equal(t, "CAUQAA", gotQuery["pageToken"])
	assert.Equal(t, "50", gotQuery["maxResults"])
	assert.Equal(t, "date", gotQuery["order"])
	assert.Equal(t, "video", gotQuery["type"])
	assert.Equal(t, "PK", gotQuery["regionCode"])
	assert.Equal(t, "en", gotQuery["relevanceLanguage"])
	assert.Equal(t, "key-1", gotQuery["key"])

	require.Len(t, page.Items, 1)
	assert.Equal(t, "vid1", page.Items[0].VideoID)
	assert.Equal(t, "The first video", page.Items[0].Title)
	assert.Equal(t, "Channel One", page.Items[0].ChannelTitle)
	assert.Equal(t, "CDIQAA", page.NextPageToken)
	assert.Equal(t, 3, page.TotalResults)
}

func TestClient_Search_EpochCursorWithoutPageToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1970-01-01T00:00:00Z", r.URL.Query().Get("publishedAfter"))
		_, hasToken := r.URL.Query()["pageToken"]
		assert.False(t, hasToken)
		_, _ = w.Write([]byte(`{"items": []}`))
	})

	page, err := client.Search(context.Background(), domain.SearchQuery{PublishedAfter: time.Unix(0, 0)}, "k")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.NextPageToken)
}

func TestClient_Search_QuotaExceeded(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "The request cannot be completed because you have exceeded your quota.",
			"errors": [{"reason": "quotaExceeded", "domain": "youtube.quota"}]}}`))
	})

	_, err := client.Search(context.Background(), domain.SearchQuery{}, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Equal(t, int32(1), calls.Load(), "quota errors are not retried")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "quotaExceeded", apiErr.Reason)
}

func TestClient_Search_ForbiddenWithoutQuotaReason(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "forbidden", "errors": [{"reason": "forbidden"}]}}`))
	})

	_, err := client.Search(context.Background(), domain.SearchQuery{}, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestClient_Search_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"items": []}`))
	})

	_, err := client.Search(context.Background(), domain.SearchQuery{}, "k")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Search_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Search(context.Background(), domain.SearchQuery{}, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Search_DoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "Invalid value", "errors": [{"reason": "invalidParameter"}]}}`))
	})

	_, err := client.Search(context.Background(), domain.SearchQuery{}, "k")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_TransportErrorHidesKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client := New(Config{BaseURL: "http://127.0.0.1:1", MaxAttempts: 1, Timeout: time.Second}, logger)

	_, err := client.Search(context.Background(), domain.SearchQuery{}, "secret-key-value")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errTransport))
	assert.NotContains(t, err.Error(), "secret-key-value")
}

const videosBody = `{
  "items": [
    {"id": "vid1",
     "snippet": {"publishedAt": "2024-05-01T10:00:00Z", "channelId": "ch1", "channelTitle": "Channel One",
                 "title": "The first video", "description": "line\nbreak", "categoryId": "22",
                 "tags": ["a", "b"], "thumbnails": {"default": {"url": "https://i.ytimg.com/vi/vid1/default.jpg"}}},
     "contentDetails": {"duration": "PT4M13S"},
     "statistics": {"viewCount": "1200", "likeCount": "40", "commentCount": "0"}},
    {"id": "vid2",
     "snippet": {"publishedAt": "2024-05-01T11:00:00Z", "title": "No stats here", "categoryId": "10"},
     "contentDetails": {"duration": "PT10M"}}
  ]
}`

func TestClient_Details(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "vid1,vid2,vid3", r.URL.Query().Get("id"))
		assert.Equal(t, "contentDetails,statistics,snippet", r.URL.Query().Get("part"))
		assert.Equal(t, "key-2", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(videosBody))
	})

	items, err := client.Details(context.Background(), []string{"vid1", "vid2", "vid3"}, "key-2")
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "vid1", first.VideoID)
	assert.Equal(t, "22", first.CategoryID)
	assert.Equal(t, "PT4M13S", first.Duration)
	assert.Equal(t, "https://i.ytimg.com/vi/vid1/default.jpg", first.ThumbnailURL)
	assert.Equal(t, []string{"a", "b"}, first.Tags)
	require.NotNil(t, first.Statistics)
	assert.Equal(t, int64(1200), *first.Statistics.ViewCount)
	assert.Equal(t, int64(40), *first.Statistics.LikeCount)
	assert.Nil(t, first.Statistics.DislikeCount)
	require.NotNil(t, first.Statistics.CommentCount)
	assert.Equal(t, int64(0), *first.Statistics.CommentCount)

	assert.Equal(t, "vid2", items[1].VideoID)
	assert.Nil(t, items[1].Statistics)
}

func TestClient_Details_EmptyIDsSkipsCall(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	items, err := client.Details(context.Background(), nil, "k")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestClient_Details_QuotaExceeded(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "errors": [{"reason": "dailyLimitExceeded"}]}}`))
	})

	_, err := client.Details(context.Background(), []string{"vid1"}, "k")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestParseCount(t *testing.T) {
	assert.Nil(t, parseCount(nil))

	raw := "42"
	assert.Equal(t, int64(42), *parseCount(&raw))

	bad := "n/a"
	got := parseCount(&bad)
	require.NotNil(t, got)
	assert.Equal(t, int64(0), *got)
}
