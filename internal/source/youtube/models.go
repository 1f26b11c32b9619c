package youtube

// SearchResponse represents the search.list response structure.
type SearchResponse struct {
	NextPageToken string       `json:"nextPageToken"`
	PageInfo      PageInfo     `json:"pageInfo"`
	Items         []SearchItem `json:"items"`
}

type PageInfo struct {
	TotalResults   int `json:"totalResults"`
	ResultsPerPage int `json:"resultsPerPage"`
}

type SearchItem struct {
	ID      ResourceID `json:"id"`
	Snippet Snippet    `json:"snippet"`
}

type ResourceID struct {
	Kind    string `json:"kind"`
	VideoID string `json:"videoId"`
}

type Snippet struct {
	PublishedAt  string               `json:"publishedAt"`
	ChannelID    string               `json:"channelId"`
	ChannelTitle string               `json:"channelTitle"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	CategoryID   string               `json:"categoryId"`
	Tags         []string             `json:"tags"`
	Thumbnails   map[string]Thumbnail `json:"thumbnails"`
}

type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// VideosResponse represents the videos.list response structure.
type VideosResponse struct {
	Items []Video `json:"items"`
}

type Video struct {
	ID             string          `json:"id"`
	Snippet        Snippet         `json:"snippet"`
	ContentDetails *ContentDetails `json:"contentDetails"`
	Statistics     *Statistics     `json:"statistics"`
}

type ContentDetails struct {
	Duration string `json:"duration"`
}

// Statistics counters arrive as decimal strings and are omitted when the
// owner hides them, so absence is kept distinct from zero.
type Statistics struct {
	ViewCount    *string `json:"viewCount"`
	LikeCount    *string `json:"likeCount"`
	DislikeCount *string `json:"dislikeCount"`
	CommentCount *string `json:"commentCount"`
}

// ErrorResponse is the error envelope returned with non-2xx statuses.
type ErrorResponse struct {
	Error struct {
		Code    int           `json:"code"`
		Message string        `json:"message"`
		Errors  []ErrorDetail `json:"errors"`
	} `json:"error"`
}

type ErrorDetail struct {
	Reason  string `json:"reason"`
	Domain  string `json:"domain"`
	Message string `json:"message"`
}
