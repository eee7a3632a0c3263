package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAPIBase   = "https://www.googleapis.com/youtube/v3"
	defaultOEmbedURL = "https://www.youtube.com/oembed"
)

var (
	ErrVideoNotFound = errors.New("video not found")
	ErrNoAPIKey      = errors.New("youtube api key not configured")
)

// Metadata is what a Song needs to know about a video.
type Metadata struct {
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Duration     int    `json:"duration"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type SearchResult struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	Duration  string `json:"duration"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
}

// Client talks to the YouTube Data API when it has a key and falls back to
// the public oEmbed endpoint for metadata otherwise.
type Client struct {
	apiKey     string
	apiBase    string
	oembedURL  string
	httpClient *http.Client
}

func NewClient(apiKey, apiBase string) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{
		apiKey:     apiKey,
		apiBase:    strings.TrimRight(apiBase, "/"),
		oembedURL:  defaultOEmbedURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type thumbnails struct {
	Default struct {
		URL string `json:"url"`
	} `json:"default"`
	Medium struct {
		URL string `json:"url"`
	} `json:"medium"`
	High struct {
		URL string `json:"url"`
	} `json:"high"`
}

func (t thumbnails) best() string {
	switch {
	case t.High.URL != "":
		return t.High.URL
	case t.Medium.URL != "":
		return t.Medium.URL
	}
	return t.Default.URL
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string     `json:"title"`
			ChannelTitle string     `json:"channelTitle"`
			Thumbnails   thumbnails `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string     `json:"title"`
			ChannelTitle string     `json:"channelTitle"`
			Thumbnails   thumbnails `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (c *Client) FetchMetadata(ctx context.Context, videoID string) (Metadata, error) {
	if c.apiKey == "" {
		return c.fetchOEmbed(ctx, videoID)
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("id", videoID)
	params.Set("key", c.apiKey)

	var body videosResponse
	if err := c.getJSON(ctx, c.apiBase+"/videos?"+params.Encode(), &body); err != nil {
		return Metadata{}, err
	}
	if len(body.Items) == 0 {
		return Metadata{}, ErrVideoNotFound
	}

	item := body.Items[0]
	return Metadata{
		Title:        item.Snippet.Title,
		Artist:       item.Snippet.ChannelTitle,
		Duration:     parseISO8601Duration(item.ContentDetails.Duration),
		ThumbnailURL: item.Snippet.Thumbnails.best(),
	}, nil
}

// fetchOEmbed needs no key but reports no duration.
func (c *Client) fetchOEmbed(ctx context.Context, videoID string) (Metadata, error) {
	params := url.Values{}
	params.Set("url", WatchURL(videoID))
	params.Set("format", "json")

	var body oembedResponse
	if err := c.getJSON(ctx, c.oembedURL+"?"+params.Encode(), &body); err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Title:        body.Title,
		Artist:       body.AuthorName,
		ThumbnailURL: body.ThumbnailURL,
	}, nil
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("q", query)
	params.Set("key", c.apiKey)

	var body searchResponse
	if err := c.getJSON(ctx, c.apiBase+"/search?"+params.Encode(), &body); err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(body.Items))
	ids := make([]string, 0, len(body.Items))
	for _, it := range body.Items {
		out = append(out, SearchResult{
			ID:        it.ID.VideoID,
			Title:     it.Snippet.Title,
			Channel:   it.Snippet.ChannelTitle,
			Duration:  formatDuration(0),
			Thumbnail: it.Snippet.Thumbnails.best(),
			URL:       WatchURL(it.ID.VideoID),
		})
		ids = append(ids, it.ID.VideoID)
	}
	if len(ids) == 0 {
		return out, nil
	}

	durations, err := c.fetchDurations(ctx, ids)
	if err != nil {
		// Results are still useful without durations.
		return out, nil
	}
	for i := range out {
		if d, ok := durations[out[i].ID]; ok {
			out[i].Duration = formatDuration(d)
		}
	}
	return out, nil
}

func (c *Client) fetchDurations(ctx context.Context, ids []string) (map[string]int, error) {
	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", c.apiKey)

	var body videosResponse
	if err := c.getJSON(ctx, c.apiBase+"/videos?"+params.Encode(), &body); err != nil {
		return nil, err
	}

	durations := make(map[string]int, len(body.Items))
	for _, item := range body.Items {
		durations[item.ID] = parseISO8601Duration(item.ContentDetails.Duration)
	}
	return durations, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrVideoNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube: request failed with status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode youtube response: %w", err)
	}
	return nil
}

func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

var isoDuration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISO8601Duration converts PT#H#M#S to seconds. Anything else is 0.
func parseISO8601Duration(d string) int {
	m := isoDuration.FindStringSubmatch(d)
	if m == nil {
		return 0
	}
	var total int
	for i, unit := range []int{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		total += n * unit
	}
	return total
}

// formatDuration renders seconds as m:ss, or h:mm:ss past an hour.
func formatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
