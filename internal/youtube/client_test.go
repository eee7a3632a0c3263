package youtube

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type RoundTripFunc func(req *http.Request) *http.Response

func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func newMockedClient(apiKey string, fn RoundTripFunc) *Client {
	c := NewClient(apiKey, "")
	c.httpClient = &http.Client{Transport: fn}
	return c
}

func TestParseISO8601Duration(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"PT3M4S", 184},
		{"PT1H", 3600},
		{"PT1H30M", 5400},
		{"PT45S", 45},
		{"PT1H1M1S", 3661},
		{"P1DT1H", 0},
		{"invalid", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseISO8601Duration(tt.input))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1:05", formatDuration(65))
	assert.Equal(t, "1:01:01", formatDuration(3661))
	assert.Equal(t, "0:00", formatDuration(0))
}

func TestFetchMetadata_DataAPI(t *testing.T) {
	c := newMockedClient("key", func(req *http.Request) *http.Response {
		assert.True(t, strings.HasSuffix(req.URL.Path, "/videos"))
		assert.Equal(t, "dQw4w9WgXcQ", req.URL.Query().Get("id"))
		return jsonResponse(http.StatusOK, `{"items":[{"id":"dQw4w9WgXcQ",
			"snippet":{"title":"Never Gonna Give You Up","channelTitle":"Rick Astley",
				"thumbnails":{"medium":{"url":"http://img/m"}}},
			"contentDetails":{"duration":"PT3M33S"}}]}`)
	})

	meta, err := c.FetchMetadata(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", meta.Title)
	assert.Equal(t, "Rick Astley", meta.Artist)
	assert.Equal(t, 213, meta.Duration)
	assert.Equal(t, "http://img/m", meta.ThumbnailURL)
}

func TestFetchMetadata_NoItems(t *testing.T) {
	c := newMockedClient("key", func(req *http.Request) *http.Response {
		return jsonResponse(http.StatusOK, `{"items":[]}`)
	})

	_, err := c.FetchMetadata(context.Background(), "missing0000")
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestFetchMetadata_OEmbedWithoutKey(t *testing.T) {
	c := newMockedClient("", func(req *http.Request) *http.Response {
		assert.Equal(t, "www.youtube.com", req.URL.Host)
		assert.Equal(t, "/oembed", req.URL.Path)
		return jsonResponse(http.StatusOK, `{"title":"Song","author_name":"Channel","thumbnail_url":"http://img/hq"}`)
	})

	meta, err := c.FetchMetadata(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Song", meta.Title)
	assert.Equal(t, "Channel", meta.Artist)
	assert.Equal(t, 0, meta.Duration)
}

func TestSearch(t *testing.T) {
	c := newMockedClient("key", func(req *http.Request) *http.Response {
		if strings.HasSuffix(req.URL.Path, "/search") {
			assert.Equal(t, "abba karaoke", req.URL.Query().Get("q"))
			return jsonResponse(http.StatusOK, `{"items":[
				{"id":{"videoId":"vid1"},"snippet":{"title":"Track 1","channelTitle":"Sing King","thumbnails":{"high":{"url":"http://img"}}}},
				{"id":{"videoId":"vid2"},"snippet":{"title":"Track 2","channelTitle":"Sing King","thumbnails":{"default":{"url":"http://img/d"}}}}]}`)
		}
		return jsonResponse(http.StatusOK, `{"items":[{"id":"vid1","contentDetails":{"duration":"PT4M5S"}}]}`)
	})

	results, err := c.Search(context.Background(), "abba karaoke", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "vid1", results[0].ID)
	assert.Equal(t, "4:05", results[0].Duration)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid1", results[0].URL)
	assert.Equal(t, "0:00", results[1].Duration)
	assert.Equal(t, "http://img/d", results[1].Thumbnail)
}

func TestSearch_RequiresKey(t *testing.T) {
	c := NewClient("", "")
	_, err := c.Search(context.Background(), "abba", 5)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestSearch_UpstreamError(t *testing.T) {
	c := newMockedClient("key", func(req *http.Request) *http.Response {
		return jsonResponse(http.StatusForbidden, `{}`)
	})

	_, err := c.Search(context.Background(), "abba", 5)
	assert.Error(t, err)
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		input string
		id    string
		ok    bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", true},
		{"youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", true},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"not a url", "", false},
		{"https://example.com/video", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			id, ok := ExtractVideoID(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}
