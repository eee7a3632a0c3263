package youtube

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMetadataTimeout = 10 * time.Second
	UnknownArtist          = "Unknown Artist"
)

type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, videoID string) (Metadata, error)
}

// Placeholder is used whenever real metadata cannot be fetched in time.
func Placeholder(videoID string) Metadata {
	return Metadata{
		Title:        fmt.Sprintf("YouTube Video %s", videoID),
		Artist:       UnknownArtist,
		Duration:     0,
		ThumbnailURL: fmt.Sprintf("https://img.youtube.com/vi/%s/mqdefault.jpg", videoID),
	}
}

// Resolver never fails: a slow or broken fetch degrades to Placeholder.
type Resolver struct {
	fetcher MetadataFetcher
	timeout time.Duration
	logger  *zap.Logger
}

func NewResolver(fetcher MetadataFetcher, timeout time.Duration, logger *zap.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultMetadataTimeout
	}
	return &Resolver{fetcher: fetcher, timeout: timeout, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, videoID string) Metadata {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		meta Metadata
		err  error
	}
	done := make(chan result, 1)
	go func() {
		meta, err := r.fetcher.FetchMetadata(ctx, videoID)
		done <- result{meta, err}
	}()

	select {
	case <-ctx.Done():
		r.logger.Warn("metadata fetch timed out", zap.String("video_id", videoID))
		return Placeholder(videoID)
	case res := <-done:
		if res.err != nil {
			r.logger.Error("failed to fetch metadata",
				zap.String("video_id", videoID),
				zap.Error(res.err))
			return Placeholder(videoID)
		}
		return fillDefaults(videoID, res.meta)
	}
}

func fillDefaults(videoID string, meta Metadata) Metadata {
	fallback := Placeholder(videoID)
	if meta.Title == "" {
		meta.Title = fallback.Title
	}
	if meta.Artist == "" {
		meta.Artist = UnknownArtist
	}
	if meta.ThumbnailURL == "" {
		meta.ThumbnailURL = fallback.ThumbnailURL
	}
	return meta
}
