package youtube

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchMetadata(ctx context.Context, videoID string) (Metadata, error) {
	args := m.Called(ctx, videoID)
	return args.Get(0).(Metadata), args.Error(1)
}

type blockingFetcher struct{}

func (blockingFetcher) FetchMetadata(ctx context.Context, _ string) (Metadata, error) {
	<-ctx.Done()
	return Metadata{}, ctx.Err()
}

func TestResolve(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := new(MockFetcher)
		f.On("FetchMetadata", mock.Anything, "dQw4w9WgXcQ").
			Return(Metadata{Title: "Song", Artist: "Artist", Duration: 200, ThumbnailURL: "http://img"}, nil)

		meta := NewResolver(f, time.Second, zap.NewNop()).Resolve(context.Background(), "dQw4w9WgXcQ")

		assert.Equal(t, "Song", meta.Title)
		assert.Equal(t, 200, meta.Duration)
		f.AssertExpectations(t)
	})

	t.Run("empty artist", func(t *testing.T) {
		f := new(MockFetcher)
		f.On("FetchMetadata", mock.Anything, "abc").Return(Metadata{Title: "Song"}, nil)

		meta := NewResolver(f, time.Second, zap.NewNop()).Resolve(context.Background(), "abc")

		assert.Equal(t, UnknownArtist, meta.Artist)
		assert.Equal(t, "https://img.youtube.com/vi/abc/mqdefault.jpg", meta.ThumbnailURL)
	})

	t.Run("failure falls back to placeholder", func(t *testing.T) {
		f := new(MockFetcher)
		f.On("FetchMetadata", mock.Anything, "abc").Return(Metadata{}, errors.New("boom"))

		meta := NewResolver(f, time.Second, zap.NewNop()).Resolve(context.Background(), "abc")

		assert.Equal(t, Placeholder("abc"), meta)
	})

	t.Run("timeout falls back to placeholder", func(t *testing.T) {
		start := time.Now()
		meta := NewResolver(blockingFetcher{}, 20*time.Millisecond, zap.NewNop()).Resolve(context.Background(), "abc")

		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, "YouTube Video abc", meta.Title)
		assert.Equal(t, UnknownArtist, meta.Artist)
		assert.Equal(t, 0, meta.Duration)
	})
}

type countingBackend struct {
	calls   int32
	release chan struct{}
}

func (b *countingBackend) Search(_ context.Context, query string, _ int) ([]SearchResult, error) {
	atomic.AddInt32(&b.calls, 1)
	if b.release != nil {
		<-b.release
	}
	return []SearchResult{{ID: "vid1", Title: query}}, nil
}

func TestSearcher_CachesByLowercasedKey(t *testing.T) {
	backend := &countingBackend{}
	s := NewSearcher(backend, NewMemoryCache(0), time.Minute, zap.NewNop())

	first, err := s.Search(context.Background(), "ABBA", 5)
	require.NoError(t, err)
	assert.Equal(t, "ABBA karaoke", first[0].Title)

	_, err = s.Search(context.Background(), "abba", 5)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.calls))

	_, err = s.Search(context.Background(), "abba", 6)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&backend.calls))
}

func TestSearcher_ExpiredEntry(t *testing.T) {
	backend := &countingBackend{}
	cache := NewMemoryCache(0)
	t.Cleanup(cache.Close)
	s := NewSearcher(backend, cache, 30*time.Millisecond, zap.NewNop())

	_, err := s.Search(context.Background(), "abba", 0)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = s.Search(context.Background(), "abba", 0)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&backend.calls))
}

func TestMemoryCache_BoundedSize(t *testing.T) {
	cache := NewMemoryCache(100)
	t.Cleanup(cache.Close)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		require.NoError(t, cache.Set(ctx, fmt.Sprintf("query-%d", i), []byte("[]"), time.Hour))
	}

	assert.Equal(t, 100, cache.Len())
	_, ok, err := cache.Get(ctx, "query-0")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = cache.Get(ctx, "query-999")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_DropsExpiredWithoutReads(t *testing.T) {
	cache := NewMemoryCache(0)
	t.Cleanup(cache.Close)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, cache.Set(ctx, fmt.Sprintf("query-%d", i), []byte("[]"), 20*time.Millisecond))
	}
	require.Equal(t, 50, cache.Len())

	assert.Eventually(t, func() bool { return cache.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSearcher_CollapsesConcurrentMisses(t *testing.T) {
	backend := &countingBackend{release: make(chan struct{})}
	s := NewSearcher(backend, NewMemoryCache(0), time.Minute, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Search(context.Background(), "abba", 10)
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&backend.calls) >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.calls))
}

type cancelAwareBackend struct {
	calls   int32
	release chan struct{}
}

func (b *cancelAwareBackend) Search(ctx context.Context, query string, _ int) ([]SearchResult, error) {
	atomic.AddInt32(&b.calls, 1)
	<-b.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []SearchResult{{ID: "vid1", Title: query}}, nil
}

func TestSearcher_SharedCallSurvivesLeaderCancel(t *testing.T) {
	backend := &cancelAwareBackend{release: make(chan struct{})}
	s := NewSearcher(backend, NewMemoryCache(0), time.Minute, zap.NewNop())

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, _ = s.Search(leaderCtx, "abba", 10)
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&backend.calls) == 1 }, time.Second, time.Millisecond)

	var (
		results []SearchResult
		err     error
	)
	followerDone := make(chan struct{})
	go func() {
		defer close(followerDone)
		results, err = s.Search(context.Background(), "abba", 10)
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(backend.release)
	<-leaderDone
	<-followerDone

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vid1", results[0].ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.calls))
}
