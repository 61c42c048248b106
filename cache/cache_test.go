package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nabbar/s3sh/archive"
	"github.com/nabbar/s3sh/cache"
	"github.com/nabbar/s3sh/vfs"
)

func key(name string) cache.Key {
	return cache.Key{Bucket: "b", Object: name, Kind: vfs.ArchiveZip}
}

func TestGetOrBuildCachesResult(t *testing.T) {
	c := cache.New(10)
	var calls int64

	build := func(ctx context.Context) (*archive.Index, error) {
		atomic.AddInt64(&calls, 1)
		return archive.NewIndex(vfs.ArchiveZip), nil
	}

	_, err := c.GetOrBuild(context.Background(), key("a"), build)
	require.NoError(t, err)
	_, err = c.GetOrBuild(context.Background(), key("a"), build)
	require.NoError(t, err)

	require.Equal(t, int64(1), atomic.LoadInt64(&calls))

	hits, misses, _ := c.Stats()
	require.Equal(t, uint64(1), hits)
	require.Equal(t, uint64(1), misses)
}

func TestGetOrBuildSingleFlight(t *testing.T) {
	c := cache.New(10)
	var calls int64
	release := make(chan struct{})

	build := func(ctx context.Context) (*archive.Index, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return archive.NewIndex(vfs.ArchiveZip), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrBuild(context.Background(), key("shared"), build)
			require.NoError(t, err)
		}()
	}

	close(release)
	wg.Wait()

	require.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestGetOrBuildFailureDoesNotPoisonSlot(t *testing.T) {
	c := cache.New(10)
	first := true

	build := func(ctx context.Context) (*archive.Index, error) {
		if first {
			first = false
			return nil, errors.New("boom")
		}
		return archive.NewIndex(vfs.ArchiveZip), nil
	}

	_, err := c.GetOrBuild(context.Background(), key("a"), build)
	require.Error(t, err)

	idx, err := c.GetOrBuild(context.Background(), key("a"), build)
	require.NoError(t, err)
	require.NotNil(t, idx)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := cache.New(2)
	build := func(ctx context.Context) (*archive.Index, error) {
		return archive.NewIndex(vfs.ArchiveZip), nil
	}

	_, _ = c.GetOrBuild(context.Background(), key("a"), build)
	_, _ = c.GetOrBuild(context.Background(), key("b"), build)
	_, _ = c.GetOrBuild(context.Background(), key("a"), build) // touch a, b is now LRU
	_, _ = c.GetOrBuild(context.Background(), key("c"), build) // evicts b

	require.Equal(t, 2, c.Len())

	var rebuilt bool
	_, _ = c.GetOrBuild(context.Background(), key("b"), func(ctx context.Context) (*archive.Index, error) {
		rebuilt = true
		return archive.NewIndex(vfs.ArchiveZip), nil
	})
	require.True(t, rebuilt)

	_, _, evictions := c.Stats()
	require.Equal(t, uint64(2), evictions)
}
