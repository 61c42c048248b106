package completion_test

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nabbar/s3sh/archive"
	"github.com/nabbar/s3sh/archive/ziphandler"
	"github.com/nabbar/s3sh/cache"
	"github.com/nabbar/s3sh/completion"
	"github.com/nabbar/s3sh/resolver"
	"github.com/nabbar/s3sh/store/memstore"
	"github.com/nabbar/s3sh/vfs"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newFixture(t *testing.T) *completion.Cache {
	t.Helper()

	s := memstore.New()
	s.PutBucket("alpha-bucket")
	s.PutBucket("beta-bucket")
	s.PutObject("alpha-bucket", "logs/2024/app.log", []byte("hi"))
	s.PutObject("alpha-bucket", "logs/2023/app.log", []byte("hi"))
	s.PutObject("alpha-bucket", "notes.txt", []byte("plain"))
	s.PutObject("alpha-bucket", "data.zip", buildZip(t, map[string]string{
		"readme.txt": "hello\n",
		"sub/b.txt":  "world\n",
	}))

	reg := archive.NewRegistry()
	reg.Register(vfs.ArchiveZip, ziphandler.New())

	idxCache := cache.New(10)
	r := resolver.New(s, reg, idxCache)

	return completion.New(s, reg, idxCache, r)
}

func TestSuggestBucketsAtRoot(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	line := "cd "
	out, err := c.Suggest(ctx, vfs.RootNode{}, line, len(line))
	require.NoError(t, err)
	require.Equal(t, []string{"alpha-bucket/", "beta-bucket/"}, out)
}

func TestSuggestFiltersByPrefix(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	line := "cd al"
	out, err := c.Suggest(ctx, vfs.RootNode{}, line, len(line))
	require.NoError(t, err)
	require.Equal(t, []string{"alpha-bucket/"}, out)
}

func TestSuggestCdExcludesPlainFiles(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	bucket := vfs.BucketNode{Name: "alpha-bucket"}
	line := "cd "
	out, err := c.Suggest(ctx, bucket, line, len(line))
	require.NoError(t, err)
	// data.zip is archive-navigable (kept), logs/ is a prefix (kept),
	// notes.txt is a plain file (dropped).
	require.ElementsMatch(t, []string{"logs/", "data.zip"}, out)
}

func TestSuggestCatIncludesEverything(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	bucket := vfs.BucketNode{Name: "alpha-bucket"}
	line := "cat "
	out, err := c.Suggest(ctx, bucket, line, len(line))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"logs/", "data.zip", "notes.txt"}, out)
}

func TestSuggestNestedPathSegment(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	line := "cd alpha-bucket/logs/20"
	out, err := c.Suggest(ctx, vfs.RootNode{}, line, len(line))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"2024/", "2023/"}, out)
}

func TestSuggestInsideArchive(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	line := "cat alpha-bucket/data.zip/"
	out, err := c.Suggest(ctx, vfs.RootNode{}, line, len(line))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"readme.txt", "sub/"}, out)
}

func TestSuggestCachesSecondCallWithNoStoreObjectsChanging(t *testing.T) {
	c := newFixture(t)
	ctx := context.Background()

	line := "cd "
	_, err := c.Suggest(ctx, vfs.RootNode{}, line, len(line))
	require.NoError(t, err)

	// Second call must hit the cached listing synchronously (no timeout
	// window needed even with a near-zero deadline context).
	tctx, cancel := context.WithTimeout(ctx, time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	out, err := c.Suggest(tctx, vfs.RootNode{}, line, len(line))
	require.NoError(t, err)
	require.Equal(t, []string{"alpha-bucket/", "beta-bucket/"}, out)
}
