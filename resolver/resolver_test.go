package resolver_test

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nabbar/s3sh/archive"
	"github.com/nabbar/s3sh/archive/ziphandler"
	"github.com/nabbar/s3sh/cache"
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

func newFixture(t *testing.T) (*resolver.Resolver, *memstore.Store) {
	t.Helper()

	s := memstore.New()
	s.PutBucket("my-bucket")
	s.PutObject("my-bucket", "logs/2024/app.log", []byte("hello"))
	s.PutObject("my-bucket", "backups/data.zip", buildZip(t, map[string]string{
		"a.txt":     "hello\n",
		"sub/b.txt": "world\n",
	}))

	reg := archive.NewRegistry()
	reg.Register(vfs.ArchiveZip, ziphandler.New())

	return resolver.New(s, reg, cache.New(10)), s
}

func TestResolvePlainHierarchy(t *testing.T) {
	r, _ := newFixture(t)
	ctx := context.Background()

	n, err := r.Resolve(ctx, vfs.RootNode{}, "my-bucket")
	require.NoError(t, err)
	require.Equal(t, vfs.KindBucket, n.Kind())

	n, err = r.Resolve(ctx, n, "logs/2024/")
	require.NoError(t, err)
	require.Equal(t, vfs.KindPrefix, n.Kind())
	require.Equal(t, "/my-bucket/logs/2024/", n.Path().AsDisplay())

	n, err = r.Resolve(ctx, n, "app.log")
	require.NoError(t, err)
	require.Equal(t, vfs.KindObject, n.Kind())
}

func TestResolveAbsoluteResetsToRoot(t *testing.T) {
	r, _ := newFixture(t)
	ctx := context.Background()

	n, err := r.Resolve(ctx, vfs.RootNode{}, "my-bucket/logs")
	require.NoError(t, err)
	require.Equal(t, vfs.KindPrefix, n.Kind())

	n, err = r.Resolve(ctx, n, "/my-bucket")
	require.NoError(t, err)
	require.Equal(t, vfs.KindBucket, n.Kind())
}

func TestResolveDotDotFromPrefix(t *testing.T) {
	r, _ := newFixture(t)
	ctx := context.Background()

	n, err := r.Resolve(ctx, vfs.RootNode{}, "my-bucket/logs/2024")
	require.NoError(t, err)
	require.Equal(t, vfs.KindPrefix, n.Kind())

	n, err = r.Resolve(ctx, n, "..")
	require.NoError(t, err)
	require.Equal(t, vfs.KindPrefix, n.Kind())
	require.Equal(t, "/my-bucket/logs/", n.Path().AsDisplay())
}

func TestResolveDescendsIntoZipArchive(t *testing.T) {
	r, _ := newFixture(t)
	ctx := context.Background()

	n, err := r.Resolve(ctx, vfs.RootNode{}, "my-bucket/backups/data.zip")
	require.NoError(t, err)
	require.Equal(t, vfs.KindArchive, n.Kind())
	require.Equal(t, "/my-bucket/backups/data.zip/", n.Path().AsDisplay())

	n, err = r.Resolve(ctx, n, "sub")
	require.NoError(t, err)
	require.Equal(t, vfs.KindArchive, n.Kind())

	n, err = r.Resolve(ctx, n, "b.txt")
	require.NoError(t, err)
	require.Equal(t, vfs.KindArchiveEntry, n.Kind())
	entry := n.(vfs.ArchiveEntryNode)
	require.Equal(t, "sub/b.txt", entry.EntryPath)
}

func TestResolveDotDotFromArchiveEntryAtRootGoesToParentOfArchive(t *testing.T) {
	r, _ := newFixture(t)
	ctx := context.Background()

	archiveNode, err := r.Resolve(ctx, vfs.RootNode{}, "my-bucket/backups/data.zip")
	require.NoError(t, err)

	entryNode, err := r.Resolve(ctx, archiveNode, "a.txt")
	require.NoError(t, err)
	require.Equal(t, vfs.KindArchiveEntry, entryNode.Kind())

	parent, err := r.Resolve(ctx, entryNode, "..")
	require.NoError(t, err)
	require.Equal(t, vfs.KindPrefix, parent.Kind())
	require.Equal(t, "/my-bucket/backups/", parent.Path().AsDisplay())
}

func TestResolveNotFound(t *testing.T) {
	r, _ := newFixture(t)
	ctx := context.Background()

	bucket, err := r.Resolve(ctx, vfs.RootNode{}, "my-bucket")
	require.NoError(t, err)

	_, err = r.Resolve(ctx, bucket, "nonexistent")
	require.Error(t, err)
	require.Equal(t, vfs.KindNotFound, vfs.KindOf(err))
}

func TestResolveCdIntoPlainFileIsNotADirectory(t *testing.T) {
	r, _ := newFixture(t)
	ctx := context.Background()

	obj, err := r.Resolve(ctx, vfs.RootNode{}, "my-bucket/logs/2024/app.log")
	require.NoError(t, err)
	require.Equal(t, vfs.KindObject, obj.Kind())

	_, err = r.Resolve(ctx, obj, "anything")
	require.Error(t, err)
	require.Equal(t, vfs.KindNotADirectory, vfs.KindOf(err))
}

func TestResolveWildcardIsAmbiguous(t *testing.T) {
	r, _ := newFixture(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, vfs.RootNode{}, "my-bucket/logs/*")
	require.Error(t, err)
	require.Equal(t, vfs.KindAmbiguous, vfs.KindOf(err))
}
