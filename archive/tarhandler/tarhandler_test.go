package tarhandler_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"

	"github.com/nabbar/s3sh/archive/tarhandler"
	"github.com/nabbar/s3sh/store/memstore"
	"github.com/nabbar/s3sh/vfs"
	"github.com/stretchr/testify/require"
)

func buildTar(t *testing.T, gzipped bool, files map[string]string) []byte {
	t.Helper()

	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Size: int64(len(content)),
			Mode: 0644,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())

	if !gzipped {
		return raw.Bytes()
	}

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return gz.Bytes()
}

func TestBuildIndexAndExtractPlainTar(t *testing.T) {
	data := buildTar(t, false, map[string]string{
		"foo/a.txt": "hello tar",
	})

	s := memstore.New()
	s.PutObject("bucket", "archive.tar", data)

	h := tarhandler.New(vfs.ArchiveTar)
	idx, err := h.BuildIndex(context.Background(), s, "bucket", "archive.tar", nil)
	require.NoError(t, err)

	children := idx.ListChildren("")
	require.Len(t, children, 1)
	require.True(t, children[0].IsDir)

	rc, err := h.Extract(context.Background(), s, "bucket", "archive.tar", idx, "foo/a.txt")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello tar", string(got))
}

func TestBuildIndexAndExtractGzipTar(t *testing.T) {
	data := buildTar(t, true, map[string]string{
		"a.txt":     "one",
		"dir/b.txt": "two-two-two",
	})

	s := memstore.New()
	s.PutObject("bucket", "archive.tar.gz", data)

	h := tarhandler.New(vfs.ArchiveTarGzip)
	idx, err := h.BuildIndex(context.Background(), s, "bucket", "archive.tar.gz", nil)
	require.NoError(t, err)
	require.True(t, idx.Len() >= 2)

	rc, err := h.Extract(context.Background(), s, "bucket", "archive.tar.gz", idx, "dir/b.txt")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "two-two-two", string(got))
}

func TestExtractDirectoryIsNotAFile(t *testing.T) {
	data := buildTar(t, false, map[string]string{
		"foo/a.txt": "x",
	})

	s := memstore.New()
	s.PutObject("bucket", "archive.tar", data)

	h := tarhandler.New(vfs.ArchiveTar)
	idx, err := h.BuildIndex(context.Background(), s, "bucket", "archive.tar", nil)
	require.NoError(t, err)

	_, err = h.Extract(context.Background(), s, "bucket", "archive.tar", idx, "foo/")
	require.Error(t, err)
	require.Equal(t, vfs.KindNotAFile, vfs.KindOf(err))
}
