package ziphandler_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/nabbar/s3sh/archive/ziphandler"
	"github.com/nabbar/s3sh/store/memstore"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestBuildIndexAndExtract(t *testing.T) {
	data := buildZip(t, map[string]string{
		"foo/a.txt":     "hello",
		"foo/bar/b.txt": "world, this is deflated content",
	})

	s := memstore.New()
	s.PutObject("bucket", "archive.zip", data)

	h := ziphandler.New()
	idx, err := h.BuildIndex(context.Background(), s, "bucket", "archive.zip", nil)
	require.NoError(t, err)
	require.True(t, idx.Len() >= 2)

	rc, err := h.Extract(context.Background(), s, "bucket", "archive.zip", idx, "foo/a.txt")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestListEntriesSynthesizesDirectories(t *testing.T) {
	data := buildZip(t, map[string]string{
		"foo/a.txt": "x",
	})

	s := memstore.New()
	s.PutObject("bucket", "archive.zip", data)

	h := ziphandler.New()
	idx, err := h.BuildIndex(context.Background(), s, "bucket", "archive.zip", nil)
	require.NoError(t, err)

	children, err := h.ListEntries(idx, "")
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.True(t, children[0].IsDir)
	require.Equal(t, "foo/", children[0].Path)
}

func TestExtractUnknownEntryNotFound(t *testing.T) {
	data := buildZip(t, map[string]string{"a.txt": "x"})

	s := memstore.New()
	s.PutObject("bucket", "archive.zip", data)

	h := ziphandler.New()
	idx, err := h.BuildIndex(context.Background(), s, "bucket", "archive.zip", nil)
	require.NoError(t, err)

	_, err = h.Extract(context.Background(), s, "bucket", "archive.zip", idx, "missing.txt")
	require.Error(t, err)
}
