package parquethandler_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"

	"github.com/nabbar/s3sh/archive/parquethandler"
	"github.com/nabbar/s3sh/store/memstore"
)

type sampleRow struct {
	ID   int64  `parquet:"id"`
	Name string `parquet:"name"`
}

func buildParquet(t *testing.T, rows []sampleRow) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf)
	for _, r := range rows {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestBuildIndexSchemaAndSample(t *testing.T) {
	data := buildParquet(t, []sampleRow{
		{ID: 1, Name: "alice"},
		{ID: 2, Name: "bob"},
	})

	s := memstore.New()
	s.PutObject("bucket", "data.parquet", data)

	h := parquethandler.New()
	idx, err := h.BuildIndex(context.Background(), s, "bucket", "data.parquet", nil)
	require.NoError(t, err)

	children := idx.ListChildren("")
	var names []string
	for _, c := range children {
		names = append(names, c.Path)
	}
	require.Contains(t, names, "_schema.txt")
	require.Contains(t, names, "columns/")
	require.Contains(t, names, "stats/")

	rc, err := h.Extract(context.Background(), s, "bucket", "data.parquet", idx, "_schema.txt")
	require.NoError(t, err)
	defer rc.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(rc)
	require.NoError(t, err)
	require.True(t, strings.Contains(out.String(), "id"))
	require.True(t, strings.Contains(out.String(), "name"))

	rc2, err := h.Extract(context.Background(), s, "bucket", "data.parquet", idx, "columns/name")
	require.NoError(t, err)
	defer rc2.Close()

	var sample bytes.Buffer
	_, err = sample.ReadFrom(rc2)
	require.NoError(t, err)
	require.True(t, strings.Contains(sample.String(), "alice"))
}
