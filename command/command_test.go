package command_test

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"

	"github.com/nabbar/s3sh/archive"
	"github.com/nabbar/s3sh/archive/parquethandler"
	"github.com/nabbar/s3sh/archive/ziphandler"
	"github.com/nabbar/s3sh/cache"
	"github.com/nabbar/s3sh/command"
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

type fixture struct {
	disp   *command.Dispatcher
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := memstore.New()
	s.PutBucket("alpha-bucket")
	s.PutBucket("beta-bucket")
	s.PutObject("alpha-bucket", "logs/2024/app.log", []byte("hi\n"))
	s.PutObject("alpha-bucket", "logs/2023/app.log", []byte("hi\n"))
	s.PutObject("alpha-bucket", "readme.md", []byte("welcome\n"))
	s.PutObject("alpha-bucket", "data.zip", buildZip(t, map[string]string{
		"a.txt":     "hello\n",
		"sub/b.txt": "world\n",
	}))
	s.PutObject("alpha-bucket", "data.parquet", buildParquet(t, []sampleRow{
		{ID: 1, Name: "alice"},
		{ID: 2, Name: "bob"},
	}))

	reg := archive.NewRegistry()
	reg.Register(vfs.ArchiveZip, ziphandler.New())
	reg.Register(vfs.ArchiveParquet, parquethandler.New())

	idxCache := cache.New(10)
	r := resolver.New(s, reg, idxCache)

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	d := command.New(s, reg, idxCache, r, out, errOut)

	return &fixture{disp: d, out: out, errOut: errOut}
}

func TestPwdAtRoot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.disp.Execute(context.Background(), "pwd"))
	require.Equal(t, "/\n", f.out.String())
}

func TestCdAndPwd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.disp.Execute(ctx, "cd alpha-bucket/logs/2024/"))
	f.out.Reset()
	require.NoError(t, f.disp.Execute(ctx, "pwd"))
	require.Equal(t, "/alpha-bucket/logs/2024/\n", f.out.String())
}

func TestLsRootListsBucketsSorted(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.disp.Execute(context.Background(), "ls"))
	require.Equal(t, "alpha-bucket/\nbeta-bucket/\n", f.out.String())
}

func TestLsBucketDirectoriesBeforeFiles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.disp.Execute(context.Background(), "ls alpha-bucket"))
	require.Equal(t, "logs/\ndata.parquet\ndata.zip\nreadme.md\n", f.out.String())
}

func TestCdNonexistentReportsE6AndLeavesNodeUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.disp.Execute(ctx, "cd alpha-bucket"))
	err := f.disp.Execute(ctx, "cd nonexistent")
	require.Error(t, err)
	require.Equal(t, "cd: nonexistent: No such file or directory\n", f.errOut.String())

	f.out.Reset()
	require.NoError(t, f.disp.Execute(ctx, "pwd"))
	require.Equal(t, "/alpha-bucket/\n", f.out.String())
}

func TestCdIntoPlainFileIsNotADirectory(t *testing.T) {
	f := newFixture(t)
	err := f.disp.Execute(context.Background(), "cd alpha-bucket/readme.md")
	require.Error(t, err)
	require.Equal(t, "cd: alpha-bucket/readme.md: Not a directory\n", f.errOut.String())
}

func TestCatPlainObject(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.disp.Execute(context.Background(), "cat alpha-bucket/readme.md"))
	require.Equal(t, "welcome\n", f.out.String())
}

func TestCatDirectoryReportsIsADirectory(t *testing.T) {
	f := newFixture(t)
	err := f.disp.Execute(context.Background(), "cat alpha-bucket/logs")
	require.Error(t, err)
	require.Equal(t, "cat: alpha-bucket/logs: Is a directory\n", f.errOut.String())
}

func TestCatIntoZipEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.disp.Execute(ctx, "cd alpha-bucket/data.zip"))

	f.out.Reset()
	require.NoError(t, f.disp.Execute(ctx, "cat a.txt"))
	require.Equal(t, "hello\n", f.out.String())

	f.out.Reset()
	require.NoError(t, f.disp.Execute(ctx, "cat sub/b.txt"))
	require.Equal(t, "world\n", f.out.String())
}

func TestCatSourceOrderAcrossMultipleArgs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.disp.Execute(ctx, "cd alpha-bucket/data.zip"))
	f.out.Reset()
	require.NoError(t, f.disp.Execute(ctx, "cat sub/b.txt a.txt"))
	require.Equal(t, "world\nhello\n", f.out.String())
}

func TestLsGlobFiltersSiblings(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.disp.Execute(context.Background(), "ls alpha-bucket/data.*"))
	require.Equal(t, "data.parquet\ndata.zip\n", f.out.String())
}

func TestCatParquetSingleColumn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.disp.Execute(ctx, "cd alpha-bucket/data.parquet/columns"))
	require.NoError(t, f.disp.Execute(ctx, "cat name"))
	require.Contains(t, f.out.String(), "alice")
	require.Contains(t, f.out.String(), "bob")
}

func TestCatParquetMultiColumnRendersTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.disp.Execute(ctx, "cd alpha-bucket/data.parquet/columns"))
	require.NoError(t, f.disp.Execute(ctx, "cat id name"))

	lines := bytes.Split(bytes.TrimSuffix(f.out.Bytes(), []byte("\n")), []byte("\n"))
	require.Len(t, lines, 3) // header + 2 rows
	require.Contains(t, string(lines[0]), "id")
	require.Contains(t, string(lines[0]), "name")
	require.Contains(t, string(lines[1]), "alice")
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	err := f.disp.Execute(context.Background(), "frobnicate")
	require.Error(t, err)
	require.Equal(t, "frobnicate: command not found\n", f.errOut.String())
}
