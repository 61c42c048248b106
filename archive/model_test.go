package archive_test

import (
	"testing"

	"github.com/nabbar/s3sh/archive"
	"github.com/nabbar/s3sh/vfs"
	"github.com/stretchr/testify/require"
)

func buildSampleIndex() *archive.Index {
	idx := archive.NewIndex(vfs.ArchiveTar)
	idx.Add(archive.Entry{Path: "foo/", IsDir: true})
	idx.Add(archive.Entry{Path: "foo/a.txt", Size: 5})
	idx.Add(archive.Entry{Path: "foo/bar/b.txt", Size: 7})
	idx.Add(archive.Entry{Path: "top.txt", Size: 3})
	return idx
}

func TestFindEntryTrailingSlashTolerance(t *testing.T) {
	idx := buildSampleIndex()

	e1, ok1 := idx.FindEntry("foo")
	e2, ok2 := idx.FindEntry("foo/")
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, e1, e2)
	require.True(t, e1.IsDir)
}

func TestListChildrenSortsDirectoriesFirst(t *testing.T) {
	idx := buildSampleIndex()

	children := idx.ListChildren("")
	require.Len(t, children, 2)
	require.True(t, children[0].IsDir)
	require.Equal(t, "foo/", children[0].Path)
	require.False(t, children[1].IsDir)
	require.Equal(t, "top.txt", children[1].Path)
}

func TestListChildrenIsDeterministic(t *testing.T) {
	idx := buildSampleIndex()

	first := idx.ListChildren("foo/")
	second := idx.ListChildren("foo/")
	require.Equal(t, first, second)
	require.Len(t, first, 2)
	require.Equal(t, "foo/bar/", first[0].Path)
	require.Equal(t, "foo/a.txt", first[1].Path)
}
