package vfs_test

import (
	"testing"

	"github.com/nabbar/s3sh/vfs"
	"github.com/stretchr/testify/require"
)

func TestBucketNodePath(t *testing.T) {
	n := vfs.BucketNode{Name: "my-bucket"}
	require.Equal(t, "/my-bucket/", n.Path().AsDisplay())
}

func TestObjectNodePathHasNoTrailingSlash(t *testing.T) {
	n := vfs.ObjectNode{Bucket: "my-bucket", Key: "logs/2024/a.txt"}
	require.Equal(t, "/my-bucket/logs/2024/a.txt", n.Path().AsDisplay())
}

func TestArchiveNodePath(t *testing.T) {
	n := vfs.ArchiveNode{Bucket: "my-bucket", Key: "backups/data.tar.gz", ArchiveKind: vfs.ArchiveTarGzip}
	require.Equal(t, "/my-bucket/backups/data.tar.gz/", n.Path().AsDisplay())
}

func TestArchiveEntryNodePath(t *testing.T) {
	a := vfs.ArchiveNode{Bucket: "my-bucket", Key: "data.zip", ArchiveKind: vfs.ArchiveZip}
	e := vfs.ArchiveEntryNode{Archive: a, EntryPath: "sub/b.txt"}
	require.Equal(t, "/my-bucket/data.zip/sub/b.txt", e.Path().AsDisplay())
}

func TestDetectArchiveKindPrecedence(t *testing.T) {
	require.Equal(t, vfs.ArchiveTarBzip2, vfs.DetectArchiveKind("x.tar.bz2"))
	require.Equal(t, vfs.ArchiveTarBzip2, vfs.DetectArchiveKind("x.tbz2"))
	require.Equal(t, vfs.ArchiveTarGzip, vfs.DetectArchiveKind("x.tar.gz"))
	require.Equal(t, vfs.ArchiveTarGzip, vfs.DetectArchiveKind("x.tgz"))
	require.Equal(t, vfs.ArchiveTar, vfs.DetectArchiveKind("x.tar"))
	require.Equal(t, vfs.ArchiveZip, vfs.DetectArchiveKind("x.zip"))
	require.Equal(t, vfs.ArchiveParquet, vfs.DetectArchiveKind("x.parquet"))
	require.Equal(t, vfs.ArchiveNone, vfs.DetectArchiveKind("x.txt"))
	require.Equal(t, vfs.ArchiveTar, vfs.DetectArchiveKind("X.TAR"))
}
