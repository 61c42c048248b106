package vfs_test

import (
	"testing"

	"github.com/nabbar/s3sh/vfs"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"/",
		"/my-bucket/",
		"/my-bucket/logs/2024/",
		"/my-bucket/backups/data.tar.gz",
	}

	for _, c := range cases {
		p := vfs.Parse(c)
		got := vfs.Parse(p.AsDisplay())
		require.True(t, p.Equal(got), "round-trip mismatch for %q: %q -> %q", c, p.AsDisplay(), got.AsDisplay())
	}
}

func TestParseNormalizesDotSegments(t *testing.T) {
	p := vfs.Parse("/a/./b/../c/")
	require.Equal(t, []string{"a", "c"}, p.Segments)
	require.True(t, p.Dir)
}

func TestParseDotDotAtRootIsNoop(t *testing.T) {
	p := vfs.Parse("/../../a")
	require.Equal(t, []string{"a"}, p.Segments)
}

func TestJoinAbsoluteReplacesBase(t *testing.T) {
	base := vfs.Parse("/a/b/")
	got := vfs.Join(base, "/x/y")
	require.Equal(t, []string{"x", "y"}, got.Segments)
}

func TestJoinRelativeAppends(t *testing.T) {
	base := vfs.Parse("/a/b/")
	got := vfs.Join(base, "c/d/")
	require.Equal(t, []string{"a", "b", "c", "d"}, got.Segments)
	require.True(t, got.Dir)
}

func TestNoNormalizedSegmentIsDotOrEmpty(t *testing.T) {
	p := vfs.Parse("//a//./b/../../c/")
	for _, s := range p.Segments {
		require.NotEqual(t, "", s)
		require.NotEqual(t, ".", s)
		require.NotEqual(t, "..", s)
	}
}
