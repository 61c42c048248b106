package memstore_test

import (
	"context"
	"io"
	"testing"

	"github.com/nabbar/s3sh/store"
	"github.com/nabbar/s3sh/store/memstore"
	"github.com/stretchr/testify/require"
)

func TestListPrefixDelimits(t *testing.T) {
	s := memstore.New()
	s.PutObject("b", "logs/2024/a.txt", []byte("a"))
	s.PutObject("b", "logs/2024/b.txt", []byte("b"))
	s.PutObject("b", "logs/readme.txt", []byte("c"))

	res, err := s.ListPrefix(context.Background(), "b", "logs/", "/", "")
	require.NoError(t, err)
	require.Equal(t, []string{"logs/2024/"}, res.CommonPrefixes)
	require.Len(t, res.Objects, 1)
	require.Equal(t, "logs/readme.txt", res.Objects[0].Key)
}

func TestGetRangeSuffix(t *testing.T) {
	s := memstore.New()
	s.PutObject("b", "k", []byte("hello world"))

	rc, err := s.GetRange(context.Background(), "b", "k", store.SuffixRange(5))
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "world", string(body))
}

func TestGetRangeClosed(t *testing.T) {
	s := memstore.New()
	s.PutObject("b", "k", []byte("hello world"))

	rc, err := s.GetRange(context.Background(), "b", "k", store.ClosedRange(0, 4))
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
}

func TestHeadNotFound(t *testing.T) {
	s := memstore.New()
	s.PutBucket("b")

	_, err := s.Head(context.Background(), "b", "missing")
	require.Error(t, err)
}
