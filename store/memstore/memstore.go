// Package memstore is an in-memory store.ObjectStore fixture: no network,
// no credentials, used by resolver/completion/archive tests to validate
// the VFS/archive core's §8 testable properties without a real endpoint.
package memstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/nabbar/s3sh/store"
	"github.com/nabbar/s3sh/vfs"
)

type object struct {
	body []byte
	mod  time.Time
}

type Store struct {
	buckets map[string]map[string]*object
}

// New builds an empty fixture store.
func New() *Store {
	return &Store{buckets: make(map[string]map[string]*object)}
}

// PutBucket creates an empty bucket if it does not already exist.
func (s *Store) PutBucket(name string) {
	if _, ok := s.buckets[name]; !ok {
		s.buckets[name] = make(map[string]*object)
	}
}

// PutObject seeds an object's body into a bucket, creating the bucket if
// needed.
func (s *Store) PutObject(bucket, key string, body []byte) {
	s.PutBucket(bucket)
	s.buckets[bucket][key] = &object{body: body, mod: time.Unix(0, 0)}
}

func (s *Store) ListBuckets(ctx context.Context) ([]store.BucketInfo, error) {
	names := make([]string, 0, len(s.buckets))
	for n := range s.buckets {
		names = append(names, n)
	}
	sort.Strings(names)

	res := make([]store.BucketInfo, 0, len(names))
	for _, n := range names {
		res = append(res, store.BucketInfo{Name: n})
	}
	return res, nil
}

func (s *Store) ListPrefix(ctx context.Context, bucket, prefix, delimiter, continuation string) (store.ListResult, error) {
	objs, ok := s.buckets[bucket]
	if !ok {
		return store.ListResult{}, vfs.WrapKind(store.ErrorBucketNotFound.Error(nil), vfs.KindNotFound)
	}

	seenPrefixes := make(map[string]struct{})
	var result store.ListResult

	keys := make([]string, 0, len(objs))
	for k := range objs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]

		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(delimiter)]
				if _, dup := seenPrefixes[cp]; !dup {
					seenPrefixes[cp] = struct{}{}
					result.CommonPrefixes = append(result.CommonPrefixes, cp)
				}
				continue
			}
		}

		result.Objects = append(result.Objects, store.ObjectInfo{
			Key:          k,
			Size:         uint64(len(objs[k].body)),
			LastModified: objs[k].mod,
		})
	}

	sort.Strings(result.CommonPrefixes)
	return result, nil
}

func (s *Store) Head(ctx context.Context, bucket, key string) (store.HeadInfo, error) {
	objs, ok := s.buckets[bucket]
	if !ok {
		return store.HeadInfo{}, vfs.WrapKind(store.ErrorBucketNotFound.Error(nil), vfs.KindNotFound)
	}
	o, ok := objs[key]
	if !ok {
		return store.HeadInfo{}, vfs.WrapKind(store.ErrorObjectNotFound.Error(nil), vfs.KindNotFound)
	}
	return store.HeadInfo{Size: uint64(len(o.body))}, nil
}

func (s *Store) GetRange(ctx context.Context, bucket, key string, r store.Range) (io.ReadCloser, error) {
	objs, ok := s.buckets[bucket]
	if !ok {
		return nil, vfs.WrapKind(store.ErrorBucketNotFound.Error(nil), vfs.KindNotFound)
	}
	o, ok := objs[key]
	if !ok {
		return nil, vfs.WrapKind(store.ErrorObjectNotFound.Error(nil), vfs.KindNotFound)
	}

	n := int64(len(o.body))
	start, end := int64(0), n

	switch {
	case r.Suffix > 0:
		start = n - r.Suffix
		if start < 0 {
			start = 0
		}
	case r.Open:
		start = r.Start
	default:
		start = r.Start
		end = r.End + 1
		if end > n {
			end = n
		}
	}

	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	if end < start {
		end = start
	}

	return io.NopCloser(bytes.NewReader(o.body[start:end])), nil
}

func (s *Store) GetFull(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return s.GetRange(ctx, bucket, key, store.FullRange())
}
