// Package store defines the ObjectStore port: the minimal remote-storage
// interface the VFS/archive core talks to. The core never imports a vendor
// SDK directly; store/s3store implements this port against AWS S3 (or any
// S3-compatible, path-style endpoint), and store/memstore backs tests.
package store

import (
	"context"
	"io"
	"time"
)

// BucketInfo names a bucket the caller can list.
type BucketInfo struct {
	Name         string
	CreationDate time.Time
}

// ObjectInfo describes a single key returned by a prefix listing.
type ObjectInfo struct {
	Key          string
	Size         uint64
	LastModified time.Time
}

// ListResult is one page of a delimited prefix listing.
type ListResult struct {
	CommonPrefixes   []string
	Objects          []ObjectInfo
	NextContinuation string
}

// Truncated reports whether a further page is available.
func (r ListResult) Truncated() bool {
	return r.NextContinuation != ""
}

// HeadInfo is the metadata returned by Head.
type HeadInfo struct {
	Size        uint64
	ContentType string
}

// Range selects a byte interval for GetRange. Exactly one of the following
// holds: Suffix > 0 selects the last Suffix bytes of the object; otherwise
// Start is the first byte and Open (with End ignored) requests "to EOF",
// or End is the inclusive last byte.
type Range struct {
	Start  int64
	End    int64
	Open   bool
	Suffix int64
}

// FullRange requests the entire object via GetRange, equivalent to GetFull.
func FullRange() Range {
	return Range{Start: 0, Open: true}
}

// SuffixRange requests the last n bytes of the object.
func SuffixRange(n int64) Range {
	return Range{Suffix: n}
}

// ClosedRange requests the inclusive byte interval [start, end].
func ClosedRange(start, end int64) Range {
	return Range{Start: start, End: end}
}

// OpenRange requests [start, EOF).
func OpenRange(start int64) Range {
	return Range{Start: start, Open: true}
}

// ListPageCap bounds how many objects a completion-driven listing fetches
// in a single page before giving up and returning what it has (§4.1).
const ListPageCap = 1000

// ObjectStore is the port every VFS/archive component depends on. All
// operations may fail with a vfs.Kind-wrapped error: NotFound,
// PermissionDenied, AuthError, NetworkError.
type ObjectStore interface {
	// ListBuckets lists every bucket visible to the caller's credentials.
	ListBuckets(ctx context.Context) ([]BucketInfo, error)

	// ListPrefix lists one delimited page under prefix. continuation, when
	// non-empty, resumes a prior page via its NextContinuation.
	ListPrefix(ctx context.Context, bucket, prefix, delimiter, continuation string) (ListResult, error)

	// Head fetches object metadata without transferring its body.
	Head(ctx context.Context, bucket, key string) (HeadInfo, error)

	// GetRange opens a stream over the requested byte interval. The
	// caller must Close the returned reader.
	GetRange(ctx context.Context, bucket, key string, r Range) (io.ReadCloser, error)

	// GetFull opens a stream over the entire object body.
	GetFull(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
