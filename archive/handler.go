package archive

import (
	"context"
	"io"

	"github.com/nabbar/s3sh/progress"
	"github.com/nabbar/s3sh/store"
	"github.com/nabbar/s3sh/vfs"
)

// Handler is the three-operation contract every container format
// implements (§4.3). BuildIndex must be idempotent and deterministic for a
// given object (assumed immutable for the session).
type Handler interface {
	BuildIndex(ctx context.Context, s store.ObjectStore, bucket, key string, sink progress.Sink) (*Index, error)
	ListEntries(idx *Index, interiorPrefix string) ([]Entry, error)
	Extract(ctx context.Context, s store.ObjectStore, bucket, key string, idx *Index, entryPath string) (io.ReadCloser, error)
}

// Registry dispatches by vfs.ArchiveKind to the Handler that implements
// it; this is the "function table keyed by the variant" §9 calls for,
// not open interface inheritance.
type Registry struct {
	handlers map[vfs.ArchiveKind]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[vfs.ArchiveKind]Handler)}
}

// Register binds a Handler to the kind(s) it implements.
func (r *Registry) Register(k vfs.ArchiveKind, h Handler) {
	r.handlers[k] = h
}

// For returns the Handler registered for kind, if any.
func (r *Registry) For(k vfs.ArchiveKind) (Handler, bool) {
	h, ok := r.handlers[k]
	return h, ok
}
