// Package resolver is the path resolver (C8): it walks a textual path,
// segment by segment, from a current vfs.Node to the vfs.Node it names,
// stepping through the remote store via store.ObjectStore and into
// archive interiors via the C7 cache and the archive.Registry (spec.md
// §4.8). It never talks to a store or archive handler directly except
// through those two ports.
package resolver

import (
	"context"
	"strings"

	"github.com/nabbar/s3sh/archive"
	"github.com/nabbar/s3sh/cache"
	"github.com/nabbar/s3sh/progress"
	"github.com/nabbar/s3sh/store"
	"github.com/nabbar/s3sh/vfs"
)

// Resolver resolves textual paths against the store/archive ports. The
// zero value is not usable; construct with New.
type Resolver struct {
	store    store.ObjectStore
	registry *archive.Registry
	cache    *cache.Cache
}

// New returns a Resolver backed by s, the archive handlers in reg, and the
// shared archive index cache c.
func New(s store.ObjectStore, reg *archive.Registry, c *cache.Cache) *Resolver {
	return &Resolver{store: s, registry: reg, cache: c}
}

// Resolve walks text from current, returning the node it names. An
// absolute text (leading "/") resolves from vfs.RootNode{} regardless of
// current (§4.8 rule 1).
func (r *Resolver) Resolve(ctx context.Context, current vfs.Node, text string) (vfs.Node, error) {
	segs, absolute := splitSegments(text)

	node := current
	if absolute || node == nil {
		node = vfs.RootNode{}
	}

	for _, seg := range segs {
		if err := ctx.Err(); err != nil {
			return nil, vfs.Canceled(err)
		}

		if strings.ContainsAny(seg, "*?") {
			// Wildcards are an `ls` argument feature (§4.8 rule 4); a
			// resolver call names exactly one node.
			return nil, WrapKind(ErrorAmbiguous, vfs.KindAmbiguous, nil)
		}
		if strings.ContainsRune(seg, 0) {
			return nil, WrapKind(ErrorUnsafePath, vfs.KindUnsafePath, nil)
		}

		next, err := r.step(ctx, node, seg)
		if err != nil {
			return nil, err
		}
		node = next
	}

	return node, nil
}

// splitSegments tokenizes text into "/"-delimited segments, keeping "."
// and ".." as literal tokens (unlike vfs.Parse, which collapses them):
// the resolver needs to see them to apply node-type-aware stepping rather
// than blind textual normalization.
func splitSegments(text string) (segs []string, absolute bool) {
	absolute = strings.HasPrefix(text, "/")
	for _, s := range strings.Split(text, "/") {
		if s == "" {
			continue
		}
		segs = append(segs, s)
	}
	return segs, absolute
}

// step computes the node one segment away from node.
func (r *Resolver) step(ctx context.Context, node vfs.Node, seg string) (vfs.Node, error) {
	if seg == "." {
		return node, nil
	}
	if seg == ".." {
		return r.stepUp(ctx, node)
	}

	switch n := node.(type) {
	case vfs.RootNode:
		return r.stepIntoBucket(ctx, seg)
	case vfs.BucketNode:
		return r.stepInBucket(ctx, n.Name, "", seg)
	case vfs.PrefixNode:
		return r.stepInBucket(ctx, n.Bucket, n.Prefix+"/", seg)
	case vfs.ArchiveNode:
		return r.stepInArchive(ctx, n, seg)
	case vfs.ArchiveEntryNode:
		// Entries are leaves (§4.8 rule 2's archive clause: a readable-as-
		// archive entry is NOT descended into, so every ArchiveEntryNode
		// is a file). Stepping forward from a file is never a directory.
		return nil, WrapKind(ErrorNotADirectory, vfs.KindNotADirectory, nil)
	case vfs.ObjectNode:
		return nil, WrapKind(ErrorNotADirectory, vfs.KindNotADirectory, nil)
	}

	return nil, WrapKind(ErrorNotFound, vfs.KindNotFound, nil)
}

// stepIntoBucket verifies name exists via a listing call, per §4.8 rule 2
// ("From Root → Bucket ... verified by head/list"). The store already
// returns a vfs.Kind-wrapped error (NotFound, NetworkError, ...), so it is
// propagated as-is rather than collapsed to a single kind here.
func (r *Resolver) stepIntoBucket(ctx context.Context, name string) (vfs.Node, error) {
	if _, err := r.store.ListPrefix(ctx, name, "", "/", ""); err != nil {
		return nil, err
	}
	return vfs.BucketNode{Name: name}, nil
}

// stepInBucket resolves seg against basePrefix (already "/"-suffixed, or
// "" at the bucket root) inside bucket: a common prefix yields Prefix, an
// exact object key yields Object or Archive.
func (r *Resolver) stepInBucket(ctx context.Context, bucket, basePrefix, seg string) (vfs.Node, error) {
	full := basePrefix + seg

	res, err := r.store.ListPrefix(ctx, bucket, full, "/", "")
	if err != nil {
		return nil, err
	}

	for _, cp := range res.CommonPrefixes {
		if cp == full+"/" {
			return vfs.PrefixNode{Bucket: bucket, Prefix: full}, nil
		}
	}

	for _, o := range res.Objects {
		if o.Key != full {
			continue
		}
		if kind := vfs.DetectArchiveKind(o.Key); !kind.IsNone() {
			if _, ok := r.registry.For(kind); ok {
				return vfs.ArchiveNode{Bucket: bucket, Key: o.Key, ArchiveKind: kind}, nil
			}
		}
		return vfs.ObjectNode{Bucket: bucket, Key: o.Key, Size: o.Size}, nil
	}

	return nil, WrapKind(ErrorNotFound, vfs.KindNotFound, nil)
}

// stepInArchive resolves seg against n's interior, building (or reusing)
// the archive's index via the C7 cache.
func (r *Resolver) stepInArchive(ctx context.Context, n vfs.ArchiveNode, seg string) (vfs.Node, error) {
	idx, err := r.index(ctx, n)
	if err != nil {
		return nil, err
	}

	interior := n.InnerPrefix.Push(seg)
	interiorPath := strings.Join(interior.Segments, "/")

	if e, ok := idx.FindEntry(interiorPath); ok {
		if e.IsDir {
			dir := interior
			dir.Dir = true
			return vfs.ArchiveNode{Bucket: n.Bucket, Key: n.Key, ArchiveKind: n.ArchiveKind, InnerPrefix: dir}, nil
		}

		// Nested archives are out of scope (§4.8 rule 2, §9 "Nested
		// archives"): even an entry whose name looks like an archive stays
		// a plain file here.
		return vfs.ArchiveEntryNode{Archive: n, EntryPath: e.Path, Size: e.Size, IsDir: false, Payload: e.Payload}, nil
	}

	// No catalog record names this path exactly: zip (and occasionally
	// tar) archives commonly omit explicit directory records, so a
	// directory can exist only implicitly, via a deeper entry's path.
	// ListChildren already synthesizes those; consult it before giving up.
	basePrefix := ""
	if len(n.InnerPrefix.Segments) > 0 {
		basePrefix = strings.Join(n.InnerPrefix.Segments, "/") + "/"
	}
	want := basePrefix + seg + "/"
	for _, c := range idx.ListChildren(basePrefix) {
		if c.IsDir && c.Path == want {
			dir := interior
			dir.Dir = true
			return vfs.ArchiveNode{Bucket: n.Bucket, Key: n.Key, ArchiveKind: n.ArchiveKind, InnerPrefix: dir}, nil
		}
	}

	return nil, WrapKind(ErrorNotFound, vfs.KindNotFound, nil)
}

func (r *Resolver) index(ctx context.Context, n vfs.ArchiveNode) (*archive.Index, error) {
	h, ok := r.registry.For(n.ArchiveKind)
	if !ok {
		return nil, archive.WrapKind(archive.ErrorUnsupportedArchive, vfs.KindUnsupportedArchive, nil)
	}

	key := cache.Key{Bucket: n.Bucket, Object: n.Key, Kind: n.ArchiveKind}
	return r.cache.GetOrBuild(ctx, key, func(ctx context.Context) (*archive.Index, error) {
		return h.BuildIndex(ctx, r.store, n.Bucket, n.Key, progress.Discard)
	})
}

// stepUp resolves ".." from node. Every kind pops exactly one level, with
// one explicit exception (§4.8 rule 3): ".." from an ArchiveEntryNode
// whose entry has no directory component (it sits at the archive's own
// root) yields the parent of the Archive node, not the archive root
// again.
func (r *Resolver) stepUp(ctx context.Context, node vfs.Node) (vfs.Node, error) {
	switch n := node.(type) {
	case vfs.RootNode:
		return n, nil

	case vfs.BucketNode:
		return vfs.RootNode{}, nil

	case vfs.PrefixNode:
		parent := strings.TrimSuffix(n.Prefix, "/")
		if i := strings.LastIndex(parent, "/"); i >= 0 {
			return vfs.PrefixNode{Bucket: n.Bucket, Prefix: parent[:i]}, nil
		}
		return vfs.BucketNode{Name: n.Bucket}, nil

	case vfs.ArchiveNode:
		if len(n.InnerPrefix.Segments) == 0 {
			return parentOfKey(n.Bucket, n.Key), nil
		}
		return vfs.ArchiveNode{Bucket: n.Bucket, Key: n.Key, ArchiveKind: n.ArchiveKind, InnerPrefix: n.InnerPrefix.Pop()}, nil

	case vfs.ArchiveEntryNode:
		if i := strings.LastIndex(n.EntryPath, "/"); i >= 0 {
			dir := vfs.Parse(n.EntryPath[:i] + "/")
			return vfs.ArchiveNode{Bucket: n.Archive.Bucket, Key: n.Archive.Key, ArchiveKind: n.Archive.ArchiveKind, InnerPrefix: dir}, nil
		}
		// No directory component: the explicit rule-3 case.
		return parentOfKey(n.Archive.Bucket, n.Archive.Key), nil

	case vfs.ObjectNode:
		return parentOfKey(n.Bucket, n.Key), nil
	}

	return nil, WrapKind(ErrorNotFound, vfs.KindNotFound, nil)
}

// parentOfKey returns the Prefix (or Bucket, if key has no "/") node that
// contains key, used both when leaving an archive at its own root and when
// leaving a plain object.
func parentOfKey(bucket, key string) vfs.Node {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return vfs.PrefixNode{Bucket: bucket, Prefix: key[:i]}
	}
	return vfs.BucketNode{Name: bucket}
}
