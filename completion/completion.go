// Package completion is the completion cache (C9): it answers the line
// editor's synchronous TAB-completion hook by listing the "parent"
// directory of the partially-typed path, bridging to asynchronous store
// or archive-index I/O through a bounded single-result channel wait
// (spec.md §4.9). Grounded on cache/'s single-flight-style fast-path/
// miss split and the teacher's context-cancellation idiom, generalized
// from "build once, many readers" to "serve stale-free or say nothing".
package completion

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nabbar/s3sh/archive"
	"github.com/nabbar/s3sh/cache"
	"github.com/nabbar/s3sh/progress"
	"github.com/nabbar/s3sh/resolver"
	"github.com/nabbar/s3sh/store"
	"github.com/nabbar/s3sh/vfs"
)

// DefaultTimeout bounds the synchronous wait a TAB press blocks for before
// giving up and returning no suggestions (§4.9 "per-fetch timeout e.g. 3s").
const DefaultTimeout = 3 * time.Second

// Entry is one listed child of a completion "parent" node.
type Entry struct {
	Name      string // bare child name, no parent prefix, no trailing "/"
	IsDir     bool
	IsArchive bool // a file whose extension makes it archive-navigable
}

type pendingFetch struct {
	done   chan struct{}
	result []Entry
	err    error
}

// Cache is the completion listing cache. The zero value is not usable;
// construct with New.
type Cache struct {
	store    store.ObjectStore
	registry *archive.Registry
	archives *cache.Cache
	resolve  *resolver.Resolver
	timeout  time.Duration

	mu       sync.Mutex
	listings map[string][]Entry
	pending  map[string]*pendingFetch
}

// New returns a completion Cache. archives is the C7 index cache shared
// with the resolver, so a directory the user just `cd`-ed through does
// not trigger a second archive build for completion.
func New(s store.ObjectStore, reg *archive.Registry, archives *cache.Cache, r *resolver.Resolver) *Cache {
	return &Cache{
		store:    s,
		registry: reg,
		archives: archives,
		resolve:  r,
		timeout:  DefaultTimeout,
		listings: make(map[string][]Entry),
		pending:  make(map[string]*pendingFetch),
	}
}

// Suggest answers one TAB press: line is the full input buffer, cursor the
// caret position within it (a byte offset; the bytes before cursor are
// completed). Returns
// display-ready suggestions (directories carry a trailing "/"), command-
// aware filtered (§4.9 "Command-aware filtering"). A nil, nil result means
// "no suggestions right now" — either genuinely none, or the listing
// timed out and should be retried on the next TAB.
func (c *Cache) Suggest(ctx context.Context, current vfs.Node, line string, cursor int) ([]string, error) {
	if cursor < 0 || cursor > len(line) {
		cursor = len(line)
	}
	head := line[:cursor]

	cmd, partial := lastToken(head)
	parentText, prefix := splitPartialPath(partial)

	parent, err := c.resolve.Resolve(ctx, current, parentText)
	if err != nil {
		return nil, nil
	}

	key := nodeKey(parent)

	entries, ok := c.lookup(key)
	if !ok {
		entries, err = c.fetchWithTimeout(ctx, key, parent)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			return nil, nil
		}
	}

	return filterSuggestions(entries, prefix, cmd), nil
}

func (c *Cache) lookup(key string) ([]Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.listings[key]
	return e, ok
}

// fetchWithTimeout dispatches (or joins) the async listing fetch for key
// and waits up to c.timeout for it to settle.
func (c *Cache) fetchWithTimeout(ctx context.Context, key string, parent vfs.Node) ([]Entry, error) {
	c.mu.Lock()
	if p, ok := c.pending[key]; ok {
		c.mu.Unlock()
		return c.await(ctx, p)
	}

	p := &pendingFetch{done: make(chan struct{})}
	c.pending[key] = p
	c.mu.Unlock()

	go func() {
		entries, err := c.fetch(context.Background(), parent)

		c.mu.Lock()
		p.result, p.err = entries, err
		if err == nil {
			c.listings[key] = entries
		}
		delete(c.pending, key)
		c.mu.Unlock()

		close(p.done)
	}()

	return c.await(ctx, p)
}

func (c *Cache) await(ctx context.Context, p *pendingFetch) ([]Entry, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-time.After(c.timeout):
		// The fetch keeps running in the background; its outcome lands in
		// c.listings (or stays in c.pending for the next TAB to join).
		return nil, nil
	case <-ctx.Done():
		return nil, vfs.Canceled(ctx.Err())
	}
}

// fetch performs the actual listing I/O for parent: store calls (Root,
// Bucket/Prefix; a prefix listing stops paging once store.ListPageCap
// entries are gathered) or an archive index build/lookup (Archive, whose
// listing is not capped).
func (c *Cache) fetch(ctx context.Context, parent vfs.Node) ([]Entry, error) {
	switch n := parent.(type) {
	case vfs.RootNode:
		buckets, err := c.store.ListBuckets(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Entry, 0, len(buckets))
		for _, b := range buckets {
			out = append(out, Entry{Name: b.Name, IsDir: true})
		}
		return out, nil

	case vfs.BucketNode:
		return c.listPrefix(ctx, n.Name, "")

	case vfs.PrefixNode:
		return c.listPrefix(ctx, n.Bucket, n.Prefix+"/")

	case vfs.ArchiveNode:
		return c.listArchive(ctx, n)

	default:
		// Object/ArchiveEntry parents have no children to list.
		return nil, nil
	}
}

func (c *Cache) listPrefix(ctx context.Context, bucket, prefix string) ([]Entry, error) {
	var out []Entry
	continuation := ""

	for {
		res, err := c.store.ListPrefix(ctx, bucket, prefix, "/", continuation)
		if err != nil {
			return nil, err
		}

		for _, cp := range res.CommonPrefixes {
			out = append(out, Entry{Name: strings.TrimSuffix(strings.TrimPrefix(cp, prefix), "/"), IsDir: true})
		}
		for _, o := range res.Objects {
			name := strings.TrimPrefix(o.Key, prefix)
			if name == "" {
				continue
			}
			kind := vfs.DetectArchiveKind(o.Key)
			_, navigable := c.registry.For(kind)
			out = append(out, Entry{Name: name, IsArchive: !kind.IsNone() && navigable})
		}

		if len(out) >= store.ListPageCap || !res.Truncated() {
			break
		}
		continuation = res.NextContinuation
	}

	return out, nil
}

func (c *Cache) listArchive(ctx context.Context, n vfs.ArchiveNode) ([]Entry, error) {
	h, ok := c.registry.For(n.ArchiveKind)
	if !ok {
		return nil, archive.WrapKind(archive.ErrorUnsupportedArchive, vfs.KindUnsupportedArchive, nil)
	}

	key := cache.Key{Bucket: n.Bucket, Object: n.Key, Kind: n.ArchiveKind}
	idx, err := c.archives.GetOrBuild(ctx, key, func(ctx context.Context) (*archive.Index, error) {
		return h.BuildIndex(ctx, c.store, n.Bucket, n.Key, progress.Discard)
	})
	if err != nil {
		return nil, err
	}

	prefix := ""
	if len(n.InnerPrefix.Segments) > 0 {
		prefix = strings.Join(n.InnerPrefix.Segments, "/") + "/"
	}

	children := idx.ListChildren(prefix)
	out := make([]Entry, 0, len(children))
	for _, ch := range children {
		name := strings.TrimSuffix(strings.TrimPrefix(ch.Path, prefix), "/")
		out = append(out, Entry{Name: name, IsDir: ch.IsDir})
	}
	return out, nil
}

// filterSuggestions applies the prefix filter and the command-aware rule
// of §4.9: `cd` keeps directories and archive-navigable files, `cat` keeps
// everything, any other command (bucket listing at root, etc.) keeps
// everything too.
func filterSuggestions(entries []Entry, prefix, cmd string) []string {
	var out []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name, prefix) {
			continue
		}
		if cmd == "cd" && !(e.IsDir || e.IsArchive) {
			continue
		}

		name := e.Name
		if e.IsDir {
			name += "/"
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// nodeKey renders a vfs.Node to a stable cache key. Two equal nodes
// (same kind, same fields) always render the same key.
func nodeKey(n vfs.Node) string {
	switch v := n.(type) {
	case vfs.RootNode:
		return "root"
	case vfs.BucketNode:
		return "bucket\x00" + v.Name
	case vfs.PrefixNode:
		return "prefix\x00" + v.Bucket + "\x00" + v.Prefix
	case vfs.ArchiveNode:
		return "archive\x00" + v.Bucket + "\x00" + v.Key + "\x00" + v.ArchiveKind.String() + "\x00" + strings.Join(v.InnerPrefix.Segments, "/")
	case vfs.ArchiveEntryNode:
		return "entry\x00" + nodeKey(v.Archive) + "\x00" + v.EntryPath
	case vfs.ObjectNode:
		return "object\x00" + v.Bucket + "\x00" + v.Key
	default:
		return "unknown"
	}
}
