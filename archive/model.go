// Package archive holds the shared ArchiveHandler contract and the
// ArchiveIndex/ArchiveEntry/EntryPayload data model every container-format
// handler (zip, tar, parquet) builds and serves from.
package archive

import (
	"sort"
	"strings"

	"github.com/nabbar/s3sh/vfs"
)

// CompressionMethod is the subset of zip compression methods this shell
// extracts; anything else is UnsupportedEntry.
type CompressionMethod uint8

const (
	Stored CompressionMethod = iota
	Deflate
)

// EntryPayload is the closed, per-kind data an ArchiveEntry carries beyond
// its path/size/is_dir. Each concrete type implements the marker method so
// only this package's own variants satisfy it.
type EntryPayload interface {
	isEntryPayload()
}

// TarPayload locates an entry's header and data inside the decompressed
// tar byte stream.
type TarPayload struct {
	HeaderOffset int64
	DataOffset   int64
	DataLength   int64
	IsDir        bool
}

func (TarPayload) isEntryPayload() {}

// ZipPayload locates an entry's local header and compressed payload by
// byte offset, as recorded in the central directory.
type ZipPayload struct {
	LocalHeaderOffset int64
	CompressedSize    int64
	UncompressedSize  int64
	Method            CompressionMethod
}

func (ZipPayload) isEntryPayload() {}

// ParquetPayloadKind selects which synthesized view a parquet virtual
// entry renders.
type ParquetPayloadKind uint8

const (
	ParquetSchema ParquetPayloadKind = iota
	ParquetColumnStats
	ParquetColumnSample
	ParquetRowGroupInfo
)

// ParquetPayload carries the column/row-group coordinates a parquet
// virtual entry renders from, with no bytes of its own in the source
// object (§3 "Virtual file").
type ParquetPayload struct {
	Kind        ParquetPayloadKind
	ColumnPath  string
	RowGroup    int
}

func (ParquetPayload) isEntryPayload() {}

// Entry is a single catalog entry inside an archive.
type Entry struct {
	Path    string // full interior path, no leading separator
	Size    uint64
	IsDir   bool
	Payload EntryPayload
}

// Index is the entry_path -> ArchiveEntry catalog a handler's BuildIndex
// produces. Construction order is preserved for ListChildren's
// determinism requirement (§8 property 3); lookups are by exact path or,
// per §3, by toggling the trailing separator.
type Index struct {
	Kind    vfs.ArchiveKind
	entries map[string]Entry
	order   []string

	// Meta is an opaque, handler-owned extension point for data a handler
	// needs at Extract time but that doesn't fit the generic Entry shape
	// (the parquet handler keeps its opened *parquet.File and footer
	// metadata here, so virtual-file extraction costs no extra I/O).
	// Its lifetime is tied to the Index's: once the C7 cache evicts the
	// Index, this goes with it.
	Meta interface{}
}

// NewIndex returns an empty index for the given archive kind.
func NewIndex(kind vfs.ArchiveKind) *Index {
	return &Index{Kind: kind, entries: make(map[string]Entry)}
}

// Add inserts or replaces an entry by path.
func (idx *Index) Add(e Entry) {
	if _, exists := idx.entries[e.Path]; !exists {
		idx.order = append(idx.order, e.Path)
	}
	idx.entries[e.Path] = e
}

// Len returns the number of distinct entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// FindEntry resolves p to its entry, tolerating a missing or present
// trailing separator (tar commonly records directories with one, zip
// rarely does).
func (idx *Index) FindEntry(p string) (Entry, bool) {
	p = strings.TrimPrefix(p, "/")

	if e, ok := idx.entries[p]; ok {
		return e, true
	}

	if strings.HasSuffix(p, "/") {
		if e, ok := idx.entries[strings.TrimSuffix(p, "/")]; ok {
			return e, true
		}
	} else if e, ok := idx.entries[p+"/"]; ok {
		return e, true
	}

	return Entry{}, false
}

// ListChildren returns the immediate children of prefix: entries whose
// path starts with prefix and whose remainder has no further separator
// (or exactly one trailing separator for directories), synthesizing
// intermediate directories by path. Sorted lexicographically with
// directories first, ties broken by path (§4.3).
func (idx *Index) ListChildren(prefix string) []Entry {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	seen := make(map[string]bool)
	var out []Entry

	for _, p := range idx.order {
		if !strings.HasPrefix(p, prefix) {
			continue
		}

		rel := strings.TrimSuffix(p[len(prefix):], "/")
		if rel == "" {
			continue
		}

		if i := strings.Index(rel, "/"); i >= 0 {
			key := prefix + rel[:i] + "/"
			if !seen[key] {
				seen[key] = true
				out = append(out, Entry{Path: key, IsDir: true})
			}
			continue
		}

		if !seen[p] {
			seen[p] = true
			out = append(out, idx.entries[p])
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return out[i].Path < out[j].Path
	})

	return out
}
