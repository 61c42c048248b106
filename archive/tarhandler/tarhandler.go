// Package tarhandler implements archive.Handler for .tar, .tar.gz/.tgz and
// .tar.bz2/.tbz2 objects: a single streaming pass over archive/tar.Reader
// (optionally preceded by compress/gzip or compress/bzip2) builds an offset
// index as headers go by; a plain .tar extracts via one direct byte-range
// read, while a compressed tar re-decompresses from the start and discards
// up to the entry's offset, since compressed byte offsets don't address
// into the decompressed stream (§4.5).
package tarhandler

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"io"
	"strings"

	"github.com/nabbar/s3sh/archive"
	"github.com/nabbar/s3sh/progress"
	"github.com/nabbar/s3sh/store"
	"github.com/nabbar/s3sh/vfs"
)

// Handler implements archive.Handler for one member of the tar family; New
// is called once per kind and the resulting Handler registered against it.
type Handler struct {
	kind vfs.ArchiveKind
}

// New returns a Handler for kind, which must be ArchiveTar, ArchiveTarGzip
// or ArchiveTarBzip2.
func New(kind vfs.ArchiveKind) *Handler {
	return &Handler{kind: kind}
}

func (h *Handler) decompress(rc io.Reader) (io.Reader, error) {
	switch h.kind {
	case vfs.ArchiveTarGzip:
		gr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, archive.WrapKind(archive.ErrorCorrupt, vfs.KindCorruptArchive, err)
		}
		return gr, nil
	case vfs.ArchiveTarBzip2:
		return bzip2.NewReader(rc), nil
	default:
		return rc, nil
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	k, err := c.r.Read(p)
	c.n += int64(k)
	return k, err
}

func (h *Handler) BuildIndex(ctx context.Context, s store.ObjectStore, bucket, key string, sink progress.Sink) (*archive.Index, error) {
	if sink == nil {
		sink = progress.Discard
	}

	head, err := s.Head(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	rc, err := s.GetFull(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	compressedCounter := &countingReader{r: rc}
	decompressed, err := h.decompress(compressedCounter)
	if err != nil {
		return nil, err
	}
	decompCounter := &countingReader{r: decompressed}

	tr := tar.NewReader(decompCounter)
	idx := archive.NewIndex(h.kind)

	for {
		if err := ctx.Err(); err != nil {
			return nil, vfs.Canceled(err)
		}

		headerOffset := decompCounter.n
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, archive.WrapKind(archive.ErrorCorrupt, vfs.KindCorruptArchive, err)
		}
		dataOffset := decompCounter.n

		clean, safe := safeEntryName(hdr.Name)
		if !safe {
			return nil, archive.WrapKind(archive.ErrorUnsafePath, vfs.KindUnsafePath, nil)
		}

		isDir := hdr.Typeflag == tar.TypeDir || strings.HasSuffix(hdr.Name, "/")

		if clean != "" {
			idx.Add(archive.Entry{
				Path:  clean,
				Size:  uint64(hdr.Size),
				IsDir: isDir,
				Payload: archive.TarPayload{
					HeaderOffset: headerOffset,
					DataOffset:   dataOffset,
					DataLength:   hdr.Size,
					IsDir:        isDir,
				},
			})
		}

		if _, err := io.Copy(io.Discard, tr); err != nil {
			return nil, archive.WrapKind(archive.ErrorCorrupt, vfs.KindCorruptArchive, err)
		}

		sink.Progress(uint64(compressedCounter.n), int64(head.Size))
	}

	sink.Progress(uint64(head.Size), int64(head.Size))
	return idx, nil
}

func (h *Handler) ListEntries(idx *archive.Index, interiorPrefix string) ([]archive.Entry, error) {
	return idx.ListChildren(interiorPrefix), nil
}

func (h *Handler) Extract(ctx context.Context, s store.ObjectStore, bucket, key string, idx *archive.Index, entryPath string) (io.ReadCloser, error) {
	e, ok := idx.FindEntry(entryPath)
	if !ok {
		// A directory known only through deeper entries' paths has no
		// record of its own, but it is still a directory, not a file.
		if dir := strings.TrimSuffix(entryPath, "/") + "/"; dir != "/" && len(idx.ListChildren(dir)) > 0 {
			return nil, archive.WrapKind(archive.ErrorNotAFile, vfs.KindNotAFile, nil)
		}
		return nil, archive.WrapKind(archive.ErrorNotFound, vfs.KindNotFound, nil)
	}
	if e.IsDir {
		return nil, archive.WrapKind(archive.ErrorNotAFile, vfs.KindNotAFile, nil)
	}

	tp, ok := e.Payload.(archive.TarPayload)
	if !ok {
		return nil, archive.WrapKind(archive.ErrorCorrupt, vfs.KindInternal, nil)
	}
	if tp.DataLength == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}

	if h.kind == vfs.ArchiveTar {
		return s.GetRange(ctx, bucket, key, store.ClosedRange(tp.DataOffset, tp.DataOffset+tp.DataLength-1))
	}

	rc, err := s.GetFull(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	decompressed, err := h.decompress(rc)
	if err != nil {
		rc.Close()
		return nil, err
	}

	if _, err := io.CopyN(io.Discard, decompressed, tp.DataOffset); err != nil {
		rc.Close()
		return nil, archive.WrapKind(archive.ErrorCorrupt, vfs.KindCorruptArchive, err)
	}

	return &limitedCloser{r: io.LimitReader(decompressed, tp.DataLength), under: rc}, nil
}

type limitedCloser struct {
	r     io.Reader
	under io.Closer
}

func (l *limitedCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedCloser) Close() error                { return l.under.Close() }

// safeEntryName mirrors ziphandler's normalization: it cleans a tar entry
// name and rejects any attempt to escape the archive root via ".."
// segments.
func safeEntryName(name string) (string, bool) {
	trimmed := strings.TrimPrefix(name, "/")
	isDir := strings.HasSuffix(trimmed, "/")
	parts := strings.Split(strings.TrimSuffix(trimmed, "/"), "/")

	var clean []string
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			return "", false
		default:
			clean = append(clean, p)
		}
	}

	joined := strings.Join(clean, "/")
	if isDir && joined != "" {
		joined += "/"
	}
	return joined, true
}
