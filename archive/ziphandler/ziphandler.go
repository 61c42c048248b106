// Package ziphandler implements archive.Handler for zip archives: a
// footer-driven central-directory parse over range reads, with per-entry
// extraction via a range read of the local header followed by a range
// read of the compressed payload (§4.4). Deliberately hand-rolled rather
// than wrapping the standard library's archive/zip.Reader over an
// io.ReaderAt: that reader issues its own scattered small reads, which
// would violate the ≤2-coalesced-range-request budget this shell holds
// itself to (§8 property 7).
package ziphandler

import (
	"bytes"
	"compress/flate"
	"context"
	"encoding/binary"
	"io"
	"strings"

	"github.com/nabbar/s3sh/archive"
	"github.com/nabbar/s3sh/progress"
	"github.com/nabbar/s3sh/store"
	"github.com/nabbar/s3sh/vfs"
)

const (
	sigEOCD         = 0x06054b50
	sigEOCD64Locator = 0x07064b50
	sigEOCD64       = 0x06064b50
	sigCentralDir   = 0x02014b50

	eocdMinSize   = 22
	maxComment    = 65535
	initialWindow = 64 * 1024
	maxWindow     = 1024 * 1024
)

// Handler implements archive.Handler for .zip objects.
type Handler struct{}

func New() *Handler { return &Handler{} }

func (h *Handler) BuildIndex(ctx context.Context, s store.ObjectStore, bucket, key string, sink progress.Sink) (*archive.Index, error) {
	if sink == nil {
		sink = progress.Discard
	}

	head, err := s.Head(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	size := int64(head.Size)

	eocdAbs, eocdBuf, err := findEOCD(ctx, s, bucket, key, size)
	if err != nil {
		return nil, err
	}

	cdOffset, cdSize, entryCount, err := readEOCDFields(ctx, s, bucket, key, eocdAbs, eocdBuf)
	if err != nil {
		return nil, err
	}

	if cdSize == 0 && entryCount == 0 {
		idx := archive.NewIndex(vfs.ArchiveZip)
		sink.Progress(uint64(size), size)
		return idx, nil
	}

	if int64(cdOffset)+int64(cdSize) > size {
		return nil, archive.WrapKind(archive.ErrorCorrupt, vfs.KindCorruptArchive, nil)
	}

	rc, err := s.GetRange(ctx, bucket, key, store.ClosedRange(int64(cdOffset), int64(cdOffset)+int64(cdSize)-1))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	cdBuf, err := io.ReadAll(rc)
	if err != nil {
		return nil, store.WrapKind(store.ErrorNetwork, vfs.KindNetworkError, err)
	}

	idx := archive.NewIndex(vfs.ArchiveZip)

	off := 0
	for off+46 <= len(cdBuf) {
		if binary.LittleEndian.Uint32(cdBuf[off:off+4]) != sigCentralDir {
			break
		}

		method := binary.LittleEndian.Uint16(cdBuf[off+10 : off+12])
		diskNum := binary.LittleEndian.Uint16(cdBuf[off+34 : off+36])
		compSize := uint64(binary.LittleEndian.Uint32(cdBuf[off+20 : off+24]))
		uncompSize := uint64(binary.LittleEndian.Uint32(cdBuf[off+24 : off+28]))
		nameLen := int(binary.LittleEndian.Uint16(cdBuf[off+28 : off+30]))
		extraLen := int(binary.LittleEndian.Uint16(cdBuf[off+30 : off+32]))
		commentLen := int(binary.LittleEndian.Uint16(cdBuf[off+32 : off+34]))
		localOffset := uint64(binary.LittleEndian.Uint32(cdBuf[off+42 : off+46]))

		if diskNum != 0 {
			return nil, archive.WrapKind(archive.ErrorUnsupportedArchive, vfs.KindUnsupportedArchive, nil)
		}

		nameStart := off + 46
		if nameStart+nameLen+extraLen+commentLen > len(cdBuf) {
			return nil, archive.WrapKind(archive.ErrorCorrupt, vfs.KindCorruptArchive, nil)
		}

		name := string(cdBuf[nameStart : nameStart+nameLen])
		extra := cdBuf[nameStart+nameLen : nameStart+nameLen+extraLen]

		if uncompSize == 0xFFFFFFFF || compSize == 0xFFFFFFFF || localOffset == 0xFFFFFFFF {
			uncompSize, compSize, localOffset = parseZip64Extra(extra, uncompSize, compSize, localOffset)
		}

		clean, safe := safeEntryName(name)
		if !safe {
			return nil, archive.WrapKind(archive.ErrorUnsafePath, vfs.KindUnsafePath, nil)
		}

		isDir := strings.HasSuffix(name, "/")

		if clean != "" {
			idx.Add(archive.Entry{
				Path:  clean,
				Size:  uncompSize,
				IsDir: isDir,
				Payload: archive.ZipPayload{
					LocalHeaderOffset: int64(localOffset),
					CompressedSize:    int64(compSize),
					UncompressedSize:  int64(uncompSize),
					Method:            zipMethod(method),
				},
			})
		}

		off = nameStart + nameLen + extraLen + commentLen
	}

	sink.Progress(uint64(size), size)
	return idx, nil
}

func (h *Handler) ListEntries(idx *archive.Index, interiorPrefix string) ([]archive.Entry, error) {
	return idx.ListChildren(interiorPrefix), nil
}

func (h *Handler) Extract(ctx context.Context, s store.ObjectStore, bucket, key string, idx *archive.Index, entryPath string) (io.ReadCloser, error) {
	e, ok := idx.FindEntry(entryPath)
	if !ok {
		return nil, archive.WrapKind(archive.ErrorNotFound, vfs.KindNotFound, nil)
	}
	if e.IsDir {
		return nil, archive.WrapKind(archive.ErrorNotAFile, vfs.KindNotAFile, nil)
	}

	zp, ok := e.Payload.(archive.ZipPayload)
	if !ok {
		return nil, archive.WrapKind(archive.ErrorCorrupt, vfs.KindInternal, nil)
	}

	if zp.CompressedSize == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	// Local header is a fixed 30 bytes followed by variable name/extra
	// fields; read the fixed part to learn their lengths, then range-read
	// the payload that follows them.
	hdrRC, err := s.GetRange(ctx, bucket, key, store.ClosedRange(zp.LocalHeaderOffset, zp.LocalHeaderOffset+29))
	if err != nil {
		return nil, err
	}
	hdr, err := io.ReadAll(hdrRC)
	hdrRC.Close()
	if err != nil || len(hdr) < 30 {
		return nil, archive.WrapKind(archive.ErrorCorrupt, vfs.KindCorruptArchive, err)
	}

	nameLen := int(binary.LittleEndian.Uint16(hdr[26:28]))
	extraLen := int(binary.LittleEndian.Uint16(hdr[28:30]))
	payloadStart := zp.LocalHeaderOffset + 30 + int64(nameLen) + int64(extraLen)

	rc, err := s.GetRange(ctx, bucket, key, store.ClosedRange(payloadStart, payloadStart+zp.CompressedSize-1))
	if err != nil {
		return nil, err
	}

	switch zp.Method {
	case archive.Stored:
		return rc, nil
	case archive.Deflate:
		fr := flate.NewReader(rc)
		return &deflateCloser{r: fr, under: rc}, nil
	default:
		rc.Close()
		return nil, archive.WrapKind(archive.ErrorUnsupportedEntry, vfs.KindUnsupportedEntry, nil)
	}
}

type deflateCloser struct {
	r     io.ReadCloser
	under io.Closer
}

func (d *deflateCloser) Read(p []byte) (int, error) { return d.r.Read(p) }
func (d *deflateCloser) Close() error {
	err1 := d.r.Close()
	err2 := d.under.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func zipMethod(m uint16) archive.CompressionMethod {
	switch m {
	case 0:
		return archive.Stored
	case 8:
		return archive.Deflate
	default:
		// Outside the extractable subset: Extract reports UnsupportedEntry.
		return archive.CompressionMethod(0xFF)
	}
}

// safeEntryName cleans a zip entry name and rejects any attempt to escape
// the archive root via ".." segments.
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

func parseZip64Extra(extra []byte, uSize, cSize, lOff uint64) (uint64, uint64, uint64) {
	off := 0
	for off+4 <= len(extra) {
		id := binary.LittleEndian.Uint16(extra[off : off+2])
		size := int(binary.LittleEndian.Uint16(extra[off+2 : off+4]))
		if off+4+size > len(extra) {
			break
		}
		if id == 0x0001 {
			data := extra[off+4 : off+4+size]
			p := 0
			if uSize == 0xFFFFFFFF && p+8 <= len(data) {
				uSize = binary.LittleEndian.Uint64(data[p : p+8])
				p += 8
			}
			if cSize == 0xFFFFFFFF && p+8 <= len(data) {
				cSize = binary.LittleEndian.Uint64(data[p : p+8])
				p += 8
			}
			if lOff == 0xFFFFFFFF && p+8 <= len(data) {
				lOff = binary.LittleEndian.Uint64(data[p : p+8])
				p += 8
			}
		}
		off += 4 + size
	}
	return uSize, cSize, lOff
}

// findEOCD locates the End Of Central Directory record via a geometrically
// widening suffix read, starting at 64 KiB and doubling to 1 MiB, per §4.4
// step 1. Returns the record's absolute offset and its bytes through EOF.
func findEOCD(ctx context.Context, s store.ObjectStore, bucket, key string, size int64) (int64, []byte, error) {
	winSize := int64(initialWindow)
	if winSize > size {
		winSize = size
	}

	for {
		rc, err := s.GetRange(ctx, bucket, key, store.SuffixRange(winSize))
		if err != nil {
			return 0, nil, err
		}
		buf, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return 0, nil, store.WrapKind(store.ErrorNetwork, vfs.KindNetworkError, err)
		}

		start := size - int64(len(buf))
		if pos := scanEOCD(buf); pos >= 0 {
			return start + int64(pos), buf[pos:], nil
		}

		if winSize >= size || winSize >= maxWindow {
			return 0, nil, archive.WrapKind(archive.ErrorCorrupt, vfs.KindCorruptArchive, nil)
		}

		winSize *= 2
		if winSize > maxWindow {
			winSize = maxWindow
		}
		if winSize > size {
			winSize = size
		}
	}
}

// scanEOCD scans buf backward for a valid EOCD signature, verifying the
// recorded comment length exactly accounts for the remaining bytes (to
// reject a false-positive signature match inside the comment itself).
func scanEOCD(buf []byte) int {
	if len(buf) < eocdMinSize {
		return -1
	}

	minPos := len(buf) - eocdMinSize - maxComment
	if minPos < 0 {
		minPos = 0
	}

	for i := len(buf) - eocdMinSize; i >= minPos; i-- {
		if binary.LittleEndian.Uint32(buf[i:i+4]) != sigEOCD {
			continue
		}
		commentLen := int(binary.LittleEndian.Uint16(buf[i+20 : i+22]))
		if i+eocdMinSize+commentLen == len(buf) {
			return i
		}
	}

	return -1
}

// readEOCDFields extracts cdOffset/cdSize/entryCount from the EOCD record,
// chasing the Zip64 EOCD locator (which immediately precedes a Zip64
// archive's standard EOCD) when the 32-bit fields are saturated.
func readEOCDFields(ctx context.Context, s store.ObjectStore, bucket, key string, eocdAbs int64, eocdBuf []byte) (uint64, uint64, uint64, error) {
	entryCount := uint64(binary.LittleEndian.Uint16(eocdBuf[10:12]))
	cdSize := uint64(binary.LittleEndian.Uint32(eocdBuf[12:16]))
	cdOffset := uint64(binary.LittleEndian.Uint32(eocdBuf[16:20]))

	if cdOffset != 0xFFFFFFFF && entryCount != 0xFFFF {
		return cdOffset, cdSize, entryCount, nil
	}

	locatorAbs := eocdAbs - 20
	if locatorAbs < 0 {
		return 0, 0, 0, archive.WrapKind(archive.ErrorCorrupt, vfs.KindCorruptArchive, nil)
	}

	rc, err := s.GetRange(ctx, bucket, key, store.ClosedRange(locatorAbs, locatorAbs+19))
	if err != nil {
		return 0, 0, 0, err
	}
	locator, err := io.ReadAll(rc)
	rc.Close()
	if err != nil || len(locator) < 20 || binary.LittleEndian.Uint32(locator[0:4]) != sigEOCD64Locator {
		return 0, 0, 0, archive.WrapKind(archive.ErrorCorrupt, vfs.KindCorruptArchive, err)
	}

	zip64Offset := int64(binary.LittleEndian.Uint64(locator[8:16]))

	rc2, err := s.GetRange(ctx, bucket, key, store.ClosedRange(zip64Offset, zip64Offset+55))
	if err != nil {
		return 0, 0, 0, err
	}
	rec, err := io.ReadAll(rc2)
	rc2.Close()
	if err != nil || len(rec) < 56 || binary.LittleEndian.Uint32(rec[0:4]) != sigEOCD64 {
		return 0, 0, 0, archive.WrapKind(archive.ErrorCorrupt, vfs.KindCorruptArchive, err)
	}

	entryCount = binary.LittleEndian.Uint64(rec[32:40])
	cdSize = binary.LittleEndian.Uint64(rec[40:48])
	cdOffset = binary.LittleEndian.Uint64(rec[48:56])

	return cdOffset, cdSize, entryCount, nil
}
