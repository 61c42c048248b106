// Package progress defines the ProgressSink port archive builds and
// extractions report through. Rendering a spinner/progress bar from these
// calls is explicitly out of scope (spec.md §1); this package is the
// interface only.
package progress

// Sink receives progress updates from a long-running archive build or
// extraction. total is -1 when the total byte count is not known in
// advance (e.g. a compressed tar stream mid-decompression).
type Sink interface {
	Progress(processed uint64, total int64)
}

// Discard is a Sink that does nothing, used when no rendering is wired up.
var Discard Sink = discard{}

type discard struct{}

func (discard) Progress(uint64, int64) {}
