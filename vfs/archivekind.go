package vfs

import "strings"

// ArchiveKind is the closed set of container formats this shell can
// descend into. Detection is by extension suffix, case-insensitive, and
// kind precedence is fixed: a name matching more than one suffix (none do,
// in practice, except the tar-vs-compressed-tar family) resolves to the
// most specific match.
type ArchiveKind uint8

const (
	ArchiveNone ArchiveKind = iota
	ArchiveTar
	ArchiveTarGzip
	ArchiveTarBzip2
	ArchiveZip
	ArchiveParquet
)

func (k ArchiveKind) String() string {
	switch k {
	case ArchiveTar:
		return "tar"
	case ArchiveTarGzip:
		return "tar+gzip"
	case ArchiveTarBzip2:
		return "tar+bzip2"
	case ArchiveZip:
		return "zip"
	case ArchiveParquet:
		return "parquet"
	default:
		return "none"
	}
}

// IsNone reports whether a name carries no recognized archive extension.
func (k ArchiveKind) IsNone() bool {
	return k == ArchiveNone
}

// DetectArchiveKind inspects a key/entry name's extension and returns the
// archive kind it names, following the fixed precedence
// tar+bzip2 > tar+gzip > tar > zip > parquet > none.
func DetectArchiveKind(name string) ArchiveKind {
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return ArchiveTarBzip2
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return ArchiveTarGzip
	case strings.HasSuffix(lower, ".tar"):
		return ArchiveTar
	case strings.HasSuffix(lower, ".zip"):
		return ArchiveZip
	case strings.HasSuffix(lower, ".parquet"):
		return ArchiveParquet
	default:
		return ArchiveNone
	}
}
