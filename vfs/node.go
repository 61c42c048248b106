package vfs

// NodeKind tags which Node variant a value holds. The set is closed: every
// Node implementation corresponds to exactly one NodeKind, and callers
// switch on Kind() rather than type-asserting against an open interface.
type NodeKind uint8

const (
	KindRoot NodeKind = iota
	KindBucket
	KindPrefix
	KindObject
	KindArchive
	KindArchiveEntry
)

// Node is the closed variant of locations a path can resolve to. Path()
// renders the node's absolute display path (used by pwd and prompts); it
// never contains ".", "..", or empty segments (§8 property 2).
type Node interface {
	Kind() NodeKind
	Path() VirtualPath
}

// RootNode lists buckets.
type RootNode struct{}

func (RootNode) Kind() NodeKind   { return KindRoot }
func (RootNode) Path() VirtualPath { return Root() }

// BucketNode names a remote bucket.
type BucketNode struct {
	Name string
}

func (n BucketNode) Kind() NodeKind { return KindBucket }
func (n BucketNode) Path() VirtualPath {
	return VirtualPath{Segments: []string{n.Name}, Dir: true, Absolute: true}
}

// PrefixNode is a trailing-slash-normalized key prefix inside a bucket.
type PrefixNode struct {
	Bucket string
	Prefix string // normalized, trailing "/" implied, no leading "/"
}

func (n PrefixNode) Kind() NodeKind { return KindPrefix }
func (n PrefixNode) Path() VirtualPath {
	return Join(BucketNode{Name: n.Bucket}.Path(), n.Prefix+"/")
}

// ObjectNode is a readable leaf in the store.
type ObjectNode struct {
	Bucket string
	Key    string
	Size   uint64
}

func (n ObjectNode) Kind() NodeKind { return KindObject }
func (n ObjectNode) Path() VirtualPath {
	p := Join(BucketNode{Name: n.Bucket}.Path(), n.Key)
	p.Dir = false
	return p
}

// ArchiveNode is a container object whose entries are navigable.
type ArchiveNode struct {
	Bucket      string
	Key         string
	ArchiveKind ArchiveKind
	InnerPrefix VirtualPath // relative to the archive root
}

func (n ArchiveNode) Kind() NodeKind { return KindArchive }
func (n ArchiveNode) Path() VirtualPath {
	base := Join(BucketNode{Name: n.Bucket}.Path(), n.Key)
	base.Dir = true
	if len(n.InnerPrefix.Segments) == 0 {
		return base
	}
	segs := append(append([]string(nil), base.Segments...), n.InnerPrefix.Segments...)
	return VirtualPath{Segments: segs, Dir: true, Absolute: true}
}

// ArchiveEntryNode is a single entry interior to an archive.
type ArchiveEntryNode struct {
	Archive   ArchiveNode
	EntryPath string // full interior path, no leading separator
	Size      uint64
	IsDir     bool
	// Payload is handler-specific (archive.EntryPayload variants); vfs
	// does not know its shape, only that resolver/command callers will
	// type-assert it back via the archive package that produced it.
	Payload any
}

func (n ArchiveEntryNode) Kind() NodeKind { return KindArchiveEntry }
func (n ArchiveEntryNode) Path() VirtualPath {
	base := n.Archive.Path()
	segs := append(append([]string(nil), base.Segments...), Parse(n.EntryPath).Segments...)
	return VirtualPath{Segments: segs, Dir: n.IsDir, Absolute: true}
}
