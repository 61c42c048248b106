// Package vfs implements the canonical path grammar and typed location
// model spanning the remote object store and archive interiors: a
// normalized VirtualPath, and the closed set of Node variants (root,
// bucket, prefix, object, archive, archive entry) that a resolver can
// land on.
package vfs

import "strings"

// VirtualPath is an ordered, normalized sequence of path segments plus a
// "directory intent" flag carried by a trailing separator. No segment is
// ever ".", "..", or empty after normalization.
type VirtualPath struct {
	Segments []string
	Dir      bool
	Absolute bool
}

// Root is the zero-segment path at the root of the store.
func Root() VirtualPath {
	return VirtualPath{Absolute: true, Dir: true}
}

// Parse normalizes a textual path: "." is dropped, ".." pops a segment (a
// no-op at the top), repeated separators collapse, and a trailing
// separator is recorded as directory intent rather than an empty segment.
func Parse(text string) VirtualPath {
	absolute := strings.HasPrefix(text, "/")
	dir := text == "" || text == "/" || strings.HasSuffix(text, "/")

	var segs []string
	for _, s := range strings.Split(text, "/") {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(segs) > 0 {
				segs = segs[:len(segs)-1]
			}
		default:
			segs = append(segs, s)
		}
	}

	return VirtualPath{Segments: segs, Dir: dir, Absolute: absolute}
}

// Join resolves text against base: an absolute text replaces base outright,
// a relative one is normalized onto a copy of base's segments.
func Join(base VirtualPath, text string) VirtualPath {
	if text == "" {
		return base
	}

	if strings.HasPrefix(text, "/") {
		return Parse(text)
	}

	segs := append([]string(nil), base.Segments...)
	dir := strings.HasSuffix(text, "/")

	for _, s := range strings.Split(text, "/") {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(segs) > 0 {
				segs = segs[:len(segs)-1]
			}
		default:
			segs = append(segs, s)
		}
	}

	return VirtualPath{Segments: segs, Dir: dir, Absolute: base.Absolute}
}

// Push appends a single segment, returning a new path with directory
// intent cleared (the caller sets Dir explicitly when the segment is known
// to be a directory).
func (p VirtualPath) Push(seg string) VirtualPath {
	return VirtualPath{
		Segments: append(append([]string(nil), p.Segments...), seg),
		Dir:      false,
		Absolute: p.Absolute,
	}
}

// Pop removes the last segment, a no-op at the root.
func (p VirtualPath) Pop() VirtualPath {
	if len(p.Segments) == 0 {
		return p
	}
	return VirtualPath{
		Segments: append([]string(nil), p.Segments[:len(p.Segments)-1]...),
		Dir:      true,
		Absolute: p.Absolute,
	}
}

// Last returns the final segment, or "" at the root.
func (p VirtualPath) Last() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[len(p.Segments)-1]
}

// IsRoot reports whether the path has no segments.
func (p VirtualPath) IsRoot() bool {
	return len(p.Segments) == 0
}

// AsDisplay renders the path for pwd/prompt output: always absolute,
// segments joined by "/", with a trailing "/" iff Dir is set.
func (p VirtualPath) AsDisplay() string {
	if len(p.Segments) == 0 {
		return "/"
	}

	s := "/" + strings.Join(p.Segments, "/")
	if p.Dir {
		s += "/"
	}
	return s
}

func (p VirtualPath) String() string {
	return p.AsDisplay()
}

// Equal compares two paths by normalized content (segments and directory
// intent), ignoring how they were originally typed.
func (p VirtualPath) Equal(o VirtualPath) bool {
	if p.Dir != o.Dir || len(p.Segments) != len(o.Segments) {
		return false
	}
	for i := range p.Segments {
		if p.Segments[i] != o.Segments[i] {
			return false
		}
	}
	return true
}
