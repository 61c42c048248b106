package archive

import (
	"fmt"

	liberr "github.com/nabbar/s3sh/errors"
	"github.com/nabbar/s3sh/vfs"
)

const (
	ErrorCorrupt liberr.CodeError = iota + liberr.MinPkgArchive
	ErrorUnsupportedArchive
	ErrorUnsupportedEntry
	ErrorUnsafePath
	ErrorNotAFile
	ErrorNotFound
)

func init() {
	if liberr.ExistInMapMessage(ErrorCorrupt) {
		panic(fmt.Errorf("error code collision in package archive"))
	}
	liberr.RegisterIdFctMessage(ErrorCorrupt, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorCorrupt:
		return "archive is corrupt or truncated"
	case ErrorUnsupportedArchive:
		return "archive format or feature is not supported"
	case ErrorUnsupportedEntry:
		return "entry compression method is not supported"
	case ErrorUnsafePath:
		return "entry path escapes the archive root"
	case ErrorNotAFile:
		return "entry is a directory, not a file"
	case ErrorNotFound:
		return "no such entry in archive"
	}

	return ""
}

// WrapKind pairs an archive CodeError with the shared vfs.Kind taxonomy.
func WrapKind(code liberr.CodeError, kind vfs.Kind, parent error) error {
	return vfs.WrapKind(code.Error(parent), kind)
}
