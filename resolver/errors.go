package resolver

import (
	"fmt"

	liberr "github.com/nabbar/s3sh/errors"
	"github.com/nabbar/s3sh/vfs"
)

const (
	ErrorNotFound liberr.CodeError = iota + liberr.MinPkgResolver
	ErrorNotADirectory
	ErrorAmbiguous
	ErrorUnsafePath
)

func init() {
	if liberr.ExistInMapMessage(ErrorNotFound) {
		panic(fmt.Errorf("error code collision in package resolver"))
	}
	liberr.RegisterIdFctMessage(ErrorNotFound, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorNotFound:
		return "no such file or directory"
	case ErrorNotADirectory:
		return "not a directory"
	case ErrorAmbiguous:
		return "path is ambiguous"
	case ErrorUnsafePath:
		return "path escapes the addressable namespace"
	}

	return ""
}

// WrapKind pairs a resolver CodeError with the shared vfs.Kind taxonomy.
func WrapKind(code liberr.CodeError, kind vfs.Kind, parent error) error {
	return vfs.WrapKind(code.Error(parent), kind)
}
