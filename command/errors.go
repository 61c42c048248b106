package command

import (
	"fmt"

	liberr "github.com/nabbar/s3sh/errors"
	"github.com/nabbar/s3sh/vfs"
)

const (
	ErrorUsage liberr.CodeError = iota + liberr.MinPkgCommand
	ErrorNotAFile
	ErrorUnknownCommand
)

func init() {
	if liberr.ExistInMapMessage(ErrorUsage) {
		panic(fmt.Errorf("error code collision in package command"))
	}
	liberr.RegisterIdFctMessage(ErrorUsage, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorUsage:
		return "missing or invalid argument"
	case ErrorNotAFile:
		return "is a directory"
	case ErrorUnknownCommand:
		return "unknown command"
	}

	return ""
}

// WrapKind pairs a command CodeError with the shared vfs.Kind taxonomy.
func WrapKind(code liberr.CodeError, kind vfs.Kind, parent error) error {
	return vfs.WrapKind(code.Error(parent), kind)
}
