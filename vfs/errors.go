package vfs

import (
	"fmt"

	liberr "github.com/nabbar/s3sh/errors"
)

// ErrorCanceled is raised when a caller's context is canceled mid-operation
// (a long BuildIndex walk, an in-flight range read); every package that
// watches ctx.Err() reports it through vfs.Canceled rather than minting its
// own per-package cancellation code, since the Kind is the only thing a
// caller needs to render an exit code for it.
const ErrorCanceled liberr.CodeError = iota + liberr.MinPkgVfs

func init() {
	if liberr.ExistInMapMessage(ErrorCanceled) {
		panic(fmt.Errorf("error code collision in package vfs"))
	}
	liberr.RegisterIdFctMessage(ErrorCanceled, func(code liberr.CodeError) string {
		if code == ErrorCanceled {
			return "operation canceled"
		}
		return ""
	})
}

// Canceled wraps the current context error (or a generic message if nil)
// with KindCanceled.
func Canceled(parent error) error {
	return WrapKind(ErrorCanceled.Error(parent), KindCanceled)
}

// KindedError pairs a package's own CodeError with the stable cross-
// component Kind taxonomy, so a resolver or dispatcher that never heard of
// archive/store-specific codes can still render the right message class
// and exit code.
type KindedError struct {
	liberr.Error
	K Kind
}

func (e *KindedError) VfsKind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.K
}

// WrapKind attaches a Kind to an already-built liberr.Error. Returns nil if
// e is nil, so call sites can write
// `return vfs.WrapKind(code.Error(parent), vfs.KindNotFound)` unconditionally.
func WrapKind(e liberr.Error, k Kind) error {
	if e == nil {
		return nil
	}
	return &KindedError{Error: e, K: k}
}
