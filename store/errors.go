package store

import (
	"fmt"

	liberr "github.com/nabbar/s3sh/errors"
	"github.com/nabbar/s3sh/vfs"
)

const (
	ErrorResponse liberr.CodeError = iota + liberr.MinPkgStore
	ErrorBucketNotFound
	ErrorObjectNotFound
	ErrorNotFound
	ErrorPermissionDenied
	ErrorAuth
	ErrorNetwork
	ErrorConfig
	ErrorParamsEmpty
)

func init() {
	if liberr.ExistInMapMessage(ErrorResponse) {
		panic(fmt.Errorf("error code collision in package store"))
	}
	liberr.RegisterIdFctMessage(ErrorResponse, getMessage)
}

func getMessage(code liberr.CodeError) string {
	switch code {
	case ErrorResponse:
		return "calling the object store occurred a response error"
	case ErrorBucketNotFound:
		return "bucket not found"
	case ErrorObjectNotFound:
		return "object not found"
	case ErrorNotFound:
		return "not found"
	case ErrorPermissionDenied:
		return "permission denied by the object store"
	case ErrorAuth:
		return "authentication with the object store failed"
	case ErrorNetwork:
		return "network error calling the object store"
	case ErrorConfig:
		return "object store configuration is invalid"
	case ErrorParamsEmpty:
		return "given parameters are empty or invalid"
	}

	return ""
}

// WrapKind is the shared constructor every store implementation uses so a
// caller that only knows vfs.Kind can render the right message/exit code
// without depending on store's own CodeError values.
func WrapKind(code liberr.CodeError, kind vfs.Kind, parent error) error {
	return vfs.WrapKind(code.Error(parent), kind)
}
