package vfs

// Kind is the stable error-kind taxonomy shared across every component of
// the VFS/archive core (store, resolver, archive handlers, cache,
// completion, commands). Leaf packages raise errors.CodeError values and
// declare which Kind they map to so the dispatcher can render a stable
// message and pick an exit code without knowing the raising package.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermissionDenied
	KindAuthError
	KindNetworkError
	KindProtocolError
	KindUnsupportedArchive
	KindUnsupportedEntry
	KindCorruptArchive
	KindUnsafePath
	KindNotADirectory
	KindNotAFile
	KindAmbiguous
	KindCanceled
	KindTimeout
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindAuthError:
		return "AuthError"
	case KindNetworkError:
		return "NetworkError"
	case KindProtocolError:
		return "ProtocolError"
	case KindUnsupportedArchive:
		return "UnsupportedArchive"
	case KindUnsupportedEntry:
		return "UnsupportedEntry"
	case KindCorruptArchive:
		return "CorruptArchive"
	case KindUnsafePath:
		return "UnsafePath"
	case KindNotADirectory:
		return "NotADirectory"
	case KindNotAFile:
		return "NotAFile"
	case KindAmbiguous:
		return "Ambiguous"
	case KindCanceled:
		return "Canceled"
	case KindTimeout:
		return "Timeout"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// ExitCode maps a Kind to the process exit code policy of §6: usage errors
// are not raised as Kind values (cobra handles those at exit code 1), so
// every Kind here maps to 2 (runtime error) except Canceled, which maps to
// 130, matching an interrupted command.
func (k Kind) ExitCode() int {
	if k == KindCanceled {
		return 130
	}
	return 2
}

// KindOf extracts the Kind a wrapped error declares, or KindInternal if the
// error (or one of its parents) never declared one.
func KindOf(err error) Kind {
	if kw, ok := err.(interface{ VfsKind() Kind }); ok {
		return kw.VfsKind()
	}
	return KindInternal
}
