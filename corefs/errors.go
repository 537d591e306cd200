package corefs

import "errors"

// ErrorKind classifies the errors the core surfaces to clients, per the
// error handling design: the cache and the task runner never invent their
// own error taxonomy beyond this fixed set.
type ErrorKind int

// The fixed set of error kinds the core ever surfaces.
const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindPermissionDenied
	KindExists
	KindInvalidFilename
	KindUnsupportedFormat
	KindCancelled
	KindIO
	KindBackendUnavailable
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindExists:
		return "Exists"
	case KindInvalidFilename:
		return "InvalidFilename"
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindCancelled:
		return "Cancelled"
	case KindIO:
		return "Io"
	case KindBackendUnavailable:
		return "BackendUnavailable"
	case KindTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Error wraps a causing error with the ErrorKind the rest of the system
// dispatches on. Construct with New/Wrap; inspect with KindOf.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with a plain message.
func New(kind ErrorKind, msg string) error {
	return &Error{Kind: kind, Cause: errors.New(msg)}
}

// Wrap attaches kind to an existing error. Wrapping nil returns nil.
func Wrap(kind ErrorKind, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: cause}
}

// KindOf extracts the ErrorKind from err, walking Unwrap chains. Errors that
// were never classified report KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsCancelled is shorthand for KindOf(err) == KindCancelled.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// Sentinel instances for equality checks where no extra context is useful.
var (
	ErrCancelled = New(KindCancelled, "cancelled")
	ErrNotFound  = New(KindNotFound, "not found")
)
