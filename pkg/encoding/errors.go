package encoding

import (
	"errors"
	"reflect"
	"strings"
)

// Fault kinds reported to the FailurePolicy. Match them with errors.Is.
var (
	ErrRecursionLimit  = errors.New("recursion limit exceeded")
	ErrUnsupportedType = errors.New("unsupported type")
	ErrTruncatedStream = errors.New("truncated stream")
	ErrInstantiation   = errors.New("instantiation failed")
	ErrMalformedStream = errors.New("malformed stream")
)

// ErrStreamIO wraps failures of the underlying io.Reader or io.Writer other
// than running out of input.
var ErrStreamIO = errors.New("stream i/o failed")

// Registry and configuration errors.
var (
	ErrSchemaSealed  = errors.New("schema already derived")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Op names used in Error.
const (
	OpWrite = "write"
	OpRead  = "read"
)

// Error describes a fault together with where in the graph it happened.
type Error struct {
	Op     string       // OpWrite or OpRead, empty outside a traversal
	Path   string       // field path from the root value, e.g. "Items[2].Name"
	Type   reflect.Type // Go type being processed, may be nil
	Detail string
	Err    error  // one of the fault sentinels
	Cause  error  // underlying error, e.g. from the stream
	CallID string // identifies the Serializer call in logs
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("graphcodec: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteByte(' ')
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Type != nil {
		b.WriteString(" (type ")
		b.WriteString(e.Type.String())
		b.WriteByte(')')
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes both the fault sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// IsTerminal reports whether a failure policy is allowed to swallow err.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrRecursionLimit)
}

func newError(sentinel error, t reflect.Type, detail string) *Error {
	return &Error{Err: sentinel, Type: t, Detail: detail}
}

func unsupported(t reflect.Type, detail string) *Error {
	return newError(ErrUnsupportedType, t, detail)
}

func malformed(t reflect.Type, detail string) *Error {
	return newError(ErrMalformedStream, t, detail)
}

// asError normalizes err into an *Error so traversal context can be attached.
// Errors from user code that are not faults are classified by the caller.
func asError(err error, sentinel error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Err: sentinel, Cause: err}
}
