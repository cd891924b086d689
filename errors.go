package okv

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyKey is returned when a key source encodes to zero bytes.
	ErrEmptyKey = errors.New("okv: empty key")

	// ErrClosed is returned by backends after Close.
	ErrClosed = errors.New("okv: backend closed")
)

// DecodeErrorKind classifies malformed input. Each kind is itself an error,
// so errors.Is(err, okv.Truncated) matches any *DecodeError of that kind.
type DecodeErrorKind int

const (
	Truncated DecodeErrorKind = iota + 1
	UnknownTag
	ShapeMismatch
	UnsupportedKind
	Corrupt
)

func (k DecodeErrorKind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case UnknownTag:
		return "unknown tag"
	case ShapeMismatch:
		return "shape mismatch"
	case UnsupportedKind:
		return "unsupported kind"
	case Corrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("DecodeErrorKind(%d)", int(k))
	}
}

func (k DecodeErrorKind) Error() string {
	return k.String()
}

type DecodeError struct {
	Kind DecodeErrorKind
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func decodeErrf(kind DecodeErrorKind, data []byte, off int, err error, format string, args ...any) error {
	return &DecodeError{kind, data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	if k, ok := target.(DecodeErrorKind); ok {
		return e.Kind == k
	}
	return false
}

func (e *DecodeError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	var buf strings.Builder
	buf.WriteString(e.Kind.String())
	buf.WriteString(": ")
	buf.WriteString(e.Msg)
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	n := len(e.Data)
	if n == 0 {
		return buf.String()
	}
	if n <= prefixLen+suffixLen {
		fmt.Fprintf(&buf, ": (%d) %x", n, e.Data)
	} else {
		fmt.Fprintf(&buf, ": (%d) %x...%x", n, e.Data[:prefixLen], e.Data[n-suffixLen:])
	}
	if e.Off > 0 {
		fmt.Fprintf(&buf, " at %d", e.Off)
	}
	return buf.String()
}

// BackendError wraps a failure reported by the storage medium. The store
// does not interpret Err.
type BackendError struct {
	Op  string
	Key []byte
	Err error
}

func backendErr(op string, key []byte, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{op, key, err}
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Error() string {
	var buf strings.Builder
	buf.WriteString("okv: ")
	buf.WriteString(e.Op)
	if e.Key != nil {
		buf.WriteByte(' ')
		buf.WriteString(Key(e.Key).String())
	}
	buf.WriteString(": ")
	buf.WriteString(e.Err.Error())
	return buf.String()
}

// EntryError reports an entry that could not be decoded during a scan.
type EntryError struct {
	Key Key
	Err error
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("okv: entry %v: %v", e.Key, e.Err)
}
