package save

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrValidation is matched by errors caused by the request itself.
	ErrValidation = errors.New("changeset: validation failed")

	// ErrConflict is matched by duplicate-key insert failures.
	ErrConflict = errors.New("changeset: conflict")

	// ErrNotFound is matched by updates and deletes that matched no document.
	ErrNotFound = errors.New("changeset: not found")

	// ErrInternal is matched by hook, store and malformed-result failures.
	ErrInternal = errors.New("changeset: internal error")

	// ErrPartialFailure is matched by the terminal error of a batch whose
	// result carries at least one error entry.
	ErrPartialFailure = errors.New("changeset: batch partially failed")
)

// Kind classifies an Error.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindNotFound
	KindInternal
	KindPartialFailure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInternal:
		return "internal"
	case KindPartialFailure:
		return "partial_failure"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for c := KindValidation; c <= KindPartialFailure; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

// Status returns the HTTP status code that corresponds to the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	case KindPartialFailure:
		return ErrPartialFailure
	default:
		return ErrInternal
	}
}

// Error is the error type returned by the save pipeline.
type Error struct {
	Kind     Kind
	Op       string // phase or hook that failed
	TypeName string
	Key      any
	Field    string
	Value    any
	Msg      string
	Err      error

	// Result is the partially built result for failures after dispatch.
	Result *Result
}

func (e *Error) Error() string {
	var buf strings.Builder
	buf.WriteString("changeset: ")
	if e.Op != "" {
		buf.WriteString(e.Op)
		buf.WriteString(": ")
	}
	if e.Msg != "" {
		buf.WriteString(e.Msg)
	} else {
		buf.WriteString(e.Kind.String())
	}
	if e.TypeName != "" {
		fmt.Fprintf(&buf, " (type %s", e.TypeName)
		if e.Key != nil {
			fmt.Fprintf(&buf, ", key %v", e.Key)
		}
		if e.Field != "" {
			fmt.Fprintf(&buf, ", field %s", e.Field)
		}
		if e.Value != nil {
			fmt.Fprintf(&buf, ", value %v", e.Value)
		}
		buf.WriteString(")")
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ResultOf returns the Result attached to err, if any.
func ResultOf(err error) *Result {
	var e *Error
	if errors.As(err, &e) {
		return e.Result
	}
	return nil
}

// wrapHookError attaches hook context to an error returned by a hook.
func wrapHookError(hook string, err error) *Error {
	kind := KindInternal
	var e *Error
	if errors.As(err, &e) && e.Kind != KindPartialFailure {
		kind = e.Kind
	}
	return &Error{Kind: kind, Op: hook, Err: err}
}
