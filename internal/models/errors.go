package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies failures surfaced by the dataset and image pipelines.
type ErrorKind int

const (
	KindInvalidPath ErrorKind = iota + 1
	KindEmptyClass
	KindDegenerateMask
	KindUnsupportedImage
	KindWriteFailure
)

var (
	ErrInvalidPath      = errors.New("invalid path")
	ErrEmptyClass       = errors.New("empty class")
	ErrDegenerateMask   = errors.New("degenerate mask")
	ErrUnsupportedImage = errors.New("unsupported image")
	ErrWriteFailure     = errors.New("write failure")
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidPath:
		return "InvalidPath"
	case KindEmptyClass:
		return "EmptyClass"
	case KindDegenerateMask:
		return "DegenerateMask"
	case KindUnsupportedImage:
		return "UnsupportedImage"
	case KindWriteFailure:
		return "WriteFailure"
	default:
		return "Unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidPath:
		return ErrInvalidPath
	case KindEmptyClass:
		return ErrEmptyClass
	case KindDegenerateMask:
		return ErrDegenerateMask
	case KindUnsupportedImage:
		return ErrUnsupportedImage
	case KindWriteFailure:
		return ErrWriteFailure
	default:
		return nil
	}
}

// Error carries the offending path and the quantities needed to diagnose a
// failure. Fields use the same shape as logger fields so they can be logged
// without conversion.
type Error struct {
	Kind   ErrorKind
	Op     string
	Path   string
	Fields map[string]interface{}
	Err    error
}

func NewError(kind ErrorKind, op, path string, fields map[string]interface{}, cause error) *Error {
	return &Error{
		Kind:   kind,
		Op:     op,
		Path:   path,
		Fields: fields,
		Err:    cause,
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (path=%s)", e.Path)
	}

	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
		}
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// LogFields merges path and op into the diagnostic fields.
func (e *Error) LogFields() map[string]interface{} {
	fields := make(map[string]interface{}, len(e.Fields)+3)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields["kind"] = e.Kind.String()
	if e.Path != "" {
		fields["path"] = e.Path
	}
	if e.Op != "" {
		fields["op"] = e.Op
	}
	return fields
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func InvalidPath(op, path string, cause error) *Error {
	return NewError(KindInvalidPath, op, path, nil, cause)
}

func EmptyClass(op, path, class string, fields map[string]interface{}) *Error {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["class"] = class
	return NewError(KindEmptyClass, op, path, fields, nil)
}

func DegenerateMask(op, path string, fields map[string]interface{}) *Error {
	return NewError(KindDegenerateMask, op, path, fields, nil)
}

func UnsupportedImage(op, path string, fields map[string]interface{}, cause error) *Error {
	return NewError(KindUnsupportedImage, op, path, fields, cause)
}

func WriteFailure(op, path string, cause error) *Error {
	return NewError(KindWriteFailure, op, path, nil, cause)
}

// PathOf returns the path of the first *Error in err's chain.
func PathOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Path
	}
	return ""
}

// WithPath fills in the path on the first *Error in err's chain when it was
// raised before the path was known. Other errors are returned unchanged.
func WithPath(err error, path string) error {
	var e *Error
	if errors.As(err, &e) && e.Path == "" {
		copied := *e
		copied.Path = path
		return &copied
	}
	return err
}

// WithFields returns a copy of the *Error in err's chain with fields merged
// into its Fields. Existing keys win. Errors without an *Error are returned
// unchanged.
func WithFields(err error, fields map[string]interface{}) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}

	copied := *e
	copied.Fields = make(map[string]interface{}, len(e.Fields)+len(fields))
	for k, v := range fields {
		copied.Fields[k] = v
	}
	for k, v := range e.Fields {
		copied.Fields[k] = v
	}
	return &copied
}
