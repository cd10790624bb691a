// Package errors decorates errors with structured annotations and the source location where they were wrapped.
//
// It is a drop-in replacement for the standard library errors package. Log the errors with [SlogError] to get the
// annotations and source location as structured attributes.
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
)

type annotatedError struct {
	msg    string
	cause  error
	attrs  []slog.Attr
	source string
}

func (e *annotatedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.cause
}

// NewSentinel creates an error meant to be compared against with [Is]. It carries no source location.
func NewSentinel(msg string) error {
	return stderrors.New(msg) //nolint:err113 // this is the sentinel constructor.
}

// New creates an error annotated with attrs and the caller's source location.
func New(msg string, attrs ...slog.Attr) error {
	return &annotatedError{msg: msg, cause: nil, attrs: attrs, source: callerSource(2)} //nolint:mnd // caller of New.
}

// Wrap annotates err with msg, attrs and the caller's source location. Wrap returns nil when err is nil.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	return &annotatedError{msg: msg, cause: err, attrs: attrs, source: callerSource(2)} //nolint:mnd // caller of Wrap.
}

// DecoratePanic converts a value returned by recover into an error pointing to where the panic happened.
func DecoratePanic(v any) error {
	if v == nil {
		return nil
	}
	e := &annotatedError{msg: "panic", cause: nil, attrs: nil, source: panicSource()}
	if err, ok := v.(error); ok {
		e.cause = err
	} else {
		e.msg = fmt.Sprintf("panic: %v", v)
	}
	return e
}

// SlogError returns err as an "error" group containing the message, the annotations collected from the whole
// wrap chain, and the source location of the innermost annotated error.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	var (
		annotations []slog.Attr
		source      string
	)
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		ae, ok := e.(*annotatedError)
		if !ok {
			continue
		}
		annotations = append(annotations, ae.attrs...)
		if ae.source != "" {
			source = ae.source
		}
	}
	attrs := []any{slog.String("message", err.Error())}
	if len(annotations) > 0 {
		attrs = append(attrs, slog.Attr{Key: "annotations", Value: slog.GroupValue(annotations...)})
	}
	if source != "" {
		attrs = append(attrs, slog.String("source", source))
	}
	return slog.Group("error", attrs...)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

func callerSource(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// panicSource finds the frame that called panic when invoked from a deferred function.
func panicSource() string {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(3, pcs) //nolint:mnd // skip runtime.Callers, panicSource and DecoratePanic.
	frames := runtime.CallersFrames(pcs[:n])
	afterPanic := false
	for {
		frame, more := frames.Next()
		if afterPanic {
			return filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
		}
		if frame.Function == "runtime.gopanic" {
			afterPanic = true
		}
		if !more {
			return ""
		}
	}
}
