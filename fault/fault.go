// Package fault defines the failure kinds reported by evaluation and verification.
package fault

import (
	"errors"
	"fmt"
)

// Kinds of failure. Every error returned by this module wraps exactly one of these.
var (
	SchemaError         = errors.New("schema error")
	InvalidSignature    = errors.New("invalid signature")
	DidMismatch         = errors.New("did mismatch")
	StaleSnapshot       = errors.New("stale snapshot")
	UnsupportedDid      = errors.New("unsupported did")
	UnsupportedOperator = errors.New("unsupported operator")
	UnsupportedFunction = errors.New("unsupported function")
	PermissionDenied    = errors.New("permission denied")
	VotingPowerMismatch = errors.New("voting power mismatch")
	UpstreamUnavailable = errors.New("upstream unavailable")
)

var kinds = []error{
	SchemaError,
	InvalidSignature,
	DidMismatch,
	StaleSnapshot,
	UnsupportedDid,
	UnsupportedOperator,
	UnsupportedFunction,
	PermissionDenied,
	VotingPowerMismatch,
	UpstreamUnavailable,
}

// Error is a failure of a given kind at a path within the input.
type Error struct {
	Kind error
	Path string
	Err  error
}

// New returns an error of the given kind with a formatted message.
func New(kind error, path string, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

// Wrap returns an error of the given kind caused by err.
func Wrap(kind error, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// Upstream wraps a network or chain client failure.
func Upstream(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != nil {
		return err
	}
	return &Error{Kind: UpstreamUnavailable, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Within returns err with its path prefixed by the given path.
//
// Errors that are not a fault are returned unchanged.
func Within(path string, err error) error {
	var fe *Error
	if path == "" || !errors.As(err, &fe) {
		return err
	}
	out := *fe
	switch {
	case out.Path == "":
		out.Path = path
	case out.Path[0] == '[':
		out.Path = path + out.Path
	default:
		out.Path = path + "." + out.Path
	}
	return &out
}

// KindOf returns the failure kind of err or nil if err is not a fault.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// PathOf returns the input path the failure refers to.
func PathOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Path
	}
	return ""
}

// Retryable reports whether retrying the failed call could succeed.
func Retryable(err error) bool {
	return errors.Is(err, UpstreamUnavailable)
}
