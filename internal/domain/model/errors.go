package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures by how they are settled
type ErrorKind string

const (
	// KindInvalidURL is a malformed request URL, answered with 400
	KindInvalidURL ErrorKind = "invalid_url"
	// KindOriginTransport covers timeouts, refused connections and TLS failures
	KindOriginTransport ErrorKind = "origin_transport"
	// KindOriginStatus is an origin 4xx/5xx response
	KindOriginStatus ErrorKind = "origin_status"
	// KindRedirectLoop is a redirect chain longer than the bound
	KindRedirectLoop ErrorKind = "redirect_loop_exceeded"
	// KindRedirectResolution is an unusable Location header
	KindRedirectResolution ErrorKind = "redirect_resolution"
	// KindIneligible is an origin response not worth compressing
	KindIneligible ErrorKind = "ineligible"
	// KindTranscode is a transcoder failure
	KindTranscode ErrorKind = "transcode"
	// KindOriginRead is a failure reading the origin body
	KindOriginRead ErrorKind = "origin_read"
	// KindClientDisconnect is a client that went away
	KindClientDisconnect ErrorKind = "client_disconnect"
	// KindSelfLoop is a request that came back through this proxy
	KindSelfLoop ErrorKind = "self_loop"
	// KindUnknown is any error without a kind
	KindUnknown ErrorKind = "unknown"
)

// PipelineError is an error raised by one stage of the request pipeline
type PipelineError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewError creates a PipelineError without a cause
func NewError(kind ErrorKind, op, message string) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Message: message}
}

// WrapError wraps err into a PipelineError. An err that already carries a
// kind is returned unchanged.
func WrapError(kind ErrorKind, op, message string, err error) error {
	if err == nil {
		return nil
	}

	var typed *PipelineError
	if errors.As(err, &typed) {
		return err
	}

	return &PipelineError{Kind: kind, Op: op, Message: message, Cause: err}
}

// KindOf returns the kind of the first PipelineError in err's chain
func KindOf(err error) ErrorKind {
	var typed *PipelineError
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
