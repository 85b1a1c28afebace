package port

import (
	"context"
	"net/http"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
)

// Exchange is one client request and the single response it may receive
type Exchange interface {
	// Context is canceled when the client goes away
	Context() context.Context

	// Params returns the request parameters; the pipeline mutates them
	Params() *model.RequestParams

	// InboundHeader returns the client's request headers
	InboundHeader() http.Header

	// RemoteAddr returns the direct peer address (host:port)
	RemoteAddr() string

	// Begin sends response metadata. Called at most once.
	Begin(meta model.ResponseMeta) error

	// Write sends body bytes after Begin
	Write(p []byte) (int, error)

	// Finish completes a response started with Begin
	Finish(metrics model.TransferMetrics) error

	// Fallback sends the client to the original resource
	Fallback()

	// Reject answers with an error status
	Reject(status int, message string)

	// Abort tears the client connection down
	Abort()
}

// ExchangeHandler runs the compression pipeline for an exchange
type ExchangeHandler interface {
	Handle(ex Exchange)
}
