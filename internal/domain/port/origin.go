package port

import (
	"context"
	"net/http"
)

// OriginRequest describes one outbound fetch
type OriginRequest struct {
	// URL is the absolute origin URL
	URL string
	// Header holds the inbound client headers; only the forwarding
	// allow-list is copied
	Header http.Header
	// ForwardedFor is sent as X-Forwarded-For
	ForwardedFor string
}

// OriginConnector performs outbound origin requests over pooled connections
type OriginConnector interface {
	// Fetch issues one GET without following redirects. The caller must
	// close the response body.
	Fetch(ctx context.Context, req OriginRequest) (*http.Response, error)

	// Close drains the connection pools; later fetches fail
	Close()
}
