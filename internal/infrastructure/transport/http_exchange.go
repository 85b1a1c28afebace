package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
)

// HTTPExchange is an implementation of port.Exchange over a plain HTTP
// request
type HTTPExchange struct {
	w          http.ResponseWriter
	r          *http.Request
	params     *model.RequestParams
	redirector port.FailureRedirector
	controller *http.ResponseController
	streamed   bool
}

// NewHTTPExchange creates a new HTTPExchange instance
func NewHTTPExchange(w http.ResponseWriter, r *http.Request, params *model.RequestParams, redirector port.FailureRedirector) *HTTPExchange {
	return &HTTPExchange{
		w:          w,
		r:          r,
		params:     params,
		redirector: redirector,
		controller: http.NewResponseController(w),
	}
}

func (e *HTTPExchange) Context() context.Context     { return e.r.Context() }
func (e *HTTPExchange) Params() *model.RequestParams { return e.params }
func (e *HTTPExchange) InboundHeader() http.Header   { return e.r.Header }
func (e *HTTPExchange) RemoteAddr() string           { return e.r.RemoteAddr }

// Begin writes the response headers
func (e *HTTPExchange) Begin(meta model.ResponseMeta) error {
	h := e.w.Header()
	h.Set("Content-Encoding", "identity")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Cross-Origin-Resource-Policy", "cross-origin")
	h.Set("Cross-Origin-Embedder-Policy", "unsafe-none")
	h.Set("Cache-Control", model.CacheControl)
	h.Set("Content-Type", meta.ContentType)
	h.Set("X-Original-Size", strconv.FormatUint(meta.OriginalSize, 10))

	if meta.Streamed() {
		e.streamed = true
		h.Set("Trailer", "X-Compressed-Size, X-Bytes-Saved")
	} else {
		h.Set("Content-Length", strconv.FormatInt(meta.ContentLength, 10))
		h.Set("X-Bytes-Saved", strconv.FormatUint(meta.BytesSaved, 10))
	}

	e.w.WriteHeader(http.StatusOK)
	return nil
}

// Write sends body bytes, flushing each chunk in streamed mode
func (e *HTTPExchange) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil || !e.streamed {
		return n, err
	}
	if err := e.controller.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, err
	}
	return n, nil
}

// Finish sets the size trailers of a streamed response
func (e *HTTPExchange) Finish(metrics model.TransferMetrics) error {
	if e.streamed {
		h := e.w.Header()
		h.Set("X-Compressed-Size", strconv.FormatUint(metrics.CompressedSize, 10))
		h.Set("X-Bytes-Saved", strconv.FormatUint(metrics.BytesSaved(), 10))
	}
	return nil
}

// Fallback redirects the client to the last origin URL
func (e *HTTPExchange) Fallback() {
	e.redirector.Redirect(e.w, e.r, e.params.URL)
}

// Reject answers with a plain-text error
func (e *HTTPExchange) Reject(status int, message string) {
	http.Error(e.w, message, status)
}

// Abort breaks the connection without completing the response
func (e *HTTPExchange) Abort() {
	panic(http.ErrAbortHandler)
}

// Ensure HTTPExchange implements port.Exchange
var _ port.Exchange = (*HTTPExchange)(nil)
