package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/service"
)

var (
	errOriginTimeout = errors.New("origin timed out")
	errClientClosed  = errors.New("origin client closed")
)

// OriginOption customizes an OriginClient
type OriginOption func(*OriginClient)

// WithTLSConfig sets the TLS configuration of the https pool
func WithTLSConfig(config *tls.Config) OriginOption {
	return func(c *OriginClient) {
		c.secureTransport.TLSClientConfig = config
	}
}

// WithTimeout replaces the origin inactivity timeout
func WithTimeout(timeout time.Duration) OriginOption {
	return func(c *OriginClient) {
		c.timeout = timeout
	}
}

// OriginClient is an implementation of port.OriginConnector. It keeps one
// keep-alive pool per scheme and never follows redirects itself.
type OriginClient struct {
	plainTransport  *http.Transport
	secureTransport *http.Transport
	plain           *http.Client
	secure          *http.Client
	timeout         time.Duration
	closed          atomic.Bool
	logger          port.Logger
}

// NewOriginClient creates a new OriginClient instance
func NewOriginClient(config model.OriginConfig, logger port.Logger, opts ...OriginOption) *OriginClient {
	c := &OriginClient{
		timeout: model.OriginTimeout,
		logger:  logger,
	}
	c.plainTransport = c.newTransport(config)
	c.secureTransport = c.newTransport(config)

	for _, opt := range opts {
		opt(c)
	}

	if err := http2.ConfigureTransport(c.secureTransport); err != nil {
		logger.Warn("HTTP/2 disabled for origin requests: %v", err)
	}

	checkRedirect := func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	c.plain = &http.Client{Transport: c.plainTransport, CheckRedirect: checkRedirect}
	c.secure = &http.Client{Transport: c.secureTransport, CheckRedirect: checkRedirect}

	return c
}

func (c *OriginClient) newTransport(config model.OriginConfig) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   model.OriginTimeout,
		KeepAlive: config.KeepAlive,
	}

	return &http.Transport{
		Proxy: nil,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if c.closed.Load() {
				return nil, errClientClosed
			}
			return dialer.DialContext(ctx, network, addr)
		},
		MaxConnsPerHost:       config.MaxConnsPerHost,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxIdleConns:          config.MaxIdleConns,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   model.OriginTimeout,
		ResponseHeaderTimeout: 0,
		DisableCompression:    true,
	}
}

// Fetch implements port.OriginConnector. The origin must produce headers,
// and later each body read, within the timeout.
func (c *OriginClient) Fetch(parent context.Context, req port.OriginRequest) (*http.Response, error) {
	target, err := service.ValidateURL(req.URL)
	if err != nil {
		return nil, model.WrapError(model.KindInvalidURL, "origin.fetch", "invalid URL", err)
	}
	if c.closed.Load() {
		return nil, model.WrapError(model.KindOriginTransport, "origin.fetch", "shutting down", errClientClosed)
	}

	ctx, cancel := context.WithCancelCause(parent)
	timer := time.AfterFunc(c.timeout, func() { cancel(errOriginTimeout) })

	outbound, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		timer.Stop()
		cancel(nil)
		return nil, model.WrapError(model.KindInvalidURL, "origin.fetch", "invalid URL", err)
	}
	for _, name := range model.ForwardedHeaders {
		if values := req.Header.Values(name); len(values) > 0 {
			outbound.Header[name] = append([]string(nil), values...)
		}
	}
	outbound.Header.Set("User-Agent", model.UserAgent)
	outbound.Header.Set("Via", model.ViaMarker)
	if req.ForwardedFor != "" {
		outbound.Header.Set("X-Forwarded-For", req.ForwardedFor)
	}

	client := c.plain
	if target.Scheme == "https" {
		client = c.secure
	}

	resp, err := client.Do(outbound)
	if err != nil {
		timer.Stop()
		cause := context.Cause(ctx)
		cancel(nil)

		switch {
		case parent.Err() != nil:
			return nil, model.WrapError(model.KindClientDisconnect, "origin.fetch", "client went away", err)
		case errors.Is(cause, errOriginTimeout):
			return nil, model.WrapError(model.KindOriginTransport, "origin.fetch", "origin timed out", errOriginTimeout)
		default:
			return nil, model.WrapError(model.KindOriginTransport, "origin.fetch", "origin request failed", err)
		}
	}

	timer.Reset(c.timeout)
	resp.Body = &idleTimeoutBody{
		ctx:     ctx,
		body:    resp.Body,
		timer:   timer,
		timeout: c.timeout,
		cancel:  cancel,
	}
	return resp, nil
}

// Close stops new dials and drops idle pooled connections
func (c *OriginClient) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.plainTransport.CloseIdleConnections()
	c.secureTransport.CloseIdleConnections()
	c.logger.Debug("Origin connection pools closed")
}

// idleTimeoutBody cancels the fetch when the origin stalls between reads.
// A stall surfaces as an origin transport failure, not a read failure, so
// a request that has not responded yet can still fall back.
type idleTimeoutBody struct {
	ctx     context.Context
	body    io.ReadCloser
	timer   *time.Timer
	timeout time.Duration
	cancel  context.CancelCauseFunc
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	switch {
	case err == nil:
		b.timer.Reset(b.timeout)
	case errors.Is(err, io.EOF):
		b.timer.Stop()
	case errors.Is(context.Cause(b.ctx), errOriginTimeout):
		return n, model.WrapError(model.KindOriginTransport, "origin.read", "origin stalled", errOriginTimeout)
	}
	return n, err
}

// Close cancels the request before closing the body so a Read blocked on
// a stalled origin returns
func (b *idleTimeoutBody) Close() error {
	b.timer.Stop()
	b.cancel(nil)
	return b.body.Close()
}

// Ensure OriginClient implements port.OriginConnector
var _ port.OriginConnector = (*OriginClient)(nil)
