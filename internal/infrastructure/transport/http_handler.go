package transport

import (
	"io"
	"net/http"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/service"
)

// Banner is the body served when no image URL is given
const Banner = "bandwidth-hero-proxy"

// HTTPHandler serves the compression endpoint
type HTTPHandler struct {
	parser     *service.ParamsParser
	pipeline   port.ExchangeHandler
	redirector port.FailureRedirector
}

// NewHTTPHandler creates a new HTTPHandler instance
func NewHTTPHandler(parser *service.ParamsParser, pipeline port.ExchangeHandler, redirector port.FailureRedirector) *HTTPHandler {
	return &HTTPHandler{
		parser:     parser,
		pipeline:   pipeline,
		redirector: redirector,
	}
}

// ServeHTTP implements http.Handler
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, ok := h.parser.Parse(r.URL.Query())
	if !ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, Banner)
		return
	}

	h.pipeline.Handle(NewHTTPExchange(w, r, params, h.redirector))
}
