package transport

import (
	"net/http"
	"strings"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
)

// strippedHeaders are removed before redirecting so nothing prepared for a
// compressed response leaks into the 302
var strippedHeaders = []string{
	"Cache-Control",
	"Expires",
	"Date",
	"ETag",
	"Content-Type",
	"Content-Encoding",
	"X-Original-Size",
	"X-Bytes-Saved",
	"Trailer",
}

// headerState is implemented by response writers that know whether the
// status line was written
type headerState interface {
	HeaderWritten() bool
}

// Redirector is an implementation of port.FailureRedirector
type Redirector struct {
	logger port.Logger
}

// NewRedirector creates a new Redirector instance
func NewRedirector(logger port.Logger) *Redirector {
	return &Redirector{logger: logger}
}

// Redirect implements port.FailureRedirector
func (r *Redirector) Redirect(w http.ResponseWriter, req *http.Request, target string) {
	if state, ok := w.(headerState); ok && state.HeaderWritten() {
		r.logger.Debug("Redirect to %s skipped, response already started", target)
		return
	}

	h := w.Header()
	for _, name := range strippedHeaders {
		h.Del(name)
	}
	h.Set("Content-Length", "0")
	h.Set("Location", EncodeURI(target))
	w.WriteHeader(http.StatusFound)
}

const hexDigits = "0123456789ABCDEF"

// EncodeURI percent-encodes every byte outside the URI reserved and
// unreserved sets. Existing %XX escapes are kept.
func EncodeURI(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '%' && i+2 < len(raw) && isHex(raw[i+1]) && isHex(raw[i+2]):
			b.WriteByte(c)
		case keepInURI(c):
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}

func keepInURI(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'();/?:@&=+$,#", c) >= 0
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

// Ensure Redirector implements port.FailureRedirector
var _ port.FailureRedirector = (*Redirector)(nil)
