package transport

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/application/service"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	domainservice "github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/service"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/infrastructure/transcoder"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) SetLevel(string)              {}
func (nopLogger) Close() error                 { return nil }

// noisyPNG is large enough to be worth compressing
func noisyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 96, 96))
	for y := 0; y < 96; y++ {
		for x := 0; x < 96; x++ {
			v := uint8((x*31 + y*17 + x*y) % 251)
			img.Set(x, y, color.NRGBA{R: v, G: 255 - v, B: uint8((x * y) % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.Greater(t, buf.Len(), int(model.MinCompressLength))
	return buf.Bytes()
}

// testOrigin serves handler and counts requests
type testOrigin struct {
	*httptest.Server
	hits atomic.Int32
}

func newTestOrigin(t *testing.T, handler http.HandlerFunc) *testOrigin {
	t.Helper()
	origin := &testOrigin{}
	origin.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(origin.Close)
	return origin
}

func imageOrigin(t *testing.T, contentType string, body []byte) *testOrigin {
	return newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	})
}

type testStack struct {
	proxy  *httptest.Server
	ws     *httptest.Server
	origin *OriginClient
}

// newTestStack wires the real pipeline behind test servers
func newTestStack(t *testing.T, delivery model.DeliveryMode, opts ...OriginOption) *testStack {
	t.Helper()

	config := model.NewConfig()
	config.Delivery = delivery

	guard, err := domainservice.NewLoopGuard(config.TrustedProxies)
	require.NoError(t, err)

	origin := NewOriginClient(config.Origin, nopLogger{}, opts...)
	t.Cleanup(origin.Close)

	proxy := service.NewProxyService(
		origin,
		service.NewCompressService(transcoder.NewImageTranscoder(nopLogger{}), config, nopLogger{}),
		guard,
		domainservice.NewEligibility(config.MinCompressLength),
		nil,
		nopLogger{},
	)
	parser := domainservice.NewParamsParser(config.DefaultQuality)

	stack := &testStack{
		proxy:  httptest.NewServer(NewHTTPHandler(parser, proxy, NewRedirector(nopLogger{}))),
		ws:     httptest.NewServer(NewWebSocketHandler(parser, proxy, nopLogger{})),
		origin: origin,
	}
	t.Cleanup(stack.proxy.Close)
	t.Cleanup(stack.ws.Close)
	return stack
}

// get requests the compression endpoint without following redirects
func (s *testStack) get(t *testing.T, query url.Values, header http.Header) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, s.proxy.URL+"/?"+query.Encode(), nil)
	require.NoError(t, err)
	for name, values := range header {
		req.Header[name] = values
	}

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
