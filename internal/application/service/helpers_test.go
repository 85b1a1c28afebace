package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
	domainservice "github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/service"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) SetLevel(string)              {}
func (nopLogger) Close() error                 { return nil }

// fakeExchange records everything the pipeline sends to the client
type fakeExchange struct {
	ctx    context.Context
	params *model.RequestParams
	header http.Header
	remote string

	mu        sync.Mutex
	meta      *model.ResponseMeta
	body      bytes.Buffer
	finished  *model.TransferMetrics
	fallbacks int
	rejects   []int
	aborts    int

	writeHook func(p []byte) error
}

func newFakeExchange(rawURL string) *fakeExchange {
	return &fakeExchange{
		ctx:    context.Background(),
		params: &model.RequestParams{URL: rawURL, WebP: true, Grayscale: true, Quality: 40},
		header: http.Header{},
		remote: "203.0.113.10:40000",
	}
}

func (e *fakeExchange) Context() context.Context     { return e.ctx }
func (e *fakeExchange) Params() *model.RequestParams { return e.params }
func (e *fakeExchange) InboundHeader() http.Header   { return e.header }
func (e *fakeExchange) RemoteAddr() string           { return e.remote }

func (e *fakeExchange) Begin(meta model.ResponseMeta) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.meta = &meta
	return nil
}

func (e *fakeExchange) Write(p []byte) (int, error) {
	if e.writeHook != nil {
		if err := e.writeHook(p); err != nil {
			return 0, err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.body.Write(p)
}

func (e *fakeExchange) Finish(metrics model.TransferMetrics) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = &metrics
	return nil
}

func (e *fakeExchange) Fallback()                  { e.fallbacks++ }
func (e *fakeExchange) Reject(status int, _ string) { e.rejects = append(e.rejects, status) }
func (e *fakeExchange) Abort()                     { e.aborts++ }

func (e *fakeExchange) terminalResponses() int {
	n := e.fallbacks + len(e.rejects) + e.aborts
	if e.finished != nil {
		n++
	}
	return n
}

// fakeOrigin answers fetches from a function and records requested URLs
type fakeOrigin struct {
	mu      sync.Mutex
	calls   []string
	respond func(rawURL string) (*http.Response, error)
}

func (o *fakeOrigin) Fetch(_ context.Context, req port.OriginRequest) (*http.Response, error) {
	o.mu.Lock()
	o.calls = append(o.calls, req.URL)
	o.mu.Unlock()

	if _, err := domainservice.ValidateURL(req.URL); err != nil {
		return nil, model.WrapError(model.KindInvalidURL, "fake.fetch", "invalid URL", err)
	}
	return o.respond(req.URL)
}

func (o *fakeOrigin) Close() {}

func (o *fakeOrigin) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

func imageResponse(contentType string, body []byte) *http.Response {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.Itoa(len(body)))
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        header,
		Body:          &trackedBody{Reader: bytes.NewReader(body)},
		ContentLength: int64(len(body)),
	}
}

func statusResponse(status int, location string) *http.Response {
	header := http.Header{}
	if location != "" {
		header.Set("Location", location)
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}
}

// halvingTranscoder emits every second input byte, prefixed by the format,
// in fixed-size chunks
type halvingTranscoder struct {
	chunkSize   int
	failBefore  error
	failAfter   int
	failWith    error
	lastOptions model.TranscodeOptions
}

func (t *halvingTranscoder) Transcode(ctx context.Context, src io.Reader, dst io.Writer, opts model.TranscodeOptions) error {
	t.lastOptions = opts
	input, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	if t.failBefore != nil {
		return t.failBefore
	}

	out := []byte(string(opts.Format) + ":")
	for i := 0; i < len(input); i += 2 {
		out = append(out, input[i])
	}

	size := t.chunkSize
	if size <= 0 {
		size = 512
	}
	written := 0
	for start := 0; start < len(out); start += size {
		if t.failWith != nil && written >= t.failAfter {
			return t.failWith
		}
		end := start + size
		if end > len(out) {
			end = len(out)
		}
		if _, err := dst.Write(out[start:end]); err != nil {
			return err
		}
		written++
	}
	return nil
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func (r *failingReader) Close() error { return nil }

var errBoom = errors.New("boom")

func testImage(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func newTestProxy(t interface{ Fatalf(string, ...interface{}) }, origin port.OriginConnector, transcoder port.Transcoder, delivery model.DeliveryMode) *ProxyService {
	config := model.NewConfig()
	config.Delivery = delivery
	config.QueueDepth = 2

	guard, err := domainservice.NewLoopGuard(config.TrustedProxies)
	if err != nil {
		t.Fatalf("loop guard: %v", err)
	}

	return NewProxyService(
		origin,
		NewCompressService(transcoder, config, nopLogger{}),
		guard,
		domainservice.NewEligibility(config.MinCompressLength),
		nil,
		nopLogger{},
	)
}
