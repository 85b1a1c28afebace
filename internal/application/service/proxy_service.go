package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
	domainservice "github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/service"
)

// maxDiscard is how much of an unwanted origin body is drained so the
// connection can return to the pool
const maxDiscard = 64 << 10

// ProxyService runs the request pipeline: loop protection, origin
// resolution with bounded redirects, eligibility and compression. Every
// request is settled exactly once.
type ProxyService struct {
	origin      port.OriginConnector
	compressor  *CompressService
	loopGuard   *domainservice.LoopGuard
	eligibility *domainservice.Eligibility
	metrics     port.MetricsRecorder
	logger      port.Logger
}

// NewProxyService creates a new ProxyService instance
func NewProxyService(
	origin port.OriginConnector,
	compressor *CompressService,
	loopGuard *domainservice.LoopGuard,
	eligibility *domainservice.Eligibility,
	metrics port.MetricsRecorder,
	logger port.Logger,
) *ProxyService {
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &ProxyService{
		origin:      origin,
		compressor:  compressor,
		loopGuard:   loopGuard,
		eligibility: eligibility,
		metrics:     metrics,
		logger:      logger,
	}
}

// Handle implements port.ExchangeHandler
func (s *ProxyService) Handle(ex port.Exchange) {
	start := time.Now()
	guard := &exchangeGuard{Exchange: ex}

	err := s.run(guard)

	outcome := guard.action(err)
	s.metrics.RecordOutcome(outcome.String(), reason(err), time.Since(start))
	s.report(guard.Params(), outcome, err)

	guard.settle(err)
}

func (s *ProxyService) run(ex *exchangeGuard) error {
	params := ex.Params()
	header := ex.InboundHeader()

	if s.loopGuard.IsSelfLoop(header, ex.RemoteAddr()) {
		return model.NewError(model.KindSelfLoop, "proxy", "request came back through this proxy")
	}
	forwardedFor := domainservice.ForwardedFor(header, ex.RemoteAddr())

	resp, err := s.resolve(ex.Context(), params, header, forwardedFor)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	params.OriginType = resp.Header.Get("Content-Type")
	params.OriginSize = originSize(resp)

	if !s.eligibility.ShouldCompress(params) {
		return model.NewError(model.KindIneligible, "proxy",
			fmt.Sprintf("%q of %d bytes is not worth compressing", params.OriginType, params.OriginSize))
	}

	metrics, err := s.compressor.Compress(ex, resp.Body, params)
	if err != nil {
		return err
	}
	s.metrics.RecordTransfer(metrics)
	return nil
}

// resolve fetches params.URL, following at most RedirectState.Bound
// redirects. params.URL always names the last URL fetched.
func (s *ProxyService) resolve(ctx context.Context, params *model.RequestParams, header http.Header, forwardedFor string) (*http.Response, error) {
	state := model.NewRedirectState()
	defer func() {
		s.metrics.RecordRedirects(state.Count)
	}()

	for {
		resp, err := s.origin.Fetch(ctx, port.OriginRequest{
			URL:          params.URL,
			Header:       header,
			ForwardedFor: forwardedFor,
		})
		if err != nil {
			return nil, err
		}

		location := resp.Header.Get("Location")
		switch {
		case resp.StatusCode >= http.StatusBadRequest:
			discard(resp)
			return nil, model.NewError(model.KindOriginStatus, "proxy.resolve",
				fmt.Sprintf("origin answered %d", resp.StatusCode))

		case resp.StatusCode >= http.StatusMultipleChoices && location != "":
			discard(resp)
			if state.Exhausted() {
				return nil, model.NewError(model.KindRedirectLoop, "proxy.resolve",
					fmt.Sprintf("origin redirected more than %d times", state.Bound))
			}

			next, err := domainservice.ResolveLocation(params.URL, location)
			if err != nil {
				return nil, model.WrapError(model.KindRedirectResolution, "proxy.resolve", "unusable Location header", err)
			}

			state.Advance()
			s.logger.Debug("Following redirect %d/%d: %s -> %s", state.Count, state.Bound, params.URL, next)
			params.URL = next

		default:
			return resp, nil
		}
	}
}

func (s *ProxyService) report(params *model.RequestParams, outcome settlement, err error) {
	switch {
	case err == nil:
		s.logger.Debug("Compressed %s (%s, %d bytes)", params.URL, params.OriginType, params.OriginSize)
	case model.IsKind(err, model.KindOriginTransport):
		s.logger.Error("Origin request for %s failed: %v", params.URL, err)
	case model.IsKind(err, model.KindTranscode), model.IsKind(err, model.KindOriginRead):
		s.logger.Warn("Compression of %s %s: %v", params.URL, outcome, err)
	default:
		s.logger.Debug("Request for %s %s: %v", params.URL, outcome, err)
	}
}

// discard drains a little of an unwanted body before closing it so small
// responses keep their connection reusable
func discard(resp *http.Response) {
	_, _ = io.CopyN(io.Discard, resp.Body, maxDiscard)
	resp.Body.Close()
}

func originSize(resp *http.Response) uint64 {
	if size, err := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64); err == nil {
		return size
	}
	if resp.ContentLength > 0 {
		return uint64(resp.ContentLength)
	}
	return 0
}

func reason(err error) model.ErrorKind {
	if err == nil {
		return ""
	}
	return model.KindOf(err)
}
