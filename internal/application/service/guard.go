package service

import (
	"errors"
	"net/http"
	"time"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
)

var (
	errAlreadyBegun = errors.New("response already begun")
	errNotBegun     = errors.New("response not begun")
)

// settlement is the terminal action taken for a request
type settlement int

const (
	settleCompressed settlement = iota
	settleAbandon
	settleReject
	settleFallback
	settleAbort
)

func (s settlement) String() string {
	switch s {
	case settleCompressed:
		return "compressed"
	case settleAbandon:
		return "abandoned"
	case settleReject:
		return "rejected"
	case settleFallback:
		return "fallback"
	case settleAbort:
		return "aborted"
	default:
		return "unknown"
	}
}

// exchangeGuard tracks whether anything reached the client and settles the
// exchange exactly once. Once a response has begun the only failure
// settlement left is aborting the connection.
type exchangeGuard struct {
	port.Exchange
	begun   bool
	settled bool
}

func (g *exchangeGuard) Begin(meta model.ResponseMeta) error {
	if g.begun {
		return errAlreadyBegun
	}
	g.begun = true
	return g.Exchange.Begin(meta)
}

func (g *exchangeGuard) Write(p []byte) (int, error) {
	if !g.begun {
		return 0, errNotBegun
	}
	return g.Exchange.Write(p)
}

func (g *exchangeGuard) Finish(metrics model.TransferMetrics) error {
	if !g.begun {
		return errNotBegun
	}
	return g.Exchange.Finish(metrics)
}

// action maps the pipeline result to its settlement
func (g *exchangeGuard) action(err error) settlement {
	if err == nil {
		return settleCompressed
	}
	if g.begun {
		return settleAbort
	}

	switch model.KindOf(err) {
	case model.KindClientDisconnect:
		return settleAbandon
	case model.KindInvalidURL:
		return settleReject
	case model.KindOriginRead:
		return settleAbort
	default:
		return settleFallback
	}
}

// settle performs the terminal action. Abort may not return.
func (g *exchangeGuard) settle(err error) {
	if g.settled {
		return
	}
	g.settled = true

	switch g.action(err) {
	case settleReject:
		g.Exchange.Reject(http.StatusBadRequest, "Invalid URL")
	case settleFallback:
		g.Exchange.Fallback()
	case settleAbort:
		g.Exchange.Abort()
	}
}

// nopMetrics is used when no recorder is configured
type nopMetrics struct{}

func (nopMetrics) RecordOutcome(string, model.ErrorKind, time.Duration) {}
func (nopMetrics) RecordTransfer(model.TransferMetrics)                 {}
func (nopMetrics) RecordRedirects(uint)                                 {}
