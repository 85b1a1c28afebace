package port

import (
	"time"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
)

// MetricsRecorder records pipeline outcomes
type MetricsRecorder interface {
	// RecordOutcome records how a request was settled and why
	RecordOutcome(outcome string, reason model.ErrorKind, duration time.Duration)

	// RecordTransfer records the sizes of a compressed response
	RecordTransfer(metrics model.TransferMetrics)

	// RecordRedirects records the redirects followed for a request
	RecordRedirects(hops uint)
}
