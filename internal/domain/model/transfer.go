package model

// TransferMetrics describes the size effect of one compressed response
type TransferMetrics struct {
	// OriginalSize is the origin Content-Length
	OriginalSize uint64 `json:"original_size"`
	// CompressedSize is the number of body bytes sent to the client
	CompressedSize uint64 `json:"compressed_size"`
}

// BytesSaved returns max(0, OriginalSize - CompressedSize)
func (m TransferMetrics) BytesSaved() uint64 {
	if m.CompressedSize >= m.OriginalSize {
		return 0
	}
	return m.OriginalSize - m.CompressedSize
}

// Meter accumulates the compressed size of an output stream.
// It is owned by a single goroutine.
type Meter struct {
	metrics   TransferMetrics
	finalized bool
}

// NewMeter creates a Meter for an origin of the given size
func NewMeter(originalSize uint64) *Meter {
	return &Meter{metrics: TransferMetrics{OriginalSize: originalSize}}
}

// Observe adds n bytes to the compressed size. Observations after
// finalization are ignored.
func (m *Meter) Observe(n int) {
	if m.finalized || n <= 0 {
		return
	}
	m.metrics.CompressedSize += uint64(n)
}

// Finalize freezes the metrics and returns them. Later calls return the
// same value.
func (m *Meter) Finalize() TransferMetrics {
	m.finalized = true
	return m.metrics
}

// Metrics returns the final metrics; ok is false until Finalize is called
func (m *Meter) Metrics() (TransferMetrics, bool) {
	if !m.finalized {
		return TransferMetrics{}, false
	}
	return m.metrics, true
}

// RedirectState tracks origin redirects followed for one client request
type RedirectState struct {
	Count uint
	Bound uint
}

// NewRedirectState creates a RedirectState with the default bound
func NewRedirectState() RedirectState {
	return RedirectState{Bound: MaxRedirects}
}

// Exhausted reports whether another redirect may not be followed
func (s RedirectState) Exhausted() bool {
	return s.Count >= s.Bound
}

// Advance records one followed redirect
func (s *RedirectState) Advance() {
	s.Count++
}
