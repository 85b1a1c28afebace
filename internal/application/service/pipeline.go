package service

import (
	"context"
	"errors"
	"io"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
)

// ChunkSource is the consuming end of a pipeline stage
type ChunkSource interface {
	// Next returns the next chunk, io.EOF at the end of the stream, or the
	// error the producer failed with
	Next(ctx context.Context) ([]byte, error)
}

// chunkQueue connects the transcoder to the forwarder through a bounded
// channel. Write blocks while the queue is full, so a slow client stops the
// transcoder instead of growing memory.
type chunkQueue struct {
	ctx    context.Context
	chunks chan []byte
	err    error
}

func newChunkQueue(ctx context.Context, depth int) *chunkQueue {
	if depth < 1 {
		depth = 1
	}
	return &chunkQueue{ctx: ctx, chunks: make(chan []byte, depth)}
}

// Write copies p into the queue
func (q *chunkQueue) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)

	select {
	case q.chunks <- chunk:
		return len(p), nil
	case <-q.ctx.Done():
		return 0, q.ctx.Err()
	}
}

// CloseWithError ends the stream. A nil err is a clean end. Must be called
// exactly once, by the producer.
func (q *chunkQueue) CloseWithError(err error) {
	q.err = err
	close(q.chunks)
}

// Next implements ChunkSource
func (q *chunkQueue) Next(ctx context.Context) ([]byte, error) {
	select {
	case chunk, ok := <-q.chunks:
		if !ok {
			if q.err != nil {
				return nil, q.err
			}
			return nil, io.EOF
		}
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// meteredWriter counts bytes accepted by w
type meteredWriter struct {
	w     io.Writer
	meter *model.Meter
}

func (m *meteredWriter) Write(p []byte) (int, error) {
	n, err := m.w.Write(p)
	m.meter.Observe(n)
	return n, err
}

// originReader tags origin body failures so they are not mistaken for
// transcoder failures
type originReader struct {
	r io.Reader
}

func (o *originReader) Read(p []byte) (int, error) {
	n, err := o.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = model.WrapError(model.KindOriginRead, "origin.read", "origin body read failed", err)
	}
	return n, err
}
