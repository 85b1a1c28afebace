package service

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
)

// countingTranscoder writes fixed chunks and counts completed writes
type countingTranscoder struct {
	chunks   [][]byte
	produced atomic.Int32
}

func (t *countingTranscoder) Transcode(ctx context.Context, src io.Reader, dst io.Writer, _ model.TranscodeOptions) error {
	if _, err := io.Copy(io.Discard, src); err != nil {
		return err
	}
	for _, chunk := range t.chunks {
		if _, err := dst.Write(chunk); err != nil {
			return err
		}
		t.produced.Add(1)
	}
	return nil
}

func TestCompressService_StreamedBackpressure(t *testing.T) {
	const depth = 2

	transcoder := &countingTranscoder{}
	var expected []byte
	for i := 0; i < 20; i++ {
		chunk := bytes.Repeat([]byte{byte('a' + i)}, 100)
		transcoder.chunks = append(transcoder.chunks, chunk)
		expected = append(expected, chunk...)
	}

	config := model.NewConfig()
	config.QueueDepth = depth
	compressor := NewCompressService(transcoder, config, nopLogger{})

	blocked := make(chan struct{})
	release := make(chan struct{})
	var writes atomic.Int32

	ex := newFakeExchange("https://images.example.com/a.jpg")
	ex.params.OriginSize = 5000
	ex.writeHook = func([]byte) error {
		if writes.Add(1) == 1 {
			close(blocked)
			<-release
		}
		return nil
	}

	type result struct {
		metrics model.TransferMetrics
		err     error
	}
	done := make(chan result, 1)
	go func() {
		metrics, err := compressor.Compress(ex, io.NopCloser(bytes.NewReader(nil)), ex.params)
		done <- result{metrics, err}
	}()

	<-blocked
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, int(transcoder.produced.Load()), depth+1,
		"transcoder must stop while the client is not draining")

	close(release)

	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("compression did not finish after the client drained")
	}

	require.NoError(t, res.err)
	assert.Equal(t, expected, ex.body.Bytes(), "no bytes dropped or reordered")
	assert.Equal(t, uint64(len(expected)), res.metrics.CompressedSize)
	assert.Equal(t, uint64(ex.body.Len()), ex.finished.CompressedSize)
	assert.Equal(t, uint64(5000-len(expected)), ex.finished.BytesSaved())
}

func TestCompressService_WriteFailureReleasesTranscoder(t *testing.T) {
	transcoder := &countingTranscoder{}
	for i := 0; i < 50; i++ {
		transcoder.chunks = append(transcoder.chunks, make([]byte, 64))
	}

	config := model.NewConfig()
	config.QueueDepth = 1
	compressor := NewCompressService(transcoder, config, nopLogger{})

	ex := newFakeExchange("https://images.example.com/a.jpg")
	ex.writeHook = func([]byte) error { return io.ErrClosedPipe }

	done := make(chan error, 1)
	go func() {
		_, err := compressor.Compress(ex, io.NopCloser(bytes.NewReader(nil)), ex.params)
		done <- err
	}()

	select {
	case err := <-done:
		assert.True(t, model.IsKind(err, model.KindClientDisconnect))
	case <-time.After(5 * time.Second):
		t.Fatal("transcoder was not released after the client failed")
	}
	assert.Less(t, int(transcoder.produced.Load()), 50)
}

func TestCompressService_EmptyOutputIsTranscodeError(t *testing.T) {
	for _, delivery := range []model.DeliveryMode{model.DeliveryStreamed, model.DeliveryBuffered} {
		config := model.NewConfig()
		config.Delivery = delivery
		compressor := NewCompressService(&countingTranscoder{}, config, nopLogger{})

		ex := newFakeExchange("https://images.example.com/a.jpg")
		_, err := compressor.Compress(ex, io.NopCloser(bytes.NewReader(nil)), ex.params)

		assert.True(t, model.IsKind(err, model.KindTranscode), string(delivery))
		assert.Nil(t, ex.meta, string(delivery))
	}
}

func TestCompressService_UnknownDeliveryDefaultsToStreamed(t *testing.T) {
	config := model.NewConfig()
	config.Delivery = "carrier-pigeon"
	compressor := NewCompressService(&countingTranscoder{}, config, nopLogger{})
	assert.Equal(t, model.DeliveryStreamed, compressor.Delivery())
}

func TestChunkQueue(t *testing.T) {
	ctx := context.Background()
	queue := newChunkQueue(ctx, 4)

	buf := []byte("abc")
	_, err := queue.Write(buf)
	require.NoError(t, err)
	buf[0] = 'x'
	_, err = queue.Write(nil)
	require.NoError(t, err)
	queue.CloseWithError(nil)

	chunk, err := queue.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), chunk, "queued chunks are copies")

	_, err = queue.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	failed := newChunkQueue(ctx, 1)
	failed.CloseWithError(errBoom)
	_, err = failed.Next(ctx)
	assert.ErrorIs(t, err, errBoom)
}

func TestChunkQueue_WriteUnblocksOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	queue := newChunkQueue(ctx, 1)

	_, err := queue.Write([]byte("a"))
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = queue.Write([]byte("b"))
	assert.ErrorIs(t, err, context.Canceled)
}
