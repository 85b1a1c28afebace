package service

import (
	"bytes"
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
)

// CompressService transcodes eligible origin bodies and delivers them to
// the client using one delivery strategy for the whole process
type CompressService struct {
	transcoder port.Transcoder
	delivery   model.DeliveryMode
	queueDepth int
	animated   bool
	maxPixels  int
	logger     port.Logger
}

// NewCompressService creates a new CompressService instance
func NewCompressService(transcoder port.Transcoder, config *model.Config, logger port.Logger) *CompressService {
	delivery := config.Delivery
	if delivery != model.DeliveryBuffered {
		delivery = model.DeliveryStreamed
	}

	return &CompressService{
		transcoder: transcoder,
		delivery:   delivery,
		queueDepth: config.QueueDepth,
		animated:   !config.NoAnimate,
		maxPixels:  config.MaxPixels,
		logger:     logger,
	}
}

// Delivery returns the delivery strategy in use
func (s *CompressService) Delivery() model.DeliveryMode {
	return s.delivery
}

// Options returns the transcoder options for a request
func (s *CompressService) Options(params *model.RequestParams) model.TranscodeOptions {
	return model.TranscodeOptions{
		Format:    params.Format(),
		Grayscale: params.Grayscale,
		Quality:   params.Quality,
		Animated:  s.animated,
		MaxPixels: s.maxPixels,
	}
}

// Compress transcodes src and delivers the result through ex. Returned
// errors always carry a model.ErrorKind. src is closed when delivery fails
// so a blocked transcoder is released.
func (s *CompressService) Compress(ex port.Exchange, src io.ReadCloser, params *model.RequestParams) (model.TransferMetrics, error) {
	if s.delivery == model.DeliveryBuffered {
		return s.buffered(ex, src, params)
	}
	return s.streamed(ex, src, params)
}

func (s *CompressService) buffered(ex port.Exchange, src io.ReadCloser, params *model.RequestParams) (model.TransferMetrics, error) {
	var body bytes.Buffer
	meter := model.NewMeter(params.OriginSize)

	err := s.transcoder.Transcode(ex.Context(), &originReader{r: src}, &meteredWriter{w: &body, meter: meter}, s.Options(params))
	if err != nil {
		return model.TransferMetrics{}, s.classify(ex.Context(), err)
	}
	if body.Len() == 0 {
		return model.TransferMetrics{}, model.NewError(model.KindTranscode, "compress", "transcoder produced no output")
	}

	metrics := meter.Finalize()
	meta := model.ResponseMeta{
		ContentType:   params.Format().ContentType(),
		OriginalSize:  params.OriginSize,
		ContentLength: int64(body.Len()),
		BytesSaved:    metrics.BytesSaved(),
	}
	if err := ex.Begin(meta); err != nil {
		return metrics, model.WrapError(model.KindClientDisconnect, "compress.begin", "sending headers failed", err)
	}
	if _, err := ex.Write(body.Bytes()); err != nil {
		return metrics, model.WrapError(model.KindClientDisconnect, "compress.write", "writing body failed", err)
	}
	if err := ex.Finish(metrics); err != nil {
		return metrics, model.WrapError(model.KindClientDisconnect, "compress.finish", "finishing response failed", err)
	}
	return metrics, nil
}

func (s *CompressService) streamed(ex port.Exchange, src io.ReadCloser, params *model.RequestParams) (model.TransferMetrics, error) {
	ctx, cancel := context.WithCancel(ex.Context())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	queue := newChunkQueue(gctx, s.queueDepth)
	opts := s.Options(params)

	g.Go(func() error {
		err := s.transcoder.Transcode(gctx, &originReader{r: src}, queue, opts)
		queue.CloseWithError(err)
		return err
	})

	meter := model.NewMeter(params.OriginSize)
	err := s.forward(ctx, ex, queue, meter, params)
	if err != nil {
		cancel()
		src.Close()
	}
	if werr := g.Wait(); werr != nil && err == nil {
		err = s.classify(ex.Context(), werr)
	}
	if err != nil {
		return model.TransferMetrics{}, err
	}

	metrics := meter.Finalize()
	if err := ex.Finish(metrics); err != nil {
		return metrics, model.WrapError(model.KindClientDisconnect, "compress.finish", "sending trailing metadata failed", err)
	}
	return metrics, nil
}

// forward moves chunks from source to the client in order. Headers go out
// with the first chunk, so a transcoder that fails before producing output
// can still be answered with a fallback.
func (s *CompressService) forward(ctx context.Context, ex port.Exchange, source ChunkSource, meter *model.Meter, params *model.RequestParams) error {
	begun := false
	for {
		chunk, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.classify(ex.Context(), err)
		}

		if !begun {
			meta := model.ResponseMeta{
				ContentType:   params.Format().ContentType(),
				OriginalSize:  params.OriginSize,
				ContentLength: -1,
			}
			if err := ex.Begin(meta); err != nil {
				return model.WrapError(model.KindClientDisconnect, "compress.begin", "sending headers failed", err)
			}
			begun = true
		}

		n, err := ex.Write(chunk)
		meter.Observe(n)
		if err != nil {
			return model.WrapError(model.KindClientDisconnect, "compress.write", "writing body failed", err)
		}
	}

	if !begun {
		return model.NewError(model.KindTranscode, "compress", "transcoder produced no output")
	}
	return nil
}

// classify assigns a kind to a failure raised while transcoding
func (s *CompressService) classify(clientCtx context.Context, err error) error {
	if clientCtx.Err() != nil {
		return model.NewError(model.KindClientDisconnect, "compress", "client went away")
	}
	if model.IsKind(err, model.KindOriginRead) {
		return err
	}
	return model.WrapError(model.KindTranscode, "compress", "transcoding failed", err)
}
