package port

import (
	"context"
	"io"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
)

// Transcoder re-encodes an image stream
type Transcoder interface {
	// Transcode reads an image from src and writes the re-encoded image to
	// dst in output order. It may fail after part of the output was written.
	Transcode(ctx context.Context, src io.Reader, dst io.Writer, opts model.TranscodeOptions) error
}
