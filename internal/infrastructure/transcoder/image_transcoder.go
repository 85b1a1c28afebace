package transcoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/gen2brain/webp"
	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
)

var (
	// ErrAnimated is returned for multi-frame images when animation
	// handling is on; only single frames can be re-encoded
	ErrAnimated = errors.New("animated images are not re-encoded")
	// ErrTooLarge is returned when the decoded image exceeds MaxPixels
	ErrTooLarge = errors.New("image exceeds pixel limit")
)

var gifMagic = []byte("GIF8")

// ImageTranscoder is an implementation of port.Transcoder on pure Go
// codecs. Output is deterministic for identical input and options.
type ImageTranscoder struct {
	logger port.Logger
}

// NewImageTranscoder creates a new ImageTranscoder instance
func NewImageTranscoder(logger port.Logger) *ImageTranscoder {
	return &ImageTranscoder{logger: logger}
}

// Transcode implements port.Transcoder
func (t *ImageTranscoder) Transcode(ctx context.Context, src io.Reader, dst io.Writer, opts model.TranscodeOptions) error {
	tracked := &trackingReader{r: src}

	img, format, err := decode(bufio.NewReader(tracked), opts.Animated)
	if err != nil {
		if tracked.err != nil {
			return tracked.err
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	bounds := img.Bounds()
	if opts.MaxPixels > 0 && bounds.Dx()*bounds.Dy() > opts.MaxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooLarge, bounds.Dx(), bounds.Dy())
	}

	if opts.Grayscale {
		img = toGray(img)
	}

	t.logger.Debug("Encoding %s %dx%d as %s (quality %d, grayscale %t)",
		format, bounds.Dx(), bounds.Dy(), opts.Format, opts.Quality, opts.Grayscale)

	switch opts.Format {
	case model.FormatJPEG:
		return jpeg.Encode(dst, img, &jpeg.Options{Quality: opts.Quality})
	case model.FormatWebP:
		return webp.Encode(dst, img, webp.Options{Quality: opts.Quality, Method: 4})
	default:
		return fmt.Errorf("unsupported output format %q", opts.Format)
	}
}

// decode reads one still image. Multi-frame GIFs are refused when
// animated is set and flattened to their first frame otherwise.
func decode(r *bufio.Reader, animated bool) (image.Image, string, error) {
	magic, _ := r.Peek(len(gifMagic))
	if !bytes.Equal(magic, gifMagic) {
		img, format, err := image.Decode(r)
		if err != nil {
			return nil, "", fmt.Errorf("decoding image: %w", err)
		}
		return img, format, nil
	}

	anim, err := gif.DecodeAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("decoding gif: %w", err)
	}
	if len(anim.Image) == 0 {
		return nil, "", errors.New("decoding gif: no frames")
	}
	if len(anim.Image) > 1 && animated {
		return nil, "", fmt.Errorf("%w: %d frames", ErrAnimated, len(anim.Image))
	}
	return firstFrame(anim), "gif", nil
}

// firstFrame renders the first frame onto the full logical screen
func firstFrame(anim *gif.GIF) image.Image {
	frame := anim.Image[0]
	width, height := anim.Config.Width, anim.Config.Height
	if width == 0 || height == 0 {
		return frame
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, xdraw.Src)
	return canvas
}

func toGray(img image.Image) image.Image {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	xdraw.Draw(gray, bounds, img, bounds.Min, xdraw.Src)
	return gray
}

// trackingReader remembers the first read failure so it can be reported
// instead of the decoder's view of it
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}

// Ensure ImageTranscoder implements port.Transcoder
var _ port.Transcoder = (*ImageTranscoder)(nil)
