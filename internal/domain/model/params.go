package model

import "time"

const (
	// DefaultQuality is the output quality used when the client sends none
	DefaultQuality = 40
	// MinCompressLength is the smallest origin body worth compressing
	MinCompressLength = 1024
	// MaxRedirects is the number of origin redirects followed per request
	MaxRedirects = 4
	// OriginTimeout bounds connecting to an origin, waiting for its headers,
	// and every gap between body reads
	OriginTimeout = 5 * time.Second
	// ViaMarker is added to every outbound request to detect loops
	ViaMarker = "1.1 bandwidth-hero"
	// UserAgent is sent to every origin
	UserAgent = "Bandwidth-Hero Compressor"
	// CacheControl is sent with every compressed response
	CacheControl = "public, max-age=604800, stale-while-revalidate=86400"
)

// ForwardedHeaders are the inbound headers copied onto origin requests
var ForwardedHeaders = []string{"Cookie", "Dnt", "Referer", "Range"}

// ImageFormat is an output image format
type ImageFormat string

const (
	// FormatWebP encodes WebP images
	FormatWebP ImageFormat = "webp"
	// FormatJPEG encodes JPEG images
	FormatJPEG ImageFormat = "jpeg"
)

// ContentType returns the MIME type of the format
func (f ImageFormat) ContentType() string {
	return "image/" + string(f)
}

// RequestParams holds the transform parameters of one client request.
// URL, OriginType and OriginSize are rewritten while the origin is resolved.
type RequestParams struct {
	// URL is the origin resource, updated on every followed redirect
	URL string `json:"url"`
	// WebP selects WebP output; JPEG otherwise
	WebP bool `json:"webp"`
	// Grayscale drops color information
	Grayscale bool `json:"grayscale"`
	// Quality is the encoder quality (1-100)
	Quality int `json:"quality"`
	// OriginType is the Content-Type of the final origin response
	OriginType string `json:"-"`
	// OriginSize is the Content-Length of the final origin response
	OriginSize uint64 `json:"-"`
}

// Format returns the requested output format
func (p *RequestParams) Format() ImageFormat {
	if p.WebP {
		return FormatWebP
	}
	return FormatJPEG
}

// TranscodeOptions configures one transcoder run
type TranscodeOptions struct {
	Format    ImageFormat
	Grayscale bool
	Quality   int
	// Animated keeps animation; multi-frame input that cannot be re-encoded
	// with its animation fails the transcode
	Animated bool
	// MaxPixels limits decoded image area; 0 means unlimited
	MaxPixels int
}

// ResponseMeta is the header-time metadata of a compressed response
type ResponseMeta struct {
	ContentType  string
	OriginalSize uint64
	// ContentLength is -1 when the body is streamed
	ContentLength int64
	// BytesSaved is only meaningful when ContentLength is known
	BytesSaved uint64
}

// Streamed reports whether size metadata follows the body
func (m ResponseMeta) Streamed() bool {
	return m.ContentLength < 0
}
