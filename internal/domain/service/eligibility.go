package service

import (
	"strings"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
)

// Eligibility decides whether an origin response is worth compressing
type Eligibility struct {
	minCompressLength uint64
}

// NewEligibility creates an Eligibility. Transparent formats converted to
// JPEG must be a hundred times larger than minCompressLength.
func NewEligibility(minCompressLength uint64) *Eligibility {
	return &Eligibility{minCompressLength: minCompressLength}
}

// ShouldCompress reports whether compression should be attempted
func (e *Eligibility) ShouldCompress(params *model.RequestParams) bool {
	originType := strings.ToLower(params.OriginType)
	if i := strings.IndexByte(originType, ';'); i >= 0 {
		originType = strings.TrimSpace(originType[:i])
	}

	if !strings.HasPrefix(originType, "image") {
		return false
	}
	if params.OriginSize == 0 {
		return false
	}
	if params.WebP && params.OriginSize < e.minCompressLength {
		return false
	}
	if !params.WebP &&
		(strings.HasSuffix(originType, "png") || strings.HasSuffix(originType, "gif")) &&
		params.OriginSize < e.minCompressLength*100 {
		return false
	}
	return true
}
