package service

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
)

// bmiPrefix matches URLs rewritten by carrier compression gateways
var bmiPrefix = regexp.MustCompile(`(?i)http://1\.1\.\d\.\d/bmi/(https?://)?`)

// ParamsParser turns query strings into RequestParams
type ParamsParser struct {
	defaultQuality int
}

// NewParamsParser creates a ParamsParser
func NewParamsParser(defaultQuality int) *ParamsParser {
	if defaultQuality <= 0 || defaultQuality > 100 {
		defaultQuality = model.DefaultQuality
	}
	return &ParamsParser{defaultQuality: defaultQuality}
}

// Parse extracts request parameters. ok is false when the query names no URL.
func (p *ParamsParser) Parse(query url.Values) (*model.RequestParams, bool) {
	urls := query["url"]
	target := strings.Join(urls, "&url=")
	if target == "" {
		return nil, false
	}
	target = bmiPrefix.ReplaceAllString(target, "http://")

	return &model.RequestParams{
		URL:       target,
		WebP:      query.Get("jpeg") == "",
		Grayscale: grayscale(query),
		Quality:   p.Quality(query.Get("l")),
	}, true
}

// Quality parses the leading integer of raw, falling back to the default
// for missing or non-positive values
func (p *ParamsParser) Quality(raw string) int {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}

	q, err := strconv.Atoi(raw[:end])
	if err != nil || q <= 0 {
		return p.defaultQuality
	}
	if q > 100 {
		return 100
	}
	return q
}

// grayscale is on unless bw is present and numerically zero or empty
func grayscale(query url.Values) bool {
	if _, ok := query["bw"]; !ok {
		return true
	}
	bw := strings.TrimSpace(query.Get("bw"))
	if bw == "" {
		return false
	}
	v, err := strconv.ParseFloat(bw, 64)
	if err != nil {
		return true
	}
	return v != 0
}

// FromPayload builds request parameters from a websocket compress request
func (p *ParamsParser) FromPayload(payload model.CompressPayload) (*model.RequestParams, bool) {
	target := strings.TrimSpace(payload.URL)
	if target == "" {
		return nil, false
	}

	return &model.RequestParams{
		URL:       bmiPrefix.ReplaceAllString(target, "http://"),
		WebP:      payload.WebP,
		Grayscale: payload.Grayscale,
		Quality:   p.Quality(strconv.Itoa(payload.Quality)),
	}, true
}
