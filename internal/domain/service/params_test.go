package service

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
)

func TestParamsParser_Parse(t *testing.T) {
	parser := NewParamsParser(40)

	t.Run("missing url", func(t *testing.T) {
		_, ok := parser.Parse(url.Values{})
		assert.False(t, ok)
	})

	t.Run("defaults", func(t *testing.T) {
		params, ok := parser.Parse(url.Values{"url": {"https://example.com/a.png"}})
		require.True(t, ok)
		assert.Equal(t, "https://example.com/a.png", params.URL)
		assert.True(t, params.WebP)
		assert.True(t, params.Grayscale)
		assert.Equal(t, 40, params.Quality)
	})

	t.Run("jpeg color quality", func(t *testing.T) {
		params, ok := parser.Parse(url.Values{
			"url":  {"https://example.com/a.png"},
			"jpeg": {"1"},
			"bw":   {"0"},
			"l":    {"75"},
		})
		require.True(t, ok)
		assert.False(t, params.WebP)
		assert.False(t, params.Grayscale)
		assert.Equal(t, 75, params.Quality)
	})

	t.Run("repeated url values are rejoined", func(t *testing.T) {
		params, ok := parser.Parse(url.Values{"url": {"https://example.com/a?x=1", "b"}})
		require.True(t, ok)
		assert.Equal(t, "https://example.com/a?x=1&url=b", params.URL)
	})

	t.Run("bmi prefix is stripped", func(t *testing.T) {
		params, ok := parser.Parse(url.Values{"url": {"http://1.1.2.3/bmi/https://example.com/a.jpg"}})
		require.True(t, ok)
		assert.Equal(t, "http://example.com/a.jpg", params.URL)
	})
}

func TestParamsParser_Quality(t *testing.T) {
	parser := NewParamsParser(40)

	tests := []struct {
		raw  string
		want int
	}{
		{"", 40},
		{"abc", 40},
		{"0", 40},
		{"55", 55},
		{"60px", 60},
		{"250", 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parser.Quality(tt.raw), "quality(%q)", tt.raw)
	}
}

func TestGrayscale(t *testing.T) {
	assert.True(t, grayscale(url.Values{}))
	assert.True(t, grayscale(url.Values{"bw": {"1"}}))
	assert.False(t, grayscale(url.Values{"bw": {"0"}}))
	assert.False(t, grayscale(url.Values{"bw": {""}}))
	assert.False(t, grayscale(url.Values{"bw": {"00"}}))
}

func TestParamsParser_FromPayload(t *testing.T) {
	parser := NewParamsParser(40)

	params, ok := parser.FromPayload(model.CompressPayload{
		URL:       "http://1.1.2.3/bmi/https://example.com/a.png",
		WebP:      false,
		Grayscale: true,
		Quality:   0,
	})
	require.True(t, ok)
	assert.Equal(t, "http://example.com/a.png", params.URL)
	assert.False(t, params.WebP)
	assert.True(t, params.Grayscale)
	assert.Equal(t, 40, params.Quality)

	params, ok = parser.FromPayload(model.CompressPayload{URL: "https://example.com/b.jpg", WebP: true, Quality: 250})
	require.True(t, ok)
	assert.Equal(t, 100, params.Quality)

	_, ok = parser.FromPayload(model.CompressPayload{URL: "  "})
	assert.False(t, ok)
}
