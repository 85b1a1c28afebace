package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	_, err := ValidateURL("ht!tp://")
	assert.Error(t, err)

	_, err = ValidateURL("ftp://example.com/a.png")
	assert.Error(t, err)

	_, err = ValidateURL("https:///a.png")
	assert.Error(t, err)

	u, err := ValidateURL("https://example.com/a.png?x=1")
	require.NoError(t, err)
	assert.Equal(t, "example.com", u.Host)
}

func TestResolveLocation(t *testing.T) {
	next, err := ResolveLocation("https://example.com/img/a.png", "../b.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b.png", next)

	next, err = ResolveLocation("https://example.com/a.png", "http://cdn.example.net/a.png")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.example.net/a.png", next)

	_, err = ResolveLocation("https://example.com/a.png", "ftp://example.com/a.png")
	assert.Error(t, err)

	_, err = ResolveLocation("https://example.com/a.png", "http://[::1")
	assert.Error(t, err)
}
