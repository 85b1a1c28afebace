package service

import (
	"fmt"
	"net/url"
)

// ValidateURL parses an absolute http or https URL with a host
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	return u, nil
}

// ResolveLocation resolves a Location header against the URL that returned it
func ResolveLocation(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	l, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid location: %w", err)
	}

	next := b.ResolveReference(l)
	if _, err := ValidateURL(next.String()); err != nil {
		return "", err
	}
	return next.String(), nil
}
