package fetch

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"reelsmith/internal/services"
)

// Kind identifies where a locator's bytes live.
type Kind string

const (
	KindHTTP Kind = "http"
	KindS3   Kind = "s3"
	KindFile Kind = "file"
)

// Locator is a parsed clip or audio reference.
type Locator struct {
	Raw    string
	Kind   Kind
	URL    string
	Bucket string
	Key    string
	Path   string
}

// ParseLocator classifies raw. Anything without a recognised scheme is a local path.
func ParseLocator(raw string) (Locator, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Locator{}, services.Wrap(services.ErrValidation, "fetch", "locator", "empty locator", nil)
	}
	loc := Locator{Raw: trimmed}

	scheme, rest, found := strings.Cut(trimmed, "://")
	if !found {
		loc.Kind = KindFile
		loc.Path = trimmed
		return loc, nil
	}

	switch strings.ToLower(scheme) {
	case "http", "https":
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Host == "" {
			return Locator{}, services.Wrap(services.ErrValidation, "fetch", "locator", fmt.Sprintf("invalid url %q", trimmed), err)
		}
		loc.Kind = KindHTTP
		loc.URL = parsed.String()
	case "s3":
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || strings.TrimLeft(key, "/") == "" {
			return Locator{}, services.Wrap(services.ErrValidation, "fetch", "locator", fmt.Sprintf("s3 locator %q needs bucket and key", trimmed), nil)
		}
		loc.Kind = KindS3
		loc.Bucket = bucket
		loc.Key = strings.TrimLeft(key, "/")
	case "file":
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Path == "" {
			return Locator{}, services.Wrap(services.ErrValidation, "fetch", "locator", fmt.Sprintf("invalid file url %q", trimmed), err)
		}
		loc.Kind = KindFile
		loc.Path = parsed.Path
	default:
		return Locator{}, services.Wrap(services.ErrValidation, "fetch", "locator", fmt.Sprintf("unsupported scheme %q", scheme), nil)
	}
	return loc, nil
}

// IsRemote reports whether the locator must be downloaded rather than read in place.
func (l Locator) IsRemote() bool {
	return l.Kind == KindHTTP || l.Kind == KindS3
}

// Extension guesses a file extension from the locator, defaulting to fallback.
func (l Locator) Extension(fallback string) string {
	var candidate string
	switch l.Kind {
	case KindHTTP:
		if parsed, err := url.Parse(l.URL); err == nil {
			candidate = filepath.Ext(parsed.Path)
		}
	case KindS3:
		candidate = filepath.Ext(l.Key)
	default:
		candidate = filepath.Ext(l.Path)
	}
	candidate = strings.ToLower(candidate)
	if candidate == "" || len(candidate) > 6 || strings.ContainsAny(candidate, "/\\?") {
		return fallback
	}
	return candidate
}
