// Package fileurl validates file URLs previously handed to clients and maps
// them back to storage keys.
package fileurl

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrEmptyURL             = errors.New("fileurl: file URL is empty")
	ErrBaseURLNotConfigured = errors.New("fileurl: worker base URL is not configured")
	ErrForeignURL           = errors.New("fileurl: URL does not belong to the storage worker")
	ErrInvalidFormat        = errors.New("fileurl: invalid file URL format")
)

const filesSegment = "files"

var visibilities = map[string]bool{"public": true, "private": true}

// Validator knows the worker base URL that every accepted file URL must start with.
type Validator struct {
	baseURL string
}

func New(baseURL string) *Validator {
	return &Validator{baseURL: baseURL}
}

// BaseURL returns the configured worker base URL
func (v *Validator) BaseURL() string {
	return v.baseURL
}

// ValidateAndExtractKey checks that fileURL was issued by the configured worker
// and returns its storage key. A nil error means the URL is valid.
//
// The origin check is a plain string prefix comparison against the base URL.
//
//	v := fileurl.New("https://worker.example")
//	key, err := v.ValidateAndExtractKey("https://worker.example/files/public/uploads/x.png")
//	// key == "public/uploads/x.png"
func (v *Validator) ValidateAndExtractKey(fileURL string) (string, error) {
	if fileURL == "" {
		return "", ErrEmptyURL
	}
	if v.baseURL == "" {
		return "", ErrBaseURLNotConfigured
	}
	if !strings.HasPrefix(fileURL, v.baseURL) {
		return "", fmt.Errorf("%w: URL must start with %s", ErrForeignURL, v.baseURL)
	}

	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	var segments []string
	for _, s := range strings.Split(parsed.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	if len(segments) < 3 || segments[0] != filesSegment || !visibilities[segments[1]] {
		return "", fmt.Errorf("%w: expected /files/{public|private}/..., got %q", ErrInvalidFormat, parsed.Path)
	}

	return strings.Join(segments[1:], "/"), nil
}

// FileURL builds the public URL of a stored key: {base}/files/{key}
func (v *Validator) FileURL(key string) string {
	return strings.TrimRight(v.baseURL, "/") + "/" + filesSegment + "/" + strings.TrimLeft(key, "/")
}
