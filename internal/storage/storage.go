// Package storage holds campaign artifacts: uploaded assets, optimized images,
// rendered proofs and final HTML. Objects are addressed by s3://bucket/key locators.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Store is a key-value blob store with presigned read URLs.
type Store interface {
	// Put writes data under key and returns its locator.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
	Presign(ctx context.Context, locator string, ttl time.Duration) (string, error)
	// Delete reports whether the object was removed.
	Delete(ctx context.Context, locator string) (bool, error)
	Exists(ctx context.Context, locator string) (bool, error)
	// Bucket is the bucket Put writes to.
	Bucket() string
}

var (
	ErrNotFound       = errors.New("object not found")
	ErrInvalidLocator = errors.New("invalid storage locator")
)

const locatorScheme = "s3://"

// Locator formats bucket and key as s3://bucket/key.
func Locator(bucket, key string) string {
	return locatorScheme + bucket + "/" + key
}

// ParseLocator splits an s3://bucket/key locator.
func ParseLocator(locator string) (bucket, key string, err error) {
	if !strings.HasPrefix(locator, locatorScheme) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	rest := strings.TrimPrefix(locator, locatorScheme)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return bucket, key, nil
}

// AssetsPrefix is the key prefix for a campaign's uploaded assets.
func AssetsPrefix(campaignID string) string {
	return "assets/" + campaignID + "/"
}

// AssetKey is the key of an uploaded image.
func AssetKey(campaignID, filename string) string {
	return AssetsPrefix(campaignID) + SanitizeFilename(filename)
}

// OptimizedKey is the key of a resized image produced during processing.
func OptimizedKey(campaignID, name string) string {
	return "optimized/" + campaignID + "/" + SanitizeFilename(name)
}

// ProofKey is the deterministic key of a campaign's proof HTML.
func ProofKey(campaignID string) string {
	return "proofs/" + campaignID + "/proof.html"
}

// FinalHTMLKey is the deterministic key of a campaign's approved HTML.
func FinalHTMLKey(campaignID string) string {
	return "html/" + campaignID + "/final.html"
}

// SanitizeFilename strips path components and unsafe characters.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	filename = strings.ReplaceAll(filename, "..", "")
	var b strings.Builder
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || out == "." {
		out = "file"
	}
	if len(out) > 200 {
		ext := filepath.Ext(out)
		if len(ext) > 20 {
			ext = ""
		}
		out = out[:200-len(ext)] + ext
	}
	return out
}
