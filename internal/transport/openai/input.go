package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// ImageFetcher normalizes the image input shapes callers send into raw bytes:
// http(s) URLs are fetched, data URIs and bare base64 strings are decoded.
// Anything else is rejected as invalid input.
type ImageFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewImageFetcher creates an image input normalizer. fetchTimeout bounds URL
// downloads; maxBytes caps any decoded or fetched payload.
func NewImageFetcher(fetchTimeout time.Duration, maxBytes int64) *ImageFetcher {
	return &ImageFetcher{
		client:   &http.Client{Timeout: fetchTimeout},
		maxBytes: maxBytes,
	}
}

// Fetch resolves a raw image input string into image bytes.
func (f *ImageFetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty image input: %w", domain.ErrInvalidInput)
	}

	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return f.fetchURL(ctx, raw)
	case strings.HasPrefix(raw, "data:"):
		return decodeDataURI(raw)
	default:
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("unrecognized image input: %w", domain.ErrInvalidInput)
		}
		if int64(len(data)) > f.maxBytes {
			return nil, fmt.Errorf("image exceeds %d bytes: %w", f.maxBytes, domain.ErrInvalidInput)
		}
		return data, nil
	}
}

func (f *ImageFetcher) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image %s: status %d: %w", url, resp.StatusCode, domain.ErrInvalidInput)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes: %w", f.maxBytes, domain.ErrInvalidInput)
	}
	return data, nil
}

// decodeDataURI strips the data:<mediatype>;base64, prefix and decodes the rest.
func decodeDataURI(raw string) ([]byte, error) {
	_, payload, found := strings.Cut(raw, ",")
	if !found {
		return nil, fmt.Errorf("malformed data URI: %w", domain.ErrInvalidInput)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed data URI payload: %w", domain.ErrInvalidInput)
	}
	return data, nil
}
