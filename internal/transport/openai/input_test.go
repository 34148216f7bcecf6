package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

func newTestFetcher() *ImageFetcher {
	return NewImageFetcher(5*time.Second, 1024)
}

func TestImageFetcher_URL(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	data, err := newTestFetcher().Fetch(context.Background(), server.URL+"/pill.jpg")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(data) != len(payload) || data[0] != 0xFF {
		t.Errorf("data = %v, want %v", data, payload)
	}
}

func TestImageFetcher_URLTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	_, err := newTestFetcher().Fetch(context.Background(), server.URL)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want domain.ErrInvalidInput", err)
	}
}

func TestImageFetcher_URLNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestFetcher().Fetch(context.Background(), server.URL)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want domain.ErrInvalidInput", err)
	}
}

func TestImageFetcher_DataURI(t *testing.T) {
	payload := []byte("image-bytes")
	raw := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	data, err := newTestFetcher().Fetch(context.Background(), raw)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestImageFetcher_BareBase64(t *testing.T) {
	payload := []byte("raw-image")
	raw := base64.StdEncoding.EncodeToString(payload)

	data, err := newTestFetcher().Fetch(context.Background(), raw)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "raw-image" {
		t.Errorf("data = %q", data)
	}
}

func TestImageFetcher_Unrecognized(t *testing.T) {
	for _, raw := range []string{"", "not base64 at all!!!", "data:image/png;base64"} {
		if _, err := newTestFetcher().Fetch(context.Background(), raw); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Fetch(%q) err = %v, want domain.ErrInvalidInput", raw, err)
		}
	}
}
