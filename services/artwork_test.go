package services

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

// TestArtworkFetch tests download, decode and square cropping
func TestArtworkFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Deliberately wrong Content-Type: sniffing must not trust it
		w.Header().Set("Content-Type", "text/plain")
		w.Write(encodePNG(t, 640, 480))
	}))
	defer server.Close()

	fetcher := NewArtworkFetcher()
	dir := t.TempDir()

	path, err := fetcher.Fetch(context.Background(), server.URL, dir)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := jpeg.Decode(f)
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, 480, bounds.Dx())
	assert.Equal(t, 480, bounds.Dy())
}

// TestArtworkFetchErrors tests the failure modes
func TestArtworkFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("this is not an image"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			fetcher := NewArtworkFetcher()
			_, err := fetcher.Fetch(context.Background(), server.URL, t.TempDir())
			assert.Error(t, err)
		})
	}
}

// TestIsWebP tests RIFF container sniffing
func TestIsWebP(t *testing.T) {
	assert.True(t, isWebP([]byte("RIFF\x00\x00\x00\x00WEBPVP8 ")))
	assert.False(t, isWebP([]byte("RIFF\x00\x00\x00\x00WAVE")))
	assert.False(t, isWebP([]byte("\x89PNG")))
	assert.False(t, isWebP(nil))
}

// TestCropSquare tests crop geometry for each aspect ratio
func TestCropSquare(t *testing.T) {
	tests := []struct {
		name     string
		width    int
		height   int
		wantSide int
	}{
		{"landscape", 300, 100, 100},
		{"portrait", 100, 300, 100},
		{"already square", 200, 200, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cropped := cropSquare(image.NewRGBA(image.Rect(0, 0, tt.width, tt.height)))
			assert.Equal(t, tt.wantSide, cropped.Bounds().Dx())
			assert.Equal(t, tt.wantSide, cropped.Bounds().Dy())
		})
	}
}
