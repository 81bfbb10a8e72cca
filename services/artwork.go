package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/webp"
)

const (
	artworkTimeout  = 15 * time.Second
	maxArtworkBytes = 10 << 20
	jpegQuality     = 90
)

// ArtworkFetcher downloads cover art and normalizes it to a square,
// center-cropped JPEG on disk.
type ArtworkFetcher interface {
	Fetch(ctx context.Context, artworkURL, destDir string) (string, error)
}

type artworkFetcher struct {
	client *http.Client
}

// NewArtworkFetcher creates an artwork fetcher with a bounded request timeout
func NewArtworkFetcher() ArtworkFetcher {
	return &artworkFetcher{
		client: &http.Client{Timeout: artworkTimeout},
	}
}

// Fetch downloads the image, sniffs its container by magic bytes, decodes,
// center-crops to a square and writes cover.jpg into destDir.
func (f *artworkFetcher) Fetch(ctx context.Context, artworkURL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artworkURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build artwork request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("artwork download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("artwork download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtworkBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read artwork body: %w", err)
	}

	img, err := decodeSniffed(data)
	if err != nil {
		return "", err
	}

	cropped := cropSquare(img)

	outPath := filepath.Join(destDir, "cover.jpg")
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create artwork file: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, cropped, &jpeg.Options{Quality: jpegQuality}); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("failed to encode artwork: %w", err)
	}

	return outPath, nil
}

// decodeSniffed picks a decoder from the image's magic bytes rather than
// trusting the Content-Type header.
func decodeSniffed(data []byte) (image.Image, error) {
	switch {
	case isWebP(data):
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode webp artwork: %w", err)
		}
		return img, nil
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode png artwork: %w", err)
		}
		return img, nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode jpeg artwork: %w", err)
		}
		return img, nil
	default:
		// Fall back to the registered decoders for anything else
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("unrecognized artwork format: %w", err)
		}
		return img, nil
	}
}

// isWebP checks for the RIFF container with a WEBP fourcc
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WEBP"))
}

// cropSquare center-crops the image to its shorter dimension
func cropSquare(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == h {
		return img
	}

	side := w
	if h < side {
		side = h
	}

	x0 := bounds.Min.X + (w-side)/2
	y0 := bounds.Min.Y + (h-side)/2
	rect := image.Rect(x0, y0, x0+side, y0+side)

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}

	cropped := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			cropped.Set(x, y, img.At(x0+x, y0+y))
		}
	}
	return cropped
}
