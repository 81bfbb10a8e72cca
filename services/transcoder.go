package services

import (
	"context"
	"fmt"
	"os/exec"
	"sonata/types"
	"strconv"
	"strings"
)

// Transcoder wraps the external transcode/inspection binaries. Every call
// writes to a separate output path; callers stage and commit the result.
type Transcoder interface {
	Probe(ctx context.Context, path string) (float64, error)
	WriteTags(ctx context.Context, inPath, outPath string, meta types.MetadataRecord) error
	EmbedArtwork(ctx context.Context, inPath, outPath, artworkPath string) error
	TrimSilence(ctx context.Context, inPath, outPath string) error
}

// silenceTrimFilter removes leading silence, and by reversing first, also
// trailing silence.
const silenceTrimFilter = "areverse," +
	"silenceremove=start_periods=1:start_silence=0.1:start_threshold=-50dB," +
	"areverse," +
	"silenceremove=start_periods=1:start_silence=0.1:start_threshold=-50dB"

type ffmpegTranscoder struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFfmpegTranscoder creates a transcoder shelling out to ffmpeg/ffprobe
func NewFfmpegTranscoder(ffmpegPath, ffprobePath string) Transcoder {
	return &ffmpegTranscoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// Probe returns the file's duration in seconds
func (t *ffmpegTranscoder) Probe(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe: %v", types.ErrSpawn, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}

// WriteTags copies the audio stream and rewrites the tag fields
func (t *ffmpegTranscoder) WriteTags(ctx context.Context, inPath, outPath string, meta types.MetadataRecord) error {
	args := []string{"-y", "-i", inPath, "-map", "0", "-c", "copy"}

	tags := map[string]string{
		"title":  meta.Title,
		"artist": meta.Artist,
		"album":  meta.Album,
		"date":   meta.Year,
	}
	if meta.TrackNumber > 0 {
		tags["track"] = strconv.Itoa(meta.TrackNumber)
	}
	if meta.ISRC != "" {
		tags["TSRC"] = meta.ISRC
	}
	if meta.CanonicalURL != "" {
		tags["comment"] = meta.CanonicalURL
	}

	for key, value := range tags {
		if value != "" {
			args = append(args, "-metadata", key+"="+value)
		}
	}
	args = append(args, "-id3v2_version", "3", outPath)

	return t.run(ctx, args)
}

// EmbedArtwork attaches the image as the file's front cover
func (t *ffmpegTranscoder) EmbedArtwork(ctx context.Context, inPath, outPath, artworkPath string) error {
	args := []string{
		"-y",
		"-i", inPath,
		"-i", artworkPath,
		"-map", "0:a", "-map", "1",
		"-c", "copy",
		"-id3v2_version", "3",
		"-metadata:s:v", "title=Album cover",
		"-metadata:s:v", "comment=Cover (front)",
		outPath,
	}
	return t.run(ctx, args)
}

// TrimSilence applies the symmetric silence-trim filter chain
func (t *ffmpegTranscoder) TrimSilence(ctx context.Context, inPath, outPath string) error {
	args := []string{
		"-y",
		"-i", inPath,
		"-af", silenceTrimFilter,
		outPath,
	}
	return t.run(ctx, args)
}

func (t *ffmpegTranscoder) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %v: %s", err, tail(string(out), 300))
	}
	return nil
}

// tail returns the last n bytes of s, for compact error reporting
func tail(s string, n int) string {
	if len(s) <= n {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s[len(s)-n:])
}
