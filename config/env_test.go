package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestGetWorkRoot tests the env override and the temp-dir default
func TestGetWorkRoot(t *testing.T) {
	t.Setenv("SONATA_WORK_DIR", "/srv/sonata/work")
	assert.Equal(t, "/srv/sonata/work", GetWorkRoot())

	t.Setenv("SONATA_WORK_DIR", "")
	assert.Contains(t, GetWorkRoot(), "sonata")
}

// TestGetCacheTTL tests day parsing and the fallback
func TestGetCacheTTL(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		expected time.Duration
	}{
		{"unset", "", 30 * 24 * time.Hour},
		{"valid days", "7", 7 * 24 * time.Hour},
		{"garbage", "soon", 30 * 24 * time.Hour},
		{"non-positive", "0", 30 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CACHE_TTL_DAYS", tt.env)
			assert.Equal(t, tt.expected, GetCacheTTL())
		})
	}
}

// TestGetCorsOrigins tests origin list parsing
func TestGetCorsOrigins(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, GetCorsOrigins())

	t.Setenv("CORS_ORIGINS", "")
	assert.Contains(t, GetCorsOrigins(), "http://localhost:5173")
}

// TestBinaryPaths tests env overrides for the external binaries
func TestBinaryPaths(t *testing.T) {
	t.Setenv("YTDLP_PATH", "/opt/bin/yt-dlp")
	t.Setenv("FFMPEG_PATH", "/opt/bin/ffmpeg")
	t.Setenv("FFPROBE_PATH", "/opt/bin/ffprobe")

	assert.Equal(t, "/opt/bin/yt-dlp", GetYtDlpPath())
	assert.Equal(t, "/opt/bin/ffmpeg", GetFfmpegPath())
	assert.Equal(t, "/opt/bin/ffprobe", GetFfprobePath())
}
