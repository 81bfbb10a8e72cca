package config

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// GetYtDlpPath returns the path to the yt-dlp binary
func GetYtDlpPath() string {
	if p := os.Getenv("YTDLP_PATH"); p != "" {
		return p
	}
	return "yt-dlp"
}

// GetFfmpegPath returns the path to the ffmpeg binary
func GetFfmpegPath() string {
	if p := os.Getenv("FFMPEG_PATH"); p != "" {
		return p
	}
	return "ffmpeg"
}

// GetFfprobePath returns the path to the ffprobe binary
func GetFfprobePath() string {
	if p := os.Getenv("FFPROBE_PATH"); p != "" {
		return p
	}
	return "ffprobe"
}

// GetWorkRoot returns the directory under which per-job working directories
// are created. Each job gets its own subdirectory.
func GetWorkRoot() string {
	if p := os.Getenv("SONATA_WORK_DIR"); p != "" {
		return p
	}
	return filepath.Join(os.TempDir(), "sonata")
}

// GetCacheDBPath returns the SQLite file backing the cache-entry table
func GetCacheDBPath() string {
	if p := os.Getenv("CACHE_DB"); p != "" {
		return p
	}
	return filepath.Join(GetWorkRoot(), "cache.db")
}

// GetCacheTTL returns how long a cache entry may go unaccessed before the
// expiration sweep removes it
func GetCacheTTL() time.Duration {
	if v := os.Getenv("CACHE_TTL_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	return 30 * 24 * time.Hour
}

// GetRedisAddr returns the Redis address for the lookup memoization cache.
// Empty means the in-memory cache is used instead.
func GetRedisAddr() string {
	return os.Getenv("REDIS_ADDR")
}

// Spotify credentials for the catalog lookup collaborator

func GetSpotifyClientID() string {
	return os.Getenv("SPOTIFY_CLIENT_ID")
}

func GetSpotifyClientSecret() string {
	return os.Getenv("SPOTIFY_CLIENT_SECRET")
}

// S3Config holds the object-store settings for the cache uploader
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// GetS3Config reads the object-store configuration from the environment.
// An empty bucket disables remote caching.
func GetS3Config() S3Config {
	return S3Config{
		Bucket:    os.Getenv("S3_BUCKET"),
		Region:    os.Getenv("S3_REGION"),
		Endpoint:  os.Getenv("S3_ENDPOINT"),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
	}
}

// GetCorsOrigins returns the allowed CORS origins for the mobile client
func GetCorsOrigins() []string {
	origins := os.Getenv("CORS_ORIGINS")
	if origins == "" {
		origins = "http://localhost:3000,http://localhost:5173" // App dev defaults
	}
	return strings.Split(origins, ",")
}

// NewLogger creates a structured logger writing to the given writer,
// defaulting to stderr, with timestamps enabled.
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{ReportTimestamp: true})
}
