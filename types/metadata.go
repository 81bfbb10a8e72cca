package types

import "time"

// MetadataRecord is the result of a successful catalog lookup
type MetadataRecord struct {
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	Album           string  `json:"album"`
	Year            string  `json:"year,omitempty"`
	TrackNumber     int     `json:"trackNumber,omitempty"`
	ISRC            string  `json:"isrc,omitempty"`
	CanonicalURL    string  `json:"canonicalUrl,omitempty"`
	ArtworkURL      string  `json:"artworkUrl,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

// CacheEntry maps a normalized title+artist key to a previously uploaded artifact
type CacheEntry struct {
	NormalizedKey  string    `json:"normalizedKey"`
	RemoteObjectID string    `json:"remoteObjectId"`
	RemoteURL      string    `json:"remoteUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	AccessCount    int       `json:"accessCount"`
}
