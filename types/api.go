package types

// DownloadResponse is returned when a download job is accepted
type DownloadResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// CacheCheckResponse is returned by the cache-check endpoint
type CacheCheckResponse struct {
	Cached      bool            `json:"cached"`
	DownloadURL string          `json:"downloadUrl,omitempty"`
	Metadata    *MetadataRecord `json:"metadata,omitempty"`
}

// CacheCleanupResponse reports the result of an expiration sweep
type CacheCleanupResponse struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}
