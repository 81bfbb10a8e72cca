package types

import "time"

// JobFormat represents the requested download format
type JobFormat string

const (
	JobFormatAudio JobFormat = "audio"
	JobFormatVideo JobFormat = "video"
)

// JobStatus represents the current status of a download job
type JobStatus string

const (
	JobStatusStarting    JobStatus = "starting"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusMerging     JobStatus = "merging"
	JobStatusEnriching   JobStatus = "enriching"
	JobStatusCaching     JobStatus = "caching"
	JobStatusReady       JobStatus = "ready"
	JobStatusStreaming   JobStatus = "streaming"
	JobStatusComplete    JobStatus = "complete"
	JobStatusError       JobStatus = "error"
)

// Terminal reports whether a job in this status will never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// Job represents one download's lifecycle. The JobStore owns the canonical
// record; readers always get copies.
type Job struct {
	ID             string     `json:"id"`
	URL            string     `json:"url"`
	Format         JobFormat  `json:"format"`
	Title          string     `json:"title,omitempty"`
	Artist         string     `json:"artist,omitempty"`
	Status         JobStatus  `json:"status"`
	Progress       float64    `json:"progress"`
	Speed          string     `json:"speed,omitempty"`
	Size           string     `json:"size,omitempty"`
	ETA            string     `json:"eta,omitempty"`
	Error          string     `json:"error,omitempty"`
	ResultPath     string     `json:"-"`
	ResultFilename string     `json:"filename,omitempty"`
	WorkDir        string     `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// ProgressPhase identifies which stage a parsed progress line belongs to
type ProgressPhase string

const (
	PhaseDownloading ProgressPhase = "downloading"
	PhaseMerging     ProgressPhase = "merging"
)

// ProgressEvent is the structured form of one subprocess output line.
// Events are ephemeral; they are folded into the Job immediately.
type ProgressEvent struct {
	Phase   ProgressPhase
	Percent float64
	Speed   string
	Size    string
	ETA     string
}
