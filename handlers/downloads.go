package handlers

import (
	"net/http"
	"net/url"
	"time"

	"sonata/services"
	"sonata/types"
	"sonata/websocket"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// sseCloseGrace keeps the progress stream open briefly after a terminal
// status so slow clients receive the final event.
const sseCloseGrace = 2 * time.Second

// ssePollInterval is how often the stream handler samples the job store
const ssePollInterval = 250 * time.Millisecond

// DownloadHandler handles download job endpoints
type DownloadHandler struct {
	orchestrator services.JobOrchestrator
	store        services.JobStore
	hub          websocket.Hub
	logger       *log.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(orchestrator services.JobOrchestrator, store services.JobStore, hub websocket.Hub, logger *log.Logger) *DownloadHandler {
	return &DownloadHandler{
		orchestrator: orchestrator,
		store:        store,
		hub:          hub,
		logger:       logger,
	}
}

// StartDownload accepts a download request and returns the job id
// immediately; the pipeline runs in the background.
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "url parameter is required",
		})
		return
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "url parameter is not a valid URL",
		})
		return
	}

	format := types.JobFormat(c.DefaultQuery("format", string(types.JobFormatAudio)))
	if format != types.JobFormatAudio && format != types.JobFormatVideo {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "format must be 'audio' or 'video'",
		})
		return
	}

	job := h.orchestrator.StartJob(rawURL, format, c.Query("title"), c.Query("artist"))
	c.JSON(http.StatusAccepted, types.DownloadResponse{
		JobID:  job.ID,
		Status: "started",
	})
}

// GetJob returns a snapshot of one job
func (h *DownloadHandler) GetJob(c *gin.Context) {
	job, exists := h.store.Get(c.Param("jobId"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "job not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job": job,
	})
}

// GetAllJobs returns all jobs currently in the store
func (h *DownloadHandler) GetAllJobs(c *gin.Context) {
	jobs := h.store.List()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// StreamProgress pushes job changes as server-sent events. The stream ends
// when the client disconnects or shortly after the job reaches a terminal
// status; the underlying job keeps running either way.
func (h *DownloadHandler) StreamProgress(c *gin.Context) {
	jobID := c.Param("jobId")
	if _, exists := h.store.Get(jobID); !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "job not found",
		})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(ssePollInterval)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	var last types.Job
	var terminalSince time.Time

	for {
		select {
		case <-clientGone:
			return
		case <-ticker.C:
			job, exists := h.store.Get(jobID)
			if !exists {
				// Evicted after delivery; the last event already
				// reported the terminal status.
				return
			}

			if progressChanged(last, job) {
				c.SSEvent("progress", gin.H{
					"status":   job.Status,
					"progress": job.Progress,
					"speed":    job.Speed,
					"eta":      job.ETA,
					"filename": job.ResultFilename,
					"error":    job.Error,
				})
				c.Writer.Flush()
				last = job
			}

			if job.Status.Terminal() {
				if terminalSince.IsZero() {
					terminalSince = time.Now()
				} else if time.Since(terminalSince) >= sseCloseGrace {
					return
				}
			}
		}
	}
}

func progressChanged(prev, cur types.Job) bool {
	return prev.Status != cur.Status ||
		prev.Progress != cur.Progress ||
		prev.Speed != cur.Speed ||
		prev.ETA != cur.ETA ||
		prev.Error != cur.Error
}

// HandleWebSocketConnection upgrades the connection for one job's progress
func (h *DownloadHandler) HandleWebSocketConnection(c *gin.Context) {
	jobID := c.Param("jobId")
	if _, exists := h.store.Get(jobID); !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, jobID)
	h.hub.RegisterClient(client)
	client.StartPumps()
}

// HandleWebSocketAllConnection upgrades the connection for all-jobs progress
func (h *DownloadHandler) HandleWebSocketAllConnection(c *gin.Context) {
	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, websocket.AllJobs)
	h.hub.RegisterClient(client)
	client.StartPumps()
}
