package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"sonata/services"
	"sonata/types"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// DeliveryHandler streams finished artifacts to the client through a
// one-shot delivery state machine.
type DeliveryHandler struct {
	orchestrator services.JobOrchestrator
	logger       *log.Logger
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(orchestrator services.JobOrchestrator, logger *log.Logger) *DeliveryHandler {
	return &DeliveryHandler{orchestrator: orchestrator, logger: logger}
}

// DeliverFile claims the job and streams the produced file as an
// attachment. A job can be delivered at most once: concurrent claims get
// 409, repeated claims after completion get 410.
func (h *DeliveryHandler) DeliverFile(c *gin.Context) {
	jobID := c.Param("jobId")

	job, err := h.orchestrator.ClaimDelivery(jobID)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.Is(err, types.ErrAlreadyStreaming):
			c.JSON(http.StatusConflict, gin.H{"error": "job is already being delivered"})
		case errors.Is(err, types.ErrAlreadyDelivered):
			c.JSON(http.StatusGone, gin.H{"error": "job has already been delivered"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "job is not ready"})
		}
		return
	}

	file, err := os.Open(job.ResultPath)
	if err != nil {
		h.logger.Error("result file missing at delivery time", "job", jobID, "err", err)
		h.orchestrator.FinishDelivery(jobID, false)
		c.JSON(http.StatusNotFound, gin.H{"error": "result file not found"})
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		h.orchestrator.FinishDelivery(jobID, false)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "file access error"})
		return
	}

	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Length", strconv.FormatInt(info.Size(), 10))
	c.Header("Content-Disposition", `attachment; filename="`+job.ResultFilename+`"`)
	c.Status(http.StatusOK)

	_, copyErr := io.Copy(c.Writer, file)
	if copyErr != nil {
		h.logger.Warn("file transmission interrupted", "job", jobID, "err", copyErr)
	}
	h.orchestrator.FinishDelivery(jobID, copyErr == nil)
}
