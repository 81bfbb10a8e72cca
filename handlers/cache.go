package handlers

import (
	"errors"
	"net/http"

	"sonata/services"
	"sonata/types"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// CacheHandler exposes the artifact cache
type CacheHandler struct {
	uploader services.CacheUploader
	logger   *log.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(uploader services.CacheUploader, logger *log.Logger) *CacheHandler {
	return &CacheHandler{uploader: uploader, logger: logger}
}

// Check reports whether a previously processed artifact exists for the
// given title/artist
func (h *CacheHandler) Check(c *gin.Context) {
	title := c.Query("title")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "title parameter is required",
		})
		return
	}

	entry, err := h.uploader.CheckCache(c.Request.Context(), title, c.Query("artist"))
	if err != nil {
		if errors.Is(err, types.ErrCacheMiss) {
			c.JSON(http.StatusOK, types.CacheCheckResponse{Cached: false})
			return
		}
		h.logger.Warn("cache check failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "cache check failed",
		})
		return
	}

	c.JSON(http.StatusOK, types.CacheCheckResponse{
		Cached:      true,
		DownloadURL: entry.RemoteURL,
	})
}

// Cleanup runs the expiration sweep synchronously and returns counts
func (h *CacheHandler) Cleanup(c *gin.Context) {
	result, err := h.uploader.Cleanup(c.Request.Context())
	if err != nil {
		h.logger.Error("cache cleanup failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "cleanup failed",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}
