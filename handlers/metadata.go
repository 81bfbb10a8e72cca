package handlers

import (
	"errors"
	"net/http"

	"sonata/services"
	"sonata/types"

	"github.com/gin-gonic/gin"
)

// MetadataHandler exposes the catalog lookup directly
type MetadataHandler struct {
	catalog services.Catalog
}

// NewMetadataHandler creates a new metadata handler
func NewMetadataHandler(catalog services.Catalog) *MetadataHandler {
	return &MetadataHandler{catalog: catalog}
}

// Lookup performs a synchronous catalog search for title/artist
func (h *MetadataHandler) Lookup(c *gin.Context) {
	title := c.Query("title")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "title parameter is required",
		})
		return
	}

	record, err := h.catalog.Lookup(c.Request.Context(), title, c.Query("artist"))
	if err != nil {
		if errors.Is(err, types.ErrLookupMiss) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "no match found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "lookup failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"metadata": record,
	})
}
