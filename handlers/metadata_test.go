package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"sonata/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	record *types.MetadataRecord
	err    error
}

func (s *stubCatalog) Lookup(_ context.Context, _, _ string) (*types.MetadataRecord, error) {
	return s.record, s.err
}

func newMetadataRouter(catalog *stubCatalog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/metadata", NewMetadataHandler(catalog).Lookup)
	return router
}

// TestMetadataLookup tests the synchronous lookup endpoint
func TestMetadataLookup(t *testing.T) {
	t.Run("hit", func(t *testing.T) {
		router := newMetadataRouter(&stubCatalog{record: &types.MetadataRecord{
			Title:  "Levitating",
			Artist: "Dua Lipa",
			Album:  "Future Nostalgia",
		}})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metadata?title=Levitating&artist=Dua+Lipa", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Metadata types.MetadataRecord `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Future Nostalgia", resp.Metadata.Album)
	})

	t.Run("miss", func(t *testing.T) {
		router := newMetadataRouter(&stubCatalog{err: types.ErrLookupMiss})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metadata?title=Unknown", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing title", func(t *testing.T) {
		router := newMetadataRouter(&stubCatalog{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metadata", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		router := newMetadataRouter(&stubCatalog{err: errors.New("token refresh failed")})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metadata?title=x", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
