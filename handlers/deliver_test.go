package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sonata/services"
	"sonata/types"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

type deliveryFixture struct {
	router       *gin.Engine
	orchestrator services.JobOrchestrator
	store        services.JobStore
}

func newDeliveryFixture(t *testing.T) *deliveryFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := services.NewJobStore(nil)
	orchestrator := services.NewJobOrchestrator(services.OrchestratorConfig{
		YtDlpPath:     "yt-dlp",
		WorkRoot:      t.TempDir(),
		DeliveryGrace: 500 * time.Millisecond,
	}, store, nil, nil, nil, nil, nil, discardLogger())

	router := gin.New()
	handler := NewDeliveryHandler(orchestrator, discardLogger())
	router.GET("/api/download-file/:jobId", handler.DeliverFile)

	return &deliveryFixture{router: router, orchestrator: orchestrator, store: store}
}

// readyJob seeds a deliverable job whose result file holds "media-bytes"
func (f *deliveryFixture) readyJob(t *testing.T) types.Job {
	t.Helper()
	workDir := t.TempDir()
	resultPath := filepath.Join(workDir, "result.mp3")
	require.NoError(t, os.WriteFile(resultPath, []byte("media-bytes"), 0o644))

	job := f.store.Create("url", types.JobFormatAudio, "Levitating", "Dua Lipa")
	f.store.Update(job.ID, func(j *types.Job) {
		j.Status = types.JobStatusReady
		j.WorkDir = workDir
		j.ResultPath = resultPath
		j.ResultFilename = "Dua Lipa - Levitating.mp3"
	})

	updated, _ := f.store.Get(job.ID)
	return updated
}

func (f *deliveryFixture) get(jobID string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/download-file/"+jobID, nil)
	f.router.ServeHTTP(w, req)
	return w
}

// TestDeliverFile tests the successful one-shot delivery
func TestDeliverFile(t *testing.T) {
	fixture := newDeliveryFixture(t)
	job := fixture.readyJob(t)

	w := fixture.get(job.ID)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "media-bytes", w.Body.String())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "11", w.Header().Get("Content-Length"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="Dua Lipa - Levitating.mp3"`)

	done, exists := fixture.store.Get(job.ID)
	require.True(t, exists)
	assert.Equal(t, types.JobStatusComplete, done.Status)

	// Cleanup removed the working directory together with the artifact
	_, err := os.Stat(job.WorkDir)
	assert.True(t, os.IsNotExist(err))
}

// TestDeliverFileRepeatedRequest tests that a second request after a
// completed delivery answers 410
func TestDeliverFileRepeatedRequest(t *testing.T) {
	fixture := newDeliveryFixture(t)
	job := fixture.readyJob(t)

	require.Equal(t, http.StatusOK, fixture.get(job.ID).Code)
	assert.Equal(t, http.StatusGone, fixture.get(job.ID).Code)
}

// TestDeliverFileWhileStreaming tests that a claim held by another request
// answers 409
func TestDeliverFileWhileStreaming(t *testing.T) {
	fixture := newDeliveryFixture(t)
	job := fixture.readyJob(t)

	_, err := fixture.orchestrator.ClaimDelivery(job.ID)
	require.NoError(t, err)

	assert.Equal(t, http.StatusConflict, fixture.get(job.ID).Code)
}

// TestDeliverFileUnknownJob tests 404 for an unknown job id
func TestDeliverFileUnknownJob(t *testing.T) {
	fixture := newDeliveryFixture(t)
	assert.Equal(t, http.StatusNotFound, fixture.get("no-such-job").Code)
}

// TestDeliverFileNotReady tests 400 for a job still in flight
func TestDeliverFileNotReady(t *testing.T) {
	fixture := newDeliveryFixture(t)
	job := fixture.store.Create("url", types.JobFormatAudio, "", "")

	assert.Equal(t, http.StatusBadRequest, fixture.get(job.ID).Code)
}

// TestDeliverFileMissingResult tests that a vanished result file fails the
// job instead of leaving it claimed
func TestDeliverFileMissingResult(t *testing.T) {
	fixture := newDeliveryFixture(t)
	job := fixture.store.Create("url", types.JobFormatAudio, "", "")
	fixture.store.Update(job.ID, func(j *types.Job) {
		j.Status = types.JobStatusReady
		j.ResultPath = "/does/not/exist.mp3"
	})

	assert.Equal(t, http.StatusNotFound, fixture.get(job.ID).Code)

	failed, exists := fixture.store.Get(job.ID)
	require.True(t, exists)
	assert.Equal(t, types.JobStatusError, failed.Status)
}
