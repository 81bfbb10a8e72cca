package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sonata/services"
	"sonata/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOrchestrator registers jobs in the store without running a pipeline
type stubOrchestrator struct {
	store     services.JobStore
	gotURL    string
	gotFormat types.JobFormat
	gotTitle  string
	gotArtist string
}

func (s *stubOrchestrator) StartJob(url string, format types.JobFormat, title, artist string) types.Job {
	s.gotURL = url
	s.gotFormat = format
	s.gotTitle = title
	s.gotArtist = artist
	return s.store.Create(url, format, title, artist)
}

func (s *stubOrchestrator) ClaimDelivery(string) (types.Job, error) {
	return types.Job{}, types.ErrJobNotFound
}

func (s *stubOrchestrator) FinishDelivery(string, bool) {}

type downloadFixture struct {
	router       *gin.Engine
	orchestrator *stubOrchestrator
	store        services.JobStore
}

func newDownloadFixture(t *testing.T) *downloadFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := services.NewJobStore(nil)
	orchestrator := &stubOrchestrator{store: store}
	handler := NewDownloadHandler(orchestrator, store, nil, discardLogger())

	router := gin.New()
	router.GET("/api/download", handler.StartDownload)
	router.GET("/api/jobs", handler.GetAllJobs)
	router.GET("/api/jobs/:jobId", handler.GetJob)
	router.GET("/api/progress/:jobId", handler.StreamProgress)

	return &downloadFixture{router: router, orchestrator: orchestrator, store: store}
}

func (f *downloadFixture) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	f.router.ServeHTTP(w, req)
	return w
}

// TestStartDownload tests request validation and job acceptance
func TestStartDownload(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"valid audio request", "url=https://youtube.com/watch?v=abc&format=audio", http.StatusAccepted},
		{"default format", "url=https://youtube.com/watch?v=abc", http.StatusAccepted},
		{"video format", "url=https://youtube.com/watch?v=abc&format=video", http.StatusAccepted},
		{"missing url", "format=audio", http.StatusBadRequest},
		{"invalid url", "url=not%20a%20url", http.StatusBadRequest},
		{"unknown format", "url=https://youtube.com/watch?v=abc&format=wav", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newDownloadFixture(t)

			w := fixture.get("/api/download?" + tt.query)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusAccepted {
				var resp types.DownloadResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.JobID)
				assert.Equal(t, "started", resp.Status)
			}
		})
	}
}

// TestStartDownloadForwardsHints tests that title/artist hints reach the
// orchestrator
func TestStartDownloadForwardsHints(t *testing.T) {
	fixture := newDownloadFixture(t)

	w := fixture.get("/api/download?url=https://youtube.com/watch?v=abc&title=Levitating&artist=Dua+Lipa")
	require.Equal(t, http.StatusAccepted, w.Code)

	assert.Equal(t, "Levitating", fixture.orchestrator.gotTitle)
	assert.Equal(t, "Dua Lipa", fixture.orchestrator.gotArtist)
	assert.Equal(t, types.JobFormatAudio, fixture.orchestrator.gotFormat)
}

// TestGetJob tests single job retrieval
func TestGetJob(t *testing.T) {
	fixture := newDownloadFixture(t)
	job := fixture.store.Create("url", types.JobFormatAudio, "", "")

	w := fixture.get("/api/jobs/" + job.ID)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), job.ID)

	assert.Equal(t, http.StatusNotFound, fixture.get("/api/jobs/unknown").Code)
}

// TestGetAllJobs tests the listing endpoint
func TestGetAllJobs(t *testing.T) {
	fixture := newDownloadFixture(t)
	fixture.store.Create("url1", types.JobFormatAudio, "", "")
	fixture.store.Create("url2", types.JobFormatVideo, "", "")

	w := fixture.get("/api/jobs")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
}

// TestStreamProgressUnknownJob tests 404 before the stream starts
func TestStreamProgressUnknownJob(t *testing.T) {
	fixture := newDownloadFixture(t)
	assert.Equal(t, http.StatusNotFound, fixture.get("/api/progress/unknown").Code)
}

// TestStreamProgress tests that the stream emits the job's current state as
// a server-sent event
func TestStreamProgress(t *testing.T) {
	fixture := newDownloadFixture(t)
	job := fixture.store.Create("url", types.JobFormatAudio, "", "")
	fixture.store.Update(job.ID, func(j *types.Job) {
		j.Status = types.JobStatusDownloading
		j.Progress = 40
		j.Speed = "1.23MiB/s"
	})

	server := httptest.NewServer(fixture.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/progress/"+job.ID, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		}
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	cancel()

	assert.Equal(t, "progress", event)
	assert.Contains(t, data, `"status":"downloading"`)
	assert.Contains(t, data, `"progress":40`)
	assert.Contains(t, data, `"speed":"1.23MiB/s"`)
}
