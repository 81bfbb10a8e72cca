package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"sonata/config"
	"sonata/handlers"
	"sonata/middleware"
	"sonata/services"
	"sonata/types"
	"sonata/websocket"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

func main() {
	var (
		server bool
		port   int
		rawURL string
		format string
		title  string
		artist string
	)

	flag.BoolVar(&server, "server", false, "Start in web server mode")
	flag.IntVar(&port, "port", 8080, "Port for web server mode")
	flag.StringVar(&rawURL, "url", "", "URL to download (one-shot CLI mode)")
	flag.StringVar(&format, "format", "audio", "Download format: audio or video")
	flag.StringVar(&title, "title", "", "Title hint for metadata enrichment")
	flag.StringVar(&artist, "artist", "", "Artist hint for metadata enrichment")
	flag.Parse()

	logger := config.NewLogger(nil)

	// Server mode takes precedence
	if server {
		startWebServer(port, logger)
		return
	}

	if rawURL == "" {
		flag.Usage()
		return
	}

	runOneShot(rawURL, types.JobFormat(format), title, artist, logger)
}

// buildPipeline wires the orchestrator and its collaborators. The hub may
// be nil in CLI mode.
func buildPipeline(hub websocket.Hub, logger *log.Logger) (services.JobOrchestrator, services.JobStore, services.Catalog, services.CacheUploader, error) {
	store := services.NewJobStore(hub)
	runner := services.NewProcessRunner()
	parser := services.NewProgressParser()
	transcoder := services.NewFfmpegTranscoder(config.GetFfmpegPath(), config.GetFfprobePath())
	artwork := services.NewArtworkFetcher()

	var lookupCache services.LookupCache
	if addr := config.GetRedisAddr(); addr != "" {
		lookupCache = services.NewRedisLookupCache(addr)
		logger.Info("using redis lookup cache", "addr", addr)
	} else {
		lookupCache = services.NewMemoryLookupCache(0)
	}

	catalog := services.NewMemoizedCatalog(
		services.NewSpotifyCatalog(config.GetSpotifyClientID(), config.GetSpotifyClientSecret()),
		lookupCache,
	)

	enricher := services.NewMetadataEnricher(catalog, transcoder, artwork, logger)
	reconciler := services.NewDurationReconciler(transcoder, logger)

	entries, err := services.NewSQLiteCacheStore(config.GetCacheDBPath())
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	var objects services.ObjectStore
	s3cfg := config.GetS3Config()
	if s3cfg.Bucket != "" {
		objects, err = services.NewS3ObjectStore(context.Background(), s3cfg)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to init object store: %w", err)
		}
	} else {
		logger.Warn("no S3 bucket configured, caching in memory only")
		objects = services.NewMemoryObjectStore()
	}

	uploader := services.NewCacheUploader(objects, entries, config.GetCacheTTL(), logger)

	orchestrator := services.NewJobOrchestrator(services.OrchestratorConfig{
		YtDlpPath: config.GetYtDlpPath(),
		WorkRoot:  config.GetWorkRoot(),
	}, store, runner, parser, enricher, reconciler, uploader, logger)

	return orchestrator, store, catalog, uploader, nil
}

// startWebServer initializes and starts the HTTP server
func startWebServer(port int, logger *log.Logger) {
	if err := os.MkdirAll(config.GetWorkRoot(), 0o755); err != nil {
		logger.Fatal("failed to create work directory", "err", err)
	}

	hub := websocket.NewHub(logger)
	go hub.Run()

	orchestrator, store, catalog, uploader, err := buildPipeline(hub, logger)
	if err != nil {
		logger.Fatal("failed to build pipeline", "err", err)
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler()
	downloadHandler := handlers.NewDownloadHandler(orchestrator, store, hub, logger)
	deliveryHandler := handlers.NewDeliveryHandler(orchestrator, logger)
	metadataHandler := handlers.NewMetadataHandler(catalog)
	cacheHandler := handlers.NewCacheHandler(uploader, logger)

	r.GET("/health", healthHandler.HealthCheck)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/status", healthHandler.APIStatus)

		apiGroup.GET("/download", middleware.RateLimit(rate.Every(time.Second), 5), downloadHandler.StartDownload)
		apiGroup.GET("/download-file/:jobId", deliveryHandler.DeliverFile)

		apiGroup.GET("/jobs", downloadHandler.GetAllJobs)
		apiGroup.GET("/jobs/:jobId", downloadHandler.GetJob)
		apiGroup.GET("/progress/:jobId", downloadHandler.StreamProgress)

		apiGroup.GET("/metadata", metadataHandler.Lookup)

		apiGroup.GET("/cache/check", cacheHandler.Check)
		apiGroup.POST("/cache/cleanup", cacheHandler.Cleanup)

		wsGroup := apiGroup.Group("/ws")
		{
			wsGroup.GET("/jobs/:jobId", downloadHandler.HandleWebSocketConnection)
			wsGroup.GET("/jobs", downloadHandler.HandleWebSocketAllConnection)
		}
	}

	portStr := strconv.Itoa(port)
	if serverPort := os.Getenv("SERVER_PORT"); serverPort != "" {
		portStr = serverPort
	}

	logger.Info("sonata backend starting", "port", portStr, "work_dir", config.GetWorkRoot())
	if err := r.Run(":" + portStr); err != nil {
		logger.Fatal("failed to start server", "err", err)
	}
}

// runOneShot downloads a single URL in the foreground with a progress bar
// and leaves the result in the current directory.
func runOneShot(rawURL string, format types.JobFormat, title, artist string, logger *log.Logger) {
	if err := os.MkdirAll(config.GetWorkRoot(), 0o755); err != nil {
		logger.Fatal("failed to create work directory", "err", err)
	}

	orchestrator, store, _, _, err := buildPipeline(nil, logger)
	if err != nil {
		logger.Fatal("failed to build pipeline", "err", err)
	}

	job := orchestrator.StartJob(rawURL, format, title, artist)
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionShowCount(),
	)

	for {
		snapshot, exists := store.Get(job.ID)
		if !exists {
			logger.Fatal("job disappeared before completion")
		}

		bar.Set(int(snapshot.Progress))
		if snapshot.Status == types.JobStatusReady {
			fmt.Println()
			deliverToCwd(orchestrator, snapshot.ID, logger)
			return
		}
		if snapshot.Status == types.JobStatusError {
			fmt.Println()
			logger.Fatal("download failed", "err", snapshot.Error)
		}

		time.Sleep(250 * time.Millisecond)
	}
}

// deliverToCwd copies the finished artifact out of the job's working
// directory before cleanup removes it.
func deliverToCwd(orchestrator services.JobOrchestrator, jobID string, logger *log.Logger) {
	job, err := orchestrator.ClaimDelivery(jobID)
	if err != nil {
		logger.Fatal("failed to claim finished job", "err", err)
	}

	src, err := os.Open(job.ResultPath)
	if err != nil {
		orchestrator.FinishDelivery(jobID, false)
		logger.Fatal("result file missing", "err", err)
	}
	defer src.Close()

	destPath := filepath.Join(".", job.ResultFilename)
	dest, err := os.Create(destPath)
	if err != nil {
		orchestrator.FinishDelivery(jobID, false)
		logger.Fatal("failed to create output file", "err", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		orchestrator.FinishDelivery(jobID, false)
		logger.Fatal("failed to copy output file", "err", err)
	}

	orchestrator.FinishDelivery(jobID, true)
	logger.Info("saved", "file", destPath)
}
