package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sonata/types"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// OrchestratorConfig carries the settings the pipeline needs
type OrchestratorConfig struct {
	YtDlpPath string
	WorkRoot  string
	// DeliveryGrace is how long a terminal job stays visible to pollers
	// before eviction.
	DeliveryGrace time.Duration
}

// JobOrchestrator drives a download job through its whole lifecycle:
// spawn the extractor, fold progress into the store, enrich, reconcile
// duration, cache, and finalize. It also owns the one-shot delivery state
// machine used by the download endpoint.
type JobOrchestrator interface {
	StartJob(url string, format types.JobFormat, title, artist string) types.Job
	ClaimDelivery(id string) (types.Job, error)
	FinishDelivery(id string, success bool)
}

type jobOrchestrator struct {
	cfg        OrchestratorConfig
	store      JobStore
	runner     ProcessRunner
	parser     ProgressParser
	enricher   MetadataEnricher
	reconciler DurationReconciler
	uploader   CacheUploader
	logger     *log.Logger
}

// NewJobOrchestrator creates the orchestrator. The uploader may be nil when
// no object store is configured; caching is then skipped entirely.
func NewJobOrchestrator(cfg OrchestratorConfig, store JobStore, runner ProcessRunner, parser ProgressParser,
	enricher MetadataEnricher, reconciler DurationReconciler, uploader CacheUploader, logger *log.Logger) JobOrchestrator {
	if cfg.DeliveryGrace <= 0 {
		cfg.DeliveryGrace = 5 * time.Second
	}
	return &jobOrchestrator{
		cfg:        cfg,
		store:      store,
		runner:     runner,
		parser:     parser,
		enricher:   enricher,
		reconciler: reconciler,
		uploader:   uploader,
		logger:     logger,
	}
}

// StartJob registers the job and launches its pipeline. It returns
// immediately; progress is observed through the store.
func (o *jobOrchestrator) StartJob(url string, format types.JobFormat, title, artist string) types.Job {
	job := o.store.Create(url, format, title, artist)
	go o.run(job)
	return job
}

// run owns exactly one subprocess and one working directory for the job's
// lifetime. Stages are strictly sequential; each depends on the previous
// stage's file state.
func (o *jobOrchestrator) run(job types.Job) {
	ctx := context.Background()
	logger := o.logger.With("job", job.ID)

	workDir := filepath.Join(o.cfg.WorkRoot, job.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		o.fail(job.ID, workDir, fmt.Errorf("failed to create working directory: %w", err))
		return
	}
	o.store.Update(job.ID, func(j *types.Job) {
		j.WorkDir = workDir
		now := time.Now()
		j.StartedAt = &now
	})

	handle, err := o.runner.Start(ctx, o.cfg.YtDlpPath, extractorArgs(job, workDir)...)
	if err != nil {
		o.fail(job.ID, workDir, err)
		return
	}

	for line := range handle.Lines {
		event := o.parser.Parse(line)
		if event == nil {
			logger.Debug("extractor", "line", line)
			continue
		}
		o.applyProgress(job.ID, event)
	}

	if err := <-handle.Done; err != nil {
		o.fail(job.ID, workDir, fmt.Errorf("extractor exited: %w", err))
		return
	}

	outputPath, err := locateOutput(workDir, job.ID, logger)
	if err != nil {
		o.fail(job.ID, workDir, err)
		return
	}

	record := &types.MetadataRecord{Title: job.Title, Artist: job.Artist}

	// The enrichment sub-pipeline runs only on the audio path, before the
	// job becomes deliverable. Its failures degrade, never abort.
	if job.Format == types.JobFormatAudio {
		o.setStatus(job.ID, types.JobStatusEnriching)
		result := o.enricher.Enrich(ctx, outputPath, job.Title, job.Artist, job.URL)
		if result.Record != nil {
			record = result.Record
		}

		if result.Accepted && record.DurationSeconds > 0 {
			o.reconciler.Reconcile(ctx, outputPath, record.DurationSeconds)
		}

		if o.uploader != nil {
			o.setStatus(job.ID, types.JobStatusCaching)
			if _, err := o.uploader.Upload(ctx, outputPath, record.Title, record.Artist); err != nil {
				logger.Warn("cache upload failed, continuing without cache entry", "err", err)
			}
		}
	}

	filename := ResultFilename(record.Artist, record.Title, filepath.Ext(outputPath))
	o.store.Update(job.ID, func(j *types.Job) {
		j.Status = types.JobStatusReady
		j.ResultPath = outputPath
		j.ResultFilename = filename
		if record.Title != "" {
			j.Title = record.Title
		}
		if record.Artist != "" {
			j.Artist = record.Artist
		}
	})
	logger.Info("job ready", "file", filename)
}

// applyProgress folds one parsed event into the job record
func (o *jobOrchestrator) applyProgress(id string, event *types.ProgressEvent) {
	o.store.Update(id, func(j *types.Job) {
		if j.Status.Terminal() {
			return
		}
		switch event.Phase {
		case types.PhaseMerging:
			j.Status = types.JobStatusMerging
			j.Progress = event.Percent
		default:
			j.Status = types.JobStatusDownloading
			j.Progress = event.Percent
			if event.Speed != "" {
				j.Speed = event.Speed
			}
			if event.Size != "" {
				j.Size = event.Size
			}
			if event.ETA != "" {
				j.ETA = event.ETA
			}
		}
	})
}

func (o *jobOrchestrator) setStatus(id string, status types.JobStatus) {
	o.store.Update(id, func(j *types.Job) {
		j.Status = status
	})
}

// fail marks the job failed and always releases its working directory,
// regardless of which stage broke.
func (o *jobOrchestrator) fail(id, workDir string, err error) {
	o.logger.Error("job failed", "job", id, "err", err)
	o.store.Update(id, func(j *types.Job) {
		j.Status = types.JobStatusError
		j.Error = err.Error()
	})
	o.cleanup(workDir)

	grace := o.cfg.DeliveryGrace
	time.AfterFunc(grace, func() {
		o.store.Delete(id)
	})
}

// ClaimDelivery transitions ready→streaming exactly once. Concurrent or
// repeated claims get a distinct error per state so the endpoint can answer
// 409 vs 410.
func (o *jobOrchestrator) ClaimDelivery(id string) (types.Job, error) {
	var claimed types.Job
	var claimErr error

	found := o.store.Update(id, func(j *types.Job) {
		switch j.Status {
		case types.JobStatusReady:
			j.Status = types.JobStatusStreaming
			claimed = *j
		case types.JobStatusStreaming:
			claimErr = types.ErrAlreadyStreaming
		case types.JobStatusComplete:
			claimErr = types.ErrAlreadyDelivered
		default:
			claimErr = types.ErrNotReady
		}
	})
	if !found {
		return types.Job{}, types.ErrJobNotFound
	}
	if claimErr != nil {
		return types.Job{}, claimErr
	}
	return claimed, nil
}

// FinishDelivery completes the delivery state machine and triggers cleanup.
// The job stays visible for the grace delay so a polling client can observe
// the terminal state before eviction.
func (o *jobOrchestrator) FinishDelivery(id string, success bool) {
	job, exists := o.store.Get(id)
	if !exists {
		return
	}

	if success {
		o.store.Update(id, func(j *types.Job) {
			j.Status = types.JobStatusComplete
		})
	} else {
		o.store.Update(id, func(j *types.Job) {
			j.Status = types.JobStatusError
			j.Error = "file transmission failed"
		})
	}

	o.cleanup(job.WorkDir)
	time.AfterFunc(o.cfg.DeliveryGrace, func() {
		o.store.Delete(id)
	})
}

func (o *jobOrchestrator) cleanup(workDir string) {
	if workDir == "" {
		return
	}
	if err := os.RemoveAll(workDir); err != nil {
		o.logger.Warn("failed to remove working directory", "dir", workDir, "err", err)
	}
}

// extractorArgs builds the yt-dlp invocation. Output is templated on the
// job id so the produced file can be located by prefix afterwards.
func extractorArgs(job types.Job, workDir string) []string {
	output := filepath.Join(workDir, job.ID+".%(ext)s")

	args := []string{"--newline", "--no-playlist", "-o", output}
	if job.Format == types.JobFormatAudio {
		args = append(args, "-x", "--audio-format", "mp3", "--audio-quality", "0")
	} else {
		args = append(args, "-f", "best")
	}
	return append(args, job.URL)
}

// locateOutput finds the file the extractor produced: first by job-id
// filename prefix, then by falling back to the largest file in the job
// directory. The fallback exists because some extraction configurations
// change the expected filename; it is logged so operators can spot them.
func locateOutput(workDir, jobID string, logger *log.Logger) (string, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrOutputMissing, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), jobID) {
			return filepath.Join(workDir, entry.Name()), nil
		}
	}

	var largest string
	var largestSize int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > largestSize {
			largest = entry.Name()
			largestSize = info.Size()
		}
	}

	if largest == "" {
		return "", fmt.Errorf("%w: no files in %s", types.ErrOutputMissing, workDir)
	}

	logger.Warn("output prefix match failed, using largest file", "file", largest)
	return filepath.Join(workDir, largest), nil
}
