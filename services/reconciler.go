package services

import (
	"context"
	"math"

	"github.com/charmbracelet/log"
)

// durationTolerance is the allowed divergence between actual and canonical
// duration before a trim is attempted. Extra lead-in/lead-out silence
// beyond this throws off lyric synchronization on the client.
const durationTolerance = 1.0

// DurationReconciler compares a file's duration against the catalog's
// canonical duration and trims silence from both ends when they diverge.
type DurationReconciler interface {
	Reconcile(ctx context.Context, filePath string, expectedSeconds float64) bool
}

type durationReconciler struct {
	transcoder Transcoder
	logger     *log.Logger
}

// NewDurationReconciler creates the reconciler
func NewDurationReconciler(transcoder Transcoder, logger *log.Logger) DurationReconciler {
	return &durationReconciler{transcoder: transcoder, logger: logger}
}

// Reconcile probes the actual duration and, when it diverges from the
// expected duration by at least the tolerance, replaces the file with a
// silence-trimmed copy. Returns whether a trim happened. All failures are
// non-fatal: the original file is retained unmodified.
func (r *durationReconciler) Reconcile(ctx context.Context, filePath string, expectedSeconds float64) bool {
	if expectedSeconds <= 0 {
		return false
	}

	actual, err := r.transcoder.Probe(ctx, filePath)
	if err != nil {
		r.logger.Warn("duration probe failed, skipping trim", "file", filePath, "err", err)
		return false
	}

	diff := math.Abs(actual - expectedSeconds)
	if diff < durationTolerance {
		return false
	}

	r.logger.Info("duration mismatch, trimming silence",
		"file", filePath, "actual", actual, "expected", expectedSeconds)

	staged, err := StageTemp(filePath)
	if err != nil {
		r.logger.Warn("failed to stage trim output", "err", err)
		return false
	}
	defer staged.Discard()

	if err := r.transcoder.TrimSilence(ctx, filePath, staged.Path); err != nil {
		r.logger.Warn("silence trim failed, keeping original", "file", filePath, "err", err)
		return false
	}

	if err := staged.Commit(); err != nil {
		r.logger.Warn("failed to replace file with trimmed output", "err", err)
		return false
	}
	return true
}
