package types

import "errors"

var (
	// Fatal to a job
	ErrSpawn         = errors.New("failed to spawn subprocess")
	ErrOutputMissing = errors.New("expected output file missing")

	// Catalog lookup outcomes recovered with fallback metadata
	ErrLookupMiss = errors.New("no catalog match")

	// Delivery endpoint state machine
	ErrJobNotFound      = errors.New("job not found")
	ErrNotReady         = errors.New("job not ready")
	ErrAlreadyStreaming = errors.New("job already streaming")
	ErrAlreadyDelivered = errors.New("job already delivered")

	// Cache
	ErrCacheMiss = errors.New("cache entry not found")
)
