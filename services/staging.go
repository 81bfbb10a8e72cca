package services

import (
	"fmt"
	"os"
	"path/filepath"
)

// StagedFile is a temp file destined to atomically replace a target.
// Commit is the only mutating step; Discard is safe to call on any path,
// including after Commit.
type StagedFile struct {
	Path      string
	target    string
	committed bool
}

// StageTemp creates a staging path next to the target so the final rename
// stays on one filesystem. The file itself is created by whoever writes to
// Path (ffmpeg, an encoder, io.Copy).
func StageTemp(target string) (*StagedFile, error) {
	dir := filepath.Dir(target)
	f, err := os.CreateTemp(dir, ".staged-*"+filepath.Ext(target))
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	path := f.Name()
	f.Close()

	return &StagedFile{Path: path, target: target}, nil
}

// Commit atomically replaces the target with the staged file
func (s *StagedFile) Commit() error {
	if err := os.Rename(s.Path, s.target); err != nil {
		return fmt.Errorf("failed to commit staged file: %w", err)
	}
	s.committed = true
	return nil
}

// Discard removes the staged file if it was never committed
func (s *StagedFile) Discard() {
	if s.committed {
		return
	}
	os.Remove(s.Path)
}
