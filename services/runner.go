package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sonata/types"
	"sync"
)

// ProcessHandle exposes a running subprocess's combined output line stream
// and its completion signal. Done delivers exactly one value (the exit
// error, nil on success) after Lines has been closed.
type ProcessHandle struct {
	Lines <-chan string
	Done  <-chan error
}

// ProcessRunner spawns and supervises external extraction subprocesses
type ProcessRunner interface {
	Start(ctx context.Context, executable string, args ...string) (*ProcessHandle, error)
}

type processRunner struct{}

// NewProcessRunner creates a runner backed by os/exec
func NewProcessRunner() ProcessRunner {
	return &processRunner{}
}

// Start spawns the subprocess with stdout and stderr piped. It fails
// synchronously when the binary cannot be spawned; no completion signal is
// emitted in that case. The caller must ensure the working directory exists
// before calling Start.
func (r *processRunner) Start(ctx context.Context, executable string, args ...string) (*ProcessHandle, error) {
	cmd := exec.CommandContext(ctx, executable, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSpawn, executable, err)
	}

	lines := make(chan string, 64)
	done := make(chan error, 1)

	var wg sync.WaitGroup
	for _, pipe := range []io.Reader{stdout, stderr} {
		wg.Add(1)
		go func(r io.Reader) {
			defer wg.Done()
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}(pipe)
	}

	go func() {
		wg.Wait()
		close(lines)
		done <- cmd.Wait()
		close(done)
	}()

	return &ProcessHandle{Lines: lines, Done: done}, nil
}
