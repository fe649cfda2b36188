// Package launcher supervises one analyzer child process at a time and
// provides the file helpers the launcher front end needs.
package launcher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// DefaultKillGrace is how long Kill waits after terminating before it kills.
const DefaultKillGrace = 200 * time.Millisecond

var (
	ErrAlreadyRunning = errors.New("an analysis is already running")
	ErrNotRunning     = errors.New("no analysis is running")
)

// Handlers receive the child's output and its exit. Both are called from
// the supervisor's goroutine.
type Handlers struct {
	OnLine func(line string)
	OnExit func(code int, err error)
}

// Job is what the supervisor runs: a program, its arguments, and the two
// lines written to its stdin.
type Job struct {
	Program    string
	Args       []string
	Dir        string
	PromptPath string
	LogPath    string
}

// Supervisor starts, streams and kills the analyzer child.
type Supervisor struct {
	grace time.Duration

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func NewSupervisor(grace time.Duration) *Supervisor {
	if grace <= 0 {
		grace = DefaultKillGrace
	}
	return &Supervisor{grace: grace}
}

// Start launches job. Output lines are delivered to h.OnLine in order,
// then h.OnExit is called once with the exit code.
func (s *Supervisor) Start(job Job, h Handlers) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return ErrAlreadyRunning
	}

	cmd := exec.Command(job.Program, job.Args...)
	cmd.Dir = job.Dir
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("launcher: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("launcher: stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launcher: start %s: %w", job.Program, err)
	}

	done := make(chan struct{})
	s.cmd = cmd
	s.done = done

	// The child may exit before reading; a broken pipe here is not an error.
	go func() {
		_, _ = fmt.Fprintln(stdin, job.PromptPath)
		_, _ = fmt.Fprintln(stdin, job.LogPath)
		_ = stdin.Close()
	}()

	go s.stream(cmd, stdout, done, h)
	return nil
}

func (s *Supervisor) stream(cmd *exec.Cmd, out io.Reader, done chan struct{}, h Handlers) {
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if h.OnLine != nil {
			h.OnLine(scanner.Text())
		}
	}
	// A line over the buffer limit stops the scanner; keep draining so the
	// child never blocks on a full pipe and Wait can return.
	_, _ = io.Copy(io.Discard, out)

	waitErr := cmd.Wait()
	code := exitCode(cmd.ProcessState)

	s.mu.Lock()
	s.cmd = nil
	s.done = nil
	s.mu.Unlock()
	defer close(done)

	if h.OnExit != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			waitErr = nil
		}
		h.OnExit(code, waitErr)
	}
}

// Running reports whether a child is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// Wait blocks until the current child, if any, has exited and its handlers
// have run.
func (s *Supervisor) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Kill asks the child to terminate, waits the grace period, then kills it
// if it is still running.
func (s *Supervisor) Kill() error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.mu.Unlock()
	if cmd == nil {
		return ErrNotRunning
	}

	if err := terminate(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("launcher: terminate: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.grace):
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("launcher: kill: %w", err)
	}
	return nil
}

// ExitStatus is the status line shown when a child ends.
func ExitStatus(code int) string {
	return fmt.Sprintf("Process exited with code %d", code)
}
