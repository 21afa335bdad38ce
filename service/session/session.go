// Package session owns a single persistent shell process attached to a
// pseudo-terminal. The session preserves shell state (working directory,
// environment, started background jobs) across commands; callers interact
// with it only through Write/ReadAvailable so the descriptor never leaks
// outside this package.
package session

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/EricSpencer00/ai-os-sub000/internal/clock"
)

const (
	// DefaultShell is used when no shell path is configured.
	DefaultShell = "/bin/bash"

	readChunkSize = 32 * 1024
	// drainWait bounds the follow-up reads issued after the first chunk so a
	// burst of output is returned in one ReadAvailable call.
	drainWait = 5 * time.Millisecond
	// closeGrace is how long Close waits for the shell to exit after SIGTERM
	// before sending SIGKILL.
	closeGrace = 2 * time.Second
)

// Session represents one live shell process and its pseudo-terminal master
// descriptor. At most one Session per terminal instance may be live at a
// time; that invariant is enforced by the owning coordinator, not here.
type Session struct {
	shell     string
	cmd       *exec.Cmd
	ptmx      *os.File
	createdAt time.Time

	exited chan struct{} // closed once the shell process has been reaped

	mu     sync.Mutex
	closed bool
}

// Open spawns a shell under a pseudo-terminal and prepares it for framed
// command execution. The extra environment entries are appended to the
// current process environment. Errors wrap ErrSessionStart.
func Open(shell string, env map[string]string) (*Session, error) {
	if shell == "" {
		shell = DefaultShell
	}
	cmd := exec.Command(shell)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionStart, err)
	}
	s := &Session{
		shell:     shell,
		cmd:       cmd,
		ptmx:      ptmx,
		createdAt: clock.Now(),
		exited:    make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(s.exited)
	}()

	// Turn off tty echo so written scripts are not reflected back into the
	// output stream. Framing tolerates echo regardless, this just keeps the
	// stream (and any persisted transcripts) clean.
	if err := s.Write([]byte("stty -echo 2>/dev/null\n")); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: initial write: %v", ErrSessionStart, err)
	}
	return s, nil
}

// Alive reports whether the shell process is still running and the session
// has not been closed.
func (s *Session) Alive() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Shell returns the configured shell binary path.
func (s *Session) Shell() string { return s.shell }

// Write sends raw bytes to the shell's input. A failed liveness check or a
// broken descriptor both surface as ErrSessionDead; no raw OS error is
// returned to callers.
func (s *Session) Write(data []byte) error {
	if !s.Alive() {
		return ErrSessionDead
	}
	if _, err := s.ptmx.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionDead, err)
	}
	return nil
}

// ReadAvailable waits up to timeout for any output and returns the bytes
// accumulated so far. An empty result with a nil error is a valid outcome
// meaning nothing arrived within the window. Once a first chunk arrives,
// immediately available follow-up bytes are drained into the same result.
// The timeout is an absolute budget for the whole call: draining never
// extends it, so a command producing continuous output still returns
// control to the caller within the window.
func (s *Session) ReadAvailable(timeout time.Duration) ([]byte, error) {
	if !s.Alive() {
		return nil, ErrSessionDead
	}
	deadline := clock.Now().Add(timeout)
	var out []byte
	buf := make([]byte, readChunkSize)

	for {
		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			return out, nil
		}
		// Keep draining with a short window while output is flowing, clamped
		// to what is left of the overall budget.
		wait := remaining
		if len(out) > 0 && drainWait < wait {
			wait = drainWait
		}
		if err := s.ptmx.SetReadDeadline(clock.Now().Add(wait)); err != nil {
			return out, fmt.Errorf("%w: %v", ErrSessionDead, err)
		}
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return out, nil
			}
			// Reading the master side after the shell exits yields EIO on
			// Linux; report it as a dead session rather than an I/O error.
			if len(out) > 0 {
				return out, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrSessionDead, err)
		}
	}
}

// Close terminates the shell process and releases the descriptor. It is
// idempotent and safe to call from signal handlers.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGTERM)
	}
	select {
	case <-s.exited:
	case <-time.After(closeGrace):
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		<-s.exited
	}
	return s.ptmx.Close()
}
