// file: internal/transport/process_transport.go
package transport

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/logging"
)

// DefaultShutdownGrace is how long Close waits for the child to exit on its
// own after stdin is closed before killing it.
const DefaultShutdownGrace = 2 * time.Second

// ProcessConfig describes the child process backing a ProcessTransport.
type ProcessConfig struct {
	// Command is the executable to start.
	Command string
	// Args are passed to the executable.
	Args []string
	// Env is appended to the current process environment.
	Env []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Stderr receives the child's stderr. Defaults to os.Stderr.
	Stderr io.Writer
	// ShutdownGrace overrides DefaultShutdownGrace.
	ShutdownGrace time.Duration
}

// ProcessTransport owns a child process and talks NDJSON over its
// stdin/stdout.
type ProcessTransport struct {
	*NDJSONTransport

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	grace  time.Duration
	logger logging.Logger

	exited    chan struct{}
	waitErr   error
	closeOnce sync.Once
	closeErr  error
}

// StartProcess launches the child and returns a transport bound to it. The
// child is not tied to ctx; only Close stops it.
func StartProcess(ctx context.Context, cfg ProcessConfig, logger logging.Logger) (*ProcessTransport, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	logger = logger.WithField("component", "process_transport")

	if cfg.Command == "" {
		return nil, NewError(ErrProcessStart, "no server command configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewError(ErrProcessStart, "context done before start", err)
	}

	// #nosec G204 -- the server command is supplied by the operator.
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Dir = cfg.Dir
	cmd.Stderr = cfg.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, NewError(ErrProcessStart, "failed to open child stdin", err)
	}
	// stdout is a plain pipe rather than StdoutPipe so that reaping the child
	// never closes the read end before buffered output has been consumed.
	stdout, childStdout, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, NewError(ErrProcessStart, "failed to open child stdout", err)
	}
	cmd.Stdout = childStdout
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		_ = childStdout.Close()
		return nil, NewError(ErrProcessStart, "failed to start server process", err).
			WithContext("command", cfg.Command)
	}
	_ = childStdout.Close()

	grace := cfg.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	p := &ProcessTransport{
		NDJSONTransport: NewNDJSONTransport(stdout, stdin, stdout, logger),
		cmd:             cmd,
		stdin:           stdin,
		grace:           grace,
		logger:          logger,
		exited:          make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	logger.Info("Started server process.", "command", cfg.Command, "args", cfg.Args, "pid", cmd.Process.Pid)
	return p, nil
}

// Pid returns the child's process id.
func (p *ProcessTransport) Pid() int {
	return p.cmd.Process.Pid
}

// Exited is closed once the child has been reaped.
func (p *ProcessTransport) Exited() <-chan struct{} {
	return p.exited
}

// Close closes the child's stdin, gives it the grace period to exit, then
// kills it if still running. It always reaps the child.
func (p *ProcessTransport) Close() error {
	p.closeOnce.Do(func() {
		_ = p.NDJSONTransport.Close()
		if err := p.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			p.logger.Debug("Closing child stdin failed.", "error", err)
		}

		select {
		case <-p.exited:
		case <-time.After(p.grace):
			p.logger.Warn("Server process did not exit after stdin closed, killing it.", "pid", p.cmd.Process.Pid)
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.closeErr = NewError(ErrGeneric, "failed to kill server process", err)
			}
			<-p.exited
		}
		p.logger.Info("Server process stopped.", "pid", p.cmd.Process.Pid, "exitError", p.waitErr)
	})
	return p.closeErr
}
