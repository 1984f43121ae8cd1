package local

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/ruffel/provision"
	"go.uber.org/zap"
)

var _ provision.Supervisor = (*Supervisor)(nil)

// Supervisor implements provision.Supervisor for the local operating system.
// Thread-safe wrapper around os/exec.
type Supervisor struct {
	cfg    Config
	mu     sync.RWMutex
	active int
	closed bool
}

// New creates a new local supervisor.
func New(opts ...Option) *Supervisor {
	cfg := Config{
		waitDelay: DefaultWaitDelay,
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Supervisor{cfg: cfg}
}

// Start launches the command and returns without waiting for it.
// Caller must Wait on and Close the returned Process.
func (s *Supervisor) Start(ctx context.Context, cmd *provision.Command) (provision.Process, error) {
	if err := cmd.Validate(); err != nil {
		return nil, &provision.ConfigError{Reason: "executable not configured", Err: err}
	}

	path, err := Resolve(cmd.Cmd)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil, fmt.Errorf("cannot start command %q: %w", cmd.Cmd, provision.ErrClosed)
	}

	s.active++
	s.mu.Unlock()

	process := &Process{
		sup:  s,
		cmd:  cmd,
		path: path,
	}

	err = process.start(ctx)
	if err != nil {
		s.decrementActive()

		return nil, err
	}

	s.cfg.logger.Debug("process started",
		zap.String("path", path),
		zap.Int("pid", process.pid()))

	return process, nil
}

// Active returns the number of currently running commands.
func (s *Supervisor) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.active
}

// Close shuts down the supervisor.
// New Start calls will fail. Existing processes keep running until finished.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

// Resolve checks that name refers to an executable file. Names containing a
// path separator are stat'ed; bare names are searched for in PATH.
func Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &provision.ConfigError{Reason: "executable not configured"}
	}

	if strings.ContainsAny(name, `/\`) {
		info, err := os.Stat(name)
		if err != nil {
			return "", &provision.ConfigError{Reason: "executable not configured", Err: err}
		}

		if info.IsDir() {
			return "", &provision.ConfigError{
				Reason: "executable not configured",
				Err:    fmt.Errorf("%s is a directory", name),
			}
		}

		return name, nil
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", &provision.ConfigError{Reason: "executable not configured", Err: err}
	}

	return path, nil
}

func (s *Supervisor) decrementActive() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}
