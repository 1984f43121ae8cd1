package local

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/ruffel/provision"
)

// Wait blocks until the command completes.
// It returns a *provision.ExitError if the command finished with a non-zero exit code,
// or a different error if the wait itself failed.
func (p *Process) Wait() error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()

		return fmt.Errorf("cannot wait on process %q: already closed", p.cmd.Cmd)
	}

	if p.done == nil {
		p.mu.RUnlock()

		return fmt.Errorf("cannot wait on process %q: not started", p.cmd.Cmd)
	}

	done := p.done
	p.mu.RUnlock()

	// Block until the monitoring goroutine closes the done channel
	<-done

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.result.Error != nil {
		exitErr := &exec.ExitError{}
		if errors.As(p.result.Error, &exitErr) {
			return &provision.ExitError{
				Command:  p.cmd,
				ExitCode: exitErr.ExitCode(),
				Cause:    p.result.Error,
			}
		}

		return p.result.Error
	}

	return nil
}

// Result returns the final metadata of the command execution.
// It returns an empty result if the process is still running or hasn't started.
func (p *Process) Result() *provision.Result {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.result == nil {
		return &provision.Result{}
	}

	// Return a copy to prevent external modification
	return &provision.Result{
		ExitCode: p.result.ExitCode,
		Duration: p.result.Duration,
		Error:    p.result.Error,
	}
}

// Terminate kills the process group. It is a no-op once the process has
// exited and on repeated calls. Kill failures are returned, never panicked.
func (p *Process) Terminate() error {
	p.mu.Lock()

	if p.done == nil {
		p.mu.Unlock()

		return fmt.Errorf("cannot terminate process %q: not started", p.cmd.Cmd)
	}

	if p.terminated {
		p.mu.Unlock()

		return nil
	}

	done := p.done

	select {
	case <-done:
		p.mu.Unlock()

		return nil
	default:
	}

	p.terminated = true
	pid := p.pid()
	p.mu.Unlock()

	if err := killProcessGroup(pid); err != nil {
		select {
		case <-done:
			return nil
		default:
		}

		return fmt.Errorf("cannot terminate process %q: %w", p.cmd.Cmd, err)
	}

	return nil
}
