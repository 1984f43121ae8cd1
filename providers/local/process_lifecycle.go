package local

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ruffel/provision"
)

// Close releases resources associated with the process.
// If the process is still running, it will be killed to ensure cleanup.
func (p *Process) Close() error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()

		return nil // Already closed
	}

	// Determine if we need to kill the process before setting closed
	shouldKill := p.execCmd != nil && p.execCmd.Process != nil && p.done != nil
	done := p.done // Capture channel reference
	p.closed = true
	p.mu.Unlock()

	// Kill and wait outside of lock to avoid deadlock
	if shouldKill {
		select {
		case <-done:
			// Process already completed, nothing to kill
		default:
			// Process still running, kill the process group to prevent leaks.
			if pid := p.pid(); pid > 0 {
				_ = killProcessGroup(pid)
			}

			<-done // Wait for goroutine to finish
		}
	}

	return nil
}

func (p *Process) start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("cannot start process %q: already closed", p.cmd.Cmd)
	}

	p.execCmd = exec.CommandContext(ctx, p.path, p.cmd.Args...)

	// Set working directory if specified
	if p.cmd.Dir != "" {
		p.execCmd.Dir = p.cmd.Dir
	}

	// Set environment variables if specified
	if len(p.cmd.Env) > 0 {
		p.execCmd.Env = append(os.Environ(), p.cmd.Env...)
	}

	// Create a new Process Group to allow killing the entire tree (children) later.
	setProcessGroup(p.execCmd)

	// Context cancellation kills the whole group, not just the direct child.
	execCmd := p.execCmd
	execCmd.Cancel = func() error {
		return killProcessGroup(execCmd.Process.Pid)
	}
	execCmd.WaitDelay = p.sup.cfg.waitDelay

	// Wire up streams.
	// The stdin payload is copied by os/exec and the pipe closed at EOF.
	if p.cmd.Stdout != nil {
		execCmd.Stdout = p.cmd.Stdout
	}

	if p.cmd.Stderr != nil {
		execCmd.Stderr = p.cmd.Stderr
	}

	if p.cmd.Stdin != nil {
		execCmd.Stdin = p.cmd.Stdin
	}

	p.done = make(chan struct{})

	startTime := time.Now()

	err := execCmd.Start()
	if err != nil {
		return fmt.Errorf("cannot start process %q: %w", p.cmd.Cmd, err)
	}

	// Start a goroutine to wait for completion.
	// This ensures we capture the exact exit timing and result asynchronously.
	go func() {
		defer close(p.done)
		defer p.sup.decrementActive()

		err := execCmd.Wait()
		duration := time.Since(startTime)
		exitCode := 0
		if execCmd.ProcessState != nil {
			exitCode = execCmd.ProcessState.ExitCode()
		}

		p.mu.Lock()
		p.result = &provision.Result{
			ExitCode: exitCode,
			Duration: duration,
			Error:    err,
		}
		p.mu.Unlock()
	}()

	return nil
}
