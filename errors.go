package provision

import (
	"errors"
	"fmt"
)

// ErrNotIdle indicates that Run was called on a controller that already ran.
var ErrNotIdle = errors.New("controller is not idle")

// ErrClosed indicates that an operation was attempted on a closed supervisor or session.
var ErrClosed = errors.New("closed")

// ConfigError reports a problem detected before any process or session starts:
// missing tool path, missing auth material or missing paths.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return "configuration error: " + e.Reason
	}

	return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ConnectionError represents a failed handshake, authentication or host key check.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TransferError represents an I/O failure while copying a file.
type TransferError struct {
	LocalPath  string
	RemotePath string
	Err        error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s -> %s failed: %v", e.LocalPath, e.RemotePath, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// ExitError represents a process that ran to completion with a non-zero exit code.
type ExitError struct {
	Command  *Command
	ExitCode int
	Stderr   []byte // Populated by Executor.RunBuffered only
	Cause    error
}

func (e *ExitError) Error() string {
	if e.Command == nil {
		return fmt.Sprintf("command exited with code %d", e.ExitCode)
	}

	return fmt.Sprintf("command %q exited with code %d", e.Command.Cmd, e.ExitCode)
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}
