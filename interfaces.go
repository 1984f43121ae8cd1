// Package provision drives a remote host through three operations: uploading
// a local artifact, running the remote build script and taking a timestamped
// backup of the deployed artifact.
//
// # Core Interfaces
//
// - Supervisor: spawns the external remote-shell tool (see providers/local).
// - Process: a running tool invocation (Wait, Terminate, Close).
// - Transferer / Session: a secure-copy session used for uploads (see providers/sftp).
// - Controller: the single-use state machine that renders the remote command,
// picks the execution path and republishes everything as Events.
//
// # Streaming
//
// A run never blocks the caller. Controller.Run returns a channel that yields
// output lines, progress and exactly one terminal event, after which the
// channel is closed. Events are produced on a worker goroutine; consumers that
// own a UI thread are responsible for marshaling them onto it.
//
// # Remote errors
//
// The remote script reports its own failures as text markers (for example
// "错误: 源文件不存在"). The exit status of the remote-shell tool is surfaced on
// the Completed event but is not treated as a failure.
package provision

import (
	"context"
	"io"
)

// Supervisor launches external executables.
type Supervisor interface {
	// Start spawns cmd and returns immediately.
	// It fails without spawning anything if the executable cannot be resolved.
	// The caller must release the returned Process via Wait or Close.
	Start(ctx context.Context, cmd *Command) (Process, error)
}

// Process represents a spawned executable that has not necessarily exited.
type Process interface {
	io.Closer

	// Wait blocks until the process exits and its output streams are drained.
	// Returns an *ExitError if the exit code is non-zero.
	Wait() error

	// Result returns exit metadata (only valid after Wait).
	Result() *Result

	// Terminate forcefully stops the process. It is a no-op once the process
	// has exited and may be called any number of times.
	Terminate() error
}

// Transferer opens secure-copy sessions.
type Transferer interface {
	// Open connects and authenticates against the profile's host.
	// Failures are reported as *ConnectionError.
	Open(ctx context.Context, p Profile) (Session, error)
}

// Session is an open secure-copy session. It must be closed on every path.
type Session interface {
	io.Closer

	// PutFile copies localPath to remotePath, calling progress as bytes move.
	// Failures are reported as *TransferError.
	PutFile(ctx context.Context, localPath, remotePath string, progress ProgressFunc) error

	// Abort interrupts an in-flight PutFile and closes the session.
	Abort() error
}

// ProgressFunc is a callback for tracking file transfer progress.
type ProgressFunc func(current, total int64)
