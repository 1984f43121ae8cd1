package mock

import (
	"context"
	"io"

	"github.com/ruffel/provision"
	"github.com/stretchr/testify/mock"
)

// Anything re-exports mock.Anything so callers need a single import.
const Anything = mock.Anything

// Supervisor implements a mock provision.Supervisor using testify/mock.
type Supervisor struct {
	mock.Mock
}

var _ provision.Supervisor = (*Supervisor)(nil)

// NewSupervisor creates a new mock supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{}
}

// Start mocks starting a command asynchronously.
func (m *Supervisor) Start(ctx context.Context, cmd *provision.Command) (provision.Process, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(provision.Process), args.Error(1)
}

// Process implements a mock provision.Process using testify/mock.
type Process struct {
	mock.Mock
}

var _ provision.Process = (*Process)(nil)

// Wait mocks waiting for the process to complete.
func (m *Process) Wait() error {
	args := m.Called()

	return args.Error(0)
}

// Result mocks returning the process result.
func (m *Process) Result() *provision.Result {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(*provision.Result)
}

// Terminate mocks stopping the process.
func (m *Process) Terminate() error {
	args := m.Called()

	return args.Error(0)
}

// Close mocks closing the process.
func (m *Process) Close() error {
	args := m.Called()

	return args.Error(0)
}

// Transferer implements a mock provision.Transferer using testify/mock.
type Transferer struct {
	mock.Mock
}

var _ provision.Transferer = (*Transferer)(nil)

// NewTransferer creates a new mock transferer.
func NewTransferer() *Transferer {
	return &Transferer{}
}

// Open mocks opening a transfer session.
func (m *Transferer) Open(ctx context.Context, p provision.Profile) (provision.Session, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(provision.Session), args.Error(1)
}

// Session implements a mock provision.Session using testify/mock.
type Session struct {
	mock.Mock
}

var _ provision.Session = (*Session)(nil)

// PutFile mocks copying a file.
func (m *Session) PutFile(ctx context.Context, localPath, remotePath string, progress provision.ProgressFunc) error {
	args := m.Called(ctx, localPath, remotePath, progress)

	return args.Error(0)
}

// Abort mocks interrupting a copy in flight.
func (m *Session) Abort() error {
	args := m.Called()

	return args.Error(0)
}

// Close mocks closing the session.
func (m *Session) Close() error {
	args := m.Called()

	return args.Error(0)
}

// WriteOutput is a helper to simulate output writing for mocked processes.
// Usage: mockProcess.On("Wait").Run(WriteOutput(w, "output")).Return(nil).
func WriteOutput(w io.Writer, content string) func(mock.Arguments) {
	return func(_ mock.Arguments) {
		if w != nil {
			_, _ = io.WriteString(w, content)
		}
	}
}

// EmitLines writes stdout and stderr to the streams of the *provision.Command
// passed to Start.
// Usage: sup.On("Start", Anything, Anything).Run(EmitLines("out\n", "err\n")).Return(proc, nil).
func EmitLines(stdout, stderr string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		cmd, ok := args.Get(1).(*provision.Command)
		if !ok {
			return
		}

		if stdout != "" && cmd.Stdout != nil {
			_, _ = io.WriteString(cmd.Stdout, stdout)
		}

		if stderr != "" && cmd.Stderr != nil {
			_, _ = io.WriteString(cmd.Stderr, stderr)
		}
	}
}

// ReportProgress calls the progress callback passed to PutFile with each of
// the given byte counts out of total.
func ReportProgress(total int64, counts ...int64) func(mock.Arguments) {
	return func(args mock.Arguments) {
		fn, ok := args.Get(3).(provision.ProgressFunc)
		if !ok || fn == nil {
			return
		}

		for _, c := range counts {
			fn(c, total)
		}
	}
}
