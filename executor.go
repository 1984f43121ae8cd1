package provision

import (
	"bytes"
	"context"
	"errors"
)

// Executor runs commands to completion on a Supervisor. The Controller is the
// asynchronous path; Executor serves one-shot calls such as probing the
// remote-shell tool.
type Executor struct {
	sup Supervisor
}

// BufferedResult is a Result together with the captured output streams.
type BufferedResult struct {
	Result

	Stdout []byte
	Stderr []byte
}

// NewExecutor creates a new Executor with the given supervisor.
func NewExecutor(sup Supervisor) *Executor {
	return &Executor{sup: sup}
}

// Run starts cmd and waits for it. A non-zero exit is returned as *ExitError
// together with the Result.
func (e *Executor) Run(ctx context.Context, cmd *Command) (*Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	proc, err := e.sup.Start(ctx, cmd)
	if err != nil {
		return nil, err
	}

	defer func() { _ = proc.Close() }()

	waitErr := proc.Wait()

	return proc.Result(), waitErr
}

// RunBuffered executes a command and captures both Stdout and Stderr.
func (e *Executor) RunBuffered(ctx context.Context, cmd *Command) (*BufferedResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	cmdCopy := *cmd
	cmdCopy.Stdout = &stdoutBuf
	cmdCopy.Stderr = &stderrBuf

	result, err := e.Run(ctx, &cmdCopy)

	bufResult := &BufferedResult{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
	}
	if result != nil {
		bufResult.Result = *result
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		exitErr.Stderr = bufResult.Stderr
	}

	return bufResult, err
}

// RunLineStream runs cmd and calls onLine for every non-empty line of both
// output streams. Overrides Command.Stdout and Command.Stderr.
func (e *Executor) RunLineStream(ctx context.Context, cmd *Command, onLine func(string)) error {
	stdout := NewLineWriter(onLine)
	stderr := NewLineWriter(onLine)

	cmdCopy := *cmd
	cmdCopy.Stdout = stdout
	cmdCopy.Stderr = stderr

	_, err := e.Run(ctx, &cmdCopy)

	_ = stdout.Close()
	_ = stderr.Close()

	return err
}
