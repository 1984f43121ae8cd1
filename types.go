package provision

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/shlex"
)

// redacted replaces secret arguments in display renderings.
const redacted = "******"

// Command configures a process execution.
type Command struct {
	Cmd  string   // Path to the executable
	Args []string // Arguments to pass to the binary
	Env  []string // Environment variables in "KEY=VALUE" format
	Dir  string   // Working directory for execution

	// Standard streams. If nil, defaults to empty/discard.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Validate checks that the command is well-formed.
// Returns an error if the command is nil or has an empty binary.
func (c *Command) Validate() error {
	if c == nil {
		return errors.New("command cannot be nil")
	}

	if strings.TrimSpace(c.Cmd) == "" {
		return errors.New("command binary cannot be empty")
	}

	return nil
}

// NewCommand creates a new Command with the given binary and arguments.
func NewCommand(binary string, args ...string) *Command {
	return &Command{
		Cmd:  binary,
		Args: args,
	}
}

// String renders the command line. Arguments that a POSIX shell would split or
// expand are wrapped with QuoteDouble, so ParseCommand(c.String()) yields the
// same argument vector.
func (c *Command) String() string {
	var b strings.Builder
	b.WriteString(quoteIfNeeded(c.Cmd))

	for _, arg := range c.Args {
		b.WriteString(" ")
		b.WriteString(quoteIfNeeded(arg))
	}

	return b.String()
}

// Redact returns a shallow copy in which the value following each of the
// given flags is masked. Streams are not copied.
func (c *Command) Redact(flags ...string) *Command {
	out := &Command{
		Cmd:  c.Cmd,
		Args: make([]string, len(c.Args)),
		Env:  c.Env,
		Dir:  c.Dir,
	}

	copy(out.Args, c.Args)

	for i := 0; i < len(out.Args)-1; i++ {
		if slices.Contains(flags, out.Args[i]) {
			out.Args[i+1] = redacted
			i++
		}
	}

	return out
}

// ParseCommand parses a shell command string into a Command struct using shlex.
// It handles quoted arguments correctly.
func ParseCommand(cmdStr string) (*Command, error) {
	parts, err := shlex.Split(cmdStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	if len(parts) == 0 {
		return nil, errors.New("empty command")
	}

	return &Command{
		Cmd:  parts[0],
		Args: parts[1:],
	}, nil
}

// Result contains metadata about a completed process.
type Result struct {
	ExitCode int           // Process exit code (0 indicates success)
	Duration time.Duration // Time taken for execution
	Error    error         // Launch/Wait error (distinct from non-zero exit code)
}

// Success returns true if the process exited with code 0 and no wait error.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && r.Error == nil
}

// Failed returns true if the process failed (non-zero exit code or wait error).
func (r *Result) Failed() bool {
	return !r.Success()
}
