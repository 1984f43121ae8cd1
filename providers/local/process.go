package local

import (
	"os/exec"
	"sync"

	"github.com/ruffel/provision"
)

// Process implements provision.Process for local command execution.
// It wraps `*exec.Cmd` to provide a uniform interface for waiting, terminating, and result retrieval.
type Process struct {
	sup     *Supervisor
	cmd     *provision.Command
	path    string
	execCmd *exec.Cmd

	// Result related fields
	result     *provision.Result
	mu         sync.RWMutex
	done       chan struct{}
	closed     bool
	terminated bool
}

func (p *Process) pid() int {
	if p.execCmd == nil || p.execCmd.Process == nil {
		return 0
	}

	return p.execCmd.Process.Pid
}
