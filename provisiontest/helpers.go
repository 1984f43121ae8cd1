package provisiontest

import (
	"os/exec"
	"runtime"

	"github.com/ruffel/provision"
)

// needsShell skips contracts that drive a POSIX shell.
func needsShell(_ T, _ provision.Supervisor) (bool, string) {
	if runtime.GOOS == "windows" {
		return false, "POSIX shell required"
	}

	if _, err := exec.LookPath("sh"); err != nil {
		return false, "sh not found in PATH"
	}

	return true, ""
}

func shell(script string) *provision.Command {
	return provision.NewCommand("sh", "-c", script)
}
