package local

import (
	"context"
	"sync"

	"github.com/ruffel/provision"
)

// RunCommand executes a fully configured command locally using a new supervisor.
func RunCommand(ctx context.Context, cmd *provision.Command, opts ...Option) (*provision.BufferedResult, error) {
	sup := New(opts...)

	defer func() { _ = sup.Close() }()

	return provision.NewExecutor(sup).RunBuffered(ctx, cmd)
}

// ToolVersion runs the remote-shell tool with "-V" and returns its first output
// line, which plink-compatible clients use for the version banner.
func ToolVersion(ctx context.Context, shellPath string, opts ...Option) (string, error) {
	if _, err := Resolve(shellPath); err != nil {
		return "", err
	}

	var (
		mu    sync.Mutex
		first string
	)

	err := provision.NewExecutor(New(opts...)).RunLineStream(ctx, provision.NewCommand(shellPath, "-V"), func(line string) {
		mu.Lock()
		defer mu.Unlock()

		if first == "" {
			first = line
		}
	})

	mu.Lock()
	defer mu.Unlock()

	if err != nil && first == "" {
		return "", err
	}

	return first, nil
}
