package provisiontest

import (
	"strings"
	"sync"

	"github.com/ruffel/provision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coreContracts() []TestCase {
	return []TestCase{
		{
			Category: CategoryCore,
			Name:     "simple-echo",
			Prereq:   needsShell,
			Run: func(t T, sup provision.Supervisor) {
				result, err := provision.NewExecutor(sup).RunBuffered(t.Context(), provision.NewCommand("echo", "hello"))
				require.NoError(t, err)
				require.NotNil(t, result)

				assert.Equal(t, "hello", strings.TrimSpace(string(result.Stdout)))
				assert.Equal(t, 0, result.ExitCode)
			},
		},
		{
			Category:    CategoryCore,
			Name:        "stdin-payload",
			Description: "The stdin payload reaches the process and is followed by EOF",
			Prereq:      needsShell,
			Run: func(t T, sup provision.Supervisor) {
				cmd := provision.Cmd("cat").Input("line one\nline two\n").Build()

				result, err := provision.NewExecutor(sup).RunBuffered(t.Context(), cmd)
				require.NoError(t, err)
				assert.Equal(t, "line one\nline two\n", string(result.Stdout))
			},
		},
		{
			Category:    CategoryCore,
			Name:        "per-stream-line-order",
			Description: "Lines of one stream arrive in the order they were written",
			Prereq:      needsShell,
			Run: func(t T, sup provision.Supervisor) {
				var (
					mu   sync.Mutex
					out  []string
					errs []string
				)

				cmd := shell("for i in 1 2 3 4 5; do echo out$i; echo err$i >&2; done")
				cmd.Stdout = provision.NewLineWriter(func(l string) {
					mu.Lock()
					defer mu.Unlock()

					out = append(out, l)
				})
				cmd.Stderr = provision.NewLineWriter(func(l string) {
					mu.Lock()
					defer mu.Unlock()

					errs = append(errs, l)
				})

				_, err := provision.NewExecutor(sup).Run(t.Context(), cmd)
				require.NoError(t, err)

				mu.Lock()
				defer mu.Unlock()

				assert.Equal(t, []string{"out1", "out2", "out3", "out4", "out5"}, out)
				assert.Equal(t, []string{"err1", "err2", "err3", "err4", "err5"}, errs)
			},
		},
	}
}
