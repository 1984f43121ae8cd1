package provisiontest

import (
	"io"
	"time"

	"github.com/ruffel/provision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const terminateBound = 5 * time.Second

func lifecycleContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryLifecycle,
			Name:        "terminate-running",
			Description: "Terminate stops a running process and Wait returns promptly",
			Prereq:      needsShell,
			Run: func(t T, sup provision.Supervisor) {
				proc, err := sup.Start(t.Context(), shell("sleep 30"))
				require.NoError(t, err)

				defer func() { _ = proc.Close() }()

				start := time.Now()

				require.NoError(t, proc.Terminate())
				require.Error(t, proc.Wait())
				assert.Less(t, time.Since(start), terminateBound)
			},
		},
		{
			Category:    CategoryLifecycle,
			Name:        "terminate-idempotent",
			Description: "Repeated Terminate calls do not fail",
			Prereq:      needsShell,
			Run: func(t T, sup provision.Supervisor) {
				proc, err := sup.Start(t.Context(), shell("sleep 30"))
				require.NoError(t, err)

				defer func() { _ = proc.Close() }()

				require.NoError(t, proc.Terminate())
				require.NoError(t, proc.Terminate())

				_ = proc.Wait()

				require.NoError(t, proc.Terminate())
			},
		},
		{
			Category:    CategoryLifecycle,
			Name:        "terminate-after-exit",
			Description: "Terminate is a no-op once the process has exited",
			Prereq:      needsShell,
			Run: func(t T, sup provision.Supervisor) {
				proc, err := sup.Start(t.Context(), shell("exit 0"))
				require.NoError(t, err)

				defer func() { _ = proc.Close() }()

				require.NoError(t, proc.Wait())
				require.NoError(t, proc.Terminate())
				assert.Equal(t, 0, proc.Result().ExitCode)
			},
		},
		{
			Category:    CategoryLifecycle,
			Name:        "close-idempotent",
			Description: "Closing a process multiple times is deterministic and non-fatal",
			Prereq:      needsShell,
			Run: func(t T, sup provision.Supervisor) {
				proc, err := sup.Start(t.Context(), shell("sleep 30"))
				require.NoError(t, err)

				require.NoError(t, proc.Close())
				require.NoError(t, proc.Close())
			},
		},
		{
			Category:    CategoryLifecycle,
			Name:        "close-supervisor-refuses-start",
			Description: "Start fails deterministically after the supervisor is closed",
			Prereq: func(t T, sup provision.Supervisor) (bool, string) {
				if _, ok := sup.(io.Closer); !ok {
					return false, "supervisor is not an io.Closer"
				}

				return needsShell(t, sup)
			},
			Run: func(t T, sup provision.Supervisor) {
				closer, _ := sup.(io.Closer)
				require.NoError(t, closer.Close())

				_, err := sup.Start(t.Context(), shell("echo provision-contract"))
				require.Error(t, err)
			},
		},
	}
}
