package provisiontest

import (
	"path/filepath"
	"strconv"

	"github.com/ruffel/provision"
	"github.com/stretchr/testify/require"
)

const waitExitErrorCode = 23

func errorContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryErrors,
			Name:        "wait-nonzero-returns-exiterror",
			Description: "Wait non-zero failures must return *provision.ExitError",
			Prereq:      needsShell,
			Run: func(t T, sup provision.Supervisor) {
				proc, err := sup.Start(t.Context(), shell("exit "+strconv.Itoa(waitExitErrorCode)))
				require.NoError(t, err)
				require.NotNil(t, proc)

				defer func() { _ = proc.Close() }()

				err = proc.Wait()
				require.Error(t, err)

				var exitErr *provision.ExitError
				require.ErrorAs(t, err, &exitErr)
				require.Equal(t, waitExitErrorCode, exitErr.ExitCode)
				require.Equal(t, waitExitErrorCode, proc.Result().ExitCode)
			},
		},
		{
			Category:    CategoryErrors,
			Name:        "missing-executable-config-error",
			Description: "Start with a missing executable fails before spawning with *provision.ConfigError",
			Run: func(t T, sup provision.Supervisor) {
				missing := filepath.Join(t.TempDir(), "no-such-tool")

				proc, err := sup.Start(t.Context(), provision.NewCommand(missing, "-V"))
				require.Nil(t, proc)

				var cfgErr *provision.ConfigError
				require.ErrorAs(t, err, &cfgErr)
			},
		},
		{
			Category:    CategoryErrors,
			Name:        "empty-executable-config-error",
			Description: "Start with an empty executable fails with *provision.ConfigError",
			Run: func(t T, sup provision.Supervisor) {
				_, err := sup.Start(t.Context(), provision.NewCommand(""))

				var cfgErr *provision.ConfigError
				require.ErrorAs(t, err, &cfgErr)
			},
		},
	}
}
