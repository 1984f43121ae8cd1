package local

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ruffel/provision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const osWindows = "windows"

func skipOnWindows(t *testing.T) {
	t.Helper()

	if runtime.GOOS == osWindows {
		t.Skip("POSIX shell required")
	}
}

func TestSupervisor_Start(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	sup := New()

	t.Cleanup(func() { _ = sup.Close() })

	tests := []struct {
		name        string
		cmd         *provision.Command
		wantSuccess bool
		wantCode    int
	}{
		{
			name:        "successful command",
			cmd:         &provision.Command{Cmd: "echo", Args: []string{"hello"}},
			wantSuccess: true,
		},
		{
			name:     "command with exit code",
			cmd:      getExitCommand(3),
			wantCode: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			proc, err := sup.Start(context.Background(), tt.cmd)
			require.NoError(t, err)

			defer func() { _ = proc.Close() }()

			err = proc.Wait()
			if tt.wantSuccess {
				require.NoError(t, err)
				assert.Equal(t, 0, proc.Result().ExitCode)
				assert.Greater(t, proc.Result().Duration, time.Duration(0))

				return
			}

			var exitErr *provision.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, tt.wantCode, exitErr.ExitCode)
			assert.Equal(t, tt.wantCode, proc.Result().ExitCode)
		})
	}
}

func TestSupervisor_Streams(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	sup := New()

	t.Cleanup(func() { _ = sup.Close() })

	t.Run("stdin payload is delivered and closed", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer

		cmd := &provision.Command{
			Cmd:    "cat",
			Stdin:  strings.NewReader("cd /srv/app; sh run.sh build\n"),
			Stdout: &stdout,
		}

		proc, err := sup.Start(context.Background(), cmd)
		require.NoError(t, err)

		defer func() { _ = proc.Close() }()

		require.NoError(t, proc.Wait())
		assert.Equal(t, "cd /srv/app; sh run.sh build\n", stdout.String())
	})

	t.Run("stdout and stderr are separate", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer

		cmd := &provision.Command{
			Cmd:    "sh",
			Args:   []string{"-c", "echo out; echo err >&2"},
			Stdout: &stdout,
			Stderr: &stderr,
		}

		proc, err := sup.Start(context.Background(), cmd)
		require.NoError(t, err)

		defer func() { _ = proc.Close() }()

		require.NoError(t, proc.Wait())
		assert.Equal(t, "out\n", stdout.String())
		assert.Equal(t, "err\n", stderr.String())
	})

	t.Run("environment variables", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer

		cmd := &provision.Command{
			Cmd:    "sh",
			Args:   []string{"-c", "echo $TEST_VAR"},
			Env:    []string{"TEST_VAR=hello"},
			Stdout: &stdout,
		}

		proc, err := sup.Start(context.Background(), cmd)
		require.NoError(t, err)

		defer func() { _ = proc.Close() }()

		require.NoError(t, proc.Wait())
		assert.Equal(t, "hello\n", stdout.String())
	})
}

func TestResolve(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tool := filepath.Join(dir, "plink")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755))

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "empty", input: "  ", wantErr: true},
		{name: "missing file", input: filepath.Join(dir, "missing"), wantErr: true},
		{name: "directory", input: dir, wantErr: true},
		{name: "existing file", input: tool, want: tool},
		{name: "unknown bare name", input: "definitely-not-a-real-tool-5f3a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(tt.input)
			if tt.wantErr {
				var cfgErr *provision.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.Contains(t, err.Error(), "executable not configured")

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSupervisor_StartRejectsMissingExecutable(t *testing.T) {
	t.Parallel()

	sup := New()

	_, err := sup.Start(context.Background(), &provision.Command{Cmd: filepath.Join(t.TempDir(), "plink")})

	var cfgErr *provision.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 0, sup.Active())
}

func TestSafety(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	sup := New()

	t.Cleanup(func() { _ = sup.Close() })

	t.Run("wait on unstarted process", func(t *testing.T) {
		t.Parallel()

		process := &Process{sup: sup, cmd: &provision.Command{Cmd: "echo"}}
		err := process.Wait()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not started")
	})

	t.Run("terminate unstarted process", func(t *testing.T) {
		t.Parallel()

		process := &Process{sup: sup, cmd: &provision.Command{Cmd: "echo"}}
		require.Error(t, process.Terminate())
	})

	t.Run("wait on closed process", func(t *testing.T) {
		t.Parallel()

		process, err := sup.Start(context.Background(), &provision.Command{Cmd: "echo", Args: []string{"test"}})
		require.NoError(t, err)

		_ = process.Wait()
		_ = process.Close()

		err = process.Wait()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already closed")
	})

	t.Run("supervisor closed", func(t *testing.T) {
		t.Parallel()

		closed := New()
		require.NoError(t, closed.Close())

		_, err := closed.Start(context.Background(), &provision.Command{Cmd: "echo"})
		require.ErrorIs(t, err, provision.ErrClosed)
	})
}

func TestTerminate(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	sup := New(WithWaitDelay(time.Second))

	t.Cleanup(func() { _ = sup.Close() })

	t.Run("kills running process group", func(t *testing.T) {
		t.Parallel()

		cmd := &provision.Command{Cmd: "sh", Args: []string{"-c", "sleep 30 & sleep 30"}}
		proc, err := sup.Start(context.Background(), cmd)
		require.NoError(t, err)

		defer func() { _ = proc.Close() }()

		time.Sleep(100 * time.Millisecond)

		start := time.Now()

		require.NoError(t, proc.Terminate())
		require.Error(t, proc.Wait())
		assert.Less(t, time.Since(start), 5*time.Second)

		require.NoError(t, proc.Terminate(), "second terminate is a no-op")
	})

	t.Run("no-op after exit", func(t *testing.T) {
		t.Parallel()

		proc, err := sup.Start(context.Background(), &provision.Command{Cmd: "true"})
		require.NoError(t, err)

		defer func() { _ = proc.Close() }()

		require.NoError(t, proc.Wait())
		require.NoError(t, proc.Terminate())
	})

	t.Run("context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		proc, err := sup.Start(ctx, &provision.Command{Cmd: "sleep", Args: []string{"10"}})
		require.NoError(t, err)

		defer func() { _ = proc.Close() }()

		time.Sleep(100 * time.Millisecond)
		cancel()

		require.Error(t, proc.Wait())
	})
}

func TestActive(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	sup := New()

	proc, err := sup.Start(context.Background(), &provision.Command{Cmd: "sleep", Args: []string{"10"}})
	require.NoError(t, err)
	assert.Equal(t, 1, sup.Active())

	require.NoError(t, proc.Close())
	assert.Eventually(t, func() bool { return sup.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRunCommand(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := &provision.Command{
		Cmd:  "sh",
		Args: []string{"-c", "echo foo >&2; exit 1"},
	}

	res, err := RunCommand(ctx, cmd)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "foo\n", string(res.Stderr))

	var exitErr *provision.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode)
	assert.Equal(t, "foo\n", string(exitErr.Stderr))
}

func TestToolVersion(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	tool := filepath.Join(t.TempDir(), "plink")
	script := "#!/bin/sh\necho \"plink: Release 0.81\"\necho \"Build platform: 64-bit Unix\"\nexit 1\n"
	require.NoError(t, os.WriteFile(tool, []byte(script), 0o755))

	version, err := ToolVersion(context.Background(), tool)
	require.NoError(t, err)
	assert.Equal(t, "plink: Release 0.81", version)

	_, err = ToolVersion(context.Background(), "")
	require.Error(t, err)
}

func getExitCommand(code int) *provision.Command {
	return &provision.Command{Cmd: "sh", Args: []string{"-c", "exit " + strconv.Itoa(code)}}
}
