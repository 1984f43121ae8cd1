package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ruffel/provision"
	"github.com/ruffel/provision/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakePlink = `#!/bin/sh
if [ "$1" = "-V" ]; then echo "plink: Release 0.81"; exit 0; fi
script=""
stdin=0
while [ $# -gt 0 ]; do
  case "$1" in
    -ssh|-P|-i|-pw|-hostkey) shift 2 ;;
    -no-antispoof|-batch) shift ;;
    -proxycmd) shift 2 ;;
    -m) [ "$2" = "-" ] && stdin=1; shift 2 ;;
    *) script="$1"; shift ;;
  esac
done
if [ $stdin -eq 1 ]; then script=$(cat); fi
exec sh -c "$script"
`

// workspace is a temp directory with a config file, a projects file and a
// fake remote shell.
type workspace struct {
	dir      string
	cfgFile  string
	projects string
	tool     string
}

func newWorkspace(t *testing.T, withTool bool) workspace {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	dir := t.TempDir()
	w := workspace{
		dir:      dir,
		cfgFile:  filepath.Join(dir, "config.yaml"),
		projects: filepath.Join(dir, "projects.yaml"),
		tool:     filepath.Join(dir, "plink"),
	}

	require.NoError(t, os.WriteFile(w.tool, []byte(fakePlink), 0o755))

	cfg := "projects_file: " + w.projects + "\nlog:\n  level: error\n"
	if withTool {
		cfg += "tools:\n  shell_path: " + w.tool + "\n"
	}

	require.NoError(t, os.WriteFile(w.cfgFile, []byte(cfg), 0o600))

	return w
}

func (w workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer

	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{"--config", w.cfgFile}, args...))

	err := cmd.Execute()

	return out.String(), err
}

// setShellArgs adds tools.shell_args to the config file. The workspace must
// have been created with a tool.
func (w workspace) setShellArgs(t *testing.T, args string) {
	t.Helper()

	f, err := os.OpenFile(w.cfgFile, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)

	_, err = f.WriteString("  shell_args: '" + args + "'\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

// remoteDirs creates a save directory whose parent holds run.sh.
func (w workspace) remoteDirs(t *testing.T) (string, string) {
	t.Helper()

	save := filepath.Join(w.dir, "remote", "app", "bin")
	backup := filepath.Join(w.dir, "remote", "backup")

	require.NoError(t, os.MkdirAll(save, 0o755))
	require.NoError(t, os.MkdirAll(backup, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(w.dir, "remote", "app", "run.sh"), []byte("echo \"run $1\"\n"), 0o644))

	return save, backup
}

func TestVersion(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, false)

	out, err := w.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "provision dev")
}

func TestInvalidLogLevel(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, false)

	_, err := w.run(t, "--log-level", "loud", "version")
	require.ErrorContains(t, err, "invalid log level")
}

func TestMissingConfigFile(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	cmd := newRootCmd(&out, &out)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "version"})

	require.ErrorContains(t, cmd.Execute(), "failed to read config")
}

func TestRun_PrintsErrors(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, true)

	var out, errOut bytes.Buffer

	code := run(context.Background(), []string{"--config", w.cfgFile, "build", "--project", "x"}, &out, &errOut)

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), errorPrefix)
	assert.Contains(t, errOut.String(), "--project and --target must be given together")
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, false)

	var out, errOut bytes.Buffer

	code := run(context.Background(), []string{"--config", w.cfgFile, "version"}, &out, &errOut)

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "provision dev")
	assert.Empty(t, errOut.String())
}

func TestProjects_Lifecycle(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, true)

	out, err := w.run(t, "projects")
	require.NoError(t, err)
	assert.Contains(t, out, "no projects configured")

	_, err = w.run(t, "projects", "add", "shop")
	require.NoError(t, err)

	_, err = w.run(t, "projects", "add", "shop")
	require.ErrorIs(t, err, config.ErrDuplicate)

	out, err = w.run(t, "projects", "add-target", "-p", "shop", "-t", "prod",
		"--host", "10.0.0.5", "--user", "deploy", "--password", "pw", "--save", "/srv/app")
	require.NoError(t, err)
	assert.Contains(t, out, "saved target prod")

	out, err = w.run(t, "projects")
	require.NoError(t, err)
	assert.Contains(t, out, "shop")
	assert.Contains(t, out, "deploy@10.0.0.5:22")
	assert.Contains(t, out, "save=/srv/app")

	info, err := os.Stat(w.projects)
	require.NoError(t, err)

	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	_, err = w.run(t, "projects", "remove-target", "-p", "shop", "-t", "prod")
	require.NoError(t, err)

	_, err = w.run(t, "projects", "remove-target", "-p", "shop", "-t", "prod")
	require.ErrorIs(t, err, config.ErrNotFound)

	_, err = w.run(t, "projects", "remove", "shop")
	require.NoError(t, err)

	file, err := config.Load(w.projects)
	require.NoError(t, err)
	assert.Empty(t, file.Projects)
}

func TestBuild_AdHoc(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, true)
	save, _ := w.remoteDirs(t)

	out, err := w.run(t, "build", "--host", "127.0.0.1", "--user", "deploy", "--password", "pw", "--save", save)
	require.NoError(t, err)

	assert.Regexp(t, `\[\d{2}:\d{2}:\d{2}\]`, out)
	assert.Contains(t, out, "run build")
	assert.Contains(t, out, "run status")
	assert.Contains(t, out, "操作完成")
	assert.Contains(t, out, "[调试] 执行命令: ")
	assert.NotContains(t, out, "-pw pw")
}

func TestBuild_ShellArgs(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, true)
	w.setShellArgs(t, `-batch -proxycmd "nc jump 22"`)
	save, _ := w.remoteDirs(t)

	out, err := w.run(t, "build", "--host", "127.0.0.1", "--user", "deploy", "--password", "pw", "--save", save)
	require.NoError(t, err)

	assert.Contains(t, out, `-no-antispoof -batch -proxycmd "nc jump 22"`)
	assert.Contains(t, out, "run build")
}

func TestBackup_SavedTarget(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, true)
	save, backup := w.remoteDirs(t)
	require.NoError(t, os.WriteFile(filepath.Join(save, "app.bin"), []byte("v1"), 0o644))

	_, err := w.run(t, "projects", "add", "shop")
	require.NoError(t, err)

	_, err = w.run(t, "projects", "add-target", "-p", "shop", "-t", "local",
		"--host", "127.0.0.1", "--user", "deploy", "--password", "pw",
		"--local", filepath.Join(w.dir, "dist", "app.bin"), "--save", save, "--backup", backup)
	require.NoError(t, err)

	out, err := w.run(t, "--echo=false", "backup", "-p", "shop", "-t", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "备份成功: app.bin.")
	assert.NotContains(t, out, "[调试]")

	entries, err := os.ReadDir(backup)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^app\.bin\.\d{14}$`, entries[0].Name())
}

func TestUpload_MissingLocalFile(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, true)

	out, err := w.run(t, "upload", "--host", "127.0.0.1", "--user", "deploy", "--password", "pw",
		"--save", "/srv/app", "--local", filepath.Join(w.dir, "missing.bin"))
	require.Error(t, err)
	assert.Contains(t, out, "错误: ")
	assert.Contains(t, out, "本地文件不存在")
	assert.Contains(t, out, "操作失败")
}

func TestBuild_ToolUnset(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, false)

	out, err := w.run(t, "build", "--host", "127.0.0.1", "--user", "deploy", "--password", "pw", "--save", "/srv/app")
	require.NoError(t, err, "process path configuration errors still complete")
	assert.Contains(t, out, "路径无效或未配置")
}

func TestCheck(t *testing.T) {
	t.Parallel()

	t.Run("configured", func(t *testing.T) {
		t.Parallel()

		w := newWorkspace(t, true)

		out, err := w.run(t, "check")
		require.NoError(t, err)
		assert.Contains(t, out, "plink: Release 0.81")
	})

	t.Run("unconfigured", func(t *testing.T) {
		t.Parallel()

		w := newWorkspace(t, false)

		out, err := w.run(t, "check")
		require.Error(t, err)
		assert.Contains(t, out, "路径无效或未配置")
	})

	t.Run("unterminated shell args", func(t *testing.T) {
		t.Parallel()

		w := newWorkspace(t, true)
		w.setShellArgs(t, `-proxycmd "nc jump`)

		out, err := w.run(t, "check")
		require.ErrorContains(t, err, "invalid shell args")
		assert.Contains(t, out, "invalid shell args")
	})
}

func TestTargetFlags_Profile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sshConfig := filepath.Join(dir, "ssh_config")
	require.NoError(t, os.WriteFile(sshConfig, []byte("Host prod\n  HostName 10.0.0.5\n  User admin\n  Port 2222\n"), 0o600))

	file := &config.File{}
	p, err := file.AddProject("shop")
	require.NoError(t, err)
	require.NoError(t, p.Add(&config.Target{Alias: "stage", Host: "10.0.0.9", User: "deploy", RemoteSavePath: "/srv/app"}))

	tests := []struct {
		name    string
		flags   targetFlags
		want    provision.Profile
		wantErr string
	}{
		{
			name:  "ssh alias fills empty fields",
			flags: targetFlags{sshAlias: "prod", sshConfig: sshConfig, save: "/srv/app"},
			want:  provision.Profile{Alias: "prod", Host: "10.0.0.5", User: "admin", Port: 2222, RemoteSavePath: "/srv/app"},
		},
		{
			name:  "explicit flags win over ssh alias",
			flags: targetFlags{sshAlias: "prod", sshConfig: sshConfig, host: "10.0.0.6", port: 22},
			want:  provision.Profile{Alias: "prod", Host: "10.0.0.6", User: "admin", Port: 22},
		},
		{
			name:  "saved target with override",
			flags: targetFlags{project: "shop", target: "stage", save: "/opt/app"},
			want:  provision.Profile{Alias: "stage", Host: "10.0.0.9", User: "deploy", Port: 22, RemoteSavePath: "/opt/app"},
		},
		{
			name:    "project without target",
			flags:   targetFlags{project: "shop"},
			wantErr: "must be given together",
		},
		{
			name:    "unknown target",
			flags:   targetFlags{project: "shop", target: "prod"},
			wantErr: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.flags.profile(file)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSink(t *testing.T) {
	t.Parallel()

	now := func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local) }

	tests := []struct {
		name string
		ev   provision.Event
		want string
	}{
		{name: "output", ev: provision.OutputLine("hello"), want: "hello"},
		{name: "error gets prefix", ev: provision.ErrorLine("boom"), want: "错误: boom"},
		{name: "error keeps prefix", ev: provision.ErrorLine("错误: 源文件不存在"), want: "错误: 源文件不存在"},
		{name: "progress", ev: provision.Progress(0.5), want: "上传进度:  50%"},
		{name: "completed", ev: provision.Event{Kind: provision.EventCompleted}, want: "操作完成"},
		{name: "completed with exit code", ev: provision.Event{Kind: provision.EventCompleted, ExitCode: 1}, want: "(退出码 1)"},
		{name: "terminated", ev: provision.Event{Kind: provision.EventTerminated}, want: "操作已终止"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			newSink(&buf, now).handle(tt.ev)

			assert.Contains(t, buf.String(), "[14:07:09]")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
