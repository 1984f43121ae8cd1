package provision

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/ruffel/provision/fileutil"
)

// TimestampLayout is the yyyyMMddHHmmss suffix appended to backup copies.
const TimestampLayout = "20060102150405"

// passwordFlag carries the password on the remote-shell command line.
const passwordFlag = "-pw"

// localePrefix forces a UTF-8 locale so the markers below survive the remote shell.
const localePrefix = "export LANG=en_US.UTF-8; export LC_ALL=en_US.UTF-8; "

// Markers printed by the remote scripts. Remote failures are reported through
// these lines rather than through the exit status.
const (
	MarkerDirMissing    = "错误: 无法进入目录 "
	MarkerScriptMissing = "错误: run.sh脚本不存在于当前目录"
	MarkerSourceMissing = "错误: 源文件不存在"
	MarkerBackupOK      = "备份成功: "
)

// Plan is the rendered form of one operation.
type Plan struct {
	Kind Kind

	// Script is the remote shell text (Build, Backup).
	Script string
	// Command is the remote-shell tool invocation (Build, Backup).
	Command *Command

	// LocalPath and RemotePath are the copy endpoints (Upload).
	LocalPath  string
	RemotePath string
}

// Template renders plans from a profile. It holds no per-run state.
type Template struct {
	Settings Settings
	Now      func() time.Time
}

// NewTemplate creates a Template that stamps backups with the local clock.
func NewTemplate(settings Settings) *Template {
	return &Template{
		Settings: settings,
		Now:      time.Now,
	}
}

// Render validates the tool settings and the profile for kind, then builds the plan.
// All validation failures are *ConfigError.
func (t *Template) Render(p Profile, kind Kind) (*Plan, error) {
	p = p.WithDefaults()

	if err := t.Settings.Validate(kind); err != nil {
		return nil, err
	}

	if err := p.Validate(kind); err != nil {
		return nil, err
	}

	var extra []string

	if kind.usesProcess() {
		args, err := t.Settings.ExtraArgs()
		if err != nil {
			return nil, err
		}

		extra = args
	}

	switch kind {
	case Upload:
		remote, err := RemoteTarget(p.RemoteSavePath, p.LocalPath)
		if err != nil {
			return nil, &ConfigError{Reason: "invalid remote target", Err: err}
		}

		return &Plan{Kind: kind, LocalPath: p.LocalPath, RemotePath: remote}, nil
	case Build:
		script := BuildScript(p.RemoteSavePath)

		return &Plan{Kind: kind, Script: script, Command: t.shellCommand(p, extra, script)}, nil
	case Backup:
		script := BackupScript(p.RemoteSavePath, p.RemoteBackupPath, BaseName(p.LocalPath), t.now())

		return &Plan{Kind: kind, Script: script, Command: t.shellCommand(p, extra, script)}, nil
	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown operation kind %d", int(kind))}
	}
}

func (t *Template) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}

	return t.Now()
}

// shellCommand renders the remote-shell tool invocation. Key auth feeds the
// script through standard input ("-m -"); password auth passes it as the
// single trailing argument.
func (t *Template) shellCommand(p Profile, extra []string, script string) *Command {
	b := Cmd(t.Settings.ShellPath).
		Args("-ssh", p.User+"@"+p.Host).
		Flag("-P", strconv.Itoa(p.Port)).
		Arg("-no-antispoof").
		Args(extra...).
		FlagIf("-hostkey", p.Fingerprint)

	switch p.AuthMode() {
	case AuthKey:
		b.Flag("-i", p.KeyPath).Args("-m", "-").Input(script + "\n")
	case AuthPassword:
		b.Flag(passwordFlag, p.Password).Arg(script)
	case AuthNone:
	}

	return b.Build()
}

// BuildScript changes into saveDir, then into its parent, and runs run.sh
// with "build" and "status".
func BuildScript(saveDir string) string {
	var b strings.Builder

	b.WriteString(localePrefix)
	b.WriteString(cdGuard(saveDir))
	b.WriteString("cd ..; ")
	b.WriteString(`if [ -f "run.sh" ]; then sh run.sh build; sh run.sh status; `)
	b.WriteString(`else echo "` + MarkerScriptMissing + `"; exit 1; fi`)

	return b.String()
}

// BackupScript copies saveDir/fileName to backupDir/fileName.<ts>. A missing
// source file, or a save directory that cannot be entered, is reported with
// MarkerSourceMissing and does not abort the shell.
func BackupScript(saveDir, backupDir, fileName string, ts time.Time) string {
	stamped := fileName + "." + ts.Format(TimestampLayout)
	target := path.Join(fileutil.CleanRemoteDir(backupDir), stamped)
	quotedName := QuoteDouble(fileName)

	var b strings.Builder

	b.WriteString(localePrefix)
	fmt.Fprintf(&b, "if cd %s && [ -f %s ]; then cp %s %s; ",
		quotePath(saveDir), quotedName, quotedName, quotePath(target))
	fmt.Fprintf(&b, `echo "%s%s"; `, MarkerBackupOK, EscapeDouble(stamped))
	fmt.Fprintf(&b, `else echo "%s"; fi`, MarkerSourceMissing)

	return b.String()
}

// RemoteTarget joins the normalized save directory with the local file's base name.
func RemoteTarget(saveDir, localPath string) (string, error) {
	dir := fileutil.CleanRemoteDir(saveDir)
	if dir == "" {
		return "", fmt.Errorf("remote save path cannot be empty")
	}

	name := BaseName(localPath)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("invalid local file name %q", localPath)
	}

	target := path.Join(dir, name)
	if err := fileutil.CheckRemotePathTraversal(dir, target); err != nil {
		return "", err
	}

	return target, nil
}

// BaseName returns the last element of a local path, accepting both slash styles.
func BaseName(localPath string) string {
	localPath = strings.TrimRight(strings.TrimSpace(localPath), `/\`)
	if i := strings.LastIndexAny(localPath, `/\`); i >= 0 {
		return localPath[i+1:]
	}

	return localPath
}

// cdGuard changes directory and stops the script with a marker if that fails.
func cdGuard(dir string) string {
	return fmt.Sprintf(`cd %s; if [ $? -ne 0 ]; then echo "%s%s"; exit 1; fi; `,
		quotePath(dir), MarkerDirMissing, EscapeDouble(dir))
}

// quotePath double-quotes a remote path, leaving a leading "~/" outside the
// quotes so the remote shell still expands it.
func quotePath(p string) string {
	switch {
	case p == "~":
		return "~"
	case strings.HasPrefix(p, "~/"):
		return "~/" + QuoteDouble(p[2:])
	default:
		return QuoteDouble(p)
	}
}
