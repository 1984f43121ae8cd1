// Package main is the entrypoint for the provision CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ruffel/provision/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version = "dev"
	commit  = "none"
)

// Configuration keys. Each can be set in the config file or through a
// PROVISION_ environment variable, e.g. PROVISION_TOOLS_SHELL_PATH.
const (
	keyShellPath    = "tools.shell_path"
	keyKnownHosts   = "tools.known_hosts"
	keyShellArgs    = "tools.shell_args"
	keyProjectsFile = "projects_file"
	keyLogLevel     = "log.level"
	keyEcho         = "echo"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI with args and returns the process exit code. Errors
// are printed to errOut since the root command silences cobra's own output.
func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	cmd := newRootCmd(out, errOut)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(errOut, errorStyle.Render(errorPrefix+err.Error()))

		return 1
	}

	return 0
}

// app is the state shared by all commands of one invocation.
type app struct {
	v       *viper.Viper
	out     io.Writer
	errOut  io.Writer
	logger  *zap.Logger
	cfgFile string
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, errOut: errOut, logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "provision",
		Short: "Upload, build and back up artifacts on remote Linux servers",
		Long: `provision copies a local artifact to a remote server over SFTP and runs
the remote build and backup scripts through a plink-compatible remote shell.

Targets are read from the projects file or given ad hoc with --host and friends.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd)
		},
	}

	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/provision/config.yaml)")
	flags.String("projects-file", "", "projects file holding saved targets")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.Bool("echo", true, "print the remote-shell command line before it runs")

	_ = a.v.BindPFlag(keyProjectsFile, flags.Lookup("projects-file"))
	_ = a.v.BindPFlag(keyLogLevel, flags.Lookup("log-level"))
	_ = a.v.BindPFlag(keyEcho, flags.Lookup("echo"))

	rootCmd.AddCommand(
		a.newOperationCmd("upload", "Upload the local artifact to the remote save directory"),
		a.newOperationCmd("build", "Run run.sh build and status on the remote server"),
		a.newOperationCmd("backup", "Copy the remote artifact into the backup directory"),
		a.newProjectsCmd(),
		a.newCheckCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// initConfig reads in the config file and environment variables, then builds
// the logger.
func (a *app) initConfig(cmd *cobra.Command) error {
	a.v.SetDefault(keyShellPath, "")
	a.v.SetDefault(keyKnownHosts, "")
	a.v.SetDefault(keyShellArgs, "")
	a.v.SetDefault(keyProjectsFile, defaultProjectsFile())

	a.v.SetEnvPrefix("PROVISION")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)

		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", a.cfgFile, err)
		}
	} else if dir, err := os.UserConfigDir(); err == nil {
		a.v.AddConfigPath(filepath.Join(dir, "provision"))
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")

		if err := a.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	logger, err := newLogger(cmd.ErrOrStderr(), a.v.GetString(keyLogLevel))
	if err != nil {
		return err
	}

	a.logger = logger

	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("using config file", zap.String("path", used))
	}

	return nil
}

func defaultProjectsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return config.DefaultFileName
	}

	return filepath.Join(dir, "provision", config.DefaultFileName)
}

// newLogger builds a console logger on w.
func newLogger(w io.Writer, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), lvl)

	return zap.New(core), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("provision %s (commit: %s)\n", version, commit)
		},
	}
}
