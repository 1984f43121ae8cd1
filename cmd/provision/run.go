package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/ruffel/provision"
	"github.com/ruffel/provision/config"
	"github.com/ruffel/provision/providers/local"
	"github.com/ruffel/provision/providers/sftp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// targetFlags selects a saved target or describes one ad hoc. Explicit flags
// override the saved values.
type targetFlags struct {
	project   string
	target    string
	host      string
	user      string
	port      int
	password  string
	key       string
	hostKey   string
	sshAlias  string
	sshConfig string
	local     string
	save      string
	backup    string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.project, "project", "p", "", "project holding the saved target")
	flags.StringVarP(&f.target, "target", "t", "", "alias of the saved target")
	flags.StringVar(&f.host, "host", "", "remote host")
	flags.StringVar(&f.user, "user", "", "remote user")
	flags.IntVar(&f.port, "port", 0, "SSH port (default 22)")
	flags.StringVar(&f.password, "password", "", "SSH password")
	flags.StringVar(&f.key, "key", "", "private key file")
	flags.StringVar(&f.hostKey, "hostkey", "", "pinned host key fingerprint")
	flags.StringVar(&f.sshAlias, "ssh-alias", "", "read host, user, port and key from this ~/.ssh/config entry")
	flags.StringVar(&f.sshConfig, "ssh-config", "", "ssh config file (default ~/.ssh/config)")
	flags.StringVar(&f.local, "local", "", "local artifact path")
	flags.StringVar(&f.save, "save", "", "remote save directory")
	flags.StringVar(&f.backup, "backup", "", "remote backup directory")
}

// toTarget builds a new saved target from the ad-hoc flags.
func (f *targetFlags) toTarget() *config.Target {
	return &config.Target{
		Alias:            f.target,
		Provider:         "sftp",
		Host:             f.host,
		Port:             f.port,
		User:             f.user,
		Password:         f.password,
		KeyPath:          f.key,
		Fingerprint:      f.hostKey,
		LocalPath:        f.local,
		RemoteSavePath:   f.save,
		RemoteBackupPath: f.backup,
	}
}

// profile resolves the flags against the projects file.
func (f *targetFlags) profile(file *config.File) (provision.Profile, error) {
	var p provision.Profile

	if f.project != "" || f.target != "" {
		if f.project == "" || f.target == "" {
			return p, errors.New("--project and --target must be given together")
		}

		t, err := file.Find(f.project, f.target)
		if err != nil {
			return p, err
		}

		p = t.Profile()
	}

	override(&p.Host, f.host)
	override(&p.User, f.user)
	override(&p.Password, f.password)
	override(&p.KeyPath, f.key)
	override(&p.Fingerprint, f.hostKey)
	override(&p.LocalPath, f.local)
	override(&p.RemoteSavePath, f.save)
	override(&p.RemoteBackupPath, f.backup)

	if f.port != 0 {
		p.Port = f.port
	}

	if f.sshAlias != "" {
		c, err := sftp.NewFromSSHConfig(f.sshAlias, f.sshConfig)
		if err != nil {
			return p, err
		}

		if p.Alias == "" {
			p.Alias = f.sshAlias
		}

		p = c.ApplyTo(p)
	}

	for _, path := range []*string{&p.KeyPath, &p.LocalPath} {
		expanded, err := homedir.Expand(*path)
		if err != nil {
			return p, err
		}

		*path = expanded
	}

	return p, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (a *app) newOperationCmd(name, short string) *cobra.Command {
	var flags targetFlags

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := provision.ParseKind(name)
			if err != nil {
				return err
			}

			return a.runOperation(cmd, kind, &flags)
		},
	}

	flags.register(cmd)

	return cmd
}

func (a *app) loadProjects() (*config.File, error) {
	return config.Load(a.v.GetString(keyProjectsFile))
}

// settings prefers explicit tool paths from the config file or environment
// over the ones stored in the projects file.
func (a *app) settings(file *config.File) provision.Settings {
	s := file.Tools

	override(&s.ShellPath, a.v.GetString(keyShellPath))
	override(&s.KnownHostsPath, a.v.GetString(keyKnownHosts))
	override(&s.ShellArgs, a.v.GetString(keyShellArgs))

	return s
}

func (a *app) runOperation(cmd *cobra.Command, kind provision.Kind, flags *targetFlags) error {
	file, err := a.loadProjects()
	if err != nil {
		return err
	}

	p, err := flags.profile(file)
	if err != nil {
		return err
	}

	settings := a.settings(file)

	sup := local.New(local.WithLogger(a.logger))
	defer func() { _ = sup.Close() }()

	opener := sftp.NewOpener(
		sftp.WithKnownHosts(settings.KnownHostsPath),
		sftp.WithLogger(a.logger))

	ctrl := provision.NewController(settings, sup, opener,
		provision.WithLogger(a.logger),
		provision.WithCommandEcho(a.v.GetBool(keyEcho)))

	out := newSink(cmd.OutOrStdout(), time.Now)
	out.title(fmt.Sprintf("%s %s", kind.Description(), describe(p)))

	events, err := ctrl.Run(cmd.Context(), p, kind)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})

	defer func() {
		signal.Stop(sigCh)
		close(done)
	}()

	go func() {
		select {
		case <-sigCh:
			a.logger.Info("interrupt received, cancelling")
			ctrl.Cancel()
		case <-done:
		}
	}()

	last := provision.Drain(events, out.handle)

	a.logger.Debug("operation ended", zap.String("state", ctrl.State().String()))

	switch last.Kind {
	case provision.EventFailed:
		return fmt.Errorf("%s failed: %s", kind, last.Text)
	case provision.EventTerminated:
		return fmt.Errorf("%s cancelled", kind)
	default:
		return nil
	}
}

func describe(p provision.Profile) string {
	if p.Alias != "" {
		return p.Alias + " (" + p.Address() + ")"
	}

	return p.Address()
}
