package provision

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// DefaultPort is the SSH port used when a profile leaves Port unset.
const DefaultPort = 22

// Profile holds the connection and path parameters of one deployment target.
// It is read-only to the core; every run works on its own copy.
type Profile struct {
	Alias string // Display name of the target

	Host        string // Hostname or IP address
	Port        int    // Port number (default 22)
	User        string // Username to authenticate as
	Password    string // Password, used only when no key file resolves
	KeyPath     string // Path to a private key file; takes precedence over Password
	Fingerprint string // Pinned host key fingerprint (optional)

	LocalPath        string // Local artifact to upload; its base name names the remote file
	RemoteSavePath   string // Remote directory the artifact lives in
	RemoteBackupPath string // Remote directory backups are copied to
}

// AuthMode identifies which credential a run authenticates with.
type AuthMode int

const (
	// AuthNone means neither a usable key file nor a password is configured.
	AuthNone AuthMode = iota
	// AuthKey authenticates with the private key at Profile.KeyPath.
	AuthKey
	// AuthPassword authenticates with Profile.Password.
	AuthPassword
)

func (m AuthMode) String() string {
	switch m {
	case AuthKey:
		return "key"
	case AuthPassword:
		return "password"
	case AuthNone:
		return "none"
	default:
		return "none"
	}
}

// WithDefaults sets default values for zero-valued fields.
func (p Profile) WithDefaults() Profile {
	if p.Port == 0 {
		p.Port = DefaultPort
	}

	p.Host = strings.TrimSpace(p.Host)
	p.User = strings.TrimSpace(p.User)

	return p
}

// AuthMode selects exactly one credential. A key path wins over a password as
// long as the key file exists.
func (p Profile) AuthMode() AuthMode {
	if p.KeyPath != "" && fileExists(p.KeyPath) {
		return AuthKey
	}

	if p.Password != "" {
		return AuthPassword
	}

	return AuthNone
}

// Address returns the dialable host:port pair.
func (p Profile) Address() string {
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}

	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

// Validate checks that every field the operation kind depends on is present.
func (p Profile) Validate(kind Kind) error {
	if p.Host == "" {
		return &ConfigError{Reason: "host address cannot be empty"}
	}

	if p.User == "" {
		return &ConfigError{Reason: "user cannot be empty"}
	}

	if p.Port < 1 || p.Port > 65535 {
		return &ConfigError{Reason: fmt.Sprintf("invalid port number: %d", p.Port)}
	}

	if p.AuthMode() == AuthNone {
		return &ConfigError{Reason: "请配置SSH密钥或密码用于认证"}
	}

	if strings.TrimSpace(p.RemoteSavePath) == "" {
		return &ConfigError{Reason: "remote save path cannot be empty"}
	}

	switch kind {
	case Upload:
		if strings.TrimSpace(p.LocalPath) == "" {
			return &ConfigError{Reason: "local file path cannot be empty"}
		}

		info, err := os.Stat(p.LocalPath)
		if err != nil {
			return &ConfigError{Reason: "本地文件不存在: " + p.LocalPath, Err: err}
		}

		if !info.Mode().IsRegular() {
			return &ConfigError{Reason: "local path is not a regular file: " + p.LocalPath}
		}
	case Backup:
		if strings.TrimSpace(p.LocalPath) == "" {
			return &ConfigError{Reason: "local file path cannot be empty"}
		}

		if strings.TrimSpace(p.RemoteBackupPath) == "" {
			return &ConfigError{Reason: "remote backup path cannot be empty"}
		}
	case Build:
	default:
		return &ConfigError{Reason: fmt.Sprintf("unknown operation kind %d", int(kind))}
	}

	return nil
}

// Settings carries the locations of the external tools the core depends on.
// It is passed explicitly to NewController.
type Settings struct {
	// ShellPath is the remote-shell executable (a plink-compatible client).
	// Required for Build and Backup.
	ShellPath string `yaml:"shell_path" mapstructure:"shell_path"`

	// KnownHostsPath is an OpenSSH known_hosts file consulted by the transfer
	// session when a profile pins no fingerprint. Optional.
	KnownHostsPath string `yaml:"known_hosts" mapstructure:"known_hosts"`

	// ShellArgs holds extra remote-shell options written as a shell-style
	// string, e.g. `-batch -proxycmd "nc proxy 22"`. They are inserted after
	// the fixed connection options.
	ShellArgs string `yaml:"shell_args,omitempty" mapstructure:"shell_args"`
}

// ExtraArgs splits ShellArgs into separate arguments.
func (s Settings) ExtraArgs() ([]string, error) {
	args, err := shlex.Split(s.ShellArgs)
	if err != nil {
		return nil, &ConfigError{Reason: "invalid shell args", Err: err}
	}

	return args, nil
}

// Validate checks the tool paths the operation kind needs.
func (s Settings) Validate(kind Kind) error {
	if kind.usesProcess() && !fileExists(s.ShellPath) {
		return &ConfigError{Reason: "Plink路径无效或未配置"}
	}

	if s.KnownHostsPath != "" && !fileExists(s.KnownHostsPath) {
		return &ConfigError{Reason: "known_hosts file not found: " + s.KnownHostsPath}
	}

	if kind.usesProcess() {
		if _, err := s.ExtraArgs(); err != nil {
			return err
		}
	}

	return nil
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}
