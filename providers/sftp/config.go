package sftp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/mitchellh/go-homedir"
	"github.com/ruffel/provision"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultTimeout bounds the TCP dial and the SSH handshake.
const DefaultTimeout = 10 * time.Second

// Config holds all parameters required to establish an SFTP session.
type Config struct {
	// Connection details
	Host string // Hostname or IP address
	Port int    // Port number (default 22)
	User string // Username to authenticate as

	// Authentication methods
	PrivateKey     string // PEM encoded private key content (string)
	PrivateKeyPath string // Path to private key file (e.g. "~/.ssh/id_rsa")
	Password       string // Password for authentication
	UseAgent       bool   // If true, attempt to connect to SSH_AUTH_SOCK

	// Host key verification, first match wins
	HostKeyCheck       ssh.HostKeyCallback // Explicit callback
	Fingerprint        string              // Pinned host key fingerprint
	KnownHostsPath     string              // OpenSSH known_hosts file
	InsecureSkipVerify bool                // Accept any host key

	// Connection settings
	Timeout time.Duration // Dial and handshake timeout (default 10s)
}

// NewConfig creates a Config with safe defaults.
// Note: It does NOT set a host key policy.
func NewConfig(host, username string) Config {
	return Config{
		Host:    host,
		User:    username,
		Port:    provision.DefaultPort,
		Timeout: DefaultTimeout,
	}
}

// FromProfile derives a Config from a connection profile. Exactly one of key
// or password authentication is configured, as selected by p.AuthMode.
func FromProfile(p provision.Profile) Config {
	p = p.WithDefaults()

	c := NewConfig(p.Host, p.User)
	c.Port = p.Port
	c.Fingerprint = p.Fingerprint

	switch p.AuthMode() {
	case provision.AuthKey:
		c.PrivateKeyPath = p.KeyPath
	case provision.AuthPassword:
		c.Password = p.Password
	case provision.AuthNone:
	}

	return c
}

// NewFromSSHConfig loads configuration from an SSH config file (e.g. ~/.ssh/config).
// logic mirrors OpenSSH: reads specific path or default ~/.ssh/config.
func NewFromSSHConfig(alias, path string) (Config, error) {
	if path == "" {
		home, err := homedir.Dir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to locate home directory: %w", err)
		}

		path = filepath.Join(home, ".ssh", "config")
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open ssh config: %w", err)
	}

	defer func() { _ = f.Close() }()

	return NewFromSSHConfigReader(alias, f)
}

// NewFromSSHConfigReader parses configuration config data.
// It resolves the alias to the actual HostName, User, Port, and IdentityFile.
func NewFromSSHConfigReader(alias string, r io.Reader) (Config, error) {
	cfg, err := ssh_config.Decode(r)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse ssh config: %w", err)
	}

	hostName, err := cfg.Get(alias, "HostName")
	if err != nil || hostName == "" {
		hostName = alias // Fallback if no HostName defined
	}

	username, _ := cfg.Get(alias, "User")
	if username == "" {
		// Use current system user if not specified in config
		if u, _ := user.Current(); u != nil {
			username = u.Username
		}
	}

	port := provision.DefaultPort
	if portStr, _ := cfg.Get(alias, "Port"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid port %q for host %q: %w", portStr, alias, err)
		}

		port = p
	}

	identityFile, _ := cfg.Get(alias, "IdentityFile")

	identityFile, err = homedir.Expand(identityFile)
	if err != nil {
		return Config{}, fmt.Errorf("invalid IdentityFile for host %q: %w", alias, err)
	}

	c := NewConfig(hostName, username)
	c.Port = port
	c.PrivateKeyPath = identityFile

	if knownHosts, _ := cfg.Get(alias, "UserKnownHostsFile"); knownHosts != "" {
		knownHosts, err = homedir.Expand(knownHosts)
		if err != nil {
			return Config{}, fmt.Errorf("invalid UserKnownHostsFile for host %q: %w", alias, err)
		}

		c.KnownHostsPath = knownHosts
	}

	// Map StrictHostKeyChecking
	if strict, _ := cfg.Get(alias, "StrictHostKeyChecking"); strict == "no" {
		c.InsecureSkipVerify = true
	}

	return c, nil
}

// ApplyTo fills the connection fields of p that are still empty.
func (c Config) ApplyTo(p provision.Profile) provision.Profile {
	if p.Host == "" {
		p.Host = c.Host
	}

	if p.User == "" {
		p.User = c.User
	}

	if p.Port == 0 {
		p.Port = c.Port
	}

	if p.KeyPath == "" {
		p.KeyPath = c.PrivateKeyPath
	}

	return p
}

// WithDefaults sets default values for zero-valued fields.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = provision.DefaultPort
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	return c
}

// Validate ensures all required fields are present.
func (c Config) Validate() error {
	if c.Host == "" {
		return &provision.ConfigError{Reason: "host address cannot be empty"}
	}

	if c.User == "" {
		return &provision.ConfigError{Reason: "user cannot be empty"}
	}

	if c.Port <= 0 || c.Port > 65535 {
		return &provision.ConfigError{Reason: fmt.Sprintf("invalid port %d", c.Port)}
	}

	if c.PrivateKey == "" && c.PrivateKeyPath == "" && c.Password == "" && !c.UseAgent {
		return &provision.ConfigError{Reason: "请配置SSH密钥或密码用于认证"}
	}

	if c.HostKeyCheck == nil && c.Fingerprint == "" && c.KnownHostsPath == "" && !c.InsecureSkipVerify {
		return &provision.ConfigError{
			Reason: "no host key policy; pin a fingerprint, set a known_hosts file or set InsecureSkipVerify",
		}
	}

	return nil
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HostKeyCallback returns the host key policy, in order of precedence: the
// explicit callback, the pinned fingerprint, the known_hosts file, then
// accept-any when InsecureSkipVerify is set.
func (c Config) HostKeyCallback() (ssh.HostKeyCallback, error) {
	switch {
	case c.HostKeyCheck != nil:
		return c.HostKeyCheck, nil
	case c.Fingerprint != "":
		return PinnedHostKey(c.Fingerprint), nil
	case c.KnownHostsPath != "":
		cb, err := knownhosts.New(c.KnownHostsPath)
		if err != nil {
			return nil, &provision.ConfigError{Reason: "failed to load known_hosts", Err: err}
		}

		return cb, nil
	case c.InsecureSkipVerify:
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicitly requested
	default:
		return nil, &provision.ConfigError{Reason: "no host key policy"}
	}
}

// ToClientConfig converts the local Config struct to the underlying ssh.ClientConfig.
func (c Config) ToClientConfig() (*ssh.ClientConfig, error) {
	hostKey, err := c.HostKeyCallback()
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{},
		HostKeyCallback: hostKey,
		Timeout:         c.Timeout,
	}

	if c.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(c.PrivateKey))
		if err != nil {
			return nil, &provision.ConfigError{Reason: "failed to parse private key", Err: err}
		}

		config.Auth = append(config.Auth, ssh.PublicKeys(signer))
	}

	keyAuth, err := loadPrivateKeyAuth(c.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	if keyAuth != nil {
		config.Auth = append(config.Auth, keyAuth)
	}

	if c.Password != "" {
		config.Auth = append(config.Auth, ssh.Password(c.Password))
	}

	if agentAuth := loadAgentAuth(c.UseAgent); agentAuth != nil {
		config.Auth = append(config.Auth, agentAuth)
	}

	if len(config.Auth) == 0 {
		return nil, &provision.ConfigError{Reason: "请配置SSH密钥或密码用于认证"}
	}

	return config, nil
}

// loadPrivateKeyAuth loads a private key from a file and returns an ssh.AuthMethod.
// Returns nil if the path is empty.
func loadPrivateKeyAuth(keyPath string) (ssh.AuthMethod, error) {
	if keyPath == "" {
		return nil, nil //nolint:nilnil // Valid state: no key path provided, so no auth method returned
	}

	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, &provision.ConfigError{Reason: "failed to read private key file", Err: err}
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, &provision.ConfigError{Reason: "private key is passphrase protected", Err: err}
		}

		return nil, &provision.ConfigError{Reason: "failed to parse private key file", Err: err}
	}

	return ssh.PublicKeys(signer), nil
}

// loadAgentAuth connects to the SSH agent and returns an ssh.AuthMethod.
// Returns nil if useAgent is false or the agent socket is unavailable.
func loadAgentAuth(useAgent bool) ssh.AuthMethod {
	if !useAgent {
		return nil
	}

	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	conn, err := net.DialTimeout("unix", socket, 500*time.Millisecond)
	if err != nil {
		return nil
	}

	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers)
}
