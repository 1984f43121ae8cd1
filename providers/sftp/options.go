package sftp

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// openerConfig holds settings applied to every session an Opener opens.
type openerConfig struct {
	knownHosts string
	useAgent   bool
	timeout    time.Duration
	hostKey    ssh.HostKeyCallback
	logger     *zap.Logger
}

// Option defines a functional option for the SFTP provider.
type Option func(*openerConfig)

// WithKnownHosts sets the known_hosts file used when a profile pins no fingerprint.
func WithKnownHosts(path string) Option {
	return func(c *openerConfig) {
		c.knownHosts = path
	}
}

// WithAgent enables ssh-agent authentication in addition to the profile's credentials.
func WithAgent(enabled bool) Option {
	return func(c *openerConfig) {
		c.useAgent = enabled
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *openerConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHostKeyCallback sets an explicit host key policy, overriding pins and known_hosts.
func WithHostKeyCallback(cb ssh.HostKeyCallback) Option {
	return func(c *openerConfig) {
		c.hostKey = cb
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *openerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
