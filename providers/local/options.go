package local

import (
	"time"

	"go.uber.org/zap"
)

// DefaultWaitDelay bounds how long Wait keeps reading output after the tool
// exits or is killed, when orphaned children still hold the pipes open.
const DefaultWaitDelay = 2 * time.Second

// Config holds configuration for the local supervisor.
type Config struct {
	waitDelay time.Duration
	logger    *zap.Logger
}

// Option defines a functional option for the local provider.
type Option func(*Config)

// WithWaitDelay overrides DefaultWaitDelay. Zero waits for the pipes indefinitely.
func WithWaitDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.waitDelay = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.logger = l
		}
	}
}
