package provision

import (
	"time"

	"go.uber.org/zap"
)

// defaultBuffer is the event channel capacity used when WithBuffer is not given.
const defaultBuffer = 64

// ControllerConfig holds configuration derived from options.
type ControllerConfig struct {
	Logger      *zap.Logger
	Now         func() time.Time
	Buffer      int
	CommandEcho bool
}

// Option defines a functional option for a Controller.
type Option func(*ControllerConfig)

// DefaultControllerConfig returns defaults: no logging, the local clock, and
// the command line echoed as the first output line.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Logger:      zap.NewNop(),
		Now:         time.Now,
		Buffer:      defaultBuffer,
		CommandEcho: true,
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *ControllerConfig) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithClock overrides the clock used for backup timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *ControllerConfig) {
		if now != nil {
			c.Now = now
		}
	}
}

// WithBuffer sets the capacity of the event channel. Values below 1 are raised to 1.
func WithBuffer(n int) Option {
	return func(c *ControllerConfig) {
		if n < 1 {
			n = 1
		}

		c.Buffer = n
	}
}

// WithCommandEcho toggles the "[调试] 执行命令" line emitted before a process
// starts. Passwords are always masked.
func WithCommandEcho(enabled bool) Option {
	return func(c *ControllerConfig) {
		c.CommandEcho = enabled
	}
}
