package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/ruffel/provision"
	"github.com/ruffel/provision/fileutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

var (
	_ provision.Transferer = (*Opener)(nil)
	_ provision.Session    = (*Session)(nil)
)

// Opener implements provision.Transferer over SFTP.
type Opener struct {
	cfg openerConfig
}

// NewOpener creates an Opener.
func NewOpener(opts ...Option) *Opener {
	cfg := openerConfig{
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Opener{cfg: cfg}
}

// Config returns the session configuration Open would use for p.
func (o *Opener) Config(p provision.Profile) Config {
	c := FromProfile(p)
	c.UseAgent = o.cfg.useAgent
	c.Timeout = o.cfg.timeout
	c.HostKeyCheck = o.cfg.hostKey

	if c.Fingerprint == "" && c.HostKeyCheck == nil {
		if o.cfg.knownHosts != "" {
			c.KnownHostsPath = o.cfg.knownHosts
		} else {
			c.InsecureSkipVerify = true
		}
	}

	return c.WithDefaults()
}

// Open connects to the profile's host and starts an SFTP client.
// Connection failures are returned as *provision.ConnectionError.
func (o *Opener) Open(ctx context.Context, p provision.Profile) (provision.Session, error) {
	c := o.Config(p)

	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.InsecureSkipVerify && c.HostKeyCheck == nil {
		o.cfg.logger.Warn("host key not verified; pin a fingerprint or configure known_hosts",
			zap.String("host", c.Host))
	}

	return Dial(ctx, c, o.cfg.logger)
}

// Dial establishes the SSH connection described by c and starts an SFTP
// client on it. The handshake is bounded by c.Timeout and by ctx.
func Dial(ctx context.Context, c Config, logger *zap.Logger) (*Session, error) {
	c = c.WithDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig, err := c.ToClientConfig()
	if err != nil {
		return nil, err
	}

	addr := c.Address()

	dialer := net.Dialer{Timeout: c.Timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &provision.ConnectionError{Addr: addr, Err: err}
	}

	_ = conn.SetDeadline(time.Now().Add(c.Timeout))
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if !stop() && err == nil {
		err = ctx.Err()
	}

	if err != nil {
		_ = conn.Close()

		return nil, &provision.ConnectionError{Addr: addr, Err: err}
	}

	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()

		return nil, &provision.ConnectionError{Addr: addr, Err: fmt.Errorf("failed to start sftp: %w", err)}
	}

	logger.Debug("sftp session opened", zap.String("addr", addr), zap.String("user", c.User))

	return &Session{
		addr:   addr,
		client: client,
		sftp:   sftpClient,
		logger: logger,
	}, nil
}

// Session implements provision.Session over one SSH connection.
type Session struct {
	addr   string
	client *ssh.Client
	sftp   *sftp.Client
	logger *zap.Logger

	mu      sync.Mutex
	closed  bool
	aborted bool
}

// PutFile copies localPath to remotePath, reporting bytes copied through
// progress. Failures are returned as *provision.TransferError.
func (s *Session) PutFile(ctx context.Context, localPath, remotePath string, progress provision.ProgressFunc) error {
	wrap := func(err error) error {
		return &provision.TransferError{LocalPath: localPath, RemotePath: remotePath, Err: err}
	}

	client, err := s.sftpClient()
	if err != nil {
		return wrap(err)
	}

	if ctx.Err() != nil {
		return wrap(ctx.Err())
	}

	src, err := os.Open(localPath)
	if err != nil {
		return wrap(err)
	}

	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return wrap(err)
	}

	if !info.Mode().IsRegular() {
		return wrap(fmt.Errorf("%s is not a regular file", localPath))
	}

	dst, err := client.Create(remotePath)
	if err != nil {
		return wrap(fmt.Errorf("failed to create remote file: %w", err))
	}

	var reader io.Reader = &fileutil.ContextReader{Ctx: ctx, Reader: src}
	if progress != nil {
		reader = &fileutil.ProgressReader{Reader: reader, Total: info.Size(), Fn: progress}
	}

	_, err = io.Copy(dst, reader)
	if err != nil {
		_ = dst.Close()

		return wrap(s.abortCause(err))
	}

	if err := dst.Close(); err != nil {
		return wrap(s.abortCause(err))
	}

	if err := client.Chmod(remotePath, info.Mode().Perm()); err != nil {
		s.logger.Debug("failed to preserve file mode", zap.String("remote", remotePath), zap.Error(err))
	}

	return nil
}

// Abort tears down the connection, making a PutFile in flight fail promptly.
func (s *Session) Abort() error {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()

	return s.Close()
}

// Close closes the SFTP client and the SSH connection. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	sftpErr := s.sftp.Close()
	sshErr := s.client.Close()

	if sshErr != nil && !errors.Is(sshErr, net.ErrClosed) {
		return fmt.Errorf("failed to close ssh connection to %s: %w", s.addr, sshErr)
	}

	if sftpErr != nil && !errors.Is(sftpErr, net.ErrClosed) && !errors.Is(sftpErr, io.EOF) {
		return fmt.Errorf("failed to close sftp client: %w", sftpErr)
	}

	return nil
}

func (s *Session) sftpClient() (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, provision.ErrClosed
	}

	return s.sftp, nil
}

// abortCause reports an aborted session as ErrClosed rather than whatever the
// torn-down connection returned.
func (s *Session) abortCause(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		return fmt.Errorf("transfer aborted: %w", provision.ErrClosed)
	}

	return err
}
