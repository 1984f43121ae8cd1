// Package sftp provides an implementation of the provision.Transferer
// interface that copies files to remote servers over SFTP.
//
// It utilizes "golang.org/x/crypto/ssh" for the connection and
// "github.com/pkg/sftp" for the file protocol, providing:
//   - Key or password authentication following provision.Profile.AuthMode
//   - Host key pinning by SHA256 or legacy MD5 fingerprint, or known_hosts
//   - Byte-level progress reporting and context cancellation
//   - Abort of a copy in flight by tearing down the connection
//
// Usage:
//
//	opener := sftp.NewOpener(sftp.WithKnownHosts("/home/me/.ssh/known_hosts"))
//	sess, err := opener.Open(ctx, profile)
//	err = sess.PutFile(ctx, "build/app.bin", "/srv/app/app.bin", nil)
package sftp
