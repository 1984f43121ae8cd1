// Package fileutil provides shared file-transfer utilities for provision
// providers: progress reporting, context cancellation checks and remote path
// confinement.
package fileutil

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// ProgressReader wraps an io.Reader to report progress via Fn.
// Total should be set to the known total size for percentage-based progress reporting,
// or 0 if unknown.
type ProgressReader struct {
	io.Reader

	Total   int64
	Current int64
	Fn      func(current, total int64)
}

// Read reads from the underlying reader and reports progress.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.Current += int64(n)
		if pr.Fn != nil {
			pr.Fn(pr.Current, pr.Total)
		}
	}

	return n, err
}

// ContextReader wraps an io.Reader to check for context cancellation
// before each Read call. This allows long-running io.Copy operations
// to be interrupted by context cancellation.
type ContextReader struct {
	Ctx    context.Context //nolint:containedctx
	Reader io.Reader
}

// Read checks for context cancellation before delegating to the underlying reader.
func (cr *ContextReader) Read(p []byte) (int, error) {
	if cr.Ctx.Err() != nil {
		return 0, cr.Ctx.Err()
	}

	return cr.Reader.Read(p)
}

// CleanRemoteDir normalizes a remote directory: backslashes become forward
// slashes and the result is cleaned. Empty input stays empty.
func CleanRemoteDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return ""
	}

	return path.Clean(strings.ReplaceAll(dir, `\`, "/"))
}

// CheckRemotePathTraversal validates that target is a child of root using forward-slash
// path conventions (path.Clean, "/"). Use this for remote Unix-like paths where
// filepath operations would use the wrong separator on Windows hosts.
func CheckRemotePathTraversal(root, target string) error {
	cleanRoot := path.Clean(root)
	cleanTarget := path.Clean(target)

	if cleanRoot == cleanTarget {
		return nil
	}

	prefix := cleanRoot + "/"
	if cleanRoot == "/" {
		prefix = "/"
	}

	if !strings.HasPrefix(cleanTarget, prefix) {
		return fmt.Errorf("illegal remote file path: %s is not within %s", target, root)
	}

	return nil
}
