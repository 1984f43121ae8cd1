package sftp

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/crypto/ssh"
)

// FingerprintMismatchError is returned when the server's host key does not
// match the pinned fingerprint. This may indicate key tampering or a MITM attack.
type FingerprintMismatchError struct {
	Host     string
	Expected string
	Actual   string
}

func (e *FingerprintMismatchError) Error() string {
	return fmt.Sprintf("host key fingerprint mismatch for %s: expected %s, got %s", e.Host, e.Expected, e.Actual)
}

// NormalizeFingerprint reduces a pinned fingerprint to the form produced by
// ssh.FingerprintSHA256 or ssh.FingerprintLegacyMD5. It accepts the bare
// forms as well as the "ssh-ed25519 255 SHA256:..." lines shown by WinSCP
// and PuTTY, padded base64, and an "MD5:" prefix.
func NormalizeFingerprint(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}

	fp := fields[len(fields)-1]

	if len(fp) > len("SHA256:") && strings.EqualFold(fp[:len("SHA256:")], "SHA256:") {
		return "SHA256:" + strings.TrimRight(fp[len("SHA256:"):], "=")
	}

	return strings.TrimPrefix(strings.ToLower(fp), "md5:")
}

// MatchFingerprint reports whether key matches the pinned fingerprint.
func MatchFingerprint(key ssh.PublicKey, pin string) bool {
	want := NormalizeFingerprint(pin)
	if want == "" {
		return false
	}

	if strings.HasPrefix(want, "SHA256:") {
		return want == ssh.FingerprintSHA256(key)
	}

	return want == ssh.FingerprintLegacyMD5(key)
}

// PinnedHostKey returns an ssh.HostKeyCallback that only accepts a host key
// matching pin.
func PinnedHostKey(pin string) ssh.HostKeyCallback {
	return func(hostname string, _ net.Addr, key ssh.PublicKey) error {
		if MatchFingerprint(key, pin) {
			return nil
		}

		return &FingerprintMismatchError{
			Host:     hostname,
			Expected: pin,
			Actual:   ssh.FingerprintSHA256(key),
		}
	}
}
