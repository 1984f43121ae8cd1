package sftp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ruffel/provision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromProfile(t *testing.T) {
	t.Parallel()

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, []byte("key"), 0o600))

	tests := []struct {
		name         string
		profile      provision.Profile
		wantKey      string
		wantPassword string
	}{
		{
			name:         "password only",
			profile:      provision.Profile{Host: "10.0.0.5", User: "deploy", Password: "pw"},
			wantPassword: "pw",
		},
		{
			name:    "key wins over password",
			profile: provision.Profile{Host: "10.0.0.5", User: "deploy", Password: "pw", KeyPath: keyPath},
			wantKey: keyPath,
		},
		{
			name:         "missing key falls back to password",
			profile:      provision.Profile{Host: "10.0.0.5", User: "deploy", Password: "pw", KeyPath: keyPath + ".missing"},
			wantPassword: "pw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := FromProfile(tt.profile)
			assert.Equal(t, 22, c.Port)
			assert.Equal(t, DefaultTimeout, c.Timeout)
			assert.Equal(t, tt.wantKey, c.PrivateKeyPath)
			assert.Equal(t, tt.wantPassword, c.Password)
		})
	}
}

func TestNewFromSSHConfig(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ssh_config")

	configContent := `
Host myalias
    HostName 1.2.3.4
    User testuser
    Port 2222
    IdentityFile ~/.ssh/id_ed25519
    StrictHostKeyChecking no

Host badport
    Port twenty-two
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

	t.Run("custom path", func(t *testing.T) {
		t.Parallel()

		cfg, err := NewFromSSHConfig("myalias", configPath)
		require.NoError(t, err)

		assert.Equal(t, "1.2.3.4", cfg.Host)
		assert.Equal(t, "testuser", cfg.User)
		assert.Equal(t, 2222, cfg.Port)
		assert.True(t, cfg.InsecureSkipVerify)
		assert.True(t, filepath.IsAbs(cfg.PrivateKeyPath))
		assert.Contains(t, cfg.PrivateKeyPath, "id_ed25519")
	})

	t.Run("unknown alias falls back to name", func(t *testing.T) {
		t.Parallel()

		cfg, err := NewFromSSHConfigReader("build-box", strings.NewReader(configContent))
		require.NoError(t, err)

		assert.Equal(t, "build-box", cfg.Host)
		assert.Equal(t, 22, cfg.Port)
		assert.False(t, cfg.InsecureSkipVerify)
	})

	t.Run("invalid port", func(t *testing.T) {
		t.Parallel()

		_, err := NewFromSSHConfigReader("badport", strings.NewReader(configContent))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid port")
	})

	t.Run("non-existent path", func(t *testing.T) {
		t.Parallel()

		_, err := NewFromSSHConfig("myalias", filepath.Join(tmpDir, "non_existent"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open ssh config")
	})
}

func TestConfig_ApplyTo(t *testing.T) {
	t.Parallel()

	c := Config{Host: "1.2.3.4", User: "testuser", Port: 2222, PrivateKeyPath: "/keys/id"}

	got := c.ApplyTo(provision.Profile{User: "deploy", RemoteSavePath: "/srv/app"})

	assert.Equal(t, "1.2.3.4", got.Host)
	assert.Equal(t, "deploy", got.User)
	assert.Equal(t, 2222, got.Port)
	assert.Equal(t, "/keys/id", got.KeyPath)
	assert.Equal(t, "/srv/app", got.RemoteSavePath)
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	c := Config{Host: "example.com", User: "root"}.WithDefaults()

	assert.Equal(t, 22, c.Port)
	assert.Equal(t, 10*time.Second, c.Timeout)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "valid",
			config: Config{Host: "example.com", User: "root", Password: "pw", InsecureSkipVerify: true}.WithDefaults(),
		},
		{
			name:    "missing host",
			config:  Config{User: "root", Password: "pw", InsecureSkipVerify: true}.WithDefaults(),
			wantErr: "host address",
		},
		{
			name:    "missing user",
			config:  Config{Host: "example.com", Password: "pw", InsecureSkipVerify: true}.WithDefaults(),
			wantErr: "user",
		},
		{
			name:    "missing auth",
			config:  Config{Host: "example.com", User: "root", InsecureSkipVerify: true}.WithDefaults(),
			wantErr: "请配置SSH密钥或密码用于认证",
		},
		{
			name:    "missing host key policy",
			config:  Config{Host: "example.com", User: "root", Password: "pw"}.WithDefaults(),
			wantErr: "host key policy",
		},
		{
			name:    "port out of range",
			config:  Config{Host: "example.com", User: "root", Password: "pw", Port: 70000, InsecureSkipVerify: true},
			wantErr: "invalid port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			var cfgErr *provision.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ToClientConfig(t *testing.T) {
	t.Parallel()

	t.Run("unreadable key file", func(t *testing.T) {
		t.Parallel()

		c := Config{
			Host:               "example.com",
			User:               "root",
			PrivateKeyPath:     filepath.Join(t.TempDir(), "missing"),
			InsecureSkipVerify: true,
		}

		_, err := c.ToClientConfig()

		var cfgErr *provision.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, err.Error(), "failed to read private key file")
	})

	t.Run("garbage key file", func(t *testing.T) {
		t.Parallel()

		keyPath := filepath.Join(t.TempDir(), "id")
		require.NoError(t, os.WriteFile(keyPath, []byte("not a key"), 0o600))

		c := Config{Host: "example.com", User: "root", PrivateKeyPath: keyPath, InsecureSkipVerify: true}

		_, err := c.ToClientConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse private key file")
	})

	t.Run("password", func(t *testing.T) {
		t.Parallel()

		c := Config{Host: "example.com", User: "root", Password: "pw", InsecureSkipVerify: true}

		cc, err := c.ToClientConfig()
		require.NoError(t, err)
		assert.Equal(t, "root", cc.User)
		assert.Len(t, cc.Auth, 1)
		assert.NotNil(t, cc.HostKeyCallback)
	})

	t.Run("missing known_hosts", func(t *testing.T) {
		t.Parallel()

		c := Config{
			Host:           "example.com",
			User:           "root",
			Password:       "pw",
			KnownHostsPath: filepath.Join(t.TempDir(), "known_hosts"),
		}

		_, err := c.ToClientConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "known_hosts")
	})
}

func TestOpener_Config(t *testing.T) {
	t.Parallel()

	profile := provision.Profile{Host: "10.0.0.5", User: "deploy", Password: "pw"}

	t.Run("known hosts when nothing pinned", func(t *testing.T) {
		t.Parallel()

		c := NewOpener(WithKnownHosts("/etc/ssh/known_hosts")).Config(profile)
		assert.Equal(t, "/etc/ssh/known_hosts", c.KnownHostsPath)
		assert.False(t, c.InsecureSkipVerify)
	})

	t.Run("pinned fingerprint wins", func(t *testing.T) {
		t.Parallel()

		pinned := profile
		pinned.Fingerprint = "SHA256:abc"

		c := NewOpener(WithKnownHosts("/etc/ssh/known_hosts")).Config(pinned)
		assert.Empty(t, c.KnownHostsPath)
		assert.Equal(t, "SHA256:abc", c.Fingerprint)
	})

	t.Run("falls back to accepting any key", func(t *testing.T) {
		t.Parallel()

		c := NewOpener(WithTimeout(3 * time.Second)).Config(profile)
		assert.True(t, c.InsecureSkipVerify)
		assert.Equal(t, 3*time.Second, c.Timeout)
	})
}
