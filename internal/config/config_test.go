package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/serroba/notesync/internal/config"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: "0123456789abcdef0123"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "local", cfg.Env)
	require.Equal(t, ":8080", cfg.HTTP.Address)
	require.Equal(t, 10*time.Second, cfg.HTTP.ReadHeaderTimeout)
	require.Equal(t, "memory", cfg.Storage.Driver)
	require.Equal(t, 50, cfg.History.MaxVersions)
	require.Equal(t, 7, cfg.Share.DefaultExpiryDays)
	require.Equal(t, 10, cfg.Share.MaxAttempts)
	require.Equal(t, "@every 1h", cfg.Share.SweepSpec)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, "none", cfg.Archive.Type)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("NOTESYNC_HTTP_ADDRESS", ":9999")
	t.Setenv("NOTESYNC_JWT_SECRET", "from-the-environment-123")

	path := writeConfig(t, "env: dev\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.HTTP.Address)
	require.Equal(t, "from-the-environment-123", cfg.Auth.JWTSecret)
	require.Equal(t, "dev", cfg.Env)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing secret", body: "env: local\n"},
		{name: "postgres without dsn", body: "auth: {jwt_secret: 0123456789abcdef}\nstorage: {driver: postgres}\n"},
		{name: "unknown archive", body: "auth: {jwt_secret: 0123456789abcdef}\narchive: {type: ftp}\n"},
		{name: "s3 without bucket", body: "auth: {jwt_secret: 0123456789abcdef}\narchive: {type: s3}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestFetchPath(t *testing.T) {
	t.Setenv(config.PathEnv, "")
	require.Equal(t, config.DefaultPath, config.FetchPath(""))

	t.Setenv(config.PathEnv, "/etc/notesync.yaml")
	require.Equal(t, "/etc/notesync.yaml", config.FetchPath(""))
	require.Equal(t, "flag.yaml", config.FetchPath("flag.yaml"))
}
