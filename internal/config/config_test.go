package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DIDAUTH_LISTEN", "DIDAUTH_PUBLIC_DIR", "DIDAUTH_REQUEST_TIMEOUT",
		"DIDAUTH_REGISTRY_BACKEND", "DIDAUTH_LOG_LEVEL", "DIDAUTH_LOG_FORMAT", "DIDAUTH_LOG_FILE",
		"DATABASE_URL", "DIDAUTH_LOCALFS_DIR", "DIDAUTH_REGISTRY_TARGET",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "memory", cfg.Registry.Backend)
	assert.Equal(t, int64(64<<10), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "Welcome to didauth!", cfg.Server.WelcomeMessage)
}

func TestLoad_FileMergesOverDefaults(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, "didauth.yaml", `
server:
  listen: 127.0.0.1:9000
  publicDir: ./public
  welcomeMessage: hello
  requestTimeout: 3s
registry:
  backend: localfs
  options:
    dir: /var/lib/didauth
log:
  format: console
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, "./public", cfg.Server.PublicDir)
	assert.Equal(t, "hello", cfg.Server.WelcomeMessage)
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout, "unset fields keep defaults")
	assert.Equal(t, "localfs", cfg.Registry.Backend)
	assert.Equal(t, "/var/lib/didauth", cfg.Registry.Options["dir"])
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	p := writeFile(t, "bad.yaml", "server:\n  lisen: :1\n")
	_, err := Load(p)
	assert.Error(t, err)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"DIDAUTH_LISTEN":           ":7000",
		"DIDAUTH_PUBLIC_DIR":       "/srv/www",
		"DIDAUTH_REQUEST_TIMEOUT":  "2s",
		"DIDAUTH_REGISTRY_BACKEND": "pgsql",
		"DATABASE_URL":             " postgres://u@h/db ",
		"DIDAUTH_LOG_LEVEL":        "debug",
		"DIDAUTH_LOG_FORMAT":       "console",
	}
	cfg := Default()
	require.NoError(t, ApplyEnvOverrides(&cfg, func(k string) string { return env[k] }))
	assert.Equal(t, ":7000", cfg.Server.Listen)
	assert.Equal(t, "/srv/www", cfg.Server.PublicDir)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "pgsql", cfg.Registry.Backend)
	assert.Equal(t, "postgres://u@h/db", cfg.Registry.Options["database_url"])
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	env = map[string]string{"DIDAUTH_REQUEST_TIMEOUT": "soon"}
	assert.Error(t, ApplyEnvOverrides(&cfg, func(k string) string { return env[k] }))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Server.Listen = ""
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.listen")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoadDotEnv(t *testing.T) {
	p := writeFile(t, ".env", "DIDAUTH_TEST_DOTENV=from-file\n")
	t.Setenv("DIDAUTH_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("DIDAUTH_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(p, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("DIDAUTH_TEST_DOTENV"))
}
