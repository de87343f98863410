package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/didauth/credential"
	"xdao.co/didauth/internal/config"
	"xdao.co/didauth/model"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func issueCLI(t *testing.T, args ...string) credential.Enrollment {
	t.Helper()
	code, out, errOut := runCLI(t, append([]string{"issue"}, args...)...)
	require.Equal(t, 0, code, errOut)
	var enr credential.Enrollment
	require.NoError(t, json.Unmarshal([]byte(out), &enr))
	return enr
}

func TestIssueSignVerify(t *testing.T) {
	enr := issueCLI(t, "--name", "alice", "--meta", "team=ops")
	assert.Equal(t, "alice", enr.Name)
	assert.True(t, strings.HasPrefix(enr.DID, "did:key:z6Mk"))
	assert.Equal(t, `{"metadata":{"team":"ops"},"method":"createNewUser","name":"alice"}`, enr.Message)

	code, out, _ := runCLI(t, "verify", "--did", enr.DID, "--sign", enr.Signature, "--message", enr.Message)
	assert.Equal(t, 0, code)
	assert.Equal(t, "valid\n", out)

	code, out, errOut := runCLI(t, "sign", "--did", enr.DID, "--password", enr.Password,
		"--path", "/users/login", "--method", "POST", "--param", "b=2", "--param", "a=1")
	require.Equal(t, 0, code, errOut)
	var signed model.SignedMessage
	require.NoError(t, json.Unmarshal([]byte(out), &signed))
	assert.Equal(t, `{"method":"POST","params":{"a":"1","b":"2"},"path":"/users/login"}`, signed.Message)

	code, _, _ = runCLI(t, "verify", "--did", enr.DID, "--sign", signed.Sign, "--message", signed.Message)
	assert.Equal(t, 0, code)
}

func TestIssueDilithium3(t *testing.T) {
	enr := issueCLI(t, "--name", "pq", "--scheme", "dilithium3")
	code, _, _ := runCLI(t, "verify", "--did", enr.DID, "--sign", enr.Signature, "--message", enr.Message)
	assert.Equal(t, 0, code)
}

func TestVerifyExitCodes(t *testing.T) {
	alice := issueCLI(t, "--name", "alice")
	bob := issueCLI(t, "--name", "bob")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"tampered message", []string{"--did", alice.DID, "--sign", alice.Signature, "--message", alice.Message + " "}, 1},
		{"other key", []string{"--did", bob.DID, "--sign", alice.Signature, "--message", alice.Message}, 1},
		{"malformed did", []string{"--did", "did:web:example.com", "--sign", alice.Signature, "--message", alice.Message}, 2},
		{"password as did", []string{"--did", alice.Password, "--sign", alice.Signature, "--message", alice.Message}, 2},
		{"malformed token", []string{"--did", alice.DID, "--sign", "nodash", "--message", alice.Message}, 2},
		{"missing sign", []string{"--did", alice.DID}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, append([]string{"verify"}, tt.args...)...)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestVerifyJSON(t *testing.T) {
	enr := issueCLI(t, "--name", "alice")

	code, out, _ := runCLI(t, "verify", "--json", "--did", enr.DID, "--sign", enr.Signature, "--message", "other")
	assert.Equal(t, 1, code)
	var res model.VerifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	require.NotNil(t, res.Error)
	assert.Equal(t, "DIDAUTH-VERIFY-402", res.Error.Rule)

	code, out, _ = runCLI(t, "verify", "--json", "--did", enr.DID, "--sign", enr.Signature, "--message", enr.Message)
	assert.Equal(t, 0, code)
	res = model.VerifyResult{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Valid)
	assert.Nil(t, res.Error)
}

func TestUsageErrors(t *testing.T) {
	tests := [][]string{
		{"issue"},
		{"issue", "--name", "x", "--scheme", "rsa"},
		{"issue", "--name", "x", "--meta", "novalue"},
		{"issue", "--bogus"},
		{"sign", "--did", "did:key:z6Mk"},
		{"key", "import"},
	}
	for _, args := range tests {
		code, _, _ := runCLI(t, args...)
		assert.Equal(t, 2, code, "args %v", args)
	}
}

func TestSignRejectsForeignPassword(t *testing.T) {
	alice := issueCLI(t, "--name", "alice")
	bob := issueCLI(t, "--name", "bob")

	code, _, errOut := runCLI(t, "sign", "--did", alice.DID, "--password", bob.Password, "--message", "hi")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "DIDAUTH-CRED-007")
}

func TestKeyFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	keyDir := filepath.Join(dir, "store")
	t.Setenv("DIDAUTH_TEST_PASSPHRASE", "correct horse")
	t.Setenv("DIDAUTH_TEST_PASSWORD", "")

	enr := issueCLI(t, "--key-dir", keyDir, "--name", "alice", "--save", "alice", "--passphrase-env", "DIDAUTH_TEST_PASSPHRASE")

	code, out, _ := runCLI(t, "key", "list", "--key-dir", keyDir)
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "alice\t"))

	pemPath := filepath.Join(dir, "alice.pem")
	code, _, errOut := runCLI(t, "key", "export", "--key-dir", keyDir, "--key", "alice",
		"--passphrase-env", "DIDAUTH_TEST_PASSPHRASE", "--out", pemPath)
	require.Equal(t, 0, code, errOut)

	data, err := os.ReadFile(pemPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ENCRYPTED DIDAUTH KEY")
	assert.NotContains(t, string(data), enr.Password)

	code, out, errOut = runCLI(t, "key", "import", "--in", pemPath, "--passphrase-env", "DIDAUTH_TEST_PASSPHRASE")
	require.Equal(t, 0, code, errOut)
	var got keyCredential
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, enr.DID, got.DID)
	assert.Equal(t, enr.Password, got.Password)
	assert.Equal(t, "ed25519", got.Scheme)

	code, _, _ = runCLI(t, "key", "import", "--in", pemPath)
	assert.Equal(t, 1, code)

	code, _, _ = runCLI(t, "key", "export", "--key-dir", keyDir, "--key", "alice",
		"--passphrase-env", "DIDAUTH_TEST_PASSWORD")
	assert.Equal(t, 2, code)
}

func TestKeyExportPlainToStdout(t *testing.T) {
	enr := issueCLI(t, "--name", "alice")
	code, out, errOut := runCLI(t, "key", "export", "--did", enr.DID, "--password", enr.Password)
	require.Equal(t, 0, code, errOut)
	assert.True(t, strings.HasPrefix(out, "-----BEGIN DIDAUTH KEY-----"))
}

func TestSignWithStoredKey(t *testing.T) {
	keyDir := t.TempDir()
	enr := issueCLI(t, "--key-dir", keyDir, "--name", "alice", "--save", "alice")

	code, out, errOut := runCLI(t, "sign", "--key-dir", keyDir, "--key", "alice", "--message", "hello")
	require.Equal(t, 0, code, errOut)
	var signed model.SignedMessage
	require.NoError(t, json.Unmarshal([]byte(out), &signed))

	code, _, _ = runCLI(t, "verify", "--did", enr.DID, "--sign", signed.Sign, "--message", "hello")
	assert.Equal(t, 0, code)
}

func TestListBackends(t *testing.T) {
	code, out, _ := runCLI(t, "serve", "--list-backends")
	require.Equal(t, 0, code)
	for _, name := range []string{"grpc", "localfs", "memory", "pgsql"} {
		assert.Contains(t, out, name+"\t")
	}
}

func TestLoadServeConfigFlagsOverride(t *testing.T) {
	g := &globalFlags{envFile: filepath.Join(t.TempDir(), "missing.env"), getenv: os.Getenv}
	f := &serveFlags{
		listen:  "127.0.0.1:9999",
		backend: "localfs",
		options: []string{"dir=/tmp/users"},
	}
	cfg, err := loadServeConfig(g, f)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Listen)
	assert.Equal(t, "localfs", cfg.Registry.Backend)
	assert.Equal(t, "/tmp/users", cfg.Registry.Options["dir"])

	f.options = []string{"=x"}
	_, err = loadServeConfig(g, f)
	assert.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Listen = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, serve(ctx, cfg, zerolog.Nop()))

	cfg.Registry.Backend = "nope"
	assert.Error(t, serve(context.Background(), cfg, zerolog.Nop()))
}

func TestRunHTTPGracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runHTTP(ctx, ln, handler, time.Second, zerolog.Nop()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
