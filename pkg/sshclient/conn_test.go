package sshclient

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func writeKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func TestResolveAuthPrefersExistingKeyFile(t *testing.T) {
	keyPath := writeKey(t)

	methods, strategy, err := ResolveAuth(Options{KeyPath: keyPath, Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, AuthKeyFile, strategy)
	assert.Len(t, methods, 1)
}

func TestResolveAuthFallsBackToPassword(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent_key")

	methods, strategy, err := ResolveAuth(Options{KeyPath: missing, Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, AuthPassword, strategy)
	assert.Len(t, methods, 2)
}

func TestResolveAuthFailsWithoutCredentials(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent_key")

	_, _, err := ResolveAuth(Options{KeyPath: missing})
	assert.True(t, errors.Is(err, ErrNoCredentials))
}

func TestResolveAuthReadsDiskEveryCall(t *testing.T) {
	keyPath := writeKey(t)
	opts := Options{KeyPath: keyPath, Password: "secret"}

	_, strategy, err := ResolveAuth(opts)
	require.NoError(t, err)
	assert.Equal(t, AuthKeyFile, strategy)

	require.NoError(t, os.Remove(keyPath))
	_, strategy, err = ResolveAuth(opts)
	require.NoError(t, err)
	assert.Equal(t, AuthPassword, strategy)
}

func TestResolveAuthRejectsGarbageKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad_key")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	_, strategy, err := ResolveAuth(Options{KeyPath: path, Password: "secret"})
	require.Error(t, err)
	assert.Equal(t, AuthKeyFile, strategy)
}

func TestAddrDefaultsPort(t *testing.T) {
	assert.Equal(t, "hive.local:22", Options{Host: "hive.local"}.Addr())
	assert.Equal(t, "hive.local:2222", Options{Host: "hive.local", Port: 2222}.Addr())
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'/data/out'`, ShellQuote("/data/out"))
	assert.Equal(t, `'/data/it'\''s'`, ShellQuote("/data/it's"))
}

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, IsAuthFailure(errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]")))
	assert.False(t, IsAuthFailure(errors.New("dial tcp: connection refused")))
	assert.False(t, IsAuthFailure(nil))
}
