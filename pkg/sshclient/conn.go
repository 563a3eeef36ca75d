package sshclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultTimeout = 10 * time.Second

var ErrNoCredentials = errors.New("no usable key file and no password configured")

type AuthStrategy string

const (
	AuthKeyFile  AuthStrategy = "keyfile"
	AuthPassword AuthStrategy = "password"
)

type Options struct {
	Host       string
	Port       int
	User       string
	Password   string
	KeyPath    string
	KnownHosts string
	Timeout    time.Duration
}

func (o Options) Addr() string {
	port := o.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}

// ResolveAuth picks the credential strategy. The key file wins when it exists on disk,
// otherwise a non-empty password is required. It reads the filesystem on every call.
func ResolveAuth(o Options) ([]ssh.AuthMethod, AuthStrategy, error) {
	if o.KeyPath != "" {
		if _, err := os.Stat(o.KeyPath); err == nil {
			signer, err := loadSigner(o.KeyPath, o.Password)
			if err != nil {
				return nil, AuthKeyFile, err
			}
			return []ssh.AuthMethod{ssh.PublicKeys(signer)}, AuthKeyFile, nil
		}
	}
	if o.Password == "" {
		return nil, "", ErrNoCredentials
	}
	return []ssh.AuthMethod{
		ssh.Password(o.Password),
		ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range questions {
				answers[i] = o.Password
			}
			return answers, nil
		}),
	}, AuthPassword, nil
}

func loadSigner(keyPath, passphrase string) (ssh.Signer, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read key file %s: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
		if err == nil {
			return signer, nil
		}
	}
	return nil, fmt.Errorf("parse key file %s: %w", keyPath, err)
}

// HostKeyCallback verifies against a known_hosts file when one is configured and
// accepts any host key otherwise.
func HostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if knownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("load known hosts %s: %w", knownHostsPath, err)
	}
	return cb, nil
}

// Dial opens an authenticated connection. The TCP connect and the SSH handshake are both
// bounded by Options.Timeout.
func Dial(ctx context.Context, o Options, auth []ssh.AuthMethod) (*ssh.Client, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hostKeyCallback, err := HostKeyCallback(o.KnownHosts)
	if err != nil {
		return nil, err
	}
	cfg := &ssh.ClientConfig{
		User:            o.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := o.Addr()
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set handshake deadline: %w", err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		c.Close()
		return nil, fmt.Errorf("clear handshake deadline: %w", err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// IsAuthFailure reports whether err came from the server rejecting our credentials.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain")
}

// ShellQuote wraps s in single quotes for a POSIX shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
