package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ademnea/beehive-pipeline/internal/config"
	"github.com/ademnea/beehive-pipeline/internal/detection"
	"github.com/ademnea/beehive-pipeline/pkg/logger"
	"github.com/ademnea/beehive-pipeline/pkg/sshclient"
	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type dialFunc func(ctx context.Context, opts sshclient.Options, auth []ssh.AuthMethod) (*ssh.Client, error)

type sshRepository struct {
	opts            sshclient.Options
	tempDir         string
	commandTimeout  time.Duration
	transferTimeout time.Duration
	logger          logger.Logger
	dial            dialFunc
}

func NewSSHRepository(cfg *config.Config, log logger.Logger) detection.RemoteRepository {
	if cfg.Remote.KnownHosts == "" {
		log.Warn("SSH_KNOWN_HOSTS not set, remote host keys will not be verified")
	}
	return &sshRepository{
		opts: sshclient.Options{
			Host:       cfg.Remote.Host,
			Port:       cfg.Remote.Port,
			User:       cfg.Remote.User,
			Password:   cfg.Remote.Password,
			KeyPath:    cfg.Remote.KeyPath,
			KnownHosts: cfg.Remote.KnownHosts,
			Timeout:    cfg.Remote.ConnectTimeout,
		},
		tempDir:         cfg.Paths.TempDir,
		commandTimeout:  cfg.Remote.CommandTimeout,
		transferTimeout: cfg.Remote.TransferTimeout,
		logger:          log,
		dial:            sshclient.Dial,
	}
}

// connect resolves credentials afresh and dials. Auth is resolved before any network I/O.
func (r *sshRepository) connect(ctx context.Context) (*ssh.Client, error) {
	auth, strategy, err := sshclient.ResolveAuth(r.opts)
	if err != nil {
		return nil, detection.Wrap(detection.ErrAuthentication, err, "resolve credentials for %s", r.opts.User)
	}
	if strategy == sshclient.AuthKeyFile {
		r.logger.Debug("Using SSH key authentication")
	} else {
		r.logger.Warn("Falling back to password-based authentication")
	}

	client, err := r.dial(ctx, r.opts, auth)
	if err != nil {
		if sshclient.IsAuthFailure(err) {
			return nil, detection.Wrap(detection.ErrAuthentication, err, "connect to %s", r.opts.Addr())
		}
		return nil, detection.Wrap(detection.ErrConnection, err, "connect to %s", r.opts.Addr())
	}
	return client, nil
}

func (r *sshRepository) RunCommand(ctx context.Context, command string) (string, error) {
	ctx, cancel := withTimeout(ctx, r.commandTimeout)
	defer cancel()

	r.logger.Infof("Executing SSH command: %s", command)
	client, err := r.connect(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", detection.Wrap(detection.ErrConnection, err, "open session")
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	err = runUntilDone(ctx, client, detection.ErrConnection, func() error { return session.Run(command) })
	if stderr.Len() > 0 {
		r.logger.Errorf("SSH command error: %s", stderr.String())
	}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			r.logger.Errorf("SSH command %q exited with status %d", command, exitErr.ExitStatus())
			return stdout.String(), nil
		}
		return "", detection.Wrap(detection.ErrConnection, err, "run %q", command)
	}
	r.logger.Debugf("SSH command output: %s", stdout.String())
	return stdout.String(), nil
}

func (r *sshRepository) EnsureDir(ctx context.Context, remoteDir string) error {
	_, err := r.RunCommand(ctx, "mkdir -p "+sshclient.ShellQuote(remoteDir))
	return err
}

func (r *sshRepository) Download(ctx context.Context, remotePath, localPath string) error {
	ctx, cancel := withTimeout(ctx, r.transferTimeout)
	defer cancel()

	r.logger.Infof("Downloading from %s to %s", remotePath, localPath)
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return detection.Wrap(detection.ErrTransfer, err, "create local directory for %s", localPath)
	}

	client, err := r.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return detection.Wrap(detection.ErrTransfer, err, "start sftp")
	}
	defer sftpClient.Close()

	return runUntilDone(ctx, client, detection.ErrTransfer, func() error {
		src, err := sftpClient.Open(remotePath)
		if err != nil {
			return detection.Wrap(detection.ErrTransfer, err, "open remote %s", remotePath)
		}
		defer src.Close()

		dst, err := os.Create(localPath)
		if err != nil {
			return detection.Wrap(detection.ErrTransfer, err, "create local %s", localPath)
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return detection.Wrap(detection.ErrTransfer, err, "copy %s", remotePath)
		}
		if err := dst.Close(); err != nil {
			return detection.Wrap(detection.ErrTransfer, err, "close local %s", localPath)
		}
		return nil
	})
}

func (r *sshRepository) Upload(ctx context.Context, content []byte, remotePath string) error {
	ctx, cancel := withTimeout(ctx, r.transferTimeout)
	defer cancel()

	r.logger.Infof("Uploading to %s", remotePath)
	localTemp, err := r.writeTemp(content)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(localTemp); err != nil && !os.IsNotExist(err) {
			r.logger.Warnf("failed to remove temp file %s: %v", localTemp, err)
		}
	}()

	client, err := r.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return detection.Wrap(detection.ErrTransfer, err, "start sftp")
	}
	defer sftpClient.Close()

	return runUntilDone(ctx, client, detection.ErrTransfer, func() error {
		src, err := os.Open(localTemp)
		if err != nil {
			return detection.Wrap(detection.ErrTransfer, err, "open temp %s", localTemp)
		}
		defer src.Close()

		dst, err := sftpClient.Create(remotePath)
		if err != nil {
			return detection.Wrap(detection.ErrTransfer, err, "create remote %s", remotePath)
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return detection.Wrap(detection.ErrTransfer, err, "copy to %s", remotePath)
		}
		if err := dst.Close(); err != nil {
			return detection.Wrap(detection.ErrTransfer, err, "close remote %s", remotePath)
		}
		return nil
	})
}

func (r *sshRepository) writeTemp(content []byte) (string, error) {
	if err := os.MkdirAll(r.tempDir, 0o755); err != nil {
		return "", detection.Wrap(detection.ErrTransfer, err, "create temp dir %s", r.tempDir)
	}
	f, err := os.CreateTemp(r.tempDir, fmt.Sprintf("result-%s-*.json", uuid.NewString()))
	if err != nil {
		return "", detection.Wrap(detection.ErrTransfer, err, "create temp file")
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", detection.Wrap(detection.ErrTransfer, err, "write temp file")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", detection.Wrap(detection.ErrTransfer, err, "close temp file")
	}
	return f.Name(), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// runUntilDone runs fn and tears the connection down if ctx ends first, which unblocks fn.
func runUntilDone(ctx context.Context, conn io.Closer, kind error, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		conn.Close()
		<-done
		return detection.Wrap(kind, ctx.Err(), "remote operation aborted")
	}
}
