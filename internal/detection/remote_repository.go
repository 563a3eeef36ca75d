package detection

import "context"

// RemoteRepository moves commands and files between this process and the one remote host.
type RemoteRepository interface {
	RunCommand(ctx context.Context, command string) (string, error)
	Download(ctx context.Context, remotePath, localPath string) error
	Upload(ctx context.Context, content []byte, remotePath string) error
	EnsureDir(ctx context.Context, remoteDir string) error
}
