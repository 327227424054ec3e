package sshutil

import (
	"context"
	"io"
)

// SSHClient defines the interface for the remote operations pimon performs.
// Both the real Client and mock implementations satisfy this interface.
type SSHClient interface {
	// ExecContext runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	// Cancelling ctx closes the session and returns ctx's error.
	ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// Upload streams content to remotePath, replacing any existing file.
	Upload(ctx context.Context, content io.Reader, remotePath string) error

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the original host used to connect.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string
}
