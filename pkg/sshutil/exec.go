package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/util"
	"golang.org/x/crypto/ssh"
)

// ExecContext runs a command on the remote host and returns the output.
// Returns stdout, stderr, exit code, and any error.
// Exit code is -1 if the command couldn't be executed at all.
// When ctx ends first the session is closed, which unblocks the remote call.
func (c *Client) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	exitCode, err = runWithContext(ctx, session, cmd)
	if err != nil {
		return nil, nil, -1, err
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// Upload writes content to remotePath by streaming it into `cat > path`.
// This needs nothing on the device beyond a POSIX shell.
func (c *Client) Upload(ctx context.Context, content io.Reader, remotePath string) error {
	session, err := c.NewSession()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	var stderrBuf bytes.Buffer
	session.Stdin = content
	session.Stderr = &stderrBuf

	exitCode, err := runWithContext(ctx, session, UploadCommand(remotePath))
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return errors.New(errors.ErrExec,
			fmt.Sprintf("Writing %s exited with status %d: %s", remotePath, exitCode, bytes.TrimSpace(stderrBuf.Bytes())),
			"Check the remote user can write to that path.")
	}
	return nil
}

// UploadCommand is the remote command Upload runs for remotePath.
func UploadCommand(remotePath string) string {
	return "cat > " + util.ShellQuote(remotePath)
}

// runWithContext runs cmd on session and maps *ssh.ExitError to an exit code.
func runWithContext(ctx context.Context, session *ssh.Session, cmd string) (int, error) {
	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return -1, errors.WrapWithCode(ctx.Err(), errors.ErrExec,
			fmt.Sprintf("Command didn't finish in time: %s", cmd),
			"Raise collector.command_timeout if the device is just slow.")
	case err := <-done:
		if err == nil {
			return 0, nil
		}
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			return exitErr.ExitStatus(), nil
		}
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to execute command: %s", cmd),
			"Check if the command exists on the remote host.")
	}
}
