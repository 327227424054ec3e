// Package collect runs the temperature script on a device over SSH and
// turns its output into a store.Reading.
package collect

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/logger"
	"github.com/computergenieco/pimon/internal/store"
	"github.com/computergenieco/pimon/internal/util"
	"github.com/computergenieco/pimon/pkg/sshutil"
)

const (
	DefaultRemotePath     = "/tmp/get_avg_temp.sh"
	DefaultConnectTimeout = 5 * time.Second
	DefaultCommandTimeout = 30 * time.Second
)

// Dialer opens an authenticated SSH connection to host.
type Dialer interface {
	Dial(ctx context.Context, host string) (sshutil.SSHClient, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, host string) (sshutil.SSHClient, error)

// Dial calls f.
func (f DialFunc) Dial(ctx context.Context, host string) (sshutil.SSHClient, error) {
	return f(ctx, host)
}

// SSHDialer dials real devices with the shared credentials in opts.
func SSHDialer(opts sshutil.Options) Dialer {
	return DialFunc(func(ctx context.Context, host string) (sshutil.SSHClient, error) {
		client, err := sshutil.Dial(ctx, host, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}

// Options configure a Runner.
type Options struct {
	Dialer Dialer

	// Script is uploaded to RemotePath before every run.
	Script     []byte
	RemotePath string

	ConnectTimeout time.Duration
	CommandTimeout time.Duration

	// Now stamps readings. Defaults to time.Now.
	Now func() time.Time

	Logger logger.Logger
}

// Runner collects one reading per call. It is safe for concurrent use.
type Runner struct {
	dialer         Dialer
	script         []byte
	remotePath     string
	connectTimeout time.Duration
	commandTimeout time.Duration
	now            func() time.Time
	log            logger.Logger
}

// NewRunner creates a Runner. A nil Script uses the built-in script.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		dialer:         opts.Dialer,
		script:         opts.Script,
		remotePath:     opts.RemotePath,
		connectTimeout: opts.ConnectTimeout,
		commandTimeout: opts.CommandTimeout,
		now:            opts.Now,
		log:            logger.OrDefault(opts.Logger),
	}
	if r.script == nil {
		r.script = DefaultScript()
	}
	if r.remotePath == "" {
		r.remotePath = DefaultRemotePath
	}
	if r.connectTimeout <= 0 {
		r.connectTimeout = DefaultConnectTimeout
	}
	if r.commandTimeout <= 0 {
		r.commandTimeout = DefaultCommandTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Collect connects to host, uploads and runs the script, and parses its
// output. Each step short-circuits; the connection is always closed.
func (r *Runner) Collect(ctx context.Context, host string) (store.Reading, error) {
	dialCtx, cancelDial := context.WithTimeout(ctx, r.connectTimeout)
	client, err := r.dialer.Dial(dialCtx, host)
	cancelDial()
	if err != nil {
		if errors.IsCode(err, errors.ErrSSH) {
			return store.Reading{}, err
		}
		return store.Reading{}, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't connect to %s", host), "")
	}
	defer client.Close()

	cmdCtx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	if err := client.Upload(cmdCtx, bytes.NewReader(r.script), r.remotePath); err != nil {
		return store.Reading{}, errors.WrapWithCode(err, errors.ErrCollect,
			fmt.Sprintf("Uploading script to %s failed", host), "")
	}

	if _, err := r.exec(cmdCtx, client, "chmod +x "+util.ShellQuote(r.remotePath)); err != nil {
		return store.Reading{}, errors.WrapWithCode(err, errors.ErrCollect,
			fmt.Sprintf("Making script executable on %s failed", host), "")
	}

	stdout, err := r.exec(cmdCtx, client, util.ShellQuote(r.remotePath))
	if err != nil {
		return store.Reading{}, errors.WrapWithCode(err, errors.ErrCollect,
			fmt.Sprintf("Running script on %s failed", host), "")
	}

	out, err := ParseOutput(stdout)
	if err != nil {
		return store.Reading{}, errors.WrapWithCode(err, errors.ErrParse,
			fmt.Sprintf("Unreadable output from %s", host), "")
	}

	reading := store.Reading{
		Host:        host,
		Temperature: out.Celsius(),
		Uptime:      out.Uptime,
		LastUpdate:  r.now(),
	}
	r.log.Debug("%s: %.3f°C", host, reading.Temperature)
	return reading, nil
}

// exec runs cmd and treats a non-zero exit as an error.
func (r *Runner) exec(ctx context.Context, client sshutil.SSHClient, cmd string) ([]byte, error) {
	stdout, stderr, code, err := client.ExecContext(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		if msg := bytes.TrimSpace(stderr); len(msg) > 0 {
			return nil, fmt.Errorf("exit status %d: %s", code, msg)
		}
		return nil, fmt.Errorf("exit status %d", code)
	}
	return stdout, nil
}
