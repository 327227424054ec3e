package collect

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/logger"
	"github.com/computergenieco/pimon/pkg/sshutil"
	sshtest "github.com/computergenieco/pimon/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

func mockRunner(t *testing.T, client *sshtest.MockClient, opts Options) *Runner {
	t.Helper()
	opts.Dialer = DialFunc(func(ctx context.Context, host string) (sshutil.SSHClient, error) {
		return client, nil
	})
	opts.Now = func() time.Time { return fixedNow }
	opts.Logger = logger.Noop()
	return NewRunner(opts)
}

func TestCollect_Success(t *testing.T) {
	client := sshtest.NewMockClient("192.168.1.30")
	client.Device().SetScriptOutput(DefaultRemotePath, "45231 86400\n")

	r := mockRunner(t, client, Options{Script: []byte("#!/bin/sh\necho hi\n")})
	reading, err := r.Collect(context.Background(), "192.168.1.30")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.30", reading.Host)
	assert.InDelta(t, 45.231, reading.Temperature, 1e-9)
	require.NotNil(t, reading.Uptime)
	assert.Equal(t, int64(86400), *reading.Uptime)
	assert.Equal(t, fixedNow, reading.LastUpdate)

	fs := client.Device().FS()
	content, err := fs.ReadFile(DefaultRemotePath)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho hi\n", string(content))
	assert.True(t, fs.IsExecutable(DefaultRemotePath))
	assert.True(t, client.IsClosed())

	assert.Equal(t, []string{
		"cat > '/tmp/get_avg_temp.sh'",
		"chmod +x '/tmp/get_avg_temp.sh'",
		"'/tmp/get_avg_temp.sh'",
	}, client.Device().History())
}

func TestCollect_CustomRemotePath(t *testing.T) {
	client := sshtest.NewMockClient("pi")
	client.Device().SetScriptOutput("/var/tmp/t.sh", "50000")

	r := mockRunner(t, client, Options{RemotePath: "/var/tmp/t.sh"})
	reading, err := r.Collect(context.Background(), "pi")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, reading.Temperature, 1e-9)
	assert.Nil(t, reading.Uptime)
}

func TestCollect_DialFailure(t *testing.T) {
	r := NewRunner(Options{
		Dialer: DialFunc(func(ctx context.Context, host string) (sshutil.SSHClient, error) {
			return nil, stderrors.New("connection refused")
		}),
		Logger: logger.Noop(),
	})

	_, err := r.Collect(context.Background(), "192.168.1.99")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.Contains(t, errors.Oneline(err), "192.168.1.99")
}

func TestCollect_DialHonoursConnectTimeout(t *testing.T) {
	r := NewRunner(Options{
		ConnectTimeout: 20 * time.Millisecond,
		Dialer: DialFunc(func(ctx context.Context, host string) (sshutil.SSHClient, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
		Logger: logger.Noop(),
	})

	start := time.Now()
	_, err := r.Collect(context.Background(), "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCollect_StepFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *sshtest.Device)
		code  string
		msg   string
	}{
		{
			name: "upload",
			setup: func(d *sshtest.Device) {
				d.SetCommandResponse("^cat > ", sshtest.CommandResponse{Stderr: []byte("No space left on device"), ExitCode: 1})
			},
			code: errors.ErrCollect,
			msg:  "Uploading",
		},
		{
			name: "chmod",
			setup: func(d *sshtest.Device) {
				d.SetCommandResponse("^chmod ", sshtest.CommandResponse{Stderr: []byte("Operation not permitted"), ExitCode: 1})
			},
			code: errors.ErrCollect,
			msg:  "executable",
		},
		{
			name: "script exits non-zero",
			setup: func(d *sshtest.Device) {
				d.SetScriptResponse(DefaultRemotePath, sshtest.CommandResponse{Stderr: []byte("no thermal zones"), ExitCode: 1})
			},
			code: errors.ErrCollect,
			msg:  "no thermal zones",
		},
		{
			name: "empty output",
			setup: func(d *sshtest.Device) {
				d.SetScriptOutput(DefaultRemotePath, "")
			},
			code: errors.ErrParse,
			msg:  "nothing",
		},
		{
			name: "garbage output",
			setup: func(d *sshtest.Device) {
				d.SetScriptOutput(DefaultRemotePath, "warm 12")
			},
			code: errors.ErrParse,
			msg:  "not an integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := sshtest.NewMockClient("h")
			tt.setup(client.Device())

			_, err := mockRunner(t, client, Options{}).Collect(context.Background(), "h")
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), errors.Oneline(err))
			assert.Contains(t, errors.Oneline(err), tt.msg)
			assert.True(t, client.IsClosed(), "client must be closed on failure")
		})
	}
}

func TestCollect_CommandTimeout(t *testing.T) {
	client := sshtest.NewMockClient("h")
	client.Device().SetScriptOutput(DefaultRemotePath, "1000")
	client.SetDelay(time.Second)

	r := mockRunner(t, client, Options{CommandTimeout: 30 * time.Millisecond})
	start := time.Now()
	_, err := r.Collect(context.Background(), "h")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCollect))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.True(t, client.IsClosed())
}

func TestCollect_OverSSH(t *testing.T) {
	srv := sshtest.NewServer(t, "orangepi", "orangepi")
	srv.Device.SetScriptOutput(DefaultRemotePath, "38500 120\n")

	r := NewRunner(Options{
		Dialer: SSHDialer(sshutil.Options{
			User:     "orangepi",
			Password: "orangepi",
			Port:     srv.Port(),
			Timeout:  2 * time.Second,
		}),
		Now:    func() time.Time { return fixedNow },
		Logger: logger.Noop(),
	})

	reading, err := r.Collect(context.Background(), srv.Host())
	require.NoError(t, err)
	assert.Equal(t, srv.Host(), reading.Host)
	assert.InDelta(t, 38.5, reading.Temperature, 1e-9)
	assert.Equal(t, int64(120), *reading.Uptime)

	uploaded, err := srv.Device.FS().ReadFile(DefaultRemotePath)
	require.NoError(t, err)
	assert.Equal(t, DefaultScript(), uploaded)
}
