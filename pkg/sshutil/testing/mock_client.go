package testing

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/computergenieco/pimon/pkg/sshutil"
)

// MockClient simulates an SSH connection to a Device for testing.
type MockClient struct {
	mu      sync.Mutex
	host    string
	address string
	device  *Device
	closed  bool
	delay   time.Duration
}

var _ sshutil.SSHClient = (*MockClient)(nil)

// NewMockClient creates a new mock SSH client backed by a fresh Device.
func NewMockClient(host string) *MockClient {
	return NewMockClientFor(host, NewDevice())
}

// NewMockClientFor creates a mock client connected to an existing Device.
func NewMockClientFor(host string, device *Device) *MockClient {
	return &MockClient{
		host:    host,
		address: host + ":22",
		device:  device,
	}
}

// Device returns the simulated remote machine.
func (m *MockClient) Device() *Device {
	return m.device
}

// SetDelay makes every call wait d (or until ctx ends) before running.
func (m *MockClient) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

func (m *MockClient) wait(ctx context.Context) error {
	m.mu.Lock()
	closed, delay := m.closed, m.delay
	m.mu.Unlock()

	if closed {
		return errors.New("connection closed")
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExecContext runs a command against the device.
func (m *MockClient) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	if err := m.wait(ctx); err != nil {
		return nil, nil, -1, err
	}
	return m.device.Run(cmd, nil)
}

// Upload writes content to remotePath on the device.
func (m *MockClient) Upload(ctx context.Context, content io.Reader, remotePath string) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	_, stderr, code, err := m.device.Run(sshutil.UploadCommand(remotePath), content)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.New(string(stderr))
	}
	return nil
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}
