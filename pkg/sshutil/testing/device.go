package testing

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error

	// Delay holds the command for this long before it answers.
	Delay time.Duration
}

// Device is a simulated remote machine. It understands the handful of shell
// commands pimon sends (cat >, chmod +x, cat, running a file by path) and
// answers everything else from canned responses.
type Device struct {
	mu       sync.Mutex
	fs       *MockFS
	commands map[string]CommandResponse // exact command or regex -> response
	scripts  map[string]CommandResponse // executable path -> response
	history  []string
}

// NewDevice creates a device with an empty filesystem.
func NewDevice() *Device {
	return &Device{
		fs:       NewMockFS(),
		commands: make(map[string]CommandResponse),
		scripts:  make(map[string]CommandResponse),
	}
}

// FS returns the device filesystem for direct manipulation in tests.
func (d *Device) FS() *MockFS {
	return d.fs
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern. Canned responses
// take precedence over the built-in command handling.
func (d *Device) SetCommandResponse(pattern string, resp CommandResponse) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[pattern] = resp
}

// SetScriptOutput sets what running the file at path prints, once it has
// been uploaded and made executable.
func (d *Device) SetScriptOutput(path, stdout string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts[path] = CommandResponse{Stdout: []byte(stdout)}
}

// SetScriptResponse is SetScriptOutput with full control over the result.
func (d *Device) SetScriptResponse(path string, resp CommandResponse) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts[path] = resp
}

// History returns every command the device has received, in order.
func (d *Device) History() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.history...)
}

// Run executes cmd against the device, reading stdin for uploads.
func (d *Device) Run(cmd string, stdin io.Reader) (stdout, stderr []byte, exitCode int, err error) {
	d.mu.Lock()
	d.history = append(d.history, cmd)
	resp, ok := d.lookup(cmd)
	d.mu.Unlock()

	if ok {
		if stdin != nil {
			_, _ = io.Copy(io.Discard, stdin)
		}
		time.Sleep(resp.Delay)
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}

	return d.parseAndExecute(strings.TrimSpace(cmd), stdin)
}

// lookup finds a canned response. Callers hold d.mu.
func (d *Device) lookup(cmd string) (CommandResponse, bool) {
	if resp, ok := d.commands[cmd]; ok {
		return resp, true
	}
	for pattern, resp := range d.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp, true
		}
	}
	return CommandResponse{}, false
}

func (d *Device) parseAndExecute(cmd string, stdin io.Reader) ([]byte, []byte, int, error) {
	switch {
	case strings.HasPrefix(cmd, "cat >"):
		path := extractPath(strings.TrimPrefix(cmd, "cat >"))
		if path == "" {
			return nil, []byte("cat: missing output file"), 1, nil
		}
		var buf bytes.Buffer
		if stdin != nil {
			if _, err := io.Copy(&buf, stdin); err != nil {
				return nil, []byte(err.Error()), 1, nil
			}
		}
		_ = d.fs.WriteFile(path, buf.Bytes())
		return nil, nil, 0, nil

	case strings.HasPrefix(cmd, "chmod +x "):
		path := extractPath(strings.TrimPrefix(cmd, "chmod +x "))
		if err := d.fs.Chmod(path, true); err != nil {
			return nil, []byte("chmod: cannot access '" + path + "': No such file or directory"), 1, nil
		}
		return nil, nil, 0, nil

	case strings.HasPrefix(cmd, "cat "):
		path := extractPath(strings.TrimPrefix(cmd, "cat "))
		content, err := d.fs.ReadFile(path)
		if err != nil {
			return nil, []byte("cat: " + path + ": No such file or directory"), 1, nil
		}
		return content, nil, 0, nil
	}

	path := extractPath(cmd)
	if !d.fs.IsFile(path) {
		return nil, []byte("sh: 1: " + path + ": not found"), 127, nil
	}
	if !d.fs.IsExecutable(path) {
		return nil, []byte("sh: 1: " + path + ": Permission denied"), 126, nil
	}

	d.mu.Lock()
	resp := d.scripts[path]
	d.mu.Unlock()
	time.Sleep(resp.Delay)
	return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
}

// extractPath extracts a path from a command argument.
// Handles both quoted and unquoted paths.
func extractPath(arg string) string {
	arg = strings.TrimSpace(arg)

	if strings.HasPrefix(arg, "\"") {
		endQuote := strings.Index(arg[1:], "\"")
		if endQuote != -1 {
			return arg[1 : endQuote+1]
		}
	}
	if strings.HasPrefix(arg, "'") {
		endQuote := strings.Index(arg[1:], "'")
		if endQuote != -1 {
			return arg[1 : endQuote+1]
		}
	}

	parts := strings.Fields(arg)
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}
