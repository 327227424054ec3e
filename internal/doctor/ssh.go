package doctor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/computergenieco/pimon/internal/collect"
	"github.com/computergenieco/pimon/internal/config"
	"github.com/computergenieco/pimon/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// CredentialsCheck verifies the collector can authenticate with at least
// one method.
type CredentialsCheck struct {
	Collector config.CollectorConfig
}

func (c *CredentialsCheck) Name() string     { return "ssh_credentials" }
func (c *CredentialsCheck) Category() string { return "SSH" }

func (c *CredentialsCheck) Run(context.Context) CheckResult {
	var methods []string
	var warnings []string

	if c.Collector.IdentityFile != "" {
		msg, warn, err := checkKeyFile(c.Collector.IdentityFile)
		if err != nil {
			return CheckResult{
				Status:     StatusFail,
				Message:    err.Error(),
				Suggestion: "Fix collector.identity_file or remove it",
			}
		}
		methods = append(methods, msg)
		if warn != "" {
			warnings = append(warnings, warn)
		}
	}

	if c.Collector.UseAgent {
		n, err := agentKeys()
		switch {
		case err != nil:
			warnings = append(warnings, "use_agent is set but "+err.Error())
		case n == 0:
			warnings = append(warnings, "SSH agent has no keys loaded")
		default:
			methods = append(methods, fmt.Sprintf("agent (%d key%s)", n, pluralize(n)))
		}
	}

	if c.Collector.Password != "" {
		methods = append(methods, "password")
	}

	if len(methods) == 0 {
		return CheckResult{
			Status:     StatusFail,
			Message:    "No usable SSH authentication method",
			Suggestion: "Set collector.password, collector.identity_file or collector.use_agent",
		}
	}

	res := CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("user %s via %s", c.Collector.Username, strings.Join(methods, ", ")),
	}
	if len(warnings) > 0 {
		res.Status = StatusWarn
		res.Message += "; " + strings.Join(warnings, "; ")
		res.Suggestion = "Fix: eval $(ssh-agent) && ssh-add, or chmod 600 the key file"
	}
	return res
}

// checkKeyFile returns a description of the key and an optional warning.
func checkKeyFile(path string) (desc, warning string, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("identity file %s: %w", path, err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		warning = fmt.Sprintf("%s is readable by others (%#o)", path, info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("identity file %s: %w", path, err)
	}
	if _, err := ssh.ParsePrivateKey(data); err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) {
			return "", "", fmt.Errorf("identity file %s is passphrase protected; load it into the agent and set use_agent", path)
		}
		return "", "", fmt.Errorf("identity file %s is not a private key: %w", path, err)
	}
	return "key " + path, warning, nil
}

// agentKeys counts the keys held by the agent at SSH_AUTH_SOCK.
func agentKeys() (int, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return 0, fmt.Errorf("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return 0, fmt.Errorf("the agent socket is not reachable")
	}
	defer conn.Close()

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return 0, fmt.Errorf("the agent did not answer: %w", err)
	}
	return len(keys), nil
}

// KnownHostsCheck verifies the known_hosts file when strict host key
// checking is on.
type KnownHostsCheck struct {
	Collector config.CollectorConfig
}

func (c *KnownHostsCheck) Name() string     { return "known_hosts" }
func (c *KnownHostsCheck) Category() string { return "SSH" }

func (c *KnownHostsCheck) Run(context.Context) CheckResult {
	if !c.Collector.StrictHostKeyChecking {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "Host keys are not verified",
			Suggestion: "Set collector.strict_host_key_checking once your devices are in known_hosts",
		}
	}

	path := c.Collector.KnownHosts
	if _, err := os.Stat(path); err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("known_hosts %s: %v", path, err),
			Suggestion: "Connect to each device once with ssh, or fix collector.known_hosts",
		}
	}
	if _, err := knownhosts.New(path); err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("known_hosts %s doesn't parse: %v", path, err),
			Suggestion: "Remove the malformed line",
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: "Host keys verified against " + path,
	}
}

// ScriptCheck verifies the collector script can be loaded.
type ScriptCheck struct {
	Path string
}

func (c *ScriptCheck) Name() string     { return "collector_script" }
func (c *ScriptCheck) Category() string { return "SSH" }

func (c *ScriptCheck) Run(context.Context) CheckResult {
	script, err := collect.LoadScript(c.Path)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    errors.Oneline(err),
			Suggestion: suggestionOf(err, ""),
		}
	}

	name := c.Path
	if name == "" {
		name = "built-in get_avg_temp.sh"
	}
	if !bytes.HasPrefix(script, []byte("#!")) {
		return CheckResult{
			Status:     StatusWarn,
			Message:    name + " has no #! line",
			Suggestion: "Start the script with #!/bin/sh so the device knows how to run it",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (%d bytes)", name, len(script)),
	}
}
