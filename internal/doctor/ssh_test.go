package doctor

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/computergenieco/pimon/internal/config"
	"golang.org/x/crypto/ssh"
)

func writeKey(t *testing.T, passphrase string, perm os.FileMode) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	if err != nil {
		t.Fatal(err)
	}
	return writeFile(t, "id_ed25519", string(pem.EncodeToMemory(block)), perm)
}

func TestCredentialsCheck(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	t.Run("password only", func(t *testing.T) {
		r := run(context.Background(), &CredentialsCheck{Collector: config.CollectorConfig{Username: "pi", Password: "secret"}})
		if r.Status != StatusPass {
			t.Fatalf("expected pass, got %v: %s", r.Status, r.Message)
		}
		if r.Message != "user pi via password" {
			t.Errorf("unexpected message %q", r.Message)
		}
	})

	t.Run("no method", func(t *testing.T) {
		r := run(context.Background(), &CredentialsCheck{Collector: config.CollectorConfig{Username: "pi"}})
		if r.Status != StatusFail {
			t.Errorf("expected fail, got %v", r.Status)
		}
	})

	t.Run("key file", func(t *testing.T) {
		key := writeKey(t, "", 0o600)
		r := run(context.Background(), &CredentialsCheck{Collector: config.CollectorConfig{Username: "pi", IdentityFile: key}})
		if r.Status != StatusPass {
			t.Fatalf("expected pass, got %v: %s", r.Status, r.Message)
		}
		if !strings.Contains(r.Message, "key "+key) {
			t.Errorf("message should name the key: %s", r.Message)
		}
	})

	t.Run("loose key permissions", func(t *testing.T) {
		key := writeKey(t, "", 0o644)
		if err := os.Chmod(key, 0o644); err != nil {
			t.Fatal(err)
		}
		r := run(context.Background(), &CredentialsCheck{Collector: config.CollectorConfig{Username: "pi", IdentityFile: key}})
		if r.Status != StatusWarn {
			t.Errorf("expected warn, got %v: %s", r.Status, r.Message)
		}
	})

	t.Run("passphrase protected key", func(t *testing.T) {
		key := writeKey(t, "hunter2", 0o600)
		r := run(context.Background(), &CredentialsCheck{Collector: config.CollectorConfig{Username: "pi", IdentityFile: key, Password: "x"}})
		if r.Status != StatusFail {
			t.Fatalf("expected fail, got %v", r.Status)
		}
		if !strings.Contains(r.Message, "passphrase") {
			t.Errorf("message should mention the passphrase: %s", r.Message)
		}
	})

	t.Run("not a key", func(t *testing.T) {
		path := writeFile(t, "id_rsa", "hello", 0o600)
		r := run(context.Background(), &CredentialsCheck{Collector: config.CollectorConfig{Username: "pi", IdentityFile: path}})
		if r.Status != StatusFail {
			t.Errorf("expected fail, got %v", r.Status)
		}
	})

	t.Run("agent without socket", func(t *testing.T) {
		r := run(context.Background(), &CredentialsCheck{Collector: config.CollectorConfig{Username: "pi", UseAgent: true, Password: "x"}})
		if r.Status != StatusWarn {
			t.Errorf("expected warn, got %v: %s", r.Status, r.Message)
		}
		if !strings.Contains(r.Message, "SSH_AUTH_SOCK") {
			t.Errorf("message should mention SSH_AUTH_SOCK: %s", r.Message)
		}
	})
}

func TestKnownHostsCheck(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	line := "192.168.1.40 " + string(ssh.MarshalAuthorizedKey(signer.PublicKey()))

	tests := []struct {
		name string
		cfg  func(t *testing.T) config.CollectorConfig
		want CheckStatus
	}{
		{
			name: "not strict",
			cfg:  func(*testing.T) config.CollectorConfig { return config.CollectorConfig{} },
			want: StatusWarn,
		},
		{
			name: "valid file",
			cfg: func(t *testing.T) config.CollectorConfig {
				return config.CollectorConfig{StrictHostKeyChecking: true, KnownHosts: writeFile(t, "known_hosts", line, 0o600)}
			},
			want: StatusPass,
		},
		{
			name: "missing file",
			cfg: func(t *testing.T) config.CollectorConfig {
				return config.CollectorConfig{StrictHostKeyChecking: true, KnownHosts: filepath.Join(t.TempDir(), "known_hosts")}
			},
			want: StatusFail,
		},
		{
			name: "malformed file",
			cfg: func(t *testing.T) config.CollectorConfig {
				return config.CollectorConfig{StrictHostKeyChecking: true, KnownHosts: writeFile(t, "known_hosts", "192.168.1.40 ssh-ed25519 !!!\n", 0o600)}
			},
			want: StatusFail,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := run(context.Background(), &KnownHostsCheck{Collector: tc.cfg(t)})
			if r.Status != tc.want {
				t.Errorf("got %v (%s), want %v", r.Status, r.Message, tc.want)
			}
		})
	}
}

func TestScriptCheck(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want CheckStatus
	}{
		{"built-in", func(*testing.T) string { return "" }, StatusPass},
		{"custom", func(t *testing.T) string { return writeFile(t, "temp.sh", "#!/bin/sh\necho 40000\n", 0o700) }, StatusPass},
		{"no shebang", func(t *testing.T) string { return writeFile(t, "temp.sh", "echo 40000\n", 0o700) }, StatusWarn},
		{"empty", func(t *testing.T) string { return writeFile(t, "temp.sh", "", 0o700) }, StatusFail},
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "temp.sh") }, StatusFail},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := run(context.Background(), &ScriptCheck{Path: tc.path(t)})
			if r.Status != tc.want {
				t.Errorf("got %v (%s), want %v", r.Status, r.Message, tc.want)
			}
		})
	}
}
