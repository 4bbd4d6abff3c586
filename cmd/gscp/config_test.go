package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gscp.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadClientConfig(t *testing.T) {
	path := writeConfig(t, `
host = "backup.example.com"
port = 2222
user = "deploy"
identity_file = "/home/deploy/.ssh/id_ed25519"
remote_binary = "/usr/local/bin/scp"
use_sftp = true
log_file = "/tmp/gscp.log"
`)

	cfg, err := loadClientConfig(path)
	if err != nil {
		t.Fatalf("loadClientConfig failed: %v", err)
	}

	if cfg.Host != "backup.example.com" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.Port != 2222 {
		t.Errorf("Port = %d, want 2222", cfg.Port)
	}
	if cfg.User != "deploy" {
		t.Errorf("User = %q", cfg.User)
	}
	if cfg.IdentityFile != "/home/deploy/.ssh/id_ed25519" {
		t.Errorf("IdentityFile = %q", cfg.IdentityFile)
	}
	if cfg.RemoteBinary != "/usr/local/bin/scp" {
		t.Errorf("RemoteBinary = %q", cfg.RemoteBinary)
	}
	if !cfg.UseSFTP {
		t.Error("UseSFTP = false, want true")
	}
	if cfg.LogFile != "/tmp/gscp.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
}

func TestLoadClientConfigDefaults(t *testing.T) {
	path := writeConfig(t, `host = "h"`)

	cfg, err := loadClientConfig(path)
	if err != nil {
		t.Fatalf("loadClientConfig failed: %v", err)
	}

	def := defaultClientConfig()
	if cfg.Port != def.Port {
		t.Errorf("Port = %d, want default %d", cfg.Port, def.Port)
	}
	if cfg.RemoteBinary != def.RemoteBinary {
		t.Errorf("RemoteBinary = %q, want default %q", cfg.RemoteBinary, def.RemoteBinary)
	}
	if cfg.UseSFTP {
		t.Error("UseSFTP = true, want default false")
	}
}

func TestLoadClientConfigInvalidPort(t *testing.T) {
	path := writeConfig(t, `port = 0`)

	if _, err := loadClientConfig(path); err == nil {
		t.Fatal("loadClientConfig succeeded with port 0, want error")
	}
}

func TestLoadClientConfigMissingFile(t *testing.T) {
	if _, err := loadClientConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("loadClientConfig succeeded on missing file, want error")
	}
}
