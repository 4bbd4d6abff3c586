package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/drunlade/go-scp/scp"
)

type fileConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	IdentityFile string `toml:"identity_file"`
	RemoteBinary string `toml:"remote_binary"`
	UseSFTP      bool   `toml:"use_sftp"`
	LogFile      string `toml:"log_file"`
}

type clientConfig struct {
	Host         string
	Port         int
	User         string
	IdentityFile string
	RemoteBinary string
	UseSFTP      bool
	LogFile      string
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		Port:         22,
		RemoteBinary: scp.DefaultRemoteBinary,
	}
}

func loadClientConfig(path string) (clientConfig, error) {
	cfg := defaultClientConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return clientConfig{}, fmt.Errorf("load gscp config: %w", err)
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}

	if meta.IsDefined("port") {
		if raw.Port <= 0 || raw.Port > 65535 {
			return clientConfig{}, fmt.Errorf("invalid port %d", raw.Port)
		}
		cfg.Port = raw.Port
	}

	if meta.IsDefined("user") {
		cfg.User = strings.TrimSpace(raw.User)
	}

	if meta.IsDefined("identity_file") {
		cfg.IdentityFile = strings.TrimSpace(raw.IdentityFile)
	}

	if meta.IsDefined("remote_binary") {
		bin := strings.TrimSpace(raw.RemoteBinary)
		if bin != "" {
			cfg.RemoteBinary = bin
		}
	}

	if meta.IsDefined("use_sftp") {
		cfg.UseSFTP = raw.UseSFTP
	}

	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}

	return cfg, nil
}
