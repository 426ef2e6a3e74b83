package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/zcnbind/internal/protocol/wire"
)

type fileConfig struct {
	Addr            string  `toml:"addr"`
	DialTimeout     string  `toml:"dial_timeout"`
	CallTimeout     string  `toml:"call_timeout"`
	MaxDialAttempts int     `toml:"max_dial_attempts"`
	AuthToken       string  `toml:"auth_token"`
	TLS             fileTLS `toml:"tls"`
}

type fileTLS struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// ctlConfig is the resolved bindctl connection setup.
type ctlConfig struct {
	Addr string
	Wire wire.Config
}

const defaultAddr = "127.0.0.1:7420"

func defaultCtlConfig() ctlConfig {
	w := wire.DefaultConfig()
	w.MaxDialAttempts = 3
	w.CallTimeout = 10 * time.Second
	return ctlConfig{Addr: defaultAddr, Wire: w}
}

// loadCtlConfig overlays the keys present in path onto the defaults.
func loadCtlConfig(path string) (ctlConfig, error) {
	cfg := defaultCtlConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ctlConfig{}, fmt.Errorf("load bindctl config: %w", err)
	}

	if meta.IsDefined("addr") {
		if addr := strings.TrimSpace(raw.Addr); addr != "" {
			cfg.Addr = addr
		}
	}
	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return ctlConfig{}, fmt.Errorf("parse dial_timeout: %w", err)
		}
		cfg.Wire.DialTimeout = d
	}
	if meta.IsDefined("call_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.CallTimeout))
		if err != nil {
			return ctlConfig{}, fmt.Errorf("parse call_timeout: %w", err)
		}
		cfg.Wire.CallTimeout = d
	}
	if meta.IsDefined("max_dial_attempts") {
		cfg.Wire.MaxDialAttempts = raw.MaxDialAttempts
	}
	if meta.IsDefined("auth_token") {
		cfg.Wire.AuthToken = strings.TrimSpace(raw.AuthToken)
	}
	if meta.IsDefined("tls", "enabled") {
		cfg.Wire.TLS.Enabled = raw.TLS.Enabled
	}
	if meta.IsDefined("tls", "mutual") {
		cfg.Wire.TLS.Mutual = raw.TLS.Mutual
	}
	if meta.IsDefined("tls", "cert_file") {
		cfg.Wire.TLS.CertFile = strings.TrimSpace(raw.TLS.CertFile)
	}
	if meta.IsDefined("tls", "key_file") {
		cfg.Wire.TLS.KeyFile = strings.TrimSpace(raw.TLS.KeyFile)
	}
	if meta.IsDefined("tls", "ca_file") {
		cfg.Wire.TLS.CAFile = strings.TrimSpace(raw.TLS.CAFile)
	}
	if meta.IsDefined("tls", "server_name") {
		cfg.Wire.TLS.ServerName = strings.TrimSpace(raw.TLS.ServerName)
	}
	if meta.IsDefined("tls", "insecure_skip_verify") {
		cfg.Wire.TLS.InsecureSkipVerify = raw.TLS.InsecureSkipVerify
	}

	if err := cfg.Wire.ValidateClientTransport(); err != nil {
		return ctlConfig{}, err
	}
	return cfg, nil
}
