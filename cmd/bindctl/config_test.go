package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/zcnbind/internal/protocol/wire"
	"github.com/danmuck/zcnbind/internal/testutil/testlog"
)

func TestLoadCtlConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadCtlConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != "127.0.0.1:7520" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
	if cfg.Wire.DialTimeout != 2*time.Second || cfg.Wire.CallTimeout != 3*time.Second {
		t.Fatalf("unexpected timeouts: dial=%v call=%v", cfg.Wire.DialTimeout, cfg.Wire.CallTimeout)
	}
	if cfg.Wire.MaxDialAttempts != 4 {
		t.Fatalf("unexpected attempts: %d", cfg.Wire.MaxDialAttempts)
	}
	if cfg.Wire.WriteTimeout != wire.DefaultConfig().WriteTimeout {
		t.Fatalf("write timeout should keep default: %v", cfg.Wire.WriteTimeout)
	}
	if cfg.Wire.AuthToken != "dev-token" {
		t.Fatalf("unexpected auth token: %q", cfg.Wire.AuthToken)
	}
	if cfg.Wire.TLS.Enabled {
		t.Fatalf("expected tls disabled")
	}
}

func TestLoadCtlConfigEmptyPathUsesDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadCtlConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != defaultAddr || cfg.Wire.MaxDialAttempts != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadCtlConfigRejects(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("dial_timeout = \"later\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadCtlConfig(bad); err == nil {
		t.Fatalf("expected duration parse error")
	}

	noCA := filepath.Join(dir, "noca.toml")
	if err := os.WriteFile(noCA, []byte("[tls]\nenabled = true\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadCtlConfig(noCA); !errors.Is(err, wire.ErrTLSCAFileRequired) {
		t.Fatalf("expected ca file error, got %v", err)
	}

	if _, err := loadCtlConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
