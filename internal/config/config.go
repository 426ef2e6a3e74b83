package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// HostConfig is the bindhost configuration file.
type HostConfig struct {
	Name         string        `toml:"name"`
	Addr         string        `toml:"addr"`
	AdminAddr    string        `toml:"admin_addr"`
	CorsOrigins  []string      `toml:"cors_origins"`
	WriteTimeout Duration      `toml:"write_timeout"`
	AuthToken    string        `toml:"auth_token"`
	TLS          TLSConfig     `toml:"tls"`
	Clients      []ClientEntry `toml:"clients"`
	BurnTickets  []TicketEntry `toml:"burn_tickets"`
}

type TLSConfig struct {
	Enabled  bool   `toml:"enabled"`
	Mutual   bool   `toml:"mutual"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
	CAFile   string `toml:"ca_file"`
}

// ClientEntry seeds one client details document.
type ClientEntry struct {
	ID           string `toml:"id"`
	Version      string `toml:"version"`
	CreationDate int64  `toml:"creation_date"`
	PublicKey    string `toml:"public_key"`
}

// TicketEntry seeds one unprocessed burn ticket.
type TicketEntry struct {
	EthereumAddress string `toml:"ethereum_address"`
	Hash            string `toml:"hash"`
	Nonce           int64  `toml:"nonce"`
}

// Duration decodes TOML strings such as "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

const (
	DefaultName      = "bindhost"
	DefaultAddr      = "127.0.0.1:7420"
	DefaultAdminAddr = "127.0.0.1:7421"
)

func LoadHostConfig(path string) (HostConfig, error) {
	var cfg HostConfig
	if err := loadToml(path, &cfg); err != nil {
		return HostConfig{}, err
	}
	cfg = cfg.WithDefaults()
	if err := ValidateHostConfig(cfg); err != nil {
		return HostConfig{}, err
	}
	return cfg, nil
}

// ParseHostConfig decodes and validates config bytes.
func ParseHostConfig(data []byte) (HostConfig, error) {
	var cfg HostConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return HostConfig{}, fmt.Errorf("config parse failed: %w", err)
	}
	cfg = cfg.WithDefaults()
	if err := ValidateHostConfig(cfg); err != nil {
		return HostConfig{}, err
	}
	return cfg, nil
}

func (c HostConfig) WithDefaults() HostConfig {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = DefaultName
	}
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = DefaultAddr
	}
	return c
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// ValidateHostConfig checks addresses, TLS files and seed entries.
// An empty admin_addr disables the admin server.
func ValidateHostConfig(cfg HostConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("host config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("host config missing addr")
	}
	if cfg.AdminAddr != "" && strings.TrimSpace(cfg.AdminAddr) == strings.TrimSpace(cfg.Addr) {
		return fmt.Errorf("admin_addr must differ from addr")
	}
	if cfg.WriteTimeout.Duration < 0 {
		return fmt.Errorf("write_timeout must not be negative")
	}
	if cfg.TLS.Mutual && !cfg.TLS.Enabled {
		return fmt.Errorf("tls.mutual requires tls.enabled")
	}
	if cfg.TLS.Enabled && (strings.TrimSpace(cfg.TLS.CertFile) == "" || strings.TrimSpace(cfg.TLS.KeyFile) == "") {
		return fmt.Errorf("tls.enabled requires cert_file and key_file")
	}
	if cfg.TLS.Mutual && strings.TrimSpace(cfg.TLS.CAFile) == "" {
		return fmt.Errorf("tls.mutual requires ca_file")
	}
	seen := make(map[string]struct{}, len(cfg.Clients))
	for i, c := range cfg.Clients {
		if err := ValidateClientEntry(c); err != nil {
			return fmt.Errorf("clients[%d] invalid: %w", i, err)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("clients[%d] duplicate id %q", i, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	for i, t := range cfg.BurnTickets {
		if err := ValidateTicketEntry(t); err != nil {
			return fmt.Errorf("burn_tickets[%d] invalid: %w", i, err)
		}
	}
	return nil
}

func ValidateClientEntry(c ClientEntry) error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if c.CreationDate < 0 {
		return fmt.Errorf("creation_date must not be negative")
	}
	return nil
}

func ValidateTicketEntry(t TicketEntry) error {
	if strings.TrimSpace(t.EthereumAddress) == "" {
		return fmt.Errorf("ethereum_address is required")
	}
	if strings.TrimSpace(t.Hash) == "" {
		return fmt.Errorf("hash is required")
	}
	return nil
}
