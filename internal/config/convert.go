package config

import (
	"fmt"

	"github.com/danmuck/zcnbind/internal/foreign/zcncore"
	"github.com/danmuck/zcnbind/internal/protocol/wire"
)

// WireConfig maps the host file onto server transport settings.
func (c HostConfig) WireConfig() wire.Config {
	cfg := wire.DefaultConfig()
	if c.WriteTimeout.Duration > 0 {
		cfg.WriteTimeout = c.WriteTimeout.Duration
	}
	cfg.AuthToken = c.AuthToken
	cfg.TLS = wire.TLSConfig{
		Enabled:  c.TLS.Enabled,
		Mutual:   c.TLS.Mutual,
		CertFile: c.TLS.CertFile,
		KeyFile:  c.TLS.KeyFile,
		CAFile:   c.TLS.CAFile,
	}
	return cfg
}

// SeedDirectory loads the configured clients and burn tickets into d.
func (c HostConfig) SeedDirectory(d *zcncore.Directory) error {
	for i, entry := range c.Clients {
		err := d.PutClient(zcncore.GetClientResponse{
			ID:           entry.ID,
			Version:      entry.Version,
			CreationDate: int(entry.CreationDate),
			PublicKey:    entry.PublicKey,
		})
		if err != nil {
			return fmt.Errorf("clients[%d]: %w", i, err)
		}
	}
	for i, entry := range c.BurnTickets {
		ticket := zcncore.BurnTicket{Hash: entry.Hash, Nonce: entry.Nonce}
		if err := d.AddBurnTicketJSON(entry.EthereumAddress, ticket.Encode()); err != nil {
			return fmt.Errorf("burn_tickets[%d]: %w", i, err)
		}
	}
	return nil
}
