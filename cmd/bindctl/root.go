package main

import (
	"context"
	"strings"

	"github.com/danmuck/zcnbind/internal/bind"
	"github.com/danmuck/zcnbind/internal/logging"
	"github.com/danmuck/zcnbind/internal/observability"
	"github.com/danmuck/zcnbind/internal/transport"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	addr       string
	adminURL   string
	dial       func(ctx context.Context) (*bind.Bridge, error)
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&rootOptions{})
}

func buildRootCmd(opts *rootOptions) *cobra.Command {
	if opts.dial == nil {
		opts.dial = opts.dialBridge
	}

	root := &cobra.Command{
		Use:           "bindctl",
		Short:         "Drive a bindhost over the handle bridge",
		Long:          `bindctl creates and queries zcncore records held by a running bindhost through refnum proxies.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.ConfigureRuntime()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "bindctl config file (TOML)")
	root.PersistentFlags().StringVar(&opts.addr, "addr", "", "bindhost bridge address (overrides config)")
	root.PersistentFlags().StringVar(&opts.adminURL, "admin", "http://127.0.0.1:7421", "bindhost admin base URL")

	root.AddCommand(newTicketCmd(opts))
	root.AddCommand(newClientCmd(opts))
	root.AddCommand(newTicketsCmd(opts))
	root.AddCommand(newHandlesCmd(opts))
	return root
}

func (o *rootOptions) dialBridge(ctx context.Context) (*bind.Bridge, error) {
	cfg, err := loadCtlConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if addr := strings.TrimSpace(o.addr); addr != "" {
		cfg.Addr = addr
	}
	c, err := transport.Dial(ctx, cfg.Addr, cfg.Wire)
	if err != nil {
		return nil, err
	}
	return bind.NewBridge(c, bind.WithRecorder(observability.BoundaryRecorder("local"))), nil
}

// withBridge dials, runs fn and closes the bridge.
func (o *rootOptions) withBridge(cmd *cobra.Command, fn func(b *bind.Bridge) error) error {
	b, err := o.dial(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}
