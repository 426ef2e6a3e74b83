package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/zcnbind/internal/bind"
	"github.com/danmuck/zcnbind/internal/zcnproxy"
	"github.com/spf13/cobra"
)

func newTicketCmd(opts *rootOptions) *cobra.Command {
	ticket := &cobra.Command{
		Use:   "ticket",
		Short: "Work with BurnTicket records",
	}
	var keep bool
	newCmd := &cobra.Command{
		Use:   "new <hash> <nonce>",
		Short: "Allocate a BurnTicket on the host and print it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nonce, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("nonce must be an int64: %w", err)
			}
			return opts.withBridge(cmd, func(b *bind.Bridge) error {
				return runTicketNew(cmd.OutOrStdout(), b, args[0], nonce, keep)
			})
		},
	}
	newCmd.Flags().BoolVar(&keep, "keep", false, "leave the ticket allocated on the host")
	ticket.AddCommand(newCmd)
	return ticket
}

func runTicketNew(w io.Writer, b *bind.Bridge, hash string, nonce int64, keep bool) error {
	t, err := zcnproxy.NewBurnTicket(b, hash, nonce)
	if err != nil {
		return err
	}
	code, err := t.HashCode()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s hash_code=%d\n", t.Handle(), t, code)
	if keep {
		return nil
	}
	return t.Release()
}

func newClientCmd(opts *rootOptions) *cobra.Command {
	client := &cobra.Command{
		Use:   "client",
		Short: "Query client details",
	}
	client.AddCommand(&cobra.Command{
		Use:   "get <client-id>",
		Short: "Fetch GetClientResponse for a client id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBridge(cmd, func(b *bind.Bridge) error {
				return runClientGet(cmd.OutOrStdout(), b, args[0])
			})
		},
	})
	return client
}

func runClientGet(w io.Writer, b *bind.Bridge, clientID string) error {
	c, err := zcnproxy.GetClientDetails(b, clientID)
	if err != nil {
		return err
	}
	defer c.Release()
	fmt.Fprintln(w, c.String())
	return nil
}

func newTicketsCmd(opts *rootOptions) *cobra.Command {
	tickets := &cobra.Command{
		Use:   "tickets",
		Short: "Query burn tickets",
	}
	var (
		process    bool
		startNonce int64
	)
	pending := &cobra.Command{
		Use:   "pending <ethereum-address>",
		Short: "List unprocessed burn tickets for an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBridge(cmd, func(b *bind.Bridge) error {
				return runTicketsPending(cmd.OutOrStdout(), b, args[0], startNonce, process)
			})
		},
	}
	pending.Flags().BoolVar(&process, "process", false, "mark every listed ticket processed")
	pending.Flags().Int64Var(&startNonce, "nonce", 0, "only list tickets with a nonce at or above this one")
	tickets.AddCommand(pending)
	return tickets
}

func runTicketsPending(w io.Writer, b *bind.Bridge, addr string, startNonce int64, process bool) error {
	list, err := zcnproxy.GetNotProcessedZCNBurnTickets(b, addr, startNonce)
	if err != nil {
		return err
	}
	defer func() {
		for _, t := range list {
			_ = t.Release()
		}
	}()
	if len(list) == 0 {
		fmt.Fprintf(w, "no pending tickets for %s\n", addr)
		return nil
	}
	for _, t := range list {
		fmt.Fprintln(w, t.String())
		if process {
			if err := zcnproxy.ProcessBurnTicket(b, t); err != nil {
				return err
			}
		}
	}
	if process {
		fmt.Fprintf(w, "processed %d tickets\n", len(list))
	}
	return nil
}

type handlesResponse struct {
	Stats struct {
		Live      int64 `json:"live"`
		Allocated int64 `json:"allocated"`
		Released  int64 `json:"released"`
	} `json:"stats"`
	Handles []struct {
		Handle int32  `json:"handle"`
		Class  string `json:"class"`
		Refs   int32  `json:"refs"`
	} `json:"handles"`
}

func newHandlesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "handles",
		Short: "List live handles on the host via its admin surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHandles(cmd.OutOrStdout(), &http.Client{Timeout: 5 * time.Second}, opts.adminURL)
		},
	}
}

func runHandles(w io.Writer, client *http.Client, adminURL string) error {
	resp, err := client.Get(strings.TrimRight(adminURL, "/") + "/handles")
	if err != nil {
		return fmt.Errorf("failed to reach admin: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("admin returned %s", resp.Status)
	}
	var body handlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode handles: %w", err)
	}
	fmt.Fprintf(w, "live=%d allocated=%d released=%d\n", body.Stats.Live, body.Stats.Allocated, body.Stats.Released)
	for _, h := range body.Handles {
		fmt.Fprintf(w, "refnum:%d\t%s\trefs=%d\n", h.Handle, h.Class, h.Refs)
	}
	return nil
}
