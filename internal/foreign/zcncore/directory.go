package zcncore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/foreign"
	"github.com/rs/zerolog/log"
)

// Directory answers client and burn ticket queries from in-memory documents.
type Directory struct {
	mu      sync.RWMutex
	clients map[string][]byte
	tickets map[string]BurnTickets
}

func NewDirectory() *Directory {
	return &Directory{
		clients: make(map[string][]byte),
		tickets: make(map[string]BurnTickets),
	}
}

// PutClientJSON stores one client details document keyed by its id.
func (d *Directory) PutClientJSON(doc []byte) error {
	var probe GetClientResponse
	if err := json.Unmarshal(doc, &probe); err != nil {
		return fmt.Errorf("%w: client document: %v", abi.ErrInvalidArgument, err)
	}
	id := strings.TrimSpace(probe.ID)
	if id == "" {
		return fmt.Errorf("%w: client document missing id", abi.ErrInvalidArgument)
	}
	buf := make([]byte, len(doc))
	copy(buf, doc)
	d.mu.Lock()
	d.clients[id] = buf
	d.mu.Unlock()
	return nil
}

func (d *Directory) PutClient(c GetClientResponse) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return d.PutClientJSON(doc)
}

// AddBurnTickets queues unprocessed tickets for an ethereum address.
func (d *Directory) AddBurnTickets(ethereumAddress string, tickets ...BurnTicket) {
	key := normalizeAddress(ethereumAddress)
	if key == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tickets[key] = append(d.tickets[key], tickets...)
}

// AddBurnTicketJSON queues one ticket document for an ethereum address.
func (d *Directory) AddBurnTicketJSON(ethereumAddress string, doc []byte) error {
	if normalizeAddress(ethereumAddress) == "" {
		return fmt.Errorf("%w: burn ticket missing ethereum address", abi.ErrInvalidArgument)
	}
	var ticket BurnTicket
	if err := ticket.Decode(doc); err != nil {
		return fmt.Errorf("%w: burn ticket document: %v", abi.ErrInvalidArgument, err)
	}
	if strings.TrimSpace(ticket.Hash) == "" {
		return fmt.Errorf("%w: burn ticket document missing hash", abi.ErrInvalidArgument)
	}
	d.AddBurnTickets(ethereumAddress, ticket)
	return nil
}

// ClientIDs lists known client ids in order.
func (d *Directory) ClientIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.clients))
	for id := range d.clients {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GetClientDetails decodes the stored document for clientID into a fresh record.
func (d *Directory) GetClientDetails(clientID string) (*GetClientResponse, error) {
	d.mu.RLock()
	doc, ok := d.clients[strings.TrimSpace(clientID)]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: client %q not found", abi.ErrInvalidArgument, clientID)
	}
	var clientDetails GetClientResponse
	if err := json.Unmarshal(doc, &clientDetails); err != nil {
		return nil, err
	}
	return &clientDetails, nil
}

// GetNotProcessedZCNBurnTickets returns copies of the pending tickets for an
// address whose nonce is at least startNonce.
func (d *Directory) GetNotProcessedZCNBurnTickets(ethereumAddress string, startNonce int64) BurnTickets {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pending := d.tickets[normalizeAddress(ethereumAddress)]
	out := make(BurnTickets, 0, len(pending))
	for _, ticket := range pending {
		if ticket.Nonce >= startNonce {
			out = append(out, ticket)
		}
	}
	return out
}

// MarkProcessed drops every pending ticket with hash and returns how many were removed.
func (d *Directory) MarkProcessed(hash string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for addr, pending := range d.tickets {
		kept := pending[:0]
		for _, ticket := range pending {
			if ticket.Hash == hash {
				removed++
				continue
			}
			kept = append(kept, ticket)
		}
		d.tickets[addr] = kept
	}
	return removed
}

// Register binds both record classes on heap and exposes directory queries.
func Register(heap *foreign.Heap, d *Directory) error {
	if err := heap.Bind(BurnTicketClass, BurnTicket{}); err != nil {
		return err
	}
	if err := heap.Bind(GetClientResponseClass, GetClientResponse{}); err != nil {
		return err
	}
	if d == nil {
		return nil
	}
	err := heap.Register(FuncGetClientDetails, func(args []abi.Value) ([]any, error) {
		id, err := stringArg(FuncGetClientDetails, args)
		if err != nil {
			return nil, err
		}
		details, err := d.GetClientDetails(id)
		if err != nil {
			log.Warn().Str("client_id", id).Err(err).Msg("client details lookup failed")
			return nil, err
		}
		return []any{details}, nil
	})
	if err != nil {
		return err
	}
	err = heap.Register(FuncProcessBurnTicket, func(args []abi.Value) ([]any, error) {
		if len(args) != 1 || args[0].Kind != abi.KindRef {
			return nil, fmt.Errorf("%w: %s takes one ticket ref", abi.ErrInvalidArgument, FuncProcessBurnTicket)
		}
		hash, err := heap.Get(args[0].Ref, "Hash")
		if err != nil {
			return nil, err
		}
		removed := d.MarkProcessed(hash.Str)
		log.Info().Str("hash", hash.Str).Int("removed", removed).Msg("burn ticket processed")
		return nil, nil
	})
	if err != nil {
		return err
	}
	return heap.Register(FuncGetNotProcessedZCNBurnTickets, func(args []abi.Value) ([]any, error) {
		addr, startNonce, err := addressNonceArgs(FuncGetNotProcessedZCNBurnTickets, args)
		if err != nil {
			return nil, err
		}
		pending := d.GetNotProcessedZCNBurnTickets(addr, startNonce)
		out := make([]any, 0, len(pending))
		for i := range pending {
			out = append(out, &pending[i])
		}
		return out, nil
	})
}

func stringArg(fn string, args []abi.Value) (string, error) {
	if len(args) != 1 || args[0].Kind != abi.KindString {
		return "", fmt.Errorf("%w: %s takes one text argument", abi.ErrInvalidArgument, fn)
	}
	return args[0].Str, nil
}

func addressNonceArgs(fn string, args []abi.Value) (string, int64, error) {
	if len(args) != 2 || args[0].Kind != abi.KindString || args[1].Kind != abi.KindInt64 {
		return "", 0, fmt.Errorf("%w: %s takes an address and a start nonce", abi.ErrInvalidArgument, fn)
	}
	return args[0].Str, args[1].Int, nil
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
