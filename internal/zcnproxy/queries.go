package zcnproxy

import (
	"fmt"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/bind"
	"github.com/danmuck/zcnbind/internal/foreign/zcncore"
)

// GetClientDetails asks the foreign side for a client's details and adopts the result.
func GetClientDetails(b *bind.Bridge, clientID string) (*GetClientResponse, error) {
	objs, err := b.Invoke(zcncore.FuncGetClientDetails, zcncore.GetClientResponseClass, nil, abi.String(clientID))
	if err != nil {
		return nil, err
	}
	if len(objs) != 1 {
		for _, obj := range objs {
			_ = obj.Release()
		}
		return nil, fmt.Errorf("%w: %s returned %d objects", abi.ErrInvalidArgument, zcncore.FuncGetClientDetails, len(objs))
	}
	return &GetClientResponse{obj: objs[0]}, nil
}

// GetNotProcessedZCNBurnTickets returns the pending tickets for an ethereum
// address starting at startNonce.
func GetNotProcessedZCNBurnTickets(b *bind.Bridge, ethereumAddress string, startNonce int64) ([]*BurnTicket, error) {
	objs, err := b.Invoke(zcncore.FuncGetNotProcessedZCNBurnTickets, zcncore.BurnTicketClass, nil, abi.String(ethereumAddress), abi.Int64(startNonce))
	if err != nil {
		return nil, err
	}
	out := make([]*BurnTicket, 0, len(objs))
	for _, obj := range objs {
		out = append(out, &BurnTicket{obj: obj})
	}
	return out, nil
}

// ProcessBurnTicket hands ticket to the foreign side, which marks its hash processed.
func ProcessBurnTicket(b *bind.Bridge, ticket *BurnTicket) error {
	if ticket == nil {
		return fmt.Errorf("%w: nil ticket", abi.ErrInvalidArgument)
	}
	_, err := b.Invoke(zcncore.FuncProcessBurnTicket, zcncore.BurnTicketClass, []*bind.Object{ticket.obj})
	return err
}
