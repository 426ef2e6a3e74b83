// Package zcncore holds the zcncore records served by the foreign heap and the
// functions that hand them out.
package zcncore

import (
	"encoding/json"

	"github.com/danmuck/zcnbind/internal/abi"
)

// Foreign function names.
const (
	FuncGetClientDetails              = "zcncore.GetClientDetails"
	FuncGetNotProcessedZCNBurnTickets = "zcncore.GetNotProcessedZCNBurnTickets"
	FuncProcessBurnTicket             = "zcncore.ProcessBurnTicket"
)

// BurnTicket is a signed receipt for one burn event.
type BurnTicket struct {
	Hash  string `json:"hash"`
	Nonce int64  `json:"nonce"`
}

// BurnTickets is the sharder response shape for pending tickets.
type BurnTickets []BurnTicket

func (b *BurnTicket) Encode() []byte {
	buff, _ := json.Marshal(b)
	return buff
}

func (b *BurnTicket) Decode(input []byte) error {
	return json.Unmarshal(input, b)
}

// GetClientResponse is the client details document returned by miners.
type GetClientResponse struct {
	ID           string `json:"id"`
	Version      string `json:"version"`
	CreationDate int    `json:"creation_date"`
	PublicKey    string `json:"public_key"`
}

var BurnTicketClass = abi.Class{
	Name: "BurnTicket",
	Fields: []abi.Field{
		{Name: "Hash", Kind: abi.KindString},
		{Name: "Nonce", Kind: abi.KindInt64},
	},
}

var GetClientResponseClass = abi.Class{
	Name: "GetClientResponse",
	Fields: []abi.Field{
		{Name: "ID", Kind: abi.KindString},
		{Name: "Version", Kind: abi.KindString},
		{Name: "CreationDate", Kind: abi.KindInt64},
		{Name: "PublicKey", Kind: abi.KindString},
	},
}
