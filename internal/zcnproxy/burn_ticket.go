package zcnproxy

import (
	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/bind"
	"github.com/danmuck/zcnbind/internal/foreign/zcncore"
)

// BurnTicket proxies a zcncore.BurnTicket.
type BurnTicket struct {
	obj *bind.Object
}

// NewBurnTicket allocates a foreign ticket from hash and nonce.
func NewBurnTicket(b *bind.Bridge, hash string, nonce int64) (*BurnTicket, error) {
	obj, err := b.New(zcncore.BurnTicketClass, []abi.Value{abi.String(hash), abi.Int64(nonce)})
	if err != nil {
		return nil, err
	}
	return &BurnTicket{obj: obj}, nil
}

// AdoptBurnTicket wraps a ticket handle received from the foreign side.
func AdoptBurnTicket(b *bind.Bridge, h abi.Handle) (*BurnTicket, error) {
	obj, err := b.Adopt(zcncore.BurnTicketClass, h)
	if err != nil {
		return nil, err
	}
	return &BurnTicket{obj: obj}, nil
}

func (t *BurnTicket) Object() *bind.Object {
	return t.obj
}

func (t *BurnTicket) Handle() abi.Handle {
	return t.obj.Handle()
}

func (t *BurnTicket) Hash() (string, error) {
	return t.obj.GetString("Hash")
}

func (t *BurnTicket) SetHash(v string) error {
	return t.obj.SetString("Hash", v)
}

func (t *BurnTicket) Nonce() (int64, error) {
	return t.obj.GetInt64("Nonce")
}

func (t *BurnTicket) SetNonce(v int64) error {
	return t.obj.SetInt64("Nonce", v)
}

func (t *BurnTicket) Equal(o *BurnTicket) (bool, error) {
	if o == nil {
		return false, nil
	}
	return t.obj.Equal(o.obj)
}

func (t *BurnTicket) HashCode() (int32, error) {
	return t.obj.HashCode()
}

func (t *BurnTicket) Describe() (string, error) {
	return t.obj.Describe()
}

func (t *BurnTicket) String() string {
	return t.obj.String()
}

func (t *BurnTicket) Release() error {
	return t.obj.Release()
}
