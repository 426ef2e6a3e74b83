package zcnproxy

import (
	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/bind"
	"github.com/danmuck/zcnbind/internal/foreign/zcncore"
)

// GetClientResponse proxies a zcncore.GetClientResponse.
type GetClientResponse struct {
	obj *bind.Object
}

// NewGetClientResponse allocates a default-initialized foreign descriptor.
func NewGetClientResponse(b *bind.Bridge) (*GetClientResponse, error) {
	obj, err := b.New(zcncore.GetClientResponseClass, zcncore.GetClientResponseClass.Zero())
	if err != nil {
		return nil, err
	}
	return &GetClientResponse{obj: obj}, nil
}

// AdoptGetClientResponse wraps a descriptor handle received from the foreign side.
func AdoptGetClientResponse(b *bind.Bridge, h abi.Handle) (*GetClientResponse, error) {
	obj, err := b.Adopt(zcncore.GetClientResponseClass, h)
	if err != nil {
		return nil, err
	}
	return &GetClientResponse{obj: obj}, nil
}

func (c *GetClientResponse) Object() *bind.Object {
	return c.obj
}

func (c *GetClientResponse) Handle() abi.Handle {
	return c.obj.Handle()
}

func (c *GetClientResponse) ID() (string, error) {
	return c.obj.GetString("ID")
}

func (c *GetClientResponse) SetID(v string) error {
	return c.obj.SetString("ID", v)
}

func (c *GetClientResponse) Version() (string, error) {
	return c.obj.GetString("Version")
}

func (c *GetClientResponse) SetVersion(v string) error {
	return c.obj.SetString("Version", v)
}

func (c *GetClientResponse) CreationDate() (int64, error) {
	return c.obj.GetInt64("CreationDate")
}

func (c *GetClientResponse) SetCreationDate(v int64) error {
	return c.obj.SetInt64("CreationDate", v)
}

func (c *GetClientResponse) PublicKey() (string, error) {
	return c.obj.GetString("PublicKey")
}

func (c *GetClientResponse) SetPublicKey(v string) error {
	return c.obj.SetString("PublicKey", v)
}

func (c *GetClientResponse) Equal(o *GetClientResponse) (bool, error) {
	if o == nil {
		return false, nil
	}
	return c.obj.Equal(o.obj)
}

func (c *GetClientResponse) HashCode() (int32, error) {
	return c.obj.HashCode()
}

func (c *GetClientResponse) Describe() (string, error) {
	return c.obj.Describe()
}

func (c *GetClientResponse) String() string {
	return c.obj.String()
}

func (c *GetClientResponse) Release() error {
	return c.obj.Release()
}
