package bind

import "github.com/danmuck/zcnbind/internal/abi"

// Boundary is the foreign runtime as seen from the local side. Every method is a
// synchronous boundary call.
type Boundary interface {
	New(class string, values []abi.Value) (abi.Handle, error)
	Get(h abi.Handle, field string) (abi.Value, error)
	Set(h abi.Handle, field string, v abi.Value) error
	IncRef(h abi.Handle) error
	DecRef(h abi.Handle) error
	Invoke(fn string, args []abi.Value) ([]abi.Handle, error)
	// OnRelease subscribes to release notifications and returns an unsubscribe func.
	OnRelease(fn func(abi.Handle)) func()
	Close() error
}
