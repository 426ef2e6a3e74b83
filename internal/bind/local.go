package bind

import (
	"fmt"
	"sync/atomic"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/foreign"
)

// Local is an in-process Boundary over a foreign heap.
type Local struct {
	heap   *foreign.Heap
	closed atomic.Bool
}

var _ Boundary = (*Local)(nil)

func NewLocal(heap *foreign.Heap) *Local {
	return &Local{heap: heap}
}

func (l *Local) New(class string, values []abi.Value) (abi.Handle, error) {
	if err := l.check(); err != nil {
		return abi.NullHandle, err
	}
	return l.heap.New(class, values)
}

func (l *Local) Get(h abi.Handle, field string) (abi.Value, error) {
	if err := l.check(); err != nil {
		return abi.Value{}, err
	}
	return l.heap.Get(h, field)
}

func (l *Local) Set(h abi.Handle, field string, v abi.Value) error {
	if err := l.check(); err != nil {
		return err
	}
	return l.heap.Set(h, field, v)
}

func (l *Local) IncRef(h abi.Handle) error {
	if err := l.check(); err != nil {
		return err
	}
	return l.heap.IncRef(h)
}

func (l *Local) DecRef(h abi.Handle) error {
	if err := l.check(); err != nil {
		return err
	}
	return l.heap.DecRef(h)
}

func (l *Local) Invoke(fn string, args []abi.Value) ([]abi.Handle, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	return l.heap.Invoke(fn, args)
}

func (l *Local) OnRelease(fn func(abi.Handle)) func() {
	return l.heap.OnRelease(fn)
}

// Close detaches from the heap; later calls fail as unavailable.
func (l *Local) Close() error {
	l.closed.Store(true)
	return nil
}

func (l *Local) check() error {
	if l.closed.Load() {
		return fmt.Errorf("%w: local boundary closed", abi.ErrBoundaryUnavailable)
	}
	return nil
}
