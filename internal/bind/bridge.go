package bind

import (
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/rs/zerolog/log"
)

// Recorder observes one completed boundary call.
type Recorder func(op string, d time.Duration, err error)

type Option func(*Bridge)

// WithRecorder installs a boundary call observer.
func WithRecorder(r Recorder) Option {
	return func(b *Bridge) {
		b.record = r
	}
}

// WithTable shares an existing registration table.
func WithTable(t *Table) Option {
	return func(b *Bridge) {
		if t != nil {
			b.refs = t
		}
	}
}

// Bridge joins one Boundary with its registration table.
type Bridge struct {
	boundary    Boundary
	refs        *Table
	record      Recorder
	unsubscribe func()
	closeOnce   sync.Once
}

func NewBridge(boundary Boundary, opts ...Option) *Bridge {
	b := &Bridge{
		boundary: boundary,
		refs:     NewTable(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.unsubscribe = boundary.OnRelease(b.released)
	return b
}

// Table exposes the registration table.
func (b *Bridge) Table() *Table {
	return b.refs
}

// New allocates a foreign object of class from values and returns its proxy.
func (b *Bridge) New(class abi.Class, values []abi.Value) (*Object, error) {
	if err := class.Check(values); err != nil {
		return nil, err
	}
	var h abi.Handle
	err := b.call("new", func() error {
		var err error
		h, err = b.boundary.New(class.Name, values)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("new %s: %w", class.Name, err)
	}
	return b.register(class, h)
}

// Adopt wraps a handle received from the foreign side without allocating. The
// foreign reference h carries becomes the proxy's; if adoption fails it is
// released.
func (b *Bridge) Adopt(class abi.Class, h abi.Handle) (*Object, error) {
	if err := class.Validate(); err != nil {
		b.dropForeign(h)
		return nil, err
	}
	return b.register(class, h)
}

// IncRef records that obj's handle is about to cross the boundary again: the foreign
// count and the local entry both gain one reference.
func (b *Bridge) IncRef(obj *Object) error {
	if obj == nil {
		return fmt.Errorf("%w: nil proxy", abi.ErrInvalidArgument)
	}
	if err := b.refs.IncRef(obj.handle, obj); err != nil {
		return err
	}
	err := b.call("inc_ref", func() error {
		return b.boundary.IncRef(obj.handle)
	})
	if err != nil {
		_, _ = b.refs.DecRef(obj.handle)
		return err
	}
	return nil
}

// Invoke calls a foreign function and adopts every returned handle as class.
// Proxies passed in refs are transferred with one extra reference each. On any
// failure every reference taken for the call is given back.
func (b *Bridge) Invoke(fn string, class abi.Class, refs []*Object, args ...abi.Value) ([]*Object, error) {
	if err := class.Validate(); err != nil {
		return nil, fmt.Errorf("invoke %s: %w", fn, err)
	}
	all := make([]abi.Value, 0, len(refs)+len(args))
	transferred := make([]*Object, 0, len(refs))
	defer func() {
		// Local counts only; the foreign side consumes or returns its own.
		for _, obj := range transferred {
			_, _ = b.refs.DecRef(obj.handle)
		}
	}()
	for _, obj := range refs {
		if err := b.IncRef(obj); err != nil {
			// The call never happened, so nobody consumed the extra foreign refs.
			for _, prev := range transferred {
				b.dropForeign(prev.handle)
			}
			return nil, fmt.Errorf("invoke %s: %w", fn, err)
		}
		transferred = append(transferred, obj)
		all = append(all, abi.Ref(obj.handle))
	}
	all = append(all, args...)

	var handles []abi.Handle
	err := b.call("invoke", func() error {
		var err error
		handles, err = b.boundary.Invoke(fn, all)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", fn, err)
	}
	out := make([]*Object, 0, len(handles))
	for i, h := range handles {
		obj, err := b.register(class, h)
		if err != nil {
			for _, prev := range out {
				_ = prev.Release()
			}
			for _, rest := range handles[i+1:] {
				b.dropForeign(rest)
			}
			return nil, fmt.Errorf("invoke %s: %w", fn, err)
		}
		out = append(out, obj)
	}
	return out, nil
}

// Close stops release notifications and closes the boundary.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.unsubscribe != nil {
			b.unsubscribe()
		}
		err = b.boundary.Close()
	})
	return err
}

// register takes over the foreign reference h carries. When h is already
// proxied as another class the local reference is undone and the foreign one
// released.
func (b *Bridge) register(class abi.Class, h abi.Handle) (*Object, error) {
	obj, err := b.refs.Register(h, &Object{bridge: b, class: class, handle: h})
	if err != nil {
		return nil, err
	}
	if obj.class.Name != class.Name {
		_, _ = b.refs.DecRef(h)
		b.dropForeign(h)
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", abi.ErrInvalidArgument, h, obj.class.Name, class.Name)
	}
	log.Debug().Int32("handle", int32(h)).Str("class", class.Name).Msg("proxy registered")
	return obj, nil
}

// dropForeign gives back one foreign reference that no proxy owns.
func (b *Bridge) dropForeign(h abi.Handle) {
	if !h.Valid() {
		return
	}
	err := b.call("dec_ref", func() error {
		return b.boundary.DecRef(h)
	})
	if err != nil {
		log.Warn().Int32("handle", int32(h)).Err(err).Msg("foreign reference not returned")
	}
}

func (b *Bridge) released(h abi.Handle) {
	b.refs.Released(h)
	log.Debug().Int32("handle", int32(h)).Msg("proxy deregistered on release")
}

func (b *Bridge) call(op string, fn func() error) error {
	if b.record == nil {
		return fn()
	}
	start := time.Now()
	err := fn()
	b.record(op, time.Since(start), err)
	return err
}
