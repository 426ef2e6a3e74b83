package foreign

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/rs/zerolog/log"
)

var (
	ErrClassExists    = errors.New("foreign: class already bound")
	ErrFunctionExists = errors.New("foreign: function already registered")
	ErrHandlesExhaust = errors.New("foreign: handle space exhausted")
)

// Func is a foreign function. It returns objects of bound types; the heap assigns
// each one a handle carrying one reference owned by the caller.
type Func func(args []abi.Value) ([]any, error)

// HandleInfo describes one live object.
type HandleInfo struct {
	Handle abi.Handle `json:"handle"`
	Class  string     `json:"class"`
	Refs   int32      `json:"refs"`
}

// Stats summarises heap activity.
type Stats struct {
	Live      int64 `json:"live"`
	Allocated int64 `json:"allocated"`
	Released  int64 `json:"released"`
}

type object struct {
	mu       sync.Mutex
	binding  *binding
	value    reflect.Value
	refs     int32
	released bool
}

// Heap is the foreign runtime's object store.
type Heap struct {
	mu      sync.RWMutex
	classes map[string]*binding
	types   map[reflect.Type]*binding
	funcs   map[string]Func

	next      atomic.Int32
	objects   sync.Map
	live      atomic.Int64
	allocated atomic.Int64
	released  atomic.Int64

	listenMu  sync.RWMutex
	listenSeq uint64
	listeners map[uint64]func(abi.Handle)
}

func NewHeap() *Heap {
	return &Heap{
		classes:   make(map[string]*binding),
		types:     make(map[reflect.Type]*binding),
		funcs:     make(map[string]Func),
		listeners: make(map[uint64]func(abi.Handle)),
	}
}

// Bind declares class as a view over the struct type of prototype.
func (h *Heap) Bind(class abi.Class, prototype any) error {
	b, err := newBinding(class, prototype)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.classes[class.Name]; ok {
		return fmt.Errorf("%w: %s", ErrClassExists, class.Name)
	}
	if _, ok := h.types[b.typ]; ok {
		return fmt.Errorf("%w: %s", ErrClassExists, b.typ)
	}
	h.classes[class.Name] = b
	h.types[b.typ] = b
	return nil
}

// Class returns the bound descriptor for name.
func (h *Heap) Class(name string) (abi.Class, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, ok := h.classes[name]
	if !ok {
		return abi.Class{}, false
	}
	return b.class, true
}

// Register adds a foreign function.
func (h *Heap) Register(name string, fn Func) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return fmt.Errorf("%w: function name and body are required", abi.ErrInvalidArgument)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.funcs[name]; ok {
		return fmt.Errorf("%w: %s", ErrFunctionExists, name)
	}
	h.funcs[name] = fn
	return nil
}

// OnRelease subscribes fn to release notifications. The returned func unsubscribes.
func (h *Heap) OnRelease(fn func(abi.Handle)) func() {
	h.listenMu.Lock()
	h.listenSeq++
	id := h.listenSeq
	h.listeners[id] = fn
	h.listenMu.Unlock()
	return func() {
		h.listenMu.Lock()
		delete(h.listeners, id)
		h.listenMu.Unlock()
	}
}

// New allocates an object of className from values in declaration order.
func (h *Heap) New(className string, values []abi.Value) (abi.Handle, error) {
	b, err := h.binding(className)
	if err != nil {
		return abi.NullHandle, err
	}
	if err := b.class.Check(values); err != nil {
		return abi.NullHandle, err
	}
	ptr := reflect.New(b.typ)
	for i, f := range b.class.Fields {
		if err := b.write(ptr.Elem(), f.Name, values[i]); err != nil {
			return abi.NullHandle, err
		}
	}
	return h.store(b, ptr)
}

// Put registers an existing object of a bound type.
func (h *Heap) Put(obj any) (abi.Handle, error) {
	ptr := reflect.ValueOf(obj)
	if !ptr.IsValid() || ptr.Kind() != reflect.Pointer || ptr.IsNil() {
		return abi.NullHandle, fmt.Errorf("%w: put requires a non-nil pointer, got %T", abi.ErrInvalidArgument, obj)
	}
	h.mu.RLock()
	b, ok := h.types[ptr.Type().Elem()]
	h.mu.RUnlock()
	if !ok {
		return abi.NullHandle, fmt.Errorf("%w: %T", abi.ErrUnknownClass, obj)
	}
	return h.store(b, ptr)
}

func (h *Heap) store(b *binding, ptr reflect.Value) (abi.Handle, error) {
	n := h.next.Add(1)
	if n <= 0 || n == math.MaxInt32 {
		return abi.NullHandle, ErrHandlesExhaust
	}
	handle := abi.Handle(n)
	h.objects.Store(handle, &object{binding: b, value: ptr.Elem(), refs: 1})
	h.live.Add(1)
	h.allocated.Add(1)
	log.Debug().Int32("handle", int32(handle)).Str("class", b.class.Name).Msg("foreign object allocated")
	return handle, nil
}

// Get reads one field of the object behind handle.
func (h *Heap) Get(handle abi.Handle, field string) (abi.Value, error) {
	obj, err := h.lock(handle)
	if err != nil {
		return abi.Value{}, err
	}
	defer obj.mu.Unlock()
	return obj.binding.read(obj.value, field)
}

// Set writes one field of the object behind handle.
func (h *Heap) Set(handle abi.Handle, field string, v abi.Value) error {
	obj, err := h.lock(handle)
	if err != nil {
		return err
	}
	defer obj.mu.Unlock()
	return obj.binding.write(obj.value, field, v)
}

// Snapshot reads every field of handle under one lock.
func (h *Heap) Snapshot(handle abi.Handle) (abi.Class, []abi.Value, error) {
	obj, err := h.lock(handle)
	if err != nil {
		return abi.Class{}, nil, err
	}
	defer obj.mu.Unlock()
	out := make([]abi.Value, 0, len(obj.binding.class.Fields))
	for _, f := range obj.binding.class.Fields {
		v, err := obj.binding.read(obj.value, f.Name)
		if err != nil {
			return abi.Class{}, nil, err
		}
		out = append(out, v)
	}
	return obj.binding.class, out, nil
}

// IncRef adds one reference to handle.
func (h *Heap) IncRef(handle abi.Handle) error {
	obj, err := h.lock(handle)
	if err != nil {
		return err
	}
	obj.refs++
	obj.mu.Unlock()
	return nil
}

// DecRef drops one reference. At zero the object is removed and listeners notified.
func (h *Heap) DecRef(handle abi.Handle) error {
	obj, err := h.lock(handle)
	if err != nil {
		return err
	}
	obj.refs--
	if obj.refs > 0 {
		obj.mu.Unlock()
		return nil
	}
	obj.released = true
	h.objects.CompareAndDelete(handle, obj)
	obj.mu.Unlock()

	h.live.Add(-1)
	h.released.Add(1)
	log.Debug().Int32("handle", int32(handle)).Str("class", obj.binding.class.Name).Msg("foreign object released")
	h.notify(handle)
	return nil
}

// Invoke calls a foreign function and returns handles for the objects it produced.
// Every ref argument carries one reference transferred by the caller; it is dropped
// once the function returns, so a function that keeps a ref must IncRef it.
func (h *Heap) Invoke(name string, args []abi.Value) ([]abi.Handle, error) {
	defer h.consumeRefs(args)
	h.mu.RLock()
	fn, ok := h.funcs[name]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", abi.ErrUnknownFunction, name)
	}
	for i, a := range args {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("%s arg[%d]: %w", name, i, err)
		}
	}
	objs, err := fn(args)
	if err != nil {
		return nil, err
	}
	out := make([]abi.Handle, 0, len(objs))
	for _, obj := range objs {
		handle, err := h.Put(obj)
		if err != nil {
			for _, prev := range out {
				_ = h.DecRef(prev)
			}
			return nil, err
		}
		out = append(out, handle)
	}
	return out, nil
}

// Handles lists live objects ordered by handle.
func (h *Heap) Handles() []HandleInfo {
	out := make([]HandleInfo, 0)
	h.objects.Range(func(key, value any) bool {
		obj := value.(*object)
		obj.mu.Lock()
		if !obj.released {
			out = append(out, HandleInfo{Handle: key.(abi.Handle), Class: obj.binding.class.Name, Refs: obj.refs})
		}
		obj.mu.Unlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Handle < out[j].Handle
	})
	return out
}

func (h *Heap) Stats() Stats {
	return Stats{
		Live:      h.live.Load(),
		Allocated: h.allocated.Load(),
		Released:  h.released.Load(),
	}
}

func (h *Heap) binding(className string) (*binding, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, ok := h.classes[className]
	if !ok {
		return nil, fmt.Errorf("%w: %s", abi.ErrUnknownClass, className)
	}
	return b, nil
}

// lock returns the live object behind handle with its lock held.
func (h *Heap) lock(handle abi.Handle) (*object, error) {
	v, ok := h.objects.Load(handle)
	if !ok {
		return nil, fmt.Errorf("%w: %s", abi.ErrStaleHandle, handle)
	}
	obj := v.(*object)
	obj.mu.Lock()
	if obj.released {
		obj.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", abi.ErrStaleHandle, handle)
	}
	return obj, nil
}

func (h *Heap) consumeRefs(args []abi.Value) {
	for _, a := range args {
		if a.Kind != abi.KindRef || !a.Ref.Valid() {
			continue
		}
		if err := h.DecRef(a.Ref); err != nil {
			log.Debug().Int32("handle", int32(a.Ref)).Err(err).Msg("transferred ref already released")
		}
	}
}

func (h *Heap) notify(handle abi.Handle) {
	h.listenMu.RLock()
	fns := make([]func(abi.Handle), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.listenMu.RUnlock()
	for _, fn := range fns {
		fn(handle)
	}
}
