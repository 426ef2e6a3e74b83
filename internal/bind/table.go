package bind

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/danmuck/zcnbind/internal/abi"
)

type entry struct {
	proxy atomic.Pointer[Object]
	refs  atomic.Int32
}

// Table maps handles to their local proxies. Entries are swapped in and out with
// atomic map operations and per-entry counters; there is no table-wide lock.
type Table struct {
	entries sync.Map
	live    atomic.Int64
}

func NewTable() *Table {
	return &Table{}
}

// Register records proxy for h with one outstanding reference. If h is already
// registered, the existing proxy gains a reference and is returned instead.
func (t *Table) Register(h abi.Handle, proxy *Object) (*Object, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("%w: register %s", abi.ErrInvalidArgument, h)
	}
	fresh := &entry{}
	fresh.proxy.Store(proxy)
	fresh.refs.Store(1)
	for {
		v, loaded := t.entries.LoadOrStore(h, fresh)
		if !loaded {
			t.live.Add(1)
			return proxy, nil
		}
		e := v.(*entry)
		if e.acquire() {
			return e.proxy.Load(), nil
		}
		// A dead entry is on its way out; replace it.
		if t.entries.CompareAndSwap(h, e, fresh) {
			t.live.Add(1)
			return proxy, nil
		}
	}
}

// IncRef adds one reference to h and re-registers proxy against it.
func (t *Table) IncRef(h abi.Handle, proxy *Object) error {
	e, ok := t.load(h)
	if !ok || !e.acquire() {
		return fmt.Errorf("%w: %s", abi.ErrStaleHandle, h)
	}
	if proxy != nil {
		e.proxy.Store(proxy)
	}
	return nil
}

// DecRef drops one local reference. At zero the entry is removed.
func (t *Table) DecRef(h abi.Handle) (int32, error) {
	e, ok := t.load(h)
	if !ok {
		return 0, fmt.Errorf("%w: %s", abi.ErrStaleHandle, h)
	}
	for {
		n := e.refs.Load()
		if n <= 0 {
			return 0, fmt.Errorf("%w: %s", abi.ErrStaleHandle, h)
		}
		if e.refs.CompareAndSwap(n, n-1) {
			if n-1 == 0 {
				t.remove(h, e)
			}
			return n - 1, nil
		}
	}
}

// Released handles the foreign release notification for h.
func (t *Table) Released(h abi.Handle) {
	e, ok := t.load(h)
	if !ok {
		return
	}
	e.refs.Store(0)
	t.remove(h, e)
}

// Lookup returns the proxy registered for h.
func (t *Table) Lookup(h abi.Handle) (*Object, bool) {
	e, ok := t.load(h)
	if !ok || e.refs.Load() <= 0 {
		return nil, false
	}
	return e.proxy.Load(), true
}

func (t *Table) Live(h abi.Handle) bool {
	_, ok := t.Lookup(h)
	return ok
}

// Refs returns the outstanding local references for h.
func (t *Table) Refs(h abi.Handle) int32 {
	e, ok := t.load(h)
	if !ok {
		return 0
	}
	n := e.refs.Load()
	if n < 0 {
		return 0
	}
	return n
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	return int(t.live.Load())
}

// Handles returns every live handle.
func (t *Table) Handles() []abi.Handle {
	out := make([]abi.Handle, 0, t.Len())
	t.entries.Range(func(key, value any) bool {
		if value.(*entry).refs.Load() > 0 {
			out = append(out, key.(abi.Handle))
		}
		return true
	})
	return out
}

func (t *Table) load(h abi.Handle) (*entry, bool) {
	v, ok := t.entries.Load(h)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

func (t *Table) remove(h abi.Handle, e *entry) {
	if t.entries.CompareAndDelete(h, e) {
		t.live.Add(-1)
	}
}

// acquire adds a reference unless the entry already reached zero.
func (e *entry) acquire() bool {
	for {
		n := e.refs.Load()
		if n <= 0 {
			return false
		}
		if e.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}
