package bind

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/foreign"
	"github.com/danmuck/zcnbind/internal/foreign/zcncore"
	"github.com/danmuck/zcnbind/internal/testutil/testlog"
)

func newLocalBridge(t *testing.T, opts ...Option) (*Bridge, *foreign.Heap) {
	t.Helper()
	heap := foreign.NewHeap()
	dir := zcncore.NewDirectory()
	if err := dir.PutClient(zcncore.GetClientResponse{ID: "c1", Version: "v1", CreationDate: 100, PublicKey: "pk"}); err != nil {
		t.Fatalf("put client: %v", err)
	}
	if err := zcncore.Register(heap, dir); err != nil {
		t.Fatalf("register: %v", err)
	}
	return NewBridge(NewLocal(heap), opts...), heap
}

func newTicket(t *testing.T, b *Bridge, hash string, nonce int64) *Object {
	t.Helper()
	obj, err := b.New(zcncore.BurnTicketClass, []abi.Value{abi.String(hash), abi.Int64(nonce)})
	if err != nil {
		t.Fatalf("new ticket: %v", err)
	}
	return obj
}

func TestConstructThenRead(t *testing.T) {
	testlog.Start(t)
	b, _ := newLocalBridge(t)
	obj := newTicket(t, b, "abc", 7)
	if hash, err := obj.GetString("Hash"); err != nil || hash != "abc" {
		t.Fatalf("hash got=%q err=%v", hash, err)
	}
	if nonce, err := obj.GetInt64("Nonce"); err != nil || nonce != 7 {
		t.Fatalf("nonce got=%d err=%v", nonce, err)
	}
	if !obj.Handle().Valid() || b.Table().Refs(obj.Handle()) != 1 {
		t.Fatalf("handle=%v refs=%d", obj.Handle(), b.Table().Refs(obj.Handle()))
	}
}

func TestSetThenGet(t *testing.T) {
	testlog.Start(t)
	b, _ := newLocalBridge(t)
	obj := newTicket(t, b, "abc", 7)
	if err := obj.SetString("Hash", "def"); err != nil {
		t.Fatalf("set hash: %v", err)
	}
	if err := obj.SetInt64("Nonce", -1); err != nil {
		t.Fatalf("set nonce: %v", err)
	}
	if got := obj.String(); got != "BurnTicket{Hash:def,Nonce:-1,}" {
		t.Fatalf("string got=%q", got)
	}
	if err := obj.Set("Nonce", abi.String("x")); !errors.Is(err, abi.ErrKindMismatch) {
		t.Fatalf("kind err=%v", err)
	}
	if _, err := obj.Get("Missing"); !errors.Is(err, abi.ErrUnknownField) {
		t.Fatalf("unknown field err=%v", err)
	}
	if err := obj.SetString("Hash", "\xff"); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("utf-8 err=%v", err)
	}
}

func TestEqualAndHashCode(t *testing.T) {
	testlog.Start(t)
	b, _ := newLocalBridge(t)
	x := newTicket(t, b, "abc", 7)
	y := newTicket(t, b, "abc", 7)
	z := newTicket(t, b, "abc", 8)
	if x.Handle() == y.Handle() {
		t.Fatalf("distinct objects share a handle")
	}

	eq, err := x.Equal(y)
	if err != nil || !eq {
		t.Fatalf("equal got=%v err=%v", eq, err)
	}
	hx, _ := x.HashCode()
	hy, _ := y.HashCode()
	if hx != hy {
		t.Fatalf("hash codes differ: %d %d", hx, hy)
	}
	if eq, _ := x.Equal(z); eq {
		t.Fatalf("differing nonce compared equal")
	}

	client, err := b.New(zcncore.GetClientResponseClass, zcncore.GetClientResponseClass.Zero())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if eq, _ := x.Equal(client); eq {
		t.Fatalf("different classes compared equal")
	}
	if eq, _ := x.Equal(nil); eq {
		t.Fatalf("nil compared equal")
	}
}

func TestStaleAfterRelease(t *testing.T) {
	testlog.Start(t)
	b, heap := newLocalBridge(t)
	obj := newTicket(t, b, "abc", 7)
	if err := obj.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := obj.GetString("Hash"); !errors.Is(err, abi.ErrStaleHandle) {
		t.Fatalf("get after release err=%v", err)
	}
	if err := obj.SetInt64("Nonce", 1); !errors.Is(err, abi.ErrStaleHandle) {
		t.Fatalf("set after release err=%v", err)
	}
	if err := obj.Release(); !errors.Is(err, abi.ErrStaleHandle) {
		t.Fatalf("double release err=%v", err)
	}
	if !strings.Contains(obj.String(), "stale handle") {
		t.Fatalf("string after release got=%q", obj.String())
	}
	if heap.Stats().Live != 0 || b.Table().Len() != 0 {
		t.Fatalf("live=%d table=%d", heap.Stats().Live, b.Table().Len())
	}
}

func TestForeignReleaseDeregistersProxy(t *testing.T) {
	testlog.Start(t)
	b, heap := newLocalBridge(t)
	obj := newTicket(t, b, "abc", 7)
	if err := heap.DecRef(obj.Handle()); err != nil {
		t.Fatalf("foreign decref: %v", err)
	}
	if b.Table().Live(obj.Handle()) {
		t.Fatalf("entry survived release notification")
	}
	if _, err := obj.GetString("Hash"); !errors.Is(err, abi.ErrStaleHandle) {
		t.Fatalf("get err=%v", err)
	}
}

func TestGetClientResponseTemplate(t *testing.T) {
	testlog.Start(t)
	b, _ := newLocalBridge(t)
	objs, err := b.Invoke(zcncore.FuncGetClientDetails, zcncore.GetClientResponseClass, nil, abi.String("c1"))
	if err != nil || len(objs) != 1 {
		t.Fatalf("invoke got=%v err=%v", objs, err)
	}
	if got := objs[0].String(); got != "GetClientResponse{ID:c1,Version:v1,CreationDate:100,PublicKey:pk,}" {
		t.Fatalf("string got=%q", got)
	}
	if _, err := b.Invoke(zcncore.FuncGetClientDetails, zcncore.GetClientResponseClass, nil, abi.String("nobody")); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("missing client err=%v", err)
	}
}

func TestConcurrentIncRefKeepsEntry(t *testing.T) {
	testlog.Start(t)
	b, heap := newLocalBridge(t)
	obj := newTicket(t, b, "abc", 7)

	const workers = 64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if err := b.IncRef(obj); err != nil {
				t.Errorf("incref: %v", err)
				return
			}
			if _, err := obj.GetInt64("Nonce"); err != nil {
				t.Errorf("get: %v", err)
			}
			if err := obj.Release(); err != nil {
				t.Errorf("release: %v", err)
			}
		}()
	}
	wg.Wait()

	if !b.Table().Live(obj.Handle()) || b.Table().Refs(obj.Handle()) != 1 {
		t.Fatalf("entry lost: live=%v refs=%d", b.Table().Live(obj.Handle()), b.Table().Refs(obj.Handle()))
	}
	infos := heap.Handles()
	if len(infos) != 1 || infos[0].Refs != 1 {
		t.Fatalf("foreign handles got=%+v", infos)
	}
}

func TestInvokeTransfersRefs(t *testing.T) {
	testlog.Start(t)
	b, heap := newLocalBridge(t)
	obj := newTicket(t, b, "h1", 1)
	if _, err := b.Invoke(zcncore.FuncProcessBurnTicket, zcncore.BurnTicketClass, []*Object{obj}); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if b.Table().Refs(obj.Handle()) != 1 || heap.Handles()[0].Refs != 1 {
		t.Fatalf("refs after transfer local=%d foreign=%+v", b.Table().Refs(obj.Handle()), heap.Handles())
	}
	_ = obj.Release()
	if _, err := b.Invoke(zcncore.FuncProcessBurnTicket, zcncore.BurnTicketClass, []*Object{obj}); !errors.Is(err, abi.ErrStaleHandle) {
		t.Fatalf("stale transfer err=%v", err)
	}
}

func TestAdoptSharesProxyAndChecksClass(t *testing.T) {
	testlog.Start(t)
	b, heap := newLocalBridge(t)
	obj := newTicket(t, b, "abc", 7)
	if err := heap.IncRef(obj.Handle()); err != nil {
		t.Fatalf("incref: %v", err)
	}
	again, err := b.Adopt(zcncore.BurnTicketClass, obj.Handle())
	if err != nil || again != obj {
		t.Fatalf("adopt got=%p want=%p err=%v", again, obj, err)
	}
	if b.Table().Refs(obj.Handle()) != 2 {
		t.Fatalf("refs got=%d", b.Table().Refs(obj.Handle()))
	}
	if err := heap.IncRef(obj.Handle()); err != nil {
		t.Fatalf("incref: %v", err)
	}
	if _, err := b.Adopt(zcncore.GetClientResponseClass, obj.Handle()); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("class mismatch err=%v", err)
	}
	if b.Table().Refs(obj.Handle()) != 2 {
		t.Fatalf("mismatch leaked a local ref: %d", b.Table().Refs(obj.Handle()))
	}
	if infos := heap.Handles(); len(infos) != 1 || infos[0].Refs != 2 {
		t.Fatalf("mismatch leaked a foreign ref: %+v", infos)
	}
	_ = obj.Release()
	_ = obj.Release()
	if live := heap.Stats().Live; live != 0 {
		t.Fatalf("live after release got=%d", live)
	}
}

func TestNewRejectsBadValuesWithoutBoundaryCall(t *testing.T) {
	testlog.Start(t)
	var calls int
	b, heap := newLocalBridge(t, WithRecorder(func(op string, d time.Duration, err error) {
		calls++
	}))
	if _, err := b.New(zcncore.BurnTicketClass, []abi.Value{abi.Int64(1), abi.Int64(2)}); !errors.Is(err, abi.ErrKindMismatch) {
		t.Fatalf("kind err=%v", err)
	}
	if calls != 0 || heap.Stats().Allocated != 0 {
		t.Fatalf("calls=%d allocated=%d", calls, heap.Stats().Allocated)
	}
	newTicket(t, b, "abc", 1)
	if calls != 1 {
		t.Fatalf("recorder calls got=%d", calls)
	}
}

func TestClosedBoundaryIsUnavailable(t *testing.T) {
	testlog.Start(t)
	b, _ := newLocalBridge(t)
	obj := newTicket(t, b, "abc", 7)
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := obj.GetString("Hash"); !errors.Is(err, abi.ErrBoundaryUnavailable) {
		t.Fatalf("get err=%v", err)
	}
	if _, err := b.New(zcncore.BurnTicketClass, zcncore.BurnTicketClass.Zero()); !errors.Is(err, abi.ErrBoundaryUnavailable) {
		t.Fatalf("new err=%v", err)
	}
}

func TestTableRegisterReplacesDeadEntry(t *testing.T) {
	testlog.Start(t)
	table := NewTable()
	first := &Object{handle: 5}
	second := &Object{handle: 5}
	if got, err := table.Register(5, first); err != nil || got != first {
		t.Fatalf("register got=%p err=%v", got, err)
	}
	if n, err := table.DecRef(5); err != nil || n != 0 {
		t.Fatalf("decref got=%d err=%v", n, err)
	}
	if got, err := table.Register(5, second); err != nil || got != second {
		t.Fatalf("re-register got=%p err=%v", got, err)
	}
	if table.Len() != 1 || len(table.Handles()) != 1 {
		t.Fatalf("len=%d handles=%v", table.Len(), table.Handles())
	}
	if _, err := table.Register(abi.NullHandle, first); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("null handle err=%v", err)
	}
	table.Released(5)
	if _, ok := table.Lookup(5); ok || table.Len() != 0 {
		t.Fatalf("released entry still present")
	}
	if err := table.IncRef(5, nil); !errors.Is(err, abi.ErrStaleHandle) {
		t.Fatalf("incref after release err=%v", err)
	}
}

func TestInvokeStaleRefReturnsTransferredRefs(t *testing.T) {
	testlog.Start(t)
	b, heap := newLocalBridge(t)
	if err := heap.Register("bindtest.noop", func([]abi.Value) ([]any, error) { return nil, nil }); err != nil {
		t.Fatalf("register noop: %v", err)
	}
	first := newTicket(t, b, "h1", 1)
	second := newTicket(t, b, "h2", 2)
	if err := second.Release(); err != nil {
		t.Fatalf("release second: %v", err)
	}
	if _, err := b.Invoke("bindtest.noop", zcncore.BurnTicketClass, []*Object{first, second}); !errors.Is(err, abi.ErrStaleHandle) {
		t.Fatalf("invoke err=%v", err)
	}
	if infos := heap.Handles(); len(infos) != 1 || infos[0].Refs != 1 {
		t.Fatalf("foreign refs after failed transfer got=%+v", infos)
	}
	if b.Table().Refs(first.Handle()) != 1 {
		t.Fatalf("local refs got=%d", b.Table().Refs(first.Handle()))
	}
	if err := first.Release(); err != nil {
		t.Fatalf("release first: %v", err)
	}
	if stats := heap.Stats(); stats.Live != 0 {
		t.Fatalf("foreign object leaked: %+v", stats)
	}
}

// mixedBoundary slips an already proxied handle into every Invoke result.
type mixedBoundary struct {
	*Local
	heap  *foreign.Heap
	extra abi.Handle
}

func (m *mixedBoundary) Invoke(fn string, args []abi.Value) ([]abi.Handle, error) {
	handles, err := m.Local.Invoke(fn, args)
	if err != nil {
		return nil, err
	}
	if err := m.heap.IncRef(m.extra); err != nil {
		return nil, err
	}
	return []abi.Handle{handles[0], m.extra, handles[1]}, nil
}

func TestInvokeAdoptFailureReleasesEveryHandle(t *testing.T) {
	testlog.Start(t)
	heap := foreign.NewHeap()
	if err := zcncore.Register(heap, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := heap.Register("bindtest.pair", func([]abi.Value) ([]any, error) {
		return []any{&zcncore.BurnTicket{Hash: "a"}, &zcncore.BurnTicket{Hash: "b"}}, nil
	})
	if err != nil {
		t.Fatalf("register pair: %v", err)
	}
	boundary := &mixedBoundary{Local: NewLocal(heap), heap: heap}
	b := NewBridge(boundary)
	client, err := b.New(zcncore.GetClientResponseClass, zcncore.GetClientResponseClass.Zero())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	boundary.extra = client.Handle()

	if _, err := b.Invoke("bindtest.pair", zcncore.BurnTicketClass, nil); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("invoke err=%v", err)
	}
	if b.Table().Len() != 1 || b.Table().Refs(client.Handle()) != 1 {
		t.Fatalf("table len=%d refs=%d", b.Table().Len(), b.Table().Refs(client.Handle()))
	}
	if infos := heap.Handles(); len(infos) != 1 || infos[0].Handle != client.Handle() || infos[0].Refs != 1 {
		t.Fatalf("foreign handles got=%+v", infos)
	}
	if err := client.Release(); err != nil {
		t.Fatalf("release client: %v", err)
	}
	if stats := heap.Stats(); stats.Live != 0 || stats.Allocated != 3 {
		t.Fatalf("stats got=%+v", stats)
	}
}
