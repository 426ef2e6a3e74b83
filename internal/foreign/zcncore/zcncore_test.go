package zcncore

import (
	"errors"
	"testing"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/foreign"
	"github.com/danmuck/zcnbind/internal/testutil/testlog"
)

func TestBurnTicketEncodeDecode(t *testing.T) {
	testlog.Start(t)
	in := BurnTicket{Hash: "abc", Nonce: 7}
	if got := string(in.Encode()); got != `{"hash":"abc","nonce":7}` {
		t.Fatalf("encode got=%s", got)
	}
	var out BurnTicket
	if err := out.Decode([]byte(`{"hash":"x","nonce":-1}`)); err != nil || out.Hash != "x" || out.Nonce != -1 {
		t.Fatalf("decode got=%+v err=%v", out, err)
	}
}

func TestDirectoryStartNonceFilter(t *testing.T) {
	testlog.Start(t)
	d := NewDirectory()
	d.AddBurnTickets("0xaa", BurnTicket{Hash: "h1", Nonce: 1}, BurnTicket{Hash: "h5", Nonce: 5}, BurnTicket{Hash: "h9", Nonce: 9})
	cases := []struct {
		start int64
		want  []string
	}{
		{start: 0, want: []string{"h1", "h5", "h9"}},
		{start: 5, want: []string{"h5", "h9"}},
		{start: 6, want: []string{"h9"}},
		{start: 10, want: nil},
	}
	for _, tc := range cases {
		got := d.GetNotProcessedZCNBurnTickets("0xaa", tc.start)
		if len(got) != len(tc.want) {
			t.Fatalf("start=%d got=%v want=%v", tc.start, got, tc.want)
		}
		for i := range got {
			if got[i].Hash != tc.want[i] {
				t.Fatalf("start=%d got=%v want=%v", tc.start, got, tc.want)
			}
		}
	}
}

func TestAddBurnTicketJSON(t *testing.T) {
	testlog.Start(t)
	d := NewDirectory()
	seed := BurnTicket{Hash: "h1", Nonce: 3}
	if err := d.AddBurnTicketJSON("0xAA", seed.Encode()); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := d.GetNotProcessedZCNBurnTickets("0xaa", 0); len(got) != 1 || got[0] != seed {
		t.Fatalf("pending got=%v", got)
	}
	if err := d.AddBurnTicketJSON("0xaa", []byte(`{"nonce":1}`)); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("missing hash err=%v", err)
	}
	if err := d.AddBurnTicketJSON("0xaa", []byte(`{`)); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("bad json err=%v", err)
	}
	if err := d.AddBurnTicketJSON(" ", seed.Encode()); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("missing address err=%v", err)
	}
}

func TestDirectoryClientDocuments(t *testing.T) {
	testlog.Start(t)
	d := NewDirectory()
	doc := []byte(`{"id":"c1","version":"v1","creation_date":100,"public_key":"pk"}`)
	if err := d.PutClientJSON(doc); err != nil {
		t.Fatalf("put: %v", err)
	}
	doc[2] = 'X'
	got, err := d.GetClientDetails("c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != (GetClientResponse{ID: "c1", Version: "v1", CreationDate: 100, PublicKey: "pk"}) {
		t.Fatalf("details got=%+v", got)
	}
	again, _ := d.GetClientDetails(" c1 ")
	if again == got {
		t.Fatalf("expected a fresh record per lookup")
	}
	if _, err := d.GetClientDetails("nobody"); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("missing client err=%v", err)
	}
	if err := d.PutClientJSON([]byte(`{"version":"v1"}`)); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("missing id err=%v", err)
	}
	if err := d.PutClientJSON([]byte(`not json`)); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("bad json err=%v", err)
	}
	if ids := d.ClientIDs(); len(ids) != 1 || ids[0] != "c1" {
		t.Fatalf("ids got=%v", ids)
	}
}

func TestDirectoryBurnTickets(t *testing.T) {
	testlog.Start(t)
	d := NewDirectory()
	d.AddBurnTickets("0xAbC", BurnTicket{Hash: "h1", Nonce: 1}, BurnTicket{Hash: "h2", Nonce: 2})
	d.AddBurnTickets("  ", BurnTicket{Hash: "ignored"})

	pending := d.GetNotProcessedZCNBurnTickets("0xabc", 0)
	if len(pending) != 2 {
		t.Fatalf("pending got=%v", pending)
	}
	pending[0].Hash = "mutated"
	if d.GetNotProcessedZCNBurnTickets("0xABC", 0)[0].Hash != "h1" {
		t.Fatalf("pending list is not a copy")
	}
	if n := d.MarkProcessed("h1"); n != 1 {
		t.Fatalf("processed got=%d", n)
	}
	if left := d.GetNotProcessedZCNBurnTickets("0xabc", 0); len(left) != 1 || left[0].Hash != "h2" {
		t.Fatalf("left got=%v", left)
	}
	if len(d.GetNotProcessedZCNBurnTickets("0xother", 0)) != 0 {
		t.Fatalf("unknown address should have no tickets")
	}
}

func TestRegisterServesQueries(t *testing.T) {
	testlog.Start(t)
	heap := foreign.NewHeap()
	d := NewDirectory()
	if err := d.PutClient(GetClientResponse{ID: "c1", Version: "v1", CreationDate: 100, PublicKey: "pk"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	d.AddBurnTickets("0xaa", BurnTicket{Hash: "h1", Nonce: 1})
	if err := Register(heap, d); err != nil {
		t.Fatalf("register: %v", err)
	}

	handles, err := heap.Invoke(FuncGetClientDetails, []abi.Value{abi.String("c1")})
	if err != nil || len(handles) != 1 {
		t.Fatalf("client details got=%v err=%v", handles, err)
	}
	class, values, err := heap.Snapshot(handles[0])
	if err != nil || class.Format(values) != "GetClientResponse{ID:c1,Version:v1,CreationDate:100,PublicKey:pk,}" {
		t.Fatalf("snapshot got=%q err=%v", class.Format(values), err)
	}

	tickets, err := heap.Invoke(FuncGetNotProcessedZCNBurnTickets, []abi.Value{abi.String("0xAA"), abi.Int64(0)})
	if err != nil || len(tickets) != 1 {
		t.Fatalf("tickets got=%v err=%v", tickets, err)
	}
	if err := heap.IncRef(tickets[0]); err != nil {
		t.Fatalf("incref: %v", err)
	}
	if _, err := heap.Invoke(FuncProcessBurnTicket, []abi.Value{abi.Ref(tickets[0])}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(d.GetNotProcessedZCNBurnTickets("0xaa", 0)) != 0 {
		t.Fatalf("ticket not processed")
	}
	if _, err := heap.Invoke(FuncProcessBurnTicket, []abi.Value{abi.String("h1")}); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("bad process arg err=%v", err)
	}
	if _, err := heap.Invoke(FuncGetNotProcessedZCNBurnTickets, []abi.Value{abi.String("0xaa")}); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("missing start nonce err=%v", err)
	}
	if _, err := heap.Invoke(FuncGetClientDetails, nil); !errors.Is(err, abi.ErrInvalidArgument) {
		t.Fatalf("missing arg err=%v", err)
	}
	if err := Register(heap, d); err == nil {
		t.Fatalf("expected double register error")
	}
}
