package abi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/danmuck/zcnbind/internal/testutil/testlog"
)

var clientClass = Class{
	Name: "GetClientResponse",
	Fields: []Field{
		{Name: "ID", Kind: KindString},
		{Name: "Version", Kind: KindString},
		{Name: "CreationDate", Kind: KindInt64},
		{Name: "PublicKey", Kind: KindString},
	},
}

func TestClassFormatTemplate(t *testing.T) {
	testlog.Start(t)
	got := clientClass.Format([]Value{String("c1"), String("v1"), Int64(100), String("pk")})
	if got != "GetClientResponse{ID:c1,Version:v1,CreationDate:100,PublicKey:pk,}" {
		t.Fatalf("format got=%q", got)
	}
	empty := Class{Name: "Empty"}
	if got := empty.Format(nil); got != "Empty{}" {
		t.Fatalf("empty format got=%q", got)
	}
}

func TestClassCheck(t *testing.T) {
	testlog.Start(t)
	if err := clientClass.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := clientClass.Check(clientClass.Zero()); err != nil {
		t.Fatalf("zero values rejected: %v", err)
	}
	if err := clientClass.Check([]Value{String("c1")}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("short values err=%v", err)
	}
	bad := []Value{String("c1"), String("v1"), String("100"), String("pk")}
	if err := clientClass.Check(bad); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("kind mismatch err=%v", err)
	}
	invalid := []Value{String("\xff"), String("v1"), Int64(1), String("pk")}
	if err := clientClass.Check(invalid); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("utf-8 err=%v", err)
	}
}

func TestClassValidateRejects(t *testing.T) {
	testlog.Start(t)
	cases := []Class{
		{Name: ""},
		{Name: "X", Fields: []Field{{Name: "", Kind: KindString}}},
		{Name: "X", Fields: []Field{{Name: "A", Kind: KindRef}}},
		{Name: "X", Fields: []Field{{Name: "A", Kind: KindString}, {Name: "A", Kind: KindInt64}}},
	}
	for i, c := range cases {
		if err := c.Validate(); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("case %d err=%v", i, err)
		}
	}
}

func TestValueEqualAndText(t *testing.T) {
	testlog.Start(t)
	if !String("a").Equal(String("a")) || String("a").Equal(String("b")) {
		t.Fatalf("string equality broken")
	}
	if Int64(1).Equal(String("1")) {
		t.Fatalf("cross-kind values compared equal")
	}
	if got := Int64(-42).Text(); got != "-42" {
		t.Fatalf("int text got=%q", got)
	}
	if got := Ref(Handle(3)).Text(); got != "refnum:3" {
		t.Fatalf("ref text got=%q", got)
	}
	if err := Ref(NullHandle).Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("null ref err=%v", err)
	}
}

func TestCodeRoundTripKeepsKind(t *testing.T) {
	testlog.Start(t)
	for _, sentinel := range []error{ErrStaleHandle, ErrBoundaryUnavailable, ErrInvalidArgument} {
		wrapped := fmt.Errorf("ctx: %w", sentinel)
		remote := ErrorFromCode(CodeOf(wrapped), wrapped.Error())
		if !errors.Is(remote, sentinel) {
			t.Fatalf("remote error lost kind for %v got=%v", sentinel, remote)
		}
		if remote.Error() != wrapped.Error() {
			t.Fatalf("message got=%q", remote.Error())
		}
	}
	if CodeOf(ErrUnknownField) != CodeInvalid {
		t.Fatalf("unknown field should classify as invalid")
	}
	if ErrorFromCode(CodeOK, "x") != nil {
		t.Fatalf("ok code should decode to nil")
	}
	internal := ErrorFromCode(CodeInternal, "")
	var re *RemoteError
	if !errors.As(internal, &re) || re.Unwrap() != nil {
		t.Fatalf("internal error got=%v", internal)
	}
}
