package wire

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/protocol/frame"
	"github.com/danmuck/zcnbind/internal/protocol/schema"
	"github.com/danmuck/zcnbind/internal/testutil/testlog"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{CallTimeout: -time.Second}.WithDefaults()
	def := DefaultConfig()
	if cfg.DialTimeout != def.DialTimeout || cfg.MaxDialAttempts != def.MaxDialAttempts {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.CallTimeout != 0 {
		t.Fatalf("negative call timeout should clamp to zero, got=%v", cfg.CallTimeout)
	}
}

func readBack(t *testing.T, b []byte) frame.Frame {
	t.Helper()
	f, err := ReadFrame(bytes.NewReader(b), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestEncodeDecodeNewCall(t *testing.T) {
	testlog.Start(t)
	b, err := EncodeCallFrame(11, Call{
		Op:     schema.MsgNew,
		Class:  "BurnTicket",
		Values: []abi.Value{abi.String("0xabc"), abi.Int64(-3)},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f := readBack(t, b)
	if f.Header.MessageID != 11 || f.Header.MessageType != schema.MsgNew {
		t.Fatalf("unexpected header: %+v", f.Header)
	}
	got, err := DecodeCallFrame(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Class != "BurnTicket" || len(got.Values) != 2 {
		t.Fatalf("unexpected call: %+v", got)
	}
	if !got.Values[0].Equal(abi.String("0xabc")) || !got.Values[1].Equal(abi.Int64(-3)) {
		t.Fatalf("values not preserved in order: %+v", got.Values)
	}
}

func TestEncodeDecodeSetCall(t *testing.T) {
	testlog.Start(t)
	b, err := EncodeCallFrame(12, Call{Op: schema.MsgSet, Handle: 5, Field: "Nonce", Values: []abi.Value{abi.Int64(9)}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeCallFrame(readBack(t, b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Handle != 5 || got.Field != "Nonce" || got.Values[0].Int != 9 {
		t.Fatalf("unexpected call: %+v", got)
	}
}

func TestCallValidateRejectsMissingHandle(t *testing.T) {
	testlog.Start(t)
	if _, err := EncodeCallFrame(1, Call{Op: schema.MsgGet, Field: "Hash"}); err == nil {
		t.Fatalf("expected missing handle error")
	}
	if _, err := EncodeCallFrame(1, Call{Op: schema.MsgReply}); err == nil {
		t.Fatalf("expected non-call op error")
	}
}

func TestReplyCarriesHandlesAndValues(t *testing.T) {
	testlog.Start(t)
	b, err := EncodeReplyFrame(3, Reply{Handles: []abi.Handle{4, 8}, Values: []abi.Value{abi.String("pk")}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f := readBack(t, b)
	if f.Header.Flags&frame.FlagIsResponse == 0 {
		t.Fatalf("expected response flag")
	}
	r, err := DecodeReplyFrame(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Err != nil || len(r.Handles) != 2 || r.Handles[1] != 8 || r.Values[0].Str != "pk" {
		t.Fatalf("unexpected reply: %+v", r)
	}
}

func TestErrorReplyKeepsErrorKind(t *testing.T) {
	testlog.Start(t)
	cases := []error{
		fmt.Errorf("%w: refnum:9", abi.ErrStaleHandle),
		fmt.Errorf("%w: bad text", abi.ErrInvalidArgument),
		abi.ErrUnknownField,
	}
	wants := []error{abi.ErrStaleHandle, abi.ErrInvalidArgument, abi.ErrInvalidArgument}
	for i, in := range cases {
		b, err := EncodeReplyFrame(7, Reply{Err: in})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		f := readBack(t, b)
		if f.Header.Flags&frame.FlagIsError == 0 {
			t.Fatalf("expected error flag")
		}
		r, err := DecodeReplyFrame(f)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !errors.Is(r.Err, wants[i]) {
			t.Fatalf("case %d: got=%v want kind %v", i, r.Err, wants[i])
		}
		if r.Err.Error() != in.Error() {
			t.Fatalf("case %d: message lost got=%q want=%q", i, r.Err.Error(), in.Error())
		}
	}
}

func TestReleasedFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	b, err := EncodeReleasedFrame(21)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	h, err := DecodeReleasedFrame(readBack(t, b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h != 21 {
		t.Fatalf("handle got=%v", h)
	}
	if _, err := EncodeReleasedFrame(abi.NullHandle); err == nil {
		t.Fatalf("expected null handle error")
	}
}

func TestTransportSecurityValidation(t *testing.T) {
	testlog.Start(t)
	if err := DefaultConfig().ValidateClientTransport(); err != nil {
		t.Fatalf("plain client transport: %v", err)
	}
	cfg := DefaultConfig()
	cfg.TLS = TLSConfig{Mutual: true}
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}
	cfg.TLS = TLSConfig{Enabled: true}
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSCAFileRequired) {
		t.Fatalf("expected ErrTLSCAFileRequired, got %v", err)
	}
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}
	cfg.TLS = TLSConfig{Enabled: true, Mutual: true, CertFile: "srv.crt", KeyFile: "srv.key"}
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSCAFileRequired) {
		t.Fatalf("expected ErrTLSCAFileRequired for mtls, got %v", err)
	}
}

func TestCallAuthTravelsInFrameAuthSection(t *testing.T) {
	testlog.Start(t)
	payload, err := EncodeCallFrame(11, Call{Op: schema.MsgIncRef, Handle: abi.Handle(3), Auth: "secret"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := ReadFrame(bytes.NewReader(payload), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Header.Flags&frame.FlagHasAuth == 0 || string(f.Auth) != "secret" {
		t.Fatalf("auth section got flags=%d auth=%q", f.Header.Flags, f.Auth)
	}
	call, err := DecodeCallFrame(f)
	if err != nil || call.Auth != "secret" || call.Handle != 3 {
		t.Fatalf("decode got=%+v err=%v", call, err)
	}
}
