package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Wire layout of the fixed header (big endian):
//
//	0  magic        u32
//	4  version      u16
//	6  header_len   u16  fixed header plus auth bytes
//	8  message_id   u64  0 for unsolicited release notices
//	16 message_type u32
//	20 flags        u32
//	24 payload_len  u64
const (
	FixedHeaderLen uint16 = 32

	FlagHasAuth    uint32 = 1 << 0
	FlagIsResponse uint32 = 1 << 1
	FlagIsError    uint32 = 1 << 2

	// Magic spells "ZCNB".
	Magic   uint32 = 0x5A434E42
	Version uint16 = 1
)

var (
	ErrShortHeader       = errors.New("frame: short fixed header")
	ErrHeaderLenTooSmall = errors.New("frame: header_len smaller than fixed header")
	ErrHeaderLenMismatch = errors.New("frame: has_auth set without auth bytes")
	ErrPayloadTooLarge   = errors.New("frame: payload too large")
	ErrAuthTooLarge      = errors.New("frame: auth too large")
	ErrInvalidMagic      = errors.New("frame: invalid magic")
	ErrUnsupportedVer    = errors.New("frame: unsupported version")
)

type Header struct {
	Magic       uint32
	Version     uint16
	HeaderLen   uint16
	MessageID   uint64
	MessageType uint32
	Flags       uint32
	PayloadLen  uint64
}

func (h Header) IsResponse() bool { return h.Flags&FlagIsResponse != 0 }
func (h Header) IsError() bool    { return h.Flags&FlagIsError != 0 }
func (h Header) HasAuth() bool    { return h.Flags&FlagHasAuth != 0 }

// Check rejects headers that do not belong to the bridge protocol.
func (h Header) Check() error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: %#08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVer, h.Version)
	}
	return nil
}

// CheckBridgeHeader is Header.Check for callers holding a bare header.
func CheckBridgeHeader(h Header) error {
	return h.Check()
}

// Frame is one complete bridge message: header, optional auth token, TLV payload.
type Frame struct {
	Header  Header
	Auth    []byte
	Payload []byte
}

type Limits struct {
	MaxAuthBytes    uint64
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxAuthBytes:    64 << 10,
		MaxPayloadBytes: 8 << 20,
	}
}

func (l Limits) check(authLen, payloadLen uint64) error {
	if authLen > l.MaxAuthBytes {
		return fmt.Errorf("%w: %d > %d", ErrAuthTooLarge, authLen, l.MaxAuthBytes)
	}
	if payloadLen > l.MaxPayloadBytes {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, payloadLen, l.MaxPayloadBytes)
	}
	return nil
}

// ReadFrame reads one frame. A stream that ends before any header byte returns io.EOF.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [FixedHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}
	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if h.HeaderLen < FixedHeaderLen {
		return Frame{}, ErrHeaderLenTooSmall
	}
	authLen := uint64(h.HeaderLen - FixedHeaderLen)
	if h.HasAuth() && authLen == 0 {
		return Frame{}, ErrHeaderLenMismatch
	}
	if err := limits.check(authLen, h.PayloadLen); err != nil {
		return Frame{}, err
	}

	// auth and payload are contiguous on the wire
	body := make([]byte, authLen+h.PayloadLen)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, fmt.Errorf("frame: read body of message %d: %w", h.MessageID, err)
	}
	return Frame{Header: h, Auth: body[:authLen:authLen], Payload: body[authLen:]}, nil
}

// WriteFrame sets header_len, payload_len and the has_auth flag from f, then
// writes the frame in a single Write call.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	authLen, payloadLen := uint64(len(f.Auth)), uint64(len(f.Payload))
	if err := limits.check(authLen, payloadLen); err != nil {
		return err
	}
	h := f.Header
	h.HeaderLen = FixedHeaderLen + uint16(authLen)
	h.PayloadLen = payloadLen
	if authLen > 0 {
		h.Flags |= FlagHasAuth
	} else {
		h.Flags &^= FlagHasAuth
	}

	buf := make([]byte, 0, uint64(h.HeaderLen)+payloadLen)
	buf = AppendHeader(buf, h)
	buf = append(buf, f.Auth...)
	buf = append(buf, f.Payload...)
	_, err := w.Write(buf)
	return err
}

// AppendHeader appends the fixed header encoding of h to dst.
func AppendHeader(dst []byte, h Header) []byte {
	dst = binary.BigEndian.AppendUint32(dst, h.Magic)
	dst = binary.BigEndian.AppendUint16(dst, h.Version)
	dst = binary.BigEndian.AppendUint16(dst, h.HeaderLen)
	dst = binary.BigEndian.AppendUint64(dst, h.MessageID)
	dst = binary.BigEndian.AppendUint32(dst, h.MessageType)
	dst = binary.BigEndian.AppendUint32(dst, h.Flags)
	return binary.BigEndian.AppendUint64(dst, h.PayloadLen)
}

func EncodeHeader(h Header) []byte {
	return AppendHeader(make([]byte, 0, FixedHeaderLen), h)
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != int(FixedHeaderLen) {
		return Header{}, fmt.Errorf("frame: fixed header is %d bytes, got %d", FixedHeaderLen, len(b))
	}
	be := binary.BigEndian
	return Header{
		Magic:       be.Uint32(b[0:]),
		Version:     be.Uint16(b[4:]),
		HeaderLen:   be.Uint16(b[6:]),
		MessageID:   be.Uint64(b[8:]),
		MessageType: be.Uint32(b[16:]),
		Flags:       be.Uint32(b[20:]),
		PayloadLen:  be.Uint64(b[24:]),
	}, nil
}
