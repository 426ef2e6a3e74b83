package wire

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/protocol/frame"
	"github.com/danmuck/zcnbind/internal/protocol/schema"
	"github.com/danmuck/zcnbind/internal/protocol/tlv"
)

// Call is one boundary call sent local->foreign.
type Call struct {
	Op       uint32
	Handle   abi.Handle
	Class    string
	Field    string
	Function string
	Values   []abi.Value
	// Auth travels in the frame auth section, not the payload.
	Auth     string
}

func (c Call) Validate() error {
	switch c.Op {
	case schema.MsgNew:
		if strings.TrimSpace(c.Class) == "" {
			return fmt.Errorf("new missing class")
		}
	case schema.MsgGet, schema.MsgSet:
		if !c.Handle.Valid() {
			return fmt.Errorf("%s missing handle", schema.Name(c.Op))
		}
		if strings.TrimSpace(c.Field) == "" {
			return fmt.Errorf("%s missing field", schema.Name(c.Op))
		}
		if c.Op == schema.MsgSet && len(c.Values) != 1 {
			return fmt.Errorf("set takes exactly one value, got %d", len(c.Values))
		}
	case schema.MsgIncRef, schema.MsgDecRef:
		if !c.Handle.Valid() {
			return fmt.Errorf("%s missing handle", schema.Name(c.Op))
		}
	case schema.MsgInvoke:
		if strings.TrimSpace(c.Function) == "" {
			return fmt.Errorf("invoke missing function")
		}
	default:
		return fmt.Errorf("wire: op %d is not a call", c.Op)
	}
	return nil
}

// EncodeCallFrame encodes c into framed protocol message bytes.
func EncodeCallFrame(messageID uint64, c Call) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	fields := make([]tlv.Field, 0, 4+len(c.Values))
	if c.Handle.Valid() {
		fields = append(fields, handleField(c.Handle))
	}
	if c.Class != "" {
		fields = append(fields, tlv.String(schema.FieldClass, c.Class))
	}
	if c.Field != "" {
		fields = append(fields, tlv.String(schema.FieldName, c.Field))
	}
	if c.Function != "" {
		fields = append(fields, tlv.String(schema.FieldFunction, c.Function))
	}
	fields, err := appendValues(fields, c.Values)
	if err != nil {
		return nil, err
	}
	return encode(messageID, c.Op, 0, []byte(c.Auth), fields)
}

// DecodeCallFrame decodes one call frame.
func DecodeCallFrame(f frame.Frame) (Call, error) {
	fields, err := decodeChecked(f)
	if err != nil {
		return Call{}, err
	}
	c := Call{
		Op:       f.Header.MessageType,
		Class:    getRequiredString(fields, schema.FieldClass),
		Field:    getRequiredString(fields, schema.FieldName),
		Function: getRequiredString(fields, schema.FieldFunction),
		Auth:     string(f.Auth),
	}
	handles, err := decodeHandles(fields)
	if err != nil {
		return Call{}, err
	}
	if len(handles) > 0 {
		c.Handle = handles[0]
	}
	if c.Values, err = decodeValues(fields); err != nil {
		return Call{}, err
	}
	if err := c.Validate(); err != nil {
		return Call{}, err
	}
	return c, nil
}

// Reply is the foreign->local answer to one call. Err carries the remote error.
type Reply struct {
	Handles []abi.Handle
	Values  []abi.Value
	Err     error
}

// EncodeReplyFrame encodes r as a reply, or as an error frame when r.Err is set.
func EncodeReplyFrame(messageID uint64, r Reply) ([]byte, error) {
	if r.Err != nil {
		fields := []tlv.Field{
			tlv.U32(schema.FieldCode, uint32(abi.CodeOf(r.Err))),
			tlv.String(schema.FieldMessage, r.Err.Error()),
		}
		return encode(messageID, schema.MsgError, frame.FlagIsResponse|frame.FlagIsError, nil, fields)
	}
	fields := make([]tlv.Field, 0, len(r.Handles)+len(r.Values))
	for _, h := range r.Handles {
		fields = append(fields, handleField(h))
	}
	fields, err := appendValues(fields, r.Values)
	if err != nil {
		return nil, err
	}
	return encode(messageID, schema.MsgReply, frame.FlagIsResponse, nil, fields)
}

// DecodeReplyFrame decodes a reply or error frame.
func DecodeReplyFrame(f frame.Frame) (Reply, error) {
	fields, err := decodeChecked(f)
	if err != nil {
		return Reply{}, err
	}
	switch f.Header.MessageType {
	case schema.MsgError:
		codeField, _ := tlv.GetField(fields, schema.FieldCode)
		code, err := tlv.U32FromBytes(codeField.Value)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Err: abi.ErrorFromCode(abi.Code(code), getRequiredString(fields, schema.FieldMessage))}, nil
	case schema.MsgReply:
	default:
		return Reply{}, fmt.Errorf("wire: message_type=%d is not a reply", f.Header.MessageType)
	}
	var r Reply
	if r.Handles, err = decodeHandles(fields); err != nil {
		return Reply{}, err
	}
	if r.Values, err = decodeValues(fields); err != nil {
		return Reply{}, err
	}
	return r, nil
}

// EncodeReleasedFrame encodes the foreign release notification for h.
func EncodeReleasedFrame(h abi.Handle) ([]byte, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("released missing handle")
	}
	return encode(0, schema.MsgReleased, 0, nil, []tlv.Field{handleField(h)})
}

func DecodeReleasedFrame(f frame.Frame) (abi.Handle, error) {
	fields, err := decodeChecked(f)
	if err != nil {
		return abi.NullHandle, err
	}
	if f.Header.MessageType != schema.MsgReleased {
		return abi.NullHandle, fmt.Errorf("wire: message_type=%d is not released", f.Header.MessageType)
	}
	handles, err := decodeHandles(fields)
	if err != nil {
		return abi.NullHandle, err
	}
	return handles[0], nil
}

// ReadFrame reads one bridge frame from the stream.
func ReadFrame(r io.Reader, limits frame.Limits) (frame.Frame, error) {
	f, err := frame.ReadFrame(r, limits)
	if err != nil {
		return frame.Frame{}, err
	}
	if err := frame.CheckBridgeHeader(f.Header); err != nil {
		return frame.Frame{}, err
	}
	return f, nil
}

func encode(messageID uint64, messageType uint32, flags uint32, auth []byte, fields []tlv.Field) ([]byte, error) {
	if err := schema.Validate(messageType, fields); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err := frame.WriteFrame(&buf, frame.Frame{
		Header: frame.Header{
			Magic:       frame.Magic,
			Version:     frame.Version,
			MessageID:   messageID,
			MessageType: messageType,
			Flags:       flags,
		},
		Auth:    auth,
		Payload: tlv.EncodeFields(fields),
	}, frame.DefaultLimits())
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeChecked(f frame.Frame) ([]tlv.Field, error) {
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(f.Header.MessageType, fields); err != nil {
		return nil, err
	}
	return fields, nil
}
