package schema

import (
	"fmt"

	"github.com/danmuck/zcnbind/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Message type IDs from the boundary call contract.
const (
	MsgNew      uint32 = 1
	MsgGet      uint32 = 2
	MsgSet      uint32 = 3
	MsgIncRef   uint32 = 4
	MsgDecRef   uint32 = 5
	MsgInvoke   uint32 = 6
	MsgReply    uint32 = 7
	MsgError    uint32 = 8
	MsgReleased uint32 = 9
)

// Field IDs from the boundary call contract.
const (
	FieldHandle   uint16 = 1
	FieldClass    uint16 = 2
	FieldName     uint16 = 3
	FieldFunction uint16 = 4

	// FieldValue repeats once per value, in declaration order. Handles travel as u32.
	FieldValue uint16 = 100

	FieldCode    uint16 = 200
	FieldMessage uint16 = 201
)

// TypeAny accepts any wire type for a required field.
const TypeAny uint8 = 0

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[uint32][]Requirement{
	MsgNew: {
		{FieldClass, tlv.TypeString},
	},
	MsgGet: {
		{FieldHandle, tlv.TypeU32},
		{FieldName, tlv.TypeString},
	},
	MsgSet: {
		{FieldHandle, tlv.TypeU32},
		{FieldName, tlv.TypeString},
		{FieldValue, TypeAny},
	},
	MsgIncRef: {
		{FieldHandle, tlv.TypeU32},
	},
	MsgDecRef: {
		{FieldHandle, tlv.TypeU32},
	},
	MsgInvoke: {
		{FieldFunction, tlv.TypeString},
	},
	MsgReply: {},
	MsgError: {
		{FieldCode, tlv.TypeU32},
		{FieldMessage, tlv.TypeString},
	},
	MsgReleased: {
		{FieldHandle, tlv.TypeU32},
	},
}

// Name returns a stable label for a message type.
func Name(messageType uint32) string {
	switch messageType {
	case MsgNew:
		return "new"
	case MsgGet:
		return "get"
	case MsgSet:
		return "set"
	case MsgIncRef:
		return "inc_ref"
	case MsgDecRef:
		return "dec_ref"
	case MsgInvoke:
		return "invoke"
	case MsgReply:
		return "reply"
	case MsgError:
		return "error"
	case MsgReleased:
		return "released"
	default:
		return "unknown"
	}
}

func Validate(messageType uint32, fields []tlv.Field) error {
	reqs, ok := requirements[messageType]
	if !ok {
		log.Error().Uint32("message_type", messageType).Msg("schema.Validate unknown message_type")
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			log.Error().
				Uint32("message_type", messageType).
				Uint16("field_id", req.ID).
				Msg("schema.Validate missing field")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if req.Type != TypeAny && f.Type != req.Type {
			log.Error().
				Uint32("message_type", messageType).
				Uint16("field_id", req.ID).
				Uint8("got", f.Type).
				Uint8("want", req.Type).
				Msg("schema.Validate type mismatch")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	for _, f := range tlv.GetAll(fields, FieldValue) {
		if f.Type != tlv.TypeString && f.Type != tlv.TypeI64 && f.Type != tlv.TypeU32 {
			return ValidationError{MessageType: messageType, FieldID: FieldValue, Reason: "unsupported value type"}
		}
	}
	log.Trace().Uint32("message_type", messageType).Msg("schema.Validate ok")
	return nil
}
