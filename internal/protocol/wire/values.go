package wire

import (
	"fmt"

	"github.com/danmuck/zcnbind/internal/abi"
	"github.com/danmuck/zcnbind/internal/protocol/schema"
	"github.com/danmuck/zcnbind/internal/protocol/tlv"
)

func valueField(v abi.Value) (tlv.Field, error) {
	switch v.Kind {
	case abi.KindString:
		return tlv.String(schema.FieldValue, v.Str), nil
	case abi.KindInt64:
		return tlv.I64(schema.FieldValue, v.Int), nil
	case abi.KindRef:
		return tlv.U32(schema.FieldValue, uint32(v.Ref)), nil
	default:
		return tlv.Field{}, fmt.Errorf("%w: cannot encode kind %d", abi.ErrKindMismatch, v.Kind)
	}
}

func fieldValue(f tlv.Field) (abi.Value, error) {
	switch f.Type {
	case tlv.TypeString:
		return abi.String(string(f.Value)), nil
	case tlv.TypeI64:
		v, err := tlv.I64FromBytes(f.Value)
		if err != nil {
			return abi.Value{}, err
		}
		return abi.Int64(v), nil
	case tlv.TypeU32:
		v, err := tlv.U32FromBytes(f.Value)
		if err != nil {
			return abi.Value{}, err
		}
		return abi.Ref(abi.Handle(int32(v))), nil
	default:
		return abi.Value{}, fmt.Errorf("wire: unsupported value type %d", f.Type)
	}
}

func appendValues(fields []tlv.Field, values []abi.Value) ([]tlv.Field, error) {
	for _, v := range values {
		f, err := valueField(v)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func decodeValues(fields []tlv.Field) ([]abi.Value, error) {
	raw := tlv.GetAll(fields, schema.FieldValue)
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]abi.Value, 0, len(raw))
	for _, f := range raw {
		v, err := fieldValue(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func handleField(h abi.Handle) tlv.Field {
	return tlv.U32(schema.FieldHandle, uint32(h))
}

func decodeHandles(fields []tlv.Field) ([]abi.Handle, error) {
	raw := tlv.GetAll(fields, schema.FieldHandle)
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]abi.Handle, 0, len(raw))
	for _, f := range raw {
		v, err := tlv.U32FromBytes(f.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, abi.Handle(int32(v)))
	}
	return out, nil
}

func getRequiredString(fields []tlv.Field, id uint16) string {
	f, _ := tlv.GetField(fields, id)
	return string(f.Value)
}
